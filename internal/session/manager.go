// Package session owns the lifecycle of live client connections: admission,
// command dispatch and unconditional cleanup.
package session

import (
	"context"
	"fmt"
	"time"

	"chatcore/internal/auth"
	"chatcore/internal/events"
	"chatcore/internal/fanout"
	"chatcore/internal/metrics"
	"chatcore/internal/services"
	"chatcore/internal/typing"
	chat_errors "chatcore/pkg/errors"
	"chatcore/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// MembershipChecker answers whether a user may join a conversation's stream.
type MembershipChecker interface {
	IsActiveMember(ctx context.Context, userID, conversationID uuid.UUID) (bool, error)
}

type Config struct {
	SendBuffer    int
	CommandRate   rate.Limit
	CommandBurst  int
	TypingTimeout time.Duration
	CloseTimeout  time.Duration
}

func DefaultConfig() Config {
	return Config{
		SendBuffer:    256,
		CommandRate:   20,
		CommandBurst:  40,
		TypingTimeout: typing.DefaultTimeout,
		CloseTimeout:  5 * time.Second,
	}
}

// Deps are the collaborators a Manager drives.
type Deps struct {
	Router   *fanout.Router
	Members  MembershipChecker
	Messages *services.MessageService
	Delivery *services.DeliveryService
	Presence *services.PresenceService
	Typing   typing.Store
	Logger   *logger.Logger
}

type Manager struct {
	router   *fanout.Router
	members  MembershipChecker
	messages *services.MessageService
	delivery *services.DeliveryService
	presence *services.PresenceService
	typing   typing.Store
	cfg      Config
	log      *sessionLogger
	now      services.Clock
}

func NewManager(deps Deps, cfg Config) *Manager {
	def := DefaultConfig()
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = def.SendBuffer
	}
	if cfg.TypingTimeout <= 0 {
		cfg.TypingTimeout = def.TypingTimeout
	}
	if cfg.CloseTimeout <= 0 {
		cfg.CloseTimeout = def.CloseTimeout
	}
	if deps.Typing == nil {
		deps.Typing = typing.NewMemoryStore()
	}
	return &Manager{
		router:   deps.Router,
		members:  deps.Members,
		messages: deps.Messages,
		delivery: deps.Delivery,
		presence: deps.Presence,
		typing:   deps.Typing,
		cfg:      cfg,
		log:      newSessionLogger(deps.Logger),
		now:      time.Now,
	}
}

func (m *Manager) SetClock(c services.Clock) {
	m.now = c
}

// TypingTimeout is the freshness window applied to typing indicators.
func (m *Manager) TypingTimeout() time.Duration {
	return m.cfg.TypingTimeout
}

// ActiveTyping lists the fresh typing indicators of a conversation.
func (m *Manager) ActiveTyping(ctx context.Context, conversationID uuid.UUID) ([]typing.Indicator, error) {
	return typing.ActiveIn(ctx, m.typing, conversationID, m.cfg.TypingTimeout, m.now())
}

func (m *Manager) newSession(id auth.Identity, conversationID uuid.UUID) *Session {
	s := &Session{
		id:             uuid.NewString(),
		identity:       id,
		conversationID: conversationID,
		send:           make(chan Frame, m.cfg.SendBuffer),
		done:           make(chan struct{}),
		manager:        m,
	}
	if m.cfg.CommandRate > 0 {
		burst := m.cfg.CommandBurst
		if burst <= 0 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(m.cfg.CommandRate, burst)
	}
	return s
}

// Open admits an identified member into a conversation stream. Nothing is
// registered when admission fails.
func (m *Manager) Open(ctx context.Context, id *auth.Identity, conversationID uuid.UUID) (*Session, error) {
	if id == nil || id.UserID == uuid.Nil {
		return nil, chat_errors.ErrUnauthorized
	}
	ok, err := m.members.IsActiveMember(ctx, id.UserID, conversationID)
	if err != nil {
		return nil, fmt.Errorf("membership check: %w", err)
	}
	if !ok {
		return nil, chat_errors.ErrForbidden
	}

	s := m.newSession(*id, conversationID)
	m.router.Subscribe(conversationID, s)
	m.router.Register(s)

	if _, err := m.presence.GoOnline(ctx, id.UserID); err != nil {
		m.router.Unregister(s)
		m.router.Unsubscribe(conversationID, s)
		return nil, fmt.Errorf("presence online: %w", err)
	}
	metrics.SessionsOpen.Inc()

	if _, err := m.presence.UpdateActivity(ctx, id.UserID, &conversationID); err != nil {
		m.log.Warn("activity_update_failed", s, zap.Error(err))
	}
	if n, err := m.delivery.MarkConversationDelivered(ctx, id.UserID, conversationID); err != nil {
		m.log.Warn("mark_delivered_failed", s, zap.Error(err))
	} else if n > 0 {
		m.log.Info("backlog_delivered", s, zap.Int64("count", n))
	}

	join := events.UserJoin{UserID: id.UserID, Username: id.Username}
	if err := m.router.Publish(ctx, conversationID, join); err != nil {
		m.log.Warn("broadcast_failed", s, zap.String("event_type", string(join.Kind())), zap.Error(err))
	}
	m.log.Info("opened", s)
	return s, nil
}

// OpenNotifications admits a user onto their own notification channel.
// It does not count toward presence.
func (m *Manager) OpenNotifications(ctx context.Context, id *auth.Identity) (*Session, error) {
	if id == nil || id.UserID == uuid.Nil {
		return nil, chat_errors.ErrUnauthorized
	}
	s := m.newSession(*id, uuid.Nil)
	s.notificationsOnly = true
	m.router.Register(s)
	metrics.SessionsOpen.Inc()
	m.log.Info("notifications_opened", s)
	return s, nil
}

// Evict closes every session userID holds on conversationID. It runs when
// a membership ends so a former member stops receiving the stream.
func (m *Manager) Evict(conversationID, userID uuid.UUID) int {
	evicted := 0
	for _, sub := range m.router.SubscribersOf(conversationID, userID) {
		s, ok := sub.(*Session)
		if !ok {
			continue
		}
		s.Close()
		evicted++
	}
	return evicted
}

// close performs the teardown once. Every step is attempted regardless of
// earlier failures.
func (m *Manager) close(s *Session) {
	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.CloseTimeout)
	defer cancel()

	m.router.Unregister(s)
	if s.notificationsOnly {
		close(s.done)
		metrics.SessionsOpen.Dec()
		m.log.Info("notifications_closed", s)
		return
	}
	m.router.Unsubscribe(s.conversationID, s)
	close(s.done)
	metrics.SessionsOpen.Dec()

	userID := s.identity.UserID
	if _, err := m.presence.GoOffline(ctx, userID); err != nil {
		m.log.Error("presence_offline_failed", s, err)
	}
	if err := m.typing.Clear(ctx, s.conversationID, userID); err != nil {
		m.log.Error("typing_clear_failed", s, err)
	}
	leave := events.UserLeave{UserID: userID, Username: s.identity.Username}
	if err := m.router.Publish(ctx, s.conversationID, leave); err != nil {
		m.log.Error("broadcast_failed", s, err, zap.String("event_type", string(leave.Kind())))
	}
	m.log.Info("closed", s)
}
