// Package fanout maps conversations and users to their live subscribers and
// delivers events to them.
package fanout

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"chatcore/internal/events"
	"chatcore/internal/metrics"
	"chatcore/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Subscriber is one live connection. Deliver must not block; it returns
// false when the frame was dropped.
type Subscriber interface {
	ID() string
	UserID() uuid.UUID
	Deliver(ev events.Event, payload []byte) bool
}

// Backplane carries encoded frames between router instances.
type Backplane interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, patterns []string, handler func(channel string, payload []byte)) error
}

type subscriberSet map[Subscriber]struct{}

// Router owns the subscriber registry. Subscribe, Unsubscribe, Register and
// Unregister take the write lock and Publish holds the read lock for the
// whole delivery pass, so a publish sees exactly the subscriptions that
// completed before it started.
type Router struct {
	mu            sync.RWMutex
	conversations map[uuid.UUID]subscriberSet
	users         map[uuid.UUID]subscriberSet

	backplane Backplane
	log       *logger.Logger
}

type Option func(*Router)

// WithBackplane routes every publish through bp; frames reach local
// subscribers only when they come back from Run.
func WithBackplane(bp Backplane) Option {
	return func(r *Router) {
		r.backplane = bp
	}
}

func NewRouter(log *logger.Logger, opts ...Option) *Router {
	if log == nil {
		log = logger.NewNop()
	}
	r := &Router{
		conversations: make(map[uuid.UUID]subscriberSet),
		users:         make(map[uuid.UUID]subscriberSet),
		log:           log.Named("fanout"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Router) Subscribe(conversationID uuid.UUID, sub Subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()
	add(r.conversations, conversationID, sub)
}

func (r *Router) Unsubscribe(conversationID uuid.UUID, sub Subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()
	remove(r.conversations, conversationID, sub)
}

// Register adds sub to its user's notification channel.
func (r *Router) Register(sub Subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()
	add(r.users, sub.UserID(), sub)
}

func (r *Router) Unregister(sub Subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()
	remove(r.users, sub.UserID(), sub)
}

func add(index map[uuid.UUID]subscriberSet, key uuid.UUID, sub Subscriber) {
	set, ok := index[key]
	if !ok {
		set = make(subscriberSet)
		index[key] = set
	}
	set[sub] = struct{}{}
}

func remove(index map[uuid.UUID]subscriberSet, key uuid.UUID, sub Subscriber) {
	set, ok := index[key]
	if !ok {
		return
	}
	delete(set, sub)
	if len(set) == 0 {
		delete(index, key)
	}
}

// Publish delivers ev to every subscriber of the conversation, minus the
// originator for echo-suppressed kinds.
func (r *Router) Publish(ctx context.Context, conversationID uuid.UUID, ev events.Event) error {
	return r.publish(ctx, events.ScopeConversation, conversationID, ev)
}

// PublishToUser delivers ev to every session of the user.
func (r *Router) PublishToUser(ctx context.Context, userID uuid.UUID, ev events.Event) error {
	return r.publish(ctx, events.ScopeUser, userID, ev)
}

func (r *Router) publish(ctx context.Context, scope events.Scope, key uuid.UUID, ev events.Event) error {
	if ev.Kind() == events.KindError {
		return errors.New("error frames are local only")
	}
	metrics.FanoutEvents.WithLabelValues(string(ev.Kind())).Inc()

	if r.backplane != nil {
		env, err := events.Wrap(ev)
		if err != nil {
			return err
		}
		data, err := json.Marshal(env)
		if err != nil {
			return err
		}
		channel := events.ConversationChannel(key)
		if scope == events.ScopeUser {
			channel = events.UserChannel(key)
		}
		return r.backplane.Publish(ctx, channel, data)
	}

	payload, err := events.Encode(ev)
	if err != nil {
		return err
	}
	suppress, hasSuppress := events.EchoSuppressedFor(ev)
	r.deliver(scope, key, ev, payload, suppress, hasSuppress)
	return nil
}

func (r *Router) deliver(scope events.Scope, key uuid.UUID, ev events.Event, payload []byte, suppress uuid.UUID, hasSuppress bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	index := r.conversations
	if scope == events.ScopeUser {
		index = r.users
	}
	for sub := range index[key] {
		if hasSuppress && sub.UserID() == suppress {
			continue
		}
		if !sub.Deliver(ev, payload) {
			metrics.FanoutDropped.Inc()
			r.log.Warn("subscriber buffer full, frame dropped",
				zap.String("subscriber_id", sub.ID()),
				zap.String("event_type", string(ev.Kind())),
			)
		}
	}
}

// Run consumes the backplane until ctx is done. Without a backplane it just
// waits for ctx.
func (r *Router) Run(ctx context.Context) error {
	if r.backplane == nil {
		<-ctx.Done()
		return nil
	}
	return r.backplane.Subscribe(ctx, events.ChannelPatterns, r.handleFrame)
}

func (r *Router) handleFrame(channel string, data []byte) {
	scope, key, err := events.ParseChannel(channel)
	if err != nil {
		r.log.Warn("ignoring frame on unknown channel", zap.String("channel", channel))
		return
	}
	var env events.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		r.log.Warn("ignoring malformed frame", zap.String("channel", channel), zap.Error(err))
		return
	}
	ev, err := events.Decode(env.Payload)
	if err != nil {
		r.log.Warn("ignoring undecodable frame", zap.String("channel", channel), zap.Error(err))
		return
	}
	var suppress uuid.UUID
	if env.SuppressTo != nil {
		suppress = *env.SuppressTo
	}
	r.deliver(scope, key, ev, env.Payload, suppress, env.SuppressTo != nil)
}

// SubscribersOf snapshots the subscribers of a conversation owned by userID.
func (r *Router) SubscribersOf(conversationID, userID uuid.UUID) []Subscriber {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Subscriber
	for sub := range r.conversations[conversationID] {
		if sub.UserID() == userID {
			out = append(out, sub)
		}
	}
	return out
}

// SubscriberCount reports the live subscribers of a conversation.
func (r *Router) SubscriberCount(conversationID uuid.UUID) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conversations[conversationID])
}

// UserSessionCount reports the registered sessions of a user.
func (r *Router) UserSessionCount(userID uuid.UUID) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users[userID])
}
