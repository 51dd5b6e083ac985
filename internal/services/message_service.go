package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"chatcore/internal/domain/conversation"
	"chatcore/internal/domain/message"
	"chatcore/internal/events"
	"chatcore/internal/metrics"
	"chatcore/internal/proxy"
	"chatcore/internal/repository"
	chat_errors "chatcore/pkg/errors"
	"chatcore/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
	previewLength       = 100
)

var mentionPattern = regexp.MustCompile(`<@([0-9a-fA-F-]{36})>`)

// Notifier delivers out-of-band events to every session of a user.
type Notifier interface {
	PublishToUser(ctx context.Context, userID uuid.UUID, ev events.Event) error
}

type MessageService struct {
	db       *gorm.DB
	messages repository.MessageRepository
	convs    repository.ConversationRepository
	statuses repository.DeliveryRepository
	access   *proxy.AccessControl
	notifier Notifier
	log      *logger.Logger
	now      Clock
}

func NewMessageService(db *gorm.DB, messages repository.MessageRepository, convs repository.ConversationRepository, statuses repository.DeliveryRepository, access *proxy.AccessControl, notifier Notifier, log *logger.Logger) *MessageService {
	if log == nil {
		log = logger.NewNop()
	}
	return &MessageService{
		db:       db,
		messages: messages,
		convs:    convs,
		statuses: statuses,
		access:   access,
		notifier: notifier,
		log:      log.Named("messages"),
		now:      systemClock,
	}
}

func (s *MessageService) SetClock(c Clock) {
	s.now = c
}

type CreateMessageInput struct {
	ConversationID  uuid.UUID
	AuthorID        uuid.UUID
	AuthorName      string
	Content         string
	Type            message.Type
	ReplyToID       *uuid.UUID
	ForwardedFromID *uuid.UUID
}

// CreateMessage persists a member-authored message together with one sent
// status per other active member and bumps the conversation. The statuses
// commit with the message, so they exist before anyone is told about it.
func (s *MessageService) CreateMessage(ctx context.Context, in CreateMessageInput) (message.Message, error) {
	if strings.TrimSpace(in.Content) == "" {
		return message.Message{}, fmt.Errorf("%w: content is empty", chat_errors.ErrInvalidInput)
	}
	if in.Type == "" {
		in.Type = message.TypeText
	}
	if !in.Type.Valid() || in.Type == message.TypeSystem {
		return message.Message{}, fmt.Errorf("%w: message type %q", chat_errors.ErrInvalidInput, in.Type)
	}

	var created message.Message
	var members []conversation.Membership
	err := repository.WithTx(ctx, s.db, func(tx *gorm.DB) error {
		convs := repository.NewConversationRepository(tx)
		msgs := repository.NewMessageRepository(tx)

		author, err := convs.GetActiveMembership(ctx, in.ConversationID, in.AuthorID)
		if err != nil {
			if errors.Is(err, chat_errors.ErrNotFound) {
				return chat_errors.ErrForbidden
			}
			return err
		}
		if !author.CanSend() {
			return chat_errors.ErrForbidden
		}
		if in.ReplyToID != nil {
			parent, err := msgs.GetByID(ctx, *in.ReplyToID)
			if err != nil {
				return err
			}
			if parent.ConversationID != in.ConversationID {
				return chat_errors.ErrNotFound
			}
		}

		authorID := in.AuthorID
		created = message.Message{
			ID:              uuid.New(),
			ConversationID:  in.ConversationID,
			AuthorID:        &authorID,
			AuthorName:      in.AuthorName,
			Type:            in.Type,
			Content:         in.Content,
			ReplyToID:       in.ReplyToID,
			ForwardedFromID: in.ForwardedFromID,
		}
		members, err = s.persist(ctx, tx, &created)
		return err
	})
	if err != nil {
		return message.Message{}, err
	}

	metrics.MessagesCreated.Inc()
	s.notifyMentions(ctx, created, members)
	return created, nil
}

// CreateSystemMessage persists an authorless message. Every active member
// gets a sent status.
func (s *MessageService) CreateSystemMessage(ctx context.Context, conversationID uuid.UUID, content string) (message.Message, error) {
	if strings.TrimSpace(content) == "" {
		return message.Message{}, fmt.Errorf("%w: content is empty", chat_errors.ErrInvalidInput)
	}
	created := message.Message{
		ID:             uuid.New(),
		ConversationID: conversationID,
		Type:           message.TypeSystem,
		Content:        content,
	}
	err := repository.WithTx(ctx, s.db, func(tx *gorm.DB) error {
		if _, err := repository.NewConversationRepository(tx).GetByID(ctx, conversationID); err != nil {
			return err
		}
		_, err := s.persist(ctx, tx, &created)
		return err
	})
	if err != nil {
		return message.Message{}, err
	}
	metrics.MessagesCreated.Inc()
	return created, nil
}

// persist inserts m, its delivery statuses and the conversation touch using tx.
func (s *MessageService) persist(ctx context.Context, tx *gorm.DB, m *message.Message) ([]conversation.Membership, error) {
	convs := repository.NewConversationRepository(tx)
	msgs := repository.NewMessageRepository(tx)
	statuses := repository.NewDeliveryRepository(tx)

	now := s.now()
	m.CreatedAt = now
	m.UpdatedAt = now
	if err := msgs.Create(ctx, m); err != nil {
		return nil, err
	}

	members, err := convs.ActiveMembers(ctx, m.ConversationID)
	if err != nil {
		return nil, err
	}
	rows := make([]message.DeliveryStatus, 0, len(members))
	for _, member := range members {
		if m.AuthoredBy(member.UserID) {
			continue
		}
		rows = append(rows, message.NewDeliveryStatus(m.ID, member.UserID, now))
	}
	if err := statuses.CreateBatch(ctx, rows); err != nil {
		return nil, err
	}
	if err := convs.Touch(ctx, m.ConversationID, now); err != nil {
		return nil, err
	}
	return members, nil
}

// loadForMutation fetches a live message of the conversation on behalf of an
// active member.
func loadForMutation(ctx context.Context, tx *gorm.DB, conversationID, messageID, actorID uuid.UUID) (message.Message, repository.MessageRepository, error) {
	if _, err := repository.NewConversationRepository(tx).GetActiveMembership(ctx, conversationID, actorID); err != nil {
		if errors.Is(err, chat_errors.ErrNotFound) {
			return message.Message{}, nil, chat_errors.ErrForbidden
		}
		return message.Message{}, nil, err
	}
	msgs := repository.NewMessageRepository(tx)
	m, err := msgs.GetByID(ctx, messageID)
	if err != nil {
		return message.Message{}, nil, err
	}
	if m.ConversationID != conversationID || m.IsDeleted {
		return message.Message{}, nil, chat_errors.ErrNotFound
	}
	return m, msgs, nil
}

// EditMessage overwrites the content of the actor's own message.
func (s *MessageService) EditMessage(ctx context.Context, conversationID, messageID, actorID uuid.UUID, content string) (message.Message, error) {
	if strings.TrimSpace(content) == "" {
		return message.Message{}, fmt.Errorf("%w: content is empty", chat_errors.ErrInvalidInput)
	}
	var edited message.Message
	err := repository.WithTx(ctx, s.db, func(tx *gorm.DB) error {
		m, msgs, err := loadForMutation(ctx, tx, conversationID, messageID, actorID)
		if err != nil {
			return err
		}
		if err := m.Edit(actorID, content, s.now()); err != nil {
			return err
		}
		edited = m
		return msgs.Update(ctx, m)
	})
	if err != nil {
		return message.Message{}, err
	}
	return edited, nil
}

// SoftDeleteMessage marks the actor's own message deleted. Moderators get no
// override here.
func (s *MessageService) SoftDeleteMessage(ctx context.Context, conversationID, messageID, actorID uuid.UUID) (message.Message, error) {
	var deleted message.Message
	err := repository.WithTx(ctx, s.db, func(tx *gorm.DB) error {
		m, msgs, err := loadForMutation(ctx, tx, conversationID, messageID, actorID)
		if err != nil {
			return err
		}
		if err := m.SoftDelete(actorID, s.now()); err != nil {
			return err
		}
		deleted = m
		return msgs.Update(ctx, m)
	})
	if err != nil {
		return message.Message{}, err
	}
	return deleted, nil
}

// SetPinned pins or unpins a message. Authors and moderators may pin.
func (s *MessageService) SetPinned(ctx context.Context, conversationID, messageID, actorID uuid.UUID, pinned bool) (message.Message, error) {
	var out message.Message
	err := repository.WithTx(ctx, s.db, func(tx *gorm.DB) error {
		m, msgs, err := loadForMutation(ctx, tx, conversationID, messageID, actorID)
		if err != nil {
			return err
		}
		if !m.AuthoredBy(actorID) {
			member, err := repository.NewConversationRepository(tx).GetActiveMembership(ctx, conversationID, actorID)
			if err != nil {
				return err
			}
			if !member.CanModerate() {
				return chat_errors.ErrForbidden
			}
		}
		if err := m.SetPinned(pinned); err != nil {
			return err
		}
		out = m
		return msgs.Update(ctx, m)
	})
	if err != nil {
		return message.Message{}, err
	}
	return out, nil
}

// Forward copies a visible message into another conversation the actor
// belongs to.
func (s *MessageService) Forward(ctx context.Context, messageID, targetConversationID, actorID uuid.UUID, actorName string) (message.Message, error) {
	src, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		return message.Message{}, err
	}
	if src.IsDeleted {
		return message.Message{}, chat_errors.ErrNotFound
	}
	if err := s.access.EnsureMember(ctx, actorID, src.ConversationID); err != nil {
		return message.Message{}, err
	}
	typ := src.Type
	if typ == message.TypeSystem {
		typ = message.TypeText
	}
	return s.CreateMessage(ctx, CreateMessageInput{
		ConversationID:  targetConversationID,
		AuthorID:        actorID,
		AuthorName:      actorName,
		Content:         src.Content,
		Type:            typ,
		ForwardedFromID: &src.ID,
	})
}

// AddReaction records the reaction once; repeating it is a no-op that
// reports false.
func (s *MessageService) AddReaction(ctx context.Context, conversationID, messageID, userID uuid.UUID, emoji string) (bool, error) {
	var created bool
	err := repository.WithTx(ctx, s.db, func(tx *gorm.DB) error {
		_, msgs, err := loadForMutation(ctx, tx, conversationID, messageID, userID)
		if err != nil {
			return err
		}
		created, err = msgs.AddReaction(ctx, &message.Reaction{
			MessageID: messageID,
			UserID:    userID,
			Emoji:     emoji,
			CreatedAt: s.now(),
		})
		return err
	})
	return created, err
}

// RemoveReaction deletes the reaction if present and reports whether it was.
func (s *MessageService) RemoveReaction(ctx context.Context, conversationID, messageID, userID uuid.UUID, emoji string) (bool, error) {
	var removed bool
	err := repository.WithTx(ctx, s.db, func(tx *gorm.DB) error {
		_, msgs, err := loadForMutation(ctx, tx, conversationID, messageID, userID)
		if err != nil {
			return err
		}
		removed, err = msgs.RemoveReaction(ctx, messageID, userID, emoji)
		return err
	})
	return removed, err
}

func (s *MessageService) Reactions(ctx context.Context, viewerID, messageID uuid.UUID) ([]message.Reaction, error) {
	m, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if err := s.access.EnsureMember(ctx, viewerID, m.ConversationID); err != nil {
		return nil, err
	}
	return s.messages.Reactions(ctx, messageID)
}

// History is the client-facing view: deleted messages are left out.
func (s *MessageService) History(ctx context.Context, viewerID, conversationID uuid.UUID, before *time.Time, limit int) ([]message.Message, error) {
	if err := s.access.EnsureMember(ctx, viewerID, conversationID); err != nil {
		return nil, err
	}
	return s.messages.History(ctx, conversationID, before, clampLimit(limit), false)
}

// ModerationHistory includes deleted messages and is limited to moderators.
func (s *MessageService) ModerationHistory(ctx context.Context, viewerID, conversationID uuid.UUID, before *time.Time, limit int) ([]message.Message, error) {
	if err := s.access.CanModerate(ctx, viewerID, conversationID); err != nil {
		return nil, err
	}
	return s.messages.History(ctx, conversationID, before, clampLimit(limit), true)
}

// Statuses returns every recipient status of a message.
func (s *MessageService) Statuses(ctx context.Context, viewerID, messageID uuid.UUID) ([]message.DeliveryStatus, error) {
	m, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if err := s.access.EnsureMember(ctx, viewerID, m.ConversationID); err != nil {
		return nil, err
	}
	return s.statuses.ListForMessage(ctx, messageID)
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		return maxHistoryLimit
	}
	return limit
}

// Mentions extracts the distinct user ids written as <@uuid> in content.
func Mentions(content string) []uuid.UUID {
	var ids []uuid.UUID
	seen := make(map[uuid.UUID]struct{})
	for _, match := range mentionPattern.FindAllStringSubmatch(content, -1) {
		id, err := uuid.Parse(match[1])
		if err != nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}

func (s *MessageService) notifyMentions(ctx context.Context, m message.Message, members []conversation.Membership) {
	if s.notifier == nil {
		return
	}
	mentioned := Mentions(m.Content)
	if len(mentioned) == 0 {
		return
	}
	active := make(map[uuid.UUID]bool, len(members))
	for _, member := range members {
		active[member.UserID] = member.NotificationsEnabled
	}

	preview := []rune(m.Content)
	if len(preview) > previewLength {
		preview = preview[:previewLength]
	}
	messageID := m.ID
	for _, userID := range mentioned {
		enabled, ok := active[userID]
		if !ok || !enabled || m.AuthoredBy(userID) {
			continue
		}
		ev := events.NewNotification(events.NotificationBody{
			Kind:           "mention",
			ConversationID: m.ConversationID,
			MessageID:      &messageID,
			FromUserID:     m.AuthorID,
			FromUsername:   m.DisplayAuthor(),
			Preview:        string(preview),
		}, m.CreatedAt)
		if err := s.notifier.PublishToUser(ctx, userID, ev); err != nil {
			s.log.Warn("mention notification failed",
				zap.String("user_id", userID.String()),
				zap.String("message_id", m.ID.String()),
				zap.Error(err),
			)
		}
	}
}
