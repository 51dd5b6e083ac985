package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"chatcore/internal/domain/conversation"
	"chatcore/internal/domain/message"
	"chatcore/internal/domain/presence"
)

type ConversationRepository interface {
	Create(ctx context.Context, c *conversation.Conversation) error
	GetByID(ctx context.Context, id uuid.UUID) (conversation.Conversation, error)
	Update(ctx context.Context, c conversation.Conversation) error
	Touch(ctx context.Context, id uuid.UUID, at time.Time) error
	ListForUser(ctx context.Context, userID uuid.UUID) ([]conversation.Conversation, error)

	AddMembership(ctx context.Context, m *conversation.Membership) error
	UpdateMembership(ctx context.Context, m conversation.Membership) error
	// GetMembership returns the row whether active or left.
	GetMembership(ctx context.Context, conversationID, userID uuid.UUID) (conversation.Membership, error)
	// GetActiveMembership returns ErrNotFound for absent or left memberships.
	GetActiveMembership(ctx context.Context, conversationID, userID uuid.UUID) (conversation.Membership, error)
	ActiveMembers(ctx context.Context, conversationID uuid.UUID) ([]conversation.Membership, error)
	SetLastReadAt(ctx context.Context, conversationID, userID uuid.UUID, at time.Time) error
	ShareActiveConversation(ctx context.Context, a, b uuid.UUID) (bool, error)
}

type MessageRepository interface {
	Create(ctx context.Context, m *message.Message) error
	GetByID(ctx context.Context, id uuid.UUID) (message.Message, error)
	Update(ctx context.Context, m message.Message) error
	// IDsInConversation keeps the ids that name messages of the conversation.
	IDsInConversation(ctx context.Context, conversationID uuid.UUID, ids []uuid.UUID) ([]uuid.UUID, error)
	History(ctx context.Context, conversationID uuid.UUID, before *time.Time, limit int, includeDeleted bool) ([]message.Message, error)
	CountAll(ctx context.Context, conversationID uuid.UUID) (int64, error)
	CountFromOthersAfter(ctx context.Context, conversationID, userID uuid.UUID, after time.Time) (int64, error)

	AddReaction(ctx context.Context, r *message.Reaction) (bool, error)
	RemoveReaction(ctx context.Context, messageID, userID uuid.UUID, emoji string) (bool, error)
	Reactions(ctx context.Context, messageID uuid.UUID) ([]message.Reaction, error)
}

type DeliveryRepository interface {
	CreateBatch(ctx context.Context, rows []message.DeliveryStatus) error
	Get(ctx context.Context, messageID, userID uuid.UUID) (message.DeliveryStatus, error)
	ListForMessage(ctx context.Context, messageID uuid.UUID) ([]message.DeliveryStatus, error)
	// Advance moves the user's rows for messageIDs to `to`, touching only rows
	// still in one of `from`. It returns the number of rows changed.
	Advance(ctx context.Context, userID uuid.UUID, messageIDs []uuid.UUID, to message.Status, from []message.Status, at time.Time) (int64, error)
	// AdvanceConversation is Advance over every message of a conversation.
	AdvanceConversation(ctx context.Context, userID, conversationID uuid.UUID, to message.Status, from []message.Status, at time.Time) (int64, error)
}

type PresenceRepository interface {
	// LockOrCreate loads the user's record under a row lock, creating it
	// first when missing. It must run inside a transaction.
	LockOrCreate(ctx context.Context, userID uuid.UUID, now time.Time) (presence.Record, error)
	Save(ctx context.Context, r presence.Record) error
	Get(ctx context.Context, userID uuid.UUID) (presence.Record, error)
}
