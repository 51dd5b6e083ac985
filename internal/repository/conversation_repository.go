package repository

import (
	"context"
	"time"

	"chatcore/internal/domain/conversation"
	chat_errors "chatcore/pkg/errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PostgresConversationRepository struct {
	db *gorm.DB
}

func NewConversationRepository(db *gorm.DB) ConversationRepository {
	return &PostgresConversationRepository{db: db}
}

func (r *PostgresConversationRepository) Create(ctx context.Context, c *conversation.Conversation) error {
	return translate(r.db.WithContext(ctx).Create(c).Error)
}

func (r *PostgresConversationRepository) GetByID(ctx context.Context, id uuid.UUID) (conversation.Conversation, error) {
	var c conversation.Conversation
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&c).Error
	if err != nil {
		return conversation.Conversation{}, translate(err)
	}
	return c, nil
}

func (r *PostgresConversationRepository) Update(ctx context.Context, c conversation.Conversation) error {
	res := r.db.WithContext(ctx).Save(&c)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return chat_errors.ErrNotFound
	}
	return nil
}

func (r *PostgresConversationRepository) Touch(ctx context.Context, id uuid.UUID, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&conversation.Conversation{}).
		Where("id = ?", id).
		UpdateColumn("updated_at", at)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return chat_errors.ErrNotFound
	}
	return nil
}

func (r *PostgresConversationRepository) ListForUser(ctx context.Context, userID uuid.UUID) ([]conversation.Conversation, error) {
	var convs []conversation.Conversation
	err := r.db.WithContext(ctx).
		Joins("JOIN memberships ON memberships.conversation_id = conversations.id").
		Where("memberships.user_id = ? AND memberships.left_at IS NULL AND conversations.is_active = ?", userID, true).
		Order("conversations.updated_at DESC").
		Find(&convs).Error
	if err != nil {
		return nil, err
	}
	return convs, nil
}

func (r *PostgresConversationRepository) AddMembership(ctx context.Context, m *conversation.Membership) error {
	return translate(r.db.WithContext(ctx).Create(m).Error)
}

func (r *PostgresConversationRepository) UpdateMembership(ctx context.Context, m conversation.Membership) error {
	res := r.db.WithContext(ctx).Save(&m)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return chat_errors.ErrNotFound
	}
	return nil
}

func (r *PostgresConversationRepository) GetMembership(ctx context.Context, conversationID, userID uuid.UUID) (conversation.Membership, error) {
	var m conversation.Membership
	err := r.db.WithContext(ctx).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		First(&m).Error
	if err != nil {
		return conversation.Membership{}, translate(err)
	}
	return m, nil
}

func (r *PostgresConversationRepository) GetActiveMembership(ctx context.Context, conversationID, userID uuid.UUID) (conversation.Membership, error) {
	var m conversation.Membership
	err := r.db.WithContext(ctx).
		Where("conversation_id = ? AND user_id = ? AND left_at IS NULL", conversationID, userID).
		First(&m).Error
	if err != nil {
		return conversation.Membership{}, translate(err)
	}
	return m, nil
}

func (r *PostgresConversationRepository) ActiveMembers(ctx context.Context, conversationID uuid.UUID) ([]conversation.Membership, error) {
	var members []conversation.Membership
	err := r.db.WithContext(ctx).
		Where("conversation_id = ? AND left_at IS NULL", conversationID).
		Order("joined_at ASC").
		Find(&members).Error
	if err != nil {
		return nil, err
	}
	return members, nil
}

func (r *PostgresConversationRepository) SetLastReadAt(ctx context.Context, conversationID, userID uuid.UUID, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&conversation.Membership{}).
		Where("conversation_id = ? AND user_id = ? AND left_at IS NULL", conversationID, userID).
		UpdateColumn("last_read_at", at)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return chat_errors.ErrNotFound
	}
	return nil
}

func (r *PostgresConversationRepository) ShareActiveConversation(ctx context.Context, a, b uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Table("memberships AS ma").
		Joins("JOIN memberships AS mb ON mb.conversation_id = ma.conversation_id").
		Where("ma.user_id = ? AND mb.user_id = ? AND ma.left_at IS NULL AND mb.left_at IS NULL", a, b).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
