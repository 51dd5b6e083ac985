package repository

import (
	"context"
	"time"

	"chatcore/internal/domain/message"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PostgresDeliveryRepository struct {
	db *gorm.DB
}

func NewDeliveryRepository(db *gorm.DB) DeliveryRepository {
	return &PostgresDeliveryRepository{db: db}
}

func (r *PostgresDeliveryRepository) CreateBatch(ctx context.Context, rows []message.DeliveryStatus) error {
	if len(rows) == 0 {
		return nil
	}
	return translate(r.db.WithContext(ctx).CreateInBatches(rows, 200).Error)
}

func (r *PostgresDeliveryRepository) Get(ctx context.Context, messageID, userID uuid.UUID) (message.DeliveryStatus, error) {
	var s message.DeliveryStatus
	err := r.db.WithContext(ctx).
		Where("message_id = ? AND user_id = ?", messageID, userID).
		First(&s).Error
	if err != nil {
		return message.DeliveryStatus{}, translate(err)
	}
	return s, nil
}

func (r *PostgresDeliveryRepository) ListForMessage(ctx context.Context, messageID uuid.UUID) ([]message.DeliveryStatus, error) {
	var rows []message.DeliveryStatus
	err := r.db.WithContext(ctx).
		Where("message_id = ?", messageID).
		Order("user_id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// advanceColumns builds the update set for a forward transition.
func advanceColumns(to message.Status, at time.Time) map[string]interface{} {
	cols := map[string]interface{}{"status": to}
	switch to {
	case message.StatusDelivered:
		cols["delivered_at"] = at
	case message.StatusRead:
		cols["read_at"] = at
	}
	return cols
}

// Advance is a single conditional UPDATE, so concurrent callers can never
// move a row backwards: the WHERE clause only admits rows in `from`.
func (r *PostgresDeliveryRepository) Advance(ctx context.Context, userID uuid.UUID, messageIDs []uuid.UUID, to message.Status, from []message.Status, at time.Time) (int64, error) {
	if len(messageIDs) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).
		Model(&message.DeliveryStatus{}).
		Where("user_id = ? AND message_id IN ? AND status IN ?", userID, messageIDs, from).
		UpdateColumns(advanceColumns(to, at))
	return res.RowsAffected, res.Error
}

func (r *PostgresDeliveryRepository) AdvanceConversation(ctx context.Context, userID, conversationID uuid.UUID, to message.Status, from []message.Status, at time.Time) (int64, error) {
	sub := r.db.Model(&message.Message{}).
		Select("id").
		Where("conversation_id = ?", conversationID)
	res := r.db.WithContext(ctx).
		Model(&message.DeliveryStatus{}).
		Where("user_id = ? AND status IN ? AND message_id IN (?)", userID, from, sub).
		UpdateColumns(advanceColumns(to, at))
	return res.RowsAffected, res.Error
}
