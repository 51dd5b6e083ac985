package message

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusSent      Status = "sent"
	StatusDelivered Status = "delivered"
	StatusRead      Status = "read"
)

func (s Status) rank() int {
	switch s {
	case StatusSent:
		return 1
	case StatusDelivered:
		return 2
	case StatusRead:
		return 3
	}
	return 0
}

// Before reports whether s comes strictly before other in sent -> delivered -> read.
func (s Status) Before(other Status) bool {
	return s.rank() < other.rank()
}

// DeliveryStatus represents delivery_statuses (message x recipient).
// Status only ever advances.
type DeliveryStatus struct {
	MessageID   uuid.UUID  `gorm:"type:uuid;primaryKey" json:"message_id"`
	UserID      uuid.UUID  `gorm:"type:uuid;primaryKey;index:idx_delivery_statuses_user_status,priority:1" json:"user_id"`
	Status      Status     `gorm:"type:varchar(10);not null;index:idx_delivery_statuses_user_status,priority:2" json:"status"`
	SentAt      time.Time  `gorm:"not null" json:"sent_at"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
	ReadAt      *time.Time `json:"read_at,omitempty"`
}

func (DeliveryStatus) TableName() string {
	return "delivery_statuses"
}

func NewDeliveryStatus(messageID, userID uuid.UUID, now time.Time) DeliveryStatus {
	return DeliveryStatus{
		MessageID: messageID,
		UserID:    userID,
		Status:    StatusSent,
		SentAt:    now,
	}
}

// DeliverableFrom lists the states a row may leave when marked delivered.
// The delivery store advances rows by these lists.
func DeliverableFrom() []Status {
	return []Status{StatusSent}
}

// ReadableFrom lists the states a row may leave when marked read.
func ReadableFrom() []Status {
	return []Status{StatusSent, StatusDelivered}
}
