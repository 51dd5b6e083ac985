package httpdto

import (
	"time"

	"chatcore/internal/domain/message"
	"chatcore/internal/events"
	"chatcore/internal/typing"

	"github.com/google/uuid"
)

type ForwardMessageRequest struct {
	ConversationID string `json:"conversation_id" binding:"required"`
}

type PinMessageRequest struct {
	Pinned bool `json:"pinned"`
}

// MessageDTO is the wire message plus the flags only the HTTP views carry.
type MessageDTO struct {
	events.MessagePayload
	ForwardedFromID *uuid.UUID `json:"forwarded_from_id,omitempty"`
	IsPinned        bool       `json:"is_pinned"`
	IsDeleted       bool       `json:"is_deleted,omitempty"`
	DeletedAt       *time.Time `json:"deleted_at,omitempty"`
}

type HistoryResponse struct {
	Messages []MessageDTO `json:"messages"`
	// NextBefore is the cursor for the next older page, absent on the last page.
	NextBefore *string `json:"next_before,omitempty"`
}

type DeliveryStatusDTO struct {
	UserID      uuid.UUID  `json:"user_id"`
	Status      string     `json:"status"`
	SentAt      time.Time  `json:"sent_at"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
	ReadAt      *time.Time `json:"read_at,omitempty"`
}

type ReactionDTO struct {
	UserID    uuid.UUID `json:"user_id"`
	Emoji     string    `json:"emoji"`
	CreatedAt time.Time `json:"created_at"`
}

type TypingDTO struct {
	UserID    uuid.UUID `json:"user_id"`
	Username  string    `json:"username"`
	StartedAt time.Time `json:"started_at"`
}

func FromMessage(m message.Message) MessageDTO {
	return MessageDTO{
		MessagePayload:  events.NewMessagePayload(m),
		ForwardedFromID: m.ForwardedFromID,
		IsPinned:        m.IsPinned,
		IsDeleted:       m.IsDeleted,
		DeletedAt:       m.DeletedAt,
	}
}

// NewHistoryResponse sets the cursor when the page came back full.
func NewHistoryResponse(items []message.Message, limit int) HistoryResponse {
	out := HistoryResponse{Messages: make([]MessageDTO, 0, len(items))}
	for _, m := range items {
		out.Messages = append(out.Messages, FromMessage(m))
	}
	if limit > 0 && len(items) == limit {
		oldest := items[0].CreatedAt
		for _, m := range items[1:] {
			if m.CreatedAt.Before(oldest) {
				oldest = m.CreatedAt
			}
		}
		cursor := oldest.UTC().Format(time.RFC3339Nano)
		out.NextBefore = &cursor
	}
	return out
}

func FromDeliveryStatuses(items []message.DeliveryStatus) []DeliveryStatusDTO {
	out := make([]DeliveryStatusDTO, 0, len(items))
	for _, s := range items {
		out = append(out, DeliveryStatusDTO{
			UserID:      s.UserID,
			Status:      string(s.Status),
			SentAt:      s.SentAt,
			DeliveredAt: s.DeliveredAt,
			ReadAt:      s.ReadAt,
		})
	}
	return out
}

func FromReactions(items []message.Reaction) []ReactionDTO {
	out := make([]ReactionDTO, 0, len(items))
	for _, r := range items {
		out = append(out, ReactionDTO{UserID: r.UserID, Emoji: r.Emoji, CreatedAt: r.CreatedAt})
	}
	return out
}

func FromTyping(items []typing.Indicator) []TypingDTO {
	out := make([]TypingDTO, 0, len(items))
	for _, ind := range items {
		out = append(out, TypingDTO{UserID: ind.UserID, Username: ind.Username, StartedAt: ind.StartedAt})
	}
	return out
}
