package httpdto

import (
	"time"

	"chatcore/internal/domain/conversation"

	"github.com/google/uuid"
)

type CreateConversationRequest struct {
	Type        string   `json:"type" binding:"required"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Members     []string `json:"members"`
}

type AddMemberRequest struct {
	UserID string `json:"user_id" binding:"required"`
	Role   string `json:"role"`
}

type ArchiveConversationRequest struct {
	Archived bool `json:"archived"`
}

type ConversationDTO struct {
	ID          uuid.UUID  `json:"id"`
	Type        string     `json:"type"`
	Name        *string    `json:"name,omitempty"`
	Description *string    `json:"description,omitempty"`
	IsActive    bool       `json:"is_active"`
	IsArchived  bool       `json:"is_archived"`
	CreatedBy   *uuid.UUID `json:"created_by,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

type MembershipDTO struct {
	UserID               uuid.UUID  `json:"user_id"`
	ConversationID       uuid.UUID  `json:"conversation_id"`
	Role                 string     `json:"role"`
	NotificationsEnabled bool       `json:"notifications_enabled"`
	IsMuted              bool       `json:"is_muted"`
	LastReadAt           *time.Time `json:"last_read_at,omitempty"`
	JoinedAt             time.Time  `json:"joined_at"`
	LeftAt               *time.Time `json:"left_at,omitempty"`
	CanSendMessages      bool       `json:"can_send_messages"`
	CanAddMembers        bool       `json:"can_add_members"`
}

type ConversationDetailResponse struct {
	Conversation ConversationDTO `json:"conversation"`
	Members      []MembershipDTO `json:"members"`
}

type ListConversationsResponse struct {
	Conversations []ConversationDTO `json:"conversations"`
}

type UnreadCountResponse struct {
	ConversationID uuid.UUID `json:"conversation_id"`
	Unread         int64     `json:"unread"`
}

type MarkDeliveredResponse struct {
	Updated int64 `json:"updated"`
}

func FromConversation(c conversation.Conversation) ConversationDTO {
	return ConversationDTO{
		ID:          c.ID,
		Type:        string(c.Type),
		Name:        c.Name,
		Description: c.Description,
		IsActive:    c.IsActive,
		IsArchived:  c.IsArchived,
		CreatedBy:   c.CreatedBy,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

func FromConversationSlice(items []conversation.Conversation) []ConversationDTO {
	out := make([]ConversationDTO, 0, len(items))
	for _, c := range items {
		out = append(out, FromConversation(c))
	}
	return out
}

func FromMembership(m conversation.Membership) MembershipDTO {
	return MembershipDTO{
		UserID:               m.UserID,
		ConversationID:       m.ConversationID,
		Role:                 string(m.Role),
		NotificationsEnabled: m.NotificationsEnabled,
		IsMuted:              m.IsMuted,
		LastReadAt:           m.LastReadAt,
		JoinedAt:             m.JoinedAt,
		LeftAt:               m.LeftAt,
		CanSendMessages:      m.CanSendMessages,
		CanAddMembers:        m.CanAddMembers,
	}
}

func FromMembershipSlice(items []conversation.Membership) []MembershipDTO {
	out := make([]MembershipDTO, 0, len(items))
	for _, m := range items {
		out = append(out, FromMembership(m))
	}
	return out
}
