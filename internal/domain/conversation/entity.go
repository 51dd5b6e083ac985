package conversation

import (
	"fmt"
	"time"

	chat_errors "chatcore/pkg/errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Type string

const (
	TypeDirect  Type = "direct"
	TypeGroup   Type = "group"
	TypeChannel Type = "channel"
)

func (t Type) Valid() bool {
	switch t {
	case TypeDirect, TypeGroup, TypeChannel:
		return true
	}
	return false
}

type Role string

const (
	RoleOwner     Role = "owner"
	RoleAdmin     Role = "admin"
	RoleModerator Role = "moderator"
	RoleMember    Role = "member"
)

func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleModerator, RoleMember:
		return true
	}
	return false
}

// Conversation represents the conversations table
type Conversation struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Type        Type       `gorm:"type:varchar(10);not null;index:idx_conversations_type_updated,priority:1" json:"type"`
	Name        *string    `gorm:"type:varchar(255)" json:"name,omitempty"`
	Description *string    `gorm:"type:text" json:"description,omitempty"`
	IsActive    bool       `gorm:"not null;index:idx_conversations_active_updated,priority:1" json:"is_active"`
	IsArchived  bool       `gorm:"not null" json:"is_archived"`
	CreatedBy   *uuid.UUID `gorm:"type:uuid" json:"created_by,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `gorm:"index:idx_conversations_type_updated,priority:2;index:idx_conversations_active_updated,priority:2" json:"updated_at"`
}

// Membership represents the memberships table (user x conversation).
type Membership struct {
	ID                   uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID               uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_memberships_user_conversation,priority:1" json:"user_id"`
	ConversationID       uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_memberships_user_conversation,priority:2;index:idx_memberships_conversation_role,priority:1" json:"conversation_id"`
	Role                 Role       `gorm:"type:varchar(10);not null;index:idx_memberships_conversation_role,priority:2" json:"role"`
	NotificationsEnabled bool       `gorm:"not null" json:"notifications_enabled"`
	IsMuted              bool       `gorm:"not null" json:"is_muted"`
	MutedUntil           *time.Time `json:"muted_until,omitempty"`
	IsPinned             bool       `gorm:"not null" json:"is_pinned"`
	LastReadAt           *time.Time `json:"last_read_at,omitempty"`
	JoinedAt             time.Time  `gorm:"not null" json:"joined_at"`
	LeftAt               *time.Time `json:"left_at,omitempty"`
	CanSendMessages      bool       `gorm:"not null" json:"can_send_messages"`
	CanAddMembers        bool       `gorm:"not null" json:"can_add_members"`
}

func (Conversation) TableName() string {
	return "conversations"
}

func (Membership) TableName() string {
	return "memberships"
}

func (c *Conversation) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

func (m *Membership) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// NewMembership builds an active membership with the default permissions of role.
func NewMembership(conversationID, userID uuid.UUID, role Role, now time.Time) Membership {
	m := Membership{
		ID:                   uuid.New(),
		UserID:               userID,
		ConversationID:       conversationID,
		Role:                 role,
		NotificationsEnabled: true,
		JoinedAt:             now,
		CanSendMessages:      true,
	}
	if role == RoleOwner || role == RoleAdmin {
		m.CanAddMembers = true
	}
	return m
}

func (m Membership) IsActive() bool {
	return m.LeftAt == nil
}

func (m Membership) CanSend() bool {
	return m.IsActive() && m.CanSendMessages
}

// CanModerate reports whether the member may act on other members' content.
func (m Membership) CanModerate() bool {
	if !m.IsActive() {
		return false
	}
	switch m.Role {
	case RoleOwner, RoleAdmin, RoleModerator:
		return true
	}
	return false
}

// Leave soft-closes the membership. Leaving twice is a no-op.
func (m *Membership) Leave(now time.Time) bool {
	if m.LeftAt != nil {
		return false
	}
	m.LeftAt = &now
	return true
}

// Rejoin re-activates a previously closed membership.
func (m *Membership) Rejoin(role Role, now time.Time) {
	m.LeftAt = nil
	m.JoinedAt = now
	m.Role = role
	m.CanSendMessages = true
	m.CanAddMembers = role == RoleOwner || role == RoleAdmin
}

// ValidateMembers checks the membership cardinality rules for a new conversation.
// memberIDs must already include the creator.
func ValidateMembers(t Type, memberIDs []uuid.UUID) error {
	if !t.Valid() {
		return fmt.Errorf("%w: unknown conversation type %q", chat_errors.ErrInvalidInput, t)
	}
	distinct := make(map[uuid.UUID]struct{}, len(memberIDs))
	for _, id := range memberIDs {
		if id == uuid.Nil {
			return fmt.Errorf("%w: empty member id", chat_errors.ErrInvalidInput)
		}
		distinct[id] = struct{}{}
	}
	if t == TypeDirect && len(distinct) != 2 {
		return fmt.Errorf("%w: direct conversation needs exactly two distinct members", chat_errors.ErrInvalidInput)
	}
	if len(distinct) < 1 {
		return fmt.Errorf("%w: conversation needs at least one member", chat_errors.ErrInvalidInput)
	}
	return nil
}
