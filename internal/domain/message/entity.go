package message

import (
	"time"

	chat_errors "chatcore/pkg/errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Type string

const (
	TypeText   Type = "text"
	TypeImage  Type = "image"
	TypeVideo  Type = "video"
	TypeAudio  Type = "audio"
	TypeFile   Type = "file"
	TypeSystem Type = "system"
)

func (t Type) Valid() bool {
	switch t {
	case TypeText, TypeImage, TypeVideo, TypeAudio, TypeFile, TypeSystem:
		return true
	}
	return false
}

// SystemAuthorName is shown for messages without an author.
const SystemAuthorName = "System"

// Message represents the messages table
type Message struct {
	ID              uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	ConversationID  uuid.UUID  `gorm:"type:uuid;not null;index:idx_messages_conversation_created,priority:1" json:"conversation_id"`
	AuthorID        *uuid.UUID `gorm:"type:uuid;index:idx_messages_author_created,priority:1" json:"author_id"`
	AuthorName      string     `gorm:"type:varchar(150);not null" json:"author_username"`
	Type            Type       `gorm:"type:varchar(10);not null" json:"type"`
	Content         string     `gorm:"type:text;not null" json:"content"`
	ReplyToID       *uuid.UUID `gorm:"type:uuid" json:"reply_to_id"`
	ForwardedFromID *uuid.UUID `gorm:"type:uuid" json:"forwarded_from_id,omitempty"`
	CreatedAt       time.Time  `gorm:"index:idx_messages_conversation_created,priority:2;index:idx_messages_author_created,priority:2" json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	EditedAt        *time.Time `json:"edited_at"`
	DeletedAt       *time.Time `json:"deleted_at,omitempty"`
	IsEdited        bool       `gorm:"not null" json:"is_edited"`
	IsDeleted       bool       `gorm:"not null;index" json:"is_deleted"`
	IsPinned        bool       `gorm:"not null" json:"is_pinned"`
}

// Reaction represents the reactions table. The composite key makes
// (message, user, emoji) unique.
type Reaction struct {
	MessageID uuid.UUID `gorm:"type:uuid;primaryKey;index:idx_reactions_message_emoji,priority:1" json:"message_id"`
	UserID    uuid.UUID `gorm:"type:uuid;primaryKey" json:"user_id"`
	Emoji     string    `gorm:"type:varchar(32);primaryKey;index:idx_reactions_message_emoji,priority:2" json:"emoji"`
	CreatedAt time.Time `json:"created_at"`
}

func (Message) TableName() string {
	return "messages"
}

func (Reaction) TableName() string {
	return "reactions"
}

func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.Type == "" {
		m.Type = TypeText
	}
	return nil
}

// IsSystem reports whether the message has no author.
func (m Message) IsSystem() bool {
	return m.AuthorID == nil
}

func (m Message) AuthoredBy(userID uuid.UUID) bool {
	return m.AuthorID != nil && *m.AuthorID == userID
}

// DisplayAuthor returns the author name to render, "System" for system messages.
func (m Message) DisplayAuthor() string {
	if m.IsSystem() || m.AuthorName == "" {
		return SystemAuthorName
	}
	return m.AuthorName
}

// Edit replaces the content. Only the author may edit, and never a deleted message.
func (m *Message) Edit(actor uuid.UUID, content string, now time.Time) error {
	if m.IsDeleted {
		return chat_errors.ErrNotFound
	}
	if !m.AuthoredBy(actor) {
		return chat_errors.ErrForbidden
	}
	m.Content = content
	m.IsEdited = true
	m.EditedAt = &now
	return nil
}

// SoftDelete marks the message deleted. Content is kept for the audit trail.
func (m *Message) SoftDelete(actor uuid.UUID, now time.Time) error {
	if m.IsDeleted {
		return chat_errors.ErrNotFound
	}
	if !m.AuthoredBy(actor) {
		return chat_errors.ErrForbidden
	}
	m.IsDeleted = true
	m.DeletedAt = &now
	return nil
}

// SetPinned toggles the pin flag. Deleted messages cannot be pinned.
func (m *Message) SetPinned(pinned bool) error {
	if m.IsDeleted {
		return chat_errors.ErrNotFound
	}
	m.IsPinned = pinned
	return nil
}

// Visible is the client-facing view of a message: deleted messages are hidden.
func (m Message) Visible() bool {
	return !m.IsDeleted
}
