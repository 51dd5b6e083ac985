// Package events defines the outbound real-time event model.
//
// Event is a closed sum type: every variant lives in this package and the
// encoder switches over all of them.
package events

import (
	"time"

	"chatcore/internal/domain/message"

	"github.com/google/uuid"
)

// Kind is the wire value of the "type" field.
type Kind string

const (
	KindChatMessage    Kind = "chat_message"
	KindTyping         Kind = "typing"
	KindReadReceipt    Kind = "read_receipt"
	KindMessageEdited  Kind = "message_edited"
	KindMessageDeleted Kind = "message_deleted"
	KindReaction       Kind = "reaction"
	KindUserJoin       Kind = "user_join"
	KindUserLeave      Kind = "user_leave"
	KindNotification   Kind = "notification"
	KindError          Kind = "error"
)

type Event interface {
	Kind() Kind
	isEvent()
}

// MessagePayload is the serialized form of a message.
type MessagePayload struct {
	ID             uuid.UUID  `json:"id"`
	ConversationID uuid.UUID  `json:"conversation_id"`
	AuthorID       *uuid.UUID `json:"author_id"`
	AuthorUsername string     `json:"author_username"`
	Content        string     `json:"content"`
	Type           string     `json:"type"`
	CreatedAt      string     `json:"created_at"`
	IsEdited       bool       `json:"is_edited"`
	EditedAt       *string    `json:"edited_at"`
	ReplyToID      *uuid.UUID `json:"reply_to_id"`
}

func isoTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func NewMessagePayload(m message.Message) MessagePayload {
	p := MessagePayload{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		AuthorID:       m.AuthorID,
		AuthorUsername: m.DisplayAuthor(),
		Content:        m.Content,
		Type:           string(m.Type),
		CreatedAt:      isoTime(m.CreatedAt),
		IsEdited:       m.IsEdited,
		ReplyToID:      m.ReplyToID,
	}
	if m.EditedAt != nil {
		edited := isoTime(*m.EditedAt)
		p.EditedAt = &edited
	}
	return p
}

type ChatMessage struct {
	Message MessagePayload `json:"message"`
}

type Typing struct {
	UserID   uuid.UUID `json:"user_id"`
	Username string    `json:"username"`
	IsTyping bool      `json:"is_typing"`
}

type ReadReceipt struct {
	UserID     uuid.UUID   `json:"user_id"`
	MessageIDs []uuid.UUID `json:"message_ids"`
}

type MessageEdited struct {
	Message MessagePayload `json:"message"`
}

type MessageDeleted struct {
	MessageID uuid.UUID `json:"message_id"`
	UserID    uuid.UUID `json:"user_id"`
}

type ReactionAction string

const (
	ReactionAdd    ReactionAction = "add"
	ReactionRemove ReactionAction = "remove"
)

type Reaction struct {
	MessageID uuid.UUID      `json:"message_id"`
	UserID    uuid.UUID      `json:"user_id"`
	Emoji     string         `json:"emoji"`
	Action    ReactionAction `json:"action"`
}

type UserJoin struct {
	UserID   uuid.UUID `json:"user_id"`
	Username string    `json:"username"`
}

type UserLeave struct {
	UserID   uuid.UUID `json:"user_id"`
	Username string    `json:"username"`
}

// NotificationBody is delivered on a user's own channel, outside any
// conversation view.
type NotificationBody struct {
	Kind           string     `json:"kind"`
	ConversationID uuid.UUID  `json:"conversation_id"`
	MessageID      *uuid.UUID `json:"message_id,omitempty"`
	FromUserID     *uuid.UUID `json:"from_user_id,omitempty"`
	FromUsername   string     `json:"from_username,omitempty"`
	Preview        string     `json:"preview,omitempty"`
	CreatedAt      string     `json:"created_at"`
}

type Notification struct {
	Notification NotificationBody `json:"notification"`
}

// Error is a local-only frame; it is never published.
type Error struct {
	Message string `json:"error"`
}

func (ChatMessage) Kind() Kind    { return KindChatMessage }
func (Typing) Kind() Kind         { return KindTyping }
func (ReadReceipt) Kind() Kind    { return KindReadReceipt }
func (MessageEdited) Kind() Kind  { return KindMessageEdited }
func (MessageDeleted) Kind() Kind { return KindMessageDeleted }
func (Reaction) Kind() Kind       { return KindReaction }
func (UserJoin) Kind() Kind       { return KindUserJoin }
func (UserLeave) Kind() Kind      { return KindUserLeave }
func (Notification) Kind() Kind   { return KindNotification }
func (Error) Kind() Kind          { return KindError }

func (ChatMessage) isEvent()    {}
func (Typing) isEvent()         {}
func (ReadReceipt) isEvent()    {}
func (MessageEdited) isEvent()  {}
func (MessageDeleted) isEvent() {}
func (Reaction) isEvent()       {}
func (UserJoin) isEvent()       {}
func (UserLeave) isEvent()      {}
func (Notification) isEvent()   {}
func (Error) isEvent()          {}

// NewNotification stamps a notification body with its creation time.
func NewNotification(body NotificationBody, at time.Time) Notification {
	body.CreatedAt = isoTime(at)
	return Notification{Notification: body}
}

// EchoSuppressedFor returns the user that must not receive ev back.
// Only typing, user_join and user_leave are suppressed; every other kind is
// echoed to its originator.
func EchoSuppressedFor(ev Event) (uuid.UUID, bool) {
	switch e := ev.(type) {
	case Typing:
		return e.UserID, true
	case UserJoin:
		return e.UserID, true
	case UserLeave:
		return e.UserID, true
	}
	return uuid.Nil, false
}
