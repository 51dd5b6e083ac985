// Package commands parses inbound client frames into typed commands.
package commands

import (
	"errors"
	"strings"

	"chatcore/internal/events"
	chat_errors "chatcore/pkg/errors"

	"github.com/google/uuid"
)

type Type string

const (
	TypeChatMessage   Type = "chat_message"
	TypeTyping        Type = "typing"
	TypeReadReceipt   Type = "read_receipt"
	TypeEditMessage   Type = "edit_message"
	TypeDeleteMessage Type = "delete_message"
	TypeReaction      Type = "reaction"
)

var ErrUnknownCommand = errors.New("unknown command type")

const maxEmojiLength = 32

// Command is a closed set; the session dispatches with a type switch.
type Command interface {
	CommandType() Type
	Validate() error
	isCommand()
}

type SendMessage struct {
	Message string
	ReplyTo *uuid.UUID
}

type SetTyping struct {
	IsTyping bool
}

type ReadReceipt struct {
	MessageIDs []uuid.UUID
}

type EditMessage struct {
	MessageID uuid.UUID
	Content   string
}

type DeleteMessage struct {
	MessageID uuid.UUID
}

type React struct {
	MessageID uuid.UUID
	Emoji     string
	Action    events.ReactionAction
}

func (SendMessage) CommandType() Type   { return TypeChatMessage }
func (SetTyping) CommandType() Type     { return TypeTyping }
func (ReadReceipt) CommandType() Type   { return TypeReadReceipt }
func (EditMessage) CommandType() Type   { return TypeEditMessage }
func (DeleteMessage) CommandType() Type { return TypeDeleteMessage }
func (React) CommandType() Type         { return TypeReaction }

func (SendMessage) isCommand()   {}
func (SetTyping) isCommand()     {}
func (ReadReceipt) isCommand()   {}
func (EditMessage) isCommand()   {}
func (DeleteMessage) isCommand() {}
func (React) isCommand()         {}

// Blank reports whether the message is empty or whitespace only.
func (c SendMessage) Blank() bool {
	return strings.TrimSpace(c.Message) == ""
}

func (c SendMessage) Validate() error {
	return nil
}

func (c SetTyping) Validate() error {
	return nil
}

func (c ReadReceipt) Validate() error {
	return nil
}

// Blank reports whether the new content is empty or whitespace only.
func (c EditMessage) Blank() bool {
	return strings.TrimSpace(c.Content) == ""
}

func (c EditMessage) Validate() error {
	if c.MessageID == uuid.Nil {
		return chat_errors.ErrInvalidPayload
	}
	return nil
}

func (c DeleteMessage) Validate() error {
	if c.MessageID == uuid.Nil {
		return chat_errors.ErrInvalidPayload
	}
	return nil
}

func (c React) Validate() error {
	if c.MessageID == uuid.Nil {
		return chat_errors.ErrInvalidPayload
	}
	emoji := strings.TrimSpace(c.Emoji)
	if emoji == "" || len(emoji) > maxEmojiLength {
		return chat_errors.ErrInvalidPayload
	}
	if c.Action != events.ReactionAdd && c.Action != events.ReactionRemove {
		return chat_errors.ErrInvalidPayload
	}
	return nil
}
