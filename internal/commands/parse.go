package commands

import (
	"encoding/json"
	"fmt"
	"strings"

	"chatcore/internal/events"
	chat_errors "chatcore/pkg/errors"

	"github.com/google/uuid"
)

// wireCommand is the union of every inbound field.
type wireCommand struct {
	Type       Type              `json:"type"`
	Message    *string           `json:"message"`
	ReplyTo    *string           `json:"reply_to"`
	IsTyping   *bool             `json:"is_typing"`
	MessageIDs []json.RawMessage `json:"message_ids"`
	MessageID  string            `json:"message_id"`
	Content    *string           `json:"content"`
	Emoji      string            `json:"emoji"`
	Action     string            `json:"action"`
}

// Parse decodes one inbound frame. Frames that are not a JSON object with
// well-typed fields yield ErrInvalidPayload; an unrecognised type yields
// ErrUnknownCommand. Blank chat and edit content is returned as-is for the
// caller to ignore.
func Parse(raw []byte) (Command, error) {
	var w wireCommand
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", chat_errors.ErrInvalidPayload, err)
	}

	var cmd Command
	switch w.Type {
	case TypeChatMessage:
		c := SendMessage{}
		if w.Message != nil {
			c.Message = *w.Message
		}
		if w.ReplyTo != nil && strings.TrimSpace(*w.ReplyTo) != "" {
			id, err := uuid.Parse(*w.ReplyTo)
			if err != nil {
				return nil, fmt.Errorf("%w: reply_to", chat_errors.ErrInvalidPayload)
			}
			c.ReplyTo = &id
		}
		cmd = c
	case TypeTyping:
		c := SetTyping{}
		if w.IsTyping != nil {
			c.IsTyping = *w.IsTyping
		}
		cmd = c
	case TypeReadReceipt:
		cmd = ReadReceipt{MessageIDs: parseIDs(w.MessageIDs)}
	case TypeEditMessage:
		c := EditMessage{}
		if w.Content != nil {
			c.Content = *w.Content
		}
		if c.Blank() {
			return c, nil
		}
		id, err := parseID(w.MessageID)
		if err != nil {
			return nil, err
		}
		c.MessageID = id
		cmd = c
	case TypeDeleteMessage:
		id, err := parseID(w.MessageID)
		if err != nil {
			return nil, err
		}
		cmd = DeleteMessage{MessageID: id}
	case TypeReaction:
		id, err := parseID(w.MessageID)
		if err != nil {
			return nil, err
		}
		cmd = React{
			MessageID: id,
			Emoji:     strings.TrimSpace(w.Emoji),
			Action:    events.ReactionAction(w.Action),
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, w.Type)
	}

	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	return cmd, nil
}

func parseID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(s))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: message_id", chat_errors.ErrInvalidPayload)
	}
	return id, nil
}

// parseIDs keeps the well-formed ids and drops the rest, deduplicated in
// input order.
func parseIDs(raw []json.RawMessage) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(raw))
	out := make([]uuid.UUID, 0, len(raw))
	for _, r := range raw {
		var s string
		if err := json.Unmarshal(r, &s); err != nil {
			continue
		}
		id, err := uuid.Parse(s)
		if err != nil {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
