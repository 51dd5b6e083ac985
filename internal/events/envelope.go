package events

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var ErrUnknownKind = errors.New("unknown event kind")

// Encode renders ev as its wire frame.
func Encode(ev Event) ([]byte, error) {
	switch e := ev.(type) {
	case ChatMessage:
		return marshalTyped(e.Kind(), e)
	case Typing:
		return marshalTyped(e.Kind(), e)
	case ReadReceipt:
		if e.MessageIDs == nil {
			e.MessageIDs = []uuid.UUID{}
		}
		return marshalTyped(e.Kind(), e)
	case MessageEdited:
		return marshalTyped(e.Kind(), e)
	case MessageDeleted:
		return marshalTyped(e.Kind(), e)
	case Reaction:
		return marshalTyped(e.Kind(), e)
	case UserJoin:
		return marshalTyped(e.Kind(), e)
	case UserLeave:
		return marshalTyped(e.Kind(), e)
	case Notification:
		return marshalTyped(e.Kind(), e)
	case Error:
		return json.Marshal(e)
	}
	return nil, fmt.Errorf("%w: %T", ErrUnknownKind, ev)
}

// marshalTyped flattens v's fields next to "type".
func marshalTyped(kind Kind, v interface{}) ([]byte, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, err
	}
	typ, _ := json.Marshal(kind)
	fields["type"] = typ
	return json.Marshal(fields)
}

// Decode parses a wire frame back into its variant.
func Decode(raw []byte) (Event, error) {
	var head struct {
		Type  Kind    `json:"type"`
		Error *string `json:"error"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, err
	}
	if head.Type == "" && head.Error != nil {
		return Error{Message: *head.Error}, nil
	}

	switch head.Type {
	case KindChatMessage:
		return decodeAs[ChatMessage](raw)
	case KindTyping:
		return decodeAs[Typing](raw)
	case KindReadReceipt:
		return decodeAs[ReadReceipt](raw)
	case KindMessageEdited:
		return decodeAs[MessageEdited](raw)
	case KindMessageDeleted:
		return decodeAs[MessageDeleted](raw)
	case KindReaction:
		return decodeAs[Reaction](raw)
	case KindUserJoin:
		return decodeAs[UserJoin](raw)
	case KindUserLeave:
		return decodeAs[UserLeave](raw)
	case KindNotification:
		return decodeAs[Notification](raw)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownKind, head.Type)
}

func decodeAs[T Event](raw []byte) (Event, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// Envelope wraps an encoded frame for transport between processes.
type Envelope struct {
	Kind       Kind            `json:"kind"`
	SuppressTo *uuid.UUID      `json:"suppress_to,omitempty"`
	Payload    json.RawMessage `json:"payload"`
}

// Wrap encodes ev inside an Envelope.
func Wrap(ev Event) (Envelope, error) {
	payload, err := Encode(ev)
	if err != nil {
		return Envelope{}, err
	}
	env := Envelope{Kind: ev.Kind(), Payload: payload}
	if id, ok := EchoSuppressedFor(ev); ok {
		env.SuppressTo = &id
	}
	return env, nil
}
