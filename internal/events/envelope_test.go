package events

import (
	"encoding/json"
	"testing"
	"time"

	"chatcore/internal/domain/message"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeFlattensType(t *testing.T) {
	user := uuid.New()
	raw, err := Encode(Typing{UserID: user, Username: "bob", IsTyping: true})
	require.NoError(t, err)

	var fields map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &fields))
	assert.Equal(t, "typing", fields["type"])
	assert.Equal(t, user.String(), fields["user_id"])
	assert.Equal(t, "bob", fields["username"])
	assert.Equal(t, true, fields["is_typing"])
}

func TestEncodeErrorFrame(t *testing.T) {
	raw, err := Encode(Error{Message: "Forbidden"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"error":"Forbidden"}`, string(raw))

	ev, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, Error{Message: "Forbidden"}, ev)
}

func TestEncodeReadReceiptNeverNull(t *testing.T) {
	raw, err := Encode(ReadReceipt{UserID: uuid.New()})
	require.NoError(t, err)

	var fields map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &fields))
	assert.Equal(t, "[]", string(fields["message_ids"]))
}

func TestChatMessagePayload(t *testing.T) {
	author := uuid.New()
	created := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	m := message.Message{
		ID:             uuid.New(),
		ConversationID: uuid.New(),
		AuthorID:       &author,
		AuthorName:     "alice",
		Type:           message.TypeText,
		Content:        "hi",
		CreatedAt:      created,
	}

	raw, err := Encode(ChatMessage{Message: NewMessagePayload(m)})
	require.NoError(t, err)

	ev, err := Decode(raw)
	require.NoError(t, err)
	cm, ok := ev.(ChatMessage)
	require.True(t, ok)
	assert.Equal(t, m.ID, cm.Message.ID)
	assert.Equal(t, "alice", cm.Message.AuthorUsername)
	assert.Equal(t, "2024-05-01T10:00:00Z", cm.Message.CreatedAt)
	assert.Nil(t, cm.Message.EditedAt)
}

func TestSystemMessagePayload(t *testing.T) {
	p := NewMessagePayload(message.Message{ID: uuid.New(), Type: message.TypeSystem, Content: "x"})
	assert.Nil(t, p.AuthorID)
	assert.Equal(t, message.SystemAuthorName, p.AuthorUsername)
}

func TestDecodeUnknownKind(t *testing.T) {
	_, err := Decode([]byte(`{"type":"call_offer"}`))
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestEchoSuppression(t *testing.T) {
	user := uuid.New()

	for _, ev := range []Event{Typing{UserID: user}, UserJoin{UserID: user}, UserLeave{UserID: user}} {
		id, ok := EchoSuppressedFor(ev)
		assert.True(t, ok, ev.Kind())
		assert.Equal(t, user, id)
	}
	for _, ev := range []Event{ChatMessage{}, ReadReceipt{UserID: user}, MessageEdited{}, MessageDeleted{UserID: user}, Reaction{UserID: user}} {
		_, ok := EchoSuppressedFor(ev)
		assert.False(t, ok, ev.Kind())
	}
}

func TestWrapCarriesSuppression(t *testing.T) {
	user := uuid.New()
	env, err := Wrap(UserJoin{UserID: user, Username: "a"})
	require.NoError(t, err)
	assert.Equal(t, KindUserJoin, env.Kind)
	require.NotNil(t, env.SuppressTo)
	assert.Equal(t, user, *env.SuppressTo)

	env, err = Wrap(MessageDeleted{MessageID: uuid.New(), UserID: user})
	require.NoError(t, err)
	assert.Nil(t, env.SuppressTo)
}

func TestParseChannel(t *testing.T) {
	id := uuid.New()

	scope, got, err := ParseChannel(ConversationChannel(id))
	require.NoError(t, err)
	assert.Equal(t, ScopeConversation, scope)
	assert.Equal(t, id, got)

	scope, got, err = ParseChannel(UserChannel(id))
	require.NoError(t, err)
	assert.Equal(t, ScopeUser, scope)
	assert.Equal(t, id, got)

	_, _, err = ParseChannel("channel:call:" + id.String())
	assert.Error(t, err)
	_, _, err = ParseChannel("channel:user:not-a-uuid")
	assert.Error(t, err)
}
