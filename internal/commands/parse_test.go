package commands

import (
	"fmt"
	"testing"

	"chatcore/internal/events"
	chat_errors "chatcore/pkg/errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseChatMessage(t *testing.T) {
	parent := uuid.New()
	cmd, err := Parse([]byte(fmt.Sprintf(`{"type":"chat_message","message":"hi","reply_to":"%s"}`, parent)))
	require.NoError(t, err)

	send, ok := cmd.(SendMessage)
	require.True(t, ok)
	assert.Equal(t, "hi", send.Message)
	require.NotNil(t, send.ReplyTo)
	assert.Equal(t, parent, *send.ReplyTo)
	assert.False(t, send.Blank())
}

func TestParseBlankMessageIsReturned(t *testing.T) {
	cmd, err := Parse([]byte(`{"type":"chat_message","message":"   "}`))
	require.NoError(t, err)
	assert.True(t, cmd.(SendMessage).Blank())

	cmd, err = Parse([]byte(`{"type":"chat_message"}`))
	require.NoError(t, err)
	assert.True(t, cmd.(SendMessage).Blank())

	cmd, err = Parse([]byte(`{"type":"edit_message","content":""}`))
	require.NoError(t, err)
	assert.True(t, cmd.(EditMessage).Blank())
}

func TestParseRejectsMalformed(t *testing.T) {
	cases := []string{
		`not json`,
		`["chat_message"]`,
		`{"type":"typing","is_typing":"yes"}`,
		`{"type":"chat_message","message":"x","reply_to":"nope"}`,
		`{"type":"delete_message","message_id":"123"}`,
		`{"type":"edit_message","content":"x"}`,
		`{"type":"reaction","message_id":"` + uuid.NewString() + `","emoji":"","action":"add"}`,
		`{"type":"reaction","message_id":"` + uuid.NewString() + `","emoji":"x","action":"toggle"}`,
	}
	for _, raw := range cases {
		_, err := Parse([]byte(raw))
		assert.ErrorIs(t, err, chat_errors.ErrInvalidPayload, raw)
	}
}

func TestParseUnknownType(t *testing.T) {
	_, err := Parse([]byte(`{"type":"call_start"}`))
	assert.ErrorIs(t, err, ErrUnknownCommand)

	_, err = Parse([]byte(`{}`))
	assert.ErrorIs(t, err, ErrUnknownCommand)
}

func TestParseReadReceiptKeepsValidIDs(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	raw := fmt.Sprintf(`{"type":"read_receipt","message_ids":["%s","junk",42,"%s","%s"]}`, a, b, a)

	cmd, err := Parse([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{a, b}, cmd.(ReadReceipt).MessageIDs)
}

func TestParseTypingDefaultsToStopped(t *testing.T) {
	cmd, err := Parse([]byte(`{"type":"typing"}`))
	require.NoError(t, err)
	assert.False(t, cmd.(SetTyping).IsTyping)

	cmd, err = Parse([]byte(`{"type":"typing","is_typing":true}`))
	require.NoError(t, err)
	assert.True(t, cmd.(SetTyping).IsTyping)
}

func TestParseReaction(t *testing.T) {
	id := uuid.New()
	cmd, err := Parse([]byte(fmt.Sprintf(`{"type":"reaction","message_id":"%s","emoji":" 👍 ","action":"remove"}`, id)))
	require.NoError(t, err)

	r := cmd.(React)
	assert.Equal(t, id, r.MessageID)
	assert.Equal(t, "👍", r.Emoji)
	assert.Equal(t, events.ReactionRemove, r.Action)
	assert.Equal(t, TypeReaction, r.CommandType())
}
