package redis

import (
	"context"
	"testing"
	"time"

	"chatcore/internal/testutil"
	"chatcore/internal/typing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypingStoreSetListClear(t *testing.T) {
	mr, client := testutil.NewRedis(t)
	store := NewTypingStore(client, time.Hour)
	ctx := context.Background()

	conv := uuid.New()
	alice, bob := uuid.New(), uuid.New()
	t0 := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, store.Set(ctx, typing.Indicator{ConversationID: conv, UserID: bob, Username: "bob", StartedAt: t0.Add(time.Second)}))
	require.NoError(t, store.Set(ctx, typing.Indicator{ConversationID: conv, UserID: alice, Username: "alice", StartedAt: t0}))
	assert.Equal(t, time.Hour, mr.TTL(typingKey(conv)))

	list, err := store.List(ctx, conv)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "alice", list[0].Username)
	assert.True(t, t0.Equal(list[0].StartedAt))
	assert.Equal(t, conv, list[1].ConversationID)

	// Re-setting refreshes started_at instead of adding a second entry.
	require.NoError(t, store.Set(ctx, typing.Indicator{ConversationID: conv, UserID: alice, Username: "alice", StartedAt: t0.Add(5 * time.Second)}))
	list, err = store.List(ctx, conv)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "bob", list[0].Username)

	require.NoError(t, store.Clear(ctx, conv, bob))
	require.NoError(t, store.Clear(ctx, conv, bob))
	list, err = store.List(ctx, conv)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, alice, list[0].UserID)
}

func TestTypingStoreKeepsExpiredUntilRead(t *testing.T) {
	_, client := testutil.NewRedis(t)
	store := NewTypingStore(client, time.Hour)
	ctx := context.Background()

	conv := uuid.New()
	t0 := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, store.Set(ctx, typing.Indicator{ConversationID: conv, UserID: uuid.New(), StartedAt: t0}))

	all, err := store.List(ctx, conv)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	active, err := typing.ActiveIn(ctx, store, conv, typing.DefaultTimeout, t0.Add(time.Minute))
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestTypingStoreSkipsMalformedFields(t *testing.T) {
	mr, client := testutil.NewRedis(t)
	store := NewTypingStore(client, time.Hour)
	conv := uuid.New()

	mr.HSet(typingKey(conv), "not-a-uuid", `{"username":"x"}`)
	mr.HSet(typingKey(conv), uuid.NewString(), `garbage`)

	list, err := store.List(context.Background(), conv)
	require.NoError(t, err)
	assert.Empty(t, list)
}
