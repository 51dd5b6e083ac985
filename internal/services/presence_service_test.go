package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"chatcore/internal/domain/presence"
	chat_errors "chatcore/pkg/errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPresenceCounting(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := uuid.New()

	rec, err := f.presence.GoOnline(ctx, user)
	require.NoError(t, err)
	assert.True(t, rec.IsOnline)
	assert.Equal(t, 1, rec.ConnectionCount)

	rec, err = f.presence.GoOnline(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, 2, rec.ConnectionCount)

	rec, err = f.presence.GoOffline(ctx, user)
	require.NoError(t, err)
	assert.True(t, rec.IsOnline)
	assert.Equal(t, 0, f.mirror.offlineCount())

	f.clock.Advance(time.Minute)
	rec, err = f.presence.GoOffline(ctx, user)
	require.NoError(t, err)
	assert.False(t, rec.IsOnline)
	require.NotNil(t, rec.LastSeenAt)
	assert.True(t, f.clock.Now().Equal(*rec.LastSeenAt))
	assert.Equal(t, 1, f.mirror.offlineCount())

	rec, err = f.presence.GoOffline(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, 0, rec.ConnectionCount, "never negative")
	assert.Equal(t, 1, f.mirror.offlineCount(), "no second offline transition")
}

// The SQLite test pool holds a single connection, so these goroutines are
// serialized by the pool and never contend on the FOR UPDATE row lock. The
// test pins the counting rules under concurrent callers; lock contention
// itself is only exercised against Postgres.
func TestPresenceConcurrentConnections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := uuid.New()
	const n = 20

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.presence.GoOnline(ctx, user)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	rec, err := f.presence.Get(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, n, rec.ConnectionCount)

	for i := 0; i < n+5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.presence.GoOffline(ctx, user)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	rec, err = f.presence.Get(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, 0, rec.ConnectionCount)
	assert.False(t, rec.IsOnline)
	assert.Equal(t, 1, f.mirror.offlineCount(), "exactly one drain to zero")
}

func TestUpdateActivity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user, conv := uuid.New(), uuid.New()

	f.clock.Advance(time.Hour)
	rec, err := f.presence.UpdateActivity(ctx, user, &conv)
	require.NoError(t, err)
	assert.True(t, f.clock.Now().Equal(rec.LastActivityAt))
	require.NotNil(t, rec.CurrentConversationID)
	assert.Equal(t, conv, *rec.CurrentConversationID)
	assert.False(t, rec.IsOnline, "activity does not bring a user online")
}

func TestPresenceView(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice, bob, stranger := uuid.New(), uuid.New(), uuid.New()
	f.group(t, alice, bob)

	_, err := f.presence.GoOnline(ctx, alice)
	require.NoError(t, err)

	v, err := f.presence.View(ctx, stranger, alice)
	require.NoError(t, err)
	require.NotNil(t, v.IsOnline)
	assert.True(t, *v.IsOnline)

	_, err = f.presence.UpdatePrivacy(ctx, alice, presence.VisibleContacts, presence.VisibleNobody)
	require.NoError(t, err)

	v, err = f.presence.View(ctx, stranger, alice)
	require.NoError(t, err)
	assert.Nil(t, v.IsOnline)

	v, err = f.presence.View(ctx, bob, alice)
	require.NoError(t, err)
	require.NotNil(t, v.IsOnline, "bob shares a conversation with alice")
	assert.True(t, *v.IsOnline)

	v, err = f.presence.View(ctx, alice, alice)
	require.NoError(t, err)
	assert.NotNil(t, v.IsOnline)

	v, err = f.presence.View(ctx, alice, uuid.New())
	require.NoError(t, err)
	require.NotNil(t, v.IsOnline)
	assert.False(t, *v.IsOnline, "unknown users read as offline")

	_, err = f.presence.UpdatePrivacy(ctx, alice, "friends", presence.VisibleNobody)
	assert.ErrorIs(t, err, chat_errors.ErrInvalidInput)
}
