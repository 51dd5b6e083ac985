package redis

import (
	"context"
	"testing"
	"time"

	"chatcore/internal/testutil"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiterFixedWindow(t *testing.T) {
	mr, client := testutil.NewRedis(t)
	limiter := NewRateLimiter(client, RateLimitConfig{
		ConnectLimit:  2,
		ConnectWindow: time.Minute,
		MessageLimit:  5,
		MessageWindow: time.Minute,
	})
	ctx := context.Background()
	user := uuid.New()

	res, err := limiter.AllowConnection(ctx, user)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, 1, res.Remaining)
	assert.Equal(t, 2, res.Limit)

	res, err = limiter.AllowConnection(ctx, user)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, 0, res.Remaining)

	res, err = limiter.AllowConnection(ctx, user)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Greater(t, res.ResetIn, time.Duration(0))

	// Message budget is counted separately.
	res, err = limiter.AllowMessage(ctx, user)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, 4, res.Remaining)

	// Other users are unaffected.
	res, err = limiter.AllowConnection(ctx, uuid.New())
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	mr.FastForward(time.Minute + time.Second)
	res, err = limiter.AllowConnection(ctx, user)
	require.NoError(t, err)
	assert.True(t, res.Allowed, "window expired")
}

func TestRateLimiterReset(t *testing.T) {
	_, client := testutil.NewRedis(t)
	limiter := NewRateLimiter(client, RateLimitConfig{ConnectLimit: 1, ConnectWindow: time.Minute})
	ctx := context.Background()
	user := uuid.New()

	res, err := limiter.AllowConnection(ctx, user)
	require.NoError(t, err)
	require.True(t, res.Allowed)
	res, err = limiter.AllowConnection(ctx, user)
	require.NoError(t, err)
	require.False(t, res.Allowed)

	require.NoError(t, limiter.ResetUser(ctx, user))
	res, err = limiter.AllowConnection(ctx, user)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestRateLimiterDisabled(t *testing.T) {
	_, client := testutil.NewRedis(t)
	limiter := NewRateLimiter(client, RateLimitConfig{})

	for i := 0; i < 10; i++ {
		res, err := limiter.AllowMessage(context.Background(), uuid.New())
		require.NoError(t, err)
		assert.True(t, res.Allowed)
	}
}
