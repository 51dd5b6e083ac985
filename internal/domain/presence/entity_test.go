package presence

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectDisconnect(t *testing.T) {
	t0 := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	r := NewRecord(uuid.New(), t0)
	assert.False(t, r.IsOnline)

	assert.True(t, r.Connect(t0), "first connection comes online")
	assert.False(t, r.Connect(t0.Add(time.Second)))
	assert.Equal(t, 2, r.ConnectionCount)
	assert.True(t, r.IsOnline)

	assert.False(t, r.Disconnect(t0.Add(2*time.Second)))
	assert.True(t, r.IsOnline)
	assert.Nil(t, r.LastSeenAt)

	assert.True(t, r.Disconnect(t0.Add(3*time.Second)), "last connection goes offline")
	assert.False(t, r.IsOnline)
	assert.Equal(t, 0, r.ConnectionCount)
	require.NotNil(t, r.LastSeenAt)
	assert.Equal(t, t0.Add(3*time.Second), *r.LastSeenAt)
}

func TestDisconnectFloorsAtZero(t *testing.T) {
	t0 := time.Now().UTC()
	r := NewRecord(uuid.New(), t0)

	assert.False(t, r.Disconnect(t0))
	assert.Equal(t, 0, r.ConnectionCount)
	assert.False(t, r.IsOnline)
	assert.Nil(t, r.LastSeenAt, "no drain happened")
}

func TestTouch(t *testing.T) {
	t0 := time.Now().UTC()
	r := NewRecord(uuid.New(), t0)
	conv := uuid.New()

	r.Touch(t0.Add(time.Minute), &conv)
	assert.Equal(t, t0.Add(time.Minute), r.LastActivityAt)
	require.NotNil(t, r.CurrentConversationID)
	assert.Equal(t, conv, *r.CurrentConversationID)

	r.Touch(t0.Add(2*time.Minute), nil)
	assert.Equal(t, conv, *r.CurrentConversationID)
}

func TestViewFor(t *testing.T) {
	t0 := time.Now().UTC()
	r := NewRecord(uuid.New(), t0)
	r.Connect(t0)
	r.Disconnect(t0.Add(time.Minute))

	v := r.ViewFor(false, false)
	require.NotNil(t, v.IsOnline)
	assert.False(t, *v.IsOnline)
	assert.NotNil(t, v.LastSeenAt)

	r.ShowOnlineStatus = VisibleContacts
	r.ShowLastSeen = VisibleNobody

	v = r.ViewFor(false, false)
	assert.Nil(t, v.IsOnline)
	assert.Nil(t, v.LastActivityAt)
	assert.Nil(t, v.LastSeenAt)

	v = r.ViewFor(false, true)
	assert.NotNil(t, v.IsOnline)
	assert.Nil(t, v.LastSeenAt)

	v = r.ViewFor(true, false)
	assert.NotNil(t, v.IsOnline)
	assert.NotNil(t, v.LastSeenAt, "users always see themselves")
}
