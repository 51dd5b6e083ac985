package redis

import (
	"context"
	"sync"
	"testing"
	"time"

	"chatcore/internal/events"
	"chatcore/internal/fanout"
	"chatcore/internal/testutil"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSubscriber struct {
	id     string
	userID uuid.UUID

	mu     sync.Mutex
	frames [][]byte
}

func (r *recordingSubscriber) ID() string        { return r.id }
func (r *recordingSubscriber) UserID() uuid.UUID { return r.userID }

func (r *recordingSubscriber) Deliver(_ events.Event, payload []byte) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, payload)
	return true
}

func (r *recordingSubscriber) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.frames)
}

func TestBackplaneCarriesFramesBetweenRouters(t *testing.T) {
	mr, client := testutil.NewRedis(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sender := fanout.NewRouter(nil, fanout.WithBackplane(NewBackplane(client)))
	receiver := fanout.NewRouter(nil, fanout.WithBackplane(NewBackplane(client)))

	done := make(chan error, 1)
	go func() { done <- receiver.Run(ctx) }()
	require.Eventually(t, func() bool { return mr.PubSubNumPat() > 0 }, 2*time.Second, 10*time.Millisecond)

	conv := uuid.New()
	alice, bob := uuid.New(), uuid.New()
	aliceSub := &recordingSubscriber{id: "a", userID: alice}
	bobSub := &recordingSubscriber{id: "b", userID: bob}
	receiver.Subscribe(conv, aliceSub)
	receiver.Subscribe(conv, bobSub)

	require.NoError(t, sender.Publish(ctx, conv, events.Typing{UserID: alice, IsTyping: true}))
	require.NoError(t, sender.Publish(ctx, conv, events.MessageDeleted{MessageID: uuid.New(), UserID: alice}))

	require.Eventually(t, func() bool { return bobSub.count() == 2 }, 2*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return aliceSub.count() == 1 }, 2*time.Second, 10*time.Millisecond)

	bobSub.mu.Lock()
	first := bobSub.frames[0]
	bobSub.mu.Unlock()
	ev, err := events.Decode(first)
	require.NoError(t, err)
	assert.Equal(t, events.KindTyping, ev.Kind())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber did not stop")
	}
}

func TestSubscribeReturnsOnCancelWithoutTraffic(t *testing.T) {
	mr, client := testutil.NewRedis(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- NewSubscriber(client).Subscribe(ctx, []string{"channel:*"}, func(string, []byte) {})
	}()
	require.Eventually(t, func() bool { return mr.PubSubNumPat() > 0 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Subscribe blocked after cancel")
	}
}

func TestSubscribeReportsDialFailure(t *testing.T) {
	client := goredis.NewClient(&goredis.Options{Addr: "127.0.0.1:1", DialTimeout: 200 * time.Millisecond, MaxRetries: -1})
	defer client.Close()

	err := NewSubscriber(client).Subscribe(context.Background(), []string{"channel:*"}, func(string, []byte) {})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "psubscribe")
}

func TestPublisherWrapsErrors(t *testing.T) {
	client := goredis.NewClient(&goredis.Options{Addr: "127.0.0.1:1", DialTimeout: 200 * time.Millisecond, MaxRetries: -1})
	defer client.Close()

	err := NewPublisher(client).Publish(context.Background(), "channel:user:x", []byte("{}"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "publish to channel:user:x")
}
