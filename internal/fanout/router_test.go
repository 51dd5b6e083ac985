package fanout

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"chatcore/internal/events"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSubscriber struct {
	id     string
	userID uuid.UUID
	full   bool

	mu     sync.Mutex
	events []events.Event
}

func newSubscriber(userID uuid.UUID) *fakeSubscriber {
	return &fakeSubscriber{id: uuid.NewString(), userID: userID}
}

func (f *fakeSubscriber) ID() string        { return f.id }
func (f *fakeSubscriber) UserID() uuid.UUID { return f.userID }

func (f *fakeSubscriber) Deliver(ev events.Event, _ []byte) bool {
	if f.full {
		return false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	return true
}

func (f *fakeSubscriber) received() []events.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]events.Event(nil), f.events...)
}

func kinds(evs []events.Event) []events.Kind {
	out := make([]events.Kind, 0, len(evs))
	for _, ev := range evs {
		out = append(out, ev.Kind())
	}
	return out
}

func TestPublishEchoesChatToAuthor(t *testing.T) {
	r := NewRouter(nil)
	conv := uuid.New()
	alice, bob := uuid.New(), uuid.New()
	a, b := newSubscriber(alice), newSubscriber(bob)
	r.Subscribe(conv, a)
	r.Subscribe(conv, b)

	require.NoError(t, r.Publish(context.Background(), conv, events.ChatMessage{
		Message: events.MessagePayload{ID: uuid.New(), AuthorID: &alice},
	}))

	assert.Len(t, a.received(), 1)
	assert.Len(t, b.received(), 1)
}

func TestPublishSuppressesTypingForEverySessionOfOriginator(t *testing.T) {
	r := NewRouter(nil)
	conv := uuid.New()
	alice, bob := uuid.New(), uuid.New()
	aliceTab1, aliceTab2, bobTab := newSubscriber(alice), newSubscriber(alice), newSubscriber(bob)
	for _, s := range []*fakeSubscriber{aliceTab1, aliceTab2, bobTab} {
		r.Subscribe(conv, s)
	}

	ctx := context.Background()
	require.NoError(t, r.Publish(ctx, conv, events.Typing{UserID: alice, IsTyping: true}))
	require.NoError(t, r.Publish(ctx, conv, events.UserJoin{UserID: alice}))
	require.NoError(t, r.Publish(ctx, conv, events.UserLeave{UserID: alice}))

	assert.Empty(t, aliceTab1.received())
	assert.Empty(t, aliceTab2.received())
	assert.Equal(t, []events.Kind{events.KindTyping, events.KindUserJoin, events.KindUserLeave}, kinds(bobTab.received()))
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	r := NewRouter(nil)
	conv := uuid.New()
	s := newSubscriber(uuid.New())

	r.Subscribe(conv, s)
	assert.Equal(t, 1, r.SubscriberCount(conv))
	r.Unsubscribe(conv, s)
	r.Unsubscribe(conv, s)
	assert.Equal(t, 0, r.SubscriberCount(conv))

	require.NoError(t, r.Publish(context.Background(), conv, events.MessageDeleted{MessageID: uuid.New()}))
	assert.Empty(t, s.received())
}

func TestPublishIsScopedToConversation(t *testing.T) {
	r := NewRouter(nil)
	convA, convB := uuid.New(), uuid.New()
	inA, inB := newSubscriber(uuid.New()), newSubscriber(uuid.New())
	r.Subscribe(convA, inA)
	r.Subscribe(convB, inB)

	require.NoError(t, r.Publish(context.Background(), convA, events.MessageDeleted{MessageID: uuid.New()}))
	assert.Len(t, inA.received(), 1)
	assert.Empty(t, inB.received())
}

func TestPublishToUser(t *testing.T) {
	r := NewRouter(nil)
	user := uuid.New()
	tab1, tab2, other := newSubscriber(user), newSubscriber(user), newSubscriber(uuid.New())
	r.Register(tab1)
	r.Register(tab2)
	r.Register(other)
	assert.Equal(t, 2, r.UserSessionCount(user))

	ev := events.NewNotification(events.NotificationBody{Kind: "mention", ConversationID: uuid.New()}, time.Now())
	require.NoError(t, r.PublishToUser(context.Background(), user, ev))

	assert.Len(t, tab1.received(), 1)
	assert.Len(t, tab2.received(), 1)
	assert.Empty(t, other.received())

	r.Unregister(tab1)
	assert.Equal(t, 1, r.UserSessionCount(user))
}

func TestErrorEventsAreNotRoutable(t *testing.T) {
	r := NewRouter(nil)
	conv := uuid.New()
	s := newSubscriber(uuid.New())
	r.Subscribe(conv, s)

	assert.Error(t, r.Publish(context.Background(), conv, events.Error{Message: "Forbidden"}))
	assert.Empty(t, s.received())
}

func TestPublishPreservesOrder(t *testing.T) {
	r := NewRouter(nil)
	conv := uuid.New()
	s := newSubscriber(uuid.New())
	r.Subscribe(conv, s)

	ids := make([]uuid.UUID, 50)
	for i := range ids {
		ids[i] = uuid.New()
		require.NoError(t, r.Publish(context.Background(), conv, events.MessageDeleted{MessageID: ids[i]}))
	}

	got := s.received()
	require.Len(t, got, len(ids))
	for i, ev := range got {
		assert.Equal(t, ids[i], ev.(events.MessageDeleted).MessageID)
	}
}

func TestFullSubscriberDoesNotBlockOthers(t *testing.T) {
	r := NewRouter(nil)
	conv := uuid.New()
	slow := newSubscriber(uuid.New())
	slow.full = true
	fast := newSubscriber(uuid.New())
	r.Subscribe(conv, slow)
	r.Subscribe(conv, fast)

	require.NoError(t, r.Publish(context.Background(), conv, events.MessageDeleted{MessageID: uuid.New()}))
	assert.Len(t, fast.received(), 1)
}

// loopback is an in-process backplane that hands every publish straight to
// the subscribed handler.
type loopback struct {
	mu      sync.Mutex
	handler func(channel string, payload []byte)
	ready   chan struct{}
}

func (l *loopback) Publish(_ context.Context, channel string, payload []byte) error {
	l.mu.Lock()
	h := l.handler
	l.mu.Unlock()
	if h == nil {
		return errors.New("not subscribed")
	}
	h(channel, payload)
	return nil
}

func (l *loopback) Subscribe(ctx context.Context, _ []string, handler func(channel string, payload []byte)) error {
	l.mu.Lock()
	l.handler = handler
	l.mu.Unlock()
	close(l.ready)
	<-ctx.Done()
	return nil
}

func TestBackplaneRoundTrip(t *testing.T) {
	bp := &loopback{ready: make(chan struct{})}
	r := NewRouter(nil, WithBackplane(bp))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()
	<-bp.ready

	conv := uuid.New()
	alice, bob := uuid.New(), uuid.New()
	a, b := newSubscriber(alice), newSubscriber(bob)
	r.Subscribe(conv, a)
	r.Subscribe(conv, b)
	r.Register(b)

	require.NoError(t, r.Publish(ctx, conv, events.Typing{UserID: alice, Username: "alice", IsTyping: true}))
	require.NoError(t, r.PublishToUser(ctx, bob, events.NewNotification(events.NotificationBody{Kind: "mention"}, time.Now())))

	assert.Empty(t, a.received(), "suppression survives the backplane")
	got := b.received()
	require.Len(t, got, 2)
	typing, ok := got[0].(events.Typing)
	require.True(t, ok)
	assert.Equal(t, "alice", typing.Username)
	assert.Equal(t, events.KindNotification, got[1].Kind())

	cancel()
	assert.NoError(t, <-done)
}

func TestRunWithoutBackplaneWaitsForContext(t *testing.T) {
	r := NewRouter(nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestSubscribersOfFiltersByUser(t *testing.T) {
	r := NewRouter(nil)
	conv, other := uuid.New(), uuid.New()
	alice, bob := uuid.New(), uuid.New()
	a1, a2, b := newSubscriber(alice), newSubscriber(alice), newSubscriber(bob)
	r.Subscribe(conv, a1)
	r.Subscribe(conv, a2)
	r.Subscribe(conv, b)
	r.Subscribe(other, newSubscriber(alice))

	got := r.SubscribersOf(conv, alice)
	assert.ElementsMatch(t, []Subscriber{a1, a2}, got)
	assert.Empty(t, r.SubscribersOf(uuid.New(), alice))
}
