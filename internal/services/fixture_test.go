package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"chatcore/internal/domain/conversation"
	"chatcore/internal/events"
	"chatcore/internal/proxy"
	"chatcore/internal/repository"
	"chatcore/internal/testutil"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type capturedNotification struct {
	userID uuid.UUID
	event  events.Event
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []capturedNotification
}

func (f *fakeNotifier) PublishToUser(_ context.Context, userID uuid.UUID, ev events.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, capturedNotification{userID: userID, event: ev})
	return nil
}

func (f *fakeNotifier) all() []capturedNotification {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]capturedNotification(nil), f.sent...)
}

type fakeMirror struct {
	mu       sync.Mutex
	onlines  int
	offlines int
}

func (f *fakeMirror) SetOnline(context.Context, uuid.UUID, int, time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onlines++
	return nil
}

func (f *fakeMirror) SetOffline(context.Context, uuid.UUID, time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.offlines++
	return nil
}

func (f *fakeMirror) offlineCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.offlines
}

type fixture struct {
	db       *gorm.DB
	clock    *testutil.Clock
	notifier *fakeNotifier
	mirror   *fakeMirror

	convs    *ConversationService
	messages *MessageService
	delivery *DeliveryService
	presence *PresenceService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewTestDB(t)
	clock := testutil.NewClock(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC))

	convRepo := repository.NewConversationRepository(db)
	msgRepo := repository.NewMessageRepository(db)
	statusRepo := repository.NewDeliveryRepository(db)
	presenceRepo := repository.NewPresenceRepository(db)
	access := proxy.NewAccessControl(convRepo, nil, nil)

	f := &fixture{
		db:       db,
		clock:    clock,
		notifier: &fakeNotifier{},
		mirror:   &fakeMirror{},
	}
	f.convs = NewConversationService(db, convRepo, access)
	f.messages = NewMessageService(db, msgRepo, convRepo, statusRepo, access, f.notifier, nil)
	f.delivery = NewDeliveryService(db, msgRepo, convRepo, statusRepo, access)
	f.presence = NewPresenceService(db, presenceRepo, convRepo, f.mirror, nil)

	f.convs.SetClock(clock.Now)
	f.messages.SetClock(clock.Now)
	f.delivery.SetClock(clock.Now)
	f.presence.SetClock(clock.Now)
	return f
}

func (f *fixture) group(t *testing.T, creator uuid.UUID, members ...uuid.UUID) conversation.Conversation {
	t.Helper()
	conv, _, err := f.convs.Create(context.Background(), CreateConversationInput{
		CreatorID: creator,
		Type:      conversation.TypeGroup,
		Name:      "team",
		MemberIDs: members,
	})
	require.NoError(t, err)
	return conv
}

func (f *fixture) send(t *testing.T, convID, author uuid.UUID, content string) uuid.UUID {
	t.Helper()
	f.clock.Advance(time.Second)
	m, err := f.messages.CreateMessage(context.Background(), CreateMessageInput{
		ConversationID: convID,
		AuthorID:       author,
		AuthorName:     "user-" + author.String()[:8],
		Content:        content,
	})
	require.NoError(t, err)
	return m.ID
}
