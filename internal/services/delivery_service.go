package services

import (
	"context"

	"chatcore/internal/domain/message"
	"chatcore/internal/proxy"
	"chatcore/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DeliveryService advances per-recipient statuses. Every transition is a
// conditional update, so a row never moves backwards and a late "delivered"
// after "read" changes nothing.
type DeliveryService struct {
	db       *gorm.DB
	messages repository.MessageRepository
	convs    repository.ConversationRepository
	statuses repository.DeliveryRepository
	access   *proxy.AccessControl
	now      Clock
}

func NewDeliveryService(db *gorm.DB, messages repository.MessageRepository, convs repository.ConversationRepository, statuses repository.DeliveryRepository, access *proxy.AccessControl) *DeliveryService {
	return &DeliveryService{
		db:       db,
		messages: messages,
		convs:    convs,
		statuses: statuses,
		access:   access,
		now:      systemClock,
	}
}

func (s *DeliveryService) SetClock(c Clock) {
	s.now = c
}

// MarkRead moves the user's statuses for messageIDs to read and stamps the
// membership's last_read_at. Ids outside the conversation are dropped; the
// ids that belong to it are returned.
func (s *DeliveryService) MarkRead(ctx context.Context, userID, conversationID uuid.UUID, messageIDs []uuid.UUID) ([]uuid.UUID, error) {
	var matched []uuid.UUID
	err := repository.WithTx(ctx, s.db, func(tx *gorm.DB) error {
		msgs := repository.NewMessageRepository(tx)
		statuses := repository.NewDeliveryRepository(tx)
		convs := repository.NewConversationRepository(tx)

		var err error
		matched, err = msgs.IDsInConversation(ctx, conversationID, messageIDs)
		if err != nil {
			return err
		}
		now := s.now()
		if _, err := statuses.Advance(ctx, userID, matched, message.StatusRead, message.ReadableFrom(), now); err != nil {
			return err
		}
		return convs.SetLastReadAt(ctx, conversationID, userID, now)
	})
	if err != nil {
		return nil, err
	}
	return ordered(messageIDs, matched), nil
}

// MarkDelivered moves sent rows to delivered. It returns the rows changed.
func (s *DeliveryService) MarkDelivered(ctx context.Context, userID uuid.UUID, messageIDs []uuid.UUID) (int64, error) {
	return s.statuses.Advance(ctx, userID, messageIDs, message.StatusDelivered, message.DeliverableFrom(), s.now())
}

// MarkConversationDelivered marks everything still sent to the user in the
// conversation as delivered.
func (s *DeliveryService) MarkConversationDelivered(ctx context.Context, userID, conversationID uuid.UUID) (int64, error) {
	return s.statuses.AdvanceConversation(ctx, userID, conversationID, message.StatusDelivered, message.DeliverableFrom(), s.now())
}

// UnreadCount counts everything when the user never read the conversation,
// otherwise messages from others created after last_read_at.
func (s *DeliveryService) UnreadCount(ctx context.Context, userID, conversationID uuid.UUID) (int64, error) {
	m, err := s.access.Membership(ctx, userID, conversationID)
	if err != nil {
		return 0, err
	}
	if m.LastReadAt == nil {
		return s.messages.CountAll(ctx, conversationID)
	}
	return s.messages.CountFromOthersAfter(ctx, conversationID, userID, *m.LastReadAt)
}

// ordered returns the members of subset in the order they appear in ids.
func ordered(ids, subset []uuid.UUID) []uuid.UUID {
	keep := make(map[uuid.UUID]struct{}, len(subset))
	for _, id := range subset {
		keep[id] = struct{}{}
	}
	out := make([]uuid.UUID, 0, len(subset))
	for _, id := range ids {
		if _, ok := keep[id]; ok {
			out = append(out, id)
			delete(keep, id)
		}
	}
	return out
}
