package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"chatcore/internal/domain/presence"
	"chatcore/internal/metrics"
	"chatcore/internal/repository"
	chat_errors "chatcore/pkg/errors"
	"chatcore/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// PresenceMirror receives online/offline transitions after they commit.
type PresenceMirror interface {
	SetOnline(ctx context.Context, userID uuid.UUID, connections int, at time.Time) error
	SetOffline(ctx context.Context, userID uuid.UUID, lastSeen time.Time) error
}

// PresenceService counts open connections per user. Each change is a
// read-modify-write under a row lock, so concurrent connects and disconnects
// of one user serialize and exactly one of them observes the drain to zero.
type PresenceService struct {
	db     *gorm.DB
	repo   repository.PresenceRepository
	convs  repository.ConversationRepository
	mirror PresenceMirror
	log    *logger.Logger
	now    Clock
}

func NewPresenceService(db *gorm.DB, repo repository.PresenceRepository, convs repository.ConversationRepository, mirror PresenceMirror, log *logger.Logger) *PresenceService {
	if log == nil {
		log = logger.NewNop()
	}
	return &PresenceService{
		db:     db,
		repo:   repo,
		convs:  convs,
		mirror: mirror,
		log:    log.Named("presence"),
		now:    systemClock,
	}
}

func (s *PresenceService) SetClock(c Clock) {
	s.now = c
}

// mutate runs fn on the locked record and saves it. fn reports whether the
// online state flipped.
func (s *PresenceService) mutate(ctx context.Context, userID uuid.UUID, fn func(r *presence.Record, now time.Time) bool) (presence.Record, bool, error) {
	var rec presence.Record
	var flipped bool
	err := repository.WithTx(ctx, s.db, func(tx *gorm.DB) error {
		repo := repository.NewPresenceRepository(tx)
		now := s.now()
		var err error
		rec, err = repo.LockOrCreate(ctx, userID, now)
		if err != nil {
			return err
		}
		flipped = fn(&rec, now)
		return repo.Save(ctx, rec)
	})
	if err != nil {
		return presence.Record{}, false, err
	}
	return rec, flipped, nil
}

// GoOnline registers one more connection.
func (s *PresenceService) GoOnline(ctx context.Context, userID uuid.UUID) (presence.Record, error) {
	rec, flipped, err := s.mutate(ctx, userID, func(r *presence.Record, now time.Time) bool {
		return r.Connect(now)
	})
	if err != nil {
		return presence.Record{}, err
	}
	if flipped {
		metrics.PresenceTransitions.WithLabelValues("online").Inc()
	}
	if s.mirror != nil {
		if err := s.mirror.SetOnline(ctx, userID, rec.ConnectionCount, rec.LastActivityAt); err != nil {
			s.log.Warn("presence mirror update failed", zap.String("user_id", userID.String()), zap.Error(err))
		}
	}
	return rec, nil
}

// GoOffline drops one connection, never below zero.
func (s *PresenceService) GoOffline(ctx context.Context, userID uuid.UUID) (presence.Record, error) {
	rec, flipped, err := s.mutate(ctx, userID, func(r *presence.Record, now time.Time) bool {
		return r.Disconnect(now)
	})
	if err != nil {
		return presence.Record{}, err
	}
	if flipped {
		metrics.PresenceTransitions.WithLabelValues("offline").Inc()
		if s.mirror != nil && rec.LastSeenAt != nil {
			if err := s.mirror.SetOffline(ctx, userID, *rec.LastSeenAt); err != nil {
				s.log.Warn("presence mirror update failed", zap.String("user_id", userID.String()), zap.Error(err))
			}
		}
	}
	return rec, nil
}

// UpdateActivity refreshes last_activity_at and, when given, the current
// conversation.
func (s *PresenceService) UpdateActivity(ctx context.Context, userID uuid.UUID, conversationID *uuid.UUID) (presence.Record, error) {
	rec, _, err := s.mutate(ctx, userID, func(r *presence.Record, now time.Time) bool {
		r.Touch(now, conversationID)
		return false
	})
	return rec, err
}

// UpdatePrivacy changes who may see the user's status and last-seen time.
func (s *PresenceService) UpdatePrivacy(ctx context.Context, userID uuid.UUID, showOnline, showLastSeen presence.Visibility) (presence.Record, error) {
	if !showOnline.Valid() || !showLastSeen.Valid() {
		return presence.Record{}, fmt.Errorf("%w: visibility", chat_errors.ErrInvalidInput)
	}
	rec, _, err := s.mutate(ctx, userID, func(r *presence.Record, _ time.Time) bool {
		r.ShowOnlineStatus = showOnline
		r.ShowLastSeen = showLastSeen
		return false
	})
	return rec, err
}

func (s *PresenceService) Get(ctx context.Context, userID uuid.UUID) (presence.Record, error) {
	return s.repo.Get(ctx, userID)
}

// View returns subject's presence as viewer is allowed to see it. Users with
// no record read as offline.
func (s *PresenceService) View(ctx context.Context, viewerID, subjectID uuid.UUID) (presence.View, error) {
	rec, err := s.repo.Get(ctx, subjectID)
	if err != nil {
		if !errors.Is(err, chat_errors.ErrNotFound) {
			return presence.View{}, err
		}
		rec = presence.NewRecord(subjectID, time.Time{})
	}
	self := viewerID == subjectID
	contact := false
	if !self && (rec.ShowOnlineStatus == presence.VisibleContacts || rec.ShowLastSeen == presence.VisibleContacts) {
		contact, err = s.convs.ShareActiveConversation(ctx, viewerID, subjectID)
		if err != nil {
			return presence.View{}, err
		}
	}
	return rec.ViewFor(self, contact), nil
}
