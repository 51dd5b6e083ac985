package proxy

import (
	"context"
	"errors"

	"chatcore/internal/domain/conversation"
	"chatcore/internal/repository"
	chat_errors "chatcore/pkg/errors"
	"chatcore/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MembershipCache is an optional read-through cache of active member sets.
type MembershipCache interface {
	IsMember(ctx context.Context, conversationID, userID uuid.UUID) (member bool, ok bool, err error)
	Store(ctx context.Context, conversationID uuid.UUID, userIDs []uuid.UUID) error
	Invalidate(ctx context.Context, conversationID uuid.UUID) error
}

// AccessControl answers "may this user act in this conversation".
type AccessControl struct {
	conversationRepo repository.ConversationRepository
	cache            MembershipCache
	log              *logger.Logger
}

func NewAccessControl(conversationRepo repository.ConversationRepository, cache MembershipCache, log *logger.Logger) *AccessControl {
	if log == nil {
		log = logger.NewNop()
	}
	return &AccessControl{conversationRepo: conversationRepo, cache: cache, log: log.Named("access")}
}

// IsActiveMember reports whether the user holds an active membership.
func (a *AccessControl) IsActiveMember(ctx context.Context, userID, conversationID uuid.UUID) (bool, error) {
	if a.cache != nil {
		member, ok, err := a.cache.IsMember(ctx, conversationID, userID)
		if err != nil {
			a.log.Warn("membership cache read failed", zap.Error(err))
		} else if ok {
			return member, nil
		}
	}

	members, err := a.conversationRepo.ActiveMembers(ctx, conversationID)
	if err != nil {
		return false, err
	}
	ids := make([]uuid.UUID, 0, len(members))
	found := false
	for _, m := range members {
		ids = append(ids, m.UserID)
		if m.UserID == userID {
			found = true
		}
	}
	if a.cache != nil {
		if err := a.cache.Store(ctx, conversationID, ids); err != nil {
			a.log.Warn("membership cache write failed", zap.Error(err))
		}
	}
	return found, nil
}

// EnsureMember returns ErrForbidden unless the user is an active member.
func (a *AccessControl) EnsureMember(ctx context.Context, userID, conversationID uuid.UUID) error {
	ok, err := a.IsActiveMember(ctx, userID, conversationID)
	if err != nil {
		return err
	}
	if !ok {
		return chat_errors.ErrForbidden
	}
	return nil
}

// Membership loads the active membership, mapping absence to ErrForbidden.
func (a *AccessControl) Membership(ctx context.Context, userID, conversationID uuid.UUID) (conversation.Membership, error) {
	m, err := a.conversationRepo.GetActiveMembership(ctx, conversationID, userID)
	if err != nil {
		if errors.Is(err, chat_errors.ErrNotFound) {
			return conversation.Membership{}, chat_errors.ErrForbidden
		}
		return conversation.Membership{}, err
	}
	return m, nil
}

func (a *AccessControl) CanModerate(ctx context.Context, userID, conversationID uuid.UUID) error {
	m, err := a.Membership(ctx, userID, conversationID)
	if err != nil {
		return err
	}
	if !m.CanModerate() {
		return chat_errors.ErrForbidden
	}
	return nil
}

// Invalidate drops the cached member set after membership changes.
func (a *AccessControl) Invalidate(ctx context.Context, conversationID uuid.UUID) {
	if a.cache == nil {
		return
	}
	if err := a.cache.Invalidate(ctx, conversationID); err != nil {
		a.log.Warn("membership cache invalidate failed", zap.Error(err))
	}
}
