package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"chatcore/internal/domain/conversation"
	"chatcore/internal/proxy"
	"chatcore/internal/repository"
	chat_errors "chatcore/pkg/errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Clock returns the current time. Services default to UTC wall time.
type Clock func() time.Time

func systemClock() time.Time {
	return time.Now().UTC()
}

// LeaveHook runs after a membership has been closed.
type LeaveHook func(ctx context.Context, conversationID, userID uuid.UUID)

type ConversationService struct {
	db      *gorm.DB
	repo    repository.ConversationRepository
	access  *proxy.AccessControl
	now     Clock
	onLeave []LeaveHook
}

func NewConversationService(db *gorm.DB, repo repository.ConversationRepository, access *proxy.AccessControl) *ConversationService {
	return &ConversationService{db: db, repo: repo, access: access, now: systemClock}
}

func (s *ConversationService) SetClock(c Clock) {
	s.now = c
}

// OnLeave registers h to run after every successful Leave, including a
// repeated one.
func (s *ConversationService) OnLeave(h LeaveHook) {
	s.onLeave = append(s.onLeave, h)
}

type CreateConversationInput struct {
	CreatorID   uuid.UUID
	Type        conversation.Type
	Name        string
	Description string
	MemberIDs   []uuid.UUID
}

// Create persists a conversation and its initial memberships in one
// transaction. The creator becomes owner; everyone else joins as member.
func (s *ConversationService) Create(ctx context.Context, in CreateConversationInput) (conversation.Conversation, []conversation.Membership, error) {
	if in.CreatorID == uuid.Nil {
		return conversation.Conversation{}, nil, chat_errors.ErrUnauthorized
	}
	memberIDs := dedupe(append([]uuid.UUID{in.CreatorID}, in.MemberIDs...))
	if err := conversation.ValidateMembers(in.Type, memberIDs); err != nil {
		return conversation.Conversation{}, nil, err
	}
	name := strings.TrimSpace(in.Name)
	if in.Type != conversation.TypeDirect && name == "" {
		return conversation.Conversation{}, nil, fmt.Errorf("%w: name is required", chat_errors.ErrInvalidInput)
	}

	now := s.now()
	creator := in.CreatorID
	conv := conversation.Conversation{
		ID:        uuid.New(),
		Type:      in.Type,
		IsActive:  true,
		CreatedBy: &creator,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if name != "" {
		conv.Name = &name
	}
	if desc := strings.TrimSpace(in.Description); desc != "" {
		conv.Description = &desc
	}

	members := make([]conversation.Membership, 0, len(memberIDs))
	err := repository.WithTx(ctx, s.db, func(tx *gorm.DB) error {
		repo := repository.NewConversationRepository(tx)
		if err := repo.Create(ctx, &conv); err != nil {
			return err
		}
		for _, userID := range memberIDs {
			role := conversation.RoleMember
			if userID == in.CreatorID {
				role = conversation.RoleOwner
			}
			m := conversation.NewMembership(conv.ID, userID, role, now)
			if err := repo.AddMembership(ctx, &m); err != nil {
				return err
			}
			members = append(members, m)
		}
		return nil
	})
	if err != nil {
		return conversation.Conversation{}, nil, err
	}
	return conv, members, nil
}

// Join adds userID to the conversation, re-activating a left membership.
// The actor must be allowed to add members, except that anyone may join a
// channel themselves.
func (s *ConversationService) Join(ctx context.Context, conversationID, actorID, userID uuid.UUID, role conversation.Role) (conversation.Membership, error) {
	if role == "" {
		role = conversation.RoleMember
	}
	if !role.Valid() || role == conversation.RoleOwner {
		return conversation.Membership{}, fmt.Errorf("%w: role %q", chat_errors.ErrInvalidInput, role)
	}

	var joined conversation.Membership
	err := repository.WithTx(ctx, s.db, func(tx *gorm.DB) error {
		repo := repository.NewConversationRepository(tx)
		conv, err := repo.GetByID(ctx, conversationID)
		if err != nil {
			return err
		}
		selfJoin := actorID == userID && conv.Type == conversation.TypeChannel
		if !selfJoin {
			actor, err := repo.GetActiveMembership(ctx, conversationID, actorID)
			if err != nil {
				if errors.Is(err, chat_errors.ErrNotFound) {
					return chat_errors.ErrForbidden
				}
				return err
			}
			if !actor.CanAddMembers {
				return chat_errors.ErrForbidden
			}
		}

		now := s.now()
		existing, err := repo.GetMembership(ctx, conversationID, userID)
		switch {
		case err == nil:
			if existing.IsActive() {
				joined = existing
				return nil
			}
			existing.Rejoin(role, now)
			joined = existing
			return repo.UpdateMembership(ctx, existing)
		case errors.Is(err, chat_errors.ErrNotFound):
			if conv.Type == conversation.TypeDirect {
				return fmt.Errorf("%w: direct conversations have exactly two members", chat_errors.ErrConflict)
			}
			joined = conversation.NewMembership(conversationID, userID, role, now)
			return repo.AddMembership(ctx, &joined)
		default:
			return err
		}
	})
	if err != nil {
		return conversation.Membership{}, err
	}
	s.access.Invalidate(ctx, conversationID)
	return joined, nil
}

// Leave soft-closes the membership. Leaving twice is not an error.
func (s *ConversationService) Leave(ctx context.Context, conversationID, userID uuid.UUID) error {
	err := repository.WithTx(ctx, s.db, func(tx *gorm.DB) error {
		repo := repository.NewConversationRepository(tx)
		m, err := repo.GetMembership(ctx, conversationID, userID)
		if err != nil {
			return err
		}
		if !m.Leave(s.now()) {
			return nil
		}
		return repo.UpdateMembership(ctx, m)
	})
	if err != nil {
		return err
	}
	s.access.Invalidate(ctx, conversationID)
	for _, h := range s.onLeave {
		h(ctx, conversationID, userID)
	}
	return nil
}

func (s *ConversationService) IsActiveMember(ctx context.Context, userID, conversationID uuid.UUID) (bool, error) {
	return s.access.IsActiveMember(ctx, userID, conversationID)
}

func (s *ConversationService) ActiveMembers(ctx context.Context, conversationID uuid.UUID) ([]conversation.Membership, error) {
	return s.repo.ActiveMembers(ctx, conversationID)
}

// Get returns the conversation when the viewer is an active member.
func (s *ConversationService) Get(ctx context.Context, viewerID, conversationID uuid.UUID) (conversation.Conversation, error) {
	conv, err := s.repo.GetByID(ctx, conversationID)
	if err != nil {
		return conversation.Conversation{}, err
	}
	if err := s.access.EnsureMember(ctx, viewerID, conversationID); err != nil {
		return conversation.Conversation{}, err
	}
	return conv, nil
}

func (s *ConversationService) ListForUser(ctx context.Context, userID uuid.UUID) ([]conversation.Conversation, error) {
	return s.repo.ListForUser(ctx, userID)
}

// SetArchived toggles the archived flag; owners, admins and moderators only.
func (s *ConversationService) SetArchived(ctx context.Context, actorID, conversationID uuid.UUID, archived bool) (conversation.Conversation, error) {
	if err := s.access.CanModerate(ctx, actorID, conversationID); err != nil {
		return conversation.Conversation{}, err
	}
	conv, err := s.repo.GetByID(ctx, conversationID)
	if err != nil {
		return conversation.Conversation{}, err
	}
	conv.IsArchived = archived
	conv.UpdatedAt = s.now()
	if err := s.repo.Update(ctx, conv); err != nil {
		return conversation.Conversation{}, err
	}
	return conv, nil
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
