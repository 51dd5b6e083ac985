package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// PresenceStatus is the cached view of a user's presence.
type PresenceStatus struct {
	UserID          string     `json:"user_id"`
	IsOnline        bool       `json:"is_online"`
	ConnectionCount int        `json:"connection_count"`
	LastSeen        *time.Time `json:"last_seen,omitempty"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// PresenceStore mirrors durable presence transitions into Redis so that
// online checks do not hit the database.
type PresenceStore struct {
	client *goredis.Client
	ttl    time.Duration
}

const (
	presenceKeyPrefix = "presence:"
	presenceOnlineSet = "presence:online"
)

func NewPresenceStore(client *goredis.Client, ttl time.Duration) *PresenceStore {
	if ttl == 0 {
		ttl = 24 * time.Hour
	}
	return &PresenceStore{
		client: client,
		ttl:    ttl,
	}
}

// SetOnline records an online user with its current connection count.
func (p *PresenceStore) SetOnline(ctx context.Context, userID uuid.UUID, connections int, at time.Time) error {
	status := PresenceStatus{
		UserID:          userID.String(),
		IsOnline:        true,
		ConnectionCount: connections,
		UpdatedAt:       at.UTC(),
	}
	data, err := json.Marshal(status)
	if err != nil {
		return err
	}

	pipe := p.client.TxPipeline()
	pipe.Set(ctx, presenceKeyPrefix+userID.String(), data, p.ttl)
	pipe.SAdd(ctx, presenceOnlineSet, userID.String())
	_, err = pipe.Exec(ctx)
	return err
}

// SetOffline records the drain to zero connections.
func (p *PresenceStore) SetOffline(ctx context.Context, userID uuid.UUID, lastSeen time.Time) error {
	seen := lastSeen.UTC()
	status := PresenceStatus{
		UserID:    userID.String(),
		LastSeen:  &seen,
		UpdatedAt: seen,
	}
	data, err := json.Marshal(status)
	if err != nil {
		return err
	}

	pipe := p.client.TxPipeline()
	pipe.Set(ctx, presenceKeyPrefix+userID.String(), data, p.ttl)
	pipe.SRem(ctx, presenceOnlineSet, userID.String())
	_, err = pipe.Exec(ctx)
	return err
}

// GetPresence returns the cached status; unknown users read as offline.
func (p *PresenceStore) GetPresence(ctx context.Context, userID uuid.UUID) (*PresenceStatus, error) {
	data, err := p.client.Get(ctx, presenceKeyPrefix+userID.String()).Result()
	if err == goredis.Nil {
		return &PresenceStatus{UserID: userID.String()}, nil
	}
	if err != nil {
		return nil, err
	}

	var status PresenceStatus
	if err := json.Unmarshal([]byte(data), &status); err != nil {
		return nil, err
	}
	return &status, nil
}

func (p *PresenceStore) IsOnline(ctx context.Context, userID uuid.UUID) (bool, error) {
	return p.client.SIsMember(ctx, presenceOnlineSet, userID.String()).Result()
}

func (p *PresenceStore) OnlineUsers(ctx context.Context) ([]uuid.UUID, error) {
	members, err := p.client.SMembers(ctx, presenceOnlineSet).Result()
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0, len(members))
	for _, m := range members {
		id, err := uuid.Parse(m)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (p *PresenceStore) OnlineCount(ctx context.Context) (int64, error) {
	return p.client.SCard(ctx, presenceOnlineSet).Result()
}
