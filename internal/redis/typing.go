package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"chatcore/internal/typing"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// TypingStore keeps typing indicators in one hash per conversation, field =
// user id. Entries are not expired per field; readers apply typing.IsExpired.
// The whole hash carries a retention TTL so abandoned conversations do not
// accumulate keys.
type TypingStore struct {
	client    *goredis.Client
	retention time.Duration
}

type typingEntry struct {
	Username  string    `json:"username"`
	StartedAt time.Time `json:"started_at"`
}

func NewTypingStore(client *goredis.Client, retention time.Duration) *TypingStore {
	if retention == 0 {
		retention = time.Hour
	}
	return &TypingStore{client: client, retention: retention}
}

func typingKey(conversationID uuid.UUID) string {
	return fmt.Sprintf("typing:%s", conversationID.String())
}

func (s *TypingStore) Set(ctx context.Context, ind typing.Indicator) error {
	data, err := json.Marshal(typingEntry{Username: ind.Username, StartedAt: ind.StartedAt.UTC()})
	if err != nil {
		return err
	}
	key := typingKey(ind.ConversationID)
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, ind.UserID.String(), data)
	pipe.Expire(ctx, key, s.retention)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *TypingStore) Clear(ctx context.Context, conversationID, userID uuid.UUID) error {
	return s.client.HDel(ctx, typingKey(conversationID), userID.String()).Err()
}

func (s *TypingStore) List(ctx context.Context, conversationID uuid.UUID) ([]typing.Indicator, error) {
	fields, err := s.client.HGetAll(ctx, typingKey(conversationID)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]typing.Indicator, 0, len(fields))
	for field, raw := range fields {
		userID, err := uuid.Parse(field)
		if err != nil {
			continue
		}
		var entry typingEntry
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			continue
		}
		out = append(out, typing.Indicator{
			ConversationID: conversationID,
			UserID:         userID,
			Username:       entry.Username,
			StartedAt:      entry.StartedAt,
		})
	}
	typing.SortByStart(out)
	return out, nil
}
