package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// MembershipCache keeps the active member set of a conversation:
// conversation:{id}:members, a set of user ids with a short TTL.
// An empty marker member distinguishes "cached, nobody" from a miss.
type MembershipCache struct {
	client *goredis.Client
	ttl    time.Duration
}

const emptyMarker = "-"

func NewMembershipCache(client *goredis.Client, ttl time.Duration) *MembershipCache {
	if ttl == 0 {
		ttl = 5 * time.Minute
	}
	return &MembershipCache{client: client, ttl: ttl}
}

func membersKey(conversationID uuid.UUID) string {
	return fmt.Sprintf("conversation:%s:members", conversationID.String())
}

// IsMember answers from the cache. ok is false on a miss.
func (c *MembershipCache) IsMember(ctx context.Context, conversationID, userID uuid.UUID) (member bool, ok bool, err error) {
	key := membersKey(conversationID)
	pipe := c.client.Pipeline()
	exists := pipe.Exists(ctx, key)
	isMember := pipe.SIsMember(ctx, key, userID.String())
	if _, err := pipe.Exec(ctx); err != nil && err != goredis.Nil {
		return false, false, err
	}
	if exists.Val() == 0 {
		return false, false, nil
	}
	return isMember.Val(), true, nil
}

// Store replaces the cached member set.
func (c *MembershipCache) Store(ctx context.Context, conversationID uuid.UUID, userIDs []uuid.UUID) error {
	key := membersKey(conversationID)
	members := make([]interface{}, 0, len(userIDs)+1)
	members = append(members, emptyMarker)
	for _, id := range userIDs {
		members = append(members, id.String())
	}
	pipe := c.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.SAdd(ctx, key, members...)
	pipe.Expire(ctx, key, c.ttl)
	_, err := pipe.Exec(ctx)
	return err
}

func (c *MembershipCache) Invalidate(ctx context.Context, conversationID uuid.UUID) error {
	return c.client.Del(ctx, membersKey(conversationID)).Err()
}
