package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	// unread:{userId}:{threadId} -> count
	unreadPrefix = "unread:"

	// Counts are recomputed from the database on a miss, so a short
	// TTL bounds staleness without an explicit refresh path.
	unreadTTL = 5 * time.Minute
)

// ReadStateCache caches per-(user, thread) unread counts. The polling
// listings hit these every couple of seconds; the cache keeps that off
// the COUNT queries.
type ReadStateCache struct {
	rdb *redis.Client
}

func NewReadStateCache(rdb *redis.Client) *ReadStateCache {
	return &ReadStateCache{rdb: rdb}
}

func unreadKey(userID, threadID uuid.UUID) string {
	return unreadPrefix + userID.String() + ":" + threadID.String()
}

func (c *ReadStateCache) GetUnread(ctx context.Context, userID, threadID uuid.UUID) (int, bool, error) {
	val, err := c.rdb.Get(ctx, unreadKey(userID, threadID)).Result()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("reading unread count: %w", err)
	}
	count, err := strconv.Atoi(val)
	if err != nil {
		return 0, false, nil
	}
	return count, true, nil
}

func (c *ReadStateCache) SetUnread(ctx context.Context, userID, threadID uuid.UUID, count int) error {
	if err := c.rdb.Set(ctx, unreadKey(userID, threadID), count, unreadTTL).Err(); err != nil {
		return fmt.Errorf("storing unread count: %w", err)
	}
	return nil
}

func (c *ReadStateCache) Invalidate(ctx context.Context, userID uuid.UUID, threadIDs ...uuid.UUID) error {
	if len(threadIDs) == 0 {
		return nil
	}
	keys := make([]string, 0, len(threadIDs))
	for _, threadID := range threadIDs {
		keys = append(keys, unreadKey(userID, threadID))
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("invalidating unread counts: %w", err)
	}
	return nil
}
