package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/comitanigiacomo/ritmo-streak-engine/internal/core/domain"
)

const DefaultStreakTTL = 5 * time.Minute

var _ domain.StreakCache = (*RedisStreakCache)(nil)

// RedisStreakCache backs the streak cache port with redis. Every failure
// is logged and reported as a miss: the record store stays authoritative
// and a broken cache only costs reads, never correctness.
type RedisStreakCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisStreakCache(rdb *redis.Client, ttl time.Duration) *RedisStreakCache {
	if ttl <= 0 {
		ttl = DefaultStreakTTL
	}
	return &RedisStreakCache{rdb: rdb, ttl: ttl}
}

func (c *RedisStreakCache) recordKey(taskID string) string {
	return fmt.Sprintf("streak:%s", taskID)
}

const collectionKey = "streaks:all"

func (c *RedisStreakCache) GetRecord(ctx context.Context, taskID string) (*domain.StreakRecord, bool) {
	val, err := c.rdb.Get(ctx, c.recordKey(taskID)).Result()
	if err != nil {
		if err != redis.Nil {
			log.Printf("[CACHE] Redis read error: %v", err)
		}
		return nil, false
	}

	var record domain.StreakRecord
	if err := json.Unmarshal([]byte(val), &record); err != nil {
		log.Printf("[CACHE] Corrupted data for task %s, cleaning up key", taskID)
		c.rdb.Del(ctx, c.recordKey(taskID))
		return nil, false
	}
	return &record, true
}

func (c *RedisStreakCache) SetRecord(ctx context.Context, taskID string, record *domain.StreakRecord) {
	data, err := json.Marshal(record)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, c.recordKey(taskID), data, c.ttl).Err(); err != nil {
		log.Printf("[CACHE] Redis set error: %v", err)
	}
}

func (c *RedisStreakCache) GetAll(ctx context.Context) ([]*domain.StreakRecord, bool) {
	val, err := c.rdb.Get(ctx, collectionKey).Result()
	if err != nil {
		if err != redis.Nil {
			log.Printf("[CACHE] Redis read error: %v", err)
		}
		return nil, false
	}

	var records []*domain.StreakRecord
	if err := json.Unmarshal([]byte(val), &records); err != nil {
		log.Printf("[CACHE] Corrupted collection data, cleaning up key")
		c.rdb.Del(ctx, collectionKey)
		return nil, false
	}
	return records, true
}

func (c *RedisStreakCache) SetAll(ctx context.Context, records []*domain.StreakRecord) {
	data, err := json.Marshal(records)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, collectionKey, data, c.ttl).Err(); err != nil {
		log.Printf("[CACHE] Redis set error: %v", err)
	}
}

func (c *RedisStreakCache) Invalidate(ctx context.Context, taskID string) {
	if err := c.rdb.Del(ctx, c.recordKey(taskID), collectionKey).Err(); err != nil {
		log.Printf("[CACHE] Failed to invalidate for task %s: %v", taskID, err)
	}
}

func (c *RedisStreakCache) InvalidateAll(ctx context.Context) {
	iter := c.rdb.Scan(ctx, 0, "streak:*", 0).Iterator()
	for iter.Next(ctx) {
		if err := c.rdb.Del(ctx, iter.Val()).Err(); err != nil {
			log.Printf("[CACHE] Failed to invalidate %s: %v", iter.Val(), err)
		}
	}
	if err := iter.Err(); err != nil {
		log.Printf("[CACHE] Scan error during invalidation: %v", err)
	}
	if err := c.rdb.Del(ctx, collectionKey).Err(); err != nil {
		log.Printf("[CACHE] Failed to invalidate collection: %v", err)
	}
}
