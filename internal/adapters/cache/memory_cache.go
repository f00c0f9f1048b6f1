package cache

import (
	"context"
	"sync"
	"time"

	"github.com/comitanigiacomo/ritmo-streak-engine/internal/core/domain"
)

var _ domain.StreakCache = (*MemoryStreakCache)(nil)

// MemoryStreakCache is the in-process fallback used when redis is not
// configured, and the cache tests run against. Entries expire lazily on
// read after the TTL.
type MemoryStreakCache struct {
	ttl time.Duration
	now func() time.Time

	mu         sync.RWMutex
	records    map[string]memoryEntry
	collection *collectionEntry
}

type memoryEntry struct {
	record    *domain.StreakRecord
	expiresAt time.Time
}

type collectionEntry struct {
	records   []*domain.StreakRecord
	expiresAt time.Time
}

func NewMemoryStreakCache(ttl time.Duration) *MemoryStreakCache {
	if ttl <= 0 {
		ttl = DefaultStreakTTL
	}
	return &MemoryStreakCache{
		ttl:     ttl,
		now:     time.Now,
		records: make(map[string]memoryEntry),
	}
}

func (c *MemoryStreakCache) GetRecord(ctx context.Context, taskID string) (*domain.StreakRecord, bool) {
	c.mu.RLock()
	entry, ok := c.records[taskID]
	c.mu.RUnlock()

	if !ok || c.now().After(entry.expiresAt) {
		return nil, false
	}
	cp := *entry.record
	return &cp, true
}

func (c *MemoryStreakCache) SetRecord(ctx context.Context, taskID string, record *domain.StreakRecord) {
	cp := *record

	c.mu.Lock()
	defer c.mu.Unlock()
	c.records[taskID] = memoryEntry{record: &cp, expiresAt: c.now().Add(c.ttl)}
}

func (c *MemoryStreakCache) GetAll(ctx context.Context) ([]*domain.StreakRecord, bool) {
	c.mu.RLock()
	entry := c.collection
	c.mu.RUnlock()

	if entry == nil || c.now().After(entry.expiresAt) {
		return nil, false
	}

	out := make([]*domain.StreakRecord, len(entry.records))
	for i, r := range entry.records {
		cp := *r
		out[i] = &cp
	}
	return out, true
}

func (c *MemoryStreakCache) SetAll(ctx context.Context, records []*domain.StreakRecord) {
	cps := make([]*domain.StreakRecord, len(records))
	for i, r := range records {
		cp := *r
		cps[i] = &cp
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.collection = &collectionEntry{records: cps, expiresAt: c.now().Add(c.ttl)}
}

func (c *MemoryStreakCache) Invalidate(ctx context.Context, taskID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.records, taskID)
	c.collection = nil
}

func (c *MemoryStreakCache) InvalidateAll(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = make(map[string]memoryEntry)
	c.collection = nil
}
