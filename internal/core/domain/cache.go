package domain

import "context"

// StreakCache is the derived, droppable caching port for streak lookups.
// It is never the only copy of truth: implementations are best-effort and
// must swallow (log) their own failures, so a broken cache degrades to
// slower reads, never to wrong ones. Write paths in the service invalidate
// the affected per-task entry and the collection entry after persistence.
type StreakCache interface {
	GetRecord(ctx context.Context, taskID string) (*StreakRecord, bool)
	SetRecord(ctx context.Context, taskID string, record *StreakRecord)

	GetAll(ctx context.Context) ([]*StreakRecord, bool)
	SetAll(ctx context.Context, records []*StreakRecord)

	// Invalidate evicts one task's entry and the collection entry.
	// Every record write goes through this.
	Invalidate(ctx context.Context, taskID string)

	// InvalidateAll drops every cached entry.
	InvalidateAll(ctx context.Context)
}

// NopStreakCache disables caching entirely. The service behaves
// identically with or without a live cache; tests exercise both.
type NopStreakCache struct{}

func (NopStreakCache) GetRecord(context.Context, string) (*StreakRecord, bool) { return nil, false }
func (NopStreakCache) SetRecord(context.Context, string, *StreakRecord)       {}
func (NopStreakCache) GetAll(context.Context) ([]*StreakRecord, bool)         { return nil, false }
func (NopStreakCache) SetAll(context.Context, []*StreakRecord)                {}
func (NopStreakCache) Invalidate(context.Context, string)                     {}
func (NopStreakCache) InvalidateAll(context.Context)                          {}
