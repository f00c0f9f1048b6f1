package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/comitanigiacomo/ritmo-streak-engine/internal/core/domain"
)

type InMemoryTaskRepository struct {
	store map[string]*domain.Task

	mu sync.RWMutex
}

func NewInMemoryTaskRepository() *InMemoryTaskRepository {
	return &InMemoryTaskRepository{
		store: make(map[string]*domain.Task),
	}
}

func (r *InMemoryTaskRepository) Create(ctx context.Context, task *domain.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.store[task.ID] = task
	return nil
}

func (r *InMemoryTaskRepository) GetByID(ctx context.Context, id string) (*domain.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	task, ok := r.store[id]
	if !ok {
		return nil, domain.ErrTaskNotFound
	}
	return task, nil
}

func (r *InMemoryTaskRepository) GetByIDs(ctx context.Context, ids []string) ([]*domain.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var tasks []*domain.Task
	for _, id := range ids {
		if t, ok := r.store[id]; ok {
			tasks = append(tasks, t)
		}
	}
	return tasks, nil
}

func (r *InMemoryTaskRepository) ListAll(ctx context.Context) ([]*domain.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var tasks []*domain.Task
	for _, t := range r.store {
		tasks = append(tasks, t)
	}

	sort.Slice(tasks, func(i, j int) bool {
		return tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
	})

	return tasks, nil
}

func (r *InMemoryTaskRepository) ListStreakEnabled(ctx context.Context) ([]*domain.Task, error) {
	all, _ := r.ListAll(ctx)

	var tasks []*domain.Task
	for _, t := range all {
		if t.Streak.Enabled && t.ArchivedAt == nil {
			tasks = append(tasks, t)
		}
	}
	return tasks, nil
}

func (r *InMemoryTaskRepository) Update(ctx context.Context, task *domain.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.store[task.ID]; !ok {
		return domain.ErrTaskNotFound
	}

	r.store[task.ID] = task
	return nil
}

func (r *InMemoryTaskRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.store[id]; !ok {
		return domain.ErrTaskNotFound
	}

	delete(r.store, id)
	return nil
}

type logKey struct {
	taskID string
	day    time.Time
}

type InMemoryLogRepository struct {
	store map[logKey]*domain.CompletionLog

	mu sync.RWMutex
}

func NewInMemoryLogRepository() *InMemoryLogRepository {
	return &InMemoryLogRepository{
		store: make(map[logKey]*domain.CompletionLog),
	}
}

func (r *InMemoryLogRepository) Upsert(ctx context.Context, entry *domain.CompletionLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := *entry
	cp.Date = domain.DayOf(entry.Date)
	r.store[logKey{taskID: entry.TaskID, day: cp.Date}] = &cp
	return nil
}

func (r *InMemoryLogRepository) GetByTaskAndDate(ctx context.Context, taskID string, date time.Time) (*domain.CompletionLog, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.store[logKey{taskID: taskID, day: domain.DayOf(date)}]
	if !ok {
		return nil, domain.ErrLogNotFound
	}
	cp := *entry
	return &cp, nil
}

func (r *InMemoryLogRepository) ListByTaskID(ctx context.Context, taskID string) ([]*domain.CompletionLog, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var entries []*domain.CompletionLog
	for key, entry := range r.store {
		if key.taskID == taskID {
			cp := *entry
			entries = append(entries, &cp)
		}
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Date.Before(entries[j].Date)
	})

	return entries, nil
}

func (r *InMemoryLogRepository) ListByDateRange(ctx context.Context, taskID string, from, to time.Time) ([]*domain.CompletionLog, error) {
	all, _ := r.ListByTaskID(ctx, taskID)

	fromDay := domain.DayOf(from)
	toDay := domain.DayOf(to)

	var entries []*domain.CompletionLog
	for _, entry := range all {
		if !entry.Date.Before(fromDay) && !entry.Date.After(toDay) {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

type InMemoryStreakRepository struct {
	store map[string]*domain.StreakRecord

	mu sync.RWMutex
}

func NewInMemoryStreakRepository() *InMemoryStreakRepository {
	return &InMemoryStreakRepository{
		store: make(map[string]*domain.StreakRecord),
	}
}

func (r *InMemoryStreakRepository) GetByTaskID(ctx context.Context, taskID string) (*domain.StreakRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, ok := r.store[taskID]
	if !ok {
		return nil, domain.ErrStreakRecordNotFound
	}
	cp := *record
	return &cp, nil
}

func (r *InMemoryStreakRepository) Create(ctx context.Context, record *domain.StreakRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := *record
	r.store[record.TaskID] = &cp
	return nil
}

func (r *InMemoryStreakRepository) Update(ctx context.Context, record *domain.StreakRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.store[record.TaskID]; !ok {
		return domain.ErrStreakRecordNotFound
	}

	cp := *record
	r.store[record.TaskID] = &cp
	return nil
}

func (r *InMemoryStreakRepository) ListAll(ctx context.Context) ([]*domain.StreakRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var records []*domain.StreakRecord
	for _, record := range r.store {
		cp := *record
		records = append(records, &cp)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].TaskID < records[j].TaskID
	})

	return records, nil
}

func (r *InMemoryStreakRepository) ListActive(ctx context.Context) ([]*domain.StreakRecord, error) {
	all, _ := r.ListAll(ctx)

	var records []*domain.StreakRecord
	for _, record := range all {
		if record.CurrentStreak > 0 {
			records = append(records, record)
		}
	}
	return records, nil
}

// InMemoryTransactor mimics the SQL transactor over the in-memory
// repositories. Writes apply to staged copies and only the write-set
// merges back when fn succeeds: a failing step leaves no partial state
// behind, and a transaction committing while another is open cannot
// discard the other's committed rows. Same all-or-nothing contract as
// the real thing.
type InMemoryTransactor struct {
	Logs    *InMemoryLogRepository
	Streaks *InMemoryStreakRepository

	commitMu sync.Mutex
}

func NewInMemoryTransactor(logs *InMemoryLogRepository, streaks *InMemoryStreakRepository) *InMemoryTransactor {
	return &InMemoryTransactor{Logs: logs, Streaks: streaks}
}

func (t *InMemoryTransactor) WithinTx(ctx context.Context, fn func(repos domain.TxRepos) error) error {
	stagedLogs := NewInMemoryLogRepository()
	t.Logs.mu.RLock()
	for key, entry := range t.Logs.store {
		cp := *entry
		stagedLogs.store[key] = &cp
	}
	t.Logs.mu.RUnlock()

	stagedStreaks := NewInMemoryStreakRepository()
	t.Streaks.mu.RLock()
	for key, record := range t.Streaks.store {
		cp := *record
		stagedStreaks.store[key] = &cp
	}
	t.Streaks.mu.RUnlock()

	txLogs := &txLogRepository{staged: stagedLogs, written: make(map[logKey]bool)}
	txStreaks := &txStreakRepository{staged: stagedStreaks, written: make(map[string]bool)}

	if err := fn(domain.TxRepos{Logs: txLogs, Streaks: txStreaks}); err != nil {
		return err
	}

	t.commitMu.Lock()
	defer t.commitMu.Unlock()

	t.Logs.mu.Lock()
	for key := range txLogs.written {
		t.Logs.store[key] = stagedLogs.store[key]
	}
	t.Logs.mu.Unlock()

	t.Streaks.mu.Lock()
	for key := range txStreaks.written {
		t.Streaks.store[key] = stagedStreaks.store[key]
	}
	t.Streaks.mu.Unlock()

	return nil
}

// txLogRepository tracks which rows a transaction wrote so commit can
// merge exactly those into the live store.
type txLogRepository struct {
	staged  *InMemoryLogRepository
	written map[logKey]bool
}

func (r *txLogRepository) Upsert(ctx context.Context, entry *domain.CompletionLog) error {
	if err := r.staged.Upsert(ctx, entry); err != nil {
		return err
	}
	r.written[logKey{taskID: entry.TaskID, day: domain.DayOf(entry.Date)}] = true
	return nil
}

func (r *txLogRepository) GetByTaskAndDate(ctx context.Context, taskID string, date time.Time) (*domain.CompletionLog, error) {
	return r.staged.GetByTaskAndDate(ctx, taskID, date)
}

func (r *txLogRepository) ListByTaskID(ctx context.Context, taskID string) ([]*domain.CompletionLog, error) {
	return r.staged.ListByTaskID(ctx, taskID)
}

func (r *txLogRepository) ListByDateRange(ctx context.Context, taskID string, from, to time.Time) ([]*domain.CompletionLog, error) {
	return r.staged.ListByDateRange(ctx, taskID, from, to)
}

type txStreakRepository struct {
	staged  *InMemoryStreakRepository
	written map[string]bool
}

func (r *txStreakRepository) Create(ctx context.Context, record *domain.StreakRecord) error {
	if err := r.staged.Create(ctx, record); err != nil {
		return err
	}
	r.written[record.TaskID] = true
	return nil
}

func (r *txStreakRepository) Update(ctx context.Context, record *domain.StreakRecord) error {
	if err := r.staged.Update(ctx, record); err != nil {
		return err
	}
	r.written[record.TaskID] = true
	return nil
}

func (r *txStreakRepository) GetByTaskID(ctx context.Context, taskID string) (*domain.StreakRecord, error) {
	return r.staged.GetByTaskID(ctx, taskID)
}

func (r *txStreakRepository) ListAll(ctx context.Context) ([]*domain.StreakRecord, error) {
	return r.staged.ListAll(ctx)
}

func (r *txStreakRepository) ListActive(ctx context.Context) ([]*domain.StreakRecord, error) {
	return r.staged.ListActive(ctx)
}
