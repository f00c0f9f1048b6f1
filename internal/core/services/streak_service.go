package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/comitanigiacomo/ritmo-streak-engine/internal/core/domain"
	"github.com/comitanigiacomo/ritmo-streak-engine/internal/core/streak"
)

// StreakService owns every externally-visible streak behavior: the
// incremental completion path, decrement repair, status queries, the
// daily sweep, the full rebuild and the atomic log+record co-write.
// Mutating entry points serialize per task; reads may run concurrently.
// All entry points take explicit dates; the service never consults the
// wall clock.
type StreakService struct {
	tasks   domain.TaskRepository
	logs    domain.CompletionLogRepository
	records domain.StreakRecordRepository
	tx      domain.Transactor
	cache   domain.StreakCache
	locks   *taskLocker
}

func NewStreakService(
	tasks domain.TaskRepository,
	logs domain.CompletionLogRepository,
	records domain.StreakRecordRepository,
	tx domain.Transactor,
	cache domain.StreakCache,
) *StreakService {
	if cache == nil {
		cache = domain.NopStreakCache{}
	}
	return &StreakService{
		tasks:   tasks,
		logs:    logs,
		records: records,
		tx:      tx,
		cache:   cache,
		locks:   newTaskLocker(),
	}
}

// RecordCompletion applies one day's completion to the streak record.
// Chained completions take the O(1) fast path; backfills and gaps fall
// back to the authoritative full-history recalculation. A count below
// the policy minimum never mutates anything here; only an explicit
// decrement of a previously qualifying day can shorten a streak.
func (s *StreakService) RecordCompletion(ctx context.Context, taskID string, date time.Time, count int) (*domain.StreakRecord, error) {
	task, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}

	mu := s.locks.forTask(taskID)
	mu.Lock()
	defer mu.Unlock()

	return s.applyCompletion(ctx, s.logs, s.records, task, date, count)
}

// CompleteTaskWithStreak writes the completion log entry and applies the
// incremental completion path within one all-or-nothing transaction, so
// the log and the streak record can never diverge.
func (s *StreakService) CompleteTaskWithStreak(ctx context.Context, taskID string, date time.Time, count int) (*domain.StreakRecord, error) {
	task, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}

	mu := s.locks.forTask(taskID)
	mu.Lock()
	defer mu.Unlock()

	return s.completeInTx(ctx, task, date, count)
}

// HandleCompletionDecrement repairs the record after a previously-logged
// day's count was reduced. Only a below-minimum drop on the chain tip
// can shorten the streak; the repaired chain is rebuilt by walking
// backward through qualifying days, re-verifying continuation between
// every adjacent pair. Best streak already reflects historical maxima
// and is never touched.
func (s *StreakService) HandleCompletionDecrement(ctx context.Context, taskID string, date time.Time, newCount int) (*domain.StreakRecord, error) {
	task, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}

	mu := s.locks.forTask(taskID)
	mu.Lock()
	defer mu.Unlock()

	return s.applyDecrement(ctx, s.logs, s.records, task, date, newCount)
}

// ApplyCompletionChange is the single entry point for "the user logged
// value N for day D": it reads the prior value and dispatches to the
// atomic completion path or the atomic decrement path. Both write the
// log row and the streak record in one transaction.
func (s *StreakService) ApplyCompletionChange(ctx context.Context, taskID string, date time.Time, count int) (*domain.StreakRecord, error) {
	task, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}

	mu := s.locks.forTask(taskID)
	mu.Lock()
	defer mu.Unlock()

	// The prior count picks the branch, so it must be read under the
	// same lock that serializes the write: a concurrent call for the
	// same day must not dispatch off a stale value.
	previous := 0
	if prior, err := s.logs.GetByTaskAndDate(ctx, taskID, date); err == nil {
		previous = prior.Count
	} else if !errors.Is(err, domain.ErrLogNotFound) {
		return nil, err
	}

	if count < previous && previous >= task.Streak.MinimumCount && count < task.Streak.MinimumCount {
		return s.decrementInTx(ctx, task, date, count)
	}
	return s.completeInTx(ctx, task, date, count)
}

// GetStreakRecord returns the stored per-task snapshot, going through
// the cache. ErrStreakRecordNotFound when no qualifying completion has
// ever been recorded.
func (s *StreakService) GetStreakRecord(ctx context.Context, taskID string) (*domain.StreakRecord, error) {
	if record, ok := s.cache.GetRecord(ctx, taskID); ok {
		return record, nil
	}

	record, err := s.records.GetByTaskID(ctx, taskID)
	if err != nil {
		return nil, err
	}

	s.cache.SetRecord(ctx, taskID, record)
	return record, nil
}

// ListStreakRecords returns every stored snapshot, going through the
// collection cache.
func (s *StreakService) ListStreakRecords(ctx context.Context) ([]*domain.StreakRecord, error) {
	if records, ok := s.cache.GetAll(ctx); ok {
		return records, nil
	}

	records, err := s.records.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	s.cache.SetAll(ctx, records)
	return records, nil
}

// CheckStreakStatus reports liveness as of currentDate. A lapsed streak
// reads as zero here even before the daily sweep has persisted the
// reset; reads are conservative, writes are deliberate.
func (s *StreakService) CheckStreakStatus(ctx context.Context, taskID string, currentDate time.Time) (*domain.StreakStatus, error) {
	task, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("streak status for task %s: %w", taskID, err)
	}

	status := &domain.StreakStatus{TaskID: taskID}
	if !task.Streak.Enabled {
		return status, nil
	}

	record, err := s.GetStreakRecord(ctx, taskID)
	if err != nil {
		if errors.Is(err, domain.ErrStreakRecordNotFound) {
			return status, nil
		}
		return nil, err
	}

	status.BestStreak = record.BestStreak
	if record.CurrentStreak == 0 || record.LastCompletionDate == nil {
		return status, nil
	}

	if !streak.Alive(*record.LastCompletionDate, currentDate, task.Streak) {
		return status, nil
	}

	status.IsActive = true
	status.CurrentStreak = record.CurrentStreak
	status.DaysUntilBreak = streak.DaysUntilBreak(*record.LastCompletionDate, currentDate, task.Streak)
	status.IsAtRisk = status.DaysUntilBreak == 1

	return status, nil
}

// CheckDailyStreaks is the sweep: the only path that persists a lapse.
// It zeroes the current streak of every record whose chain no longer
// reaches currentDate, keeping best streak and completion metadata for
// history. Per-task failures are logged and skipped: a partial sweep
// beats none.
func (s *StreakService) CheckDailyStreaks(ctx context.Context, currentDate time.Time) error {
	active, err := s.records.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("daily streak sweep: %w", err)
	}

	swept := 0
	for _, candidate := range active {
		task, err := s.tasks.GetByID(ctx, candidate.TaskID)
		if err != nil {
			log.Printf("Sweep: skipping task %s: %v", candidate.TaskID, err)
			continue
		}
		if !task.Streak.Enabled {
			continue
		}
		if candidate.LastCompletionDate != nil && streak.Alive(*candidate.LastCompletionDate, currentDate, task.Streak) {
			continue
		}

		// The candidate list is a snapshot. A completion may have landed
		// since it was taken, so the lapse decision and the write both
		// happen on a fresh read under the task lock.
		mu := s.locks.forTask(candidate.TaskID)
		mu.Lock()
		reset, err := s.resetIfLapsed(ctx, task, currentDate)
		mu.Unlock()

		if err != nil {
			log.Printf("Sweep: failed to reset streak for task %s: %v", candidate.TaskID, err)
			continue
		}
		if !reset {
			continue
		}

		s.invalidate(ctx, candidate.TaskID)
		swept++
	}

	if swept > 0 {
		log.Printf("Sweep: reset %d lapsed streak(s) as of %s", swept, domain.DayOf(currentDate).Format("2006-01-02"))
	}
	return nil
}

// RecalculateAllStreaks rebuilds every enabled, non-archived task's
// record from its full log history, the startup consistency pass.
// Stored best streaks are merged with max, never regressed. A single
// poisoned task never aborts the rebuild.
func (s *StreakService) RecalculateAllStreaks(ctx context.Context, currentDate time.Time) error {
	tasks, err := s.tasks.ListStreakEnabled(ctx)
	if err != nil {
		return fmt.Errorf("streak rebuild: %w", err)
	}

	for _, task := range tasks {
		if err := s.RecalculateStreak(ctx, task.ID, currentDate); err != nil {
			log.Printf("Rebuild: task %s failed: %v", task.ID, err)
		}
	}
	return nil
}

// RecalculateStreak rebuilds one task's record from history.
func (s *StreakService) RecalculateStreak(ctx context.Context, taskID string, currentDate time.Time) error {
	task, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		return err
	}

	mu := s.locks.forTask(taskID)
	mu.Lock()
	defer mu.Unlock()

	logs, err := s.logs.ListByTaskID(ctx, taskID)
	if err != nil {
		return err
	}

	result := streak.Calculate(logs, task.Streak, currentDate)

	record, err := s.records.GetByTaskID(ctx, taskID)
	switch {
	case errors.Is(err, domain.ErrStreakRecordNotFound):
		if result.BestStreak == 0 {
			return nil
		}
		record = &domain.StreakRecord{TaskID: taskID}
		s.writeResult(record, result)
		if err := s.records.Create(ctx, record); err != nil {
			return err
		}
	case err != nil:
		return err
	default:
		best := record.BestStreak
		s.writeResult(record, result)
		if best > record.BestStreak {
			record.BestStreak = best
		}
		if err := s.records.Update(ctx, record); err != nil {
			return err
		}
	}

	s.invalidate(ctx, taskID)
	return nil
}

// AtRiskStreaks is the bulk query reminder scheduling runs: active
// streaks of at least minStreak whose next applicable day is the last
// chance before a lapse, ranked by the priority tier table.
func (s *StreakService) AtRiskStreaks(ctx context.Context, currentDate time.Time, minStreak int) ([]*domain.AtRiskStreak, error) {
	active, err := s.records.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(active))
	for _, r := range active {
		ids = append(ids, r.TaskID)
	}

	tasks, err := s.tasks.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*domain.Task, len(tasks))
	for _, t := range tasks {
		byID[t.ID] = t
	}

	var atRisk []*domain.AtRiskStreak
	for _, record := range active {
		if record.CurrentStreak < minStreak || record.LastCompletionDate == nil {
			continue
		}
		task, ok := byID[record.TaskID]
		if !ok || !task.Streak.Enabled || task.ArchivedAt != nil {
			continue
		}
		if !streak.Alive(*record.LastCompletionDate, currentDate, task.Streak) {
			continue
		}
		remaining := streak.DaysUntilBreak(*record.LastCompletionDate, currentDate, task.Streak)
		if remaining != 1 {
			continue
		}

		atRisk = append(atRisk, &domain.AtRiskStreak{
			TaskID:         record.TaskID,
			Title:          task.Title,
			CurrentStreak:  record.CurrentStreak,
			DaysUntilBreak: remaining,
			Priority:       domain.PriorityForStreak(record.CurrentStreak),
		})
	}

	sort.Slice(atRisk, func(i, j int) bool {
		return atRisk[i].CurrentStreak > atRisk[j].CurrentStreak
	})
	return atRisk, nil
}

// InvalidateCache evicts one task's cached snapshot plus the collection
// entry. App startup calls this alongside the rebuild.
func (s *StreakService) InvalidateCache(ctx context.Context, taskID string) {
	s.invalidate(ctx, taskID)
}

// InvalidateAllCache drops every cached streak entry. Safe at any time:
// the record store stays authoritative.
func (s *StreakService) InvalidateAllCache(ctx context.Context) {
	s.cache.InvalidateAll(ctx)
}

func (s *StreakService) invalidate(ctx context.Context, taskID string) {
	s.cache.Invalidate(ctx, taskID)
}

// resetIfLapsed re-reads the record and persists a zeroed current streak
// only when the fresh copy has still lapsed as of currentDate. Callers
// hold the task lock.
func (s *StreakService) resetIfLapsed(ctx context.Context, task *domain.Task, currentDate time.Time) (bool, error) {
	record, err := s.records.GetByTaskID(ctx, task.ID)
	if err != nil {
		if errors.Is(err, domain.ErrStreakRecordNotFound) {
			return false, nil
		}
		return false, err
	}

	if record.CurrentStreak == 0 {
		return false, nil
	}
	if record.LastCompletionDate != nil && streak.Alive(*record.LastCompletionDate, currentDate, task.Streak) {
		return false, nil
	}

	record.CurrentStreak = 0
	record.UpdatedAt = time.Now().UTC()
	if err := s.records.Update(ctx, record); err != nil {
		return false, err
	}
	return true, nil
}

func (s *StreakService) completeInTx(ctx context.Context, task *domain.Task, date time.Time, count int) (*domain.StreakRecord, error) {
	entry := domain.NewCompletionLog(task.ID, date, count)
	if err := entry.Validate(); err != nil {
		return nil, err
	}

	var record *domain.StreakRecord
	err := s.tx.WithinTx(ctx, func(repos domain.TxRepos) error {
		if err := repos.Logs.Upsert(ctx, entry); err != nil {
			return err
		}
		var err error
		record, err = s.applyCompletion(ctx, repos.Logs, repos.Streaks, task, date, count)
		return err
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

func (s *StreakService) decrementInTx(ctx context.Context, task *domain.Task, date time.Time, newCount int) (*domain.StreakRecord, error) {
	entry := domain.NewCompletionLog(task.ID, date, newCount)
	if err := entry.Validate(); err != nil {
		return nil, err
	}

	var record *domain.StreakRecord
	err := s.tx.WithinTx(ctx, func(repos domain.TxRepos) error {
		if err := repos.Logs.Upsert(ctx, entry); err != nil {
			return err
		}
		var err error
		record, err = s.applyDecrement(ctx, repos.Logs, repos.Streaks, task, date, newCount)
		return err
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// applyCompletion is the incremental completion path of the engine. It
// runs against either the service-level repositories or a transaction's.
func (s *StreakService) applyCompletion(ctx context.Context, logs domain.CompletionLogRepository, records domain.StreakRecordRepository, task *domain.Task, date time.Time, count int) (*domain.StreakRecord, error) {
	day := domain.DayOf(date)

	record, err := records.GetByTaskID(ctx, task.ID)
	if err != nil && !errors.Is(err, domain.ErrStreakRecordNotFound) {
		return nil, err
	}

	// Streaks are not tracked for this task; a below-minimum log never
	// breaks or extends a streak by itself.
	if !task.Streak.Enabled || count < task.Streak.MinimumCount {
		return record, nil
	}

	if record == nil {
		record = domain.NewStreakRecord(task.ID, day)
		if err := records.Create(ctx, record); err != nil {
			return nil, err
		}
		s.invalidate(ctx, task.ID)
		return record, nil
	}

	// Same-day re-logging above minimum is idempotent.
	if record.LastCompletionDate != nil && domain.SameDay(*record.LastCompletionDate, day) {
		return record, nil
	}

	if record.LastCompletionDate != nil && record.CurrentStreak > 0 &&
		streak.ContinuesStreak(*record.LastCompletionDate, day, task.Streak) {
		record.CurrentStreak++
		if record.CurrentStreak > record.BestStreak {
			record.BestStreak = record.CurrentStreak
		}
		record.LastCompletionDate = &day
		record.UpdatedAt = time.Now().UTC()

		if err := records.Update(ctx, record); err != nil {
			return nil, err
		}
		s.invalidate(ctx, task.ID)
		return record, nil
	}

	// Gap or backfill: the stored chain no longer describes history.
	// Recompute from the full log, which is authoritative.
	history, err := logs.ListByTaskID(ctx, task.ID)
	if err != nil {
		return nil, err
	}
	history = overrideCount(history, task.ID, day, count)

	asOf := day
	if record.LastCompletionDate != nil && record.LastCompletionDate.After(asOf) {
		asOf = *record.LastCompletionDate
	}

	result := streak.Calculate(history, task.Streak, asOf)

	best := record.BestStreak
	s.writeResult(record, result)
	if best > record.BestStreak {
		record.BestStreak = best
	}

	if err := records.Update(ctx, record); err != nil {
		return nil, err
	}
	s.invalidate(ctx, task.ID)
	return record, nil
}

// applyDecrement repairs the chain after the count for one day dropped.
func (s *StreakService) applyDecrement(ctx context.Context, logs domain.CompletionLogRepository, records domain.StreakRecordRepository, task *domain.Task, date time.Time, newCount int) (*domain.StreakRecord, error) {
	day := domain.DayOf(date)

	record, err := records.GetByTaskID(ctx, task.ID)
	if err != nil {
		if errors.Is(err, domain.ErrStreakRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	if !task.Streak.Enabled || newCount >= task.Streak.MinimumCount {
		return record, nil
	}

	// Only a drop on the current chain's tip can break it. A dropped
	// historical day is already priced into best streak and does not
	// touch the live chain.
	if record.LastCompletionDate == nil || !domain.SameDay(*record.LastCompletionDate, day) {
		return record, nil
	}

	history, err := logs.ListByTaskID(ctx, task.ID)
	if err != nil {
		return nil, err
	}
	history = overrideCount(history, task.ID, day, newCount)

	days := qualifyingDaysBefore(history, task.Streak, day)
	if len(days) == 0 {
		record.CurrentStreak = 0
		record.LastCompletionDate = nil
		record.StreakStartDate = nil
		record.UpdatedAt = time.Now().UTC()
		if err := records.Update(ctx, record); err != nil {
			return nil, err
		}
		s.invalidate(ctx, task.ID)
		return record, nil
	}

	// Rebuild the chain ending at the newest remaining qualifying day,
	// re-verifying continuation across every backward step so a sparse
	// chain cannot be over-counted across an unskipped gap.
	tip := len(days) - 1
	length := 1
	start := tip
	for start > 0 && streak.ContinuesStreak(days[start-1], days[start], task.Streak) {
		start--
		length++
	}

	last := days[tip]
	first := days[start]
	record.CurrentStreak = length
	record.LastCompletionDate = &last
	record.StreakStartDate = &first
	record.UpdatedAt = time.Now().UTC()

	if err := records.Update(ctx, record); err != nil {
		return nil, err
	}
	s.invalidate(ctx, task.ID)
	return record, nil
}

func (s *StreakService) writeResult(record *domain.StreakRecord, result streak.Result) {
	record.CurrentStreak = result.CurrentStreak
	record.BestStreak = result.BestStreak
	record.LastCompletionDate = result.LastCompletionDate
	record.StreakStartDate = result.StreakStartDate
	record.UpdatedAt = time.Now().UTC()
}

// overrideCount replaces (or inserts) the count for one day in a history
// snapshot, so repair paths see the value being written even before the
// log row lands.
func overrideCount(history []*domain.CompletionLog, taskID string, day time.Time, count int) []*domain.CompletionLog {
	out := make([]*domain.CompletionLog, 0, len(history)+1)
	replaced := false
	for _, l := range history {
		if domain.SameDay(l.Date, day) {
			out = append(out, &domain.CompletionLog{TaskID: taskID, Date: day, Count: count})
			replaced = true
			continue
		}
		out = append(out, l)
	}
	if !replaced {
		out = append(out, &domain.CompletionLog{TaskID: taskID, Date: day, Count: count})
	}
	return out
}

// qualifyingDaysBefore lists, ascending, the qualifying days strictly
// before the given day.
func qualifyingDaysBefore(history []*domain.CompletionLog, policy domain.StreakPolicy, before time.Time) []time.Time {
	var days []time.Time
	for _, l := range history {
		d := domain.DayOf(l.Date)
		if !d.Before(before) {
			continue
		}
		if l.Count >= policy.MinimumCount {
			days = append(days, d)
		}
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
	return days
}
