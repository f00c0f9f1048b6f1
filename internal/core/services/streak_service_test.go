package services_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/comitanigiacomo/ritmo-streak-engine/internal/core/domain"
	"github.com/comitanigiacomo/ritmo-streak-engine/internal/core/services"
)

// 2024-01-01 is a Monday.
func day(d int) time.Time {
	return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC)
}

type MockTaskRepo struct {
	store         map[string]*domain.Task
	simulateError error
	onGetByID     func(id string)
}

func NewMockTaskRepo() *MockTaskRepo {
	return &MockTaskRepo{store: make(map[string]*domain.Task)}
}

func (m *MockTaskRepo) Create(ctx context.Context, task *domain.Task) error {
	if m.simulateError != nil {
		return m.simulateError
	}
	clone := *task
	m.store[task.ID] = &clone
	return nil
}

func (m *MockTaskRepo) GetByID(ctx context.Context, id string) (*domain.Task, error) {
	if m.simulateError != nil {
		return nil, m.simulateError
	}
	t, ok := m.store[id]
	if !ok {
		return nil, domain.ErrTaskNotFound
	}
	if m.onGetByID != nil {
		m.onGetByID(id)
	}
	clone := *t
	return &clone, nil
}

func (m *MockTaskRepo) GetByIDs(ctx context.Context, ids []string) ([]*domain.Task, error) {
	if m.simulateError != nil {
		return nil, m.simulateError
	}
	var list []*domain.Task
	for _, id := range ids {
		if t, ok := m.store[id]; ok {
			clone := *t
			list = append(list, &clone)
		}
	}
	return list, nil
}

func (m *MockTaskRepo) ListAll(ctx context.Context) ([]*domain.Task, error) {
	if m.simulateError != nil {
		return nil, m.simulateError
	}
	var list []*domain.Task
	for _, t := range m.store {
		clone := *t
		list = append(list, &clone)
	}
	return list, nil
}

func (m *MockTaskRepo) ListStreakEnabled(ctx context.Context) ([]*domain.Task, error) {
	if m.simulateError != nil {
		return nil, m.simulateError
	}
	var list []*domain.Task
	for _, t := range m.store {
		if t.Streak.Enabled && t.ArchivedAt == nil {
			clone := *t
			list = append(list, &clone)
		}
	}
	return list, nil
}

func (m *MockTaskRepo) Update(ctx context.Context, task *domain.Task) error {
	if m.simulateError != nil {
		return m.simulateError
	}
	if _, ok := m.store[task.ID]; !ok {
		return domain.ErrTaskNotFound
	}
	clone := *task
	m.store[task.ID] = &clone
	return nil
}

func (m *MockTaskRepo) Delete(ctx context.Context, id string) error {
	if m.simulateError != nil {
		return m.simulateError
	}
	if _, ok := m.store[id]; !ok {
		return domain.ErrTaskNotFound
	}
	delete(m.store, id)
	return nil
}

type logKey struct {
	taskID string
	day    time.Time
}

type MockLogRepo struct {
	store         map[logKey]*domain.CompletionLog
	simulateError error
}

func NewMockLogRepo() *MockLogRepo {
	return &MockLogRepo{store: make(map[logKey]*domain.CompletionLog)}
}

func (m *MockLogRepo) Upsert(ctx context.Context, log *domain.CompletionLog) error {
	if m.simulateError != nil {
		return m.simulateError
	}
	clone := *log
	m.store[logKey{log.TaskID, domain.DayOf(log.Date)}] = &clone
	return nil
}

func (m *MockLogRepo) GetByTaskAndDate(ctx context.Context, taskID string, date time.Time) (*domain.CompletionLog, error) {
	if m.simulateError != nil {
		return nil, m.simulateError
	}
	l, ok := m.store[logKey{taskID, domain.DayOf(date)}]
	if !ok {
		return nil, domain.ErrLogNotFound
	}
	clone := *l
	return &clone, nil
}

func (m *MockLogRepo) ListByTaskID(ctx context.Context, taskID string) ([]*domain.CompletionLog, error) {
	if m.simulateError != nil {
		return nil, m.simulateError
	}
	var list []*domain.CompletionLog
	for k, l := range m.store {
		if k.taskID == taskID {
			clone := *l
			list = append(list, &clone)
		}
	}
	return list, nil
}

func (m *MockLogRepo) ListByDateRange(ctx context.Context, taskID string, from, to time.Time) ([]*domain.CompletionLog, error) {
	if m.simulateError != nil {
		return nil, m.simulateError
	}
	f, t := domain.DayOf(from), domain.DayOf(to)
	var list []*domain.CompletionLog
	for k, l := range m.store {
		if k.taskID == taskID && !k.day.Before(f) && !k.day.After(t) {
			clone := *l
			list = append(list, &clone)
		}
	}
	return list, nil
}

type MockStreakRepo struct {
	store         map[string]*domain.StreakRecord
	simulateError error
}

func NewMockStreakRepo() *MockStreakRepo {
	return &MockStreakRepo{store: make(map[string]*domain.StreakRecord)}
}

func (m *MockStreakRepo) GetByTaskID(ctx context.Context, taskID string) (*domain.StreakRecord, error) {
	if m.simulateError != nil {
		return nil, m.simulateError
	}
	r, ok := m.store[taskID]
	if !ok {
		return nil, domain.ErrStreakRecordNotFound
	}
	clone := *r
	return &clone, nil
}

func (m *MockStreakRepo) Create(ctx context.Context, record *domain.StreakRecord) error {
	if m.simulateError != nil {
		return m.simulateError
	}
	clone := *record
	m.store[record.TaskID] = &clone
	return nil
}

func (m *MockStreakRepo) Update(ctx context.Context, record *domain.StreakRecord) error {
	if m.simulateError != nil {
		return m.simulateError
	}
	if _, ok := m.store[record.TaskID]; !ok {
		return domain.ErrStreakRecordNotFound
	}
	clone := *record
	m.store[record.TaskID] = &clone
	return nil
}

func (m *MockStreakRepo) ListAll(ctx context.Context) ([]*domain.StreakRecord, error) {
	if m.simulateError != nil {
		return nil, m.simulateError
	}
	var list []*domain.StreakRecord
	for _, r := range m.store {
		clone := *r
		list = append(list, &clone)
	}
	return list, nil
}

func (m *MockStreakRepo) ListActive(ctx context.Context) ([]*domain.StreakRecord, error) {
	if m.simulateError != nil {
		return nil, m.simulateError
	}
	var list []*domain.StreakRecord
	for _, r := range m.store {
		if r.CurrentStreak > 0 {
			clone := *r
			list = append(list, &clone)
		}
	}
	return list, nil
}

// MockTransactor hands the real mocks to the callback; all-or-nothing
// rollback behavior is the adapter's concern and is tested there.
type MockTransactor struct {
	logs    *MockLogRepo
	streaks *MockStreakRepo
}

func (m *MockTransactor) WithinTx(ctx context.Context, fn func(repos domain.TxRepos) error) error {
	return fn(domain.TxRepos{Logs: m.logs, Streaks: m.streaks})
}

type fixture struct {
	tasks   *MockTaskRepo
	logs    *MockLogRepo
	streaks *MockStreakRepo
	svc     *services.StreakService
}

func newFixture() *fixture {
	tasks := NewMockTaskRepo()
	logs := NewMockLogRepo()
	streaks := NewMockStreakRepo()
	tx := &MockTransactor{logs: logs, streaks: streaks}
	return &fixture{
		tasks:   tasks,
		logs:    logs,
		streaks: streaks,
		svc:     services.NewStreakService(tasks, logs, streaks, tx, nil),
	}
}

func (f *fixture) addTask(t *testing.T, policy domain.StreakPolicy) *domain.Task {
	t.Helper()
	task, err := domain.NewTask("Morning run", "#FF5733", "runner", policy)
	require.NoError(t, err)
	require.NoError(t, f.tasks.Create(context.Background(), task))
	return task
}

func (f *fixture) log(t *testing.T, taskID string, d int, count int) {
	t.Helper()
	require.NoError(t, f.logs.Upsert(context.Background(), domain.NewCompletionLog(taskID, day(d), count)))
}

var (
	dailyPolicy    = domain.StreakPolicy{Enabled: true, MinimumCount: 1}
	weekdayPolicy  = domain.StreakPolicy{Enabled: true, MinimumCount: 1, SkipWeekends: true}
	doublePolicy   = domain.StreakPolicy{Enabled: true, MinimumCount: 2}
	disabledPolicy = domain.StreakPolicy{Enabled: false, MinimumCount: 1}
)

func TestRecordCompletion(t *testing.T) {
	ctx := context.Background()

	t.Run("First qualifying completion creates the record", func(t *testing.T) {
		f := newFixture()
		task := f.addTask(t, dailyPolicy)

		record, err := f.svc.RecordCompletion(ctx, task.ID, day(2), 1)
		require.NoError(t, err)
		require.NotNil(t, record)
		assert.Equal(t, 1, record.CurrentStreak)
		assert.Equal(t, 1, record.BestStreak)
		require.NotNil(t, record.LastCompletionDate)
		assert.True(t, record.LastCompletionDate.Equal(day(2)))
		require.NotNil(t, record.StreakStartDate)
		assert.True(t, record.StreakStartDate.Equal(day(2)))
	})

	t.Run("Next-day completion takes the incremental path", func(t *testing.T) {
		f := newFixture()
		task := f.addTask(t, dailyPolicy)
		f.log(t, task.ID, 2, 1)

		_, err := f.svc.RecordCompletion(ctx, task.ID, day(2), 1)
		require.NoError(t, err)
		f.log(t, task.ID, 3, 1)
		record, err := f.svc.RecordCompletion(ctx, task.ID, day(3), 1)
		require.NoError(t, err)

		assert.Equal(t, 2, record.CurrentStreak)
		assert.Equal(t, 2, record.BestStreak)
	})

	t.Run("Weekend is transparent with skipWeekends", func(t *testing.T) {
		f := newFixture()
		task := f.addTask(t, weekdayPolicy)
		f.log(t, task.ID, 5, 1)

		_, err := f.svc.RecordCompletion(ctx, task.ID, day(5), 1)
		require.NoError(t, err)
		f.log(t, task.ID, 8, 1)
		record, err := f.svc.RecordCompletion(ctx, task.ID, day(8), 1)
		require.NoError(t, err)

		assert.Equal(t, 2, record.CurrentStreak)
	})

	t.Run("Same-day repeat is idempotent", func(t *testing.T) {
		f := newFixture()
		task := f.addTask(t, dailyPolicy)
		f.log(t, task.ID, 2, 1)

		first, err := f.svc.RecordCompletion(ctx, task.ID, day(2), 1)
		require.NoError(t, err)
		again, err := f.svc.RecordCompletion(ctx, task.ID, day(2), 3)
		require.NoError(t, err)

		assert.Equal(t, first.CurrentStreak, again.CurrentStreak)
		assert.Equal(t, first.BestStreak, again.BestStreak)
	})

	t.Run("Below-minimum count never mutates", func(t *testing.T) {
		f := newFixture()
		task := f.addTask(t, doublePolicy)

		record, err := f.svc.RecordCompletion(ctx, task.ID, day(2), 1)
		require.NoError(t, err)
		assert.Nil(t, record)
		_, err = f.streaks.GetByTaskID(ctx, task.ID)
		assert.ErrorIs(t, err, domain.ErrStreakRecordNotFound)
	})

	t.Run("Disabled policy is a no-op", func(t *testing.T) {
		f := newFixture()
		task := f.addTask(t, disabledPolicy)

		record, err := f.svc.RecordCompletion(ctx, task.ID, day(2), 1)
		require.NoError(t, err)
		assert.Nil(t, record)
	})

	t.Run("Unknown task errors", func(t *testing.T) {
		f := newFixture()
		_, err := f.svc.RecordCompletion(ctx, "nope", day(2), 1)
		assert.ErrorIs(t, err, domain.ErrTaskNotFound)
	})

	t.Run("Backfill closing a gap recomputes from history", func(t *testing.T) {
		f := newFixture()
		task := f.addTask(t, dailyPolicy)
		f.log(t, task.ID, 2, 1)
		f.log(t, task.ID, 4, 1)

		_, err := f.svc.RecordCompletion(ctx, task.ID, day(2), 1)
		require.NoError(t, err)
		_, err = f.svc.RecordCompletion(ctx, task.ID, day(4), 1)
		require.NoError(t, err)

		f.log(t, task.ID, 3, 1)
		record, err := f.svc.RecordCompletion(ctx, task.ID, day(3), 1)
		require.NoError(t, err)

		assert.Equal(t, 3, record.CurrentStreak)
		require.NotNil(t, record.StreakStartDate)
		assert.True(t, record.StreakStartDate.Equal(day(2)))
	})

	t.Run("Best streak never regresses on recompute", func(t *testing.T) {
		f := newFixture()
		task := f.addTask(t, dailyPolicy)
		f.log(t, task.ID, 9, 1)

		historic := day(2)
		require.NoError(t, f.streaks.Create(ctx, &domain.StreakRecord{
			TaskID:             task.ID,
			CurrentStreak:      0,
			BestStreak:         10,
			LastCompletionDate: &historic,
		}))

		record, err := f.svc.RecordCompletion(ctx, task.ID, day(9), 1)
		require.NoError(t, err)

		assert.Equal(t, 1, record.CurrentStreak)
		assert.Equal(t, 10, record.BestStreak)
	})
}

func TestApplyCompletionChange(t *testing.T) {
	ctx := context.Background()

	t.Run("Writes the log row alongside the record", func(t *testing.T) {
		f := newFixture()
		task := f.addTask(t, dailyPolicy)

		record, err := f.svc.ApplyCompletionChange(ctx, task.ID, day(2), 1)
		require.NoError(t, err)
		require.NotNil(t, record)
		assert.Equal(t, 1, record.CurrentStreak)

		entry, err := f.logs.GetByTaskAndDate(ctx, task.ID, day(2))
		require.NoError(t, err)
		assert.Equal(t, 1, entry.Count)
	})

	t.Run("Dropping the tip below minimum reverts the chain", func(t *testing.T) {
		f := newFixture()
		task := f.addTask(t, dailyPolicy)

		for d := 2; d <= 4; d++ {
			_, err := f.svc.ApplyCompletionChange(ctx, task.ID, day(d), 1)
			require.NoError(t, err)
		}

		record, err := f.svc.ApplyCompletionChange(ctx, task.ID, day(4), 0)
		require.NoError(t, err)

		assert.Equal(t, 2, record.CurrentStreak)
		require.NotNil(t, record.LastCompletionDate)
		assert.True(t, record.LastCompletionDate.Equal(day(3)))
		assert.Equal(t, 3, record.BestStreak, "best streak keeps the historical maximum")
	})

	t.Run("Dropping a historical day leaves the live chain alone", func(t *testing.T) {
		f := newFixture()
		task := f.addTask(t, dailyPolicy)

		for d := 2; d <= 4; d++ {
			_, err := f.svc.ApplyCompletionChange(ctx, task.ID, day(d), 1)
			require.NoError(t, err)
		}

		record, err := f.svc.ApplyCompletionChange(ctx, task.ID, day(3), 0)
		require.NoError(t, err)

		assert.Equal(t, 3, record.CurrentStreak)
		require.NotNil(t, record.LastCompletionDate)
		assert.True(t, record.LastCompletionDate.Equal(day(4)))

		entry, err := f.logs.GetByTaskAndDate(ctx, task.ID, day(3))
		require.NoError(t, err)
		assert.Equal(t, 0, entry.Count, "the log row still records the drop")
	})

	t.Run("Decrement rebuild stops at a real gap", func(t *testing.T) {
		f := newFixture()
		task := f.addTask(t, dailyPolicy)

		_, err := f.svc.ApplyCompletionChange(ctx, task.ID, day(2), 1)
		require.NoError(t, err)
		for d := 4; d <= 5; d++ {
			_, err := f.svc.ApplyCompletionChange(ctx, task.ID, day(d), 1)
			require.NoError(t, err)
		}

		record, err := f.svc.ApplyCompletionChange(ctx, task.ID, day(5), 0)
		require.NoError(t, err)

		assert.Equal(t, 1, record.CurrentStreak, "day 2 does not chain onto day 4")
		require.NotNil(t, record.LastCompletionDate)
		assert.True(t, record.LastCompletionDate.Equal(day(4)))
	})

	t.Run("Decrementing the only qualifying day clears the run", func(t *testing.T) {
		f := newFixture()
		task := f.addTask(t, dailyPolicy)

		_, err := f.svc.ApplyCompletionChange(ctx, task.ID, day(2), 1)
		require.NoError(t, err)
		record, err := f.svc.ApplyCompletionChange(ctx, task.ID, day(2), 0)
		require.NoError(t, err)

		assert.Equal(t, 0, record.CurrentStreak)
		assert.Nil(t, record.LastCompletionDate)
		assert.Nil(t, record.StreakStartDate)
		assert.Equal(t, 1, record.BestStreak)
	})

	t.Run("Raising a count takes the completion path", func(t *testing.T) {
		f := newFixture()
		task := f.addTask(t, doublePolicy)

		_, err := f.svc.ApplyCompletionChange(ctx, task.ID, day(2), 1)
		require.NoError(t, err)
		record, err := f.svc.ApplyCompletionChange(ctx, task.ID, day(2), 2)
		require.NoError(t, err)

		require.NotNil(t, record)
		assert.Equal(t, 1, record.CurrentStreak)
	})

	t.Run("Below-minimum drop of a below-minimum day is a no-op", func(t *testing.T) {
		f := newFixture()
		task := f.addTask(t, doublePolicy)

		_, err := f.svc.ApplyCompletionChange(ctx, task.ID, day(2), 1)
		require.NoError(t, err)
		record, err := f.svc.ApplyCompletionChange(ctx, task.ID, day(2), 0)
		require.NoError(t, err)

		assert.Nil(t, record)
	})

	t.Run("Concurrent same-day writes leave a consistent state", func(t *testing.T) {
		f := newFixture()
		task := f.addTask(t, dailyPolicy)
		for d := 2; d <= 3; d++ {
			_, err := f.svc.ApplyCompletionChange(ctx, task.ID, day(d), 1)
			require.NoError(t, err)
		}

		// Branch dispatch reads the prior count under the task lock, so
		// whichever order these land in, the record must agree with the
		// log that won.
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := f.svc.ApplyCompletionChange(ctx, task.ID, day(4), 1)
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			_, err := f.svc.ApplyCompletionChange(ctx, task.ID, day(4), 0)
			assert.NoError(t, err)
		}()
		wg.Wait()

		entry, err := f.logs.GetByTaskAndDate(ctx, task.ID, day(4))
		require.NoError(t, err)
		record, err := f.streaks.GetByTaskID(ctx, task.ID)
		require.NoError(t, err)

		switch entry.Count {
		case 0:
			assert.Equal(t, 2, record.CurrentStreak)
			require.NotNil(t, record.LastCompletionDate)
			assert.True(t, record.LastCompletionDate.Equal(day(3)))
		case 1:
			assert.Equal(t, 3, record.CurrentStreak)
			require.NotNil(t, record.LastCompletionDate)
			assert.True(t, record.LastCompletionDate.Equal(day(4)))
		default:
			t.Fatalf("unexpected final count %d", entry.Count)
		}
	})
}

func TestCheckStreakStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("Active streak with slack", func(t *testing.T) {
		f := newFixture()
		task := f.addTask(t, dailyPolicy)
		_, err := f.svc.ApplyCompletionChange(ctx, task.ID, day(2), 1)
		require.NoError(t, err)

		status, err := f.svc.CheckStreakStatus(ctx, task.ID, day(2))
		require.NoError(t, err)

		assert.True(t, status.IsActive)
		assert.False(t, status.IsAtRisk)
		assert.Equal(t, 1, status.CurrentStreak)
		assert.Equal(t, 2, status.DaysUntilBreak)
	})

	t.Run("Deadline day is at risk", func(t *testing.T) {
		f := newFixture()
		task := f.addTask(t, dailyPolicy)
		_, err := f.svc.ApplyCompletionChange(ctx, task.ID, day(2), 1)
		require.NoError(t, err)

		status, err := f.svc.CheckStreakStatus(ctx, task.ID, day(3))
		require.NoError(t, err)

		assert.True(t, status.IsActive)
		assert.True(t, status.IsAtRisk)
		assert.Equal(t, 1, status.DaysUntilBreak)
	})

	t.Run("Lapsed streak reads zero before the sweep persists it", func(t *testing.T) {
		f := newFixture()
		task := f.addTask(t, weekdayPolicy)
		_, err := f.svc.ApplyCompletionChange(ctx, task.ID, day(5), 1)
		require.NoError(t, err)
		_, err = f.svc.ApplyCompletionChange(ctx, task.ID, day(8), 1)
		require.NoError(t, err)

		// Tuesday passes unanswered; by Wednesday the run is over even
		// though the stored record still says 2.
		status, err := f.svc.CheckStreakStatus(ctx, task.ID, day(10))
		require.NoError(t, err)

		assert.False(t, status.IsActive)
		assert.Equal(t, 0, status.CurrentStreak)
		assert.Equal(t, 2, status.BestStreak)

		stored, err := f.streaks.GetByTaskID(ctx, task.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, stored.CurrentStreak)
	})

	t.Run("No record reads as inactive", func(t *testing.T) {
		f := newFixture()
		task := f.addTask(t, dailyPolicy)

		status, err := f.svc.CheckStreakStatus(ctx, task.ID, day(2))
		require.NoError(t, err)
		assert.False(t, status.IsActive)
		assert.Equal(t, 0, status.CurrentStreak)
	})
}

func TestCheckDailyStreaks(t *testing.T) {
	ctx := context.Background()

	t.Run("Sweep zeroes lapsed runs and keeps history", func(t *testing.T) {
		f := newFixture()
		lapsed := f.addTask(t, dailyPolicy)
		alive := f.addTask(t, dailyPolicy)

		_, err := f.svc.ApplyCompletionChange(ctx, lapsed.ID, day(2), 1)
		require.NoError(t, err)
		_, err = f.svc.ApplyCompletionChange(ctx, alive.ID, day(4), 1)
		require.NoError(t, err)

		require.NoError(t, f.svc.CheckDailyStreaks(ctx, day(5)))

		gone, err := f.streaks.GetByTaskID(ctx, lapsed.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, gone.CurrentStreak)
		assert.Equal(t, 1, gone.BestStreak)
		require.NotNil(t, gone.LastCompletionDate, "lapse keeps completion metadata")

		kept, err := f.streaks.GetByTaskID(ctx, alive.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, kept.CurrentStreak)
	})

	t.Run("A completion landing mid-sweep is not clobbered", func(t *testing.T) {
		f := newFixture()
		task := f.addTask(t, dailyPolicy)
		for d := 2; d <= 3; d++ {
			_, err := f.svc.ApplyCompletionChange(ctx, task.ID, day(d), 1)
			require.NoError(t, err)
		}

		// Between the sweep's candidate snapshot and its write, a
		// completion for the sweep date commits. The sweep must decide
		// lapse on the fresh record, not the snapshot.
		f.tasks.onGetByID = func(string) {
			f.tasks.onGetByID = nil
			_, err := f.svc.ApplyCompletionChange(ctx, task.ID, day(5), 1)
			require.NoError(t, err)
		}

		require.NoError(t, f.svc.CheckDailyStreaks(ctx, day(5)))

		record, err := f.streaks.GetByTaskID(ctx, task.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, record.CurrentStreak, "sweep must not clobber the interleaved completion")
		require.NotNil(t, record.LastCompletionDate)
		assert.True(t, record.LastCompletionDate.Equal(day(5)))
		assert.Equal(t, 2, record.BestStreak)
	})

	t.Run("A failing task does not abort the sweep", func(t *testing.T) {
		f := newFixture()
		task := f.addTask(t, dailyPolicy)
		_, err := f.svc.ApplyCompletionChange(ctx, task.ID, day(2), 1)
		require.NoError(t, err)

		// Orphan record: its task is gone, sweep must log and move on.
		require.NoError(t, f.streaks.Create(ctx, &domain.StreakRecord{TaskID: "orphan", CurrentStreak: 3, BestStreak: 3}))

		require.NoError(t, f.svc.CheckDailyStreaks(ctx, day(5)))

		swept, err := f.streaks.GetByTaskID(ctx, task.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, swept.CurrentStreak)
	})
}

func TestRecalculateStreak(t *testing.T) {
	ctx := context.Background()

	t.Run("Rebuild agrees with the incremental path", func(t *testing.T) {
		f := newFixture()
		task := f.addTask(t, weekdayPolicy)

		days := []int{3, 4, 5, 8}
		for _, d := range days {
			_, err := f.svc.ApplyCompletionChange(ctx, task.ID, day(d), 1)
			require.NoError(t, err)
		}
		incremental, err := f.streaks.GetByTaskID(ctx, task.ID)
		require.NoError(t, err)

		require.NoError(t, f.svc.RecalculateStreak(ctx, task.ID, day(8)))
		rebuilt, err := f.streaks.GetByTaskID(ctx, task.ID)
		require.NoError(t, err)

		assert.Equal(t, incremental.CurrentStreak, rebuilt.CurrentStreak)
		assert.Equal(t, incremental.BestStreak, rebuilt.BestStreak)
		assert.True(t, rebuilt.LastCompletionDate.Equal(*incremental.LastCompletionDate))
		assert.True(t, rebuilt.StreakStartDate.Equal(*incremental.StreakStartDate))
	})

	t.Run("No history and no record writes nothing", func(t *testing.T) {
		f := newFixture()
		task := f.addTask(t, dailyPolicy)

		require.NoError(t, f.svc.RecalculateStreak(ctx, task.ID, day(8)))
		_, err := f.streaks.GetByTaskID(ctx, task.ID)
		assert.ErrorIs(t, err, domain.ErrStreakRecordNotFound)
	})

	t.Run("Stored best is merged with max", func(t *testing.T) {
		f := newFixture()
		task := f.addTask(t, dailyPolicy)
		f.log(t, task.ID, 8, 1)
		require.NoError(t, f.streaks.Create(ctx, &domain.StreakRecord{TaskID: task.ID, BestStreak: 7}))

		require.NoError(t, f.svc.RecalculateStreak(ctx, task.ID, day(8)))
		record, err := f.streaks.GetByTaskID(ctx, task.ID)
		require.NoError(t, err)

		assert.Equal(t, 1, record.CurrentStreak)
		assert.Equal(t, 7, record.BestStreak)
	})
}

func TestAtRiskStreaks(t *testing.T) {
	ctx := context.Background()

	t.Run("Only deadline-day streaks qualify, longest first", func(t *testing.T) {
		f := newFixture()

		short := f.addTask(t, dailyPolicy)
		for d := 3; d <= 4; d++ {
			_, err := f.svc.ApplyCompletionChange(ctx, short.ID, day(d), 1)
			require.NoError(t, err)
		}
		long := f.addTask(t, dailyPolicy)
		for d := 1; d <= 4; d++ {
			_, err := f.svc.ApplyCompletionChange(ctx, long.ID, day(d), 1)
			require.NoError(t, err)
		}
		fresh := f.addTask(t, dailyPolicy)
		_, err := f.svc.ApplyCompletionChange(ctx, fresh.ID, day(5), 1)
		require.NoError(t, err)

		atRisk, err := f.svc.AtRiskStreaks(ctx, day(5), 1)
		require.NoError(t, err)

		require.Len(t, atRisk, 2, "the fresh completion still has slack")
		assert.Equal(t, long.ID, atRisk[0].TaskID)
		assert.Equal(t, short.ID, atRisk[1].TaskID)
		assert.Equal(t, 1, atRisk[0].DaysUntilBreak)
	})

	t.Run("Minimum length filters short streaks", func(t *testing.T) {
		f := newFixture()
		task := f.addTask(t, dailyPolicy)
		_, err := f.svc.ApplyCompletionChange(ctx, task.ID, day(2), 1)
		require.NoError(t, err)

		atRisk, err := f.svc.AtRiskStreaks(ctx, day(3), 2)
		require.NoError(t, err)
		assert.Empty(t, atRisk)
	})

	t.Run("Priority follows the streak length tiers", func(t *testing.T) {
		f := newFixture()
		task := f.addTask(t, dailyPolicy)
		last := day(8)
		require.NoError(t, f.streaks.Create(ctx, &domain.StreakRecord{
			TaskID:             task.ID,
			CurrentStreak:      45,
			BestStreak:         45,
			LastCompletionDate: &last,
		}))

		atRisk, err := f.svc.AtRiskStreaks(ctx, day(9), 1)
		require.NoError(t, err)
		require.Len(t, atRisk, 1)
		assert.Equal(t, domain.PriorityHigh, atRisk[0].Priority)
	})

	t.Run("Archived tasks are excluded", func(t *testing.T) {
		f := newFixture()
		task := f.addTask(t, dailyPolicy)
		_, err := f.svc.ApplyCompletionChange(ctx, task.ID, day(2), 1)
		require.NoError(t, err)

		stored, err := f.tasks.GetByID(ctx, task.ID)
		require.NoError(t, err)
		stored.Archive()
		require.NoError(t, f.tasks.Update(ctx, stored))

		atRisk, err := f.svc.AtRiskStreaks(ctx, day(3), 1)
		require.NoError(t, err)
		assert.Empty(t, atRisk)
	})
}
