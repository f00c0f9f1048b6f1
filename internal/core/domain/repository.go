package domain

import (
	"context"
	"errors"
	"time"
)

var (
	ErrTaskNotFound         = errors.New("task not found")
	ErrLogNotFound          = errors.New("completion log not found")
	ErrStreakRecordNotFound = errors.New("streak record not found")
)

type TaskRepository interface {
	// Create persists a new task definition in the storage.
	Create(ctx context.Context, task *Task) error

	// GetByID retrieves a task by its unique identifier.
	GetByID(ctx context.Context, id string) (*Task, error)

	// GetByIDs retrieves the subset of tasks matching the given ids.
	GetByIDs(ctx context.Context, ids []string) ([]*Task, error)

	// ListAll retrieves every task, archived ones included.
	ListAll(ctx context.Context) ([]*Task, error)

	// ListStreakEnabled retrieves non-archived tasks with streak
	// tracking enabled, the working set of the sweep and rebuild.
	ListStreakEnabled(ctx context.Context) ([]*Task, error)

	// Update modifies the state of an existing task.
	Update(ctx context.Context, task *Task) error

	// Delete permanently removes a task. Completion logs and the streak
	// record cascade with it.
	Delete(ctx context.Context, id string) error
}

type CompletionLogRepository interface {
	// Upsert creates or overwrites the single log row for (taskID, day).
	Upsert(ctx context.Context, log *CompletionLog) error

	// GetByTaskAndDate retrieves the log row for one day, or ErrLogNotFound.
	GetByTaskAndDate(ctx context.Context, taskID string, date time.Time) (*CompletionLog, error)

	// ListByTaskID retrieves the full history for a task, ascending by date.
	ListByTaskID(ctx context.Context, taskID string) ([]*CompletionLog, error)

	// ListByDateRange retrieves logs for a task between two days inclusive,
	// ascending by date.
	ListByDateRange(ctx context.Context, taskID string, from, to time.Time) ([]*CompletionLog, error)
}

type StreakRecordRepository interface {
	// GetByTaskID retrieves the streak record, or ErrStreakRecordNotFound.
	GetByTaskID(ctx context.Context, taskID string) (*StreakRecord, error)

	// Create persists a new record. One record per task.
	Create(ctx context.Context, record *StreakRecord) error

	// Update overwrites an existing record.
	Update(ctx context.Context, record *StreakRecord) error

	// ListAll retrieves every streak record.
	ListAll(ctx context.Context) ([]*StreakRecord, error)

	// ListActive retrieves records with a positive current streak,
	// the candidates the daily sweep has to examine.
	ListActive(ctx context.Context) ([]*StreakRecord, error)
}

// TxRepos bundles the repositories scoped to one transaction. The atomic
// completion path writes the log and the streak record through these so
// that no reader ever observes one without the other.
type TxRepos struct {
	Logs    CompletionLogRepository
	Streaks StreakRecordRepository
}

type Transactor interface {
	// WithinTx runs fn inside a single all-or-nothing transaction.
	WithinTx(ctx context.Context, fn func(repos TxRepos) error) error
}
