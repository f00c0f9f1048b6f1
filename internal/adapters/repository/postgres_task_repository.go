package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/comitanigiacomo/ritmo-streak-engine/internal/core/domain"
	"github.com/jmoiron/sqlx"
)

type PostgresTaskRepository struct {
	db *sqlx.DB
}

func NewPostgresTaskRepository(db *sqlx.DB) *PostgresTaskRepository {
	return &PostgresTaskRepository{db: db}
}

type scannable interface {
	Scan(dest ...interface{}) error
}

const taskColumns = `id, title, color, icon,
    streak_enabled, streak_minimum_count, streak_skip_weekends, streak_skip_days,
    created_at, updated_at, archived_at`

func (r *PostgresTaskRepository) scanRow(row scannable) (*domain.Task, error) {
	var t domain.Task
	var skipDaysJSON []byte

	err := row.Scan(
		&t.ID, &t.Title, &t.Color, &t.Icon,
		&t.Streak.Enabled, &t.Streak.MinimumCount, &t.Streak.SkipWeekends, &skipDaysJSON,
		&t.CreatedAt, &t.UpdatedAt, &t.ArchivedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(skipDaysJSON) > 0 {
		if err := json.Unmarshal(skipDaysJSON, &t.Streak.SkipDays); err != nil {
			return nil, fmt.Errorf("failed to unmarshal skip days: %w", err)
		}
	}

	return &t, nil
}

func (r *PostgresTaskRepository) Create(ctx context.Context, t *domain.Task) error {
	skipDaysJSON, err := json.Marshal(t.Streak.SkipDays)
	if err != nil {
		return fmt.Errorf("failed to marshal skip days: %w", err)
	}

	query := `
        INSERT INTO tasks (
            id, title, color, icon,
            streak_enabled, streak_minimum_count, streak_skip_weekends, streak_skip_days,
            created_at, updated_at, archived_at
        ) VALUES (
            $1, $2, $3, $4,
            $5, $6, $7, $8,
            $9, $10, $11
        )`

	_, err = r.db.ExecContext(ctx, query,
		t.ID, t.Title, t.Color, t.Icon,
		t.Streak.Enabled, t.Streak.MinimumCount, t.Streak.SkipWeekends, skipDaysJSON,
		t.CreatedAt, t.UpdatedAt, t.ArchivedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to insert task: %w", err)
	}

	return nil
}

func (r *PostgresTaskRepository) GetByID(ctx context.Context, id string) (*domain.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`

	row := r.db.QueryRowContext(ctx, query, id)

	t, err := r.scanRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrTaskNotFound
		}
		return nil, fmt.Errorf("database scan error: %w", err)
	}

	return t, nil
}

func (r *PostgresTaskRepository) GetByIDs(ctx context.Context, ids []string) ([]*domain.Task, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query, args, err := sqlx.In(`SELECT `+taskColumns+` FROM tasks WHERE id IN (?)`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}
	query = r.db.Rebind(query)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query error: %w", err)
	}
	defer rows.Close()

	return r.collect(rows)
}

func (r *PostgresTaskRepository) ListAll(ctx context.Context) ([]*domain.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks ORDER BY created_at ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query error: %w", err)
	}
	defer rows.Close()

	return r.collect(rows)
}

func (r *PostgresTaskRepository) ListStreakEnabled(ctx context.Context) ([]*domain.Task, error) {
	query := `
        SELECT ` + taskColumns + ` FROM tasks
        WHERE streak_enabled = TRUE AND archived_at IS NULL
        ORDER BY created_at ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query error: %w", err)
	}
	defer rows.Close()

	return r.collect(rows)
}

func (r *PostgresTaskRepository) collect(rows *sql.Rows) ([]*domain.Task, error) {
	var tasks []*domain.Task
	for rows.Next() {
		t, err := r.scanRow(rows)
		if err != nil {
			return nil, fmt.Errorf("row scan error: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func (r *PostgresTaskRepository) Update(ctx context.Context, t *domain.Task) error {
	skipDaysJSON, err := json.Marshal(t.Streak.SkipDays)
	if err != nil {
		return err
	}

	query := `
        UPDATE tasks SET
            title=$1, color=$2, icon=$3,
            streak_enabled=$4, streak_minimum_count=$5, streak_skip_weekends=$6, streak_skip_days=$7,
            archived_at=$8, updated_at=NOW()
        WHERE id=$9`

	res, err := r.db.ExecContext(ctx, query,
		t.Title, t.Color, t.Icon,
		t.Streak.Enabled, t.Streak.MinimumCount, t.Streak.SkipWeekends, skipDaysJSON,
		t.ArchivedAt, t.ID,
	)
	if err != nil {
		return fmt.Errorf("update query failed: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrTaskNotFound
	}

	return nil
}

func (r *PostgresTaskRepository) Delete(ctx context.Context, id string) error {
	// completion_logs and streak_records reference tasks with
	// ON DELETE CASCADE; one statement removes the whole family.
	query := `DELETE FROM tasks WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete query failed: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrTaskNotFound
	}

	return nil
}
