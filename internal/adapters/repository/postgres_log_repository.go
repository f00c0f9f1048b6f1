package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/comitanigiacomo/ritmo-streak-engine/internal/core/domain"
)

// PostgresLogRepository runs against either the pool or an open
// transaction: sqlx.ExtContext is satisfied by both, which is how the
// atomic completion path shares this code.
type PostgresLogRepository struct {
	q sqlx.ExtContext
}

func NewPostgresLogRepository(q sqlx.ExtContext) *PostgresLogRepository {
	return &PostgresLogRepository{q: q}
}

func (r *PostgresLogRepository) Upsert(ctx context.Context, entry *domain.CompletionLog) error {
	query := `
		INSERT INTO completion_logs (
			task_id, log_date, count, created_at, updated_at
		) VALUES (
			:task_id, :log_date, :count, :created_at, :updated_at
		)
		ON CONFLICT (task_id, log_date)
		DO UPDATE SET count = EXCLUDED.count, updated_at = EXCLUDED.updated_at`

	_, err := sqlx.NamedExecContext(ctx, r.q, query, entry)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23503" {
			return domain.ErrTaskNotFound
		}
		return err
	}
	return nil
}

func (r *PostgresLogRepository) GetByTaskAndDate(ctx context.Context, taskID string, date time.Time) (*domain.CompletionLog, error) {
	var entry domain.CompletionLog
	query := `SELECT * FROM completion_logs WHERE task_id = $1 AND log_date = $2`

	err := sqlx.GetContext(ctx, r.q, &entry, query, taskID, domain.DayOf(date))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrLogNotFound
		}
		return nil, err
	}
	return &entry, nil
}

func (r *PostgresLogRepository) ListByTaskID(ctx context.Context, taskID string) ([]*domain.CompletionLog, error) {
	entries := []*domain.CompletionLog{}

	query := `
		SELECT * FROM completion_logs
		WHERE task_id = $1
		ORDER BY log_date ASC`

	if err := sqlx.SelectContext(ctx, r.q, &entries, query, taskID); err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *PostgresLogRepository) ListByDateRange(ctx context.Context, taskID string, from, to time.Time) ([]*domain.CompletionLog, error) {
	entries := []*domain.CompletionLog{}

	query := `
		SELECT * FROM completion_logs
		WHERE task_id = $1 AND log_date >= $2 AND log_date <= $3
		ORDER BY log_date ASC`

	if err := sqlx.SelectContext(ctx, r.q, &entries, query, taskID, domain.DayOf(from), domain.DayOf(to)); err != nil {
		return nil, err
	}
	return entries, nil
}
