package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/comitanigiacomo/ritmo-streak-engine/internal/core/domain"
)

type PostgresStreakRepository struct {
	q sqlx.ExtContext
}

func NewPostgresStreakRepository(q sqlx.ExtContext) *PostgresStreakRepository {
	return &PostgresStreakRepository{q: q}
}

func (r *PostgresStreakRepository) GetByTaskID(ctx context.Context, taskID string) (*domain.StreakRecord, error) {
	var record domain.StreakRecord
	query := `SELECT * FROM streak_records WHERE task_id = $1`

	err := sqlx.GetContext(ctx, r.q, &record, query, taskID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrStreakRecordNotFound
		}
		return nil, err
	}
	return &record, nil
}

func (r *PostgresStreakRepository) Create(ctx context.Context, record *domain.StreakRecord) error {
	query := `
		INSERT INTO streak_records (
			task_id, current_streak, best_streak,
			last_completion_date, streak_start_date, updated_at
		) VALUES (
			:task_id, :current_streak, :best_streak,
			:last_completion_date, :streak_start_date, :updated_at
		)`

	_, err := sqlx.NamedExecContext(ctx, r.q, query, record)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23503" {
			return domain.ErrTaskNotFound
		}
		return err
	}
	return nil
}

func (r *PostgresStreakRepository) Update(ctx context.Context, record *domain.StreakRecord) error {
	query := `
		UPDATE streak_records SET
			current_streak = :current_streak,
			best_streak = :best_streak,
			last_completion_date = :last_completion_date,
			streak_start_date = :streak_start_date,
			updated_at = :updated_at
		WHERE task_id = :task_id`

	res, err := sqlx.NamedExecContext(ctx, r.q, query, record)
	if err != nil {
		return err
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrStreakRecordNotFound
	}
	return nil
}

func (r *PostgresStreakRepository) ListAll(ctx context.Context) ([]*domain.StreakRecord, error) {
	records := []*domain.StreakRecord{}

	query := `SELECT * FROM streak_records ORDER BY task_id ASC`

	if err := sqlx.SelectContext(ctx, r.q, &records, query); err != nil {
		return nil, err
	}
	return records, nil
}

func (r *PostgresStreakRepository) ListActive(ctx context.Context) ([]*domain.StreakRecord, error) {
	records := []*domain.StreakRecord{}

	query := `SELECT * FROM streak_records WHERE current_streak > 0 ORDER BY task_id ASC`

	if err := sqlx.SelectContext(ctx, r.q, &records, query); err != nil {
		return nil, err
	}
	return records, nil
}
