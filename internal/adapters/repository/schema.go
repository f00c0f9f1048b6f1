package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Bootstrap creates the engine's tables when they do not exist yet.
// Proper schema migration lives outside this service; this keeps a fresh
// database usable without it.
func Bootstrap(ctx context.Context, db *sqlx.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS tasks (
			id UUID PRIMARY KEY,
			title TEXT NOT NULL,
			color TEXT NOT NULL DEFAULT '',
			icon TEXT NOT NULL DEFAULT 'default_icon',

			streak_enabled BOOLEAN NOT NULL DEFAULT FALSE,
			streak_minimum_count INTEGER NOT NULL DEFAULT 1,
			streak_skip_weekends BOOLEAN NOT NULL DEFAULT FALSE,
			streak_skip_days JSONB,

			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL,
			archived_at TIMESTAMPTZ
		);`,
		`CREATE TABLE IF NOT EXISTS completion_logs (
			task_id UUID NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
			log_date DATE NOT NULL,
			count INTEGER NOT NULL CHECK (count >= 0),
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (task_id, log_date)
		);`,
		`CREATE TABLE IF NOT EXISTS streak_records (
			task_id UUID PRIMARY KEY REFERENCES tasks(id) ON DELETE CASCADE,
			current_streak INTEGER NOT NULL DEFAULT 0 CHECK (current_streak >= 0),
			best_streak INTEGER NOT NULL DEFAULT 0 CHECK (best_streak >= current_streak),
			last_completion_date DATE,
			streak_start_date DATE,
			updated_at TIMESTAMPTZ NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_completion_logs_task_date
			ON completion_logs (task_id, log_date);`,
		`CREATE INDEX IF NOT EXISTS idx_streak_records_active
			ON streak_records (current_streak) WHERE current_streak > 0;`,
	}

	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema bootstrap: %w", err)
		}
	}
	return nil
}
