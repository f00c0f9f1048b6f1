package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/comitanigiacomo/ritmo-streak-engine/internal/core/domain"
)

var _ domain.Transactor = (*SQLTransactor)(nil)

// SQLTransactor is the all-or-nothing wrapper of the atomic completion
// path: it hands fn log and streak repositories bound to one open
// transaction, so both writes commit together or not at all.
type SQLTransactor struct {
	db *sqlx.DB
}

func NewSQLTransactor(db *sqlx.DB) *SQLTransactor {
	return &SQLTransactor{db: db}
}

func (t *SQLTransactor) WithinTx(ctx context.Context, fn func(repos domain.TxRepos) error) error {
	tx, err := t.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	repos := domain.TxRepos{
		Logs:    NewPostgresLogRepository(tx),
		Streaks: NewPostgresStreakRepository(tx),
	}

	if err := fn(repos); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	committed = true
	return nil
}
