package postgres

import (
	"context"
	"database/sql"
	"time"

	dErrors "corretaje/pkg/domain-errors"
	"corretaje/pkg/platform/tx"
)

const defaultTxTimeout = 5 * time.Second

// TxRunner runs units of work in a database transaction stored on the
// context, where stores pick it up through tx.Executor.
type TxRunner struct {
	db      *sql.DB
	timeout time.Duration
}

// NewTxRunner builds a runner; a zero timeout uses the 5s default.
func NewTxRunner(db *sql.DB, timeout time.Duration) *TxRunner {
	return &TxRunner{db: db, timeout: timeout}
}

func (t *TxRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	// already inside a unit of work
	if _, ok := tx.From(ctx); ok {
		return fn(ctx)
	}
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	sqlTx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = sqlTx.Rollback()
	}()

	if err := fn(tx.WithTx(ctx, sqlTx)); err != nil {
		return err
	}

	return sqlTx.Commit()
}
