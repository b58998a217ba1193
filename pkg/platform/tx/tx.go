// Package tx lets a service compose writes across several stores into one
// database transaction without the stores knowing about each other. The
// transaction travels through the context; stores that find one use it,
// stores that don't fall back to their own connection.
package tx

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type txContextKey struct{}

// WithTx binds tx to the context so every store touched inside a Runner.InTx
// callback writes through the same transaction.
func WithTx(ctx context.Context, tx *sql.Tx) context.Context {
	if tx == nil {
		return ctx
	}
	return context.WithValue(ctx, txContextKey{}, tx)
}

// From returns the transaction bound to ctx, if any.
func From(ctx context.Context) (*sql.Tx, bool) {
	tx, ok := ctx.Value(txContextKey{}).(*sql.Tx)
	return tx, ok
}

// Runner executes a function inside a single transaction. The transaction is
// committed only when the function returns nil; any error rolls everything
// back, so multi-store writes are all-or-nothing.
type Runner struct {
	db      *sql.DB
	timeout time.Duration
}

func NewRunner(db *sql.DB) *Runner {
	return &Runner{db: db, timeout: 5 * time.Second}
}

// InTx runs fn with a transaction bound to its context. A context without a
// deadline gets the runner's default timeout so an abandoned transaction
// cannot hold locks forever.
func (r *Runner) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = dbTx.Rollback() }()

	if err := fn(WithTx(ctx, dbTx)); err != nil {
		return err
	}
	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
