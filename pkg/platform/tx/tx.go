package tx

import (
	"context"
	"database/sql"
	"sync"
)

type ctxKey struct{}

var txKey = ctxKey{}

// Runner executes fn inside one unit of work. Returning an error from fn
// rolls back every write fn made; a nil return commits.
type Runner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// WithTx stores a SQL transaction in context for downstream store usage.
func WithTx(ctx context.Context, tx *sql.Tx) context.Context {
	if tx == nil {
		return ctx
	}
	return context.WithValue(ctx, txKey, tx)
}

// From extracts a SQL transaction from context if present.
func From(ctx context.Context) (*sql.Tx, bool) {
	tx, ok := ctx.Value(txKey).(*sql.Tx)
	return tx, ok
}

// DBTX is the query surface shared by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Executor returns the transaction bound to ctx, falling back to db.
func Executor(ctx context.Context, db *sql.DB) DBTX {
	if tx, ok := From(ctx); ok {
		return tx
	}
	return db
}

// Snapshotter is implemented by in-memory stores that can roll back.
// Snapshot captures current state and returns a function restoring it.
type Snapshotter interface {
	Snapshot() (restore func())
}

// MemoryRunner gives in-memory stores transaction semantics: units of work
// are serialized and a failing unit restores every registered store.
// Stores embedding MemoryGate also hold writes issued outside a unit until
// the running unit finishes, so a rollback never discards them.
type MemoryRunner struct {
	mu     sync.Mutex
	stores []Snapshotter
}

// NewMemoryRunner builds a runner over the stores that participate in units of work.
func NewMemoryRunner(stores ...Snapshotter) *MemoryRunner {
	r := &MemoryRunner{stores: stores}
	for _, s := range stores {
		if g, ok := s.(interface{ BindRunner(*MemoryRunner) }); ok {
			g.BindRunner(r)
		}
	}
	return r
}

// MemoryGate is embedded by in-memory stores. Unbound gates never block.
type MemoryGate struct {
	runner *MemoryRunner
}

func (g *MemoryGate) BindRunner(r *MemoryRunner) {
	g.runner = r
}

// BeginWrite must wrap every mutating store call, before the store's own
// lock is taken. Writes inside a unit of work pass straight through.
func (g *MemoryGate) BeginWrite(ctx context.Context) (done func()) {
	r := g.runner
	if r == nil || ctx.Value(memoryTxKey{}) == r {
		return func() {}
	}
	r.mu.Lock()
	return r.mu.Unlock
}

type memoryTxKey struct{}

func (r *MemoryRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	// nested calls join the outer unit
	if ctx.Value(memoryTxKey{}) == r {
		return fn(ctx)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	restores := make([]func(), 0, len(r.stores))
	for _, s := range r.stores {
		restores = append(restores, s.Snapshot())
	}
	rollback := func() {
		for i := len(restores) - 1; i >= 0; i-- {
			restores[i]()
		}
	}
	defer func() {
		if p := recover(); p != nil {
			rollback()
			panic(p)
		}
	}()

	if err := fn(context.WithValue(ctx, memoryTxKey{}, r)); err != nil {
		rollback()
		return err
	}
	return nil
}
