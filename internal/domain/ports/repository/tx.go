package repository

import (
	"context"
	"sync"

	"github.com/jackc/pgx/v4"
)

type Tx interface{}

var NoTX interface{}

// TransactionManager executes fn inside a database transaction, passing the
// underlying handle via tx. Repositories accept that handle (or nil for the
// non-transactional path) and use it for SELECT ... FOR UPDATE and writes.
//
//	tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
//		sub, err := subs.FindByID(ctx, tx, id)
//		...
//		return subs.Save(ctx, tx, sub)
//	})
//
// If fn returns an error the transaction is rolled back and nothing is persisted.
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}

// UserLocker serialises writes that touch a user's entitlement. Inside a
// Postgres transaction this is a pg_advisory_xact_lock released on commit.
// It must be taken before any row of that user is locked FOR UPDATE.
type UserLocker interface {
	LockUser(ctx context.Context, tx Tx, userID string) error
}

type commitHooksKey struct{}

type commitHooks struct {
	mu  sync.Mutex
	fns []func(ctx context.Context)
}

// WithCommitHooks returns a context that collects callbacks registered with
// OnCommit, and a function the transaction manager calls after a successful
// commit to run them in registration order.
func WithCommitHooks(ctx context.Context) (context.Context, func(ctx context.Context)) {
	h := &commitHooks{}
	run := func(ctx context.Context) {
		h.mu.Lock()
		fns := h.fns
		h.fns = nil
		h.mu.Unlock()
		for _, fn := range fns {
			fn(ctx)
		}
	}
	return context.WithValue(ctx, commitHooksKey{}, h), run
}

// OnCommit defers fn until the enclosing transaction commits. It reports
// false when ctx carries no transaction, in which case nothing is registered.
func OnCommit(ctx context.Context, fn func(ctx context.Context)) bool {
	h, ok := ctx.Value(commitHooksKey{}).(*commitHooks)
	if !ok {
		return false
	}
	h.mu.Lock()
	h.fns = append(h.fns, fn)
	h.mu.Unlock()
	return true
}
