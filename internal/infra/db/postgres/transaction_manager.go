package postgres

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/dheerurajpoot/quote-generator-sub001/internal/domain"
	"github.com/dheerurajpoot/quote-generator-sub001/internal/domain/ports/repository"
	"github.com/dheerurajpoot/quote-generator-sub001/internal/infra/metrics"
)

// Ensure compile-time conformance
var (
	_ repository.TransactionManager = (*TxManager)(nil)
	_ repository.UserLocker         = (*TxManager)(nil)
)

// TxManager implements repository.TransactionManager for Postgres (pgx).
// The tx handle is passed to the callback as a pgx.Tx.
type TxManager struct {
	pool *pgxpool.Pool
}

func NewTxManager(pool *pgxpool.Pool) *TxManager {
	return &TxManager{pool: pool}
}

// WithTx opens a DB transaction and passes the tx handle to fn.
// If fn returns an error, the transaction is rolled back; otherwise it is
// committed and the hooks registered through repository.OnCommit run.
func (m *TxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	tx, err := m.pool.BeginTx(ctx, txOpt)
	if err != nil {
		metrics.IncDBTx("error")
		return fmt.Errorf("%w: begin: %v", domain.ErrOperationFailed, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	hookCtx, afterCommit := repository.WithCommitHooks(ctx)
	if err := fn(hookCtx, tx); err != nil {
		metrics.IncDBTx("rollback")
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		metrics.IncDBTx("error")
		return fmt.Errorf("%w: commit: %v", domain.ErrOperationFailed, err)
	}
	metrics.IncDBTx("commit")
	afterCommit(context.WithoutCancel(ctx))
	return nil
}

// LockUser takes a transaction-scoped advisory lock keyed by the user id.
// It is released on commit or rollback.
func (m *TxManager) LockUser(ctx context.Context, tx repository.Tx, userID string) error {
	ptx, ok := tx.(pgx.Tx)
	if !ok {
		return domain.ErrInvalidExecContext
	}
	if _, err := ptx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", hashToInt64(userID)); err != nil {
		return fmt.Errorf("%w: advisory lock: %v", domain.ErrOperationFailed, err)
	}
	return nil
}

func hashToInt64(s string) int64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return int64(h.Sum64() & ((1 << 63) - 1))
}

type executor interface {
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
}

func getExecutor(pool *pgxpool.Pool, tx repository.Tx) (executor, error) {
	switch v := tx.(type) {
	case pgx.Tx:
		return v, nil
	case *pgxpool.Conn:
		return v, nil
	case *pgxpool.Pool:
		return v, nil
	case nil:
		if pool != nil {
			return pool, nil
		}
		return nil, domain.ErrInvalidArgument
	default:
		return nil, domain.ErrInvalidExecContext
	}
}

func execSQL(ctx context.Context, pool *pgxpool.Pool, tx repository.Tx, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	ex, err := getExecutor(pool, tx)
	if err != nil {
		return nil, err
	}
	return ex.Exec(ctx, sql, args...)
}

func pickRow(ctx context.Context, pool *pgxpool.Pool, tx repository.Tx, sql string, args ...interface{}) (pgx.Row, error) {
	ex, err := getExecutor(pool, tx)
	if err != nil {
		return nil, err
	}
	return ex.QueryRow(ctx, sql, args...), nil
}

func queryRows(ctx context.Context, pool *pgxpool.Pool, tx repository.Tx, sql string, args ...interface{}) (pgx.Rows, error) {
	ex, err := getExecutor(pool, tx)
	if err != nil {
		return nil, err
	}
	return ex.Query(ctx, sql, args...)
}

// lockClause appends FOR UPDATE when running inside a transaction.
func lockClause(tx repository.Tx, q string) string {
	if _, ok := tx.(pgx.Tx); ok {
		return q + " FOR UPDATE"
	}
	return q
}

// Constraint names from deploy/postgres/init.sql.
const (
	constraintTransactionID  = "uq_transactions_transaction_id"
	constraintPendingPerPlan = "uq_subscriptions_one_pending_per_plan"
	constraintOneActive      = "uq_subscriptions_one_active"
	constraintGatewayOrder   = "uq_subscriptions_gateway_order"
)

// mapWriteErr translates driver errors into domain sentinels.
func mapWriteErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, domain.ErrInvalidArgument) || errors.Is(err, domain.ErrInvalidExecContext) {
		return err
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		switch pgErr.ConstraintName {
		case constraintTransactionID, constraintGatewayOrder:
			return domain.ErrDuplicateTransaction
		case constraintPendingPerPlan:
			return domain.ErrDuplicatePendingRequest
		case constraintOneActive:
			return fmt.Errorf("%w: user already has an active subscription", domain.ErrInvalidState)
		}
	}
	return fmt.Errorf("%w: %v", domain.ErrOperationFailed, err)
}

func mapReadErr(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound
	}
	if errors.Is(err, domain.ErrInvalidArgument) || errors.Is(err, domain.ErrInvalidExecContext) {
		return err
	}
	return fmt.Errorf("%w: %v", domain.ErrReadDatabaseRow, err)
}

// nullable stores empty optional identifiers as NULL so partial unique indexes ignore them.
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// FieldCipher seals sensitive columns at rest.
type FieldCipher interface {
	Seal(plain string) (string, error)
	Open(sealed string) (string, error)
}

type plainText struct{}

func (plainText) Seal(s string) (string, error) { return s, nil }
func (plainText) Open(s string) (string, error) { return s, nil }

func orPlain(c FieldCipher) FieldCipher {
	if c == nil {
		return plainText{}
	}
	return c
}
