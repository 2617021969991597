package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/dheerurajpoot/quote-generator-sub001/internal/domain"
	"github.com/dheerurajpoot/quote-generator-sub001/internal/domain/model"
	"github.com/dheerurajpoot/quote-generator-sub001/internal/domain/ports/repository"
)

var _ repository.TransactionRepository = (*transactionRepo)(nil)

type transactionRepo struct {
	pool   *pgxpool.Pool
	cipher FieldCipher
}

func NewTransactionRepo(pool *pgxpool.Pool, cipher FieldCipher) *transactionRepo {
	return &transactionRepo{pool: pool, cipher: orPlain(cipher)}
}

const txCols = `id, subscription_id, user_id, amount, currency, status, payment_method, transaction_id, upi_id,
       plan_name, billing_cycle, admin_notes, verified_by, verified_at, paid_at, created_at, updated_at`

func (r *transactionRepo) Create(ctx context.Context, tx repository.Tx, t *model.Transaction) error {
	const q = `
INSERT INTO transactions (` + txCols + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17);`

	upi, err := r.cipher.Seal(t.UPIID)
	if err != nil {
		return fmt.Errorf("%w: seal upi id: %v", domain.ErrOperationFailed, err)
	}
	_, err = execSQL(ctx, r.pool, tx, q,
		t.ID, t.SubscriptionID, t.UserID, t.Amount, t.Currency, t.Status, t.PaymentMethod, t.TransactionID, upi,
		t.PlanName, t.BillingCycle, t.AdminNotes, t.VerifiedBy, t.VerifiedAt, t.PaidAt, t.CreatedAt, t.UpdatedAt)
	return mapWriteErr(err)
}

// Save persists a settlement. A ledger entry leaves pending once, so the row
// must still be pending (or already carry the same status on a replay).
func (r *transactionRepo) Save(ctx context.Context, tx repository.Tx, t *model.Transaction) error {
	const q = `
UPDATE transactions SET
  status=$2, admin_notes=$3, verified_by=$4, verified_at=$5, paid_at=$6, updated_at=$7
 WHERE id=$1 AND status IN ('pending', $2);`

	tag, err := execSQL(ctx, r.pool, tx, q, t.ID, t.Status, t.AdminNotes, t.VerifiedBy, t.VerifiedAt, t.PaidAt, t.UpdatedAt)
	if err != nil {
		return mapWriteErr(err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrConcurrentUpdate
	}
	return nil
}

func (r *transactionRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Transaction, error) {
	return r.queryOne(ctx, tx, lockClause(tx, `SELECT `+txCols+` FROM transactions WHERE id=$1`), id)
}

func (r *transactionRepo) FindByTransactionID(ctx context.Context, tx repository.Tx, externalID string) (*model.Transaction, error) {
	return r.queryOne(ctx, tx, `SELECT `+txCols+` FROM transactions WHERE transaction_id=$1`, externalID)
}

func (r *transactionRepo) FindBySubscriptionID(ctx context.Context, tx repository.Tx, subscriptionID string) (*model.Transaction, error) {
	q := lockClause(tx, `SELECT `+txCols+` FROM transactions WHERE subscription_id=$1 ORDER BY created_at ASC LIMIT 1`)
	return r.queryOne(ctx, tx, q, subscriptionID)
}

func (r *transactionRepo) SumSuccessfulSince(ctx context.Context, tx repository.Tx, since time.Time) (int64, error) {
	const q = `SELECT COALESCE(SUM(amount), 0) FROM transactions WHERE status='success' AND paid_at >= $1;`
	row, err := pickRow(ctx, r.pool, tx, q, since)
	if err != nil {
		return 0, err
	}
	var n int64
	if err := row.Scan(&n); err != nil {
		return 0, domain.ErrReadDatabaseRow
	}
	return n, nil
}

func (r *transactionRepo) queryOne(ctx context.Context, tx repository.Tx, sql string, args ...any) (*model.Transaction, error) {
	row, err := pickRow(ctx, r.pool, tx, sql, args...)
	if err != nil {
		return nil, err
	}
	return r.scan(row)
}

func (r *transactionRepo) scan(row pgx.Row) (*model.Transaction, error) {
	t := &model.Transaction{}
	var status, method, cycle, upi string
	if err := row.Scan(&t.ID, &t.SubscriptionID, &t.UserID, &t.Amount, &t.Currency, &status, &method, &t.TransactionID, &upi,
		&t.PlanName, &cycle, &t.AdminNotes, &t.VerifiedBy, &t.VerifiedAt, &t.PaidAt, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, mapReadErr(err)
	}
	t.Status = model.TransactionStatus(status)
	t.PaymentMethod = model.PaymentMethod(method)
	t.BillingCycle = model.BillingCycle(cycle)
	plain, err := r.cipher.Open(upi)
	if err != nil {
		return nil, fmt.Errorf("%w: open upi id: %v", domain.ErrReadDatabaseRow, err)
	}
	t.UPIID = plain
	return t, nil
}
