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

// Ensure subscriptionRepo implements repository.SubscriptionRepository
var _ repository.SubscriptionRepository = (*subscriptionRepo)(nil)

type subscriptionRepo struct {
	pool   *pgxpool.Pool
	cipher FieldCipher
}

// NewSubscriptionRepo builds the store; cipher may be nil to keep UPI ids in clear.
func NewSubscriptionRepo(pool *pgxpool.Pool, cipher FieldCipher) *subscriptionRepo {
	return &subscriptionRepo{pool: pool, cipher: orPlain(cipher)}
}

const subCols = `s.id, s.user_id, s.plan_id, s.plan_name, s.tier, s.status, s.billing_cycle, s.amount, s.currency,
       s.current_period_start, s.current_period_end, s.payment_method, s.upi_id, s.transaction_id,
       s.gateway_order_id, s.gateway_payment_id, s.gateway_subscription_id, s.auto_renew,
       s.admin_notes, s.verified_by, s.verified_at, s.cancelled_at, s.created_at, s.updated_at, s.version`

func (r *subscriptionRepo) Create(ctx context.Context, tx repository.Tx, s *model.Subscription) error {
	const q = `
INSERT INTO subscriptions (
  id, user_id, plan_id, plan_name, tier, status, billing_cycle, amount, currency,
  current_period_start, current_period_end, payment_method, upi_id, transaction_id,
  gateway_order_id, gateway_payment_id, gateway_subscription_id, auto_renew,
  admin_notes, verified_by, verified_at, cancelled_at, created_at, updated_at, version
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,1);`

	upi, err := r.cipher.Seal(s.UPIID)
	if err != nil {
		return fmt.Errorf("%w: seal upi id: %v", domain.ErrOperationFailed, err)
	}
	_, err = execSQL(ctx, r.pool, tx, q,
		s.ID, s.UserID, s.PlanID, s.PlanName, s.Tier, s.Status, s.BillingCycle, s.Amount, s.Currency,
		s.CurrentPeriodStart, s.CurrentPeriodEnd, s.PaymentMethod, upi, s.TransactionID,
		nullable(s.GatewayOrderID), nullable(s.GatewayPaymentID), nullable(s.GatewaySubscriptionID), s.AutoRenew,
		s.AdminNotes, s.VerifiedBy, s.VerifiedAt, s.CancelledAt, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		return mapWriteErr(err)
	}
	s.Version = 1
	return nil
}

// Save writes the mutable columns if nobody else saved the record since it was read.
func (r *subscriptionRepo) Save(ctx context.Context, tx repository.Tx, s *model.Subscription) error {
	const q = `
UPDATE subscriptions SET
  status=$2, current_period_start=$3, current_period_end=$4,
  gateway_order_id=$5, gateway_payment_id=$6, gateway_subscription_id=$7, auto_renew=$8,
  admin_notes=$9, verified_by=$10, verified_at=$11, cancelled_at=$12, updated_at=$13,
  version=version+1
 WHERE id=$1 AND version=$14;`

	tag, err := execSQL(ctx, r.pool, tx, q,
		s.ID, s.Status, s.CurrentPeriodStart, s.CurrentPeriodEnd,
		nullable(s.GatewayOrderID), nullable(s.GatewayPaymentID), nullable(s.GatewaySubscriptionID), s.AutoRenew,
		s.AdminNotes, s.VerifiedBy, s.VerifiedAt, s.CancelledAt, s.UpdatedAt, s.Version)
	if err != nil {
		return mapWriteErr(err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrConcurrentUpdate
	}
	s.Version++
	return nil
}

func (r *subscriptionRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Subscription, error) {
	q := lockClause(tx, `SELECT `+subCols+` FROM subscriptions s WHERE s.id=$1`)
	return r.queryOne(ctx, tx, q, id)
}

func (r *subscriptionRepo) FindByGatewayOrderID(ctx context.Context, tx repository.Tx, orderID string) (*model.Subscription, error) {
	q := lockClause(tx, `SELECT `+subCols+` FROM subscriptions s WHERE s.gateway_order_id=$1`)
	return r.queryOne(ctx, tx, q, orderID)
}

func (r *subscriptionRepo) FindByGatewaySubscriptionID(ctx context.Context, tx repository.Tx, gatewaySubID string) (*model.Subscription, error) {
	q := lockClause(tx, `SELECT `+subCols+` FROM subscriptions s WHERE s.gateway_subscription_id=$1 ORDER BY s.created_at DESC LIMIT 1`)
	return r.queryOne(ctx, tx, q, gatewaySubID)
}

func (r *subscriptionRepo) FindPendingByUserAndPlan(ctx context.Context, tx repository.Tx, userID, planID string) (*model.Subscription, error) {
	q := lockClause(tx, `SELECT `+subCols+` FROM subscriptions s WHERE s.user_id=$1 AND s.plan_id=$2 AND s.status='pending' LIMIT 1`)
	return r.queryOne(ctx, tx, q, userID, planID)
}

func (r *subscriptionRepo) FindActiveByUser(ctx context.Context, tx repository.Tx, userID string) (*model.Subscription, error) {
	q := lockClause(tx, `SELECT `+subCols+` FROM subscriptions s WHERE s.user_id=$1 AND s.status='active' LIMIT 1`)
	return r.queryOne(ctx, tx, q, userID)
}

func (r *subscriptionRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string) ([]*model.Subscription, error) {
	const q = `SELECT ` + subCols + ` FROM subscriptions s WHERE s.user_id=$1 ORDER BY s.created_at DESC, s.id DESC`
	return r.queryMany(ctx, tx, q, userID)
}

func (r *subscriptionRepo) ListExpiredActive(ctx context.Context, tx repository.Tx, now time.Time, limit int) ([]*model.Subscription, error) {
	const q = `
SELECT ` + subCols + `
  FROM subscriptions s
 WHERE s.status='active' AND s.current_period_end <= $1
 ORDER BY s.current_period_end ASC
 LIMIT $2`
	return r.queryMany(ctx, tx, q, now, limit)
}

func (r *subscriptionRepo) ListWithUsers(ctx context.Context, tx repository.Tx, status model.SubscriptionStatus, offset, limit int) ([]*model.PendingPayment, error) {
	const q = `
SELECT ` + subCols + `, COALESCE(u.name, ''), COALESCE(u.email, '')
  FROM subscriptions s
  LEFT JOIN users u ON u.id = s.user_id
 WHERE s.status=$1
 ORDER BY s.created_at DESC, s.id DESC
 OFFSET $2 LIMIT $3`

	rows, err := queryRows(ctx, r.pool, tx, q, status, offset, limit)
	if err != nil {
		return nil, mapReadErr(err)
	}
	defer rows.Close()

	var out []*model.PendingPayment
	for rows.Next() {
		p := &model.PendingPayment{}
		var name, email string
		s, err := r.scan(rows, &name, &email)
		if err != nil {
			return nil, err
		}
		p.Subscription, p.UserName, p.UserEmail = s, name, email
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}

func (r *subscriptionRepo) CountByStatus(ctx context.Context, tx repository.Tx, status model.SubscriptionStatus) (int, error) {
	const q = `SELECT COUNT(*) FROM subscriptions WHERE status=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, status)
	if err != nil {
		return 0, err
	}
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, domain.ErrReadDatabaseRow
	}
	return n, nil
}

func (r *subscriptionRepo) CountAllByStatus(ctx context.Context, tx repository.Tx) (map[model.SubscriptionStatus]int, error) {
	const q = `SELECT status, COUNT(*) FROM subscriptions GROUP BY status;`
	rows, err := queryRows(ctx, r.pool, tx, q)
	if err != nil {
		return nil, mapReadErr(err)
	}
	defer rows.Close()

	counts := make(map[model.SubscriptionStatus]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		counts[model.SubscriptionStatus(status)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return counts, nil
}

func (r *subscriptionRepo) queryOne(ctx context.Context, tx repository.Tx, sql string, args ...any) (*model.Subscription, error) {
	row, err := pickRow(ctx, r.pool, tx, sql, args...)
	if err != nil {
		return nil, err
	}
	return r.scan(row)
}

func (r *subscriptionRepo) queryMany(ctx context.Context, tx repository.Tx, sql string, args ...any) ([]*model.Subscription, error) {
	rows, err := queryRows(ctx, r.pool, tx, sql, args...)
	if err != nil {
		return nil, mapReadErr(err)
	}
	defer rows.Close()

	var out []*model.Subscription
	for rows.Next() {
		s, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}

// scan reads subCols followed by any extra destinations.
func (r *subscriptionRepo) scan(row pgx.Row, extra ...any) (*model.Subscription, error) {
	s := &model.Subscription{}
	var tier, status, cycle, method, upi string
	var orderID, paymentID, gatewaySubID *string
	dest := []any{
		&s.ID, &s.UserID, &s.PlanID, &s.PlanName, &tier, &status, &cycle, &s.Amount, &s.Currency,
		&s.CurrentPeriodStart, &s.CurrentPeriodEnd, &method, &upi, &s.TransactionID,
		&orderID, &paymentID, &gatewaySubID, &s.AutoRenew,
		&s.AdminNotes, &s.VerifiedBy, &s.VerifiedAt, &s.CancelledAt, &s.CreatedAt, &s.UpdatedAt, &s.Version,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, mapReadErr(err)
	}
	s.Tier = model.Tier(tier)
	s.Status = model.SubscriptionStatus(status)
	s.BillingCycle = model.BillingCycle(cycle)
	s.PaymentMethod = model.PaymentMethod(method)
	s.GatewayOrderID = deref(orderID)
	s.GatewayPaymentID = deref(paymentID)
	s.GatewaySubscriptionID = deref(gatewaySubID)
	plain, err := r.cipher.Open(upi)
	if err != nil {
		return nil, fmt.Errorf("%w: open upi id: %v", domain.ErrReadDatabaseRow, err)
	}
	s.UPIID = plain
	return s, nil
}
