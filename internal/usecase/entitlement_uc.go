// File: internal/usecase/entitlement_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"github.com/dheerurajpoot/quote-generator-sub001/internal/domain"
	"github.com/dheerurajpoot/quote-generator-sub001/internal/domain/model"
	"github.com/dheerurajpoot/quote-generator-sub001/internal/domain/ports/adapter"
	"github.com/dheerurajpoot/quote-generator-sub001/internal/domain/ports/repository"
	uc "github.com/dheerurajpoot/quote-generator-sub001/internal/domain/ports/usecase"
	"github.com/dheerurajpoot/quote-generator-sub001/internal/infra/logging"
	"github.com/dheerurajpoot/quote-generator-sub001/internal/infra/metrics"
)

var _ uc.SubscriptionExpirer = (*EntitlementUseCase)(nil)

const (
	activationLockTTL = 15 * time.Second
	expireBatchSize   = 100
)

// SubmissionLimiter throttles UPI proof submissions per user.
type SubmissionLimiter interface {
	AllowSubmission(ctx context.Context, userID string) (bool, error)
}

// Locker is a cross-instance mutex used to short-circuit concurrent activations.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (string, error)
	Unlock(ctx context.Context, key, token string) error
}

// MessageCatalog renders admin-facing notification text.
type MessageCatalog interface {
	T(key string, args ...interface{}) string
}

// Dispatcher runs a side effect after commit. A nil Dispatcher runs it inline.
type Dispatcher func(task func(ctx context.Context) error)

// EntitlementDeps wires the state machine. Limiter, Locker, Notifier,
// Messages, Events and Dispatch are optional.
type EntitlementDeps struct {
	Subs     repository.SubscriptionRepository
	Txns     repository.TransactionRepository
	Webhooks repository.WebhookEventRepository
	TM       repository.TransactionManager
	Users    repository.UserLocker

	Catalog  *model.Catalog
	Gateway  adapter.PaymentGateway
	Verifier adapter.SignatureVerifier

	Limiter  SubmissionLimiter
	Locker   Locker
	Notifier adapter.AdminNotifier
	Messages MessageCatalog
	Events   adapter.EventPublisher
	Dispatch Dispatcher

	Clock  func() time.Time
	Logger *zerolog.Logger
	Dev    bool
}

// EntitlementUseCase is the subscription state machine: UPI submission,
// admin decisions, gateway webhooks, checkout verification and expiry.
type EntitlementUseCase struct {
	subs     repository.SubscriptionRepository
	txns     repository.TransactionRepository
	webhooks repository.WebhookEventRepository
	tm       repository.TransactionManager
	users    repository.UserLocker

	catalog  *model.Catalog
	gateway  adapter.PaymentGateway
	verifier adapter.SignatureVerifier

	limiter  SubmissionLimiter
	locker   Locker
	notifier adapter.AdminNotifier
	messages MessageCatalog
	events   adapter.EventPublisher
	dispatch Dispatcher

	now    func() time.Time
	log    *zerolog.Logger
	devLog bool
}

func NewEntitlementUseCase(d EntitlementDeps) *EntitlementUseCase {
	clock := d.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	logger := d.Logger
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	l := logger.With().Str("component", "EntitlementUseCase").Logger()
	return &EntitlementUseCase{
		subs:     d.Subs,
		txns:     d.Txns,
		webhooks: d.Webhooks,
		tm:       d.TM,
		users:    d.Users,
		catalog:  d.Catalog,
		gateway:  d.Gateway,
		verifier: d.Verifier,
		limiter:  d.Limiter,
		locker:   d.Locker,
		notifier: d.Notifier,
		messages: d.Messages,
		events:   d.Events,
		dispatch: d.Dispatch,
		now:      clock,
		log:      &l,
		devLog:   d.Dev,
	}
}

// -----------------------------
// Inputs / outputs
// -----------------------------

type SubmitUPIInput struct {
	UserID        string
	PlanID        string
	PlanName      string
	Amount        int64
	BillingCycle  string
	TransactionID string
	UPIID         string
}

type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

func ParseDecision(s string) (Decision, error) {
	switch d := Decision(strings.ToLower(strings.TrimSpace(s))); d {
	case DecisionApprove, DecisionReject:
		return d, nil
	}
	return "", fmt.Errorf("%w: action must be approve or reject", domain.ErrInvalidArgument)
}

type DecisionInput struct {
	SubscriptionID string
	Decision       Decision
	AdminID        string
	Notes          string
}

type CreateOrderInput struct {
	UserID       string
	PlanID       string
	BillingCycle string
}

type OrderResult struct {
	OrderID        string
	Amount         int64 // minor units
	Currency       string
	KeyID          string
	SubscriptionID string
}

// Entitlement is what a user is allowed to use right now.
type Entitlement struct {
	UserID           string                   `json:"userId"`
	Tier             model.Tier               `json:"tier"`
	PlanID           string                   `json:"planId,omitempty"`
	Status           model.SubscriptionStatus `json:"status,omitempty"`
	CurrentPeriodEnd *time.Time               `json:"currentPeriodEnd,omitempty"`
	AutoRenew        bool                     `json:"autoRenew"`
	SubscriptionID   string                   `json:"subscriptionId,omitempty"`
}

// activation is the result of one activation unit of work.
type activation struct {
	sub        *model.Subscription
	txn        *model.Transaction
	superseded *model.Subscription
	changed    bool
}

// -----------------------------
// UPI submission
// -----------------------------

// SubmitUPIPayment records manual payment proof as a pending subscription and
// its pending ledger entry, created together.
func (u *EntitlementUseCase) SubmitUPIPayment(ctx context.Context, in SubmitUPIInput) (*model.Subscription, *model.Transaction, error) {
	defer logging.TraceDuration(u.log, "EntitlementUseCase.SubmitUPIPayment")()

	in.UserID = strings.TrimSpace(in.UserID)
	in.TransactionID = strings.TrimSpace(in.TransactionID)
	in.UPIID = strings.TrimSpace(in.UPIID)
	if in.UserID == "" || in.PlanID == "" || in.TransactionID == "" || in.UPIID == "" {
		return nil, nil, fmt.Errorf("%w: userId, planId, transactionId and upiId are required", domain.ErrInvalidArgument)
	}
	if in.Amount <= 0 {
		return nil, nil, fmt.Errorf("%w: amount must be positive", domain.ErrInvalidArgument)
	}
	cycle, err := model.ParseBillingCycle(in.BillingCycle)
	if err != nil {
		return nil, nil, err
	}
	plan, err := u.resolvePlan(in.PlanID)
	if err != nil {
		return nil, nil, err
	}
	if price := plan.Price(cycle); price > 0 && price != in.Amount {
		return nil, nil, fmt.Errorf("%w: amount %d does not match %s %s price %d", domain.ErrInvalidArgument, in.Amount, plan.Name, cycle, price)
	}

	if u.limiter != nil {
		ok, err := u.limiter.AllowSubmission(ctx, in.UserID)
		switch {
		case err != nil:
			u.log.Warn().Err(err).Str("user_id", in.UserID).Msg("rate limiter unavailable; allowing submission")
		case !ok:
			metrics.IncUPIRateLimited()
			return nil, nil, domain.ErrRateLimited
		}
	}

	now := u.now()
	sub, err := model.NewPendingSubscription(uuid.NewString(), in.UserID, plan, cycle, in.Amount, model.PaymentMethodUPI, now)
	if err != nil {
		return nil, nil, err
	}
	sub.UPIID = in.UPIID
	sub.TransactionID = in.TransactionID
	txn, err := model.NewPendingTransaction(uuid.NewString(), sub, in.TransactionID)
	if err != nil {
		return nil, nil, err
	}

	err = u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if _, err := u.txns.FindByTransactionID(ctx, tx, in.TransactionID); err == nil {
			return domain.ErrDuplicateTransaction
		} else if !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		if _, err := u.subs.FindPendingByUserAndPlan(ctx, tx, in.UserID, plan.ID); err == nil {
			return domain.ErrDuplicatePendingRequest
		} else if !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		if err := u.subs.Create(ctx, tx, sub); err != nil {
			return err
		}
		return u.txns.Create(ctx, tx, txn)
	})
	if err != nil {
		metrics.IncPayment(string(model.PaymentMethodUPI), "error")
		return nil, nil, err
	}

	metrics.IncPayment(string(model.PaymentMethodUPI), string(model.TransactionStatusPending))
	u.log.Info().
		Str("subscription_id", sub.ID).
		Str("user_id", sub.UserID).
		Str("upi_id", logging.Redact(sub.UPIID, u.devLog)).
		Msg("upi payment submitted")

	text := u.message("upi_submitted", sub.PlanName, sub.BillingCycle, sub.Amount, sub.Currency, sub.TransactionID, sub.ID)
	u.afterCommit(ctx, func(ctx context.Context) error { return u.notifyAdmins(ctx, text) })
	u.publish(ctx, "subscription.requested", sub)
	return sub, txn, nil
}

// -----------------------------
// Admin decision
// -----------------------------

// Decide approves or rejects a pending subscription. Approval supersedes the
// user's previous active subscription in the same transaction.
func (u *EntitlementUseCase) Decide(ctx context.Context, in DecisionInput) (*model.Subscription, *model.Transaction, error) {
	defer logging.TraceDuration(u.log, "EntitlementUseCase.Decide")()

	if strings.TrimSpace(in.SubscriptionID) == "" || strings.TrimSpace(in.AdminID) == "" {
		return nil, nil, fmt.Errorf("%w: paymentId and adminId are required", domain.ErrInvalidArgument)
	}
	d, err := ParseDecision(string(in.Decision))
	if err != nil {
		return nil, nil, err
	}
	in.Decision = d

	current, err := u.subs.FindByID(ctx, nil, in.SubscriptionID)
	if err != nil {
		metrics.IncAdminDecision(string(in.Decision), "error")
		return nil, nil, err
	}
	release, err := u.lockActivation(ctx, current.UserID)
	if err != nil {
		metrics.IncAdminDecision(string(in.Decision), "error")
		return nil, nil, err
	}
	defer release()

	now := u.now()
	var res activation
	err = u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if err := u.users.LockUser(ctx, tx, current.UserID); err != nil {
			return err
		}
		sub, err := u.subs.FindByID(ctx, tx, in.SubscriptionID)
		if err != nil {
			return err
		}
		if sub.Status != model.SubscriptionStatusPending {
			return fmt.Errorf("%w: subscription is %s", domain.ErrInvalidState, sub.Status)
		}
		txn, err := u.txns.FindBySubscriptionID(ctx, tx, sub.ID)
		if err != nil {
			return err
		}

		if in.Decision == DecisionReject {
			if err := sub.Reject(in.AdminID, in.Notes, now); err != nil {
				return err
			}
			if err := txn.Settle(model.TransactionStatusRejected, now); err != nil {
				return err
			}
			txn.Verify(in.AdminID, in.Notes, now)
			if err := u.subs.Save(ctx, tx, sub); err != nil {
				return err
			}
			res = activation{sub: sub, txn: txn, changed: true}
			return u.txns.Save(ctx, tx, txn)
		}

		sub.Verify(in.AdminID, in.Notes, now)
		txn.Verify(in.AdminID, in.Notes, now)
		res, err = u.activate(ctx, tx, sub, txn, now)
		return err
	})
	if err != nil {
		metrics.IncAdminDecision(string(in.Decision), "error")
		return nil, nil, err
	}

	metrics.IncAdminDecision(string(in.Decision), "ok")
	logging.With(logging.WithAdminID(ctx, in.AdminID), u.log).Info().
		Str("subscription_id", res.sub.ID).
		Str("decision", string(in.Decision)).
		Msg("payment decided")

	if in.Decision == DecisionReject {
		metrics.IncTransition(model.SubscriptionStatusRejected, "admin")
		metrics.IncPayment(string(res.sub.PaymentMethod), string(model.TransactionStatusRejected))
		u.publish(ctx, "subscription.rejected", res.sub)
		return res.sub, res.txn, nil
	}
	u.afterActivation(ctx, res, "admin")
	return res.sub, res.txn, nil
}

// activate runs inside tx with the user lock held: it cancels any other active
// subscription first, then opens the new window and settles the ledger entry.
func (u *EntitlementUseCase) activate(ctx context.Context, tx repository.Tx, sub *model.Subscription, txn *model.Transaction, now time.Time) (activation, error) {
	res := activation{sub: sub, txn: txn}

	prev, err := u.subs.FindActiveByUser(ctx, tx, sub.UserID)
	switch {
	case err == nil && prev.ID != sub.ID:
		if err := prev.Cancel(now); err != nil {
			return res, err
		}
		if err := u.subs.Save(ctx, tx, prev); err != nil {
			return res, err
		}
		res.superseded = prev
	case err != nil && !errors.Is(err, domain.ErrNotFound):
		return res, err
	}

	if err := sub.Activate(now); err != nil {
		return res, err
	}
	if err := u.subs.Save(ctx, tx, sub); err != nil {
		return res, err
	}
	res.changed = true
	if txn == nil || txn.Status != model.TransactionStatusPending {
		return res, nil
	}
	if err := txn.Settle(model.TransactionStatusSuccess, now); err != nil {
		return res, err
	}
	return res, u.txns.Save(ctx, tx, txn)
}

func (u *EntitlementUseCase) afterActivation(ctx context.Context, res activation, source string) {
	if !res.changed {
		return
	}
	metrics.IncTransition(model.SubscriptionStatusActive, source)
	metrics.IncPayment(string(res.sub.PaymentMethod), string(model.TransactionStatusSuccess))
	metrics.AddPaymentRevenue(res.sub.Currency, res.sub.Amount)
	u.publish(ctx, "subscription.activated", res.sub)
	if res.superseded != nil {
		metrics.IncTransition(model.SubscriptionStatusCanceled, "superseded")
		u.publish(ctx, "subscription.canceled", res.superseded)
		u.log.Info().
			Str("user_id", res.sub.UserID).
			Str("superseded_id", res.superseded.ID).
			Str("subscription_id", res.sub.ID).
			Msg("previous active subscription superseded")
	}
}

// -----------------------------
// Gateway checkout
// -----------------------------

// CreateOrder opens a gateway order and records it as a pending subscription.
// An abandoned checkout for the same plan is rejected so the new one can proceed.
func (u *EntitlementUseCase) CreateOrder(ctx context.Context, in CreateOrderInput) (*OrderResult, error) {
	defer logging.TraceDuration(u.log, "EntitlementUseCase.CreateOrder")()

	if strings.TrimSpace(in.UserID) == "" || strings.TrimSpace(in.PlanID) == "" {
		return nil, fmt.Errorf("%w: userId and planId are required", domain.ErrInvalidArgument)
	}
	cycle, err := model.ParseBillingCycle(in.BillingCycle)
	if err != nil {
		return nil, err
	}
	plan, err := u.resolvePlan(in.PlanID)
	if err != nil {
		return nil, err
	}
	amount := plan.Price(cycle)
	if amount <= 0 {
		return nil, fmt.Errorf("%w: plan %s has no %s price", domain.ErrInvalidArgument, plan.ID, cycle)
	}

	// Fail fast before calling out when a UPI request is already under review.
	if open, err := u.subs.FindPendingByUserAndPlan(ctx, nil, in.UserID, plan.ID); err == nil && open.PaymentMethod == model.PaymentMethodUPI {
		return nil, domain.ErrDuplicatePendingRequest
	} else if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	now := u.now()
	sub, err := model.NewPendingSubscription(uuid.NewString(), in.UserID, plan, cycle, amount, model.PaymentMethodRazorpay, now)
	if err != nil {
		return nil, err
	}

	order, err := u.gateway.CreateOrder(ctx, amount*100, plan.Currency, sub.ID, map[string]string{
		"user_id":         in.UserID,
		"plan_id":         plan.ID,
		"subscription_id": sub.ID,
	})
	if err != nil {
		u.log.Error().Err(err).Str("user_id", in.UserID).Msg("gateway order failed")
		return nil, err
	}
	sub.GatewayOrderID = order.ID
	sub.TransactionID = order.ID
	txn, err := model.NewPendingTransaction(uuid.NewString(), sub, order.ID)
	if err != nil {
		return nil, err
	}

	err = u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if err := u.users.LockUser(ctx, tx, in.UserID); err != nil {
			return err
		}
		open, err := u.subs.FindPendingByUserAndPlan(ctx, tx, in.UserID, plan.ID)
		switch {
		case err == nil && open.PaymentMethod == model.PaymentMethodUPI:
			return domain.ErrDuplicatePendingRequest
		case err == nil:
			if err := u.abandon(ctx, tx, open, now); err != nil {
				return err
			}
		case !errors.Is(err, domain.ErrNotFound):
			return err
		}
		if err := u.subs.Create(ctx, tx, sub); err != nil {
			return err
		}
		return u.txns.Create(ctx, tx, txn)
	})
	if err != nil {
		return nil, err
	}

	metrics.IncPayment(string(model.PaymentMethodRazorpay), string(model.TransactionStatusPending))
	u.publish(ctx, "subscription.requested", sub)
	return &OrderResult{
		OrderID:        order.ID,
		Amount:         order.Amount,
		Currency:       order.Currency,
		KeyID:          u.gateway.KeyID(),
		SubscriptionID: sub.ID,
	}, nil
}

func (u *EntitlementUseCase) abandon(ctx context.Context, tx repository.Tx, open *model.Subscription, now time.Time) error {
	if err := open.Reject("system", "superseded by a new checkout", now); err != nil {
		return err
	}
	if err := u.subs.Save(ctx, tx, open); err != nil {
		return err
	}
	txn, err := u.txns.FindBySubscriptionID(ctx, tx, open.ID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	} else if err != nil {
		return err
	}
	if txn.Status != model.TransactionStatusPending {
		return nil
	}
	if err := txn.Settle(model.TransactionStatusFailed, now); err != nil {
		return err
	}
	return u.txns.Save(ctx, tx, txn)
}

// VerifyCheckout confirms a client-side checkout by its order|payment signature
// and activates the subscription behind the order.
func (u *EntitlementUseCase) VerifyCheckout(ctx context.Context, orderID, paymentID, signature string) (*model.Subscription, error) {
	defer logging.TraceDuration(u.log, "EntitlementUseCase.VerifyCheckout")()

	if orderID == "" || paymentID == "" || signature == "" {
		metrics.IncCheckoutVerify("invalid")
		return nil, fmt.Errorf("%w: order_id, payment_id and signature are required", domain.ErrInvalidArgument)
	}
	if !u.verifier.VerifyPayment(orderID, paymentID, signature) {
		metrics.IncCheckoutVerify("invalid_signature")
		u.log.Warn().Str("order_id", orderID).Msg("checkout signature mismatch")
		return nil, domain.ErrInvalidSignature
	}

	res, err := u.activateByOrder(ctx, orderID, paymentID)
	if err != nil {
		metrics.IncCheckoutVerify("error")
		return nil, err
	}
	metrics.IncCheckoutVerify("ok")
	u.afterActivation(ctx, res, "checkout")
	u.startRecurring(ctx, res)
	return res.sub, nil
}

// activateByOrder is shared by checkout verification and payment.authorized.
// An already active subscription only gets its payment id stamped.
func (u *EntitlementUseCase) activateByOrder(ctx context.Context, orderID, paymentID string) (activation, error) {
	current, err := u.subs.FindByGatewayOrderID(ctx, nil, orderID)
	if err != nil {
		return activation{}, err
	}
	release, err := u.lockActivation(ctx, current.UserID)
	if err != nil {
		return activation{}, err
	}
	defer release()

	now := u.now()
	var res activation
	err = u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if err := u.users.LockUser(ctx, tx, current.UserID); err != nil {
			return err
		}
		sub, err := u.subs.FindByGatewayOrderID(ctx, tx, orderID)
		if err != nil {
			return err
		}
		switch sub.Status {
		case model.SubscriptionStatusActive:
			res = activation{sub: sub}
			if sub.GatewayPaymentID == paymentID {
				return nil
			}
			sub.GatewayPaymentID = paymentID
			sub.UpdatedAt = now
			return u.subs.Save(ctx, tx, sub)
		case model.SubscriptionStatusPending:
			txn, err := u.txns.FindBySubscriptionID(ctx, tx, sub.ID)
			if err != nil && !errors.Is(err, domain.ErrNotFound) {
				return err
			}
			sub.GatewayPaymentID = paymentID
			res, err = u.activate(ctx, tx, sub, txn, now)
			return err
		default:
			return fmt.Errorf("%w: subscription is %s", domain.ErrInvalidState, sub.Status)
		}
	})
	return res, err
}

// startRecurring asks the gateway for a billing mandate on premium plans.
// Failures are logged only; the one-off payment has already been applied.
func (u *EntitlementUseCase) startRecurring(ctx context.Context, res activation) {
	if !res.changed || res.sub.Tier != model.TierPremium || res.sub.GatewaySubscriptionID != "" {
		return
	}
	plan, err := u.catalog.Find(res.sub.PlanID)
	if err != nil {
		return
	}
	gatewayPlan := plan.GatewayPlan(res.sub.BillingCycle)
	if gatewayPlan == "" {
		u.log.Debug().Str("plan_id", plan.ID).Msg("no gateway plan configured; skipping recurring billing")
		return
	}
	subID := res.sub.ID
	cycles := 60
	if res.sub.BillingCycle == model.BillingCycleAnnually {
		cycles = 5
	}
	u.afterCommit(ctx, func(ctx context.Context) error {
		gs, err := u.gateway.CreateSubscription(ctx, gatewayPlan, cycles, map[string]string{"subscription_id": subID})
		if err != nil {
			u.log.Error().Err(err).Str("subscription_id", subID).Msg("recurring billing setup failed")
			return u.notifyAdmins(ctx, u.message("recurring_failed", subID))
		}
		return u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
			sub, err := u.subs.FindByID(ctx, tx, subID)
			if err != nil {
				return err
			}
			sub.GatewaySubscriptionID = gs.ID
			sub.UpdatedAt = u.now()
			return u.subs.Save(ctx, tx, sub)
		})
	})
}

// -----------------------------
// Lifecycle
// -----------------------------

// ExpireDue moves active subscriptions whose period ended before now to expired.
func (u *EntitlementUseCase) ExpireDue(ctx context.Context, now time.Time) (int, error) {
	total := 0
	for {
		due, err := u.subs.ListExpiredActive(ctx, nil, now, expireBatchSize)
		if err != nil {
			return total, err
		}
		expired := 0
		for _, cand := range due {
			var done *model.Subscription
			err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
				sub, err := u.subs.FindByID(ctx, tx, cand.ID)
				if err != nil {
					return err
				}
				if sub.Status != model.SubscriptionStatusActive || sub.CurrentPeriodEnd.After(now) {
					return nil
				}
				if err := sub.Expire(now); err != nil {
					return err
				}
				done = sub
				return u.subs.Save(ctx, tx, sub)
			})
			if err != nil {
				u.log.Error().Err(err).Str("subscription_id", cand.ID).Msg("expire failed")
				continue
			}
			if done != nil {
				expired++
				u.publish(ctx, "subscription.expired", done)
			}
		}
		total += expired
		if len(due) < expireBatchSize || expired == 0 {
			break
		}
	}
	if total > 0 {
		metrics.IncSubscriptionsExpired(total)
		u.log.Info().Int("count", total).Msg("subscriptions expired")
	}
	return total, nil
}

// CancelActive ends the user's active subscription and stops auto-renewal.
func (u *EntitlementUseCase) CancelActive(ctx context.Context, userID string) (*model.Subscription, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("%w: userId is required", domain.ErrInvalidArgument)
	}
	var out *model.Subscription
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if err := u.users.LockUser(ctx, tx, userID); err != nil {
			return err
		}
		sub, err := u.subs.FindActiveByUser(ctx, tx, userID)
		if err != nil {
			return err
		}
		if err := sub.Cancel(u.now()); err != nil {
			return err
		}
		out = sub
		return u.subs.Save(ctx, tx, sub)
	})
	if err != nil {
		return nil, err
	}
	metrics.IncTransition(model.SubscriptionStatusCanceled, "user")
	u.publish(ctx, "subscription.canceled", out)
	return out, nil
}

// GetEntitlement reports the user's current tier; no active subscription means free.
func (u *EntitlementUseCase) GetEntitlement(ctx context.Context, userID string) (*Entitlement, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("%w: userId is required", domain.ErrInvalidArgument)
	}
	ent := &Entitlement{UserID: userID, Tier: model.TierFree}
	sub, err := u.subs.FindActiveByUser(ctx, nil, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return ent, nil
	}
	if err != nil {
		return nil, err
	}
	if !sub.IsEntitled(u.now()) {
		return ent, nil
	}
	end := sub.CurrentPeriodEnd
	ent.Tier = sub.Tier
	ent.PlanID = sub.PlanID
	ent.Status = sub.Status
	ent.CurrentPeriodEnd = &end
	ent.AutoRenew = sub.AutoRenew
	ent.SubscriptionID = sub.ID
	return ent, nil
}

// History lists every subscription record of a user, newest first.
func (u *EntitlementUseCase) History(ctx context.Context, userID string) ([]*model.Subscription, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("%w: userId is required", domain.ErrInvalidArgument)
	}
	return u.subs.ListByUser(ctx, nil, userID)
}

// -----------------------------
// helpers
// -----------------------------

func (u *EntitlementUseCase) resolvePlan(planID string) (*model.Plan, error) {
	plan, err := u.catalog.Find(strings.TrimSpace(planID))
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("%w: unknown plan %q", domain.ErrInvalidArgument, planID)
	}
	return plan, err
}

func activationLockKey(userID string) string {
	return "lock:entitlement:" + userID
}

// lockActivation takes the optional cross-instance lock. Lock backend errors
// other than contention fall through to the database lock.
func (u *EntitlementUseCase) lockActivation(ctx context.Context, userID string) (func(), error) {
	if u.locker == nil {
		return func() {}, nil
	}
	key := activationLockKey(userID)
	token, err := u.locker.TryLock(ctx, key, activationLockTTL)
	if errors.Is(err, domain.ErrConcurrentUpdate) {
		return nil, err
	}
	if err != nil {
		u.log.Warn().Err(err).Str("user_id", userID).Msg("activation lock unavailable")
		return func() {}, nil
	}
	return func() {
		if err := u.locker.Unlock(context.WithoutCancel(ctx), key, token); err != nil {
			u.log.Warn().Err(err).Str("user_id", userID).Msg("activation unlock failed")
		}
	}, nil
}

func (u *EntitlementUseCase) afterCommit(ctx context.Context, task func(ctx context.Context) error) {
	if u.dispatch != nil {
		u.dispatch(task)
		return
	}
	if err := task(context.WithoutCancel(ctx)); err != nil {
		u.log.Warn().Err(err).Msg("side effect failed")
	}
}

func (u *EntitlementUseCase) publish(ctx context.Context, typ string, sub *model.Subscription) {
	if u.events == nil || sub == nil {
		return
	}
	ev := adapter.LifecycleEvent{
		Type:           typ,
		SubscriptionID: sub.ID,
		UserID:         sub.UserID,
		PlanID:         sub.PlanID,
		Status:         string(sub.Status),
		OccurredAt:     u.now().Unix(),
	}
	u.afterCommit(ctx, func(ctx context.Context) error { return u.events.Publish(ctx, ev) })
}

func (u *EntitlementUseCase) message(key string, args ...interface{}) string {
	if u.messages == nil {
		return fmt.Sprintln(append([]interface{}{key}, args...)...)
	}
	return u.messages.T(key, args...)
}

func (u *EntitlementUseCase) notifyAdmins(ctx context.Context, text string) error {
	if u.notifier == nil {
		return nil
	}
	return u.notifier.NotifyAdmins(ctx, text)
}
