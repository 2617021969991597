// File: internal/usecase/admin_uc.go
package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/dheerurajpoot/quote-generator-sub001/internal/domain"
	"github.com/dheerurajpoot/quote-generator-sub001/internal/domain/model"
	"github.com/dheerurajpoot/quote-generator-sub001/internal/domain/ports/repository"
	"github.com/dheerurajpoot/quote-generator-sub001/internal/infra/metrics"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// PendingList is one page of the review queue.
type PendingList struct {
	Items      []*model.PendingPayment `json:"items"`
	Pagination model.Pagination        `json:"pagination"`
}

// Stats is the admin dashboard summary.
type Stats struct {
	ByStatus      map[model.SubscriptionStatus]int `json:"byStatus"`
	Revenue30Days int64                            `json:"revenue30Days"`
	GeneratedAt   time.Time                        `json:"generatedAt"`
}

// AdminUseCase drives the manual verification queue.
type AdminUseCase struct {
	subs        repository.SubscriptionRepository
	txns        repository.TransactionRepository
	entitlement *EntitlementUseCase
	log         *zerolog.Logger
}

func NewAdminUseCase(subs repository.SubscriptionRepository, txns repository.TransactionRepository, entitlement *EntitlementUseCase, logger *zerolog.Logger) *AdminUseCase {
	l := logger.With().Str("component", "AdminUseCase").Logger()
	return &AdminUseCase{subs: subs, txns: txns, entitlement: entitlement, log: &l}
}

// ListPending returns one newest-first page of subscriptions in status
// (default pending) joined with their ledger entry and owner identity.
func (a *AdminUseCase) ListPending(ctx context.Context, status string, page, limit int) (*PendingList, error) {
	st := model.SubscriptionStatusPending
	if strings.TrimSpace(status) != "" {
		parsed, err := model.ParseSubscriptionStatus(status)
		if err != nil {
			return nil, err
		}
		st = parsed
	}
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	total, err := a.subs.CountByStatus(ctx, nil, st)
	if err != nil {
		return nil, err
	}
	items, err := a.subs.ListWithUsers(ctx, nil, st, (page-1)*limit, limit)
	if err != nil {
		return nil, err
	}
	for _, it := range items {
		txn, err := a.txns.FindBySubscriptionID(ctx, nil, it.Subscription.ID)
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		it.Transaction = txn
	}
	if items == nil {
		items = []*model.PendingPayment{}
	}
	return &PendingList{Items: items, Pagination: model.NewPagination(page, limit, total)}, nil
}

// VerifyPayment routes an admin decision into the state machine.
func (a *AdminUseCase) VerifyPayment(ctx context.Context, paymentID, action, adminID, notes string) (*model.Subscription, *model.Transaction, error) {
	decision, err := ParseDecision(action)
	if err != nil {
		return nil, nil, err
	}
	return a.entitlement.Decide(ctx, DecisionInput{
		SubscriptionID: strings.TrimSpace(paymentID),
		Decision:       decision,
		AdminID:        strings.TrimSpace(adminID),
		Notes:          strings.TrimSpace(notes),
	})
}

// Stats counts subscriptions per status and sums the last 30 days of revenue.
// It also refreshes the subscriptions gauge.
func (a *AdminUseCase) Stats(ctx context.Context, now time.Time) (*Stats, error) {
	counts, err := a.subs.CountAllByStatus(ctx, nil)
	if err != nil {
		return nil, err
	}
	revenue, err := a.txns.SumSuccessfulSince(ctx, nil, now.Add(-30*24*time.Hour))
	if err != nil {
		return nil, err
	}
	metrics.SetSubscriptionsTotal(counts)
	return &Stats{ByStatus: counts, Revenue30Days: revenue, GeneratedAt: now}, nil
}
