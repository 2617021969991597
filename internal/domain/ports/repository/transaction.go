package repository

import (
	"context"
	"time"

	"github.com/dheerurajpoot/quote-generator-sub001/internal/domain/model"
)

// -----------------------------
// Transaction ledger
// -----------------------------

type TransactionRepository interface {
	Create(ctx context.Context, tx Tx, t *model.Transaction) error
	Save(ctx context.Context, tx Tx, t *model.Transaction) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Transaction, error)
	FindByTransactionID(ctx context.Context, tx Tx, externalID string) (*model.Transaction, error)
	FindBySubscriptionID(ctx context.Context, tx Tx, subscriptionID string) (*model.Transaction, error)
	SumSuccessfulSince(ctx context.Context, tx Tx, since time.Time) (int64, error)
}

// -----------------------------
// Webhook audit
// -----------------------------

type WebhookEventRepository interface {
	Save(ctx context.Context, tx Tx, ev *model.WebhookEvent) error
	CountByKey(ctx context.Context, tx Tx, provider, eventType, eventKey string) (int, error)
}
