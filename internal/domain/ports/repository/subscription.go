package repository

import (
	"context"
	"time"

	"github.com/dheerurajpoot/quote-generator-sub001/internal/domain/model"
)

// SubscriptionRepository is the port for the subscription store.
type SubscriptionRepository interface {
	// Create inserts a new record; Save updates an existing one guarded by its Version.
	Create(ctx context.Context, tx Tx, sub *model.Subscription) error
	Save(ctx context.Context, tx Tx, sub *model.Subscription) error

	FindByID(ctx context.Context, tx Tx, id string) (*model.Subscription, error)
	FindByGatewayOrderID(ctx context.Context, tx Tx, orderID string) (*model.Subscription, error)
	FindByGatewaySubscriptionID(ctx context.Context, tx Tx, gatewaySubID string) (*model.Subscription, error)
	FindPendingByUserAndPlan(ctx context.Context, tx Tx, userID, planID string) (*model.Subscription, error)
	FindActiveByUser(ctx context.Context, tx Tx, userID string) (*model.Subscription, error)
	ListByUser(ctx context.Context, tx Tx, userID string) ([]*model.Subscription, error)

	// ListWithUsers returns records in the given status, newest first, joined with
	// the owner's identity and the originating transaction.
	ListWithUsers(ctx context.Context, tx Tx, status model.SubscriptionStatus, offset, limit int) ([]*model.PendingPayment, error)
	CountByStatus(ctx context.Context, tx Tx, status model.SubscriptionStatus) (int, error)
	CountAllByStatus(ctx context.Context, tx Tx) (map[model.SubscriptionStatus]int, error)

	// ListExpiredActive returns active records whose period ended before now.
	ListExpiredActive(ctx context.Context, tx Tx, now time.Time, limit int) ([]*model.Subscription, error)
}
