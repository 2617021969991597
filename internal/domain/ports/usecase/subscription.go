package usecase

import (
	"context"
	"time"
)

// SubscriptionExpirer is the slice of the entitlement use case that background workers need.
type SubscriptionExpirer interface {
	ExpireDue(ctx context.Context, now time.Time) (int, error)
}
