package adapter

import "context"

// AdminNotifier tells reviewers that something needs their attention.
type AdminNotifier interface {
	NotifyAdmins(ctx context.Context, text string) error
}

// LifecycleEvent is published after a subscription changes state.
type LifecycleEvent struct {
	Type           string `json:"type"` // e.g. subscription.activated
	SubscriptionID string `json:"subscription_id"`
	UserID         string `json:"user_id"`
	PlanID         string `json:"plan_id"`
	Status         string `json:"status"`
	OccurredAt     int64  `json:"occurred_at"`
}

// EventPublisher fans lifecycle events out to other services.
type EventPublisher interface {
	Publish(ctx context.Context, ev LifecycleEvent) error
	Close()
}
