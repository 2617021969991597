package model

import "time"

type WebhookOutcome string

const (
	WebhookOutcomeApplied WebhookOutcome = "applied"
	WebhookOutcomeIgnored WebhookOutcome = "ignored"
	WebhookOutcomeFailed  WebhookOutcome = "failed"
)

// WebhookEvent is the audit row written for every verified gateway delivery.
type WebhookEvent struct {
	ID         string // ULID
	Provider   string
	EventType  string
	EventKey   string // order id or gateway subscription id the event targets
	Outcome    WebhookOutcome
	Error      string
	ReceivedAt time.Time
}
