package adapter

import (
	"context"
	"time"
)

// GatewayOrder is the provider-side order a checkout pays against.
type GatewayOrder struct {
	ID       string
	Amount   int64 // minor units (paise)
	Currency string
	Receipt  string
}

// GatewaySubscription is a recurring-billing mandate created at the provider.
type GatewaySubscription struct {
	ID           string
	PlanID       string
	Status       string
	CurrentStart time.Time
	CurrentEnd   time.Time
}

// PaymentGateway is the hex port for the payment provider.
type PaymentGateway interface {
	Name() string
	// KeyID is the public key handed to the checkout client.
	KeyID() string

	CreateOrder(ctx context.Context, amountMinor int64, currency, receipt string, notes map[string]string) (*GatewayOrder, error)
	// CreateSubscription starts recurring billing for a gateway plan.
	CreateSubscription(ctx context.Context, gatewayPlanID string, totalCount int, notes map[string]string) (*GatewaySubscription, error)
}

// SignatureVerifier authenticates inbound gateway payloads.
type SignatureVerifier interface {
	VerifyWebhook(rawBody []byte, signature string) bool
	VerifyPayment(orderID, paymentID, signature string) bool
}
