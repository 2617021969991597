package api

import (
	"context"
	"time"

	"github.com/dheerurajpoot/quote-generator-sub001/internal/domain/model"
	"github.com/dheerurajpoot/quote-generator-sub001/internal/usecase"
)

type mockEntitlement struct {
	SubmitUPIPaymentFunc func(ctx context.Context, in usecase.SubmitUPIInput) (*model.Subscription, *model.Transaction, error)
	CreateOrderFunc      func(ctx context.Context, in usecase.CreateOrderInput) (*usecase.OrderResult, error)
	VerifyCheckoutFunc   func(ctx context.Context, orderID, paymentID, signature string) (*model.Subscription, error)
	CancelActiveFunc     func(ctx context.Context, userID string) (*model.Subscription, error)
	GetEntitlementFunc   func(ctx context.Context, userID string) (*usecase.Entitlement, error)
	HistoryFunc          func(ctx context.Context, userID string) ([]*model.Subscription, error)
	HandleWebhookFunc    func(ctx context.Context, rawBody []byte, signature string) error
}

func (m *mockEntitlement) SubmitUPIPayment(ctx context.Context, in usecase.SubmitUPIInput) (*model.Subscription, *model.Transaction, error) {
	return m.SubmitUPIPaymentFunc(ctx, in)
}

func (m *mockEntitlement) CreateOrder(ctx context.Context, in usecase.CreateOrderInput) (*usecase.OrderResult, error) {
	return m.CreateOrderFunc(ctx, in)
}

func (m *mockEntitlement) VerifyCheckout(ctx context.Context, orderID, paymentID, signature string) (*model.Subscription, error) {
	return m.VerifyCheckoutFunc(ctx, orderID, paymentID, signature)
}

func (m *mockEntitlement) CancelActive(ctx context.Context, userID string) (*model.Subscription, error) {
	return m.CancelActiveFunc(ctx, userID)
}

func (m *mockEntitlement) GetEntitlement(ctx context.Context, userID string) (*usecase.Entitlement, error) {
	return m.GetEntitlementFunc(ctx, userID)
}

func (m *mockEntitlement) History(ctx context.Context, userID string) ([]*model.Subscription, error) {
	return m.HistoryFunc(ctx, userID)
}

func (m *mockEntitlement) HandleWebhook(ctx context.Context, rawBody []byte, signature string) error {
	return m.HandleWebhookFunc(ctx, rawBody, signature)
}

type mockAdmin struct {
	ListPendingFunc   func(ctx context.Context, status string, page, limit int) (*usecase.PendingList, error)
	VerifyPaymentFunc func(ctx context.Context, paymentID, action, adminID, notes string) (*model.Subscription, *model.Transaction, error)
	StatsFunc         func(ctx context.Context, now time.Time) (*usecase.Stats, error)
}

func (m *mockAdmin) ListPending(ctx context.Context, status string, page, limit int) (*usecase.PendingList, error) {
	return m.ListPendingFunc(ctx, status, page, limit)
}

func (m *mockAdmin) VerifyPayment(ctx context.Context, paymentID, action, adminID, notes string) (*model.Subscription, *model.Transaction, error) {
	return m.VerifyPaymentFunc(ctx, paymentID, action, adminID, notes)
}

func (m *mockAdmin) Stats(ctx context.Context, now time.Time) (*usecase.Stats, error) {
	return m.StatsFunc(ctx, now)
}
