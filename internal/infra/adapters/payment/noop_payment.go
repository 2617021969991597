package payment

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dheerurajpoot/quote-generator-sub001/internal/domain/ports/adapter"
)

var _ adapter.PaymentGateway = (*NoopPaymentGateway)(nil)

// NoopPaymentGateway is an in-memory gateway for local runs without credentials and for tests.
type NoopPaymentGateway struct {
	mu     sync.Mutex
	seq    int64
	orders map[string]int64 // order id -> amount (minor units)
	now    func() time.Time
}

func NewNoopPaymentGateway() *NoopPaymentGateway {
	return &NoopPaymentGateway{
		orders: make(map[string]int64),
		now:    time.Now,
	}
}

func (g *NoopPaymentGateway) Name() string  { return "noop" }
func (g *NoopPaymentGateway) KeyID() string { return "rzp_test_noop" }

func (g *NoopPaymentGateway) next(prefix string) string {
	g.seq++
	return fmt.Sprintf("%s_noop%d", prefix, g.seq)
}

func (g *NoopPaymentGateway) CreateOrder(ctx context.Context, amountMinor int64, currency, receipt string, notes map[string]string) (*adapter.GatewayOrder, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := g.next("order")
	g.orders[id] = amountMinor
	return &adapter.GatewayOrder{ID: id, Amount: amountMinor, Currency: currency, Receipt: receipt}, nil
}

func (g *NoopPaymentGateway) CreateSubscription(ctx context.Context, gatewayPlanID string, totalCount int, notes map[string]string) (*adapter.GatewaySubscription, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.now().UTC()
	return &adapter.GatewaySubscription{
		ID:           g.next("sub"),
		PlanID:       gatewayPlanID,
		Status:       "created",
		CurrentStart: now,
		CurrentEnd:   now.AddDate(0, 1, 0),
	}, nil
}

// OrderAmount reports the amount an order was created for.
func (g *NoopPaymentGateway) OrderAmount(orderID string) (int64, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	a, ok := g.orders[orderID]
	return a, ok
}
