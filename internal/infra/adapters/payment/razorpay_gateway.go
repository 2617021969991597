// File: internal/infra/adapters/payment/razorpay_gateway.go
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/dheerurajpoot/quote-generator-sub001/internal/config"
	"github.com/dheerurajpoot/quote-generator-sub001/internal/domain"
	"github.com/dheerurajpoot/quote-generator-sub001/internal/domain/ports/adapter"
	"github.com/dheerurajpoot/quote-generator-sub001/internal/infra/metrics"
)

var _ adapter.PaymentGateway = (*RazorpayGateway)(nil)

// RazorpayGateway implements adapter.PaymentGateway against the Razorpay REST v1 API.
// Every call runs under its own timeout and is retried with exponential backoff
// on transport errors, 429 and 5xx. Subscription creation is the exception: it
// is only retried on 429.
type RazorpayGateway struct {
	keyID      string
	keySecret  string
	baseURL    string
	timeout    time.Duration
	maxRetries int
	backoff    time.Duration
	client     *http.Client
	log        *zerolog.Logger
}

func NewRazorpayGateway(cfg config.RazorpayConfig, logger *zerolog.Logger) (*RazorpayGateway, error) {
	if cfg.KeyID == "" || cfg.KeySecret == "" {
		return nil, errors.New("razorpay key_id and key_secret are required")
	}
	l := logger.With().Str("component", "razorpay").Logger()
	return &RazorpayGateway{
		keyID:      cfg.KeyID,
		keySecret:  cfg.KeySecret,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		timeout:    cfg.Timeout,
		maxRetries: cfg.MaxRetries,
		backoff:    200 * time.Millisecond,
		client:     &http.Client{},
		log:        &l,
	}, nil
}

func (g *RazorpayGateway) Name() string  { return "razorpay" }
func (g *RazorpayGateway) KeyID() string { return g.keyID }

// CreateOrder calls POST /orders. amountMinor is in paise.
func (g *RazorpayGateway) CreateOrder(ctx context.Context, amountMinor int64, currency, receipt string, notes map[string]string) (*adapter.GatewayOrder, error) {
	payload := map[string]any{
		"amount":   amountMinor,
		"currency": currency,
		"receipt":  receipt,
	}
	if len(notes) > 0 {
		payload["notes"] = notes
	}
	var out struct {
		ID       string `json:"id"`
		Amount   int64  `json:"amount"`
		Currency string `json:"currency"`
		Receipt  string `json:"receipt"`
	}
	if err := g.call(ctx, "create_order", "/orders", payload, &out); err != nil {
		return nil, err
	}
	if out.ID == "" {
		return nil, fmt.Errorf("%w: order id missing in response", domain.ErrUpstreamFailure)
	}
	return &adapter.GatewayOrder{ID: out.ID, Amount: out.Amount, Currency: out.Currency, Receipt: out.Receipt}, nil
}

// CreateSubscription calls POST /subscriptions for recurring billing.
func (g *RazorpayGateway) CreateSubscription(ctx context.Context, gatewayPlanID string, totalCount int, notes map[string]string) (*adapter.GatewaySubscription, error) {
	if gatewayPlanID == "" {
		return nil, fmt.Errorf("%w: gateway plan id is empty", domain.ErrInvalidArgument)
	}
	payload := map[string]any{
		"plan_id":         gatewayPlanID,
		"total_count":     totalCount,
		"customer_notify": 1,
	}
	if len(notes) > 0 {
		payload["notes"] = notes
	}
	var out struct {
		ID           string `json:"id"`
		PlanID       string `json:"plan_id"`
		Status       string `json:"status"`
		CurrentStart int64  `json:"current_start"`
		CurrentEnd   int64  `json:"current_end"`
	}
	if err := g.call(ctx, "create_subscription", "/subscriptions", payload, &out); err != nil {
		return nil, err
	}
	gs := &adapter.GatewaySubscription{ID: out.ID, PlanID: out.PlanID, Status: out.Status}
	if out.CurrentStart > 0 {
		gs.CurrentStart = time.Unix(out.CurrentStart, 0).UTC()
	}
	if out.CurrentEnd > 0 {
		gs.CurrentEnd = time.Unix(out.CurrentEnd, 0).UTC()
	}
	return gs, nil
}

// noReplay lists operations whose duplicates are not inert. A request that
// timed out or got a 5xx may still have been applied, and a second call would
// start another mandate. A 429 is refused before processing.
var noReplay = map[string]bool{
	"create_subscription": true,
}

type apiError struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

// call POSTs payload to path and decodes the JSON answer into out.
func (g *RazorpayGateway) call(ctx context.Context, op, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%w: encode %s: %v", domain.ErrInvalidArgument, op, err)
	}

	start := time.Now()
	var lastErr error
	for attempt := 0; attempt <= g.maxRetries; attempt++ {
		if attempt > 0 {
			wait := g.backoff << (attempt - 1)
			g.log.Warn().Str("op", op).Int("attempt", attempt).Dur("wait", wait).Err(lastErr).Msg("retrying gateway call")
			if err := sleepCtx(ctx, wait); err != nil {
				lastErr = err
				break
			}
		}

		retry, status, err := g.once(ctx, path, body, out)
		if err == nil {
			metrics.GatewayCallDuration.WithLabelValues(op, "ok").Observe(time.Since(start).Seconds())
			return nil
		}
		lastErr = err
		if !retry || (noReplay[op] && status != http.StatusTooManyRequests) {
			break
		}
	}

	metrics.GatewayCallDuration.WithLabelValues(op, "error").Observe(time.Since(start).Seconds())
	metrics.IncUpstreamFailure(op)
	return fmt.Errorf("%w: %s: %v", domain.ErrUpstreamFailure, op, lastErr)
}

// once performs a single attempt and reports whether a failure is worth
// retrying, along with the response status (0 when none was received).
func (g *RazorpayGateway) once(ctx context.Context, path string, body []byte, out any) (bool, int, error) {
	cctx := ctx
	if g.timeout > 0 {
		var cancel context.CancelFunc
		cctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(cctx, http.MethodPost, g.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return false, 0, err
	}
	req.SetBasicAuth(g.keyID, g.keySecret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		// the caller's own cancellation is final; a per-attempt timeout is not
		return ctx.Err() == nil, 0, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return true, resp.StatusCode, err
	}

	if resp.StatusCode >= 300 {
		var ae apiError
		_ = json.Unmarshal(raw, &ae)
		err := fmt.Errorf("status %d: %s %s", resp.StatusCode, ae.Error.Code, ae.Error.Description)
		return resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500, resp.StatusCode, err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, resp.StatusCode, fmt.Errorf("decode response: %w", err)
	}
	return false, resp.StatusCode, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
