package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/oklog/ulid/v2"

	"github.com/dheerurajpoot/quote-generator-sub001/internal/domain"
	"github.com/dheerurajpoot/quote-generator-sub001/internal/domain/model"
	"github.com/dheerurajpoot/quote-generator-sub001/internal/domain/ports/repository"
	"github.com/dheerurajpoot/quote-generator-sub001/internal/infra/metrics"
)

const webhookProvider = "razorpay"

type webhookEnvelope struct {
	Event   string `json:"event"`
	Payload struct {
		Payment *struct {
			Entity paymentEntity `json:"entity"`
		} `json:"payment"`
		Subscription *struct {
			Entity subscriptionEntity `json:"entity"`
		} `json:"subscription"`
	} `json:"payload"`
}

type paymentEntity struct {
	ID      string `json:"id"`
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
}

type subscriptionEntity struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	CurrentStart int64  `json:"current_start"`
	CurrentEnd   int64  `json:"current_end"`
}

// HandleWebhook verifies and applies a gateway event. Unknown events, unknown
// targets and transitions out of terminal states are acknowledged as ignored;
// only storage failures are returned so the gateway redelivers.
func (u *EntitlementUseCase) HandleWebhook(ctx context.Context, rawBody []byte, signature string) error {
	if len(rawBody) == 0 {
		return fmt.Errorf("%w: empty body", domain.ErrInvalidArgument)
	}
	if signature == "" || !u.verifier.VerifyWebhook(rawBody, signature) {
		metrics.IncWebhook("unverified", "invalid_signature")
		u.log.Warn().Int("bytes", len(rawBody)).Msg("webhook signature mismatch")
		return domain.ErrInvalidSignature
	}

	var env webhookEnvelope
	if err := json.Unmarshal(rawBody, &env); err != nil || env.Event == "" {
		metrics.IncWebhook("malformed", "invalid")
		return fmt.Errorf("%w: malformed webhook payload", domain.ErrInvalidArgument)
	}

	key, apply := u.route(&env)
	audit := &model.WebhookEvent{
		ID:         ulid.Make().String(),
		Provider:   webhookProvider,
		EventType:  env.Event,
		EventKey:   key,
		Outcome:    model.WebhookOutcomeIgnored,
		ReceivedAt: u.now(),
	}

	if key != "" {
		if seen, err := u.webhooks.CountByKey(ctx, nil, webhookProvider, env.Event, key); err == nil && seen > 0 {
			u.log.Info().Str("event", env.Event).Str("key", key).Int("seen", seen).Msg("webhook redelivery")
		}
	}

	var err error
	if apply != nil {
		err = apply(ctx)
		switch {
		case err == nil:
			audit.Outcome = model.WebhookOutcomeApplied
		case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrInvalidState):
			audit.Error = err.Error()
			u.log.Info().Err(err).Str("event", env.Event).Str("key", key).Msg("webhook ignored")
			err = nil
		default:
			audit.Outcome = model.WebhookOutcomeFailed
			audit.Error = err.Error()
		}
	}

	if saveErr := u.webhooks.Save(ctx, nil, audit); saveErr != nil {
		u.log.Error().Err(saveErr).Str("event", env.Event).Msg("webhook audit write failed")
	}
	metrics.IncWebhook(env.Event, string(audit.Outcome))
	if err != nil {
		u.log.Error().Err(err).Str("event", env.Event).Str("key", key).Msg("webhook apply failed")
	}
	return err
}

// route picks the handler for an event and the id it targets. A nil handler
// means the event is acknowledged without effect.
func (u *EntitlementUseCase) route(env *webhookEnvelope) (string, func(ctx context.Context) error) {
	switch env.Event {
	case "payment.authorized", "payment.captured":
		if env.Payload.Payment == nil || env.Payload.Payment.Entity.OrderID == "" {
			return "", nil
		}
		p := env.Payload.Payment.Entity
		return p.OrderID, func(ctx context.Context) error {
			res, err := u.activateByOrder(ctx, p.OrderID, p.ID)
			if err != nil {
				return err
			}
			u.afterActivation(ctx, res, "webhook")
			u.startRecurring(ctx, res)
			return nil
		}

	case "subscription.activated", "subscription.charged", "subscription.updated",
		"subscription.cancelled", "subscription.completed":
		if env.Payload.Subscription == nil || env.Payload.Subscription.Entity.ID == "" {
			return "", nil
		}
		e := env.Payload.Subscription.Entity
		status := gatewayStatus(e.Status)
		switch env.Event {
		case "subscription.cancelled":
			status = model.SubscriptionStatusCanceled
		case "subscription.completed":
			status = model.SubscriptionStatusExpired
		}
		return e.ID, func(ctx context.Context) error {
			return u.syncGatewaySubscription(ctx, e.ID, status, unixOrZero(e.CurrentStart), unixOrZero(e.CurrentEnd))
		}
	}
	return "", nil
}

// syncGatewaySubscription overwrites status and period from the provider's
// absolute values, so replays converge on the same state.
func (u *EntitlementUseCase) syncGatewaySubscription(ctx context.Context, gatewaySubID string, status model.SubscriptionStatus, start, end time.Time) error {
	now := u.now()
	var (
		res     activation
		changed bool
		from    model.SubscriptionStatus
	)
	current, err := u.subs.FindByGatewaySubscriptionID(ctx, nil, gatewaySubID)
	if err != nil {
		return err
	}
	err = u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if err := u.users.LockUser(ctx, tx, current.UserID); err != nil {
			return err
		}
		sub, err := u.subs.FindByGatewaySubscriptionID(ctx, tx, gatewaySubID)
		if err != nil {
			return err
		}
		from = sub.Status
		res.sub = sub

		if status == model.SubscriptionStatusActive && sub.Status == model.SubscriptionStatusPending {
			txn, err := u.txns.FindBySubscriptionID(ctx, tx, sub.ID)
			if err != nil && !errors.Is(err, domain.ErrNotFound) {
				return err
			}
			if res, err = u.activate(ctx, tx, sub, txn, now); err != nil {
				return err
			}
			status = ""
		}

		changed, err = sub.SyncFromGateway(status, start, end, now)
		if err != nil {
			return err
		}
		if !changed {
			return nil
		}
		return u.subs.Save(ctx, tx, sub)
	})
	if err != nil {
		return err
	}

	if res.changed {
		u.afterActivation(ctx, res, "webhook")
		return nil
	}
	if changed && res.sub.Status != from {
		metrics.IncTransition(res.sub.Status, "webhook")
		u.publish(ctx, "subscription."+string(res.sub.Status), res.sub)
	}
	return nil
}

// gatewayStatus maps provider subscription states onto ours. Unknown states
// map to "" so only the period is synced.
func gatewayStatus(s string) model.SubscriptionStatus {
	switch strings.ToLower(s) {
	case "active":
		return model.SubscriptionStatusActive
	case "cancelled":
		return model.SubscriptionStatusCanceled
	case "completed", "expired":
		return model.SubscriptionStatusExpired
	}
	return ""
}

func unixOrZero(sec int64) time.Time {
	if sec <= 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}
