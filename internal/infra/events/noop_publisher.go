package events

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/dheerurajpoot/quote-generator-sub001/internal/domain/ports/adapter"
)

// NoopPublisher is used when no broker is configured or it is unreachable at startup.
type NoopPublisher struct {
	logger *zerolog.Logger
}

func NewNoopPublisher(logger *zerolog.Logger) *NoopPublisher {
	return &NoopPublisher{logger: logger}
}

func (p *NoopPublisher) Publish(ctx context.Context, ev adapter.LifecycleEvent) error {
	p.logger.Debug().Str("type", ev.Type).Str("subscription_id", ev.SubscriptionID).Msg("event publish skipped")
	return nil
}

func (p *NoopPublisher) Close() {}

// NewPublisher returns a broker-backed publisher, or the no-op one when the
// URL is empty or the broker cannot be reached.
func NewPublisher(amqpURL, exchange string, logger *zerolog.Logger) adapter.EventPublisher {
	if amqpURL == "" {
		return NewNoopPublisher(logger)
	}
	p, err := NewRabbitPublisher(amqpURL, exchange, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("rabbitmq unavailable; lifecycle events disabled")
		return NewNoopPublisher(logger)
	}
	return p
}
