// File: internal/infra/events/rabbitmq_publisher.go
package events

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/dheerurajpoot/quote-generator-sub001/internal/domain/ports/adapter"
)

var _ adapter.EventPublisher = (*RabbitPublisher)(nil)

// channel is the slice of *amqp.Channel the publisher needs.
type channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// RabbitPublisher publishes lifecycle events to a durable topic exchange,
// routed by event type (e.g. subscription.activated).
type RabbitPublisher struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	ch       channel
	reopen   func() (channel, error)
	exchange string
	logger   *zerolog.Logger
}

// NewRabbitPublisher dials the broker and declares the exchange once.
func NewRabbitPublisher(amqpURL, exchange string, logger *zerolog.Logger) (*RabbitPublisher, error) {
	clean, err := sanitizeAMQPURL(amqpURL)
	if err != nil {
		return nil, err
	}
	conn, err := amqp.DialConfig(clean, amqp.Config{Dial: amqp.DefaultDial(10 * time.Second)})
	if err != nil {
		return nil, err
	}
	open := func() (channel, error) { return conn.Channel() }
	ch, err := open()
	if err != nil {
		conn.Close()
		return nil, err
	}
	p := newRabbitPublisher(ch, open, exchange, logger)
	p.conn = conn
	if err := p.declare(); err != nil {
		p.Close()
		return nil, err
	}
	return p, nil
}

func newRabbitPublisher(ch channel, reopen func() (channel, error), exchange string, logger *zerolog.Logger) *RabbitPublisher {
	l := logger.With().Str("component", "RabbitPublisher").Str("exchange", exchange).Logger()
	return &RabbitPublisher{ch: ch, reopen: reopen, exchange: exchange, logger: &l}
}

func (p *RabbitPublisher) declare() error {
	return p.ch.ExchangeDeclare(p.exchange, "topic", true, false, false, false, nil)
}

// Publish sends ev as JSON. A failed publish reopens the channel and retries once.
func (p *RabbitPublisher) Publish(ctx context.Context, ev adapter.LifecycleEvent) error {
	if ev.Type == "" {
		return errors.New("event type is required")
	}
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Unix(ev.OccurredAt, 0),
		MessageId:    ev.SubscriptionID + ":" + ev.Type,
		Body:         body,
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.ch.PublishWithContext(ctx, p.exchange, ev.Type, false, false, msg)
	if err == nil {
		return nil
	}
	p.logger.Warn().Err(err).Str("routing_key", ev.Type).Msg("publish failed; reopening channel")
	if p.reopen == nil {
		return err
	}
	ch, chErr := p.reopen()
	if chErr != nil {
		return chErr
	}
	_ = p.ch.Close()
	p.ch = ch
	if err := p.declare(); err != nil {
		return err
	}
	return p.ch.PublishWithContext(ctx, p.exchange, ev.Type, false, false, msg)
}

func (p *RabbitPublisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
}

func sanitizeAMQPURL(raw string) (string, error) {
	clean := strings.Trim(strings.TrimSpace(raw), "\"'")
	u, err := url.Parse(clean)
	if err != nil {
		return "", err
	}
	if u.Scheme != "amqp" && u.Scheme != "amqps" {
		return "", errors.New("AMQP scheme must be either 'amqp://' or 'amqps://'")
	}
	return clean, nil
}
