package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/dheerurajpoot/quote-generator-sub001/internal/domain/ports/usecase"
)

// ExpiryWorker moves active subscriptions whose period has passed to expired.
type ExpiryWorker struct {
	ctx     context.Context
	expirer usecase.SubscriptionExpirer
	timeout time.Duration
	now     func() time.Time
	log     *zerolog.Logger
}

func NewExpiryWorker(ctx context.Context, expirer usecase.SubscriptionExpirer, timeout time.Duration, logger *zerolog.Logger) *ExpiryWorker {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	exprLog := logger.With().Str("component", "ExpiryWorker").Logger()
	return &ExpiryWorker{
		ctx:     ctx,
		expirer: expirer,
		timeout: timeout,
		now:     func() time.Time { return time.Now().UTC() },
		log:     &exprLog,
	}
}

// Run implements cron.Job.
func (w *ExpiryWorker) Run() {
	ctx, cancel := context.WithTimeout(w.ctx, w.timeout)
	defer cancel()

	n, err := w.expirer.ExpireDue(ctx, w.now())
	if err != nil {
		w.log.Error().Err(err).Int("expired", n).Msg("expiry sweep failed")
		return
	}
	if n > 0 {
		w.log.Info().Int("count", n).Msg("expiry sweep finished")
	}
}
