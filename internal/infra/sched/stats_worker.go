package sched

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/dheerurajpoot/quote-generator-sub001/internal/domain/model"
	"github.com/dheerurajpoot/quote-generator-sub001/internal/domain/ports/adapter"
	"github.com/dheerurajpoot/quote-generator-sub001/internal/usecase"
)

// StatsSource computes the dashboard summary and refreshes the subscription gauges.
type StatsSource interface {
	Stats(ctx context.Context, now time.Time) (*usecase.Stats, error)
}

// StatsWorker refreshes gauges on a schedule. When RemindPending is set it
// also nudges admins about the review backlog.
type StatsWorker struct {
	ctx           context.Context
	stats         StatsSource
	poolStats     func()
	notifier      adapter.AdminNotifier
	RemindPending bool
	Messages      usecase.MessageCatalog
	now           func() time.Time
	log           *zerolog.Logger
}

func NewStatsWorker(ctx context.Context, stats StatsSource, poolStats func(), notifier adapter.AdminNotifier, logger *zerolog.Logger) *StatsWorker {
	l := logger.With().Str("component", "StatsWorker").Logger()
	return &StatsWorker{
		ctx:       ctx,
		stats:     stats,
		poolStats: poolStats,
		notifier:  notifier,
		now:       func() time.Time { return time.Now().UTC() },
		log:       &l,
	}
}

// Run implements cron.Job.
func (w *StatsWorker) Run() {
	ctx, cancel := context.WithTimeout(w.ctx, 30*time.Second)
	defer cancel()

	if w.poolStats != nil {
		w.poolStats()
	}
	st, err := w.stats.Stats(ctx, w.now())
	if err != nil {
		w.log.Error().Err(err).Msg("failed to refresh subscription stats")
		return
	}
	pending := st.ByStatus[model.SubscriptionStatusPending]
	w.log.Debug().Int("pending", pending).Int64("revenue_30d", st.Revenue30Days).Msg("stats refreshed")

	if !w.RemindPending || pending == 0 || w.notifier == nil {
		return
	}
	text := fmt.Sprintf("%d UPI payment(s) awaiting review", pending)
	if w.Messages != nil {
		text = w.Messages.T("pending_reminder", pending)
	}
	if err := w.notifier.NotifyAdmins(ctx, text); err != nil {
		w.log.Warn().Err(err).Msg("failed to send review reminder")
	}
}
