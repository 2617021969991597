package telegram

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/dheerurajpoot/quote-generator-sub001/internal/domain/ports/adapter"
)

var _ adapter.AdminNotifier = (*NoopAdminNotifier)(nil)

// NoopAdminNotifier logs alerts instead of sending them. Used when no bot token is configured.
type NoopAdminNotifier struct {
	log *zerolog.Logger
}

func NewNoopAdminNotifier(logger *zerolog.Logger) *NoopAdminNotifier {
	return &NoopAdminNotifier{log: logger}
}

func (n *NoopAdminNotifier) NotifyAdmins(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n.log.Info().Str("component", "noop_notifier").Str("text", text).Msg("admin notification")
	return nil
}
