package telegram

import (
	"context"
	"errors"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/dheerurajpoot/quote-generator-sub001/internal/domain/ports/adapter"
	"github.com/dheerurajpoot/quote-generator-sub001/internal/infra/metrics"
)

var _ adapter.AdminNotifier = (*BotAdminNotifier)(nil)

// BotAdminNotifier posts reviewer alerts into a Telegram chat (a group or a single admin).
type BotAdminNotifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	log    *zerolog.Logger
}

func NewBotAdminNotifier(token string, chatID int64, logger *zerolog.Logger) (*BotAdminNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	return newBotAdminNotifier(bot, chatID, logger)
}

// NewBotAdminNotifierWithEndpoint targets a custom Bot API endpoint (self-hosted server or tests).
// endpoint must contain two %s verbs: token and method.
func NewBotAdminNotifierWithEndpoint(token, endpoint string, chatID int64, logger *zerolog.Logger) (*BotAdminNotifier, error) {
	bot, err := tgbotapi.NewBotAPIWithAPIEndpoint(token, endpoint)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	return newBotAdminNotifier(bot, chatID, logger)
}

func newBotAdminNotifier(bot *tgbotapi.BotAPI, chatID int64, logger *zerolog.Logger) (*BotAdminNotifier, error) {
	if chatID == 0 {
		return nil, errors.New("telegram chat id is required")
	}
	l := logger.With().Str("component", "telegram_notifier").Str("bot", bot.Self.UserName).Logger()
	return &BotAdminNotifier{bot: bot, chatID: chatID, log: &l}, nil
}

func (n *BotAdminNotifier) NotifyAdmins(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(n.chatID, text)
	msg.DisableWebPagePreview = true
	if _, err := n.bot.Send(msg); err != nil {
		metrics.IncAdminNotification("error")
		n.log.Error().Err(err).Int64("chat_id", n.chatID).Msg("failed to notify admins")
		return err
	}
	metrics.IncAdminNotification("sent")
	return nil
}
