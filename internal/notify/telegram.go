package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"chessBlocker/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/hashicorp/go-retryablehttp"
)

type TelegramConfig struct {
	Token    string
	ChatID   int64
	Endpoint string // defaults to tgbotapi.APIEndpoint
	Logger   *slog.Logger
}

// TelegramSink sends alerts as plain chat messages.
type TelegramSink struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

// NewTelegramSink connects to the Bot API, which validates the token.
func NewTelegramSink(cfg TelegramConfig) (*TelegramSink, error) {
	if cfg.Token == "" || cfg.ChatID == 0 {
		return nil, fmt.Errorf("telegram: token and chat id are required")
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = tgbotapi.APIEndpoint
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 3
	retryClient.RetryWaitMin = 1 * time.Second
	retryClient.RetryWaitMax = 10 * time.Second
	retryClient.Logger = nil

	bot, err := tgbotapi.NewBotAPIWithClient(cfg.Token, cfg.Endpoint, retryClient.StandardClient())
	if err != nil {
		return nil, fmt.Errorf("telegram bot init: %w", err)
	}
	if cfg.Logger != nil {
		cfg.Logger.Info("telegram bot connected", "username", bot.Self.UserName, "id", bot.Self.ID)
	}
	return &TelegramSink{bot: bot, chatID: cfg.ChatID}, nil
}

func (*TelegramSink) Name() string { return "telegram" }

func (s *TelegramSink) Alert(ctx context.Context, alert models.Alert) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(s.chatID, fmt.Sprintf("%s\n%s", alert.Title, alert.Message))
	if _, err := s.bot.Send(msg); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}
