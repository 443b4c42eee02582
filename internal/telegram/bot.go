// Package telegram connects the bot to the Telegram Bot API: it turns
// incoming updates into navigation actions and sends delivery messages.
package telegram

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/menu-bot/pkg/logging"
)

// Config holds Bot API connection settings.
type Config struct {
	// Token is the bot token issued by BotFather.
	Token string

	// APIEndpoint is the Bot API URL pattern with placeholders for token and method.
	// Defaults to tgbotapi.APIEndpoint.
	APIEndpoint string

	// HTTPClient overrides the HTTP client used for API calls.
	HTTPClient *http.Client
}

// Bot wraps an authenticated Bot API client.
type Bot struct {
	api    *tgbotapi.BotAPI
	logger zerolog.Logger
}

// New authenticates against the Bot API (getMe) and returns the bot.
func New(cfg Config) (*Bot, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("bot token is required")
	}
	if cfg.APIEndpoint == "" {
		cfg.APIEndpoint = tgbotapi.APIEndpoint
	}
	if cfg.HTTPClient == nil {
		// Long polling holds requests for up to a minute.
		cfg.HTTPClient = &http.Client{Timeout: 90 * time.Second}
	}

	logger := logging.NewLogger(logging.ComponentTelegram)
	if err := tgbotapi.SetLogger(botLogger{logger: logger}); err != nil {
		return nil, fmt.Errorf("set bot api logger: %w", err)
	}

	api, err := tgbotapi.NewBotAPIWithClient(cfg.Token, cfg.APIEndpoint, cfg.HTTPClient)
	if err != nil {
		return nil, fmt.Errorf("connect to bot api: %w", err)
	}

	logger.Info().
		Str("username", api.Self.UserName).
		Int64("bot_id", api.Self.ID).
		Msg("Authorized on Bot API")

	return &Bot{api: api, logger: logger}, nil
}

// Username returns the bot's username.
func (b *Bot) Username() string {
	return b.api.Self.UserName
}

// botLogger routes the Bot API library's log output through zerolog.
type botLogger struct {
	logger zerolog.Logger
}

func (l botLogger) Println(v ...interface{}) {
	l.logger.Warn().Msg(strings.TrimSpace(fmt.Sprintln(v...)))
}

func (l botLogger) Printf(format string, v ...interface{}) {
	l.logger.Warn().Msg(strings.TrimSpace(fmt.Sprintf(format, v...)))
}
