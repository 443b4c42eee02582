// Package config loads the bot's settings from the environment.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/Sternrassler/menu-bot/pkg/logging"
	"github.com/Sternrassler/menu-bot/pkg/ratelimit"
)

// Update intake modes.
const (
	ModePolling = "polling"
	ModeWebhook = "webhook"
)

// Config is the full runtime configuration.
type Config struct {
	BotToken      string `env:"BOT_TOKEN"`
	BotMode       string `env:"BOT_MODE" envDefault:"polling"`
	WebhookURL    string `env:"WEBHOOK_URL"`
	WebhookSecret string `env:"WEBHOOK_SECRET"`
	PollTimeout   int    `env:"POLL_TIMEOUT" envDefault:"60"`

	APIBaseURL    string        `env:"API_BASE_URL" envDefault:"https://menuqrcode.onrender.com/api"`
	StoreSlug     string        `env:"STORE_SLUG" envDefault:"ysg"`
	UserAgent     string        `env:"USER_AGENT" envDefault:"YSGTelegramBot/1.0"`
	FetchAttempts int           `env:"FETCH_ATTEMPTS" envDefault:"3"`
	FetchTimeout  time.Duration `env:"FETCH_TIMEOUT" envDefault:"10s"`
	CacheTTL      time.Duration `env:"CACHE_TTL" envDefault:"60s"`

	DeliveryDelay time.Duration `env:"DELIVERY_DELAY" envDefault:"1s"`
	SendRate      float64       `env:"SEND_RATE" envDefault:"25"`

	Port         int    `env:"PORT" envDefault:"3000"`
	LogLevel     string `env:"LOG_LEVEL" envDefault:"info"`
	LogPretty    bool   `env:"LOG_PRETTY" envDefault:"false"`
	OTelEndpoint string `env:"OTEL_ENDPOINT"`
}

// Load parses the environment into a Config. It does not validate.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// Validate checks the settings the catalog side needs.
func (c Config) Validate() error {
	var errs []error

	u, err := url.Parse(c.APIBaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("API_BASE_URL must be an http(s) URL (got %q)", c.APIBaseURL))
	}
	if strings.TrimSpace(c.StoreSlug) == "" {
		errs = append(errs, errors.New("STORE_SLUG is required"))
	}
	if c.UserAgent == "" {
		errs = append(errs, errors.New("USER_AGENT is required"))
	}
	if c.FetchAttempts < 1 {
		errs = append(errs, fmt.Errorf("FETCH_ATTEMPTS must be >= 1 (got %d)", c.FetchAttempts))
	}
	if c.FetchTimeout <= 0 {
		errs = append(errs, fmt.Errorf("FETCH_TIMEOUT must be positive (got %s)", c.FetchTimeout))
	}
	if c.CacheTTL <= 0 {
		errs = append(errs, fmt.Errorf("CACHE_TTL must be positive (got %s)", c.CacheTTL))
	}
	if c.DeliveryDelay < ratelimit.MinItemDelay || c.DeliveryDelay > ratelimit.MaxItemDelay {
		errs = append(errs, fmt.Errorf("DELIVERY_DELAY must be between %s and %s (got %s)",
			ratelimit.MinItemDelay, ratelimit.MaxItemDelay, c.DeliveryDelay))
	}
	if c.SendRate < 0 {
		errs = append(errs, fmt.Errorf("SEND_RATE must not be negative (got %g)", c.SendRate))
	}
	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT must be 1-65535 (got %d)", c.Port))
	}
	if err := logging.ValidateLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("LOG_LEVEL: %w", err))
	}

	return errors.Join(errs...)
}

// ValidateBot additionally checks the chat platform settings needed by serve.
func (c Config) ValidateBot() error {
	errs := []error{c.Validate()}

	if c.BotToken == "" {
		errs = append(errs, errors.New("BOT_TOKEN is required"))
	}
	switch c.BotMode {
	case ModePolling:
		if c.PollTimeout < 0 {
			errs = append(errs, fmt.Errorf("POLL_TIMEOUT must not be negative (got %d)", c.PollTimeout))
		}
	case ModeWebhook:
		if c.WebhookURL == "" {
			errs = append(errs, errors.New("WEBHOOK_URL is required in webhook mode"))
		}
		if c.WebhookSecret == "" {
			errs = append(errs, errors.New("WEBHOOK_SECRET is required in webhook mode"))
		}
	default:
		errs = append(errs, fmt.Errorf("BOT_MODE must be %q or %q (got %q)", ModePolling, ModeWebhook, c.BotMode))
	}

	return errors.Join(errs...)
}

// Addr is the ops server listen address.
func (c Config) Addr() string {
	return fmt.Sprintf("0.0.0.0:%d", c.Port)
}

// WebhookEndpoint is the full URL the Bot API posts updates to.
func (c Config) WebhookEndpoint() string {
	return strings.TrimRight(c.WebhookURL, "/") + "/webhook/" + url.PathEscape(c.WebhookSecret)
}
