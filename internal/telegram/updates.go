package telegram

import (
	"context"
	"fmt"
	"net/http"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Sternrassler/menu-bot/pkg/navigation"
)

var updatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "menubot_telegram_updates_total",
	Help: "Total number of received updates by source and result",
}, []string{"source", "result"}) // result: "submitted", "ignored", "rejected"

// Submitter accepts actions for processing.
type Submitter interface {
	Submit(a navigation.UserAction) error
}

// ActionFromUpdate extracts the user action from an update. Updates
// without a text message are ignored.
func ActionFromUpdate(u tgbotapi.Update) (navigation.UserAction, bool) {
	msg := u.Message
	if msg == nil || msg.Chat == nil || msg.Text == "" {
		return navigation.UserAction{}, false
	}
	return navigation.ParseText(msg.Chat.ID, msg.Text), true
}

func (b *Bot) route(source string, u tgbotapi.Update, submit Submitter) {
	action, ok := ActionFromUpdate(u)
	if !ok {
		updatesTotal.WithLabelValues(source, "ignored").Inc()
		return
	}

	if err := submit.Submit(action); err != nil {
		updatesTotal.WithLabelValues(source, "rejected").Inc()
		b.logger.Warn().
			Err(err).
			Int64("chat_id", action.ChatID).
			Str("action", action.Kind.String()).
			Msg("Update not accepted")
		return
	}

	updatesTotal.WithLabelValues(source, "submitted").Inc()
	b.logger.Debug().
		Int("update_id", u.UpdateID).
		Int64("chat_id", action.ChatID).
		Str("action", action.Kind.String()).
		Msg("Update received")
}

// Poll receives updates by long polling until ctx ends. Transport errors
// are logged by the Bot API library and retried; they never end polling.
func (b *Bot) Poll(ctx context.Context, submit Submitter, timeoutSeconds int) error {
	if _, err := b.api.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		return fmt.Errorf("delete webhook before polling: %w", err)
	}

	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = timeoutSeconds
	updates := b.api.GetUpdatesChan(cfg)

	b.logger.Info().Int("timeout_s", timeoutSeconds).Msg("Polling for updates")

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			b.logger.Info().Msg("Polling stopped")
			return nil
		case u, ok := <-updates:
			if !ok {
				return nil
			}
			b.route("poll", u, submit)
		}
	}
}

// SetWebhook registers url with the Bot API.
func (b *Bot) SetWebhook(url string) error {
	wh, err := tgbotapi.NewWebhook(url)
	if err != nil {
		return fmt.Errorf("build webhook config: %w", err)
	}
	if _, err := b.api.Request(wh); err != nil {
		return fmt.Errorf("set webhook: %w", err)
	}
	b.logger.Info().Msg("Webhook registered")
	return nil
}

// WebhookHandler accepts update POSTs from the Bot API.
func (b *Bot) WebhookHandler(submit Submitter) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, err := b.api.HandleUpdate(r)
		if err != nil {
			updatesTotal.WithLabelValues("webhook", "rejected").Inc()
			b.logger.Warn().Err(err).Msg("Invalid webhook request")
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		b.route("webhook", *u, submit)
		w.WriteHeader(http.StatusOK)
	})
}
