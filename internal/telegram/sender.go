package telegram

import (
	"context"
	"errors"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Sternrassler/menu-bot/pkg/delivery"
	"github.com/Sternrassler/menu-bot/pkg/ratelimit"
)

var messagesSentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "menubot_telegram_messages_total",
	Help: "Total number of Bot API send calls by message kind and result",
}, []string{"kind", "result"}) // result: "ok", "rate_limited", "error"

// Sender sends delivery messages through the Bot API. It implements
// delivery.Sender and is shared by every chat.
type Sender struct {
	bot     *Bot
	tracker *ratelimit.Tracker
}

// NewSender creates a sender. Every send waits on tracker first.
func NewSender(bot *Bot, tracker *ratelimit.Tracker) *Sender {
	return &Sender{bot: bot, tracker: tracker}
}

// Send implements delivery.Sender. A rate-limit response is recorded with
// the tracker and the send is retried once after the requested pause.
func (s *Sender) Send(ctx context.Context, chatID int64, msg delivery.Message) error {
	chattable, err := Chattable(chatID, msg)
	if err != nil {
		return err
	}

	for attempt := 1; ; attempt++ {
		if err := s.tracker.Wait(ctx); err != nil {
			return err
		}

		_, err := s.bot.api.Send(chattable)
		if err == nil {
			messagesSentTotal.WithLabelValues(string(msg.Kind), "ok").Inc()
			return nil
		}

		retryAfter := RetryAfter(err)
		if retryAfter <= 0 || attempt > 1 {
			messagesSentTotal.WithLabelValues(string(msg.Kind), "error").Inc()
			return fmt.Errorf("send %s to chat %d: %w", msg.Kind, chatID, err)
		}

		messagesSentTotal.WithLabelValues(string(msg.Kind), "rate_limited").Inc()
		s.tracker.Backoff(retryAfter)
	}
}

// Chattable converts a delivery message into a Bot API request.
func Chattable(chatID int64, msg delivery.Message) (tgbotapi.Chattable, error) {
	var markup interface{}
	if len(msg.Keyboard) > 0 {
		markup = replyKeyboard(msg.Keyboard)
	}
	parseMode := ""
	if msg.Markdown {
		parseMode = tgbotapi.ModeMarkdown
	}

	switch msg.Kind {
	case delivery.KindPhoto:
		if msg.ImageURL == "" {
			return nil, fmt.Errorf("photo message without image url")
		}
		photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileURL(msg.ImageURL))
		photo.Caption = msg.Text
		photo.ParseMode = parseMode
		if markup != nil {
			photo.ReplyMarkup = markup
		}
		return photo, nil

	case delivery.KindText, "":
		text := tgbotapi.NewMessage(chatID, msg.Text)
		text.ParseMode = parseMode
		if markup != nil {
			text.ReplyMarkup = markup
		}
		return text, nil
	}
	return nil, fmt.Errorf("unsupported message kind %q", msg.Kind)
}

func replyKeyboard(k delivery.Keyboard) tgbotapi.ReplyKeyboardMarkup {
	rows := make([][]tgbotapi.KeyboardButton, 0, len(k))
	for _, labels := range k {
		buttons := make([]tgbotapi.KeyboardButton, 0, len(labels))
		for _, label := range labels {
			buttons = append(buttons, tgbotapi.NewKeyboardButton(label))
		}
		rows = append(rows, tgbotapi.NewKeyboardButtonRow(buttons...))
	}
	keyboard := tgbotapi.NewReplyKeyboard(rows...)
	keyboard.ResizeKeyboard = true
	return keyboard
}

// RetryAfter extracts the pause requested by a Bot API rate-limit error.
// Returns 0 for any other error.
func RetryAfter(err error) time.Duration {
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		return time.Duration(apiErr.RetryAfter) * time.Second
	}
	return 0
}
