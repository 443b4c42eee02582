package delivery

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/menu-bot/pkg/catalog"
	"github.com/Sternrassler/menu-bot/pkg/logging"
	"github.com/Sternrassler/menu-bot/pkg/ratelimit"
)

// DefaultEmptyNotice is sent in place of an empty listing.
const DefaultEmptyNotice = "📭 No items found"

var (
	deliveryItemsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "menubot_delivery_items_total",
		Help: "Total number of delivered listing items by result",
	}, []string{"result"}) // "delivered", "fallback", "failed"

	deliveryDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "menubot_delivery_duration_seconds",
		Help:    "Duration of a complete listing delivery",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
	})
)

// Report summarises one delivery.
type Report struct {
	// ID identifies the delivery in logs.
	ID string

	// Attempted is the number of items the pipeline tried to send.
	Attempted int

	// Delivered is the number of items that reached the chat, with or
	// without falling back to text.
	Delivered int

	// Fallbacks is the number of photo sends that failed and were retried as text.
	Fallbacks int

	// Failed is the number of items that could not be sent at all.
	Failed int

	// Empty is set when the listing had no items and the notice was sent instead.
	Empty bool

	// Cancelled is set when the context ended before every item was attempted.
	Cancelled bool
}

// Pipeline sends listings and other messages to a chat.
type Pipeline struct {
	sender      Sender
	pacer       *ratelimit.Pacer
	emptyNotice string
	logger      zerolog.Logger
}

// New creates a pipeline. A nil pacer uses ratelimit.DefaultItemDelay.
func New(sender Sender, pacer *ratelimit.Pacer) *Pipeline {
	if sender == nil {
		panic("delivery sender cannot be nil")
	}
	if pacer == nil {
		pacer = ratelimit.NewPacer(ratelimit.DefaultItemDelay)
	}
	return &Pipeline{
		sender:      sender,
		pacer:       pacer,
		emptyNotice: DefaultEmptyNotice,
		logger:      logging.NewLogger(logging.ComponentDelivery),
	}
}

// Deliver sends one message per product, in order, pausing between items.
// An empty list sends DefaultEmptyNotice instead.
func (p *Pipeline) Deliver(ctx context.Context, chatID int64, products []catalog.Product) Report {
	return p.DeliverWithNotice(ctx, chatID, products, p.emptyNotice)
}

// DeliverWithNotice is Deliver with a custom empty-list notice.
//
// Each product goes out as a photo when it has an image. If that fails for
// any reason the same caption is sent as text. A failed text send is logged
// and counted, and delivery moves on to the next item.
func (p *Pipeline) DeliverWithNotice(ctx context.Context, chatID int64, products []catalog.Product, notice string) Report {
	report := Report{ID: uuid.NewString()}
	logger := p.logger.With().
		Int64("chat_id", chatID).
		Str("delivery_id", report.ID).
		Logger()

	if len(products) == 0 {
		report.Empty = true
		if err := p.sender.Send(ctx, chatID, Text(notice)); err != nil {
			logger.Warn().Err(err).Msg("Failed to send empty listing notice")
		}
		return report
	}

	start := time.Now()
	logger.Info().Int("items", len(products)).Msg("Delivering listing")

	for i, product := range products {
		if i > 0 {
			if err := p.pacer.Pause(ctx); err != nil {
				report.Cancelled = true
				break
			}
		}
		if ctx.Err() != nil {
			report.Cancelled = true
			break
		}

		report.Attempted++
		p.deliverItem(ctx, chatID, product, &report, logger)
	}

	deliveryDuration.Observe(time.Since(start).Seconds())

	event := logger.Info()
	if report.Failed > 0 || report.Cancelled {
		event = logger.Warn()
	}
	event.
		Int("attempted", report.Attempted).
		Int("delivered", report.Delivered).
		Int("fallbacks", report.Fallbacks).
		Int("failed", report.Failed).
		Bool("cancelled", report.Cancelled).
		Dur("duration", time.Since(start)).
		Msg("Listing delivered")

	return report
}

func (p *Pipeline) deliverItem(ctx context.Context, chatID int64, product catalog.Product, report *Report, logger zerolog.Logger) {
	msg := ProductMessage(product)
	err := p.sender.Send(ctx, chatID, msg)
	if err == nil {
		report.Delivered++
		deliveryItemsTotal.WithLabelValues("delivered").Inc()
		return
	}

	if msg.Kind == KindPhoto {
		report.Fallbacks++
		deliveryItemsTotal.WithLabelValues("fallback").Inc()
		logger.Debug().
			Err(err).
			Str("product_id", product.ID).
			Msg("Photo send failed - falling back to text")

		if err = p.sender.Send(ctx, chatID, Markdown(msg.Text)); err == nil {
			report.Delivered++
			return
		}
	}

	report.Failed++
	deliveryItemsTotal.WithLabelValues("failed").Inc()
	logger.Warn().
		Err(err).
		Str("product_id", product.ID).
		Msg("Failed to deliver item")
}

// Pause waits the pacing delay, the same wait Deliver uses between items.
// Callers delivering several listings back to back pause between them so
// the whole response keeps one pace.
func (p *Pipeline) Pause(ctx context.Context) error {
	return p.pacer.Pause(ctx)
}

// Send sends msgs in order without pacing. Photo messages fall back to text
// like listing items do. Delivery stops early only when ctx ends.
func (p *Pipeline) Send(ctx context.Context, chatID int64, msgs ...Message) Report {
	report := Report{ID: uuid.NewString()}
	logger := p.logger.With().
		Int64("chat_id", chatID).
		Str("delivery_id", report.ID).
		Logger()

	for _, msg := range msgs {
		if ctx.Err() != nil {
			report.Cancelled = true
			break
		}
		report.Attempted++

		err := p.sender.Send(ctx, chatID, msg)
		if err != nil && msg.Kind == KindPhoto {
			report.Fallbacks++
			fallback := Message{Kind: KindText, Text: msg.Text, Keyboard: msg.Keyboard, Markdown: msg.Markdown}
			err = p.sender.Send(ctx, chatID, fallback)
		}
		if err != nil {
			report.Failed++
			logger.Warn().Err(err).Str("kind", string(msg.Kind)).Msg("Failed to send message")
			continue
		}
		report.Delivered++
	}

	return report
}
