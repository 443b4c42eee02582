package navigation

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/menu-bot/pkg/catalog"
	"github.com/Sternrassler/menu-bot/pkg/delivery"
	"github.com/Sternrassler/menu-bot/pkg/logging"
)

// User-visible texts.
const (
	msgLoadingMenu     = "🔄 Loading store menu..."
	msgLoadingAll      = "🔄 Loading all menu items..."
	msgStoreDown       = "❌ Store is temporarily unavailable.\n\nThis might be due to high traffic. Please try again in a few moments."
	msgMenuDown        = "❌ Menu temporarily unavailable"
	msgSelectCategory  = "📋 *Select a category:*"
	msgNoCategories    = "📋 *Menu Categories*\n\n📂 All Items\n\nSelect \"All Items\" to browse the menu."
	msgGuidance        = "🤖 Use the buttons below to browse the menu, or send /start to begin. Send /help for more."
	noticeNoItems      = "📭 No items found"
	noticeNoItemsIn    = "📭 No items found in %s"
	msgCategoryHeader  = "📂 *%s*\n_%d items_"
	msgAllItemsHeader  = "🍽️ *All Menu Items*\n_%d items total_"
	msgGroupHeader     = "📂 *%s*"
	msgLoadingCategory = "🔄 Loading %s..."
)

var actionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "menubot_navigation_actions_total",
	Help: "Total number of handled user actions by kind and outcome",
}, []string{"kind", "outcome"}) // outcome: "ok", "unavailable"

// Catalog is the cache the controller reads from.
type Catalog interface {
	Catalog(ctx context.Context) (catalog.Snapshot, error)
	Invalidate()
	TTL() time.Duration
}

// Section is one product listing to deliver.
type Section struct {
	// Title is sent before the listing when set.
	Title string

	Products []catalog.Product

	// EmptyNotice replaces the listing when Products is empty.
	EmptyNotice string
}

// Response is everything to send for one action: Messages first, then
// Sections in order.
type Response struct {
	Messages []delivery.Message
	Sections []Section
}

// Controller maps user actions to responses.
type Controller struct {
	catalog Catalog
	logger  zerolog.Logger
}

// NewController creates a controller reading from c.
func NewController(c Catalog) *Controller {
	if c == nil {
		panic("catalog cannot be nil")
	}
	return &Controller{
		catalog: c,
		logger:  logging.NewLogger(logging.ComponentNavigation),
	}
}

// Acknowledge returns the message to send right away, before the possibly
// slow Handle call, if the action has one.
func (c *Controller) Acknowledge(a UserAction) (delivery.Message, bool) {
	switch a.Kind {
	case KindStart, KindRefresh:
		return delivery.Text(msgLoadingMenu), true
	case KindSelectCategory:
		return delivery.Text(fmt.Sprintf(msgLoadingCategory, a.Category)), true
	case KindAllItems:
		return delivery.Text(msgLoadingAll), true
	}
	return delivery.Message{}, false
}

// Handle computes the response to a. It never fails: upstream problems
// become user-visible messages.
func (c *Controller) Handle(ctx context.Context, a UserAction) Response {
	logger := c.logger.With().
		Int64("chat_id", a.ChatID).
		Str("action", a.Kind.String()).
		Logger()

	switch a.Kind {
	case KindStart:
		return c.start(ctx, logger)
	case KindRefresh:
		c.catalog.Invalidate()
		logger.Info().Msg("Refresh requested")
		return c.start(ctx, logger)
	case KindSelectCategory:
		return c.selectCategory(ctx, a.Category, logger)
	case KindAllItems:
		return c.allItems(ctx, logger)
	case KindHelp:
		actionsTotal.WithLabelValues(a.Kind.String(), "ok").Inc()
		return Response{Messages: []delivery.Message{delivery.Markdown(HelpText(c.catalog.TTL()))}}
	default:
		actionsTotal.WithLabelValues(a.Kind.String(), "ok").Inc()
		return Response{Messages: []delivery.Message{delivery.Text(msgGuidance)}}
	}
}

func (c *Controller) load(ctx context.Context, logger zerolog.Logger) (catalog.Snapshot, bool) {
	snap, err := c.catalog.Catalog(ctx)
	if err != nil {
		event := logger.Warn()
		if errors.Is(err, context.Canceled) {
			event = logger.Debug()
		}
		event.Err(err).Msg("Catalog not available")
		return snap, false
	}
	return snap, true
}

func (c *Controller) start(ctx context.Context, logger zerolog.Logger) Response {
	snap, _ := c.load(ctx, logger)
	if snap.Store == nil {
		actionsTotal.WithLabelValues(KindStart.String(), "unavailable").Inc()
		return Response{Messages: []delivery.Message{delivery.Text(msgStoreDown)}}
	}
	actionsTotal.WithLabelValues(KindStart.String(), "ok").Inc()

	resp := Response{Messages: []delivery.Message{delivery.Markdown(StoreCard(snap.Store))}}
	keyboard := CategoryKeyboard(snap.Categories)
	if snap.HasCategories() {
		resp.Messages = append(resp.Messages, delivery.Markdown(msgSelectCategory).WithKeyboard(keyboard))
	} else {
		resp.Messages = append(resp.Messages, delivery.Markdown(msgNoCategories).WithKeyboard(keyboard))
	}
	return resp
}

func (c *Controller) selectCategory(ctx context.Context, name string, logger zerolog.Logger) Response {
	snap, ok := c.load(ctx, logger)
	if !ok || !snap.Complete() {
		actionsTotal.WithLabelValues(KindSelectCategory.String(), "unavailable").Inc()
		return Response{Messages: []delivery.Message{delivery.Text(msgMenuDown)}}
	}
	actionsTotal.WithLabelValues(KindSelectCategory.String(), "ok").Inc()

	selected := catalog.SelectCategory(snap.Products, snap.Categories, name)
	logger.Info().
		Str("category", name).
		Int("items", len(selected)).
		Msg("Category selected")

	resp := Response{Sections: []Section{{
		Products:    selected,
		EmptyNotice: fmt.Sprintf(noticeNoItemsIn, name),
	}}}
	if len(selected) > 0 {
		header := fmt.Sprintf(msgCategoryHeader, delivery.EscapeMarkdown(name), len(selected))
		resp.Messages = []delivery.Message{delivery.Markdown(header)}
	}
	return resp
}

func (c *Controller) allItems(ctx context.Context, logger zerolog.Logger) Response {
	snap, ok := c.load(ctx, logger)
	if !ok || !snap.Complete() {
		actionsTotal.WithLabelValues(KindAllItems.String(), "unavailable").Inc()
		return Response{Messages: []delivery.Message{delivery.Text(msgMenuDown)}}
	}
	actionsTotal.WithLabelValues(KindAllItems.String(), "ok").Inc()

	if len(snap.Products) == 0 {
		return Response{Sections: []Section{{EmptyNotice: noticeNoItems}}}
	}

	groups := catalog.GroupByCategory(snap.Products, snap.Categories)
	resp := Response{
		Messages: []delivery.Message{delivery.Markdown(fmt.Sprintf(msgAllItemsHeader, len(snap.Products)))},
		Sections: make([]Section, 0, len(groups)),
	}
	for _, g := range groups {
		resp.Sections = append(resp.Sections, Section{
			Title:       fmt.Sprintf(msgGroupHeader, delivery.EscapeMarkdown(g.Name)),
			Products:    g.Products,
			EmptyNotice: noticeNoItems,
		})
	}
	logger.Info().
		Int("items", len(snap.Products)).
		Int("groups", len(groups)).
		Msg("All items listed")
	return resp
}

// StoreCard renders the store header shown on start.
func StoreCard(s *catalog.Store) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🏪 *%s*\n\n", delivery.EscapeMarkdown(s.Name))
	if s.Description != "" {
		fmt.Fprintf(&b, "📝 %s\n", delivery.EscapeMarkdown(s.Description))
	}
	if s.Address != "" {
		fmt.Fprintf(&b, "📍 %s\n", delivery.EscapeMarkdown(s.Address))
	}
	if s.Phone != "" {
		fmt.Fprintf(&b, "📞 %s\n", delivery.EscapeMarkdown(s.Phone))
	}
	if s.Website != "" {
		fmt.Fprintf(&b, "🌐 %s\n", delivery.EscapeMarkdown(s.Website))
	}

	platforms := make([]string, 0, len(s.SocialLinks))
	for platform := range s.SocialLinks {
		platforms = append(platforms, platform)
	}
	sort.Strings(platforms)
	for _, platform := range platforms {
		fmt.Fprintf(&b, "🔗 %s: %s\n",
			delivery.EscapeMarkdown(platform),
			delivery.EscapeMarkdown(s.SocialLinks[platform]))
	}
	return b.String()
}

// CategoryKeyboard is one row per category, then All Items and Refresh.
func CategoryKeyboard(categories []catalog.Category) delivery.Keyboard {
	rows := make(delivery.Keyboard, 0, len(categories)+2)
	for _, cat := range categories {
		rows = append(rows, []string{CategoryPrefix + cat.Name})
	}
	rows = append(rows, []string{AllItemsLabel}, []string{RefreshLabel})
	return rows
}

// HelpText describes the bot's commands and the cache window.
func HelpText(ttl time.Duration) string {
	return "🤖 *Menu Bot Help*\n\n" +
		"*Commands:*\n" +
		"/start - Show store menu\n" +
		"/help - Show this help\n\n" +
		"*Tips:*\n" +
		"• Use buttons to navigate\n" +
		"• Images load automatically\n" +
		"• Refresh if menu seems old\n\n" +
		fmt.Sprintf("The bot caches data for %s to avoid API limits.", humanDuration(ttl))
}

func humanDuration(d time.Duration) string {
	switch {
	case d >= time.Minute && d%time.Minute == 0:
		if n := int(d / time.Minute); n != 1 {
			return fmt.Sprintf("%d minutes", n)
		}
		return "1 minute"
	case d >= time.Second && d%time.Second == 0:
		if n := int(d / time.Second); n != 1 {
			return fmt.Sprintf("%d seconds", n)
		}
		return "1 second"
	}
	return d.String()
}
