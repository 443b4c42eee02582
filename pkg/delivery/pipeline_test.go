package delivery

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sternrassler/menu-bot/pkg/catalog"
	"github.com/Sternrassler/menu-bot/pkg/ratelimit"
)

// recorder captures sends and pauses in the order they happened.
type recorder struct {
	mu     sync.Mutex
	events []string
	sent   []Message
}

func (r *recorder) Send(_ context.Context, _ int64, msg Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if msg.Kind == KindPhoto && strings.Contains(msg.ImageURL, "broken") {
		r.events = append(r.events, "photo-fail:"+firstLine(msg.Text))
		return errors.New("wrong file identifier/HTTP URL specified")
	}
	if strings.Contains(msg.Text, "FAIL") {
		r.events = append(r.events, "text-fail:"+firstLine(msg.Text))
		return errors.New("bad request")
	}
	r.events = append(r.events, fmt.Sprintf("%s:%s", msg.Kind, firstLine(msg.Text)))
	r.sent = append(r.sent, msg)
	return nil
}

func (r *recorder) pause(_ context.Context, d time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, "pause:"+d.String())
	return nil
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}

func newTestPipeline(t *testing.T) (*Pipeline, *recorder) {
	t.Helper()
	rec := &recorder{}
	pacer := ratelimit.NewPacer(time.Second)
	pacer.SetSleep(rec.pause)
	return New(rec, pacer), rec
}

func products(titles ...string) []catalog.Product {
	out := make([]catalog.Product, 0, len(titles))
	for i, title := range titles {
		out = append(out, catalog.Product{ID: fmt.Sprintf("p%d", i+1), Title: title})
	}
	return out
}

func TestNew_NilSenderPanics(t *testing.T) {
	assert.Panics(t, func() { New(nil, nil) })
}

func TestDeliver_OrderAndPacing(t *testing.T) {
	p, rec := newTestPipeline(t)

	report := p.Deliver(context.Background(), 42, products("A", "B", "C"))

	assert.Equal(t, []string{
		"text:✅ *A*",
		"pause:1s",
		"text:✅ *B*",
		"pause:1s",
		"text:✅ *C*",
	}, rec.events, "items in order, pauses only between items")

	assert.Equal(t, 3, report.Attempted)
	assert.Equal(t, 3, report.Delivered)
	assert.Zero(t, report.Fallbacks)
	assert.Zero(t, report.Failed)
	assert.False(t, report.Empty)
	_, err := uuid.Parse(report.ID)
	assert.NoError(t, err)
}

func TestDeliver_SingleItemNoPause(t *testing.T) {
	p, rec := newTestPipeline(t)

	p.Deliver(context.Background(), 42, products("Only"))

	assert.Equal(t, []string{"text:✅ *Only*"}, rec.events)
}

func TestDeliver_PhotoFallback(t *testing.T) {
	p, rec := newTestPipeline(t)

	items := []catalog.Product{
		{ID: "p1", Title: "Tea", ImageURL: "https://img.example/tea.jpg"},
		{ID: "p2", Title: "Burger", ImageURL: "https://img.example/broken.jpg"},
		{ID: "p3", Title: "Soup"},
	}
	report := p.Deliver(context.Background(), 42, items)

	assert.Equal(t, []string{
		"photo:✅ *Tea*",
		"pause:1s",
		"photo-fail:✅ *Burger*",
		"text:✅ *Burger*",
		"pause:1s",
		"text:✅ *Soup*",
	}, rec.events)

	assert.Equal(t, 3, report.Attempted)
	assert.Equal(t, 3, report.Delivered)
	assert.Equal(t, 1, report.Fallbacks)
	assert.Zero(t, report.Failed)

	require.Len(t, rec.sent, 3)
	assert.Equal(t, KindText, rec.sent[1].Kind)
	assert.Equal(t, Caption(items[1]), rec.sent[1].Text, "fallback carries the same caption")
}

func TestDeliver_FallbackFailureContinues(t *testing.T) {
	p, rec := newTestPipeline(t)

	items := []catalog.Product{
		{ID: "p1", Title: "FAIL", ImageURL: "https://img.example/broken.jpg"},
		{ID: "p2", Title: "Next"},
	}
	report := p.Deliver(context.Background(), 42, items)

	assert.Equal(t, 2, report.Attempted)
	assert.Equal(t, 1, report.Delivered)
	assert.Equal(t, 1, report.Fallbacks)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, "text:✅ *Next*", rec.events[len(rec.events)-1])
}

func TestDeliver_Empty(t *testing.T) {
	p, rec := newTestPipeline(t)

	report := p.Deliver(context.Background(), 42, nil)

	assert.True(t, report.Empty)
	assert.Zero(t, report.Attempted)
	assert.Equal(t, []string{"text:" + DefaultEmptyNotice}, rec.events)
}

func TestDeliverWithNotice_Empty(t *testing.T) {
	p, rec := newTestPipeline(t)

	p.DeliverWithNotice(context.Background(), 42, []catalog.Product{}, "📭 No items found in Drinks")

	require.Len(t, rec.sent, 1)
	assert.Equal(t, "📭 No items found in Drinks", rec.sent[0].Text)
	assert.False(t, rec.sent[0].Markdown)
}

func TestDeliver_CancelledStopsBetweenItems(t *testing.T) {
	rec := &recorder{}
	ctx, cancel := context.WithCancel(context.Background())

	pacer := ratelimit.NewPacer(time.Second)
	pacer.SetSleep(func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	})
	p := New(rec, pacer)

	report := p.Deliver(ctx, 42, products("A", "B", "C"))

	assert.True(t, report.Cancelled)
	assert.Equal(t, 1, report.Attempted)
	assert.Equal(t, []string{"text:✅ *A*"}, rec.events)
}

func TestSend_InOrderWithoutPacing(t *testing.T) {
	p, rec := newTestPipeline(t)

	keyboard := Keyboard{{"📂 Drinks"}, {"🍽️ All Items"}}
	report := p.Send(context.Background(), 42,
		Markdown("🏪 *YSG*"),
		Photo("https://img.example/broken.jpg", "logo"),
		Text("pick one").WithKeyboard(keyboard),
	)

	assert.Equal(t, []string{
		"text:🏪 *YSG*",
		"photo-fail:logo",
		"text:logo",
		"text:pick one",
	}, rec.events)
	assert.Equal(t, 3, report.Attempted)
	assert.Equal(t, 3, report.Delivered)
	assert.Equal(t, 1, report.Fallbacks)
	assert.Equal(t, keyboard, rec.sent[2].Keyboard)
}

func TestPause_BetweenListings(t *testing.T) {
	p, rec := newTestPipeline(t)
	ctx := context.Background()

	p.Deliver(ctx, 42, products("Tea"))
	require.NoError(t, p.Pause(ctx))
	p.Deliver(ctx, 42, products("Burger"))

	assert.Equal(t, []string{
		"text:✅ *Tea*",
		"pause:1s",
		"text:✅ *Burger*",
	}, rec.events)
}

func TestSenderFunc(t *testing.T) {
	var got Message
	s := SenderFunc(func(_ context.Context, chatID int64, msg Message) error {
		assert.Equal(t, int64(7), chatID)
		got = msg
		return nil
	})

	require.NoError(t, s.Send(context.Background(), 7, Text("hi")))
	assert.Equal(t, "hi", got.Text)
}
