package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Prometheus metrics for outbound rate limiting.
var (
	sendBlockedSeconds = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "menubot_send_blocked_seconds",
		Help: "Seconds the platform asked to pause sending at the last retry-after hint",
	})

	sendBlocksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "menubot_send_blocks_total",
		Help: "Total number of retry-after hints received from the chat platform",
	})

	sendThrottlesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "menubot_send_throttles_total",
		Help: "Total number of sends delayed by the bot-wide rate limiter",
	})
)

// Tracker gates outbound sends for the whole bot.
type Tracker struct {
	limiter *rate.Limiter
	logger  zerolog.Logger
	now     func() time.Time
	sleep   func(ctx context.Context, d time.Duration) error

	mu    sync.Mutex
	state State
}

// NewTracker creates a tracker allowing perSecond sends with the given burst.
// A non-positive perSecond disables the rate limit; retry-after hints still apply.
func NewTracker(perSecond float64, burst int, logger zerolog.Logger) *Tracker {
	limit := rate.Limit(perSecond)
	if perSecond <= 0 {
		limit = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}
	return &Tracker{
		limiter: rate.NewLimiter(limit, burst),
		logger:  logger,
		now:     time.Now,
		sleep:   sleepContext,
	}
}

// State returns a copy of the current block state.
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Backoff records a retry-after hint. Later sends wait until it has passed.
// A shorter hint never shortens an existing block.
func (t *Tracker) Backoff(retryAfter time.Duration) {
	if retryAfter <= 0 {
		return
	}

	t.mu.Lock()
	now := t.now()
	until := now.Add(retryAfter)
	if until.After(t.state.BlockedUntil) {
		t.state.BlockedUntil = until
	}
	t.state.LastUpdate = now
	t.state.Blocks++
	state := t.state
	t.mu.Unlock()

	sendBlocksTotal.Inc()
	sendBlockedSeconds.Set(retryAfter.Seconds())

	t.logger.Warn().
		Dur("retry_after", retryAfter).
		Time("blocked_until", state.BlockedUntil).
		Int("blocks", state.Blocks).
		Msg("Chat platform rate limit hit - pausing sends")
}

// Wait blocks until a send is allowed or ctx ends.
func (t *Tracker) Wait(ctx context.Context) error {
	state := t.State()
	if wait := state.TimeUntilReset(t.now()); wait > 0 {
		t.logger.Debug().
			Dur("wait_duration", wait).
			Msg("Send blocked by retry-after hint - waiting")
		if err := t.sleep(ctx, wait); err != nil {
			return err
		}
	}

	if t.limiter.Tokens() < 1 {
		sendThrottlesTotal.Inc()
	}
	return t.limiter.Wait(ctx)
}

// SetSleep replaces the wait function (for testing).
func (t *Tracker) SetSleep(sleep func(ctx context.Context, d time.Duration) error) {
	t.sleep = sleep
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
