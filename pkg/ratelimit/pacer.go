package ratelimit

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var pacingWaitSeconds = promauto.NewCounter(prometheus.CounterOpts{
	Name: "menubot_pacing_wait_seconds_total",
	Help: "Total time spent waiting between items of a delivery",
})

// Pacer spaces consecutive items of one delivery.
type Pacer struct {
	delay time.Duration
	sleep func(ctx context.Context, d time.Duration) error
}

// NewPacer creates a pacer. The delay is clamped with ClampItemDelay.
func NewPacer(delay time.Duration) *Pacer {
	return &Pacer{
		delay: ClampItemDelay(delay),
		sleep: sleepContext,
	}
}

// Delay returns the effective delay between items.
func (p *Pacer) Delay() time.Duration {
	return p.delay
}

// Pause waits one item delay. Returns ctx.Err() if ctx ends first.
func (p *Pacer) Pause(ctx context.Context) error {
	if err := p.sleep(ctx, p.delay); err != nil {
		return err
	}
	pacingWaitSeconds.Add(p.delay.Seconds())
	return nil
}

// SetSleep replaces the wait function (for testing).
func (p *Pacer) SetSleep(sleep func(ctx context.Context, d time.Duration) error) {
	p.sleep = sleep
}
