// Package dispatch runs user actions one chat at a time.
//
// Every chat with pending work gets its own worker goroutine that handles
// that chat's actions in arrival order. Different chats run concurrently.
// Workers exit after an idle period and are recreated on demand.
package dispatch

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/menu-bot/pkg/logging"
	"github.com/Sternrassler/menu-bot/pkg/navigation"
)

var (
	// ErrClosed is returned by Submit after Close.
	ErrClosed = errors.New("dispatcher closed")

	// ErrQueueFull is returned by Submit when a chat has too many pending actions.
	ErrQueueFull = errors.New("chat queue full")
)

var (
	activeWorkers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "menubot_dispatch_active_workers",
		Help: "Number of chats with a running worker",
	})

	actionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "menubot_dispatch_actions_total",
		Help: "Total number of submitted actions by result",
	}, []string{"result"}) // "handled", "dropped", "panicked"

	actionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "menubot_dispatch_action_duration_seconds",
		Help:    "Time from dequeue to completion of one action",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
	})
)

// Handler processes one action.
type Handler interface {
	Respond(ctx context.Context, a navigation.UserAction)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, a navigation.UserAction)

// Respond calls f.
func (f HandlerFunc) Respond(ctx context.Context, a navigation.UserAction) {
	f(ctx, a)
}

// Config holds dispatcher configuration.
type Config struct {
	// QueueSize is the number of pending actions one chat may have.
	QueueSize int

	// IdleTimeout is how long a worker waits for more work before exiting.
	IdleTimeout time.Duration

	// ActionTimeout bounds a single action.
	ActionTimeout time.Duration
}

// DefaultConfig returns the default dispatcher configuration.
func DefaultConfig() Config {
	return Config{
		QueueSize:     16,
		IdleTimeout:   5 * time.Minute,
		ActionTimeout: 5 * time.Minute,
	}
}

type worker struct {
	queue chan navigation.UserAction
}

// Dispatcher serialises actions per chat.
type Dispatcher struct {
	handler Handler
	config  Config
	logger  zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	workers map[int64]*worker
	closed  bool
}

// New creates a dispatcher.
func New(handler Handler, cfg Config) *Dispatcher {
	if handler == nil {
		panic("dispatch handler cannot be nil")
	}
	defaults := DefaultConfig()
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaults.QueueSize
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = defaults.IdleTimeout
	}
	if cfg.ActionTimeout <= 0 {
		cfg.ActionTimeout = defaults.ActionTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		handler: handler,
		config:  cfg,
		logger:  logging.NewLogger(logging.ComponentDispatch),
		ctx:     ctx,
		cancel:  cancel,
		workers: make(map[int64]*worker),
	}
}

// Submit queues a for its chat. It never blocks.
func (d *Dispatcher) Submit(a navigation.UserAction) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return ErrClosed
	}

	w, ok := d.workers[a.ChatID]
	if !ok {
		w = &worker{queue: make(chan navigation.UserAction, d.config.QueueSize)}
		d.workers[a.ChatID] = w
		d.wg.Add(1)
		activeWorkers.Inc()
		go d.run(a.ChatID, w)
	}

	select {
	case w.queue <- a:
		return nil
	default:
		actionsTotal.WithLabelValues("dropped").Inc()
		d.logger.Warn().
			Int64("chat_id", a.ChatID).
			Str("action", a.Kind.String()).
			Int("queue_size", d.config.QueueSize).
			Msg("Chat queue full - dropping action")
		return ErrQueueFull
	}
}

// ActiveChats returns the number of chats with a running worker.
func (d *Dispatcher) ActiveChats() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.workers)
}

// Close stops accepting actions, lets workers finish what is queued and
// waits for them. If ctx ends first, running actions are cancelled and
// ctx.Err() is returned.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		for _, w := range d.workers {
			close(w.queue)
		}
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.cancel()
		return nil
	case <-ctx.Done():
		d.cancel()
		<-done
		return ctx.Err()
	}
}

func (d *Dispatcher) run(chatID int64, w *worker) {
	defer d.wg.Done()
	defer activeWorkers.Dec()

	logger := d.logger.With().Int64("chat_id", chatID).Logger()
	logger.Debug().Msg("Chat worker started")

	idle := time.NewTimer(d.config.IdleTimeout)
	defer idle.Stop()

	for {
		select {
		case a, ok := <-w.queue:
			if !ok {
				logger.Debug().Msg("Chat worker stopped")
				return
			}
			d.handle(a, logger)
			resetTimer(idle, d.config.IdleTimeout)

		case <-idle.C:
			d.mu.Lock()
			if len(w.queue) == 0 && !d.closed {
				delete(d.workers, chatID)
				d.mu.Unlock()
				logger.Debug().Msg("Chat worker idle - exiting")
				return
			}
			d.mu.Unlock()
			idle.Reset(d.config.IdleTimeout)
		}
	}
}

func (d *Dispatcher) handle(a navigation.UserAction, logger zerolog.Logger) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(d.ctx, d.config.ActionTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			actionsTotal.WithLabelValues("panicked").Inc()
			logger.Error().
				Interface("panic", r).
				Str("action", a.Kind.String()).
				Msg("Action handler panicked")
		}
	}()

	d.handler.Respond(ctx, a)

	actionsTotal.WithLabelValues("handled").Inc()
	actionDuration.Observe(time.Since(start).Seconds())
	logger.Debug().
		Str("action", a.Kind.String()).
		Dur("duration", time.Since(start)).
		Msg("Action handled")
}

func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}
