package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/Sternrassler/menu-bot/pkg/catalog"
	"github.com/Sternrassler/menu-bot/pkg/logging"
)

// Loader fetches a catalog snapshot from upstream.
type Loader interface {
	Load(ctx context.Context) (catalog.Snapshot, error)
}

// Config holds cache settings.
type Config struct {
	// Slug names the cached store in refresh keys and logs.
	Slug string

	// TTL is the freshness window, measured from the last successful refresh.
	TTL time.Duration

	// RefreshTimeout bounds a shared refresh. The refresh does not follow
	// the cancellation of the caller that started it.
	RefreshTimeout time.Duration
}

// DefaultConfig returns a one minute freshness window.
func DefaultConfig(slug string) Config {
	return Config{
		Slug:           slug,
		TTL:            60 * time.Second,
		RefreshTimeout: 45 * time.Second,
	}
}

// Status describes the cache for health reporting.
type Status struct {
	Populated  bool
	Fresh      bool
	FetchedAt  time.Time
	Age        time.Duration
	Generation uint64
}

// Cache holds the last complete catalog for a freshness window and makes
// sure concurrent readers of a stale cache trigger a single refresh.
type Cache struct {
	loader Loader
	config Config
	now    func() time.Time
	logger zerolog.Logger
	tracer trace.Tracer

	group singleflight.Group

	mu         sync.RWMutex
	entry      *Entry
	generation uint64
}

// New creates a cache in front of loader.
func New(loader Loader, cfg Config) *Cache {
	if loader == nil {
		panic("catalog loader cannot be nil")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultConfig(cfg.Slug).TTL
	}
	if cfg.RefreshTimeout <= 0 {
		cfg.RefreshTimeout = DefaultConfig(cfg.Slug).RefreshTimeout
	}

	return &Cache{
		loader: loader,
		config: cfg,
		now:    time.Now,
		logger: logging.NewLogger(logging.ComponentCache).With().Str("store_slug", cfg.Slug).Logger(),
		tracer: otel.Tracer("github.com/Sternrassler/menu-bot/pkg/cache"),
	}
}

// SetClock replaces the time source (for testing).
func (c *Cache) SetClock(now func() time.Time) {
	c.now = now
}

// TTL returns the configured freshness window.
func (c *Cache) TTL() time.Duration {
	return c.config.TTL
}

// Catalog returns the cached catalog while it is fresh. Otherwise it joins
// or starts a refresh.
//
// A failed or partial refresh returns whatever arrived together with an
// error wrapping catalog.ErrUnavailable, and leaves the cache untouched so
// the next call goes to the network again.
func (c *Cache) Catalog(ctx context.Context) (catalog.Snapshot, error) {
	c.mu.RLock()
	entry, generation := c.entry, c.generation
	c.mu.RUnlock()

	if entry.IsFresh(c.now(), c.config.TTL) {
		CacheHits.Inc()
		c.logger.Debug().
			Uint64("generation", entry.Generation).
			Dur("ttl", entry.TTL(c.now(), c.config.TTL)).
			Msg("Serving cached catalog")
		return entry.Snapshot, nil
	}
	CacheMisses.Inc()

	key := RefreshKey{Slug: c.config.Slug, Generation: generation}.String()
	ch := c.group.DoChan(key, func() (any, error) {
		return c.refresh(ctx, generation)
	})

	select {
	case <-ctx.Done():
		return catalog.Snapshot{}, ctx.Err()
	case res := <-ch:
		if res.Shared {
			SharedRefreshes.Inc()
		}
		snap, _ := res.Val.(catalog.Snapshot)
		return snap, res.Err
	}
}

// refresh loads the catalog and stores it if it is complete and no
// invalidation happened since generation was observed.
func (c *Cache) refresh(parent context.Context, generation uint64) (catalog.Snapshot, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), c.config.RefreshTimeout)
	defer cancel()

	ctx, span := c.tracer.Start(ctx, "cache.refresh", trace.WithAttributes(
		attribute.String("store.slug", c.config.Slug),
		attribute.Int64("cache.generation", int64(generation)),
	))
	defer span.End()

	// A caller that read the generation just before the previous refresh
	// committed lands here after the fact; serve what that refresh stored.
	c.mu.RLock()
	entry := c.entry
	c.mu.RUnlock()
	if entry.IsFresh(c.now(), c.config.TTL) {
		return entry.Snapshot, nil
	}

	c.logger.Info().Uint64("generation", generation).Msg("Fetching fresh catalog")
	start := c.now()

	snap, err := c.loader.Load(ctx)
	if err == nil && !snap.Complete() {
		err = catalog.ErrUnavailable
	}
	if err != nil {
		CacheRefreshes.WithLabelValues("partial").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "incomplete catalog")
		c.logger.Warn().
			Err(err).
			Bool("store", snap.Store != nil).
			Bool("products", snap.Products != nil).
			Msg("Catalog refresh incomplete, cache left unchanged")
		return snap, fmt.Errorf("refresh catalog: %w", err)
	}

	snap.FetchedAt = c.now()

	c.mu.Lock()
	stored := c.generation == generation
	if stored {
		c.generation++
		c.entry = &Entry{Snapshot: snap, Generation: c.generation}
	}
	c.mu.Unlock()

	if !stored {
		CacheRefreshes.WithLabelValues("discarded").Inc()
		c.logger.Info().
			Uint64("generation", generation).
			Msg("Cache invalidated during refresh, result not stored")
		return snap, nil
	}

	CacheRefreshes.WithLabelValues("stored").Inc()
	c.logger.Info().
		Uint64("generation", generation+1).
		Int("products", len(snap.Products)).
		Int("categories", len(snap.Categories)).
		Bool("categories_available", snap.Categories != nil).
		Dur("duration", snap.FetchedAt.Sub(start)).
		Msg("Catalog cached")

	return snap, nil
}

// Invalidate drops the cached catalog so the next read refetches.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.entry = nil
	c.generation++
	generation := c.generation
	c.mu.Unlock()

	Invalidations.Inc()
	c.logger.Info().Uint64("generation", generation).Msg("Catalog cache invalidated")
}

// Status reports the current cache state.
func (c *Cache) Status() Status {
	c.mu.RLock()
	entry, generation := c.entry, c.generation
	c.mu.RUnlock()

	now := c.now()
	status := Status{Generation: generation}
	if entry != nil {
		status.Populated = true
		status.FetchedAt = entry.Snapshot.FetchedAt
		status.Age = entry.Age(now)
		status.Fresh = entry.IsFresh(now, c.config.TTL)
	}
	return status
}
