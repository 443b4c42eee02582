package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sternrassler/menu-bot/pkg/catalog"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type stubLoader struct {
	calls atomic.Int32

	mu   sync.Mutex
	snap catalog.Snapshot
	err  error

	// gate, when set, blocks Load until closed.
	gate    chan struct{}
	started chan struct{}
}

func newStubLoader() *stubLoader {
	return &stubLoader{
		snap: catalog.Snapshot{
			Store:      &catalog.Store{ID: "s1", Name: "YSG"},
			Categories: []catalog.Category{{ID: "c1", Name: "Drinks"}},
			Products:   []catalog.Product{{ID: "p1", Title: "Tea", CategoryID: "c1"}},
		},
	}
}

func (l *stubLoader) set(snap catalog.Snapshot, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.snap, l.err = snap, err
}

func (l *stubLoader) Load(ctx context.Context) (catalog.Snapshot, error) {
	l.calls.Add(1)
	if l.started != nil {
		select {
		case l.started <- struct{}{}:
		default:
		}
	}
	if l.gate != nil {
		<-l.gate
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snap, l.err
}

func newTestCache(t *testing.T, loader Loader) (*Cache, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	c := New(loader, DefaultConfig("ysg"))
	c.SetClock(clock.Now)
	return c, clock
}

func TestNew_NilLoaderPanics(t *testing.T) {
	assert.Panics(t, func() { New(nil, DefaultConfig("ysg")) })
}

func TestNew_Defaults(t *testing.T) {
	c := New(newStubLoader(), Config{Slug: "ysg"})
	assert.Equal(t, 60*time.Second, c.TTL())
}

func TestCatalog_FreshServedFromCache(t *testing.T) {
	loader := newStubLoader()
	c, clock := newTestCache(t, loader)
	ctx := context.Background()

	first, err := c.Catalog(ctx)
	require.NoError(t, err)

	clock.Advance(59 * time.Second)
	second, err := c.Catalog(ctx)
	require.NoError(t, err)

	assert.Equal(t, int32(1), loader.calls.Load(), "second read must not fetch")
	assert.Equal(t, first, second)
	assert.Equal(t, clock.Now().Add(-59*time.Second), second.FetchedAt)
}

func TestCatalog_StaleRefetches(t *testing.T) {
	loader := newStubLoader()
	c, clock := newTestCache(t, loader)
	ctx := context.Background()

	_, err := c.Catalog(ctx)
	require.NoError(t, err)

	clock.Advance(61 * time.Second)
	snap, err := c.Catalog(ctx)
	require.NoError(t, err)

	assert.Equal(t, int32(2), loader.calls.Load())
	assert.Equal(t, clock.Now(), snap.FetchedAt)
}

func TestCatalog_MissingCategoriesStillCached(t *testing.T) {
	loader := newStubLoader()
	loader.set(catalog.Snapshot{
		Store:    &catalog.Store{ID: "s1", Name: "YSG"},
		Products: []catalog.Product{{ID: "p1", Title: "Tea"}},
	}, nil)
	c, _ := newTestCache(t, loader)
	ctx := context.Background()

	snap, err := c.Catalog(ctx)
	require.NoError(t, err)
	assert.Nil(t, snap.Categories)

	_, err = c.Catalog(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(1), loader.calls.Load())
}

func TestCatalog_FailedRefreshLeavesCacheUnchanged(t *testing.T) {
	loader := newStubLoader()
	c, clock := newTestCache(t, loader)
	ctx := context.Background()

	_, err := c.Catalog(ctx)
	require.NoError(t, err)
	before := c.Status()

	clock.Advance(2 * time.Minute)
	partial := catalog.Snapshot{Store: &catalog.Store{ID: "s1", Name: "YSG"}}
	loader.set(partial, errors.Join(catalog.ErrUnavailable, errors.New("products: boom")))

	snap, err := c.Catalog(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, catalog.ErrUnavailable))
	assert.NotNil(t, snap.Store, "partial result is handed back")

	after := c.Status()
	assert.Equal(t, before.FetchedAt, after.FetchedAt)
	assert.Equal(t, before.Generation, after.Generation)
	assert.False(t, after.Fresh)

	// Next read goes to the network again.
	_, _ = c.Catalog(ctx)
	assert.Equal(t, int32(3), loader.calls.Load())
}

func TestCatalog_IncompleteWithoutErrorIsUnavailable(t *testing.T) {
	loader := newStubLoader()
	loader.set(catalog.Snapshot{Products: []catalog.Product{{ID: "p1"}}}, nil)
	c, _ := newTestCache(t, loader)

	_, err := c.Catalog(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, catalog.ErrUnavailable))
	assert.False(t, c.Status().Populated)
}

func TestInvalidate_ForcesRefetch(t *testing.T) {
	loader := newStubLoader()
	c, _ := newTestCache(t, loader)
	ctx := context.Background()

	_, err := c.Catalog(ctx)
	require.NoError(t, err)

	c.Invalidate()
	assert.False(t, c.Status().Populated)

	_, err = c.Catalog(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(2), loader.calls.Load())
}

func TestInvalidate_DuringRefreshDiscardsResult(t *testing.T) {
	loader := newStubLoader()
	loader.gate = make(chan struct{})
	loader.started = make(chan struct{}, 1)
	c, _ := newTestCache(t, loader)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := c.Catalog(ctx)
		done <- err
	}()

	<-loader.started
	c.Invalidate()
	close(loader.gate)
	require.NoError(t, <-done)

	assert.False(t, c.Status().Populated, "result of a superseded refresh is not stored")

	loader.gate = nil
	_, err := c.Catalog(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(2), loader.calls.Load())
}

func TestCatalog_ConcurrentReadersShareOneRefresh(t *testing.T) {
	loader := newStubLoader()
	loader.gate = make(chan struct{})
	loader.started = make(chan struct{}, 1)
	c, _ := newTestCache(t, loader)
	ctx := context.Background()

	const readers = 10
	var wg sync.WaitGroup
	errs := make(chan error, readers)
	for i := 0; i < readers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			snap, err := c.Catalog(ctx)
			if err == nil && !snap.Complete() {
				err = errors.New("incomplete snapshot")
			}
			errs <- err
		}()
	}

	<-loader.started
	time.Sleep(20 * time.Millisecond)
	close(loader.gate)
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, int32(1), loader.calls.Load())
}

func TestCatalog_CallerCancellation(t *testing.T) {
	loader := newStubLoader()
	loader.gate = make(chan struct{})
	loader.started = make(chan struct{}, 1)
	c, _ := newTestCache(t, loader)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := c.Catalog(ctx)
		done <- err
	}()

	<-loader.started
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	// The shared refresh keeps going and stores its result.
	close(loader.gate)
	assert.Eventually(t, func() bool { return c.Status().Populated }, time.Second, 5*time.Millisecond)
}

type countingFetcher struct {
	mu    sync.Mutex
	calls map[string]int
}

func (f *countingFetcher) Fetch(_ context.Context, path string) ([]byte, error) {
	f.mu.Lock()
	f.calls[path]++
	f.mu.Unlock()

	switch path {
	case catalog.StorePath("ysg"):
		return []byte(`{"_id": "s1", "name": "YSG"}`), nil
	case catalog.CategoriesPath("ysg"):
		return []byte(`[{"_id": "c1", "name": "Drinks"}]`), nil
	case catalog.ProductsPath("ysg"):
		return []byte(`[{"_id": "p1", "title": "Tea", "category": "c1"}]`), nil
	}
	return nil, errors.New("unexpected path")
}

func (f *countingFetcher) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func TestCatalog_WithSource(t *testing.T) {
	fetcher := &countingFetcher{calls: map[string]int{}}
	c, clock := newTestCache(t, catalog.NewSource(fetcher, "ysg"))
	ctx := context.Background()

	snap, err := c.Catalog(ctx)
	require.NoError(t, err)
	assert.Equal(t, "YSG", snap.Store.Name)
	assert.Equal(t, 3, fetcher.total(), "one fetch per resource")

	_, err = c.Catalog(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, fetcher.total())

	clock.Advance(time.Minute)
	_, err = c.Catalog(ctx)
	require.NoError(t, err)
	assert.Equal(t, 6, fetcher.total())
}
