package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/Sternrassler/menu-bot/pkg/logging"
)

// Fetcher fetches one upstream resource.
type Fetcher interface {
	Fetch(ctx context.Context, path string) ([]byte, error)
}

// Upstream resource paths for a store slug.
func StorePath(slug string) string {
	return "/stores/public/slug/" + url.PathEscape(slug)
}

func CategoriesPath(slug string) string {
	return "/categories/store/slug/" + url.PathEscape(slug)
}

func ProductsPath(slug string) string {
	return "/products/public-store/slug/" + url.PathEscape(slug)
}

// Source loads the catalog of one store.
type Source struct {
	fetcher Fetcher
	slug    string
	logger  zerolog.Logger
}

// NewSource creates a Source for the store identified by slug.
func NewSource(fetcher Fetcher, slug string) *Source {
	return &Source{
		fetcher: fetcher,
		slug:    slug,
		logger:  logging.NewLogger(logging.ComponentSource).With().Str("store_slug", slug).Logger(),
	}
}

// Slug returns the store slug.
func (s *Source) Slug() string {
	return s.slug
}

// Load fetches store, categories and products concurrently. Each fetch
// succeeds or fails on its own. The returned snapshot holds whatever
// arrived; the error wraps ErrUnavailable when the store or the products
// are missing. A categories failure is only logged.
func (s *Source) Load(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	var storeErr, categoriesErr, productsErr error

	var g errgroup.Group
	g.Go(func() error {
		data, err := s.fetcher.Fetch(ctx, StorePath(s.slug))
		if err == nil {
			snap.Store, err = DecodeStore(data)
		}
		storeErr = err
		return nil
	})
	g.Go(func() error {
		data, err := s.fetcher.Fetch(ctx, CategoriesPath(s.slug))
		if err == nil {
			snap.Categories, err = DecodeCategories(data)
		}
		categoriesErr = err
		return nil
	})
	g.Go(func() error {
		data, err := s.fetcher.Fetch(ctx, ProductsPath(s.slug))
		if err == nil {
			snap.Products, err = DecodeProducts(data)
		}
		productsErr = err
		return nil
	})
	_ = g.Wait()

	if categoriesErr != nil {
		snap.Categories = nil
		s.logger.Warn().Err(categoriesErr).Msg("Categories unavailable, falling back to unfiltered browsing")
	}
	if storeErr != nil {
		snap.Store = nil
	}
	if productsErr != nil {
		snap.Products = nil
	}

	if !snap.Complete() {
		return snap, fmt.Errorf("%w: %w", ErrUnavailable, errors.Join(
			wrapResource("store", storeErr),
			wrapResource("products", productsErr),
		))
	}
	return snap, nil
}

func wrapResource(name string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", name, err)
}
