package cli

import (
	"fmt"

	"github.com/Sternrassler/menu-bot/internal/config"
	"github.com/Sternrassler/menu-bot/pkg/cache"
	"github.com/Sternrassler/menu-bot/pkg/catalog"
	"github.com/Sternrassler/menu-bot/pkg/client"
)

// newCatalogCache wires fetcher, source and cache from cfg.
func newCatalogCache(cfg config.Config) (*cache.Cache, error) {
	clientCfg := client.DefaultConfig(cfg.APIBaseURL)
	clientCfg.UserAgent = cfg.UserAgent
	clientCfg.AttemptTimeout = cfg.FetchTimeout
	clientCfg.Retry.MaxAttempts = cfg.FetchAttempts

	fetcher, err := client.New(clientCfg)
	if err != nil {
		return nil, fmt.Errorf("create catalog client: %w", err)
	}

	source := catalog.NewSource(fetcher, cfg.StoreSlug)

	cacheCfg := cache.DefaultConfig(cfg.StoreSlug)
	cacheCfg.TTL = cfg.CacheTTL
	return cache.New(source, cacheCfg), nil
}
