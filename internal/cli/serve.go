package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Sternrassler/menu-bot/internal/config"
	"github.com/Sternrassler/menu-bot/internal/server"
	"github.com/Sternrassler/menu-bot/internal/telegram"
	"github.com/Sternrassler/menu-bot/internal/telemetry"
	"github.com/Sternrassler/menu-bot/pkg/delivery"
	"github.com/Sternrassler/menu-bot/pkg/dispatch"
	"github.com/Sternrassler/menu-bot/pkg/logging"
	"github.com/Sternrassler/menu-bot/pkg/navigation"
	"github.com/Sternrassler/menu-bot/pkg/ratelimit"
)

const drainTimeout = 30 * time.Second

// NewServeCommand creates the serve command.
func NewServeCommand(opts *RootOptions) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the bot and the ops HTTP server",
		Long: `Run the Telegram bot.

Updates arrive by long polling (BOT_MODE=polling, the default) or through
POST /webhook/<WEBHOOK_SECRET> on the ops server (BOT_MODE=webhook).
The ops server also serves /, /health and /metrics.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := opts.Config
			if cmd.Flags().Changed("port") {
				cfg.Port = port
			}
			return runServe(cmd.Context(), cfg, opts.Version)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 3000, "ops server port (overrides PORT)")
	return cmd
}

func runServe(ctx context.Context, cfg config.Config, version string) error {
	if err := cfg.ValidateBot(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	logger := logging.NewLogger("serve")

	shutdownTracing, err := telemetry.Setup(ctx, cfg.OTelEndpoint, version)
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn().Err(err).Msg("Failed to flush traces")
		}
	}()

	catalogCache, err := newCatalogCache(cfg)
	if err != nil {
		return err
	}

	bot, err := telegram.New(telegram.Config{Token: cfg.BotToken})
	if err != nil {
		return err
	}

	tracker := ratelimit.NewTracker(cfg.SendRate, ratelimit.DefaultSendBurst, logging.NewLogger(logging.ComponentTelegram))
	pipeline := delivery.New(telegram.NewSender(bot, tracker), ratelimit.NewPacer(cfg.DeliveryDelay))
	responder := navigation.NewResponder(navigation.NewController(catalogCache), pipeline)
	dispatcher := dispatch.New(responder, dispatch.DefaultConfig())

	routerOpts := server.Options{
		Cache:       catalogCache,
		ActiveChats: dispatcher.ActiveChats,
		StoreSlug:   cfg.StoreSlug,
		Version:     version,
	}
	if cfg.BotMode == config.ModeWebhook {
		routerOpts.Webhook = bot.WebhookHandler(dispatcher)
		routerOpts.WebhookSecret = cfg.WebhookSecret
	}

	logger.Info().
		Str("version", version).
		Str("mode", cfg.BotMode).
		Str("store_slug", cfg.StoreSlug).
		Str("api_base_url", cfg.APIBaseURL).
		Dur("cache_ttl", cfg.CacheTTL).
		Dur("delivery_delay", cfg.DeliveryDelay).
		Str("bot", bot.Username()).
		Msg("Starting menu bot")

	// Warm the cache so the first /start is fast. Failure is not fatal.
	go func() {
		if _, err := catalogCache.Catalog(ctx); err != nil {
			logger.Warn().Err(err).Msg("Initial catalog fetch failed")
		}
	}()

	if cfg.BotMode == config.ModeWebhook {
		if err := bot.SetWebhook(cfg.WebhookEndpoint()); err != nil {
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.New(cfg.Addr(), server.NewRouter(routerOpts)).Run(gctx)
	})
	if cfg.BotMode != config.ModeWebhook {
		g.Go(func() error {
			return bot.Poll(gctx, dispatcher, cfg.PollTimeout)
		})
	}

	runErr := g.Wait()

	drainCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	if err := dispatcher.Close(drainCtx); err != nil {
		logger.Warn().Err(err).Msg("Pending actions cancelled at shutdown")
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	logger.Info().Msg("Menu bot stopped")
	return nil
}
