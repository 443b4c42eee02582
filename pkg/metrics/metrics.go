// Package metrics exposes the bot's Prometheus metrics.
// All metrics are defined in their respective packages (client, cache,
// ratelimit, delivery, navigation, dispatch, telegram) to keep them next to
// the code they measure and avoid circular dependencies.
//
// This package provides the HTTP handler and a reference for all metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the registerer all metrics use.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Gatherer is the source Handler serves from.
var Gatherer = prometheus.DefaultGatherer

// Handler serves the metrics in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{
		ErrorHandling: promhttp.ContinueOnError,
	})
}

// Metrics Documentation
//
// Upstream Metrics (pkg/client):
//   - menubot_upstream_requests_total{endpoint, status} (Counter): Attempts by endpoint and HTTP status
//   - menubot_upstream_fetch_duration_seconds{endpoint} (Histogram): Logical fetch duration including retries
//   - menubot_upstream_errors_total{class} (Counter): Errors by class (client, server, rate_limit, network)
//   - menubot_upstream_retries_total{error_class} (Counter): Retry attempts by error class
//   - menubot_upstream_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - menubot_upstream_retry_exhausted_total{error_class} (Counter): Fetches that used up all attempts
//
// Catalog Cache Metrics (pkg/cache):
//   - menubot_catalog_cache_hits_total (Counter): Reads served from a fresh entry
//   - menubot_catalog_cache_misses_total (Counter): Reads that needed a refresh
//   - menubot_catalog_refreshes_total{result} (Counter): Refreshes by result (stored, partial, discarded)
//   - menubot_catalog_shared_refreshes_total (Counter): Reads that joined an in-flight refresh
//   - menubot_catalog_invalidations_total (Counter): Explicit invalidations
//
// Outbound Rate Metrics (pkg/ratelimit):
//   - menubot_send_blocked_seconds (Gauge): Pause requested by the last retry-after hint
//   - menubot_send_blocks_total (Counter): Retry-after hints received
//   - menubot_send_throttles_total (Counter): Sends delayed by the bot-wide limiter
//   - menubot_pacing_wait_seconds_total (Counter): Time spent between listing items
//
// Delivery Metrics (pkg/delivery):
//   - menubot_delivery_items_total{result} (Counter): Listing items by result (delivered, fallback, failed)
//   - menubot_delivery_duration_seconds (Histogram): Duration of a complete listing
//
// Conversation Metrics (pkg/navigation, pkg/dispatch):
//   - menubot_navigation_actions_total{kind, outcome} (Counter): Handled actions by kind and outcome
//   - menubot_dispatch_active_workers (Gauge): Chats with a running worker
//   - menubot_dispatch_actions_total{result} (Counter): Submitted actions by result
//   - menubot_dispatch_action_duration_seconds (Histogram): Time to handle one action
//
// Telegram Metrics (internal/telegram):
//   - menubot_telegram_updates_total{source, result} (Counter): Received updates
//   - menubot_telegram_messages_total{kind, result} (Counter): Bot API send calls
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(menubot_catalog_cache_hits_total[5m])) /
//   (sum(rate(menubot_catalog_cache_hits_total[5m])) + sum(rate(menubot_catalog_cache_misses_total[5m])))
//
//   # Upstream Rate Limiting
//   rate(menubot_upstream_errors_total{class="rate_limit"}[5m])
//
//   # Photo Fallback Rate
//   rate(menubot_delivery_items_total{result="fallback"}[5m]) /
//   rate(menubot_delivery_items_total[5m])
//
//   # P95 Fetch Latency
//   histogram_quantile(0.95, rate(menubot_upstream_fetch_duration_seconds_bucket[5m]))
