// Package server runs the ops HTTP endpoints: status page, health,
// Prometheus metrics and, in webhook mode, the Bot API webhook.
package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"html/template"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/menu-bot/pkg/cache"
	"github.com/Sternrassler/menu-bot/pkg/logging"
	"github.com/Sternrassler/menu-bot/pkg/metrics"
)

const shutdownTimeout = 10 * time.Second

// CacheStatus reports the catalog cache state.
type CacheStatus interface {
	Status() cache.Status
}

// Options configures the router.
type Options struct {
	// Cache is reported on /health. Optional.
	Cache CacheStatus

	// ActiveChats reports the number of chats being served. Optional.
	ActiveChats func() int

	// Webhook receives Bot API updates on POST /webhook/{secret}. Optional.
	Webhook http.Handler

	// WebhookSecret is the path segment the webhook route requires.
	WebhookSecret string

	// StoreSlug and Version are shown on the status page and /health.
	StoreSlug string
	Version   string

	// Now is the clock for /health timestamps. Defaults to time.Now.
	Now func() time.Time
}

// HealthResponse is the /health payload.
type HealthResponse struct {
	Status      string       `json:"status"`
	Platform    string       `json:"platform"`
	Timestamp   string       `json:"timestamp"`
	Version     string       `json:"version,omitempty"`
	Store       string       `json:"store,omitempty"`
	ActiveChats *int         `json:"active_chats,omitempty"`
	Cache       *CacheHealth `json:"cache,omitempty"`
}

// CacheHealth is the cache part of the /health payload.
type CacheHealth struct {
	Populated  bool    `json:"populated"`
	Fresh      bool    `json:"fresh"`
	FetchedAt  string  `json:"fetched_at,omitempty"`
	AgeSeconds float64 `json:"age_seconds"`
	Generation uint64  `json:"generation"`
}

var statusPage = template.Must(template.New("status").Parse(`<!DOCTYPE html>
<html>
<head>
  <title>Menu Bot</title>
  <style>
    body { font-family: Arial, sans-serif; margin: 40px; text-align: center; }
    .status { color: #22c55e; font-size: 24px; margin: 20px 0; }
  </style>
</head>
<body>
  <h1>🍽️ {{if .Store}}{{.Store}} {{end}}Menu Bot</h1>
  <div class="status">✅ Bot is running</div>
  <p>Go to Telegram and send <code>/start</code> to test the bot.</p>
  {{if .Version}}<p><small>{{.Version}}</small></p>{{end}}
</body>
</html>
`))

// NewRouter builds the ops router.
func NewRouter(opts Options) http.Handler {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	logger := logging.NewLogger(logging.ComponentServer)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(logger))

	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		data := struct{ Store, Version string }{opts.StoreSlug, opts.Version}
		if err := statusPage.Execute(w, data); err != nil {
			logger.Error().Err(err).Msg("Failed to render status page")
		}
	})

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		resp := HealthResponse{
			Status:    "healthy",
			Platform:  "go",
			Timestamp: opts.Now().UTC().Format(time.RFC3339),
			Version:   opts.Version,
			Store:     opts.StoreSlug,
		}
		if opts.ActiveChats != nil {
			n := opts.ActiveChats()
			resp.ActiveChats = &n
		}
		if opts.Cache != nil {
			resp.Cache = cacheHealth(opts.Cache.Status())
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			logger.Error().Err(err).Msg("Failed to encode health response")
		}
	})

	r.Handle("/metrics", metrics.Handler())

	if opts.Webhook != nil {
		r.Post("/webhook/{secret}", func(w http.ResponseWriter, req *http.Request) {
			secret := chi.URLParam(req, "secret")
			if subtle.ConstantTimeCompare([]byte(secret), []byte(opts.WebhookSecret)) != 1 {
				logger.Warn().Str("remote", req.RemoteAddr).Msg("Webhook call with wrong secret")
				http.NotFound(w, req)
				return
			}
			opts.Webhook.ServeHTTP(w, req)
		})
	}

	return r
}

func cacheHealth(s cache.Status) *CacheHealth {
	h := &CacheHealth{
		Populated:  s.Populated,
		Fresh:      s.Fresh,
		AgeSeconds: s.Age.Seconds(),
		Generation: s.Generation,
	}
	if !s.FetchedAt.IsZero() {
		h.FetchedAt = s.FetchedAt.UTC().Format(time.RFC3339)
	}
	return h
}

func requestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("duration", time.Since(start)).
				Msg("HTTP request")
		})
	}
}

// Server is the ops HTTP server.
type Server struct {
	http   *http.Server
	logger zerolog.Logger
}

// New creates a server for handler on addr.
func New(addr string, handler http.Handler) *Server {
	return &Server{
		http: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logging.NewLogger(logging.ComponentServer),
	}
}

// Run serves until ctx ends, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", ln.Addr().String()).Msg("Ops server listening")
		errCh <- s.http.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.logger.Info().Msg("Ops server stopped")
	return nil
}
