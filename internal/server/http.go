package server

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/score-duel/internal/config"
	"github.com/gokatarajesh/score-duel/internal/logging"
)

// PingFunc checks the selected backing store.
type PingFunc func(ctx context.Context) error

// RouteRegistrar mounts a group of routes on the mux.
type RouteRegistrar interface {
	Register(mux *http.ServeMux)
}

// NewHTTPServer wires base routes (health, metrics, ping), the feature route
// groups and the websocket feed. feedHandler may be nil.
func NewHTTPServer(cfg *config.App, logger zerolog.Logger, gatherer prometheus.Gatherer, ping PingFunc, routes []RouteRegistrar, feedHandler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           NewMux(logger, gatherer, ping, routes, feedHandler),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// NewMux builds the request router.
func NewMux(logger zerolog.Logger, gatherer prometheus.Gatherer, ping PingFunc, routes []RouteRegistrar, feedHandler http.Handler) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	mux.HandleFunc("GET /v1/ping", func(w http.ResponseWriter, r *http.Request) {
		reqLogger := logging.FromContext(r.Context())
		if ping != nil {
			if err := ping(r.Context()); err != nil {
				reqLogger.Error().Err(err).Msg("store ping failed")
				http.Error(w, "upstream error", http.StatusBadGateway)
				return
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"pong":true}`))
	})

	for _, r := range routes {
		r.Register(mux)
	}

	if feedHandler != nil {
		mux.Handle("GET /ws/matches", feedHandler)
	} else {
		mux.HandleFunc("GET /ws/matches", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "match feed disabled", http.StatusNotImplemented)
		})
	}

	return withRequestLogger(mux, logger)
}

// withRequestLogger attaches a request-scoped logger and logs each request at debug level.
func withRequestLogger(next http.Handler, logger zerolog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		reqLogger := logger.With().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Logger()
		next.ServeHTTP(w, r.WithContext(logging.IntoContext(r.Context(), reqLogger)))
		reqLogger.Debug().Dur("duration", time.Since(start)).Msg("request served")
	})
}
