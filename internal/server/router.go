package server

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"careplus/internal/auth"
	"careplus/internal/logger"
	"careplus/internal/metrics"
	"careplus/internal/utils"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouteRegistrar is implemented by every API handler.
type RouteRegistrar interface {
	RegisterRoutes(r chi.Router, gates auth.Gates)
}

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type Options struct {
	Gates          auth.Gates
	Handlers       []RouteRegistrar
	Health         Pinger
	Metrics        *metrics.Metrics
	Gatherer       prometheus.Gatherer
	AllowedOrigins []string
	Logger         *logger.Logger
}

// NewRouter builds the HTTP surface: /api for the handlers plus /healthz and
// /metrics.
func NewRouter(opts Options) chi.Router {
	if opts.Logger == nil {
		opts.Logger = logger.Discard()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(RequestLogger(opts.Logger, opts.Metrics))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", healthHandler(opts.Health))
	if opts.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		for _, h := range opts.Handlers {
			h.RegisterRoutes(r, opts.Gates)
		}
	})
	return r
}

func healthHandler(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := db.PingContext(ctx); err != nil {
				utils.WriteError(w, http.StatusServiceUnavailable, "Database unavailable")
				return
			}
		}
		utils.WriteSuccess(w, http.StatusOK, "ok", nil)
	}
}

// RequestLogger logs every request and records it under its route pattern.
// Streaming routes report once the client disconnects.
func RequestLogger(log *logger.Logger, m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			elapsed := time.Since(start)

			route := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if pattern := rctx.RoutePattern(); pattern != "" {
					route = pattern
				}
			}

			log.LogAPI(r.Method, r.URL.Path, strconv.Itoa(status), elapsed.String())
			m.ObserveHTTP(r.Method, route, strconv.Itoa(status), elapsed.Seconds())
		})
	}
}
