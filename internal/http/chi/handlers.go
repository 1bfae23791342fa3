package chi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httplog"
	"github.com/marcelsud/webhook-proxy/metrics"
	"github.com/marcelsud/webhook-proxy/proxy"
	"github.com/marcelsud/webhook-proxy/ratelimit"
	"github.com/marcelsud/webhook-proxy/web"
	"github.com/rs/zerolog"
)

// DefaultMaxPayloadBytes caps a forwarded body when Options leaves it unset
const DefaultMaxPayloadBytes int64 = 100 * 1024

// Options carries the optional collaborators of the router
type Options struct {
	// Logger defaults to a JSON httplog logger
	Logger *zerolog.Logger

	// Recorder receives request outcomes; defaults to metrics.Nop
	Recorder metrics.Recorder

	// MetricsHandler is mounted on GET /metrics when set
	MetricsHandler http.Handler

	// CreateLimiter and ProxyLimiter guard their endpoint when set
	CreateLimiter *ratelimit.Limiter
	ProxyLimiter  *ratelimit.Limiter

	// TrustProxyHops is how many proxies in front of the server append to X-Forwarded-For;
	// 0 keys the limiters on the peer address
	TrustProxyHops int

	// PublicBaseURL overrides the scheme://host derived from the request
	PublicBaseURL string

	MaxPayloadBytes int64
}

// NewLogger creates the service logger, level parsed from LOG_LEVEL
func NewLogger(level string) zerolog.Logger {
	return httplog.NewLogger("webhook-proxy", httplog.Options{
		JSON:     true,
		LogLevel: level,
	})
}

// Handlers sets up the proxy API routes and the static front-end
func Handlers(ctx context.Context, proxyService proxy.UseCase, opts Options) *chi.Mux {
	logger := opts.Logger
	if logger == nil {
		l := NewLogger("info")
		logger = &l
	}
	if opts.Recorder == nil {
		opts.Recorder = metrics.Nop{}
	}
	if opts.MaxPayloadBytes <= 0 {
		opts.MaxPayloadBytes = DefaultMaxPayloadBytes
	}

	r := chi.NewRouter()
	r.Use(httplog.RequestLogger(*logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	})

	if opts.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", opts.MetricsHandler)
	}

	r.Route("/api", func(r chi.Router) {
		r.With(limit(opts.CreateLimiter, opts.TrustProxyHops, *logger, opts.Recorder)...).
			Post("/create", postCreate(proxyService, opts).ServeHTTP)

		r.Group(func(r chi.Router) {
			r.Use(limit(opts.ProxyLimiter, opts.TrustProxyHops, *logger, opts.Recorder)...)
			forward := postProxy(proxyService, opts).ServeHTTP
			r.Post("/proxy/{id}", forward)
			// no id at all still answers with a JSON 400
			r.Post("/proxy/", forward)
			r.Post("/proxy", forward)
		})
	})

	r.Method(http.MethodGet, "/*", web.Handler())

	return r
}

func limit(l *ratelimit.Limiter, trustedHops int, logger zerolog.Logger, rec metrics.Recorder) []func(http.Handler) http.Handler {
	if l == nil {
		return nil
	}
	return []func(http.Handler) http.Handler{
		ratelimit.Middleware(l, trustedHops, logger, rec.RecordRateLimited),
	}
}
