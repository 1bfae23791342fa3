package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/marcelsud/webhook-proxy/config"
	"github.com/marcelsud/webhook-proxy/internal/backend"
	"github.com/marcelsud/webhook-proxy/internal/http/chi"
	"github.com/marcelsud/webhook-proxy/metrics"
	"github.com/marcelsud/webhook-proxy/proxy"
	"github.com/marcelsud/webhook-proxy/ratelimit"
	"golang.org/x/sync/errgroup"
)

const TIMEOUT = 30 * time.Second

/* main wires the application: configuration, backends, services and the HTTP server.
 * Imports go in one direction only: the binary imports the business layer,
 * which imports the storage layer.
 */

func main() {
	cfg, err := config.GetConfig()
	if err != nil {
		fmt.Println(err)
		return
	}
	logger := chi.NewLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT,
	)
	defer stop()

	backends, err := backend.Open(ctx, cfg)
	if err != nil {
		logger.Error().Err(err).Msg("opening backends")
		return
	}
	defer backends.Close(context.Background())
	logger.Info().
		Str("app_env", cfg.AppEnv).
		Str("store", cfg.StoreBackend).
		Str("ratelimit", cfg.RateLimitBackend).
		Msg("backends ready")

	limits := ratelimit.NewLoader()
	if cfg.LimitsFile != "" {
		if err := limits.Load(cfg.LimitsFile); err != nil {
			logger.Error().Err(err).Str("file", cfg.LimitsFile).Msg("loading limits")
			return
		}
	}
	createPolicy, _ := limits.Get(ratelimit.CreateLimiter)
	proxyPolicy, _ := limits.Get(ratelimit.ProxyLimiter)
	createLimiter := ratelimit.New(createPolicy, backends.Counters)
	proxyLimiter := ratelimit.New(proxyPolicy, backends.Counters)

	exporter, err := metrics.NewOTelExporter(metrics.NewStoreCollector(backends.Counter(), createLimiter, proxyLimiter))
	if err != nil {
		logger.Error().Err(err).Msg("creating metrics exporter")
		return
	}
	defer exporter.Shutdown(context.Background())

	s := proxy.NewService(backends.Store, proxy.NewHTTPRelayer(cfg.RelayTimeout), logger)
	r := chi.Handlers(ctx, s, chi.Options{
		Logger:          &logger,
		Recorder:        exporter,
		MetricsHandler:  exporter.ServeHTTP(),
		CreateLimiter:   createLimiter,
		ProxyLimiter:    proxyLimiter,
		TrustProxyHops:  cfg.TrustProxyHops,
		PublicBaseURL:   cfg.PublicBaseURL,
		MaxPayloadBytes: cfg.MaxPayloadBytes,
	})
	http.Handle("/", r)
	srv := &http.Server{
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		Addr:         ":" + cfg.Port,
		Handler:      http.DefaultServeMux,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Msgf("Server running at http://localhost:%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listening: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return shutdown(gctx, srv)
	})

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("server stopped")
		return
	}
	fmt.Printf("\nShutting down server...\n")
}

// shutdown waits for ctx and drains the server, giving in-flight relays TIMEOUT to finish
func shutdown(ctx context.Context, server *http.Server) error {
	<-ctx.Done()

	ctxTimeout, stop := context.WithTimeout(context.Background(), TIMEOUT)
	defer stop()

	err := server.Shutdown(ctxTimeout)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("Forcing closing the server")
	default:
		return fmt.Errorf("shutting down: %w", err)
	}
}
