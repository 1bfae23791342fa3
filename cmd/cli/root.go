package main

import (
	"context"
	"fmt"
	"os"

	"github.com/marcelsud/webhook-proxy/config"
	"github.com/marcelsud/webhook-proxy/internal/backend"
	"github.com/marcelsud/webhook-proxy/proxy"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "webhook-proxy",
	Short: "Operator CLI for the Discord webhook proxy",
	Long: `webhook-proxy talks to the same mapping store as the API server.

The store is chosen the same way the server chooses it (APP_ENV, STORE_BACKEND,
REDIS_URL, POSTGRES_DSN, LOCAL_DB_PATH), read from .env or the environment.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log store access to stderr")
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// session is what every subcommand needs: the open backends and a service on top of them
type session struct {
	cfg      *config.Config
	backends *backend.Backends
	service  *proxy.Service
}

func openSession(ctx context.Context) (*session, error) {
	cfg, err := config.GetConfig()
	if err != nil {
		return nil, err
	}
	backends, err := backend.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	level := zerolog.WarnLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()

	return &session{
		cfg:      cfg,
		backends: backends,
		service:  proxy.NewService(backends.Store, proxy.NewHTTPRelayer(cfg.RelayTimeout), logger),
	}, nil
}

func (s *session) Close(ctx context.Context) {
	if err := s.backends.Close(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "closing backends: %v\n", err)
	}
}
