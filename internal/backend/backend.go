// Package backend resolves the mapping store and the rate limit counters from configuration.
package backend

import (
	"context"
	"errors"
	"fmt"

	"github.com/marcelsud/webhook-proxy/config"
	"github.com/marcelsud/webhook-proxy/proxy"
	"github.com/marcelsud/webhook-proxy/proxy/file"
	"github.com/marcelsud/webhook-proxy/proxy/memory"
	"github.com/marcelsud/webhook-proxy/proxy/postgres"
	proxyredis "github.com/marcelsud/webhook-proxy/proxy/redis"
	"github.com/marcelsud/webhook-proxy/ratelimit"
	"github.com/redis/go-redis/v9"
)

// Backends are chosen once at startup and shared by every request
type Backends struct {
	Store    proxy.Store
	Counters ratelimit.CounterStore

	// redis is shared by the store and the counters when both use it
	redis *redis.Client
}

// Open connects the configured backends; cfg must already be validated
func Open(ctx context.Context, cfg *config.Config) (*Backends, error) {
	b := &Backends{}

	if cfg.UsesRedis() {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parsing Redis URL: %w", err)
		}
		b.redis = redis.NewClient(opts)
	}

	store, err := openStore(ctx, cfg, b.redis)
	if err != nil {
		b.closeRedis()
		return nil, err
	}
	b.Store = store

	switch cfg.RateLimitBackend {
	case config.CountersRedis:
		b.Counters = ratelimit.NewRedisStore(b.redis)
	default:
		b.Counters = ratelimit.NewMemoryStore()
	}

	return b, nil
}

func openStore(ctx context.Context, cfg *config.Config, client *redis.Client) (proxy.Store, error) {
	switch cfg.StoreBackend {
	case config.StoreRedis:
		s, err := proxyredis.NewStoreFromClient(client)
		if err != nil {
			return nil, fmt.Errorf("opening redis store: %w", err)
		}
		return s, nil
	case config.StorePostgres:
		s, err := postgres.NewStore(cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("opening postgres store: %w", err)
		}
		if err := s.Migrate(ctx); err != nil {
			s.Close(ctx)
			return nil, fmt.Errorf("migrating postgres store: %w", err)
		}
		return s, nil
	case config.StoreFile:
		s, err := file.NewStore(cfg.LocalDBPath)
		if err != nil {
			return nil, fmt.Errorf("opening file store: %w", err)
		}
		return s, nil
	case config.StoreMemory:
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

// Counter returns the store as a proxy.Counter, or nil when it cannot count
func (b *Backends) Counter() proxy.Counter {
	c, _ := b.Store.(proxy.Counter)
	return c
}

// Close releases the store and the shared Redis connection
func (b *Backends) Close(ctx context.Context) error {
	var errs []error
	if b.Store != nil {
		if _, ok := b.Store.(*proxyredis.Store); !ok {
			errs = append(errs, b.Store.Close(ctx))
		}
	}
	errs = append(errs, b.closeRedis())
	return errors.Join(errs...)
}

func (b *Backends) closeRedis() error {
	if b.redis == nil {
		return nil
	}
	return b.redis.Close()
}
