//go:build integration

package ratelimit_test

import (
	"context"
	"testing"
	"time"

	"github.com/marcelsud/webhook-proxy/ratelimit"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	testcontainersredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

func setupRedis(t *testing.T, ctx context.Context) *goredis.Client {
	t.Helper()

	container, err := testcontainersredis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err, "failed to start Redis container")
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate Redis container: %v", err)
		}
	})

	url, err := container.ConnectionString(ctx)
	require.NoError(t, err)
	opts, err := goredis.ParseURL(url)
	require.NoError(t, err)

	client := goredis.NewClient(opts)
	t.Cleanup(func() { client.Close() })
	require.NoError(t, client.Ping(ctx).Err())
	return client
}

func TestRedisStore_Integration(t *testing.T) {
	ctx := context.Background()
	client := setupRedis(t, ctx)

	t.Run("shared counter enforces the ceiling across limiter instances", func(t *testing.T) {
		policy := ratelimit.Policy{Name: ratelimit.CreateLimiter, Limit: 20, Window: time.Hour}
		a := ratelimit.New(policy, ratelimit.NewRedisStore(client))
		b := ratelimit.New(policy, ratelimit.NewRedisStore(client))

		for i := 0; i < 20; i++ {
			l := a
			if i%2 == 1 {
				l = b
			}
			_, err := l.Allow(ctx, "198.51.100.1")
			require.NoError(t, err, "request %d", i+1)
		}

		_, err := a.Allow(ctx, "198.51.100.1")
		assert.ErrorIs(t, err, ratelimit.ErrRateLimited)
		_, err = b.Allow(ctx, "198.51.100.1")
		assert.ErrorIs(t, err, ratelimit.ErrRateLimited)
	})

	t.Run("counter key expires with the window", func(t *testing.T) {
		store := ratelimit.NewRedisStore(client)
		count, resetIn, err := store.Increment(ctx, "proxy:198.51.100.2", 15*time.Minute)
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
		assert.InDelta(t, (15 * time.Minute).Seconds(), resetIn.Seconds(), 2)

		ttl, err := client.PTTL(ctx, ratelimit.DefaultRedisPrefix+"proxy:198.51.100.2").Result()
		require.NoError(t, err)
		assert.Greater(t, ttl, 14*time.Minute)
	})

	t.Run("window reopens after expiry", func(t *testing.T) {
		l := ratelimit.New(ratelimit.Policy{Name: ratelimit.ProxyLimiter, Limit: 1, Window: 500 * time.Millisecond}, ratelimit.NewRedisStore(client))

		_, err := l.Allow(ctx, "198.51.100.3")
		require.NoError(t, err)
		_, err = l.Allow(ctx, "198.51.100.3")
		require.ErrorIs(t, err, ratelimit.ErrRateLimited)

		time.Sleep(700 * time.Millisecond)
		_, err = l.Allow(ctx, "198.51.100.3")
		assert.NoError(t, err)
	})

	t.Run("active clients", func(t *testing.T) {
		l := ratelimit.New(ratelimit.Policy{Name: "create", Limit: 5, Window: time.Minute}, ratelimit.NewRedisStore(client))
		require.NoError(t, client.FlushDB(ctx).Err())

		_, _ = l.Allow(ctx, "a")
		_, _ = l.Allow(ctx, "b")
		_, _ = l.Allow(ctx, "b")

		n, err := l.ActiveClients(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)
	})
}
