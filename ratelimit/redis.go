package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix namespaces limiter counters in a shared Redis
const DefaultRedisPrefix = "ratelimit:"

/* incrementScript bumps the counter and opens the window on the first hit
 * Returns {hits, milliseconds until the window closes}
 */
var incrementScript = redis.NewScript(`
local hits = redis.call("INCR", KEYS[1])
local ttl = redis.call("PTTL", KEYS[1])
if ttl <= 0 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
	ttl = tonumber(ARGV[1])
end
return { hits, ttl }
`)

// RedisStore keeps counters in Redis so every process shares the same windows
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a counter store on client; keys are prefixed with DefaultRedisPrefix
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: DefaultRedisPrefix,
	}
}

// Increment runs the increment script atomically on the server
func (s *RedisStore) Increment(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	res, err := incrementScript.Run(ctx, s.client, []string{s.prefix + key}, window.Milliseconds()).Int64Slice()
	if err != nil {
		return 0, 0, fmt.Errorf("running increment script: %w", err)
	}
	if len(res) != 2 {
		return 0, 0, fmt.Errorf("unexpected increment reply: %v", res)
	}
	return res[0], time.Duration(res[1]) * time.Millisecond, nil
}

// ActiveClients scans the counter keys under prefix
func (s *RedisStore) ActiveClients(ctx context.Context, prefix string) (int64, error) {
	var (
		cursor uint64
		n      int64
	)
	for {
		keys, next, err := s.client.Scan(ctx, cursor, s.prefix+prefix+"*", 1000).Result()
		if err != nil {
			return 0, fmt.Errorf("scanning counter keys: %w", err)
		}
		n += int64(len(keys))

		cursor = next
		if cursor == 0 {
			break
		}
	}
	return n, nil
}
