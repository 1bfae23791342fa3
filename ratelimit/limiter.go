package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrRateLimited is returned by Allow when the client exceeded its ceiling for the current window.
var ErrRateLimited = errors.New("rate limited")

/* CounterStore keeps the per-client hit counters
 * It is a separate collaborator from the mapping store and may live in another backend
 */
type CounterStore interface {
	/* Increment adds one hit to key and returns the hit count of the current window
	 * and the time left until that window closes. The first hit opens the window.
	 */
	Increment(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
}

// ClientCounter is implemented by counter stores that can report how many clients hold a live window
type ClientCounter interface {
	ActiveClients(ctx context.Context, prefix string) (int64, error)
}

// Result describes the limiter decision for one request
type Result struct {
	Limit     int
	Remaining int
	ResetAt   time.Time
	Allowed   bool
}

// Limiter is a fixed-window limiter keyed by client identity
type Limiter struct {
	policy Policy
	store  CounterStore
	now    func() time.Time
}

// New creates a limiter enforcing policy with counters kept in store
func New(policy Policy, store CounterStore) *Limiter {
	return &Limiter{
		policy: policy,
		store:  store,
		now:    time.Now,
	}
}

// Policy returns the policy the limiter enforces
func (l *Limiter) Policy() Policy {
	return l.policy
}

// Name returns the policy name
func (l *Limiter) Name() string {
	return l.policy.Name
}

// Prefix is the counter key prefix shared by all clients of this limiter
func (l *Limiter) Prefix() string {
	return l.policy.Name + ":"
}

/* Allow counts one hit for client
 * Returns ErrRateLimited once the ceiling is exceeded. Any other error comes from the
 * counter store; the returned Result then allows the request.
 */
func (l *Limiter) Allow(ctx context.Context, client string) (Result, error) {
	if client == "" {
		client = "unknown"
	}

	count, resetIn, err := l.store.Increment(ctx, l.Prefix()+client, l.policy.Window)
	if err != nil {
		return Result{
			Limit:     l.policy.Limit,
			Remaining: l.policy.Limit,
			ResetAt:   l.now().Add(l.policy.Window),
			Allowed:   true,
		}, fmt.Errorf("incrementing counter: %w", err)
	}

	remaining := l.policy.Limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	res := Result{
		Limit:     l.policy.Limit,
		Remaining: remaining,
		ResetAt:   l.now().Add(resetIn),
		Allowed:   count <= int64(l.policy.Limit),
	}
	if !res.Allowed {
		return res, ErrRateLimited
	}
	return res, nil
}

// ActiveClients reports how many clients currently hold a window, when the store supports it
func (l *Limiter) ActiveClients(ctx context.Context) (int64, error) {
	cc, ok := l.store.(ClientCounter)
	if !ok {
		return 0, fmt.Errorf("counter store %T cannot count clients", l.store)
	}
	return cc.ActiveClients(ctx, l.Prefix())
}
