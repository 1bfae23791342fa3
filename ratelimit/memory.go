package ratelimit

import (
	"context"
	"strings"
	"sync"
	"time"
)

const sweepInterval = time.Minute

type window struct {
	count   int64
	resetAt time.Time
}

// MemoryStore keeps counters in process, for single-instance deployments
type MemoryStore struct {
	mu        sync.Mutex
	windows   map[string]*window
	lastSweep time.Time
	now       func() time.Time
}

// NewMemoryStore creates an empty in-process counter store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		windows: make(map[string]*window),
		now:     time.Now,
	}
}

// Increment counts a hit for key, opening a new window when the previous one has closed
func (s *MemoryStore) Increment(_ context.Context, key string, d time.Duration) (int64, time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.sweep(now)

	w, ok := s.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = &window{resetAt: now.Add(d)}
		s.windows[key] = w
	}
	w.count++

	return w.count, w.resetAt.Sub(now), nil
}

// ActiveClients counts open windows whose key starts with prefix
func (s *MemoryStore) ActiveClients(_ context.Context, prefix string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var n int64
	for k, w := range s.windows {
		if strings.HasPrefix(k, prefix) && now.Before(w.resetAt) {
			n++
		}
	}
	return n, nil
}

// sweep drops closed windows, at most once per sweepInterval
func (s *MemoryStore) sweep(now time.Time) {
	if now.Sub(s.lastSweep) < sweepInterval {
		return
	}
	for k, w := range s.windows {
		if !now.Before(w.resetAt) {
			delete(s.windows, k)
		}
	}
	s.lastSweep = now
}
