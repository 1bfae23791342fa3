// Package memory provides an in-process proxy.Store, used by tests and ephemeral runs.
package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/marcelsud/webhook-proxy/proxy"
)

// compile-time interface check
var (
	_ proxy.Store   = (*Store)(nil)
	_ proxy.Counter = (*Store)(nil)
)

// Store keeps every key in a map guarded by a RWMutex
type Store struct {
	mu   sync.RWMutex
	data map[string]string
}

// New creates an empty in-memory store
func New() *Store {
	return &Store{
		data: make(map[string]string),
	}
}

// Get returns the value for key or proxy.ErrNotFound
func (s *Store) Get(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.data[key]
	if !ok {
		return "", proxy.ErrNotFound
	}
	return v, nil
}

// Set stores value under key
func (s *Store) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[key] = value
	return nil
}

// CountMappings returns the number of keys under proxy.KeyPrefix
func (s *Store) CountMappings(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for k := range s.data {
		if strings.HasPrefix(k, proxy.KeyPrefix) {
			n++
		}
	}
	return n, nil
}

// Close is a no-op for the in-memory store
func (s *Store) Close(_ context.Context) error { return nil }
