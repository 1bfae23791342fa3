package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/marcelsud/webhook-proxy/proxy"
)

/* File-backed implementation of proxy.Store for local development
 * The whole mapping lives in one JSON object; every Set reads the file,
 * changes one key and rewrites it. Fine for a laptop, not for production.
 */

// DefaultPath is where the development database is kept
const DefaultPath = "local-db.json"

// compile-time interface check
var (
	_ proxy.Store   = (*Store)(nil)
	_ proxy.Counter = (*Store)(nil)
)

type Store struct {
	path string
	mu   sync.Mutex
}

// NewStore creates a store persisting to path, creating parent directories if needed
func NewStore(path string) (*Store, error) {
	if path == "" {
		path = DefaultPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o770); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}
	return &Store{path: path}, nil
}

// Path returns the file backing the store
func (s *Store) Path() string {
	return s.path
}

// Get returns the value for key or proxy.ErrNotFound
func (s *Store) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.read()
	if err != nil {
		return "", err
	}
	v, ok := data[key]
	if !ok {
		return "", proxy.ErrNotFound
	}
	return v, nil
}

// Set rewrites the whole file with key set to value
func (s *Store) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.read()
	if err != nil {
		return err
	}
	data[key] = value
	return s.write(data)
}

// CountMappings returns the number of keys under proxy.KeyPrefix
func (s *Store) CountMappings(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.read()
	if err != nil {
		return 0, err
	}
	var n int64
	for k := range data {
		if strings.HasPrefix(k, proxy.KeyPrefix) {
			n++
		}
	}
	return n, nil
}

// Close is a no-op, the file is not kept open between calls
func (s *Store) Close(_ context.Context) error {
	return nil
}

/* read loads the mapping from disk
 * A missing or unparsable file is treated as an empty database
 */
func (s *Store) read() (map[string]string, error) {
	data := make(map[string]string)
	raw, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return data, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading database file: %w", err)
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		return make(map[string]string), nil
	}
	return data, nil
}

// write replaces the file atomically through a temp file and rename
func (s *Store) write(data map[string]string) error {
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling database: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replacing database file: %w", err)
	}
	return nil
}
