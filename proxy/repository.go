package proxy

import "context"

/* Small, focused interfaces
 * The services only need get/set semantics, so that is all a backend has to offer
 */

// Reader provides read access to mapping records
type Reader interface {
	/* Get returns the value stored under key
	 * Returns ErrNotFound when the key does not exist
	 */
	Get(ctx context.Context, key string) (string, error)
}

// Writer provides write access to mapping records
type Writer interface {
	/* Set stores value under key, replacing any previous value
	 * Concurrent writers to the same key: last writer wins
	 */
	Set(ctx context.Context, key, value string) error
}

// Store is the key-value capability injected into the Service
type Store interface {
	Reader
	Writer
	Close(ctx context.Context) error
}

// Counter is implemented by stores that can report how many mappings they hold
type Counter interface {
	CountMappings(ctx context.Context) (int64, error)
}
