package metrics

import (
	"context"
	"time"
)

// Snapshot represents the current state of the proxy.
type Snapshot struct {
	// Mappings is the number of registered proxy identifiers
	Mappings int64 `json:"mappings"`

	// ActiveClients maps limiter name to the number of clients holding an open window
	ActiveClients map[string]int64 `json:"active_clients"`

	// Timestamp when metrics were collected
	Timestamp time.Time `json:"timestamp"`
}

// Collector defines the interface for collecting gauge values from the stores.
type Collector interface {
	// Collect gathers current metrics from the system
	Collect(ctx context.Context) (Snapshot, error)

	// GetMappingCount returns the number of stored mappings
	GetMappingCount(ctx context.Context) (int64, error)

	// GetActiveClients returns the number of rate limited clients per limiter
	GetActiveClients(ctx context.Context) (map[string]int64, error)
}

/* Recorder receives request outcomes from the HTTP layer
 * result is a proxy.Kind label ("ok", "not_found", ...)
 */
type Recorder interface {
	RecordRegistration(ctx context.Context, result string)
	RecordForward(ctx context.Context, result string, elapsed time.Duration)
	RecordRateLimited(ctx context.Context, limiter string)
}

// Nop discards everything
type Nop struct{}

func (Nop) RecordRegistration(context.Context, string)           {}
func (Nop) RecordForward(context.Context, string, time.Duration) {}
func (Nop) RecordRateLimited(context.Context, string)            {}
