package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/marcelsud/webhook-proxy/proxy"
	"github.com/marcelsud/webhook-proxy/ratelimit"
)

// StoreCollector implements the Collector interface on top of the mapping store and the limiters
type StoreCollector struct {
	counter  proxy.Counter
	limiters []*ratelimit.Limiter
}

// NewStoreCollector creates a new collector; counter may be nil when the backend cannot count
func NewStoreCollector(counter proxy.Counter, limiters ...*ratelimit.Limiter) *StoreCollector {
	return &StoreCollector{
		counter:  counter,
		limiters: limiters,
	}
}

// Collect gathers all metrics
func (c *StoreCollector) Collect(ctx context.Context) (Snapshot, error) {
	mappings, err := c.GetMappingCount(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("getting mapping count: %w", err)
	}

	clients, err := c.GetActiveClients(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("getting active clients: %w", err)
	}

	return Snapshot{
		Mappings:      mappings,
		ActiveClients: clients,
		Timestamp:     time.Now(),
	}, nil
}

// GetMappingCount returns the number of webhook:* records
func (c *StoreCollector) GetMappingCount(ctx context.Context) (int64, error) {
	if c.counter == nil {
		return 0, nil
	}
	return c.counter.CountMappings(ctx)
}

// GetActiveClients returns live windows per limiter
func (c *StoreCollector) GetActiveClients(ctx context.Context) (map[string]int64, error) {
	clients := make(map[string]int64, len(c.limiters))
	for _, l := range c.limiters {
		n, err := l.ActiveClients(ctx)
		if err != nil {
			// Continue even if one limiter fails
			continue
		}
		clients[l.Name()] = n
	}
	return clients, nil
}
