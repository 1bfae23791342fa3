package ratelimit

import (
	"fmt"
	"time"
)

// Names of the two limiters guarding the HTTP surface
const (
	CreateLimiter = "create"
	ProxyLimiter  = "proxy"
)

/* Policy is the ceiling of one limiter
 * At most Limit requests per client within Window
 */
type Policy struct {
	Name   string
	Limit  int
	Window time.Duration
}

// DefaultPolicies returns the built-in ceilings: 20 registrations per hour, 100 forwards per 15 minutes
func DefaultPolicies() map[string]Policy {
	return map[string]Policy{
		CreateLimiter: {Name: CreateLimiter, Limit: 20, Window: 60 * time.Minute},
		ProxyLimiter:  {Name: ProxyLimiter, Limit: 100, Window: 15 * time.Minute},
	}
}

// Validate checks if the policy is usable
func (p Policy) Validate() error {
	if p.Name != CreateLimiter && p.Name != ProxyLimiter {
		return fmt.Errorf("unknown limiter %q (expected %q or %q)", p.Name, CreateLimiter, ProxyLimiter)
	}
	if p.Limit < 1 {
		return fmt.Errorf("max must be at least 1 for limiter %s", p.Name)
	}
	if p.Window <= 0 {
		return fmt.Errorf("window must be positive for limiter %s", p.Name)
	}
	return nil
}
