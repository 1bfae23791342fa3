package ratelimit

import (
	"fmt"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"
)

/* Loader manages limiter policies from limits.yaml
 * Starts from DefaultPolicies; the file only needs to list what it overrides
 */

// Config represents the structure of limits.yaml
type Config struct {
	Limits []PolicyConfig `yaml:"limits"`
}

// PolicyConfig represents a single limiter in the YAML file
type PolicyConfig struct {
	Name   string `yaml:"name"`
	Max    int    `yaml:"max"`
	Window string `yaml:"window"` // Go duration: "60m", "15m", "1h"
}

// Loader holds the effective policies
type Loader struct {
	policies map[string]Policy
}

// NewLoader creates a loader holding the default policies
func NewLoader() *Loader {
	return &Loader{
		policies: DefaultPolicies(),
	}
}

// Load reads and parses a limits file, overriding the policies it names
func (l *Loader) Load(filePath string) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("reading limits file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return fmt.Errorf("parsing limits YAML: %w", err)
	}

	loaded := make(map[string]Policy, len(config.Limits))
	for _, pc := range config.Limits {
		window, err := time.ParseDuration(pc.Window)
		if err != nil {
			return fmt.Errorf("parsing window for limiter %s: %w", pc.Name, err)
		}
		policy := Policy{
			Name:   pc.Name,
			Limit:  pc.Max,
			Window: window,
		}
		if err := policy.Validate(); err != nil {
			return fmt.Errorf("validating limiter: %w", err)
		}
		if _, dup := loaded[policy.Name]; dup {
			return fmt.Errorf("limiter %s defined twice", policy.Name)
		}
		loaded[policy.Name] = policy
	}

	for name, p := range loaded {
		l.policies[name] = p
	}
	return nil
}

// Get retrieves a policy by name
func (l *Loader) Get(name string) (Policy, error) {
	p, ok := l.policies[name]
	if !ok {
		return Policy{}, fmt.Errorf("limiter not found: %s", name)
	}
	return p, nil
}

// List returns all policies sorted by name
func (l *Loader) List() []Policy {
	policies := make([]Policy, 0, len(l.policies))
	for _, p := range l.policies {
		policies = append(policies, p)
	}
	sort.Slice(policies, func(i, j int) bool { return policies[i].Name < policies[j].Name })
	return policies
}
