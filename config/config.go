package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

/* Config é um pacote auxiliar. Poderia ser uma lib externa*/

const (
	EnvProduction  = "production"
	EnvDevelopment = "development"
)

// Mapping store backends
const (
	StoreRedis    = "redis"
	StorePostgres = "postgres"
	StoreFile     = "file"
	StoreMemory   = "memory"
)

// Rate limit counter backends
const (
	CountersMemory = "memory"
	CountersRedis  = "redis"
)

type Config struct {
	Port             string        `mapstructure:"PORT"`
	AppEnv           string        `mapstructure:"APP_ENV"`
	StoreBackend     string        `mapstructure:"STORE_BACKEND"`
	RateLimitBackend string        `mapstructure:"RATELIMIT_BACKEND"`
	RedisURL         string        `mapstructure:"REDIS_URL"`
	PostgresDSN      string        `mapstructure:"POSTGRES_DSN"`
	LocalDBPath      string        `mapstructure:"LOCAL_DB_PATH"`
	LimitsFile       string        `mapstructure:"LIMITS_FILE"`
	RelayTimeout     time.Duration `mapstructure:"RELAY_TIMEOUT"`
	PublicBaseURL    string        `mapstructure:"PUBLIC_BASE_URL"`
	MaxPayloadBytes  int64         `mapstructure:"MAX_PAYLOAD_BYTES"`
	TrustProxyHops   int           `mapstructure:"TRUST_PROXY_HOPS"`
	LogLevel         string        `mapstructure:"LOG_LEVEL"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "3000")
	v.SetDefault("APP_ENV", EnvDevelopment)
	v.SetDefault("STORE_BACKEND", "")
	v.SetDefault("RATELIMIT_BACKEND", "")
	v.SetDefault("REDIS_URL", "redis://localhost:6379/0")
	v.SetDefault("POSTGRES_DSN", "")
	v.SetDefault("LOCAL_DB_PATH", "local-db.json")
	v.SetDefault("LIMITS_FILE", "")
	v.SetDefault("RELAY_TIMEOUT", "5s")
	v.SetDefault("PUBLIC_BASE_URL", "")
	v.SetDefault("MAX_PAYLOAD_BYTES", 100*1024)
	v.SetDefault("TRUST_PROXY_HOPS", 0)
	v.SetDefault("LOG_LEVEL", "info")
}

// GetConfig reads .env (optional) from the working directory, then the environment
func GetConfig() (*Config, error) {
	return load(".")
}

func load(paths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigName(".env")
	v.SetConfigType("toml")
	for _, p := range paths {
		v.AddConfigPath(p)
	}
	v.AutomaticEnv()
	setDefaults(v)

	err := v.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	if err != nil && !errors.As(err, &notFound) {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var config Config
	err = v.Unmarshal(&config)
	if err != nil {
		return nil, fmt.Errorf("parsing config data: %w", err)
	}
	config.resolve()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &config, nil
}

// resolve fills the derived backends: production talks to Redis, anything else stays local
func (c *Config) resolve() {
	c.AppEnv = strings.ToLower(strings.TrimSpace(c.AppEnv))
	c.StoreBackend = strings.ToLower(strings.TrimSpace(c.StoreBackend))
	c.RateLimitBackend = strings.ToLower(strings.TrimSpace(c.RateLimitBackend))
	c.PublicBaseURL = strings.TrimRight(c.PublicBaseURL, "/")

	if c.StoreBackend == "" {
		c.StoreBackend = StoreFile
		if c.IsProduction() {
			c.StoreBackend = StoreRedis
		}
	}
	if c.RateLimitBackend == "" {
		c.RateLimitBackend = CountersMemory
		if c.IsProduction() {
			c.RateLimitBackend = CountersRedis
		}
	}
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == EnvProduction
}

// Validate rejects unknown backends and values the server cannot run with
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case StoreRedis, StoreFile, StoreMemory:
	case StorePostgres:
		if c.PostgresDSN == "" {
			return fmt.Errorf("POSTGRES_DSN is required for the %s store", StorePostgres)
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}
	switch c.RateLimitBackend {
	case CountersMemory, CountersRedis:
	default:
		return fmt.Errorf("unknown RATELIMIT_BACKEND %q", c.RateLimitBackend)
	}
	if c.RelayTimeout <= 0 {
		return fmt.Errorf("RELAY_TIMEOUT must be positive")
	}
	if c.MaxPayloadBytes <= 0 {
		return fmt.Errorf("MAX_PAYLOAD_BYTES must be positive")
	}
	if c.TrustProxyHops < 0 {
		return fmt.Errorf("TRUST_PROXY_HOPS must not be negative")
	}
	return nil
}

// UsesRedis reports whether any component needs a Redis connection
func (c *Config) UsesRedis() bool {
	return c.StoreBackend == StoreRedis || c.RateLimitBackend == CountersRedis
}
