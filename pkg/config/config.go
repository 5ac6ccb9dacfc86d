package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "MCPGW_"

// Config is the gateway process configuration. It is assembled once at
// startup and treated as read-only afterwards; components receive the
// values they need explicitly rather than reading the environment.
type Config struct {
	Server       ServerConfig                 `koanf:"server"`
	Auth         AuthConfig                   `koanf:"auth"`
	RateLimit    RateLimitConfig              `koanf:"ratelimit"`
	Telemetry    TelemetryConfig              `koanf:"telemetry"`
	Integrations map[string]IntegrationConfig `koanf:"integrations"`
}

type ServerConfig struct {
	Addr            string `koanf:"addr"`
	TimeoutSeconds  int    `koanf:"timeout"`
	ShutdownSeconds int    `koanf:"shutdown"`
}

func (c ServerConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

func (c ServerConfig) ShutdownGrace() time.Duration {
	return time.Duration(c.ShutdownSeconds) * time.Second
}

// AuthConfig carries the token signing secret. There is no default: a
// process without an explicit secret must not start.
type AuthConfig struct {
	Secret string `koanf:"secret"`
}

type RateLimitConfig struct {
	Enabled       bool                    `koanf:"enabled"`
	Backend       string                  `koanf:"backend"`
	Limit         int                     `koanf:"limit"`
	WindowSeconds int                     `koanf:"window"`
	Redis         RedisConfig             `koanf:"redis"`
	Overrides     map[string]PolicyConfig `koanf:"overrides"`
}

func (c RateLimitConfig) Window() time.Duration {
	return time.Duration(c.WindowSeconds) * time.Second
}

// PolicyConfig overrides the default limit for a single integration.
type PolicyConfig struct {
	Limit         int `koanf:"limit"`
	WindowSeconds int `koanf:"window"`
}

func (c PolicyConfig) Window() time.Duration {
	return time.Duration(c.WindowSeconds) * time.Second
}

type RedisConfig struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

type TelemetryConfig struct {
	Enabled bool   `koanf:"enabled"`
	Service string `koanf:"service"`
}

// IntegrationConfig declares one integration to register, keyed by its
// route name in the integrations map.
type IntegrationConfig struct {
	Kind            string            `koanf:"kind"`
	BaseURL         string            `koanf:"base_url"`
	CredentialParam string            `koanf:"credential_param"`
	Options         map[string]string `koanf:"options"`
}

// Load reads configuration from an optional YAML file and from MCPGW_
// environment variables, environment taking precedence. The file path comes
// from MCPGW_CONFIG and defaults to config.yaml; a missing file is fine.
func Load() (*Config, error) {
	k := koanf.New(".")

	path := os.Getenv(envPrefix + "CONFIG")
	if path == "" {
		path = "config.yaml"
	}
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("config: stat %s: %w", path, err)
	}

	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "_", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("config: reading environment: %w", err)
	}

	defaults := map[string]any{
		"server.addr":          ":8700",
		"server.timeout":       30,
		"server.shutdown":      30,
		"ratelimit.backend":    "memory",
		"ratelimit.limit":      60,
		"ratelimit.window":     60,
		"ratelimit.redis.addr": "127.0.0.1:6379",
		"telemetry.service":    "mcp-gateway",
	}
	for key, val := range defaults {
		if !k.Exists(key) {
			if err := k.Set(key, val); err != nil {
				return nil, fmt.Errorf("config: default %s: %w", key, err)
			}
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.Auth.Secret) == "" {
		return fmt.Errorf("config: auth.secret is required, set MCPGW_AUTH_SECRET")
	}
	switch c.RateLimit.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("config: ratelimit.backend must be memory or redis, got %q", c.RateLimit.Backend)
	}
	if c.RateLimit.Enabled {
		if c.RateLimit.Limit <= 0 {
			return fmt.Errorf("config: ratelimit.limit must be positive")
		}
		if c.RateLimit.WindowSeconds <= 0 {
			return fmt.Errorf("config: ratelimit.window must be positive")
		}
		for name, p := range c.RateLimit.Overrides {
			if p.Limit <= 0 || p.WindowSeconds <= 0 {
				return fmt.Errorf("config: ratelimit override for %q must have positive limit and window", name)
			}
		}
	}
	for name, ic := range c.Integrations {
		if strings.TrimSpace(ic.Kind) == "" {
			return fmt.Errorf("config: integration %q has no kind", name)
		}
	}
	return nil
}
