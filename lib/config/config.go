// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/procinv/lib/netutil"
)

// Environment represents the deployment environment.
type Environment string

const (
	// Development is for local development machines.
	Development Environment = "development"
	// Staging is for pre-production testing.
	Staging Environment = "staging"
	// Production is for production deployments.
	Production Environment = "production"
)

// Environment variables read by Load and LoadFile.
const (
	EnvConfig            = "PROCINV_CONFIG"
	EnvEnvironment       = "PROCINV_ENVIRONMENT"
	EnvListenAddress     = "PROCINV_LISTEN_ADDRESS"
	EnvIdleEvictionDelay = "PROCINV_IDLE_EVICTION_DELAY"
	EnvServerDescription = "PROCINV_SERVER_DESCRIPTION"
	EnvClientDescription = "PROCINV_CLIENT_DESCRIPTION"
	EnvMetricsAddress    = "PROCINV_METRICS_ADDRESS"
	EnvLogLevel          = "PROCINV_LOG_LEVEL"
)

// Config is the master configuration of the inventory binaries.
type Config struct {
	// Environment identifies the deployment type (development, staging, production).
	Environment Environment `yaml:"environment"`

	// Server configures the inventory server.
	Server ServerConfig `yaml:"server"`

	// Client configures inventory clients.
	Client ClientConfig `yaml:"client"`

	// Log configures the structured logger.
	Log LogConfig `yaml:"log"`

	// Per-environment overrides, applied after the base config is
	// loaded.
	Development *ConfigOverrides `yaml:"development,omitempty"`
	Staging     *ConfigOverrides `yaml:"staging,omitempty"`
	Production  *ConfigOverrides `yaml:"production,omitempty"`
}

// ConfigOverrides contains fields that can be overridden per environment.
type ConfigOverrides struct {
	Server *ServerConfig `yaml:"server,omitempty"`
	Client *ClientConfig `yaml:"client,omitempty"`
	Log    *LogConfig    `yaml:"log,omitempty"`
}

// ServerConfig configures the inventory server.
type ServerConfig struct {
	// ListenAddress is the loopback host:port to accept connections
	// on. Port 0 selects an ephemeral port.
	// Default: 127.0.0.1:8600
	ListenAddress string `yaml:"listen_address"`

	// IdleEvictionDelay is how long the inventory of a device is kept
	// after the last connection using it finished.
	// Default: 60s
	IdleEvictionDelay time.Duration `yaml:"idle_eviction_delay"`

	// Description identifies the server to clients. Free text.
	// Default: procinv-server@${HOSTNAME}
	Description string `yaml:"description"`

	// MetricsAddress is the loopback host:port of the Prometheus
	// endpoint. Empty disables it.
	MetricsAddress string `yaml:"metrics_address"`
}

// ClientConfig configures inventory clients.
type ClientConfig struct {
	// Address of the server. Empty means Server.ListenAddress.
	Address string `yaml:"address"`

	// Description identifies the client in server logs. Free text.
	// Default: procinv@${HOSTNAME}
	Description string `yaml:"description"`
}

// LogConfig configures the structured logger.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	// Default: info (development), warn (production)
	Level string `yaml:"level"`

	// Format is text or json.
	// Default: text
	Format string `yaml:"format"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Environment: Development,
		Server: ServerConfig{
			ListenAddress:     "127.0.0.1:8600",
			IdleEvictionDelay: 60 * time.Second,
			Description:       "procinv-server@${HOSTNAME:-localhost}",
		},
		Client: ClientConfig{
			Description: "procinv@${HOSTNAME:-localhost}",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from the file named by PROCINV_CONFIG, or
// from defaults and environment variables alone when it is unset.
func Load() (*Config, error) {
	return LoadFile(os.Getenv(EnvConfig))
}

// LoadFile loads configuration from path. An empty path skips the file
// layer. Environment variables are applied last.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	// The environment itself may come from the environment.
	if value, ok := os.LookupEnv(EnvEnvironment); ok {
		cfg.Environment = Environment(value)
	}

	// Apply environment-specific overrides (development/staging/production sections in the file).
	cfg.applyEnvironmentOverrides()

	if err := cfg.applyEnvironmentVariables(os.LookupEnv); err != nil {
		return nil, err
	}

	cfg.expandVariables()

	return cfg, nil
}

// loadFile loads a single configuration file, merging into the current config.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config %s: %w", path, err)
	}
	return nil
}

// applyEnvironmentOverrides applies the environment-specific overrides.
func (c *Config) applyEnvironmentOverrides() {
	var overrides *ConfigOverrides

	switch c.Environment {
	case Development:
		overrides = c.Development
	case Staging:
		overrides = c.Staging
	case Production:
		overrides = c.Production
		// Production defaults: quieter logs.
		if overrides == nil {
			overrides = &ConfigOverrides{
				Log: &LogConfig{Level: "warn"},
			}
		}
	}

	if overrides == nil {
		return
	}

	if overrides.Server != nil {
		if overrides.Server.ListenAddress != "" {
			c.Server.ListenAddress = overrides.Server.ListenAddress
		}
		if overrides.Server.IdleEvictionDelay != 0 {
			c.Server.IdleEvictionDelay = overrides.Server.IdleEvictionDelay
		}
		if overrides.Server.Description != "" {
			c.Server.Description = overrides.Server.Description
		}
		if overrides.Server.MetricsAddress != "" {
			c.Server.MetricsAddress = overrides.Server.MetricsAddress
		}
	}

	if overrides.Client != nil {
		if overrides.Client.Address != "" {
			c.Client.Address = overrides.Client.Address
		}
		if overrides.Client.Description != "" {
			c.Client.Description = overrides.Client.Description
		}
	}

	if overrides.Log != nil {
		if overrides.Log.Level != "" {
			c.Log.Level = overrides.Log.Level
		}
		if overrides.Log.Format != "" {
			c.Log.Format = overrides.Log.Format
		}
	}
}

// applyEnvironmentVariables applies PROCINV_* variables found by
// lookup.
func (c *Config) applyEnvironmentVariables(lookup func(string) (string, bool)) error {
	strings := map[string]*string{
		EnvListenAddress:     &c.Server.ListenAddress,
		EnvServerDescription: &c.Server.Description,
		EnvMetricsAddress:    &c.Server.MetricsAddress,
		EnvClientDescription: &c.Client.Description,
		EnvLogLevel:          &c.Log.Level,
	}
	for name, target := range strings {
		if value, ok := lookup(name); ok {
			*target = value
		}
	}

	if value, ok := lookup(EnvIdleEvictionDelay); ok {
		delay, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvIdleEvictionDelay, err)
		}
		c.Server.IdleEvictionDelay = delay
	}
	return nil
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in the
// description strings.
func (c *Config) expandVariables() {
	hostname, _ := os.Hostname()
	vars := map[string]string{
		"HOSTNAME": hostname,
	}

	c.Server.Description = expandVars(c.Server.Description, vars)
	c.Client.Description = expandVars(c.Client.Description, vars)
}

// expandVars expands ${VAR} and ${VAR:-default} patterns.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		// Check provided vars first, then environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Staging && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}

	if err := netutil.ValidateLoopbackAddress(c.Server.ListenAddress); err != nil {
		errs = append(errs, fmt.Errorf("server.listen_address: %w", err))
	}
	if c.Server.IdleEvictionDelay <= 0 {
		errs = append(errs, fmt.Errorf("server.idle_eviction_delay must be positive, got %v", c.Server.IdleEvictionDelay))
	}
	if c.Server.MetricsAddress != "" {
		if err := netutil.ValidateLoopbackAddress(c.Server.MetricsAddress); err != nil {
			errs = append(errs, fmt.Errorf("server.metrics_address: %w", err))
		}
	}

	if _, err := c.SlogLevel(); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// ClientAddress returns the address clients connect to.
func (c *Config) ClientAddress() string {
	if c.Client.Address != "" {
		return c.Client.Address
	}
	return c.Server.ListenAddress
}

// SlogLevel parses Log.Level.
func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return 0, err
	}
	return level, nil
}
