// Package config provides hierarchical configuration loading for the edunet
// client. Precedence: defaults < YAML file < environment variables.
package config

import "time"

// DefaultBaseURL is used when neither the YAML file nor EDUNET_API_URL set one.
const DefaultBaseURL = "http://localhost:5001/api"

// Config holds all runtime configuration for the network layer.
type Config struct {
	API     API     `yaml:"api"`
	Retry   Retry   `yaml:"retry"`
	Cache   Cache   `yaml:"cache"`
	Network Network `yaml:"network"`
	Rate    Rate    `yaml:"rate"`
	Logging Logging `yaml:"logging"`
}

// API holds backend endpoint and per-verb deadline configuration.
type API struct {
	BaseURL      string        `yaml:"base_url"`
	Token        string        `yaml:"token"`         // Bearer token, read only (default: none)
	ReadTimeout  time.Duration `yaml:"read_timeout"`  // GET deadline (default: 20s)
	WriteTimeout time.Duration `yaml:"write_timeout"` // POST/PUT/PATCH/DELETE deadline (default: 30s)
}

// Retry holds backoff configuration.
type Retry struct {
	MaxRetries int           `yaml:"max_retries"`
	BaseDelay  time.Duration `yaml:"base_delay"`
	MaxDelay   time.Duration `yaml:"max_delay"`
	MaxJitter  time.Duration `yaml:"max_jitter"`
}

// Cache holds response cache configuration.
type Cache struct {
	SweepInterval  time.Duration `yaml:"sweep_interval"`
	PendingTimeout time.Duration `yaml:"pending_timeout"`
}

// Network holds connectivity probe configuration. An empty ProbeAddress
// disables probing.
type Network struct {
	ProbeAddress  string        `yaml:"probe_address"`
	ProbeInterval time.Duration `yaml:"probe_interval"`
	ProbeTimeout  time.Duration `yaml:"probe_timeout"`
}

// Rate holds the optional client-side rate limit. RequestsPerSecond 0
// disables limiting.
type Rate struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// Logging holds structured logging configuration.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" | "json"
}

// Defaults returns a Config with the backend's production defaults.
func Defaults() Config {
	return Config{
		API: API{
			BaseURL:      DefaultBaseURL,
			ReadTimeout:  20 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Retry: Retry{
			MaxRetries: 3,
			BaseDelay:  time.Second,
			MaxDelay:   8 * time.Second,
			MaxJitter:  time.Second,
		},
		Cache: Cache{
			SweepInterval:  5 * time.Minute,
			PendingTimeout: 10 * time.Second,
		},
		Network: Network{
			ProbeInterval: 15 * time.Second,
			ProbeTimeout:  3 * time.Second,
		},
		Rate: Rate{
			Burst: 1,
		},
		Logging: Logging{
			Level:  "info",
			Format: "text",
		},
	}
}
