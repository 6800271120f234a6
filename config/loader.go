package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "edunet.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// YAML file is optional; missing file is not an error.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV. The YAML file is optional.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from the operator
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.API.BaseURL, "EDUNET_API_URL")
	setString(&cfg.API.Token, "EDUNET_API_TOKEN")
	setDuration(&cfg.API.ReadTimeout, "EDUNET_READ_TIMEOUT")
	setDuration(&cfg.API.WriteTimeout, "EDUNET_WRITE_TIMEOUT")

	setInt(&cfg.Retry.MaxRetries, "EDUNET_MAX_RETRIES")
	setDuration(&cfg.Retry.BaseDelay, "EDUNET_RETRY_BASE_DELAY")
	setDuration(&cfg.Retry.MaxDelay, "EDUNET_RETRY_MAX_DELAY")
	setDuration(&cfg.Retry.MaxJitter, "EDUNET_RETRY_MAX_JITTER")

	setDuration(&cfg.Cache.SweepInterval, "EDUNET_CACHE_SWEEP_INTERVAL")
	setDuration(&cfg.Cache.PendingTimeout, "EDUNET_PENDING_TIMEOUT")

	setString(&cfg.Network.ProbeAddress, "EDUNET_PROBE_ADDRESS")
	setDuration(&cfg.Network.ProbeInterval, "EDUNET_PROBE_INTERVAL")
	setDuration(&cfg.Network.ProbeTimeout, "EDUNET_PROBE_TIMEOUT")

	setFloat64(&cfg.Rate.RequestsPerSecond, "EDUNET_RATE_RPS")
	setInt(&cfg.Rate.Burst, "EDUNET_RATE_BURST")

	setString(&cfg.Logging.Level, "EDUNET_LOG_LEVEL")
	setString(&cfg.Logging.Format, "EDUNET_LOG_FORMAT")
}

// validate checks that required fields are set and bounds are coherent.
func validate(cfg *Config) error {
	if cfg.API.BaseURL == "" {
		return errors.New("api.base_url is required")
	}
	u, err := url.Parse(cfg.API.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("api.base_url must be an absolute http(s) URL, got %q", cfg.API.BaseURL)
	}
	if cfg.API.ReadTimeout <= 0 || cfg.API.WriteTimeout <= 0 {
		return errors.New("api timeouts must be positive")
	}
	if cfg.Retry.MaxRetries < 0 {
		return errors.New("retry.max_retries must be >= 0")
	}
	if cfg.Retry.BaseDelay <= 0 {
		return errors.New("retry.base_delay must be positive")
	}
	if cfg.Retry.BaseDelay > cfg.Retry.MaxDelay {
		return errors.New("retry.base_delay must not exceed retry.max_delay")
	}
	if cfg.Retry.MaxJitter < 0 {
		return errors.New("retry.max_jitter must be >= 0")
	}
	if cfg.Cache.PendingTimeout < 0 {
		return errors.New("cache.pending_timeout must be >= 0")
	}
	if cfg.Network.ProbeAddress != "" && cfg.Network.ProbeInterval <= 0 {
		return errors.New("network.probe_interval must be positive when probing")
	}
	if cfg.Rate.RequestsPerSecond < 0 {
		return errors.New("rate.requests_per_second must be >= 0")
	}
	if cfg.Rate.RequestsPerSecond > 0 && cfg.Rate.Burst < 1 {
		return errors.New("rate.burst must be >= 1")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
