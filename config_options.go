package edunet

import (
	"io"
	"log/slog"

	"github.com/ambiyansyah-risyal/edunet/config"
)

// OptionsFromConfig maps a loaded configuration onto client options. The
// logger writes to w (stderr when nil). Connectivity probing is left to the
// caller, since it needs a lifetime context; see NetworkMonitor.StartProbe.
func OptionsFromConfig(cfg *config.Config, w io.Writer) []Option {
	opts := []Option{
		WithBaseURL(cfg.API.BaseURL),
		WithReadTimeout(cfg.API.ReadTimeout),
		WithWriteTimeout(cfg.API.WriteTimeout),
		WithRetryConfig(RetryConfig{
			MaxRetries: cfg.Retry.MaxRetries,
			BaseDelay:  cfg.Retry.BaseDelay,
			MaxDelay:   cfg.Retry.MaxDelay,
			MaxJitter:  cfg.Retry.MaxJitter,
		}),
		WithLogger(NewLogger(w, cfg.Logging.Level, cfg.Logging.Format)),
	}

	if cfg.API.Token != "" {
		opts = append(opts, WithToken(cfg.API.Token))
	}
	if cfg.Rate.RequestsPerSecond > 0 {
		opts = append(opts, WithRateLimit(cfg.Rate.RequestsPerSecond, cfg.Rate.Burst))
	}
	if ParseLevel(cfg.Logging.Level) <= slog.LevelDebug {
		opts = append(opts, WithDebug())
	}
	return opts
}

// CacheOptionsFromConfig maps a loaded configuration onto cache options.
func CacheOptionsFromConfig(cfg *config.Config, logger Logger) []CacheOption {
	return []CacheOption{
		WithPendingTimeout(cfg.Cache.PendingTimeout),
		WithResponseCache(NewResponseCache(WithSweepInterval(cfg.Cache.SweepInterval))),
		WithCacheLogger(logger),
	}
}
