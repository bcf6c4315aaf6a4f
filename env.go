package goSala

import (
	"github.com/MrEthical07/goSala/internal/env"
)

// ConfigFromEnv returns DefaultConfig overridden by the SALA_* environment.
// SALA_API_URL falls back to NEXT_PUBLIC_API_URL so the client can share the
// environment file of the web frontend.
func ConfigFromEnv() Config {
	cfg := defaultConfig()

	cfg.HTTP.BaseURL = env.FirstString(cfg.HTTP.BaseURL, "SALA_API_URL", "NEXT_PUBLIC_API_URL")
	cfg.HTTP.Timeout = env.Duration("SALA_HTTP_TIMEOUT", cfg.HTTP.Timeout)
	cfg.HTTP.UserAgent = env.String("SALA_USER_AGENT", cfg.HTTP.UserAgent)

	cfg.Auth.RefreshTimeout = env.Duration("SALA_REFRESH_TIMEOUT", cfg.Auth.RefreshTimeout)
	cfg.Auth.LogoutOnReplayUnauthorized = env.Bool("SALA_LOGOUT_ON_REPLAY_401", cfg.Auth.LogoutOnReplayUnauthorized)

	cfg.RateLimit.RPS = env.Float("SALA_RATE_RPS", cfg.RateLimit.RPS)
	cfg.RateLimit.Burst = env.Int("SALA_RATE_BURST", cfg.RateLimit.Burst)
	cfg.RateLimit.Enabled = env.Bool("SALA_RATE_ENABLED", cfg.RateLimit.Enabled)

	cfg.Cookies.FilePath = env.String("SALA_COOKIE_FILE", cfg.Cookies.FilePath)
	cfg.Cookies.RedisAddr = env.String("SALA_REDIS_ADDR", cfg.Cookies.RedisAddr)
	cfg.Cookies.RedisPrefix = env.String("SALA_REDIS_PREFIX", cfg.Cookies.RedisPrefix)
	cfg.Cookies.TTL = env.Duration("SALA_COOKIE_TTL", cfg.Cookies.TTL)

	cfg.Audit.Enabled = env.Bool("SALA_AUDIT_ENABLED", cfg.Audit.Enabled)
	cfg.Metrics.Enabled = env.Bool("SALA_METRICS_ENABLED", cfg.Metrics.Enabled)
	cfg.Metrics.EnableLatencyHistograms = env.Bool("SALA_METRICS_LATENCY", cfg.Metrics.EnableLatencyHistograms)

	cfg.Log.Level = env.String("SALA_LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = env.String("SALA_LOG_FORMAT", cfg.Log.Format)

	return cfg
}
