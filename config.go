package goSala

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Config is the full client configuration. Start from DefaultConfig or
// ConfigFromEnv; Build validates and copies it, so later edits have no effect.
type Config struct {
	HTTP       HTTPConfig
	Auth       AuthConfig
	RateLimit  RateLimitConfig
	Cookies    CookieConfig
	Pagination PaginationConfig
	Audit      AuditConfig
	Metrics    MetricsConfig
	Log        LogConfig
}

/*
====================================
HTTP CONFIG
====================================
*/

// HTTPConfig controls the transport used for every backend call.
type HTTPConfig struct {
	BaseURL         string
	Timeout         time.Duration
	UserAgent       string
	RequestIDHeader string
	MaxBodyBytes    int64
}

/*
====================================
AUTH CONFIG
====================================
*/

// AuthConfig names the backend auth endpoints and drives the refresh
// coordinator.
type AuthConfig struct {
	LoginPath   string
	LogoutPath  string
	RefreshPath string
	MePath      string

	// LoginRoute is the public login view of the UI shell. While the
	// navigator reports a path under it, 401 answers are never intercepted.
	LoginRoute string

	RefreshTimeout             time.Duration
	LogoutOnReplayUnauthorized bool

	AccessCookie  string
	RefreshCookie string
}

/*
====================================
RATE LIMIT CONFIG
====================================
*/

// RateLimitConfig throttles outbound requests with a token bucket.
type RateLimitConfig struct {
	Enabled bool
	RPS     float64
	Burst   int
}

/*
====================================
COOKIE CONFIG
====================================
*/

// CookieConfig controls cookie persistence. FilePath and RedisAddr are only
// read by ConfigFromEnv consumers (the CLI); the client itself receives an
// already-built store through the Builder.
type CookieConfig struct {
	FilePath    string
	RedisAddr   string
	RedisPrefix string
	TTL         time.Duration
}

// PaginationConfig holds the pager defaults.
type PaginationConfig struct {
	ErrorMessage string
}

// AuditConfig controls the asynchronous audit trail.
type AuditConfig struct {
	// Enabled starts the dispatcher. When false no sink is ever called.
	Enabled bool
	// BufferSize is the number of events queued ahead of the sink.
	BufferSize int
	// DropIfFull makes Login and Logout drop their event on a full buffer
	// instead of waiting for room (bounded by the caller's context).
	DropIfFull bool
	// DetachedWait bounds how long events raised by a refresh cycle wait for
	// room before being dropped. Refresh waiters are released only after
	// these events are queued.
	DetachedWait time.Duration
}

// MetricsConfig switches the in-process counters. Exporters read whatever
// is enabled here.
type MetricsConfig struct {
	// Enabled turns on the request, refresh and session counters.
	Enabled bool
	// EnableLatencyHistograms adds the request latency histogram. It
	// requires Enabled.
	EnableLatencyHistograms bool
}

// LogConfig selects the slog handler built by NewLogger.
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json (default) or text
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the configuration used when nothing is overridden.
// The base URL matches the address of the backend container in the
// docker-compose deployment.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		HTTP: HTTPConfig{
			BaseURL:         "http://backend:8000",
			Timeout:         15 * time.Second,
			UserAgent:       "goSala/1",
			RequestIDHeader: "X-Request-ID",
			MaxBodyBytes:    8 << 20,
		},
		Auth: AuthConfig{
			LoginPath:                  "/api/auth/login/",
			LogoutPath:                 "/api/auth/logout/",
			RefreshPath:                "/api/auth/refresh/",
			MePath:                     "/api/auth/me/",
			LoginRoute:                 "/login",
			RefreshTimeout:             10 * time.Second,
			LogoutOnReplayUnauthorized: true,
			AccessCookie:               "access_token",
			RefreshCookie:              "refresh_token",
		},
		RateLimit: RateLimitConfig{
			Enabled: false,
			RPS:     20,
			Burst:   40,
		},
		Cookies: CookieConfig{
			RedisPrefix: "sala:cookies",
			TTL:         7 * 24 * time.Hour,
		},
		Pagination: PaginationConfig{
			ErrorMessage: "Erro ao carregar dados",
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize:   256,
			DropIfFull:   true,
			DetachedWait: 50 * time.Millisecond,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: false,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

func cloneConfig(cfg Config) Config {
	// Config holds only value fields today; the copy is already deep.
	return cfg
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first invalid setting, wrapped in ErrInvalidConfig.
func (c *Config) Validate() error {
	// HTTP
	u, err := url.Parse(c.HTTP.BaseURL)
	if err != nil || u.Host == "" {
		return invalidConfig("HTTP BaseURL must be an absolute URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return invalidConfig("HTTP BaseURL scheme must be http or https")
	}
	if c.HTTP.Timeout <= 0 {
		return invalidConfig("HTTP Timeout must be > 0")
	}
	if c.HTTP.MaxBodyBytes <= 0 {
		return invalidConfig("HTTP MaxBodyBytes must be > 0")
	}

	// Auth
	for name, p := range map[string]string{
		"LoginPath":   c.Auth.LoginPath,
		"LogoutPath":  c.Auth.LogoutPath,
		"RefreshPath": c.Auth.RefreshPath,
		"MePath":      c.Auth.MePath,
		"LoginRoute":  c.Auth.LoginRoute,
	} {
		if !strings.HasPrefix(p, "/") {
			return invalidConfig("Auth " + name + " must start with /")
		}
	}
	if c.Auth.RefreshTimeout <= 0 {
		return invalidConfig("Auth RefreshTimeout must be > 0")
	}
	if c.Auth.AccessCookie == "" || c.Auth.RefreshCookie == "" {
		return invalidConfig("Auth cookie names must not be empty")
	}

	// Rate limit
	if c.RateLimit.Enabled {
		if c.RateLimit.RPS <= 0 {
			return invalidConfig("RateLimit RPS must be > 0 when enabled")
		}
		if c.RateLimit.Burst <= 0 {
			return invalidConfig("RateLimit Burst must be > 0 when enabled")
		}
	}

	// Cookies
	if c.Cookies.TTL < 0 {
		return invalidConfig("Cookies TTL must be >= 0")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return invalidConfig("Audit BufferSize must be > 0 when enabled")
	}
	if c.Audit.DetachedWait < 0 {
		return invalidConfig("Audit DetachedWait must be >= 0")
	}

	// Metrics
	if c.Metrics.EnableLatencyHistograms && !c.Metrics.Enabled {
		return invalidConfig("Metrics EnableLatencyHistograms requires Metrics Enabled")
	}

	// Log
	switch strings.ToLower(strings.TrimSpace(c.Log.Format)) {
	case "", "json", "text":
	default:
		return invalidConfig("Log Format must be json or text")
	}

	return nil
}

func invalidConfig(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, msg)
}
