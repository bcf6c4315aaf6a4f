package goSala

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"github.com/MrEthical07/goSala/cookiestore"
	"github.com/MrEthical07/goSala/internal/rate"
	"github.com/MrEthical07/goSala/session"
	"github.com/redis/go-redis/v9"
)

const cookieLoadTimeout = 5 * time.Second

// Builder assembles a Client. A Builder produces at most one client.
type Builder struct {
	config Config

	redis       redis.UniversalClient
	cookieStore cookiestore.Store
	jar         http.CookieJar
	transport   http.RoundTripper

	session *session.Manager
	nav     session.Navigator

	logger    *slog.Logger
	auditSink AuditSink

	built bool
}

// New returns a builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis persists session cookies in Redis under Cookies.RedisPrefix.
// Ignored when WithCookieStore or WithCookieJar is also given.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithCookieStore persists session cookies in store.
func (b *Builder) WithCookieStore(store cookiestore.Store) *Builder {
	b.cookieStore = store
	return b
}

// WithCookieJar uses jar as is. No persistence is layered on top of it.
func (b *Builder) WithCookieJar(jar http.CookieJar) *Builder {
	b.jar = jar
	return b
}

// WithTransport sets the round tripper of the underlying http.Client.
func (b *Builder) WithTransport(rt http.RoundTripper) *Builder {
	b.transport = rt
	return b
}

// WithSession shares an existing session manager, typically the one the UI
// shell already subscribes to.
func (b *Builder) WithSession(m *session.Manager) *Builder {
	b.session = m
	return b
}

// WithNavigator sets the navigator consulted for the login view and used to
// redirect after a forced logout.
func (b *Builder) WithNavigator(nav session.Navigator) *Builder {
	b.nav = nav
	return b
}

// WithLogger overrides the logger built from Config.Log.
func (b *Builder) WithLogger(l *slog.Logger) *Builder {
	b.logger = l
	return b
}

// WithAuditSink sets the audit sink. Audit must also be enabled in config.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithMetricsEnabled toggles the counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the request latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and returns the client. Persisted
// cookies are loaded before Build returns; a store that cannot be read is
// logged and the client starts without a session.
func (b *Builder) Build() (*Client, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	base, err := url.Parse(cfg.HTTP.BaseURL)
	if err != nil {
		return nil, invalidConfig("HTTP BaseURL: " + err.Error())
	}

	logger := b.logger
	if logger == nil {
		logger = NewLogger(cfg.Log, nil)
	}

	// -------- COOKIE JAR --------
	var persisted *cookiestore.Jar
	jar := b.jar
	if jar == nil {
		store := b.cookieStore
		if store == nil && b.redis != nil {
			store = cookiestore.NewRedisStore(b.redis, cfg.Cookies.RedisPrefix, cfg.Cookies.TTL)
		}
		if store != nil {
			persisted, err = cookiestore.New(base, store, cookiestore.WithLogger(logger))
			if err != nil {
				return nil, fmt.Errorf("cookie jar: %w", err)
			}
			ctx, cancel := context.WithTimeout(context.Background(), cookieLoadTimeout)
			if err := persisted.Load(ctx); err != nil {
				logger.Warn("client.cookies.load.fail", "error", err)
			}
			cancel()
			jar = persisted
		} else {
			mem, err := cookiejar.New(nil)
			if err != nil {
				return nil, fmt.Errorf("cookie jar: %w", err)
			}
			jar = mem
		}
	}

	// -------- TRANSPORT --------
	httpClient := &http.Client{
		Timeout:   cfg.HTTP.Timeout,
		Jar:       jar,
		Transport: b.transport,
	}

	// -------- RATE LIMITER --------
	var limiter *rate.Limiter
	if cfg.RateLimit.Enabled {
		limiter = rate.New(rate.Config{
			RPS:   cfg.RateLimit.RPS,
			Burst: cfg.RateLimit.Burst,
		})
	}

	sess := b.session
	if sess == nil {
		sess = session.NewManager()
	}
	nav := b.nav
	if nav == nil {
		nav = session.NewMemoryNavigator("/")
	}

	c := &Client{
		config:  cfg,
		baseURL: base,
		http:    httpClient,
		cookies: persisted,
		limiter: limiter,
		session: sess,
		nav:     nav,
		audit:   newAuditDispatcher(cfg.Audit, b.auditSink),
		metrics: NewMetrics(cfg.Metrics),
		log:     logger,
	}
	c.refresh = newRefreshCoordinator(cfg.Auth.RefreshTimeout, c.callRefresh, c.settleRefresh)

	b.built = true
	return c, nil
}
