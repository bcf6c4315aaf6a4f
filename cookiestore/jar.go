package cookiestore

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sort"
	"sync"
	"time"
)

const saveTimeout = 3 * time.Second

// Jar is an http.CookieJar that mirrors the cookies of one base URL into a
// Store.
type Jar struct {
	base  *url.URL
	key   string
	store Store
	log   *slog.Logger
	now   func() time.Time

	// saveMu orders persisted snapshots the same way as SetCookies calls.
	saveMu sync.Mutex

	mu      sync.Mutex
	inner   *cookiejar.Jar
	tracked map[string]Record
}

var _ http.CookieJar = (*Jar)(nil)

// Option configures a Jar.
type Option func(*Jar)

// WithLogger sets the logger used for persistence failures.
func WithLogger(l *slog.Logger) Option {
	return func(j *Jar) {
		if l != nil {
			j.log = l
		}
	}
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(j *Jar) {
		if now != nil {
			j.now = now
		}
	}
}

// New returns an empty jar bound to base. Call Load to rehydrate it.
func New(base *url.URL, store Store, opts ...Option) (*Jar, error) {
	if store == nil {
		return nil, ErrNilStore
	}
	if base == nil || base.Host == "" {
		return nil, fmt.Errorf("cookiestore: base URL must be absolute")
	}
	inner, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("cookiestore: new jar: %w", err)
	}

	j := &Jar{
		base:    &url.URL{Scheme: base.Scheme, Host: base.Host, Path: "/"},
		key:     Key(base),
		store:   store,
		log:     slog.New(slog.DiscardHandler),
		now:     time.Now,
		inner:   inner,
		tracked: map[string]Record{},
	}
	for _, opt := range opts {
		opt(j)
	}
	return j, nil
}

// Key is the store key of a base URL: scheme and host.
func Key(base *url.URL) string {
	return base.Scheme + "://" + base.Host
}

// SetCookies implements http.CookieJar. Cookies for the base host are
// persisted; a store failure is logged and never fails the request.
func (j *Jar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.saveMu.Lock()
	defer j.saveMu.Unlock()

	j.mu.Lock()
	j.inner.SetCookies(u, cookies)
	if u.Hostname() != j.base.Hostname() {
		j.mu.Unlock()
		return
	}
	now := j.now()
	for _, c := range cookies {
		if deletes(c, now) {
			delete(j.tracked, c.Name)
			continue
		}
		j.tracked[c.Name] = recordFromCookie(c, now)
	}
	records := j.recordsLocked(now)
	j.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	if err := j.store.Save(ctx, j.key, records); err != nil {
		j.log.Warn("cookiestore.save.fail", "key", j.key, "error", err)
	}
}

// Cookies implements http.CookieJar.
func (j *Jar) Cookies(u *url.URL) []*http.Cookie {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.inner.Cookies(u)
}

// Load rehydrates the jar from the store, skipping expired cookies.
func (j *Jar) Load(ctx context.Context) error {
	records, err := j.store.Load(ctx, j.key)
	if err != nil {
		return err
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	now := j.now()
	cookies := make([]*http.Cookie, 0, len(records))
	for _, r := range records {
		if r.expired(now) {
			continue
		}
		j.tracked[r.Name] = r
		cookies = append(cookies, r.cookie())
	}
	j.inner.SetCookies(j.base, cookies)
	return nil
}

// Clear empties the jar and the persisted copy.
func (j *Jar) Clear(ctx context.Context) error {
	inner, err := cookiejar.New(nil)
	if err != nil {
		return fmt.Errorf("cookiestore: new jar: %w", err)
	}
	j.saveMu.Lock()
	defer j.saveMu.Unlock()

	j.mu.Lock()
	j.inner = inner
	j.tracked = map[string]Record{}
	j.mu.Unlock()

	return j.store.Clear(ctx, j.key)
}

// Cookie returns the tracked cookie name of the base host with its
// attributes, or false when absent or expired.
func (j *Jar) Cookie(name string) (*http.Cookie, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	r, ok := j.tracked[name]
	if !ok || r.expired(j.now()) {
		return nil, false
	}
	return r.cookie(), true
}

func (j *Jar) recordsLocked(now time.Time) []Record {
	out := make([]Record, 0, len(j.tracked))
	for _, r := range j.tracked {
		if !r.expired(now) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Name < out[b].Name })
	return out
}
