package goSala

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrEthical07/goSala/session"
)

func TestConcurrentUnauthorizedSharesOneRefresh(t *testing.T) {
	b := newFakeBackend(t)
	b.route("/api/livros/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"count": 0, "results": []any{}})
	})
	c := loggedIn(t, b)

	b.rotate()
	release := b.holdRefresh()

	const n = 12
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Get(context.Background(), "/api/livros/", nil)
			errs <- err
		}()
	}

	waitFor(t, "all callers queued", func() bool {
		_, queued, _ := c.RefreshState()
		return queued == n
	})
	if state, _, _ := c.RefreshState(); state != "REFRESHING" {
		t.Fatalf("expected REFRESHING while the refresh is held, got %s", state)
	}
	release()
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("expected replay to succeed, got %v", err)
		}
	}
	if got := b.refreshCalls.Load(); got != 1 {
		t.Fatalf("expected exactly one refresh call, got %d", got)
	}
	if got := c.Metrics().Value(MetricReplay); got != n {
		t.Fatalf("expected %d replays, got %d", n, got)
	}
	if got := c.Metrics().Value(MetricRefreshQueued); got != n {
		t.Fatalf("expected %d queued callers released, got %d", n, got)
	}
	state, queued, cycles := c.RefreshState()
	if state != "IDLE" || queued != 0 || cycles != 1 {
		t.Fatalf("expected idle coordinator after one cycle, got %s queued=%d cycles=%d", state, queued, cycles)
	}
}

func TestRefreshFailureRejectsAllAndLogsOutOnce(t *testing.T) {
	b := newFakeBackend(t)
	sess := session.NewManager()
	nav := session.NewMemoryNavigator("/emprestimos")
	c := loggedIn(t, b, func(bl *Builder) {
		bl.WithSession(sess).WithNavigator(nav)
	})

	var logouts atomic.Int64
	var reason atomic.Value
	sess.Subscribe(func(ev session.Event) {
		if ev.Kind == session.EventLogout {
			logouts.Add(1)
			reason.Store(ev.Reason)
		}
	})

	b.rotate()
	b.refreshFail.Store(true)
	release := b.holdRefresh()

	const n = 5
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Get(context.Background(), "/api/emprestimos/", nil)
			if err != nil && logouts.Load() != 1 {
				t.Errorf("logout must be visible before the caller sees the error")
			}
			errs <- err
		}()
	}
	waitFor(t, "all callers queued", func() bool {
		_, queued, _ := c.RefreshState()
		return queued == n
	})
	release()
	wg.Wait()
	close(errs)

	for err := range errs {
		if !errors.Is(err, ErrRefreshFailed) {
			t.Fatalf("expected ErrRefreshFailed, got %v", err)
		}
		if !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("expected the refresh 401 to stay in the chain, got %v", err)
		}
	}
	if got := logouts.Load(); got != 1 {
		t.Fatalf("expected exactly one logout broadcast, got %d", got)
	}
	if got := reason.Load(); got != session.ReasonRefreshFailed {
		t.Fatalf("expected reason %q, got %v", session.ReasonRefreshFailed, got)
	}
	if nav.CurrentPath() != "/login" {
		t.Fatalf("expected navigation to /login, got %q", nav.CurrentPath())
	}
	if sess.IsAuthenticated() {
		t.Fatal("expected user to be cleared by the logout broadcast")
	}
	if got := b.refreshCalls.Load(); got != 1 {
		t.Fatalf("expected one refresh call, got %d", got)
	}
}

func TestBooksScenarioReplaysAfterRefresh(t *testing.T) {
	b := newFakeBackend(t)
	b.route("/api/books/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]int{"id": 1})
	})
	c := newTestClient(t, b)

	resp, err := c.Get(t.Context(), "/api/books/", nil)
	if err != nil {
		t.Fatalf("expected success after refresh, got %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var out struct{ ID int }
	if err := resp.Decode(&out); err != nil || out.ID != 1 {
		t.Fatalf("expected id 1, got %+v err=%v", out, err)
	}

	want := []string{"GET /api/books/", "POST /api/auth/refresh/", "GET /api/books/"}
	if got := b.Paths(); !slices.Equal(got, want) {
		t.Fatalf("unexpected wire sequence:\n got %v\nwant %v", got, want)
	}
}

func TestReplayUnauthorizedDoesNotStartSecondCycle(t *testing.T) {
	b := newFakeBackend(t)
	sess := session.NewManager()
	c := loggedIn(t, b, func(bl *Builder) { bl.WithSession(sess) })

	var reasons []string
	var mu sync.Mutex
	sess.Subscribe(func(ev session.Event) {
		if ev.Kind == session.EventLogout {
			mu.Lock()
			reasons = append(reasons, ev.Reason)
			mu.Unlock()
		}
	})

	b.denyAll.Store(true)
	_, err := c.Get(t.Context(), "/api/associados/", nil)
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized from the replay, got %v", err)
	}
	if errors.Is(err, ErrRefreshFailed) {
		t.Fatalf("refresh itself succeeded; got %v", err)
	}
	if got := b.refreshCalls.Load(); got != 1 {
		t.Fatalf("expected one refresh call, got %d", got)
	}
	if _, _, cycles := c.RefreshState(); cycles != 1 {
		t.Fatalf("expected one cycle, got %d", cycles)
	}
	if got := c.Metrics().Value(MetricReplayUnauthorized); got != 1 {
		t.Fatalf("expected replay_unauthorized=1, got %d", got)
	}
	mu.Lock()
	defer mu.Unlock()
	if !slices.Equal(reasons, []string{session.ReasonReplayUnauthorized}) {
		t.Fatalf("expected one replay_unauthorized logout, got %v", reasons)
	}
}

func TestReplayUnauthorizedKeepsSessionWhenConfigured(t *testing.T) {
	b := newFakeBackend(t)
	c := loggedIn(t, b, func(bl *Builder) {
		cfg := testConfig(b.srv.URL)
		cfg.Auth.LogoutOnReplayUnauthorized = false
		bl.WithConfig(cfg)
	})

	b.denyAll.Store(true)
	if _, err := c.Get(t.Context(), "/api/associados/", nil); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if !c.Session().IsAuthenticated() {
		t.Fatal("expected session to survive a replay 401 when logout is disabled")
	}
}

func TestRetriedDescriptorNeverRefreshes(t *testing.T) {
	b := newFakeBackend(t)
	c := newTestClient(t, b)

	req := &Request{Method: http.MethodGet, Path: "/api/livros/", retried: true}
	_, err := c.Do(t.Context(), req)
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected raw 401, got %v", err)
	}
	if got := b.refreshCalls.Load(); got != 0 {
		t.Fatalf("expected no refresh for a retried descriptor, got %d", got)
	}
}

func TestRefreshEndpointNeverIntercepted(t *testing.T) {
	b := newFakeBackend(t)
	b.refreshFail.Store(true)
	c := newTestClient(t, b)

	_, err := c.Post(t.Context(), "/api/auth/refresh/", nil)
	if !errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrRefreshFailed) {
		t.Fatalf("expected plain 401 from the refresh endpoint, got %v", err)
	}
	if got := b.refreshCalls.Load(); got != 1 {
		t.Fatalf("expected the single direct call, got %d", got)
	}
	if _, _, cycles := c.RefreshState(); cycles != 0 {
		t.Fatalf("expected no refresh cycle, got %d", cycles)
	}
}

func TestAuthLookalikePathsAreIntercepted(t *testing.T) {
	b := newFakeBackend(t)
	for _, path := range []string{"/api/auth/login-history/", "/api/auth/refresh-log/"} {
		b.route(path, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, []map[string]any{{"id": 1}})
		})
	}
	c := loggedIn(t, b)

	for i, path := range []string{"/api/auth/login-history/", "/api/auth/refresh-log/"} {
		b.rotate()
		resp, err := c.Get(t.Context(), path, nil)
		if err != nil {
			t.Fatalf("%s: expected refresh and replay, got %v", path, err)
		}
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("%s: status %d", path, resp.StatusCode)
		}
		if got := b.refreshCalls.Load(); got != int64(i+1) {
			t.Fatalf("%s: refresh calls = %d, want %d", path, got, i+1)
		}
	}
}

func TestLoginViewNeverIntercepted(t *testing.T) {
	b := newFakeBackend(t)
	c := newTestClient(t, b, func(bl *Builder) {
		bl.WithNavigator(session.NewMemoryNavigator("/login?next=%2Flivros"))
	})

	_, err := c.Get(t.Context(), "/api/auth/me/", nil)
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected 401 on the login view, got %v", err)
	}
	if got := b.refreshCalls.Load(); got != 0 {
		t.Fatalf("expected no refresh on the login view, got %d", got)
	}
}

func TestRefreshTimeoutRejectsWaiters(t *testing.T) {
	b := newFakeBackend(t)
	c := newTestClient(t, b, func(bl *Builder) {
		cfg := testConfig(b.srv.URL)
		cfg.Auth.RefreshTimeout = 80 * time.Millisecond
		bl.WithConfig(cfg)
	})
	b.holdRefresh()

	const n = 3
	errs := make(chan error, n)
	start := time.Now()
	for i := 0; i < n; i++ {
		go func() {
			_, err := c.Get(context.Background(), "/api/livros/", nil)
			errs <- err
		}()
	}
	for i := 0; i < n; i++ {
		select {
		case err := <-errs:
			if !errors.Is(err, ErrRefreshTimeout) || !errors.Is(err, ErrRefreshFailed) {
				t.Fatalf("expected refresh timeout, got %v", err)
			}
		case <-time.After(3 * time.Second):
			t.Fatal("waiters were not released after the refresh timeout")
		}
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("waiters released too late: %s", elapsed)
	}
	if got := c.Metrics().Value(MetricRefreshTimeout); got != 1 {
		t.Fatalf("expected refresh_timeout=1, got %d", got)
	}
}

func TestWaiterCancelDoesNotAbortCycle(t *testing.T) {
	b := newFakeBackend(t)
	b.route("/api/livros/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []any{})
	})
	c := loggedIn(t, b)
	b.rotate()
	release := b.holdRefresh()

	ctx, cancel := context.WithCancel(context.Background())
	cancelled := make(chan error, 1)
	go func() {
		_, err := c.Get(ctx, "/api/livros/", nil)
		cancelled <- err
	}()
	patient := make(chan error, 1)
	go func() {
		_, err := c.Get(context.Background(), "/api/livros/", nil)
		patient <- err
	}()

	waitFor(t, "both callers queued", func() bool {
		_, queued, _ := c.RefreshState()
		return queued == 2
	})
	cancel()
	if err := <-cancelled; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	release()
	if err := <-patient; err != nil {
		t.Fatalf("expected remaining caller to be replayed, got %v", err)
	}
	waitFor(t, "coordinator idle", func() bool {
		state, _, _ := c.RefreshState()
		return state == "IDLE"
	})
}

func TestSequentialCyclesAfterIdle(t *testing.T) {
	b := newFakeBackend(t)
	b.route("/api/livros/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []any{})
	})
	c := loggedIn(t, b)

	for i := 0; i < 3; i++ {
		b.rotate()
		if _, err := c.Get(t.Context(), "/api/livros/", nil); err != nil {
			t.Fatalf("round %d: %v", i, err)
		}
	}
	if _, _, cycles := c.RefreshState(); cycles != 3 {
		t.Fatalf("expected a fresh cycle per expiry, got %d", cycles)
	}
}

func TestNonUnauthorizedErrorsPassThrough(t *testing.T) {
	b := newFakeBackend(t)
	b.route("/api/emprestimos/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string][]string{"livro": {"Livro indisponível"}})
	})
	c := loggedIn(t, b)

	_, err := c.Post(t.Context(), "/api/emprestimos/", map[string]any{"livro": "A1"})
	if !errors.Is(err, ErrBadRequest) {
		t.Fatalf("expected ErrBadRequest, got %v", err)
	}
	var herr *HTTPError
	if !errors.As(err, &herr) || herr.Detail() != "livro: Livro indisponível" {
		t.Fatalf("unexpected detail: %v", err)
	}
	if herr.RequestID == "" {
		t.Fatal("expected a request id on the error")
	}
	if b.refreshCalls.Load() != 0 {
		t.Fatal("400 must not trigger a refresh")
	}
}

func TestResolveMergesQueryAndKeepsAbsoluteCursor(t *testing.T) {
	c := &Client{}
	c.baseURL, _ = url.Parse("http://backend:8000/base/")

	u, err := c.resolve(&Request{Path: "/api/livros/?page=2", Query: url.Values{"search": {"dom casmurro"}}})
	if err != nil {
		t.Fatal(err)
	}
	if u.String() != "http://backend:8000/base/api/livros/?page=2&search=dom+casmurro" {
		t.Fatalf("unexpected URL %s", u)
	}

	u, err = c.resolve(&Request{Path: "http://other:9000/api/livros/?page=3"})
	if err != nil {
		t.Fatal(err)
	}
	if u.String() != "http://other:9000/api/livros/?page=3" {
		t.Fatalf("absolute cursor must be kept, got %s", u)
	}
}

func TestDoRejectsInvalidRequests(t *testing.T) {
	b := newFakeBackend(t)
	c := newTestClient(t, b)

	if _, err := c.Do(t.Context(), &Request{Path: "/x"}); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
	var nilClient *Client
	if _, err := nilClient.Get(t.Context(), "/x", nil); !errors.Is(err, ErrClientNotReady) {
		t.Fatalf("expected ErrClientNotReady, got %v", err)
	}
}

func TestRateLimiterThrottlesRequests(t *testing.T) {
	b := newFakeBackend(t)
	b.route("/api/livros/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []any{})
	})
	c := loggedIn(t, b, func(bl *Builder) {
		cfg := testConfig(b.srv.URL)
		cfg.RateLimit = RateLimitConfig{Enabled: true, RPS: 1, Burst: 1}
		bl.WithConfig(cfg)
	})

	// login and me drained the single token.
	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()
	_, err := c.Get(ctx, "/api/livros/", nil)
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if c.Metrics().Value(MetricRateLimited) == 0 {
		t.Fatal("expected rate_limited metric")
	}
}
