package goSala

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/MrEthical07/goSala/cookiestore"
	"github.com/MrEthical07/goSala/session"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestLoginLoadsUserAndPublishes(t *testing.T) {
	b := newFakeBackend(t)
	sess := session.NewManager()
	var kinds []session.EventKind
	sess.Subscribe(func(ev session.Event) { kinds = append(kinds, ev.Kind) })

	c := newTestClient(t, b, func(bl *Builder) { bl.WithSession(sess) })
	user, err := c.Login(t.Context(), "alice", "secret")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if user.ID != 7 || !user.Staff() {
		t.Fatalf("unexpected user %+v", user)
	}
	if !sess.IsAuthenticated() || !sess.HasPermission("api.add_emprestimo") {
		t.Fatal("expected session manager to hold the user")
	}
	if len(kinds) != 2 || kinds[0] != session.EventUserLoaded || kinds[1] != session.EventLogin {
		t.Fatalf("unexpected events %v", kinds)
	}
	if c.Metrics().Value(MetricLogin) != 1 {
		t.Fatal("expected login metric")
	}
}

func TestLoginInvalidCredentialsNotIntercepted(t *testing.T) {
	b := newFakeBackend(t)
	c := newTestClient(t, b)

	_, err := c.Login(t.Context(), "alice", "wrong")
	if !errors.Is(err, ErrInvalidCredentials) || !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	if b.refreshCalls.Load() != 0 {
		t.Fatal("a rejected login must not trigger a refresh")
	}
	if c.Metrics().Value(MetricLoginFailure) != 1 {
		t.Fatal("expected login_failure metric")
	}
	if _, err := c.Login(t.Context(), "", ""); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest for empty credentials, got %v", err)
	}
}

func TestLogoutAlwaysEndsSession(t *testing.T) {
	b := newFakeBackend(t)
	nav := session.NewMemoryNavigator("/dashboard")
	c := loggedIn(t, b, func(bl *Builder) { bl.WithNavigator(nav) })

	var reason string
	c.Session().Subscribe(func(ev session.Event) {
		if ev.Kind == session.EventLogout {
			reason = ev.Reason
		}
	})

	if err := c.Logout(t.Context()); err != nil {
		t.Fatalf("logout failed: %v", err)
	}
	if reason != session.ReasonUserLogout {
		t.Fatalf("expected user_logout, got %q", reason)
	}
	if c.Session().IsAuthenticated() {
		t.Fatal("expected user to be cleared")
	}
	if nav.CurrentPath() != "/login" {
		t.Fatalf("expected navigation to /login, got %q", nav.CurrentPath())
	}

	// backend down: the local session still ends and the error surfaces.
	c2 := loggedIn(t, b)
	b.srv.Close()
	if err := c2.Logout(t.Context()); err == nil {
		t.Fatal("expected transport error from logout")
	}
	if c2.Session().IsAuthenticated() {
		t.Fatal("expected local logout despite the backend error")
	}
}

func TestMeFailureClearsUser(t *testing.T) {
	b := newFakeBackend(t)
	c := loggedIn(t, b)

	b.refreshFail.Store(true)
	b.rotate()
	if _, err := c.Me(t.Context()); err == nil {
		t.Fatal("expected me to fail")
	}
	if c.Session().User() != nil {
		t.Fatal("expected user to be cleared")
	}
}

func TestRefreshSessionExplicit(t *testing.T) {
	b := newFakeBackend(t)
	c := loggedIn(t, b)

	if err := c.RefreshSession(t.Context()); err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	if b.refreshCalls.Load() != 1 {
		t.Fatalf("expected one refresh call, got %d", b.refreshCalls.Load())
	}
	if c.Metrics().Value(MetricRefreshSuccess) != 1 {
		t.Fatal("expected refresh_success metric")
	}
}

func TestFileCookiesSurviveRestartAndLogoutClearsThem(t *testing.T) {
	b := newFakeBackend(t)
	store := cookiestore.NewFileStore(filepath.Join(t.TempDir(), "cookies.json"))
	withStore := func(bl *Builder) { bl.WithCookieStore(store) }

	loggedIn(t, b, withStore)

	restarted := newTestClient(t, b, withStore)
	if _, err := restarted.Me(t.Context()); err != nil {
		t.Fatalf("expected persisted session, got %v", err)
	}
	if _, ok := restarted.SessionCookie("access_token"); !ok {
		t.Fatal("expected access cookie to be visible for status reporting")
	}

	if err := restarted.Logout(t.Context()); err != nil {
		t.Fatalf("logout failed: %v", err)
	}
	records, err := store.Load(t.Context(), cookiestore.Key(restarted.BaseURL()))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected no persisted cookies after logout, got %v", records)
	}
}

func TestRedisCookiesSurviveRestart(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	b := newFakeBackend(t)
	withRedis := func(bl *Builder) { bl.WithRedis(rdb) }
	loggedIn(t, b, withRedis)

	if len(mr.Keys()) != 1 {
		t.Fatalf("expected one redis key, got %v", mr.Keys())
	}
	mr.FastForward(time.Minute)

	restarted := newTestClient(t, b, withRedis)
	if _, err := restarted.Me(t.Context()); err != nil {
		t.Fatalf("expected persisted session, got %v", err)
	}
}

func TestAuditTrailOfSession(t *testing.T) {
	b := newFakeBackend(t)
	sink := NewChannelSink(16)
	c := loggedIn(t, b, func(bl *Builder) {
		cfg := testConfig(b.srv.URL)
		cfg.Audit = AuditConfig{Enabled: true, BufferSize: 16}
		bl.WithConfig(cfg).WithAuditSink(sink)
	})

	b.rotate()
	if _, err := c.Me(t.Context()); err != nil {
		t.Fatalf("me failed: %v", err)
	}
	_ = c.Logout(t.Context())

	want := []string{AuditLogin, AuditRefreshSuccess, AuditLogout}
	for _, w := range want {
		select {
		case ev := <-sink.Events():
			if ev.EventType != w {
				t.Fatalf("expected %s, got %s", w, ev.EventType)
			}
			if ev.Timestamp.IsZero() {
				t.Fatal("expected timestamp")
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("missing audit event %s", w)
		}
	}
}
