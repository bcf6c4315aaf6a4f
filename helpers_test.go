package goSala

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrEthical07/goSala/session"
)

// fakeBackend is a minimal cookie authenticated API. The access cookie is
// valid while it equals the current token; refresh rotates the token.
type fakeBackend struct {
	t   testing.TB
	srv *httptest.Server

	mu        sync.Mutex
	token     string
	rotations int
	paths     []string

	refreshCalls atomic.Int64
	// refreshGate, when set, blocks the refresh handler until it is closed or
	// the request ends.
	refreshGate chan struct{}
	refreshFail atomic.Bool
	// denyAll rejects every protected call even with a fresh token.
	denyAll atomic.Bool

	routes map[string]http.HandlerFunc
}

func newFakeBackend(t testing.TB) *fakeBackend {
	t.Helper()

	b := &fakeBackend{t: t, token: "tok-0", routes: map[string]http.HandlerFunc{}}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/login/", b.handleLogin)
	mux.HandleFunc("/api/auth/refresh/", b.handleRefresh)
	mux.HandleFunc("/api/auth/logout/", b.handleLogout)
	mux.HandleFunc("/", b.handleProtected)

	b.srv = httptest.NewServer(mux)
	t.Cleanup(func() {
		b.mu.Lock()
		if b.refreshGate != nil {
			select {
			case <-b.refreshGate:
			default:
				close(b.refreshGate)
			}
		}
		b.mu.Unlock()
		b.srv.Close()
	})
	return b
}

func (b *fakeBackend) record(r *http.Request) {
	b.mu.Lock()
	b.paths = append(b.paths, r.Method+" "+r.URL.Path)
	b.mu.Unlock()
}

func (b *fakeBackend) Paths() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.paths...)
}

// route registers a handler for an exact protected path.
func (b *fakeBackend) route(path string, h http.HandlerFunc) {
	b.mu.Lock()
	b.routes[path] = h
	b.mu.Unlock()
}

// holdRefresh makes the next refresh calls block until the returned
// function is called.
func (b *fakeBackend) holdRefresh() (release func()) {
	gate := make(chan struct{})
	b.mu.Lock()
	b.refreshGate = gate
	b.mu.Unlock()
	var once sync.Once
	return func() { once.Do(func() { close(gate) }) }
}

func (b *fakeBackend) currentToken() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.token
}

func (b *fakeBackend) handleLogin(w http.ResponseWriter, r *http.Request) {
	b.record(r)
	var in struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	_ = json.NewDecoder(r.Body).Decode(&in)
	if in.Username != "alice" || in.Password != "secret" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Credenciais inválidas"})
		return
	}
	setTokenCookie(w, "access_token", b.currentToken())
	setTokenCookie(w, "refresh_token", "refresh-1")
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (b *fakeBackend) handleRefresh(w http.ResponseWriter, r *http.Request) {
	b.record(r)
	b.refreshCalls.Add(1)

	b.mu.Lock()
	gate := b.refreshGate
	b.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-r.Context().Done():
			return
		}
	}

	if b.refreshFail.Load() {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Refresh token inválido"})
		return
	}

	b.mu.Lock()
	b.rotations++
	b.token = "tok-" + strings.Repeat("r", b.rotations)
	tok := b.token
	b.mu.Unlock()

	setTokenCookie(w, "access_token", tok)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (b *fakeBackend) handleLogout(w http.ResponseWriter, r *http.Request) {
	b.record(r)
	for _, name := range []string{"access_token", "refresh_token"} {
		http.SetCookie(w, &http.Cookie{Name: name, Value: "", Path: "/", MaxAge: -1})
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (b *fakeBackend) handleProtected(w http.ResponseWriter, r *http.Request) {
	b.record(r)
	c, err := r.Cookie("access_token")
	if err != nil || c.Value != b.currentToken() || b.denyAll.Load() {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Token inválido"})
		return
	}

	b.mu.Lock()
	h, ok := b.routes[r.URL.Path]
	b.mu.Unlock()
	switch {
	case ok:
		h(w, r)
	case r.URL.Path == "/api/auth/me/":
		writeJSON(w, http.StatusOK, testUser())
	default:
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Não encontrado."})
	}
}

// rotate invalidates the current access cookie without touching the
// client, as an expiry would.
func (b *fakeBackend) rotate() {
	b.mu.Lock()
	b.token += "-expired"
	b.mu.Unlock()
}

func setTokenCookie(w http.ResponseWriter, name, value string) {
	http.SetCookie(w, &http.Cookie{Name: name, Value: value, Path: "/", HttpOnly: true})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func testUser() User {
	return User{
		ID:          7,
		Email:       "alice@example.com",
		Name:        "Alice",
		Roles:       []string{"gerente"},
		IsStaff:     true,
		Permissions: []string{"api.add_emprestimo"},
	}
}

func testConfig(baseURL string) Config {
	cfg := DefaultConfig()
	cfg.HTTP.BaseURL = baseURL
	cfg.HTTP.Timeout = 5 * time.Second
	cfg.Auth.RefreshTimeout = 2 * time.Second
	cfg.Log.Level = "error"
	return cfg
}

type clientOption func(*Builder)

func newTestClient(t testing.TB, b *fakeBackend, opts ...clientOption) *Client {
	t.Helper()
	builder := New().
		WithConfig(testConfig(b.srv.URL)).
		WithLogger(discardLogger()).
		WithNavigator(session.NewMemoryNavigator("/livros"))
	for _, opt := range opts {
		opt(builder)
	}
	c, err := builder.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(c.Close)
	return c
}

// loggedIn returns a client holding a valid session.
func loggedIn(t testing.TB, b *fakeBackend, opts ...clientOption) *Client {
	t.Helper()
	c := newTestClient(t, b, opts...)
	if _, err := c.Login(t.Context(), "alice", "secret"); err != nil {
		t.Fatalf("login failed: %v", err)
	}
	return c
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (b *syncBuffer) Contains(s string) bool {
	return strings.Contains(b.String(), s)
}
