package goSala

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/MrEthical07/goSala/cookiestore"
	"github.com/MrEthical07/goSala/internal/rate"
	"github.com/MrEthical07/goSala/session"
	"github.com/google/uuid"
)

// Client is an authenticated client of the reading room API. The session
// lives in HTTP-only cookies held by the client's jar; a 401 answer triggers
// one shared refresh of the access token, after which every affected request
// is replayed once.
//
// Clients share no state with each other and are safe for concurrent use.
type Client struct {
	config  Config
	baseURL *url.URL

	http    *http.Client
	cookies *cookiestore.Jar
	limiter *rate.Limiter
	refresh *refreshCoordinator

	session *session.Manager
	nav     session.Navigator

	audit   *auditDispatcher
	metrics *Metrics
	log     *slog.Logger
}

// Do sends req. Any non-2xx answer is returned as *HTTPError. A 401 on a
// request that is not exempt joins the refresh protocol and is replayed once
// when the refresh succeeds.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	if c == nil || c.http == nil {
		return nil, ErrClientNotReady
	}
	if req == nil || req.Method == "" || req.Path == "" {
		return nil, fmt.Errorf("%w: method and path are required", ErrInvalidRequest)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	resp, err := c.send(ctx, req)
	if err == nil || !c.shouldRefresh(req, err) {
		return resp, err
	}

	req.retried = true
	if err := c.refresh.await(ctx); err != nil {
		return nil, err
	}

	c.metrics.Inc(MetricReplay)
	resp, err = c.send(ctx, req)
	if errors.Is(err, ErrUnauthorized) {
		c.metrics.Inc(MetricReplayUnauthorized)
		c.log.Warn("client.replay.unauthorized", "method", req.Method, "path", req.Path)
		if c.config.Auth.LogoutOnReplayUnauthorized {
			c.endSession(ctx, session.ReasonReplayUnauthorized)
		}
	}
	return resp, err
}

// shouldRefresh decides whether a failed call joins the refresh protocol.
// Only first-time 401s qualify, and never for the auth endpoints themselves
// or while the shell shows the login view.
func (c *Client) shouldRefresh(req *Request, err error) bool {
	if req.retried || !errors.Is(err, ErrUnauthorized) {
		return false
	}
	if c.isAuthEndpoint(req) {
		return false
	}
	return !session.OnLoginView(c.nav, c.config.Auth.LoginRoute)
}

func (c *Client) isAuthEndpoint(req *Request) bool {
	target, err := c.resolve(req)
	if err != nil {
		return false
	}
	path := strings.TrimSuffix(target.Path, "/")
	base := strings.TrimSuffix(c.baseURL.Path, "/")
	for _, endpoint := range []string{c.config.Auth.RefreshPath, c.config.Auth.LoginPath} {
		if path == base+"/"+strings.Trim(endpoint, "/") {
			return true
		}
	}
	return false
}

func (c *Client) send(ctx context.Context, req *Request) (*Response, error) {
	target, err := c.resolve(req)
	if err != nil {
		return nil, err
	}

	if err := c.limiter.Wait(ctx, target.Host); err != nil {
		c.metrics.Inc(MetricRateLimited)
		return nil, fmt.Errorf("%w: %v", ErrRateLimited, err)
	}

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}
	hreq, err := http.NewRequestWithContext(ctx, req.Method, target.String(), body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	for k, vals := range req.Header {
		for _, v := range vals {
			hreq.Header.Add(k, v)
		}
	}
	if hreq.Header.Get("Accept") == "" {
		hreq.Header.Set("Accept", "application/json")
	}
	if body != nil && hreq.Header.Get("Content-Type") == "" {
		hreq.Header.Set("Content-Type", "application/json")
	}
	if ua := c.config.HTTP.UserAgent; ua != "" && hreq.Header.Get("User-Agent") == "" {
		hreq.Header.Set("User-Agent", ua)
	}
	var requestID string
	if h := c.config.HTTP.RequestIDHeader; h != "" {
		requestID = hreq.Header.Get(h)
		if requestID == "" {
			requestID = uuid.NewString()
			hreq.Header.Set(h, requestID)
		}
	}

	c.metrics.Inc(MetricRequest)
	start := time.Now()
	hres, err := c.http.Do(hreq)
	elapsed := time.Since(start)
	c.metrics.Observe(MetricRequestLatency, elapsed)
	if err != nil {
		c.metrics.Inc(MetricRequestFailure)
		c.log.Warn("client.request.fail",
			"method", req.Method,
			"path", target.Path,
			"request_id", requestID,
			"error", err,
		)
		return nil, fmt.Errorf("%s %s: %w", req.Method, target.Path, err)
	}
	defer hres.Body.Close()

	data, err := io.ReadAll(io.LimitReader(hres.Body, c.config.HTTP.MaxBodyBytes))
	if err != nil {
		c.metrics.Inc(MetricRequestFailure)
		return nil, fmt.Errorf("%s %s: read body: %w", req.Method, target.Path, err)
	}

	c.log.Debug("client.request",
		"method", req.Method,
		"path", target.Path,
		"status", hres.StatusCode,
		"duration_ms", elapsed.Milliseconds(),
		"request_id", requestID,
		"replay", req.retried,
	)

	if hres.StatusCode < 200 || hres.StatusCode > 299 {
		if hres.StatusCode == http.StatusUnauthorized {
			c.metrics.Inc(MetricUnauthorized)
		}
		return nil, &HTTPError{
			StatusCode: hres.StatusCode,
			Method:     req.Method,
			URL:        target.RequestURI(),
			RequestID:  requestID,
			Body:       data,
		}
	}

	return &Response{
		StatusCode: hres.StatusCode,
		Header:     hres.Header,
		Body:       data,
		RequestID:  requestID,
	}, nil
}

// resolve joins a relative path onto the base URL and merges req.Query into
// the query string. Absolute URLs are kept as given.
func (c *Client) resolve(req *Request) (*url.URL, error) {
	rel, err := url.Parse(req.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	var u *url.URL
	if rel.IsAbs() {
		u = rel
	} else {
		u = &url.URL{
			Scheme:   c.baseURL.Scheme,
			Host:     c.baseURL.Host,
			Path:     strings.TrimSuffix(c.baseURL.Path, "/") + "/" + strings.TrimPrefix(rel.Path, "/"),
			RawQuery: rel.RawQuery,
		}
	}

	if len(req.Query) > 0 {
		q := u.Query()
		for k, vals := range req.Query {
			for _, v := range vals {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}
	return u, nil
}

// callRefresh is the single network call of a refresh cycle. The descriptor
// is pre-marked so a 401 here can never start another cycle.
func (c *Client) callRefresh(ctx context.Context) error {
	c.metrics.Inc(MetricRefreshStarted)
	c.log.Info("client.refresh.start")
	_, err := c.send(ctx, &Request{
		Method:  http.MethodPost,
		Path:    c.config.Auth.RefreshPath,
		retried: true,
	})
	return err
}

func (c *Client) settleRefresh(err error, queued int) {
	c.metrics.Add(MetricRefreshQueued, uint64(queued))
	meta := map[string]string{"queued": strconv.Itoa(queued)}

	if err == nil {
		c.metrics.Inc(MetricRefreshSuccess)
		c.log.Info("client.refresh.ok", "queued", queued)
		c.audit.Offer(AuditEvent{
			EventType: AuditRefreshSuccess,
			Success:   true,
			Metadata:  meta,
		})
		return
	}

	if errors.Is(err, ErrRefreshTimeout) {
		c.metrics.Inc(MetricRefreshTimeout)
	}
	c.metrics.Inc(MetricRefreshFailure)
	c.log.Warn("client.refresh.fail", "queued", queued, "error", err)
	c.audit.Offer(AuditEvent{
		EventType: AuditRefreshFailure,
		Error:     err.Error(),
		Metadata:  meta,
	})
	// Runs on the refresh goroutine before waiters are released: audit
	// events must not wait on the sink here.
	c.audit.Offer(c.closeSession(context.Background(), session.ReasonRefreshFailed))
}

// endSession ends the session on behalf of a caller and audits it with the
// caller's context.
func (c *Client) endSession(ctx context.Context, reason string) {
	c.emitAudit(ctx, c.closeSession(ctx, reason))
}

// closeSession broadcasts logout, drops persisted cookies and sends the shell
// to the login view. It returns the audit event describing the end.
func (c *Client) closeSession(ctx context.Context, reason string) AuditEvent {
	user := c.session.User()

	c.metrics.Inc(MetricLogout)
	c.session.Publish(session.Event{Kind: session.EventLogout, Reason: reason})

	if c.cookies != nil {
		clearCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 3*time.Second)
		if err := c.cookies.Clear(clearCtx); err != nil {
			c.log.Warn("client.cookies.clear.fail", "error", err)
		}
		cancel()
	}
	if c.nav != nil {
		c.nav.Navigate(c.config.Auth.LoginRoute)
	}

	ev := AuditEvent{
		EventType: AuditSessionExpired,
		Metadata:  map[string]string{"reason": reason},
	}
	if reason == session.ReasonUserLogout {
		ev.EventType = AuditLogout
		ev.Success = true
	}
	if user != nil {
		ev.UserID = strconv.FormatInt(user.ID, 10)
		ev.Username = user.Name
	}
	c.log.Info("client.session.end", "reason", reason)
	return ev
}

func (c *Client) emitAudit(ctx context.Context, ev AuditEvent) {
	c.audit.Emit(ctx, ev)
}

/*
====================================
CONVENIENCE METHODS
====================================
*/

// Get sends a GET with optional query parameters.
func (c *Client) Get(ctx context.Context, path string, query url.Values) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodGet, Path: path, Query: query})
}

// Post sends body encoded as JSON. A nil body sends no payload.
func (c *Client) Post(ctx context.Context, path string, body any) (*Response, error) {
	return c.sendBody(ctx, http.MethodPost, path, body)
}

func (c *Client) Put(ctx context.Context, path string, body any) (*Response, error) {
	return c.sendBody(ctx, http.MethodPut, path, body)
}

func (c *Client) Patch(ctx context.Context, path string, body any) (*Response, error) {
	return c.sendBody(ctx, http.MethodPatch, path, body)
}

func (c *Client) Delete(ctx context.Context, path string) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodDelete, Path: path})
}

func (c *Client) sendBody(ctx context.Context, method, path string, body any) (*Response, error) {
	req, err := NewJSONRequest(method, path, body)
	if err != nil {
		return nil, err
	}
	return c.Do(ctx, req)
}

// GetJSON performs a GET and decodes the answer into out.
func (c *Client) GetJSON(ctx context.Context, path string, query url.Values, out any) error {
	resp, err := c.Get(ctx, path, query)
	if err != nil {
		return err
	}
	return resp.Decode(out)
}

// SendJSON sends in as JSON with method and decodes the answer into out,
// which may be nil.
func (c *Client) SendJSON(ctx context.Context, method, path string, in, out any) error {
	resp, err := c.sendBody(ctx, method, path, in)
	if err != nil {
		return err
	}
	return resp.Decode(out)
}

/*
====================================
ACCESSORS
====================================
*/

// Session returns the session manager shared with the shell.
func (c *Client) Session() *session.Manager { return c.session }

// Navigator returns the navigator the client reads the current view from.
func (c *Client) Navigator() session.Navigator { return c.nav }

// Config returns a copy of the client configuration.
func (c *Client) Config() Config { return cloneConfig(c.config) }

// BaseURL returns a copy of the API base URL.
func (c *Client) BaseURL() *url.URL {
	u := *c.baseURL
	return &u
}

// Metrics returns the live metrics of the client.
func (c *Client) Metrics() *Metrics { return c.metrics }

// MetricsSnapshot is read by the exporters.
func (c *Client) MetricsSnapshot() MetricsSnapshot { return c.metrics.Snapshot() }

// AuditDropped counts audit events lost to a full buffer.
func (c *Client) AuditDropped() uint64 { return c.audit.Dropped() }

// SessionCookie returns the named cookie of the API host when the client
// persists cookies. Used to report token expiry, never to send tokens.
func (c *Client) SessionCookie(name string) (*http.Cookie, bool) {
	if c == nil || c.cookies == nil {
		return nil, false
	}
	return c.cookies.Cookie(name)
}

// RefreshState reports the coordinator state ("IDLE" or "REFRESHING"), the
// number of queued callers and the number of cycles started so far.
func (c *Client) RefreshState() (state string, queued int, cycles uint64) {
	s, q, n := c.refresh.snapshot()
	return s.String(), q, n
}

// Close flushes and stops the audit dispatcher.
func (c *Client) Close() {
	if c == nil {
		return
	}
	c.audit.Close()
}
