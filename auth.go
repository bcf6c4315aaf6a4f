package goSala

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/MrEthical07/goSala/session"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login authenticates against the backend. The backend answers with the
// session cookies, which land in the client's jar. On success the user is
// loaded through Me and EventLogin is published.
//
// A 401 from the login endpoint is never intercepted and is returned as
// ErrInvalidCredentials.
func (c *Client) Login(ctx context.Context, username, password string) (*User, error) {
	if c == nil || c.http == nil {
		return nil, ErrClientNotReady
	}
	if username == "" || password == "" {
		return nil, fmt.Errorf("%w: username and password are required", ErrInvalidRequest)
	}

	_, err := c.Post(ctx, c.config.Auth.LoginPath, loginRequest{
		Username: username,
		Password: password,
	})
	if err != nil {
		c.metrics.Inc(MetricLoginFailure)
		c.emitAudit(ctx, AuditEvent{
			EventType: AuditLoginFailed,
			Username:  username,
			Error:     err.Error(),
		})
		if errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrBadRequest) {
			return nil, fmt.Errorf("%w: %w", ErrInvalidCredentials, err)
		}
		return nil, err
	}

	user, err := c.Me(ctx)
	if err != nil {
		return nil, err
	}

	c.metrics.Inc(MetricLogin)
	c.session.Publish(session.Event{Kind: session.EventLogin, User: user})
	c.emitAudit(ctx, AuditEvent{
		EventType: AuditLogin,
		UserID:    strconv.FormatInt(user.ID, 10),
		Username:  username,
		Success:   true,
	})
	c.log.Info("client.login", "user_id", user.ID)
	return user, nil
}

// Logout asks the backend to drop the session cookies and then ends the
// local session whatever the backend answered. The backend error, if any,
// is returned.
func (c *Client) Logout(ctx context.Context) error {
	if c == nil || c.http == nil {
		return ErrClientNotReady
	}
	_, err := c.Do(ctx, &Request{
		Method:  http.MethodPost,
		Path:    c.config.Auth.LogoutPath,
		retried: true,
	})
	c.endSession(ctx, session.ReasonUserLogout)
	return err
}

// Me loads the authenticated user and stores it in the session manager.
// A failure clears the stored user.
func (c *Client) Me(ctx context.Context) (*User, error) {
	if c == nil || c.http == nil {
		return nil, ErrClientNotReady
	}
	var user User
	if err := c.GetJSON(ctx, c.config.Auth.MePath, nil, &user); err != nil {
		c.session.SetUser(nil)
		return nil, err
	}
	c.session.Publish(session.Event{Kind: session.EventUserLoaded, User: &user})
	return &user, nil
}

// RefreshSession runs the refresh protocol explicitly. Calls made while a
// cycle is in flight join it instead of starting another one.
func (c *Client) RefreshSession(ctx context.Context) error {
	if c == nil || c.http == nil {
		return ErrClientNotReady
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return c.refresh.await(ctx)
}
