package cookiestore

import (
	"context"
	"errors"
	"net/http"
	"time"
)

var (
	// ErrNilStore is returned when a Jar is built without a store.
	ErrNilStore = errors.New("nil cookie store")
	// ErrStoreUnavailable wraps backend failures of a Store.
	ErrStoreUnavailable = errors.New("cookie store unavailable")
)

// Record is the persisted form of one cookie.
type Record struct {
	Name     string    `json:"name"`
	Value    string    `json:"value"`
	Path     string    `json:"path,omitempty"`
	Domain   string    `json:"domain,omitempty"`
	Expires  time.Time `json:"expires,omitzero"`
	Secure   bool      `json:"secure,omitempty"`
	HTTPOnly bool      `json:"http_only,omitempty"`
}

// Store persists the cookies of one base URL under key.
// Load of an unknown key returns an empty slice and no error.
type Store interface {
	Load(ctx context.Context, key string) ([]Record, error)
	Save(ctx context.Context, key string, records []Record) error
	Clear(ctx context.Context, key string) error
}

func recordFromCookie(c *http.Cookie, now time.Time) Record {
	r := Record{
		Name:     c.Name,
		Value:    c.Value,
		Path:     c.Path,
		Domain:   c.Domain,
		Expires:  c.Expires,
		Secure:   c.Secure,
		HTTPOnly: c.HttpOnly,
	}
	if c.MaxAge > 0 {
		r.Expires = now.Add(time.Duration(c.MaxAge) * time.Second)
	}
	return r
}

func (r Record) cookie() *http.Cookie {
	return &http.Cookie{
		Name:     r.Name,
		Value:    r.Value,
		Path:     r.Path,
		Domain:   r.Domain,
		Expires:  r.Expires,
		Secure:   r.Secure,
		HttpOnly: r.HTTPOnly,
	}
}

func (r Record) expired(now time.Time) bool {
	return !r.Expires.IsZero() && !r.Expires.After(now)
}

// deletes reports whether a Set-Cookie header removes the cookie.
func deletes(c *http.Cookie, now time.Time) bool {
	if c.MaxAge < 0 {
		return true
	}
	return c.MaxAge == 0 && !c.Expires.IsZero() && !c.Expires.After(now)
}
