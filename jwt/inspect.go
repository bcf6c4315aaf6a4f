package jwt

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrMalformed is returned for values that are not a decodable JWT.
var ErrMalformed = errors.New("malformed token")

// ID is a claim that the backend emits either as a JSON number or a string.
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*id = ID(n.String())
	return nil
}

// Claims are the fields of a SimpleJWT access or refresh token.
type Claims struct {
	TokenType string `json:"token_type,omitempty"`
	UserID    ID     `json:"user_id,omitempty"`
	jwt.RegisteredClaims
}

// Expiry returns the exp claim, or the zero time when absent.
func (c Claims) Expiry() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

// Expired reports whether exp is at or before now. A token without exp never
// expires.
func (c Claims) Expired(now time.Time) bool {
	exp := c.Expiry()
	return !exp.IsZero() && !exp.After(now)
}

// Remaining is the time left before exp, zero when expired or absent.
func (c Claims) Remaining(now time.Time) time.Duration {
	exp := c.Expiry()
	if exp.IsZero() || !exp.After(now) {
		return 0
	}
	return exp.Sub(now)
}

// Inspect decodes raw without verifying the signature.
func Inspect(raw string) (Claims, error) {
	var claims Claims
	if raw == "" {
		return claims, ErrMalformed
	}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(raw, &claims); err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return claims, nil
}
