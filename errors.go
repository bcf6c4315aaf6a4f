package goSala

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
)

var (
	// ErrUnauthorized matches any 401 answer from the backend, including the one
	// surfaced after a replay that was rejected again.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden matches 403 answers.
	ErrForbidden = errors.New("forbidden")
	// ErrNotFound matches 404 answers.
	ErrNotFound = errors.New("not found")
	// ErrBadRequest matches 400 answers (backend validation errors).
	ErrBadRequest = errors.New("bad request")
	// ErrServer matches any 5xx answer.
	ErrServer = errors.New("server error")
	// ErrRefreshFailed is delivered to every caller queued behind a failed
	// session refresh cycle.
	ErrRefreshFailed = errors.New("session refresh failed")
	// ErrRefreshTimeout is delivered when the refresh call exceeds
	// Auth.RefreshTimeout.
	ErrRefreshTimeout = errors.New("session refresh timed out")
	// ErrRateLimited is returned when the outbound limiter could not grant a
	// token before the caller's context ended.
	ErrRateLimited = errors.New("client rate limited")
	// ErrClientNotReady is returned by methods called on a nil or unbuilt client.
	ErrClientNotReady = errors.New("client not initialized")
	// ErrInvalidConfig wraps every configuration validation failure.
	ErrInvalidConfig = errors.New("invalid config")
	// ErrInvalidRequest is returned for malformed request descriptors.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrInvalidCredentials is returned by Login when the backend rejects the
	// username/password pair.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrDecode wraps JSON decoding failures of response bodies.
	ErrDecode = errors.New("decode response")
)

// HTTPError is the error returned for every non-2xx response.
type HTTPError struct {
	StatusCode int
	Method     string
	URL        string
	RequestID  string
	Body       []byte
}

func (e *HTTPError) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := fmt.Sprintf("%s %s: status %d", e.Method, e.URL, e.StatusCode)
	if d := e.Detail(); d != "" {
		msg += ": " + d
	}
	return msg
}

// Is maps the status code onto the package sentinels so callers can write
// errors.Is(err, goSala.ErrUnauthorized).
func (e *HTTPError) Is(target error) bool {
	if e == nil {
		return false
	}
	switch target {
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized
	case ErrForbidden:
		return e.StatusCode == http.StatusForbidden
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case ErrBadRequest:
		return e.StatusCode == http.StatusBadRequest
	case ErrServer:
		return e.StatusCode >= 500
	}
	return false
}

// Detail extracts the human readable message from a DRF error body.
// It understands {"detail": "..."}, {"error": "..."} and field error maps
// such as {"livro": ["Livro indisponível"]}. Unknown shapes yield "".
func (e *HTTPError) Detail() string {
	if e == nil || len(e.Body) == 0 {
		return ""
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(e.Body, &obj); err != nil {
		return ""
	}
	for _, key := range []string{"detail", "error", "message"} {
		if raw, ok := obj[key]; ok {
			var s string
			if json.Unmarshal(raw, &s) == nil && s != "" {
				return s
			}
		}
	}

	var parts []string
	for field, raw := range obj {
		var list []string
		var single string
		switch {
		case json.Unmarshal(raw, &list) == nil && len(list) > 0:
			parts = append(parts, field+": "+strings.Join(list, ", "))
		case json.Unmarshal(raw, &single) == nil && single != "":
			parts = append(parts, field+": "+single)
		}
	}
	if len(parts) == 0 {
		return ""
	}
	slices.Sort(parts)
	return strings.Join(parts, "; ")
}

// StatusCode returns the HTTP status carried by err, or 0 when err is not an
// *HTTPError.
func StatusCode(err error) int {
	var herr *HTTPError
	if errors.As(err, &herr) {
		return herr.StatusCode
	}
	return 0
}
