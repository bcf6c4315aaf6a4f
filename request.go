package goSala

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// Request describes one backend call. A descriptor is replayed at most once:
// the client marks it after the first 401 and a marked descriptor never
// takes part in another refresh cycle.
type Request struct {
	Method string
	// Path is relative to HTTPConfig.BaseURL, or an absolute URL such as a
	// pagination cursor, which is used verbatim.
	Path   string
	Query  url.Values
	Body   []byte
	Header http.Header

	retried bool
}

// NewJSONRequest builds a request whose body is the JSON encoding of in.
// A nil in produces a request without body.
func NewJSONRequest(method, path string, in any) (*Request, error) {
	req := &Request{Method: method, Path: path}
	if in == nil {
		return req, nil
	}
	body, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("%w: encode body: %v", ErrInvalidRequest, err)
	}
	req.Body = body
	req.Header = http.Header{"Content-Type": []string{"application/json"}}
	return req, nil
}

// Retried reports whether the descriptor already went through a refresh
// cycle.
func (r *Request) Retried() bool {
	return r != nil && r.retried
}

// Response is a fully read 2xx answer.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	RequestID  string
}

// Decode unmarshals the JSON body into v. An empty body leaves v untouched.
func (r *Response) Decode(v any) error {
	if r == nil || len(bytes.TrimSpace(r.Body)) == 0 || v == nil {
		return nil
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return nil
}
