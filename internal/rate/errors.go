package rate

import "errors"

// ErrRateLimited is returned when the caller gave up waiting for a token.
var ErrRateLimited = errors.New("rate limited")
