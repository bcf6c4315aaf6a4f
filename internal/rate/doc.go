// Package rate throttles outbound requests with per-host token buckets.
//
// # Bucket semantics
//
// One golang.org/x/time/rate limiter per key (the request host), created on
// first use with the configured rate and burst. Wait blocks until a token is
// available or the context ends.
//
// # What this package must NOT do
//
//   - Retry or reorder requests.
//   - Be imported outside the goSala module.
package rate
