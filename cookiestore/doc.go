// Package cookiestore provides an http.CookieJar whose cookies survive process
// restarts.
//
// The backend keeps the session in HTTP-only cookies (access_token and
// refresh_token). [Jar] wraps net/http/cookiejar for matching and delegates
// persistence of the base host's cookies to a [Store]: [FileStore] for a single
// user shell, [RedisStore] when several processes share a session.
//
// # What this package must NOT do
//
//   - Interpret cookie values. Callers that need the token expiry decode it
//     themselves (see package jwt).
//   - Persist cookies of hosts other than the configured base URL.
package cookiestore
