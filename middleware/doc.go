// Package middleware guards the protected views of a UI shell served over
// net/http.
//
// # Guards
//
//   - [Guard] redirects requests for protected paths to the login view when the
//     session cookie is missing, or when the access token has expired and no
//     refresh token is left to renew it.
//
// The guard only checks for the presence and expiry of the session cookies. It
// is a navigation aid: the backend still authenticates every API call.
//
// # What this package must NOT do
//
//   - Verify token signatures or make authorization decisions.
//   - Call the backend (no refresh from inside the guard).
package middleware
