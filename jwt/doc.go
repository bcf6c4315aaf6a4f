// Package jwt reads the claims of backend-issued access tokens without
// verifying their signature.
//
// The client never holds the signing key. Decoding is used only to tell when a
// cookie-held token has expired (route guard, CLI status), never to grant
// access: the backend verifies every token it receives.
package jwt
