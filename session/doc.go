// Package session holds the client-side view of the authenticated user and the
// logout bus shared by the HTTP client and the UI shell.
//
// # Architecture boundaries
//
// [Manager] is the single owner of "who is logged in". The HTTP client publishes
// [EventLogout] when a refresh cycle fails; shells subscribe to print a notice
// and leave protected views. [Navigator] is the seam through which the client
// reads the current view and forces navigation to the login route.
//
// # What this package must NOT do
//
//   - Import goSala or any transport package (no upward imports).
//   - Hold tokens or cookie values. The session is cookie based and tokens stay
//     inside the cookie jar.
//   - Make authorization decisions. Role and permission helpers only drive UI
//     visibility; the backend enforces access.
package session
