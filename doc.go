// Package goSala is the API client of the Sala de Leitura reading room
// system: books (livros), members (associados), loans (empréstimos) and the
// staff dashboard.
//
// The backend keeps the session in HTTP-only cookies. A [Client] holds them in
// its cookie jar, optionally persisted through [cookiestore], and never reads
// token values to authorize anything.
//
// # Session refresh
//
// When a request is answered with 401, the client runs one refresh of the
// access cookie and replays the request once. Concurrent 401s share the same
// refresh call: callers queue in arrival order and all of them observe the
// same outcome. A failed refresh rejects every queued caller, publishes a
// single logout on the [session.Manager] and navigates to the login route.
//
// Requests to the refresh or login endpoints, replays, and requests issued
// while the navigator shows the login view are never intercepted.
//
// # Construction
//
//	client, err := goSala.New().
//		WithConfig(goSala.ConfigFromEnv()).
//		WithCookieStore(cookiestore.NewFileStore(cookiestore.DefaultFilePath())).
//		Build()
//
// Clients are safe for concurrent use once built.
package goSala
