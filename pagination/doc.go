// Package pagination accumulates the pages of a DRF-style paginated list.
//
// A [Pager] loads the first page of an endpoint and appends further pages by
// following the absolute "next" cursor the server returns. It keeps the state
// a list view needs: accumulated items, server total, loading flags and a
// single error message.
//
// # What this package must NOT do
//
//   - Build cursor URLs. The server-provided cursor is fetched verbatim.
//   - Retry. Failed loads set the error state and return the error.
package pagination
