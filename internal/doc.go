// Package internal contains helpers that are private to goSala.
//
// # Sub-packages
//
//   - env: typed reads of SALA_* environment variables
//   - rate: per-host request pacing on top of golang.org/x/time/rate
//
// # What this package must NOT do
//
//   - Export types that appear in the public goSala API.
//   - Be imported by any package outside the goSala module.
package internal
