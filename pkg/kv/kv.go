// Package kv provides the small persistent key-value capability the session
// layer writes through. Backends cover in-memory (tests, degraded mode),
// flat files, SQLite, and Redis; all of them store opaque string values
// under fixed string keys.
package kv

import "context"

// Store is a durable string-to-string map.
//
// Get reports absence through the bool return rather than an error, so
// callers can distinguish "no value" from "storage broken". Implementations
// must be safe for concurrent use.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Close() error
}
