// Package cachestore provides the durable cache store used by the
// pre-caching subsystem.
//
// The store holds two kinds of data in a single SQLite database:
//   - Named caches of request/response pairs keyed by absolute request URL,
//     mirroring the platform content cache (open, put, match, keys, delete)
//   - A small key/value table used to persist the PreCacheStatus record
//
// SQLite is accessed through modernc.org/sqlite, which is CGO-free. Only one
// connection is kept open, so writes are serialized by database/sql.
package cachestore
