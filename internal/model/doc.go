// Package model defines the data structures shared by the pre-caching
// subsystem.
//
// This package contains the following main types:
//   - CacheRecord: A stored request/response pair in the durable cache
//   - PreCacheStatus: The persisted outcome of the most recent pre-cache run
//   - Progress: A transient progress event emitted while a run is active
//   - ReachabilityState: The current connectivity view of the client
//   - Article, Category and Envelope: The minimal view of API payloads
//   - StatusReport: What the status command prints
//
// The models are kept free of behavior that depends on storage or transport
// so that cachestore, pipeline, prefetch and precache can all import them
// without creating cycles.
package model
