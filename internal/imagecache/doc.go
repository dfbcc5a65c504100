// Package imagecache keeps prefetched image bytes in a LevelDB database.
//
// Entries are stored under "e:<url>" and a small metadata record under
// "m:<url>". The metadata is loaded into memory on open so that size
// accounting and least-recently-used eviction never need a full scan of
// the entry values.
package imagecache
