// Package prefetch warms the image cache for articles collected by a
// pre-cache run.
//
// URLs are loaded in fixed-size batches. Loads inside a batch run
// concurrently and the next batch starts only after every load of the
// current one has finished, successfully or not. Individual failures are
// counted but never returned.
package prefetch
