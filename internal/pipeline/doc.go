// Package pipeline fetches the API payloads needed for offline reading and
// stores them verbatim in the durable cache.
//
// A Pipeline runs an ordered list of stages. Each stage owns a slice of the
// 0-90 progress range, emits a progress event before its request and another
// after it succeeds, and adds the items it decoded to a shared Accumulator.
// A failed stage is logged and skipped; only storage failures, a failed
// precondition or cancellation stop the run.
package pipeline
