// Package engine implements the task-processing and caching core:
// a deduplicating task queue with delayed retry visibility, a worker
// pool with per-type execution timeouts, a retry supervisor applying
// bounded exponential backoff, an LRU result cache with TTL expiry,
// and the dispatcher producers submit work through.
package engine
