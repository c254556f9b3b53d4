// Package dispatch runs a per-item handler over a set of input paths on a
// bounded worker pool.
//
// Items run independently: a failing item is recorded in the returned Outcome
// and never stops its siblings. Large inputs can be split into chunks; chunk
// N+1 starts only after every item of chunk N has finished. Items can run on
// goroutines (PoolThread) or each in its own OS process (PoolProcess) via a
// Spawner.
package dispatch
