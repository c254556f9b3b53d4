// Package build coordinates one site build: it owns the dispatcher and the
// metrics monitor for the run, executes the stage pipeline strictly in
// order, and commits the new build state only when every stage succeeded.
//
// All execution paths (CLI build, watch loop, tests) route through BuildService.
package build
