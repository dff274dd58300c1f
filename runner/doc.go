// Package runner schedules and executes a session's element tree.
//
// The main components are:
//   - Scheduler: walks the tree parent-before-children, emits lifecycle events
//     and aggregates results bottom-up
//   - Dispatcher: launches a suite's children according to its compartment,
//     one at a time (sequential) or bounded-concurrently (parallel)
//   - Record: the per-element state machine and result
//   - ProgressIndicator: a sink that periodically logs execution progress
//
// Test leaves run their before-each hooks, the around-each chain wrapping the
// body, and their after-each hooks, bounded by the configured timeout and
// repeated per the invocation count. Failures are contained at the element
// where they occur.
package runner
