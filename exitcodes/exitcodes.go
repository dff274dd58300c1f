// Package exitcodes defines the standard exit codes used by op-testengine.
package exitcodes

// Exit code constants used by op-testengine:
//
// * Success (0): the session passed or everything was skipped
// * TestFailure (1): one or more elements failed or timed out
// * RuntimeErr (2): the session could not run, eg. a configuration error
const (
	Success     = 0 // Session passed
	TestFailure = 1 // Failed or timed out elements
	RuntimeErr  = 2 // Configuration or runtime errors
)
