package types

import (
	"fmt"
)

// TestStatus represents the terminal outcome of an element
type TestStatus string

const (
	TestStatusPass    TestStatus = "pass"
	TestStatusFail    TestStatus = "fail"
	TestStatusSkip    TestStatus = "skip"
	TestStatusTimeout TestStatus = "timeout"
)

// IsFailure reports whether the status counts as a failure during aggregation.
func (s TestStatus) IsFailure() bool {
	return s == TestStatusFail || s == TestStatusTimeout
}

// Result captures the outcome of a single element
type Result struct {
	Status TestStatus
	Cause  error  // Set for fail and timeout
	Reason string // Set for skip
}

// Passed returns a passing result.
func Passed() Result {
	return Result{Status: TestStatusPass}
}

// Failed returns a failing result with the given cause.
func Failed(cause error) Result {
	return Result{Status: TestStatusFail, Cause: cause}
}

// Skipped returns a skipped result with the given reason.
func Skipped(reason string) Result {
	return Result{Status: TestStatusSkip, Reason: reason}
}

// TimedOut returns a timeout result with the given cause.
func TimedOut(cause error) Result {
	return Result{Status: TestStatusTimeout, Cause: cause}
}

// Message returns a one-line description of the cause or skip reason.
func (r Result) Message() string {
	if r.Cause != nil {
		return r.Cause.Error()
	}
	return r.Reason
}

func (r Result) String() string {
	if msg := r.Message(); msg != "" {
		return fmt.Sprintf("%s (%s)", r.Status, msg)
	}
	return string(r.Status)
}

// Aggregate folds the results of a suite's children into the suite's status.
// Any failure or timeout makes the suite fail; otherwise any pass makes it
// pass; a suite whose children were all skipped (or that has none) is skipped.
func Aggregate(children []Result) TestStatus {
	passed := false
	for _, child := range children {
		if child.Status.IsFailure() {
			return TestStatusFail
		}
		if child.Status == TestStatusPass {
			passed = true
		}
	}
	if passed {
		return TestStatusPass
	}
	return TestStatusSkip
}
