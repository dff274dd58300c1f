package runner

import (
	"errors"
	"fmt"
	"time"

	"github.com/ethereum-optimism/infra/op-testengine/types"
)

// RunnerResult is the outcome of one session.
type RunnerResult struct {
	RunID    string
	Root     *Record
	Status   types.TestStatus
	Duration time.Duration
	Stats    ResultStats

	records map[string]*Record
	order   []*Record
}

// ResultStats counts test leaves by terminal status
type ResultStats struct {
	Total     int
	Passed    int
	Failed    int
	Skipped   int
	TimedOut  int
	StartTime time.Time
	EndTime   time.Time
}

func newRunnerResult(runID string, session *types.Session) *RunnerResult {
	result := &RunnerResult{
		RunID:   runID,
		Status:  types.TestStatusFail,
		records: make(map[string]*Record),
		Stats:   ResultStats{StartTime: time.Now()},
	}
	result.Root = result.build(session.Root())
	return result
}

func (r *RunnerResult) build(e types.Element) *Record {
	rec := newRecord(e)
	r.records[e.Path()] = rec
	r.order = append(r.order, rec)
	if suite, ok := e.(*types.Suite); ok {
		for _, child := range suite.Children() {
			rec.Children = append(rec.Children, r.build(child))
		}
	}
	return rec
}

// Lookup returns the record of the element with the given path. The empty
// path is the session root.
func (r *RunnerResult) Lookup(path string) (*Record, bool) {
	rec, ok := r.records[path]
	return rec, ok
}

// Records returns every record in pre-order (declaration order).
func (r *RunnerResult) Records() []*Record {
	return r.order
}

// Tests returns the records of all test leaves in declaration order.
func (r *RunnerResult) Tests() []*Record {
	var tests []*Record
	for _, rec := range r.order {
		if rec.Element.Kind() == types.KindTest {
			tests = append(tests, rec)
		}
	}
	return tests
}

// finalize computes the session status and test statistics.
func (r *RunnerResult) finalize() {
	for _, rec := range r.Tests() {
		r.Stats.Total++
		switch rec.Result().Status {
		case types.TestStatusPass:
			r.Stats.Passed++
		case types.TestStatusFail:
			r.Stats.Failed++
		case types.TestStatusSkip:
			r.Stats.Skipped++
		case types.TestStatusTimeout:
			r.Stats.TimedOut++
		}
	}
	r.Status = r.Root.Result().Status
	r.Stats.EndTime = time.Now()
	r.Duration = r.Stats.EndTime.Sub(r.Stats.StartTime)
}

// Failures returns the records of failed or timed-out elements that carry
// their own cause, in declaration order.
func (r *RunnerResult) Failures() []*Record {
	var failures []*Record
	for _, rec := range r.order {
		if res := rec.Result(); res.Status.IsFailure() && res.Cause != nil && !errors.Is(res.Cause, types.ErrChildrenFailed) {
			failures = append(failures, rec)
		}
	}
	return failures
}

func (r *RunnerResult) String() string {
	return fmt.Sprintf("RunnerResult{RunID: %s, Status: %s, Total: %d, Passed: %d, Failed: %d, TimedOut: %d, Skipped: %d, Duration: %s}",
		r.RunID, r.Status, r.Stats.Total, r.Stats.Passed, r.Stats.Failed, r.Stats.TimedOut, r.Stats.Skipped, r.Duration)
}
