package runner

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/ethereum-optimism/infra/op-testengine/types"
)

// State is the execution state of one element within a session
type State string

const (
	StatePending          State = "pending"
	StateConfiguring      State = "configuring"
	StateRunning          State = "running"
	StateAwaitingChildren State = "awaiting_children"
	StateCompleted        State = "completed"
	StateFailed           State = "failed"
	StateSkipped          State = "skipped"
	StateTimedOut         State = "timed_out"
)

var transitions = map[State][]State{
	StatePending:          {StateConfiguring, StateSkipped},
	StateConfiguring:      {StateRunning},
	StateRunning:          {StateAwaitingChildren, StateCompleted, StateFailed, StateTimedOut},
	StateAwaitingChildren: {StateCompleted, StateFailed, StateSkipped, StateTimedOut},
}

// IsTerminal reports whether no further transition is possible.
func (s State) IsTerminal() bool {
	return len(transitions[s]) == 0
}

func terminalState(status types.TestStatus) State {
	switch status {
	case types.TestStatusPass:
		return StateCompleted
	case types.TestStatusSkip:
		return StateSkipped
	case types.TestStatusTimeout:
		return StateTimedOut
	default:
		return StateFailed
	}
}

// Record tracks one element through a session.
type Record struct {
	Element  types.Element
	Children []*Record

	mu          sync.Mutex
	state       State
	result      types.Result
	start       time.Time
	end         time.Time
	invocations []types.Result
}

func newRecord(e types.Element) *Record {
	return &Record{Element: e, state: StatePending}
}

// advance moves the record to the next state. Illegal transitions are
// scheduler bugs.
func (r *Record) advance(to State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !slices.Contains(transitions[r.state], to) {
		panic(fmt.Sprintf("illegal state transition for %q: %s -> %s", r.Element.Path(), r.state, to))
	}
	r.state = to
}

func (r *Record) begin(now time.Time) {
	r.advance(StateConfiguring)
	r.mu.Lock()
	r.start = now
	r.mu.Unlock()
}

func (r *Record) finish(result types.Result, now time.Time) {
	r.advance(terminalState(result.Status))
	r.mu.Lock()
	defer r.mu.Unlock()
	r.result = result
	if r.start.IsZero() {
		r.start = now
	}
	r.end = now
}

func (r *Record) addInvocation(result types.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.invocations = append(r.invocations, result)
}

// State returns the current state.
func (r *Record) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Result returns the element's result. It is only meaningful once the
// record reached a terminal state.
func (r *Record) Result() types.Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.result
}

// Invocations returns the per-invocation results of a test.
func (r *Record) Invocations() []types.Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.invocations)
}

// Timing returns when the element started and finished.
func (r *Record) Timing() (start, end time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.start, r.end
}

// Duration returns the elapsed execution time.
func (r *Record) Duration() time.Duration {
	start, end := r.Timing()
	if end.IsZero() {
		return 0
	}
	return end.Sub(start)
}
