package runner

import (
	"errors"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethereum-optimism/infra/op-testengine/types"
)

func testElement(t *testing.T) types.Element {
	t.Helper()
	s := types.DeclareSuite("S", func(s *types.Suite) {
		s.Test("t", pass)
	})
	session, err := types.BuildSession(types.Configuration{}, s)
	require.NoError(t, err)
	e, ok := session.Lookup("S.t")
	require.True(t, ok)
	return e
}

func TestRecordTransitions(t *testing.T) {
	tests := []struct {
		name   string
		path   []State
		panics bool
	}{
		{name: "test passes", path: []State{StateConfiguring, StateRunning, StateCompleted}},
		{name: "suite completes", path: []State{StateConfiguring, StateRunning, StateAwaitingChildren, StateCompleted}},
		{name: "skipped without running", path: []State{StateSkipped}},
		{name: "suite all skipped", path: []State{StateConfiguring, StateRunning, StateAwaitingChildren, StateSkipped}},
		{name: "cannot run from pending", path: []State{StateRunning}, panics: true},
		{name: "terminal is final", path: []State{StateSkipped, StateConfiguring}, panics: true},
		{name: "running cannot skip", path: []State{StateConfiguring, StateRunning, StateSkipped}, panics: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := newRecord(testElement(t))
			walk := func() {
				for _, s := range tt.path {
					rec.advance(s)
				}
			}
			if tt.panics {
				assert.Panics(t, walk)
				return
			}
			assert.NotPanics(t, walk)
			assert.True(t, rec.State().IsTerminal())
		})
	}
}

func TestRecordFinish(t *testing.T) {
	rec := newRecord(testElement(t))
	start := time.Now()
	rec.begin(start)
	rec.advance(StateRunning)
	rec.finish(types.TimedOut(errors.New("slow")), start.Add(time.Second))

	assert.Equal(t, StateTimedOut, rec.State())
	assert.Equal(t, types.TestStatusTimeout, rec.Result().Status)
	assert.Equal(t, time.Second, rec.Duration())
}

func TestDetermineConcurrency(t *testing.T) {
	tests := []struct {
		name            string
		userConcurrency int
		numWorkItems    int
		expectedRange   [2]int // [min, max] expected range
	}{
		{name: "No work items", userConcurrency: 0, numWorkItems: 0, expectedRange: [2]int{0, 0}},
		{name: "Auto-determine with 4 work items", userConcurrency: 0, numWorkItems: 4, expectedRange: [2]int{1, 4}},
		{name: "Auto-determine with many work items", userConcurrency: 0, numWorkItems: 200, expectedRange: [2]int{1, MaxReasonableConcurrency}},
		{name: "User override within work items", userConcurrency: 3, numWorkItems: 10, expectedRange: [2]int{3, 3}},
		{name: "User override exceeds work items", userConcurrency: 8, numWorkItems: 3, expectedRange: [2]int{3, 3}},
		{name: "User requests high concurrency", userConcurrency: 50, numWorkItems: 60, expectedRange: [2]int{50, 50}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			actual := determineConcurrency(tt.userConcurrency, tt.numWorkItems)
			assert.GreaterOrEqual(t, actual, tt.expectedRange[0])
			assert.LessOrEqual(t, actual, tt.expectedRange[1])
		})
	}

	t.Run("scales with CPUs", func(t *testing.T) {
		numCPU := runtime.NumCPU()
		actual := determineConcurrency(0, 1000)
		if numCPU <= 2 {
			assert.Equal(t, numCPU, actual)
		} else {
			assert.GreaterOrEqual(t, actual, min(numCPU, MaxReasonableConcurrency))
		}
	})
}
