package metrics

import (
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethereum-optimism/infra/op-testengine/types"
)

func TestErrToLabel(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{
			name: "nil error",
			err:  nil,
		},
		{
			name: "simple error",
			err:  errors.New("test error"),
		},
		{
			name: "error with special chars",
			err:  errors.New("test@error#123"),
		},
		{
			name: "error with multiple spaces",
			err:  errors.New("test   error"),
		},
		{
			name: "element path",
			err:  errors.New("suite1.inner.test2: timeout exceeded"),
		},
	}

	validLabelRegex := regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := errToLabel(tt.err)
			if !validLabelRegex.MatchString(result) {
				t.Errorf("errToLabel() = %v, is not a valid Prometheus label", result)
			}
		})
	}
}

func TestRecordErrorDetails(t *testing.T) {
	before := testutil.ToFloat64(errorsTotal.WithLabelValues("sink.sink_failed"))
	RecordErrorDetails("sink", nil)
	RecordErrorDetails("sink", errors.New("sink failed"))
	assert.Equal(t, before+1, testutil.ToFloat64(errorsTotal.WithLabelValues("sink.sink_failed")))
}

func TestRecordFinish(t *testing.T) {
	runID := "metrics-finish"
	RecordStart(types.KindTest)
	running := testutil.ToFloat64(elementsRunning.WithLabelValues(string(types.KindTest)))

	RecordFinish(runID, types.KindTest, types.TestStatusTimeout, 2*time.Second)
	assert.Equal(t, running-1, testutil.ToFloat64(elementsRunning.WithLabelValues(string(types.KindTest))))
	assert.Equal(t, 1.0, testutil.ToFloat64(elementsTotal.WithLabelValues(runID, string(types.KindTest), string(types.TestStatusTimeout))))

	// Invalid statuses are dropped
	RecordFinish(runID, types.KindTest, types.TestStatus("bogus"), time.Second)
	assert.Equal(t, 0.0, testutil.ToFloat64(elementsTotal.WithLabelValues(runID, string(types.KindTest), "bogus")))
}

func TestRecordSession(t *testing.T) {
	runID := "metrics-session"
	RecordSession(runID, types.TestStatusFail, 3, 1, 2, 1, 1500*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(sessionResult.WithLabelValues(runID, string(types.TestStatusFail))))
	assert.Equal(t, 3.0, testutil.ToFloat64(sessionTests.WithLabelValues(runID, string(types.TestStatusPass))))
	assert.Equal(t, 1.0, testutil.ToFloat64(sessionTests.WithLabelValues(runID, string(types.TestStatusTimeout))))
	assert.Equal(t, 1.5, testutil.ToFloat64(sessionDuration.WithLabelValues(runID)))
}

func TestSink(t *testing.T) {
	runID := "metrics-sink"
	sink := NewSink()
	start := time.Now()

	require.NoError(t, sink.Consume(types.Event{Path: "s", ElementKind: types.KindSuite, Kind: types.EventStart, Start: start}, runID))
	require.NoError(t, sink.Consume(types.Event{Path: "s", ElementKind: types.KindSuite, Kind: types.EventFinish, Status: types.TestStatusPass, Start: start, End: start.Add(time.Second)}, runID))
	require.NoError(t, sink.Complete(runID))

	assert.Equal(t, 1.0, testutil.ToFloat64(elementsTotal.WithLabelValues(runID, string(types.KindSuite), string(types.TestStatusPass))))
}
