package metrics

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ethereum-optimism/infra/op-testengine/types"
)

const (
	MetricsNamespace = "testengine"
)

var (
	Debug                bool = true
	validResults              = []types.TestStatus{types.TestStatusPass, types.TestStatusFail, types.TestStatusSkip, types.TestStatusTimeout}
	nonAlphanumericRegex      = regexp.MustCompile(`[^a-zA-Z ]+`)

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "errors_total",
		Help:      "Count of errors",
	}, []string{
		"error",
	})

	elementsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "elements_total",
		Help:      "Count of finished elements by kind and status",
	}, []string{
		"run_id",
		"kind",
		"status",
	})

	elementsRunning = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "elements_running",
		Help:      "Number of started but unfinished elements",
	}, []string{
		"kind",
	})

	testDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: MetricsNamespace,
		Name:      "test_duration_seconds",
		Help:      "Duration of individual tests",
		Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
	}, []string{
		"status",
	})

	sessionResult = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "session_result",
		Help:      "Result of the test session",
	}, []string{
		"run_id",
		"result",
	})

	sessionTests = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "session_tests",
		Help:      "Number of tests in the session by status",
	}, []string{
		"run_id",
		"status",
	})

	sessionDuration = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "session_duration_seconds",
		Help:      "Duration of the test session",
	}, []string{
		"run_id",
	})
)

// errToLabel tries to make the error string a more valid Prometheus label
func errToLabel(err error) string {
	if err == nil {
		return "nil"
	}
	errClean := nonAlphanumericRegex.ReplaceAllString(err.Error(), "")
	errClean = strings.ReplaceAll(errClean, " ", "_")
	errClean = strings.ReplaceAll(errClean, "__", "_")
	return errClean
}

func RecordError(error string) {
	if Debug {
		log.Debug("metric inc",
			"m", "errors_total",
			"error", error,
		)
	}
	errorsTotal.WithLabelValues(error).Inc()
}

// RecordErrorDetails concats the error message to the label
// and also tries to clean the label to be a valid Prometheus label
func RecordErrorDetails(label string, err error) {
	if err == nil {
		return
	}
	label = fmt.Sprintf("%s.%s", label, errToLabel(err))
	RecordError(label)
}

// RecordStart marks an element as running.
func RecordStart(kind types.ElementKind) {
	elementsRunning.WithLabelValues(string(kind)).Inc()
}

// RecordFinish records the terminal status of an element.
func RecordFinish(runID string, kind types.ElementKind, status types.TestStatus, duration time.Duration) {
	if !isValidResult(status) {
		log.Error("RecordFinish - invalid result", "result", status)
		return
	}
	elementsRunning.WithLabelValues(string(kind)).Dec()
	elementsTotal.WithLabelValues(runID, string(kind), string(status)).Inc()
	if kind == types.KindTest {
		testDuration.WithLabelValues(string(status)).Observe(duration.Seconds())
	}
}

// RecordSession records the aggregate outcome of a session.
func RecordSession(
	runID string,
	result types.TestStatus,
	passed int,
	failed int,
	skipped int,
	timedOut int,
	duration time.Duration,
) {
	sessionResult.WithLabelValues(runID, string(result)).Set(1)
	sessionTests.WithLabelValues(runID, string(types.TestStatusPass)).Set(float64(passed))
	sessionTests.WithLabelValues(runID, string(types.TestStatusFail)).Set(float64(failed))
	sessionTests.WithLabelValues(runID, string(types.TestStatusSkip)).Set(float64(skipped))
	sessionTests.WithLabelValues(runID, string(types.TestStatusTimeout)).Set(float64(timedOut))
	sessionDuration.WithLabelValues(runID).Set(duration.Seconds())
}

func isValidResult(result types.TestStatus) bool {
	return slices.Contains(validResults, result)
}
