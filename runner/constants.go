package runner

import (
	"runtime"
	"time"
)

const (
	// MaxReasonableConcurrency caps auto-determined concurrency to avoid resource exhaustion
	MaxReasonableConcurrency = 32

	// DefaultProgressInterval is used when a progress indicator is created without one
	DefaultProgressInterval = 30 * time.Second

	// Skip reasons reported on skipped elements
	ReasonDisabled      = "disabled"
	ReasonNotSelected   = "not selected"
	ReasonNoTests       = "no selected tests"
	ReasonSetupFailed   = "suite setup failed"
	ReasonCancelledBase = "cancelled"
)

// determineConcurrency sizes the session-wide pool of parallel test
// executions. A positive user value wins; otherwise the pool scales with the
// CPU count. The result never exceeds the number of work items.
func determineConcurrency(userConcurrency, numWorkItems int) int {
	if numWorkItems <= 0 {
		return 0
	}
	concurrency := userConcurrency
	if concurrency <= 0 {
		numCPU := runtime.NumCPU()
		switch {
		case numCPU <= 2:
			concurrency = numCPU
		case numCPU <= 4:
			concurrency = int(float64(numCPU) * 1.25)
		default:
			concurrency = int(float64(numCPU) * 1.5)
		}
		concurrency = min(concurrency, MaxReasonableConcurrency)
	}
	return max(1, min(concurrency, numWorkItems))
}
