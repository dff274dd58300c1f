package runner

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/ethereum-optimism/infra/op-testengine/reporting"
	"github.com/ethereum-optimism/infra/op-testengine/types"
)

// ProgressIndicator is a sink that reports execution progress.
type ProgressIndicator interface {
	reporting.Sink
	Stop()
}

// noOpProgressIndicator provides a no-op implementation of ProgressIndicator
type noOpProgressIndicator struct {
	reporting.NopSink
}

// NewNoOpProgressIndicator creates a progress indicator that does nothing
func NewNoOpProgressIndicator() ProgressIndicator {
	return &noOpProgressIndicator{}
}

func (n *noOpProgressIndicator) Stop() {}

// consoleProgressIndicator provides a console-based progress indicator
type consoleProgressIndicator struct {
	logger   log.Logger
	ticker   *time.Ticker
	stopCh   chan struct{}
	stopOnce sync.Once
	mu       sync.RWMutex

	completedTests int
	totalTests     int
	failedTests    int
	sessionStart   time.Time

	// Track currently running tests
	runningTests map[string]time.Time // test path -> start time
	// Track running suites for the periodic report
	runningSuites map[string]time.Time
}

// NewConsoleProgressIndicator creates a progress indicator that shows updates in the console
func NewConsoleProgressIndicator(logger log.Logger, totalTests int, updateInterval time.Duration) ProgressIndicator {
	if updateInterval == 0 {
		updateInterval = DefaultProgressInterval
	}

	indicator := &consoleProgressIndicator{
		logger:        logger,
		ticker:        time.NewTicker(updateInterval),
		stopCh:        make(chan struct{}),
		totalTests:    totalTests,
		sessionStart:  time.Now(),
		runningTests:  make(map[string]time.Time),
		runningSuites: make(map[string]time.Time),
	}

	// Start the progress reporting goroutine
	go indicator.progressReporter()

	return indicator
}

func (c *consoleProgressIndicator) Consume(ev types.Event, _ string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case ev.ElementKind == types.KindTest && ev.Kind == types.EventStart:
		c.runningTests[ev.Path] = ev.Start
		c.logger.Debug("Test started", "test", ev.Path, "runningTests", len(c.runningTests))
	case ev.ElementKind == types.KindTest && ev.Kind == types.EventFinish:
		delete(c.runningTests, ev.Path)
		c.completedTests++
		if ev.Status.IsFailure() {
			c.failedTests++
		}
		c.logger.Debug("Test completed", "test", ev.Path, "status", ev.Status, "completed", c.completedTests, "total", c.totalTests, "runningTests", len(c.runningTests))
	case ev.ElementKind == types.KindSuite && ev.Kind == types.EventStart:
		c.runningSuites[ev.Path] = ev.Start
		c.logger.Info("Starting suite", "suite", ev.Path)
	case ev.ElementKind == types.KindSuite && ev.Kind == types.EventFinish:
		delete(c.runningSuites, ev.Path)
		c.logger.Info("Completed suite", "suite", ev.Path, "status", ev.Status, "duration", ev.Duration().Truncate(time.Millisecond))
	}
	return nil
}

func (c *consoleProgressIndicator) Complete(_ string) error {
	c.mu.RLock()
	duration := time.Since(c.sessionStart).Truncate(time.Second)
	c.logger.Info("Completed session", "totalTests", c.totalTests, "completed", c.completedTests, "failed", c.failedTests, "duration", duration)
	c.mu.RUnlock()
	c.Stop()
	return nil
}

// progressReporter runs in a goroutine and periodically reports progress
func (c *consoleProgressIndicator) progressReporter() {
	for {
		select {
		case <-c.ticker.C:
			c.reportProgress()
		case <-c.stopCh:
			return
		}
	}
}

func (c *consoleProgressIndicator) reportProgress() {
	c.mu.RLock()
	defer c.mu.RUnlock()

	// Calculate completion percentage
	var percentComplete float64
	if c.totalTests > 0 {
		percentComplete = float64(c.completedTests) * 100.0 / float64(c.totalTests)
	}

	logFields := []interface{}{
		"completed", c.completedTests,
		"total", c.totalTests,
		"failed", c.failedTests,
		"percent", fmt.Sprintf("%.1f%%", percentComplete),
		"numRunning", len(c.runningTests),
		"longestRunning", formatRunning(c.runningTests, 3),
		"suites", formatRunning(c.runningSuites, 2),
	}

	c.logger.Info("Progress update", logFields...)
}

// Stop stops the progress indicator. It is safe to call more than once.
func (c *consoleProgressIndicator) Stop() {
	c.stopOnce.Do(func() {
		c.ticker.Stop()
		close(c.stopCh)
	})
}

// formatRunning formats running elements into a display string, longest
// running first
func formatRunning(running map[string]time.Time, maxShow int) string {
	if len(running) == 0 {
		return ""
	}

	type runningElement struct {
		path     string
		duration time.Duration
	}

	var elems []runningElement
	now := time.Now()
	for path, startTime := range running {
		elems = append(elems, runningElement{
			path:     path,
			duration: now.Sub(startTime),
		})
	}

	sort.Slice(elems, func(i, j int) bool {
		if elems[i].duration == elems[j].duration {
			return elems[i].path < elems[j].path
		}
		return elems[i].duration > elems[j].duration
	})

	var strs []string
	for i, e := range elems {
		if i >= maxShow {
			break
		}
		strs = append(strs, fmt.Sprintf("%s (%v)", e.path, e.duration.Truncate(time.Second)))
	}

	// Add indicator for additional elements not shown
	if len(elems) > maxShow {
		strs = append(strs, fmt.Sprintf("+%d more", len(elems)-maxShow))
	}

	return strings.Join(strs, ", ")
}
