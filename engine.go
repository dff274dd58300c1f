package testengine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/ethereum-optimism/optimism/op-service/cliapp"

	"github.com/ethereum-optimism/infra/op-testengine/composer"
	"github.com/ethereum-optimism/infra/op-testengine/logging"
	"github.com/ethereum-optimism/infra/op-testengine/metrics"
	"github.com/ethereum-optimism/infra/op-testengine/registry"
	"github.com/ethereum-optimism/infra/op-testengine/reporting"
	"github.com/ethereum-optimism/infra/op-testengine/runner"
	"github.com/ethereum-optimism/infra/op-testengine/selector"
	"github.com/ethereum-optimism/infra/op-testengine/service"
)

// engine implements the cliapp.Lifecycle interface.
var _ cliapp.Lifecycle = &Engine{}

// Engine builds, selects and runs the registered suites once.
type Engine struct {
	config   *Config
	version  string
	registry *registry.Registry
	service  *service.Service
	out      io.Writer

	mu     sync.Mutex
	result *runner.RunnerResult
	tree   *reporting.TreeSink
	runID  string

	running atomic.Bool

	shutdownCallback func(error) // Callback to signal application shutdown
}

func New(config *Config, reg *registry.Registry, version string, shutdownCallback func(error)) (*Engine, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}
	if reg == nil {
		return nil, errors.New("registry is required")
	}
	if shutdownCallback == nil {
		shutdownCallback = func(error) {}
	}

	config.Log.Debug("Creating engine with config",
		"include", config.Include,
		"exclude", config.Exclude,
		"profile", config.ProfilePath,
		"concurrency", config.Concurrency,
		"serial", config.Serial,
		"logDir", config.LogDir)

	e := &Engine{
		config:           config,
		version:          version,
		registry:         reg,
		out:              os.Stdout,
		shutdownCallback: shutdownCallback,
	}
	if config.ServiceAddr != "" {
		e.service = service.New(config.Log.New("component", "service"), config.ServiceAddr, e.Tree)
	}
	return e, nil
}

// SetOutput redirects the console output of the engine.
func (e *Engine) SetOutput(w io.Writer) {
	e.out = w
}

// Start runs the session once and then asks the application to shut down.
// Start implements the cliapp.Lifecycle interface.
func (e *Engine) Start(ctx context.Context) error {
	e.running.Store(true)
	e.config.Log.Info("Starting op-testengine", "version", e.version)

	if e.service != nil {
		if err := e.service.Start(ctx); err != nil {
			return NewRuntimeError(fmt.Errorf("failed to start service: %w", err))
		}
	}

	result, err := e.Run(ctx)
	if err != nil {
		e.config.Log.Error("Runtime error running session", "error", err)
		return NewRuntimeError(err)
	}

	if result != nil && result.Status.IsFailure() {
		e.config.Log.Warn("Session completed with failures, returning exit code 1")
		return NewTestFailureError(result.String())
	}

	go func() {
		e.shutdownCallback(nil)
	}()
	return nil
}

// Run builds the session from the registry, applies the profile and the
// selection and executes it. In list mode it prints the selected elements
// and returns a nil result.
func (e *Engine) Run(ctx context.Context) (*runner.RunnerResult, error) {
	session, err := e.registry.Build(e.config.SessionDefaults())
	if err != nil {
		return nil, fmt.Errorf("failed to build session: %w", err)
	}

	sel, err := selector.New(e.config.Include, e.config.Exclude)
	if err != nil {
		return nil, err
	}
	if e.config.ProfilePath != "" {
		profile, err := registry.LoadProfile(e.config.ProfilePath, e.config.ProfileName)
		if err != nil {
			return nil, fmt.Errorf("failed to load profile: %w", err)
		}
		if err := profile.Apply(session, e.config.Log); err != nil {
			return nil, fmt.Errorf("failed to apply profile %s: %w", profile.Name, err)
		}
		profileSel, err := profile.Selection()
		if err != nil {
			return nil, err
		}
		sel = sel.Merge(profileSel)
		e.config.Log.Info("Applied profile", "profile", profile.Name, "overrides", len(profile.Overrides))
	}

	comp := composer.New(session)
	selected := selector.Select(session, comp, sel)

	if e.config.List {
		for _, path := range selected.Paths() {
			fmt.Fprintln(e.out, path)
		}
		e.config.Log.Info("Listed selected elements", "tests", selected.TestCount())
		return nil, nil
	}

	runID := e.config.RunID
	if runID == "" {
		runID = uuid.New().String()
	}
	sink, closeSinks, err := e.sinks(runID, selected.TestCount())
	if err != nil {
		return nil, err
	}
	defer closeSinks()

	concurrency := e.config.Concurrency
	if e.config.Serial {
		concurrency = 1
	}
	scheduler := runner.NewScheduler(runner.Config{
		Log:         e.config.Log.New("component", "scheduler"),
		Sink:        sink,
		Concurrency: concurrency,
		Serial:      e.config.Serial,
		RunID:       runID,
	})
	result, err := scheduler.Run(ctx, session, comp, sel)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.result = result
	e.mu.Unlock()

	fmt.Fprintln(e.out, result.String())
	for _, rec := range result.Failures() {
		e.config.Log.Error("Element failed", "path", rec.Element.Path(), "status", rec.Result().Status, "cause", rec.Result().Message())
	}
	e.config.Log.Info("Session completed", "run_id", result.RunID, "status", result.Status)
	return result, nil
}

// sinks assembles the reporting pipeline of one run.
func (e *Engine) sinks(runID string, totalTests int) (reporting.Sink, func(), error) {
	tree := reporting.NewTreeSink()
	e.mu.Lock()
	e.tree, e.runID = tree, runID
	e.mu.Unlock()

	progress := runner.NewNoOpProgressIndicator()
	if e.config.ShowProgress {
		progress = runner.NewConsoleProgressIndicator(e.config.Log.New("component", "progress"), totalTests, e.config.ProgressInterval)
	}

	sinks := reporting.MultiSink{
		tree,
		progress,
		metrics.NewSink(),
		reporting.NewTableReporter("Test Results", true, e.out),
	}
	if e.config.LogDir != "" {
		fileLogger, err := logging.NewFileLogger(e.config.LogDir, runID)
		if err != nil {
			progress.Stop()
			return nil, nil, fmt.Errorf("failed to create file logger: %w", err)
		}
		sinks = append(sinks, fileLogger)
		e.config.Log.Info("Writing run logs", "dir", fileLogger.GetBaseDir())
	}
	return sinks, progress.Stop, nil
}

// Result returns the result of the last completed session.
func (e *Engine) Result() *runner.RunnerResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.result
}

// Tree returns a snapshot of the current or last session, nil before the
// first session starts.
func (e *Engine) Tree() *reporting.Tree {
	e.mu.Lock()
	tree, runID := e.tree, e.runID
	e.mu.Unlock()
	if tree == nil {
		return nil
	}
	return tree.Tree(runID)
}

// Stop stops the engine and its status service.
// Stop implements the cliapp.Lifecycle interface.
func (e *Engine) Stop(ctx context.Context) error {
	e.config.Log.Info("Stopping op-testengine")
	if !e.running.Swap(false) {
		e.config.Log.Debug("Engine already stopped, nothing to do")
		return nil
	}
	if e.service != nil {
		if err := e.service.Shutdown(); err != nil {
			return fmt.Errorf("failed to stop service: %w", err)
		}
	}
	e.config.Log.Info("op-testengine stopped successfully")
	return nil
}

// Stopped returns true if the engine is stopped.
// Stopped implements the cliapp.Lifecycle interface.
func (e *Engine) Stopped() bool {
	return !e.running.Load()
}
