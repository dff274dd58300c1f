package runner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"

	"github.com/ethereum-optimism/infra/op-testengine/composer"
	"github.com/ethereum-optimism/infra/op-testengine/metrics"
	"github.com/ethereum-optimism/infra/op-testengine/reporting"
	"github.com/ethereum-optimism/infra/op-testengine/selector"
	"github.com/ethereum-optimism/infra/op-testengine/types"
)

// Config holds configuration for creating a new scheduler
type Config struct {
	Log  log.Logger
	Sink reporting.Sink
	// Concurrency bounds the number of tests running at once across all
	// parallel compartments. Zero picks a value from the CPU count.
	Concurrency int
	// Serial forces every compartment to run sequentially
	Serial bool
	RunID  string
}

// Scheduler executes sessions.
type Scheduler struct {
	log         log.Logger
	sink        reporting.Sink
	concurrency int
	serial      bool
	runID       string
	tracer      trace.Tracer
}

// NewScheduler creates a new scheduler instance
func NewScheduler(cfg Config) *Scheduler {
	if cfg.Log == nil {
		cfg.Log = log.New()
		cfg.Log.Error("No logger provided, using default")
	}
	if cfg.Sink == nil {
		cfg.Sink = reporting.NopSink{}
	}
	if cfg.Concurrency > MaxReasonableConcurrency {
		cfg.Log.Warn("High concurrency may cause resource exhaustion",
			"requested", cfg.Concurrency,
			"recommended_max", MaxReasonableConcurrency)
	}
	return &Scheduler{
		log:         cfg.Log,
		sink:        cfg.Sink,
		concurrency: cfg.Concurrency,
		serial:      cfg.Serial,
		runID:       cfg.RunID,
		tracer:      otel.Tracer("test scheduler"),
	}
}

// execution is the state of one Run call.
type execution struct {
	log    log.Logger
	sink   reporting.Sink
	runID  string
	tracer trace.Tracer
	comp   *composer.Composer
	sel    *selector.Result
	serial bool
	pool   *semaphore.Weighted
	result *RunnerResult
	seq    atomic.Uint64
}

// Run executes the selected elements of the session and returns once every
// element reached a terminal state. Each element produces exactly one start
// and one finish event. Cancelling ctx skips elements that have not started
// yet; already running hooks and tests observe the cancellation through
// their context.
func (s *Scheduler) Run(ctx context.Context, session *types.Session, comp *composer.Composer, sel selector.Selection) (*RunnerResult, error) {
	if session == nil {
		return nil, errors.New("session is required")
	}
	if comp == nil {
		comp = composer.New(session)
	}
	session.Freeze()

	runID := s.runID
	if runID == "" {
		runID = uuid.New().String()
	}

	selected := selector.Select(session, comp, sel)
	x := &execution{
		log:    s.log.New("run_id", runID),
		sink:   s.sink,
		runID:  runID,
		tracer: s.tracer,
		comp:   comp,
		sel:    selected,
		serial: s.serial,
		result: newRunnerResult(runID, session),
	}
	if n := determineConcurrency(s.concurrency, selected.TestCount()); n > 0 {
		x.pool = semaphore.NewWeighted(int64(n))
		x.log.Debug("Session pool sized", "concurrency", n, "tests", selected.TestCount())
	}

	x.log.Info("Running session", "selection", sel.String(), "tests", selected.TestCount())
	root := x.result.Root
	if x.begin(ctx, root) {
		x.execute(ctx, root)
	}
	x.result.finalize()

	if err := x.sink.Complete(runID); err != nil {
		x.log.Error("Error completing sinks", "error", err)
		metrics.RecordErrorDetails("sink_complete", err)
	}
	metrics.RecordSession(runID, x.result.Status,
		x.result.Stats.Passed, x.result.Stats.Failed, x.result.Stats.Skipped, x.result.Stats.TimedOut,
		x.result.Duration)
	x.log.Info("Session finished", "status", x.result.Status, "duration", x.result.Duration)
	return x.result, nil
}

// begin decides whether rec runs. Elements that do not run are reported as
// skipped together with their whole subtree.
func (x *execution) begin(ctx context.Context, rec *Record) bool {
	if reason, skip := x.skipReason(ctx, rec.Element); skip {
		x.skip(rec, reason)
		return false
	}
	rec.begin(time.Now())
	x.emit(rec, types.EventStart)
	return true
}

func (x *execution) skipReason(ctx context.Context, e types.Element) (string, bool) {
	if ctx.Err() != nil {
		return fmt.Sprintf("%s: %v", ReasonCancelledBase, context.Cause(ctx)), true
	}
	if x.sel.Enabled(e.Path()) {
		return "", false
	}
	switch {
	case !x.comp.Effective(e).Enabled:
		return ReasonDisabled, true
	case e.Kind() == types.KindTest:
		return ReasonNotSelected, true
	default:
		return ReasonNoTests, true
	}
}

// skip reports rec and every descendant as skipped, without running any of
// their hooks.
func (x *execution) skip(rec *Record, reason string) {
	now := time.Now()
	rec.mu.Lock()
	rec.start = now
	rec.mu.Unlock()
	x.emit(rec, types.EventStart)
	for _, child := range rec.Children {
		x.skip(child, reason)
	}
	rec.finish(types.Skipped(reason), time.Now())
	x.emit(rec, types.EventFinish)
}

// execute runs a started element to its terminal state.
func (x *execution) execute(ctx context.Context, rec *Record) {
	var res types.Result
	switch e := rec.Element.(type) {
	case *types.Test:
		res = x.runTest(ctx, e, rec)
	case *types.Suite:
		res = x.runSuite(ctx, e, rec)
	default:
		res = types.Failed(fmt.Errorf("unknown element type %T", e))
		rec.advance(StateRunning)
	}
	rec.finish(res, time.Now())
	x.emit(rec, types.EventFinish)
}

// runSuite runs the suite's before-all hooks, dispatches its children
// according to the suite's compartment, runs the after-all hooks and
// aggregates the children's results.
func (x *execution) runSuite(ctx context.Context, suite *types.Suite, rec *Record) types.Result {
	ctx, span := x.tracer.Start(ctx, fmt.Sprintf("suite %s", suite.Path()))
	defer span.End()

	eff := x.comp.Effective(suite)
	rec.advance(StateRunning)

	var own []error
	if err := x.runBeforeAll(ctx, suite, eff.Timeout); err != nil {
		x.log.Warn("Suite setup failed", "suite", suite.Path(), "error", err)
		own = append(own, err)
		for _, child := range rec.Children {
			x.skip(child, ReasonSetupFailed)
		}
	} else {
		rec.advance(StateAwaitingChildren)
		x.dispatcher(eff.Compartment).Dispatch(ctx, x.jobs(rec))
	}

	if err := x.runAfterAll(ctx, suite, eff.Timeout); err != nil {
		x.log.Warn("Suite teardown failed", "suite", suite.Path(), "error", err)
		own = append(own, err)
	}

	if len(own) > 0 {
		if rec.State() == StateRunning {
			rec.advance(StateAwaitingChildren)
		}
		cause := &types.ElementError{Path: suite.Path(), Err: errors.Join(own...)}
		if len(own) == 1 && errors.Is(own[0], types.ErrTimeoutExceeded) {
			return types.TimedOut(cause)
		}
		return types.Failed(cause)
	}

	children := make([]types.Result, 0, len(rec.Children))
	var failed []string
	for _, child := range rec.Children {
		res := child.Result()
		children = append(children, res)
		if res.Status.IsFailure() {
			failed = append(failed, child.Element.Name())
		}
	}
	switch types.Aggregate(children) {
	case types.TestStatusPass:
		return types.Passed()
	case types.TestStatusSkip:
		return types.Skipped(ReasonNoTests)
	default:
		return types.Failed(&types.ElementError{
			Path: suite.Path(),
			Err:  fmt.Errorf("%w: %d of %d (%s)", types.ErrChildrenFailed, len(failed), len(rec.Children), strings.Join(failed, ", ")),
		})
	}
}

func (x *execution) dispatcher(c types.Compartment) Dispatcher {
	if x.serial {
		c = types.Sequential()
	}
	return NewDispatcher(c, x.pool)
}

func (x *execution) jobs(rec *Record) []Job {
	jobs := make([]Job, 0, len(rec.Children))
	for _, child := range rec.Children {
		jobs = append(jobs, Job{
			Begin:   func(ctx context.Context) bool { return x.begin(ctx, child) },
			Execute: func(ctx context.Context) { x.execute(ctx, child) },
			Pooled:  child.Element.Kind() == types.KindTest,
		})
	}
	return jobs
}

// emit delivers a lifecycle event to the sink. Sink errors are logged and
// never affect the session.
func (x *execution) emit(rec *Record, kind types.EventKind) {
	e := rec.Element
	start, end := rec.Timing()
	ev := types.Event{
		Sequence:    x.seq.Add(1),
		Path:        e.Path(),
		DisplayName: e.DisplayName(),
		ElementKind: e.Kind(),
		Kind:        kind,
		Start:       start,
	}
	if kind == types.EventFinish {
		res := rec.Result()
		ev.Status = res.Status
		ev.Cause = res.Message()
		ev.Aggregated = errors.Is(res.Cause, types.ErrChildrenFailed)
		ev.End = end
	}
	if err := x.sink.Consume(ev, x.runID); err != nil {
		x.log.Error("Error consuming event", "path", ev.Path, "kind", ev.Kind, "error", err)
		metrics.RecordErrorDetails("sink_consume", err)
	}
}
