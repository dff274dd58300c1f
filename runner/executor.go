package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sourcegraph/conc/panics"

	"github.com/ethereum-optimism/infra/op-testengine/types"
)

// withTimeout bounds ctx by d. A zero d means no timeout.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeoutCause(ctx, d, types.ErrTimeoutExceeded)
}

// timedOut reports whether ctx was cancelled by its own element timeout.
func timedOut(ctx context.Context) bool {
	return errors.Is(context.Cause(ctx), types.ErrTimeoutExceeded)
}

// safely calls fn and converts an escaping panic into an UnhandledError.
func safely(fn func() error) error {
	var err error
	if r := panics.Try(func() { err = fn() }); r != nil {
		return &types.UnhandledError{Value: r.Value, Stack: r.Stack}
	}
	return err
}

// runTest executes every invocation of a test and folds them into one
// result. Fail takes precedence over timeout, timeout over pass.
func (x *execution) runTest(ctx context.Context, test *types.Test, rec *Record) types.Result {
	ctx, span := x.tracer.Start(ctx, fmt.Sprintf("test %s", test.Path()))
	defer span.End()

	eff := x.comp.Effective(test)
	rec.advance(StateRunning)

	var failed, timeout *types.Result
	for i := 1; i <= eff.InvocationCount; i++ {
		if i > 1 && ctx.Err() != nil {
			break
		}
		res := x.invoke(ctx, test, eff)
		if eff.InvocationCount > 1 && res.Cause != nil {
			res.Cause = fmt.Errorf("invocation %d/%d: %w", i, eff.InvocationCount, res.Cause)
		}
		rec.addInvocation(res)
		x.log.Debug("Invocation finished", "test", test.Path(), "invocation", i, "status", res.Status)

		switch {
		case res.Status == types.TestStatusFail && failed == nil:
			failed = &res
		case res.Status == types.TestStatusTimeout && timeout == nil:
			timeout = &res
		}
	}

	switch {
	case failed != nil:
		return *failed
	case timeout != nil:
		return *timeout
	default:
		return types.Passed()
	}
}

// invoke runs one before/around/body/after cycle of a test. The timeout
// bounds the whole cycle. After-each hooks always run, under a new deadline
// when the cycle already timed out or was cancelled.
func (x *execution) invoke(ctx context.Context, test *types.Test, eff *types.Effective) types.Result {
	cctx, cancel := withTimeout(ctx, eff.Timeout)
	defer cancel()

	var runErr error
	for _, hook := range eff.BeforeEach {
		if err := safely(func() error { return hook(cctx, test) }); err != nil {
			runErr = fmt.Errorf("before-each hook: %w", err)
			break
		}
	}
	if runErr == nil {
		body := eff.Wrap(test, func(ctx context.Context) error {
			return test.Action()(ctx)
		})
		runErr = safely(func() error { return body(cctx) })
	}

	// After-each hooks share the remaining budget of the cycle. Once the
	// cycle is over, they get a fresh budget of their own.
	teardown, fresh := cctx, cctx.Err() != nil
	if fresh {
		var cancelTeardown context.CancelFunc
		teardown, cancelTeardown = withTimeout(context.WithoutCancel(ctx), eff.Timeout)
		defer cancelTeardown()
	}
	var afterErrs []error
	for _, hook := range eff.AfterEach {
		if err := safely(func() error { return hook(teardown, test) }); err != nil {
			afterErrs = append(afterErrs, fmt.Errorf("after-each hook: %w", err))
		}
	}
	if fresh && timedOut(teardown) {
		afterErrs = append(afterErrs, fmt.Errorf("after-each hook: %w after %s", types.ErrTimeoutExceeded, eff.Timeout))
	}

	switch {
	case timedOut(cctx):
		cause := fmt.Errorf("%w after %s", types.ErrTimeoutExceeded, eff.Timeout)
		return types.TimedOut(&types.ElementError{Path: test.Path(), Err: errors.Join(append([]error{cause}, afterErrs...)...)})
	case runErr != nil || len(afterErrs) > 0:
		if runErr != nil && ctx.Err() != nil && errors.Is(runErr, ctx.Err()) {
			runErr = fmt.Errorf("%w: %w", types.ErrCancelled, runErr)
		}
		return types.Failed(&types.ElementError{Path: test.Path(), Err: errors.Join(append([]error{runErr}, afterErrs...)...)})
	default:
		return types.Passed()
	}
}

// runBeforeAll runs before-all hooks in order, stopping at the first error.
// The phase is bounded by the suite's timeout.
func (x *execution) runBeforeAll(ctx context.Context, suite *types.Suite, timeout time.Duration) error {
	hooks := suite.BeforeAllHooks()
	if len(hooks) == 0 {
		return nil
	}
	hctx, cancel := withTimeout(ctx, timeout)
	defer cancel()
	for _, hook := range hooks {
		err := safely(func() error { return hook(hctx, suite) })
		if timedOut(hctx) {
			return fmt.Errorf("before-all hook: %w after %s", types.ErrTimeoutExceeded, timeout)
		}
		if err != nil {
			return fmt.Errorf("before-all hook: %w", err)
		}
	}
	return nil
}

// runAfterAll runs every after-all hook and then closes the suite's
// fixtures. It is not subject to the session's cancellation.
func (x *execution) runAfterAll(ctx context.Context, suite *types.Suite, timeout time.Duration) error {
	hctx, cancel := withTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	var errs []error
	for _, hook := range suite.AfterAllHooks() {
		if err := safely(func() error { return hook(hctx, suite) }); err != nil {
			errs = append(errs, fmt.Errorf("after-all hook: %w", err))
		}
	}
	if err := safely(func() error { return suite.CloseFixtures(hctx) }); err != nil {
		errs = append(errs, fmt.Errorf("fixture teardown: %w", err))
	}
	if timedOut(hctx) {
		errs = append(errs, fmt.Errorf("after-all hook: %w after %s", types.ErrTimeoutExceeded, timeout))
	}
	return errors.Join(errs...)
}
