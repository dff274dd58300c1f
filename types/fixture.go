package types

import (
	"context"
	"fmt"
	"sync"

	"github.com/sourcegraph/conc/panics"
)

type fixtureCloser interface {
	close(ctx context.Context) error
}

// Fixture is a value set up at most once per suite execution and shared by
// all of the suite's descendants, which may run concurrently. It is torn
// down after the suite's children reached a terminal state.
type Fixture[T any] struct {
	suite    *Suite
	setup    func(ctx context.Context) (T, error)
	teardown func(ctx context.Context, value T) error

	mu          sync.Mutex
	initialized bool
	value       T
	err         error
}

// NewFixture registers a fixture on a suite under construction.
func NewFixture[T any](suite *Suite, setup func(ctx context.Context) (T, error), teardown func(ctx context.Context, value T) error) *Fixture[T] {
	f := &Fixture[T]{
		suite:    suite,
		setup:    setup,
		teardown: teardown,
	}
	if suite.builder.checkOpen(suite, "fixture") == nil {
		suite.fixtures = append(suite.fixtures, f)
	}
	return f
}

// Get returns the fixture value, running setup on first use. A failed setup
// is remembered and returned to every caller until the fixture is closed.
func (f *Fixture[T]) Get(ctx context.Context) (T, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.initialized {
		f.initialized = true
		if r := panics.Try(func() { f.value, f.err = f.setup(ctx) }); r != nil {
			f.err = &UnhandledError{Value: r.Value, Stack: r.Stack}
		}
		if f.err != nil {
			f.err = fmt.Errorf("fixture of suite %q: %w", f.suite.Path(), f.err)
		}
	}
	return f.value, f.err
}

func (f *Fixture[T]) close(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.initialized {
		return nil
	}
	value, setupErr := f.value, f.err
	var zero T
	f.initialized, f.value, f.err = false, zero, nil
	if setupErr != nil || f.teardown == nil {
		return nil
	}
	if err := f.teardown(ctx, value); err != nil {
		return fmt.Errorf("closing fixture of suite %q: %w", f.suite.Path(), err)
	}
	return nil
}
