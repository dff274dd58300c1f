package types

import (
	"context"
	"time"
)

// Hook runs before or after each test of the subtree it is declared on.
type Hook func(ctx context.Context, test *Test) error

// AroundHook wraps each test of the subtree it is declared on. It must call
// next exactly once to run the inner hooks and the test body.
type AroundHook func(ctx context.Context, test *Test, next func(ctx context.Context) error) error

// SuiteHook runs once before or after a suite's children.
type SuiteHook func(ctx context.Context, suite *Suite) error

// Configuration is the partially specified configuration declared on one
// element. Nil fields inherit from the closest ancestor that sets them.
type Configuration struct {
	Enabled         *bool
	Timeout         *time.Duration
	Compartment     *Compartment
	InvocationCount *int

	BeforeEach []Hook
	AfterEach  []Hook
	AroundEach []AroundHook
}

// Overlay returns a copy of c with every field set in over replacing the
// corresponding field of c. Hook lists of over are appended after c's.
func (c Configuration) Overlay(over Configuration) Configuration {
	out := c
	if over.Enabled != nil {
		out.Enabled = ptr(*over.Enabled)
	}
	if over.Timeout != nil {
		out.Timeout = ptr(*over.Timeout)
	}
	if over.Compartment != nil {
		out.Compartment = ptr(*over.Compartment)
	}
	if over.InvocationCount != nil {
		out.InvocationCount = ptr(*over.InvocationCount)
	}
	out.BeforeEach = append(append([]Hook(nil), c.BeforeEach...), over.BeforeEach...)
	out.AfterEach = append(append([]Hook(nil), c.AfterEach...), over.AfterEach...)
	out.AroundEach = append(append([]AroundHook(nil), c.AroundEach...), over.AroundEach...)
	return out
}

// Effective is the fully folded configuration of one element.
type Effective struct {
	Enabled         bool
	Timeout         time.Duration // Zero means no timeout
	Compartment     Compartment
	InvocationCount int

	// BeforeEach and AroundEach run ancestor-first, AfterEach descendant-first.
	BeforeEach []Hook
	AfterEach  []Hook
	AroundEach []AroundHook
}

// Wrap composes the around hooks with body so that the outermost ancestor's
// hook is the outermost wrapper.
func (e *Effective) Wrap(test *Test, body func(ctx context.Context) error) func(ctx context.Context) error {
	inner := body
	for i := len(e.AroundEach) - 1; i >= 0; i-- {
		hook, next := e.AroundEach[i], inner
		inner = func(ctx context.Context) error {
			return hook(ctx, test, next)
		}
	}
	return inner
}

// DefaultConfiguration returns the fully specified session defaults used when
// the caller supplies none.
func DefaultConfiguration() Configuration {
	return Configuration{
		Enabled:         ptr(true),
		Timeout:         ptr(time.Duration(0)),
		Compartment:     ptr(Sequential()),
		InvocationCount: ptr(1),
	}
}

func ptr[T any](v T) *T {
	return &v
}
