package types

import (
	"context"
	"errors"
	"fmt"

	pkgerrors "github.com/pkg/errors"
	"github.com/sourcegraph/conc/panics"
)

// Suite owns an ordered sequence of child elements plus the configuration
// and suite-scoped hooks inherited by them. A suite never carries executable
// test logic itself.
type Suite struct {
	element
	kind ElementKind

	children []Element
	byName   map[string]Element

	beforeAll []SuiteHook
	afterAll  []SuiteHook
	fixtures  []fixtureCloser

	builder *builder
	sealed  bool
}

var _ Element = (*Suite)(nil)

func (s *Suite) Kind() ElementKind { return s.kind }

// Children returns the direct children in declaration order.
func (s *Suite) Children() []Element {
	return s.children
}

// BeforeAllHooks returns the suite's own before-suite hooks.
func (s *Suite) BeforeAllHooks() []SuiteHook {
	return s.beforeAll
}

// AfterAllHooks returns the suite's own after-suite hooks.
func (s *Suite) AfterAllHooks() []SuiteHook {
	return s.afterAll
}

// Suite declares a nested suite. declare runs immediately and may itself
// declare children on the new suite only.
func (s *Suite) Suite(name string, declare func(*Suite), opts ...Option) *Suite {
	child := s.newSuite(name, opts)
	if err := s.attach(child); err != nil {
		return child
	}
	s.builder.construct(child, declare)
	return child
}

// Test declares a test on the suite.
func (s *Suite) Test(name string, action Action, opts ...Option) *Test {
	t := &Test{action: action}
	t.name = name
	t.parent = s
	t.path = childPath(s, name)
	for _, opt := range opts {
		opt(&t.element)
	}
	if err := s.attach(t); err != nil {
		return t
	}
	if action == nil {
		s.builder.fail(pkgerrors.Errorf("test %q has no action", t.path))
	}
	return t
}

// Include forces a lazily declared suite handle as a child of this suite.
func (s *Suite) Include(handle *SuiteHandle) *Suite {
	child, _ := handle.Force(s)
	return child
}

// BeforeAll registers a hook run once before the suite's children.
func (s *Suite) BeforeAll(hook SuiteHook) {
	if s.builder.checkOpen(s, "before-all hook") == nil {
		s.beforeAll = append(s.beforeAll, hook)
	}
}

// AfterAll registers a hook run once after all the suite's children reached
// a terminal state, even when they failed.
func (s *Suite) AfterAll(hook SuiteHook) {
	if s.builder.checkOpen(s, "after-all hook") == nil {
		s.afterAll = append(s.afterAll, hook)
	}
}

// CloseFixtures tears down every fixture of the suite that was initialized,
// in reverse registration order.
func (s *Suite) CloseFixtures(ctx context.Context) error {
	var errs []error
	for i := len(s.fixtures) - 1; i >= 0; i-- {
		if err := s.fixtures[i].close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Suite) newSuite(name string, opts []Option) *Suite {
	child := &Suite{
		kind:    KindSuite,
		byName:  make(map[string]Element),
		builder: s.builder,
	}
	child.name = name
	child.parent = s
	child.path = childPath(s, name)
	for _, opt := range opts {
		opt(&child.element)
	}
	return child
}

// attach validates and appends a freshly declared child.
func (s *Suite) attach(child Element) error {
	if err := s.builder.checkOpen(s, fmt.Sprintf("%s %q", child.Kind(), child.Name())); err != nil {
		return err
	}
	if err := validateName(child.Name()); err != nil {
		return s.builder.fail(pkgerrors.Wrapf(err, "invalid child of %q", s.path))
	}
	if _, dup := s.byName[child.Name()]; dup {
		return s.builder.fail(pkgerrors.Errorf("duplicate element %q", child.Path()))
	}
	if err := validateConfiguration(child.Path(), child.Declared()); err != nil {
		return s.builder.fail(pkgerrors.WithStack(err))
	}
	s.byName[child.Name()] = child
	s.children = append(s.children, child)
	return nil
}

// builder holds construction state of one session. Only the innermost suite
// under construction accepts declarations.
type builder struct {
	open     []*Suite
	problems []error
	done     bool
	forced   map[*SuiteHandle]*forcing
}

func (b *builder) fail(err error) error {
	b.problems = append(b.problems, err)
	return err
}

func (b *builder) current() *Suite {
	if len(b.open) == 0 {
		return nil
	}
	return b.open[len(b.open)-1]
}

func (b *builder) checkOpen(s *Suite, what string) error {
	if b.done {
		// Construction is over and there is no session left to abort.
		panic(NewConfigurationError(pkgerrors.Errorf("cannot declare %s on %q after the tree was built", what, s.path)))
	}
	if s.sealed {
		return b.fail(pkgerrors.Errorf("cannot declare %s on sealed suite %q", what, s.path))
	}
	if cur := b.current(); cur != s {
		building := "no suite"
		if cur != nil {
			building = fmt.Sprintf("%q", cur.path)
		}
		return b.fail(pkgerrors.Errorf("cross-suite registration: %s declared on %q while %s is under construction", what, s.path, building))
	}
	return nil
}

// construct runs declare for s with s as the innermost open suite, then
// seals s.
func (b *builder) construct(s *Suite, declare func(*Suite)) {
	b.open = append(b.open, s)
	defer func() {
		b.open = b.open[:len(b.open)-1]
		s.sealed = true
	}()
	if declare == nil {
		return
	}
	if r := panics.Try(func() { declare(s) }); r != nil {
		b.fail(pkgerrors.Wrapf(r.AsError(), "declaring suite %q", s.path))
	}
}
