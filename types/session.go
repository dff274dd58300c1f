package types

import (
	"fmt"
	"sync/atomic"

	pkgerrors "github.com/pkg/errors"
)

// Session is the root suite of one run. It owns the fully specified
// configuration defaults and indexes every element of the tree.
type Session struct {
	Suite

	elements []Element
	byPath   map[string]Element
	frozen   atomic.Bool
}

// BuildSession constructs the whole element tree from the given root suite
// handles, in order. Any malformed declaration aborts construction: the
// returned error is a *ConfigurationError listing every problem found and
// no session is returned.
func BuildSession(defaults Configuration, handles ...*SuiteHandle) (*Session, error) {
	b := &builder{forced: make(map[*SuiteHandle]*forcing)}
	s := &Session{byPath: make(map[string]Element)}
	s.kind = KindSession
	s.byName = make(map[string]Element)
	s.builder = b
	s.config = DefaultConfiguration().Overlay(defaults)
	if err := validateConfiguration("session", s.config); err != nil {
		return nil, NewConfigurationError(pkgerrors.WithStack(err))
	}

	b.open = []*Suite{&s.Suite}
	for _, h := range handles {
		if h == nil {
			b.fail(pkgerrors.New("nil suite handle"))
			continue
		}
		_, _ = h.Force(&s.Suite)
	}
	b.open = nil
	b.done = true
	s.sealed = true

	if len(b.problems) > 0 {
		return nil, NewConfigurationError(b.problems...)
	}

	Walk(&s.Suite, func(e Element) bool {
		if e.Kind() == KindSession {
			return true
		}
		if _, dup := s.byPath[e.Path()]; dup {
			b.fail(pkgerrors.Errorf("duplicate path %q", e.Path()))
		}
		s.byPath[e.Path()] = e
		s.elements = append(s.elements, e)
		return true
	})
	if len(b.problems) > 0 {
		return nil, NewConfigurationError(b.problems...)
	}
	return s, nil
}

// Root returns the session as an Element.
func (s *Session) Root() *Suite {
	return &s.Suite
}

// Elements returns every element except the session itself, in declaration
// (pre-)order.
func (s *Session) Elements() []Element {
	return s.elements
}

// Tests returns every test of the tree in declaration order.
func (s *Session) Tests() []*Test {
	var tests []*Test
	for _, e := range s.elements {
		if t, ok := e.(*Test); ok {
			tests = append(tests, t)
		}
	}
	return tests
}

// Lookup returns the element with the given path. The empty path is the
// session itself.
func (s *Session) Lookup(path string) (Element, bool) {
	if path == "" {
		return s.Root(), true
	}
	e, ok := s.byPath[path]
	return e, ok
}

// Override overlays cfg on the declared configuration of every element for
// which match returns true and returns the number of elements changed. It
// must be called before the session is frozen.
func (s *Session) Override(match func(path string) bool, cfg Configuration) (int, error) {
	if s.frozen.Load() {
		return 0, fmt.Errorf("session is frozen, configuration can no longer change")
	}
	changed := 0
	for _, e := range s.elements {
		if !match(e.Path()) {
			continue
		}
		base := baseOf(e)
		next := base.config.Overlay(cfg)
		if err := validateConfiguration(e.Path(), next); err != nil {
			return changed, NewConfigurationError(err)
		}
		base.config = next
		changed++
	}
	return changed, nil
}

// OverrideDefaults overlays cfg on the session defaults.
func (s *Session) OverrideDefaults(cfg Configuration) error {
	if s.frozen.Load() {
		return fmt.Errorf("session is frozen, configuration can no longer change")
	}
	next := s.config.Overlay(cfg)
	if err := validateConfiguration("session", next); err != nil {
		return NewConfigurationError(err)
	}
	s.config = next
	return nil
}

// Freeze makes the declared configuration of every element immutable.
func (s *Session) Freeze() {
	s.frozen.Store(true)
}

func baseOf(e Element) *element {
	switch v := e.(type) {
	case *Suite:
		return &v.element
	case *Test:
		return &v.element
	default:
		panic(fmt.Sprintf("unknown element type %T", e))
	}
}
