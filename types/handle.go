package types

import (
	"sync"

	pkgerrors "github.com/pkg/errors"
)

// SuiteHandle is a lazily constructed suite declaration, as supplied by the
// discovery collaborator. Within one session forcing a handle is idempotent:
// every call returns the same node, including calls made while the suite is
// still being constructed. Each new session constructs its own node, so a
// handle can be reused across sessions.
type SuiteHandle struct {
	name    string
	declare func(*Suite)
	opts    []Option

	mu    sync.Mutex
	suite *Suite
}

// forcing is the construction state of one handle within one session.
type forcing struct {
	parent *Suite
	suite  *Suite
	err    error
}

// DeclareSuite returns a handle for a suite that is built the first time it
// is forced.
func DeclareSuite(name string, declare func(*Suite), opts ...Option) *SuiteHandle {
	return &SuiteHandle{
		name:    name,
		declare: declare,
		opts:    opts,
	}
}

// Name returns the name the suite will be declared with.
func (h *SuiteHandle) Name() string {
	return h.name
}

// Suite returns the node built by the most recent session, or nil if the
// handle was never forced.
func (h *SuiteHandle) Suite() *Suite {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.suite
}

// Force builds the suite as a child of parent on first use within parent's
// session and returns it. Forcing the handle under a different parent of the
// same session is a configuration error.
func (h *SuiteHandle) Force(parent *Suite) (*Suite, error) {
	if parent == nil || parent.builder == nil {
		return nil, NewConfigurationError(pkgerrors.Errorf("suite %q can only be forced under a suite under construction", h.name))
	}
	b := parent.builder
	if f, ok := b.forced[h]; ok {
		if f.parent != parent {
			return f.suite, b.fail(pkgerrors.Errorf("suite %q is already declared under %s, cannot declare it under %s", h.name, describe(f.parent), describe(parent)))
		}
		return f.suite, f.err
	}

	child := parent.newSuite(h.name, h.opts)
	f := &forcing{parent: parent, suite: child}
	b.forced[h] = f
	h.mu.Lock()
	h.suite = child
	h.mu.Unlock()

	// The declaration may force this handle again and observe the
	// in-progress node.
	f.err = parent.attach(child)
	if f.err == nil {
		b.construct(child, h.declare)
	}
	return child, f.err
}

func describe(s *Suite) string {
	if s.kind == KindSession {
		return "the session root"
	}
	return `"` + s.path + `"`
}
