// Package composer folds the configuration declared along an element's
// ancestor chain into the element's effective configuration.
package composer

import (
	"sync"

	"github.com/ethereum-optimism/infra/op-testengine/types"
)

// Composer computes and caches effective configurations. The cache is never
// invalidated: composing freezes the session, so declared configurations can
// no longer change.
type Composer struct {
	session *types.Session

	mu    sync.RWMutex
	cache map[string]*types.Effective
}

// New creates a composer for the session and freezes its configuration.
func New(session *types.Session) *Composer {
	session.Freeze()
	return &Composer{
		session: session,
		cache:   make(map[string]*types.Effective),
	}
}

// Effective returns the fully folded configuration of e. The result is
// shared and must not be modified.
func (c *Composer) Effective(e types.Element) *types.Effective {
	c.mu.RLock()
	eff, ok := c.cache[e.Path()]
	c.mu.RUnlock()
	if ok {
		return eff
	}

	var parent *types.Effective
	if p := e.Parent(); p != nil {
		parent = c.Effective(p)
	}
	eff = Fold(parent, e.Declared())

	c.mu.Lock()
	defer c.mu.Unlock()
	// Another goroutine may have raced us; keep the first value so every
	// caller observes the same pointer.
	if existing, ok := c.cache[e.Path()]; ok {
		return existing
	}
	c.cache[e.Path()] = eff
	return eff
}

// Fold layers a declared configuration onto its parent's effective
// configuration. A nil parent means the declaration belongs to the session
// root and must be fully specified, missing fields fall back to
// types.DefaultConfiguration.
func Fold(parent *types.Effective, declared types.Configuration) *types.Effective {
	var eff types.Effective
	if parent == nil {
		defaults := types.DefaultConfiguration().Overlay(declared)
		eff = types.Effective{
			Enabled:         *defaults.Enabled,
			Timeout:         *defaults.Timeout,
			Compartment:     *defaults.Compartment,
			InvocationCount: *defaults.InvocationCount,
		}
	} else {
		eff = types.Effective{
			Enabled:         parent.Enabled,
			Timeout:         parent.Timeout,
			Compartment:     parent.Compartment,
			InvocationCount: parent.InvocationCount,
		}
		// Disablement is sticky downward: a disabled ancestor wins over an
		// explicit enable.
		if declared.Enabled != nil {
			eff.Enabled = parent.Enabled && *declared.Enabled
		}
		if declared.Timeout != nil {
			eff.Timeout = *declared.Timeout
		}
		if declared.Compartment != nil {
			eff.Compartment = *declared.Compartment
		}
		if declared.InvocationCount != nil {
			eff.InvocationCount = *declared.InvocationCount
		}
	}

	var inherited types.Effective
	if parent != nil {
		inherited = *parent
	}
	eff.BeforeEach = concat(inherited.BeforeEach, declared.BeforeEach)
	eff.AroundEach = concat(inherited.AroundEach, declared.AroundEach)
	// After hooks unwind like a stack: this element's own hooks run first,
	// last declared first, then the inherited ones.
	eff.AfterEach = concat(reversed(declared.AfterEach), inherited.AfterEach)
	return &eff
}

func concat[T any](outer, inner []T) []T {
	out := make([]T, 0, len(outer)+len(inner))
	out = append(out, outer...)
	return append(out, inner...)
}

func reversed[T any](in []T) []T {
	out := make([]T, len(in))
	for i, v := range in {
		out[len(in)-1-i] = v
	}
	return out
}
