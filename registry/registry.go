package registry

import (
	"sync"

	"github.com/ethereum/go-ethereum/log"

	"github.com/ethereum-optimism/infra/op-testengine/types"
)

// Registry holds the root suite handles of a session in registration order
type Registry struct {
	log     log.Logger
	handles []*types.SuiteHandle
	seen    map[*types.SuiteHandle]bool
	mu      sync.RWMutex
}

// NewRegistry creates an empty registry
func NewRegistry(logger log.Logger) *Registry {
	if logger == nil {
		logger = log.New()
		logger.Error("No logger provided, using default")
	}
	return &Registry{
		log:  logger,
		seen: make(map[*types.SuiteHandle]bool),
	}
}

// Register adds root suite handles. Registering a handle twice is a no-op.
func (r *Registry) Register(handles ...*types.SuiteHandle) *Registry {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, h := range handles {
		if h == nil || r.seen[h] {
			continue
		}
		r.seen[h] = true
		r.handles = append(r.handles, h)
		r.log.Debug("Registered suite", "name", h.Name())
	}
	return r
}

// Handles returns the registered handles in registration order
func (r *Registry) Handles() []*types.SuiteHandle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*types.SuiteHandle(nil), r.handles...)
}

// Len returns the number of registered handles
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handles)
}

// Build forces every registered handle into a new session.
func (r *Registry) Build(defaults types.Configuration) (*types.Session, error) {
	session, err := types.BuildSession(defaults, r.Handles()...)
	if err != nil {
		return nil, err
	}
	r.log.Debug("Session built", "elements", len(session.Elements()), "tests", len(session.Tests()))
	return session, nil
}
