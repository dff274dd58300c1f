package reporting

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/ethereum-optimism/infra/op-testengine/types"
)

// Sink consumes lifecycle events as they are emitted. Events may be
// delivered from multiple goroutines; implementations serialize internally.
type Sink interface {
	// Consume processes a single start or finish event
	Consume(ev types.Event, runID string) error
	// Complete is called once after the last event of the run
	Complete(runID string) error
}

// NopSink discards every event.
type NopSink struct{}

func (NopSink) Consume(types.Event, string) error { return nil }
func (NopSink) Complete(string) error             { return nil }

// MultiSink fans events out to several sinks. A failing sink does not stop
// delivery to the others; their errors are joined.
type MultiSink []Sink

func (m MultiSink) Consume(ev types.Event, runID string) error {
	var errs []error
	for _, s := range m {
		if err := s.Consume(ev, runID); err != nil {
			errs = append(errs, fmt.Errorf("%T: %w", s, err))
		}
	}
	return errors.Join(errs...)
}

func (m MultiSink) Complete(runID string) error {
	var errs []error
	for _, s := range m {
		if err := s.Complete(runID); err != nil {
			errs = append(errs, fmt.Errorf("%T: %w", s, err))
		}
	}
	return errors.Join(errs...)
}

// MemorySink records every event in delivery order.
type MemorySink struct {
	mu        sync.Mutex
	events    []types.Event
	completed bool
}

func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (m *MemorySink) Consume(ev types.Event, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return nil
}

func (m *MemorySink) Complete(string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completed = true
	return nil
}

// Events returns a copy of the recorded events.
func (m *MemorySink) Events() []types.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.events)
}

// Completed reports whether Complete was called.
func (m *MemorySink) Completed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.completed
}

// Finished returns the finish event of the given path.
func (m *MemorySink) Finished(path string) (types.Event, bool) {
	for _, ev := range m.Events() {
		if ev.Path == path && ev.Kind == types.EventFinish {
			return ev, true
		}
	}
	return types.Event{}, false
}

// Order returns "<kind>:<path>" for every recorded event, in delivery order.
func (m *MemorySink) Order() []string {
	events := m.Events()
	out := make([]string, 0, len(events))
	for _, ev := range events {
		out = append(out, string(ev.Kind)+":"+ev.Path)
	}
	return out
}
