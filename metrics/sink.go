package metrics

import (
	"github.com/ethereum-optimism/infra/op-testengine/types"
)

// Sink feeds lifecycle events into the Prometheus collectors.
type Sink struct{}

func NewSink() *Sink {
	return &Sink{}
}

func (s *Sink) Consume(ev types.Event, runID string) error {
	switch ev.Kind {
	case types.EventStart:
		RecordStart(ev.ElementKind)
	case types.EventFinish:
		RecordFinish(runID, ev.ElementKind, ev.Status, ev.Duration())
	}
	return nil
}

func (s *Sink) Complete(string) error {
	return nil
}
