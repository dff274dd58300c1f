package types

import (
	"time"
)

// EventKind is the lifecycle transition an event reports
type EventKind string

const (
	EventStart  EventKind = "start"
	EventFinish EventKind = "finish"
)

// Event is the structured record delivered to reporter sinks. Every element
// of the tree produces exactly one start and one finish event per session.
type Event struct {
	Sequence    uint64      `json:"seq"`
	Path        string      `json:"path"`
	DisplayName string      `json:"displayName,omitempty"`
	ElementKind ElementKind `json:"elementKind"`
	Kind        EventKind   `json:"kind"`
	Status      TestStatus  `json:"status,omitempty"`
	Cause       string      `json:"cause,omitempty"`
	Aggregated  bool        `json:"aggregated,omitempty"` // Cause summarizes failed children
	Start       time.Time   `json:"start"`
	End         time.Time   `json:"end,omitempty"`
}

// Duration returns the elapsed time of a finish event.
func (e Event) Duration() time.Duration {
	if e.End.IsZero() {
		return 0
	}
	return e.End.Sub(e.Start)
}
