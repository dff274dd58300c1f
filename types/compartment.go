package types

import (
	"fmt"
	"strings"
)

// CompartmentKind names the scheduling policy for a suite's direct children
type CompartmentKind string

const (
	CompartmentSequential CompartmentKind = "sequential"
	CompartmentParallel   CompartmentKind = "parallel"
)

// Compartment is the concurrency policy governing how a suite's direct
// children are scheduled.
type Compartment struct {
	Kind CompartmentKind
	// Limit bounds the number of concurrently running children of a parallel
	// compartment. Zero means unbounded.
	Limit int
}

// Sequential runs children one at a time in declaration order.
func Sequential() Compartment {
	return Compartment{Kind: CompartmentSequential}
}

// Parallel runs children concurrently, at most limit at a time when limit > 0.
func Parallel(limit int) Compartment {
	if limit < 0 {
		limit = 0
	}
	return Compartment{Kind: CompartmentParallel, Limit: limit}
}

// IsSequential reports whether the compartment is sequential.
func (c Compartment) IsSequential() bool {
	return c.Kind != CompartmentParallel
}

func (c Compartment) String() string {
	if c.Kind == CompartmentParallel {
		if c.Limit > 0 {
			return fmt.Sprintf("parallel(%d)", c.Limit)
		}
		return "parallel"
	}
	return string(CompartmentSequential)
}

// ParseCompartment parses "sequential", "parallel" or "parallel(N)".
// A non-zero limit argument overrides the limit given in the string.
func ParseCompartment(s string, limit int) (Compartment, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	switch {
	case s == string(CompartmentSequential):
		return Sequential(), nil
	case s == string(CompartmentParallel):
		return Parallel(limit), nil
	case strings.HasPrefix(s, "parallel(") && strings.HasSuffix(s, ")"):
		var n int
		if _, err := fmt.Sscanf(s, "parallel(%d)", &n); err != nil {
			return Compartment{}, fmt.Errorf("invalid compartment %q: %w", s, err)
		}
		if limit > 0 {
			n = limit
		}
		return Parallel(n), nil
	default:
		return Compartment{}, fmt.Errorf("invalid compartment %q: must be sequential, parallel or parallel(N)", s)
	}
}
