package types

import (
	"context"
)

// Action is the executable body of a test. It should observe ctx at its
// suspension points so timeouts and cancellation take effect.
type Action func(ctx context.Context) error

// Test is a leaf element owning an executable action.
type Test struct {
	element
	action Action
}

var _ Element = (*Test)(nil)

func (t *Test) Kind() ElementKind { return KindTest }

// Action returns the test body.
func (t *Test) Action() Action {
	return t.action
}
