package testengine

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ethereum-optimism/infra/op-testengine/exitcodes"
	"github.com/ethereum-optimism/infra/op-testengine/types"
)

func TestErrorClassification(t *testing.T) {
	base := errors.New("boom")

	tests := []struct {
		name        string
		err         error
		wantRuntime bool
		wantFailure bool
		wantCode    int
	}{
		{name: "nil", err: nil, wantCode: exitcodes.Success},
		{name: "runtime", err: NewRuntimeError(base), wantRuntime: true, wantCode: exitcodes.RuntimeErr},
		{name: "wrapped runtime", err: fmt.Errorf("start: %w", NewRuntimeError(base)), wantRuntime: true, wantCode: exitcodes.RuntimeErr},
		{name: "test failure", err: NewTestFailureError("1 failed"), wantFailure: true, wantCode: exitcodes.TestFailure},
		{name: "configuration", err: types.NewConfigurationError(base), wantCode: exitcodes.RuntimeErr},
		{name: "other", err: base, wantCode: exitcodes.TestFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantRuntime, IsRuntimeError(tt.err))
			assert.Equal(t, tt.wantFailure, IsTestFailureError(tt.err))
			assert.Equal(t, tt.wantCode, ExitCode(tt.err))
		})
	}
}

func TestRuntimeErrorUnwrap(t *testing.T) {
	base := errors.New("boom")
	err := NewRuntimeError(base)
	assert.ErrorIs(t, err, base)
	assert.Equal(t, "runtime error: boom", err.Error())
	assert.Equal(t, "test failure: 2 failed", NewTestFailureError("2 failed").Error())
}
