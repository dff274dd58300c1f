package types

import (
	"errors"
	"fmt"
	"strings"
)

// ErrTimeoutExceeded is the cancellation cause of a context whose configured
// element timeout expired.
var ErrTimeoutExceeded = errors.New("timeout exceeded")

// ErrCancelled is reported for elements that never started because an
// ancestor was cancelled.
var ErrCancelled = errors.New("cancelled")

// ErrChildrenFailed is the cause of a suite whose own hooks succeeded but
// whose children failed or timed out.
var ErrChildrenFailed = errors.New("children failed")

// AssertionError signals an expectation violation raised by test logic.
type AssertionError struct {
	Message string
}

func (e *AssertionError) Error() string {
	return fmt.Sprintf("assertion failed: %s", e.Message)
}

// Assertf returns an AssertionError with a formatted message.
func Assertf(format string, args ...interface{}) error {
	return &AssertionError{Message: fmt.Sprintf(format, args...)}
}

// IsAssertionError checks if the error is or wraps an AssertionError
func IsAssertionError(err error) bool {
	var assertErr *AssertionError
	return err != nil && errors.As(err, &assertErr)
}

// UnhandledError wraps a panic that escaped a test body or hook.
type UnhandledError struct {
	Value interface{}
	Stack []byte
}

func (e *UnhandledError) Error() string {
	return fmt.Sprintf("unhandled panic: %v", e.Value)
}

// Unwrap returns the panic value when it was an error.
func (e *UnhandledError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// ElementError attributes a cause to the element it originated from.
type ElementError struct {
	Path string
	Err  error
}

func (e *ElementError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("session: %v", e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

// Unwrap implements the errors.Unwrap interface
func (e *ElementError) Unwrap() error {
	return e.Err
}

// StackOf returns the stack trace recorded for a recovered panic, if any.
func StackOf(err error) []byte {
	var unhandled *UnhandledError
	if errors.As(err, &unhandled) {
		return unhandled.Stack
	}
	return nil
}

// ConfigurationError is a session-fatal error: the tree, a profile or the
// selection could not be trusted, so nothing executes.
type ConfigurationError struct {
	Problems []error
}

func (e *ConfigurationError) Error() string {
	if len(e.Problems) == 1 {
		return fmt.Sprintf("configuration error: %v", e.Problems[0])
	}
	msgs := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		msgs = append(msgs, p.Error())
	}
	return fmt.Sprintf("configuration error: %d problems: %s", len(e.Problems), strings.Join(msgs, "; "))
}

// Unwrap implements the multi-error form of errors.Unwrap
func (e *ConfigurationError) Unwrap() []error {
	return e.Problems
}

// NewConfigurationError creates a ConfigurationError from one or more problems.
func NewConfigurationError(problems ...error) *ConfigurationError {
	return &ConfigurationError{Problems: problems}
}

// IsConfigurationError checks if the error is or wraps a ConfigurationError
func IsConfigurationError(err error) bool {
	var cfgErr *ConfigurationError
	return err != nil && errors.As(err, &cfgErr)
}
