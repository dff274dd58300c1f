package types

import (
	"fmt"
	"strings"
	"time"
)

// PathSeparator separates element names in a path.
const PathSeparator = "."

// ElementKind defines the type of node in the element tree
type ElementKind string

const (
	KindSession ElementKind = "session"
	KindSuite   ElementKind = "suite"
	KindTest    ElementKind = "test"
)

// Element is a node of the test hierarchy: the session, a suite or a test.
type Element interface {
	// Path is globally unique and stable across sessions.
	Path() string
	Name() string
	DisplayName() string
	// Parent is nil for the session root.
	Parent() *Suite
	Kind() ElementKind
	// Declared returns the configuration declared on this element only.
	Declared() Configuration
}

type element struct {
	name        string
	displayName string
	path        string
	parent      *Suite
	config      Configuration
}

func (e *element) Path() string            { return e.path }
func (e *element) Name() string            { return e.name }
func (e *element) Parent() *Suite          { return e.parent }
func (e *element) Declared() Configuration { return e.config }

func (e *element) DisplayName() string {
	if e.displayName != "" {
		return e.displayName
	}
	return e.name
}

func childPath(parent *Suite, name string) string {
	if parent == nil || parent.path == "" {
		return name
	}
	return parent.path + PathSeparator + name
}

func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("element name cannot be empty")
	}
	if strings.ContainsAny(name, "./") {
		return fmt.Errorf("element name %q cannot contain '.' or '/'", name)
	}
	return nil
}

func validateConfiguration(path string, cfg Configuration) error {
	if cfg.InvocationCount != nil && *cfg.InvocationCount < 1 {
		return fmt.Errorf("%s: invocation count must be at least 1, got %d", path, *cfg.InvocationCount)
	}
	if cfg.Timeout != nil && *cfg.Timeout < 0 {
		return fmt.Errorf("%s: timeout cannot be negative, got %s", path, *cfg.Timeout)
	}
	return nil
}

// Indexed returns the name of the i-th parametrized repeat of a test.
func Indexed(name string, i int) string {
	return fmt.Sprintf("%s#%d", name, i)
}

// Depth returns the number of ancestors between e and the session root.
func Depth(e Element) int {
	depth := 0
	for p := e.Parent(); p != nil && p.Kind() != KindSession; p = p.Parent() {
		depth++
	}
	return depth
}

// Ancestors returns e's ancestors ordered from the session root to the
// direct parent.
func Ancestors(e Element) []*Suite {
	var chain []*Suite
	for p := e.Parent(); p != nil; p = p.Parent() {
		chain = append(chain, p)
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain
}

// Walk visits e and its descendants in declaration order. Returning false
// from fn skips the subtree of the visited element.
func Walk(e Element, fn func(Element) bool) {
	if !fn(e) {
		return
	}
	if s, ok := e.(interface{ Children() []Element }); ok {
		for _, child := range s.Children() {
			Walk(child, fn)
		}
	}
}

// Option configures an element at declaration time.
type Option func(*element)

// WithDisplayName sets a human readable name used by reports.
func WithDisplayName(name string) Option {
	return func(e *element) { e.displayName = name }
}

// Disabled statically disables the element and its whole subtree.
func Disabled() Option {
	return func(e *element) { e.config.Enabled = ptr(false) }
}

// Enabled explicitly enables the element. It cannot re-enable the subtree of
// a disabled ancestor.
func Enabled() Option {
	return func(e *element) { e.config.Enabled = ptr(true) }
}

// WithTimeout bounds each hook+body+teardown cycle of the element's tests
// and each suite hook phase. Zero disables the timeout.
func WithTimeout(d time.Duration) Option {
	return func(e *element) { e.config.Timeout = ptr(d) }
}

// WithCompartment sets the policy for a suite's direct children.
func WithCompartment(c Compartment) Option {
	return func(e *element) { e.config.Compartment = ptr(c) }
}

// WithInvocationCount repeats each test's full cycle n times.
func WithInvocationCount(n int) Option {
	return func(e *element) { e.config.InvocationCount = ptr(n) }
}

func WithBeforeEach(hooks ...Hook) Option {
	return func(e *element) { e.config.BeforeEach = append(e.config.BeforeEach, hooks...) }
}

func WithAfterEach(hooks ...Hook) Option {
	return func(e *element) { e.config.AfterEach = append(e.config.AfterEach, hooks...) }
}

func WithAroundEach(hooks ...AroundHook) Option {
	return func(e *element) { e.config.AroundEach = append(e.config.AroundEach, hooks...) }
}

// WithConfiguration overlays a whole partial configuration.
func WithConfiguration(cfg Configuration) Option {
	return func(e *element) { e.config = e.config.Overlay(cfg) }
}
