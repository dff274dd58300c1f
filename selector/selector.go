package selector

import (
	"sort"

	"github.com/ethereum-optimism/infra/op-testengine/composer"
	"github.com/ethereum-optimism/infra/op-testengine/types"
)

// Result is the outcome of selection: the set of paths that execute.
type Result struct {
	enabled map[string]bool
	tests   int
}

// Select evaluates the selection against every element of the session.
// A test is enabled when its effective configuration is enabled and the
// selection matches its path. A suite is enabled when it is statically
// enabled and has at least one enabled descendant test; a suite without
// one is reported as skipped and never runs its hooks.
func Select(session *types.Session, comp *composer.Composer, sel Selection) *Result {
	res := &Result{enabled: make(map[string]bool)}
	res.visit(session.Root(), comp, sel)
	return res
}

func (r *Result) visit(e types.Element, comp *composer.Composer, sel Selection) bool {
	enabled := comp.Effective(e).Enabled
	switch v := e.(type) {
	case *types.Test:
		enabled = enabled && sel.Matches(v.Path())
		if enabled {
			r.tests++
		}
	case *types.Suite:
		anyChild := false
		for _, child := range v.Children() {
			if r.visit(child, comp, sel) {
				anyChild = true
			}
		}
		enabled = enabled && anyChild
	}
	if enabled {
		r.enabled[e.Path()] = true
	}
	return enabled
}

// Enabled reports whether the element with the given path executes. The
// empty path is the session root.
func (r *Result) Enabled(path string) bool {
	return r.enabled[path]
}

// Paths returns the sorted set of enabled element paths, excluding the
// session root.
func (r *Result) Paths() []string {
	paths := make([]string, 0, len(r.enabled))
	for p := range r.enabled {
		if p != "" {
			paths = append(paths, p)
		}
	}
	sort.Strings(paths)
	return paths
}

// TestCount returns the number of enabled tests.
func (r *Result) TestCount() int {
	return r.tests
}
