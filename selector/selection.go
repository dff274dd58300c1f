// Package selector decides which elements of a session execute, from
// include/exclude path patterns and the elements' static enablement.
package selector

import (
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/ethereum-optimism/infra/op-testengine/types"
)

// globSeparator is the separator doublestar understands. Element names may
// contain neither it nor types.PathSeparator, so the translation is lossless.
const globSeparator = "/"

// Selection is an immutable pair of include and exclude pattern sets.
//
// Patterns are element paths whose segments may use glob syntax: '*' matches
// within one segment, '**' across segments. A pattern that matches a suite
// also matches the suite's whole subtree, so "suite2.*" matches
// "suite2.test1" and "suite2.inner.test3" but not "suite20.test1".
type Selection struct {
	include []string
	exclude []string
}

// New validates the patterns and returns the selection. An absent or empty
// include list means everything is included.
func New(include, exclude []string) (Selection, error) {
	var problems []error
	inc, incProblems := normalize(include)
	exc, excProblems := normalize(exclude)
	problems = append(problems, incProblems...)
	problems = append(problems, excProblems...)
	if len(problems) > 0 {
		return Selection{}, types.NewConfigurationError(problems...)
	}
	return Selection{include: inc, exclude: exc}, nil
}

// MustNew is like New but panics on invalid patterns.
func MustNew(include, exclude []string) Selection {
	sel, err := New(include, exclude)
	if err != nil {
		panic(err)
	}
	return sel
}

func normalize(patterns []string) ([]string, []error) {
	var out []string
	var problems []error
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" {
			problems = append(problems, fmt.Errorf("empty selection pattern"))
			continue
		}
		if strings.Contains(p, globSeparator) || strings.HasPrefix(p, types.PathSeparator) || strings.HasSuffix(p, types.PathSeparator) || strings.Contains(p, "..") {
			problems = append(problems, fmt.Errorf("invalid selection pattern %q: segments must be separated by a single %q", p, types.PathSeparator))
			continue
		}
		glob := toGlob(p)
		if !doublestar.ValidatePattern(glob) {
			problems = append(problems, fmt.Errorf("invalid selection pattern %q", p))
			continue
		}
		out = append(out, glob)
	}
	return out, problems
}

func toGlob(s string) string {
	return strings.ReplaceAll(s, types.PathSeparator, globSeparator)
}

func fromGlob(s string) string {
	return strings.ReplaceAll(s, globSeparator, types.PathSeparator)
}

// Include returns the include patterns.
func (s Selection) Include() []string {
	return fromGlobs(s.include)
}

// Exclude returns the exclude patterns.
func (s Selection) Exclude() []string {
	return fromGlobs(s.exclude)
}

func fromGlobs(globs []string) []string {
	out := make([]string, 0, len(globs))
	for _, g := range globs {
		out = append(out, fromGlob(g))
	}
	return out
}

// IsZero reports whether the selection has no patterns at all.
func (s Selection) IsZero() bool {
	return len(s.include) == 0 && len(s.exclude) == 0
}

// Merge returns a selection holding the patterns of both selections.
func (s Selection) Merge(other Selection) Selection {
	return Selection{
		include: append(append([]string(nil), s.include...), other.include...),
		exclude: append(append([]string(nil), s.exclude...), other.exclude...),
	}
}

// Matches reports whether a path is included by the patterns: it (or one of
// its ancestors) matches an include pattern, or there are none, and neither
// it nor any ancestor matches an exclude pattern.
func (s Selection) Matches(path string) bool {
	glob := toGlob(path)
	if len(s.include) > 0 && !anyMatchesPrefix(s.include, glob) {
		return false
	}
	return !anyMatchesPrefix(s.exclude, glob)
}

func (s Selection) String() string {
	return fmt.Sprintf("include=%v exclude=%v", s.Include(), s.Exclude())
}

// ValidatePattern checks a single pattern.
func ValidatePattern(pattern string) error {
	if _, problems := normalize([]string{pattern}); len(problems) > 0 {
		return problems[0]
	}
	return nil
}

// MatchPattern reports whether a single pattern matches path exactly,
// without the subtree rule.
func MatchPattern(pattern, path string) (bool, error) {
	return doublestar.Match(toGlob(strings.TrimSpace(pattern)), toGlob(path))
}

// anyMatchesPrefix checks every ancestor-or-self prefix of path.
func anyMatchesPrefix(globs []string, path string) bool {
	for i := 0; i <= len(path); i++ {
		if i < len(path) && path[i:i+1] != globSeparator {
			continue
		}
		prefix := path[:i]
		for _, g := range globs {
			// Patterns were validated in New, so Match cannot fail.
			if ok, _ := doublestar.Match(g, prefix); ok {
				return true
			}
		}
	}
	return false
}
