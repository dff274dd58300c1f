package types

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nop(context.Context) error { return nil }

func paths(elements []Element) []string {
	out := make([]string, 0, len(elements))
	for _, e := range elements {
		out = append(out, e.Path())
	}
	return out
}

func TestBuildSession(t *testing.T) {
	h1 := DeclareSuite("suite1", func(s *Suite) {
		s.Test("test1", nop)
		s.Suite("inner", func(s *Suite) {
			s.Test("test2", nop, WithDisplayName("second test"))
		})
	})
	h2 := DeclareSuite("suite2", func(s *Suite) {
		s.Test("test1", nop)
	})

	session, err := BuildSession(Configuration{}, h1, h2)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"suite1", "suite1.test1", "suite1.inner", "suite1.inner.test2",
		"suite2", "suite2.test1",
	}, paths(session.Elements()))
	assert.Len(t, session.Tests(), 3)
	assert.Equal(t, KindSession, session.Root().Kind())
	assert.Equal(t, "", session.Root().Path())

	e, ok := session.Lookup("suite1.inner.test2")
	require.True(t, ok)
	assert.Equal(t, "second test", e.DisplayName())
	assert.Equal(t, "test2", e.Name())
	assert.Equal(t, KindTest, e.Kind())
	assert.Equal(t, "suite1.inner", e.Parent().Path())
	assert.Equal(t, 2, Depth(e))
	assert.Equal(t, []string{"", "suite1", "suite1.inner"}, func() []string {
		var out []string
		for _, a := range Ancestors(e) {
			out = append(out, a.Path())
		}
		return out
	}())

	root, ok := session.Lookup("")
	require.True(t, ok)
	assert.Equal(t, session.Root(), root)
	_, ok = session.Lookup("missing")
	assert.False(t, ok)
}

func TestBuildSessionConfigurationErrors(t *testing.T) {
	tests := []struct {
		name    string
		handles func() []*SuiteHandle
		problem string
	}{
		{
			name: "duplicate test name",
			handles: func() []*SuiteHandle {
				return []*SuiteHandle{DeclareSuite("s", func(s *Suite) {
					s.Test("t", nop)
					s.Test("t", nop)
				})}
			},
			problem: `duplicate element "s.t"`,
		},
		{
			name: "duplicate root suite",
			handles: func() []*SuiteHandle {
				return []*SuiteHandle{DeclareSuite("s", nil), DeclareSuite("s", nil)}
			},
			problem: `duplicate element "s"`,
		},
		{
			name: "name with separator",
			handles: func() []*SuiteHandle {
				return []*SuiteHandle{DeclareSuite("s", func(s *Suite) {
					s.Test("a.b", nop)
				})}
			},
			problem: "cannot contain",
		},
		{
			name: "empty name",
			handles: func() []*SuiteHandle {
				return []*SuiteHandle{DeclareSuite("", nil)}
			},
			problem: "cannot be empty",
		},
		{
			name: "nil action",
			handles: func() []*SuiteHandle {
				return []*SuiteHandle{DeclareSuite("s", func(s *Suite) {
					s.Test("t", nil)
				})}
			},
			problem: "has no action",
		},
		{
			name: "invalid invocation count",
			handles: func() []*SuiteHandle {
				return []*SuiteHandle{DeclareSuite("s", func(s *Suite) {
					s.Test("t", nop, WithInvocationCount(0))
				})}
			},
			problem: "invocation count must be at least 1",
		},
		{
			name: "negative timeout",
			handles: func() []*SuiteHandle {
				return []*SuiteHandle{DeclareSuite("s", nil, WithTimeout(-time.Second))}
			},
			problem: "timeout cannot be negative",
		},
		{
			name: "cross-suite registration",
			handles: func() []*SuiteHandle {
				return []*SuiteHandle{DeclareSuite("outer", func(outer *Suite) {
					outer.Suite("inner", func(inner *Suite) {
						outer.Test("misplaced", nop)
					})
				})}
			},
			problem: "cross-suite registration",
		},
		{
			name: "declaration on sealed suite",
			handles: func() []*SuiteHandle {
				return []*SuiteHandle{DeclareSuite("outer", func(outer *Suite) {
					var first *Suite
					first = outer.Suite("first", nil)
					outer.Suite("second", func(*Suite) {
						first.Test("late", nop)
					})
				})}
			},
			problem: "sealed suite",
		},
		{
			name: "panicking declaration",
			handles: func() []*SuiteHandle {
				return []*SuiteHandle{DeclareSuite("s", func(*Suite) {
					panic("broken declaration")
				})}
			},
			problem: "broken declaration",
		},
		{
			name: "nil handle",
			handles: func() []*SuiteHandle {
				return []*SuiteHandle{nil}
			},
			problem: "nil suite handle",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			session, err := BuildSession(Configuration{}, tt.handles()...)
			require.Error(t, err)
			assert.Nil(t, session)
			assert.True(t, IsConfigurationError(err))
			assert.Contains(t, err.Error(), tt.problem)
		})
	}
}

func TestBuildSessionCollectsAllProblems(t *testing.T) {
	h := DeclareSuite("s", func(s *Suite) {
		s.Test("t", nop)
		s.Test("t", nop)
		s.Test("", nop)
	})

	_, err := BuildSession(Configuration{}, h)
	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Len(t, cfgErr.Problems, 2)
}

func TestDeclaringAfterBuildPanics(t *testing.T) {
	var captured *Suite
	h := DeclareSuite("s", func(s *Suite) {
		captured = s
		s.Test("t", nop)
	})
	_, err := BuildSession(Configuration{}, h)
	require.NoError(t, err)

	assert.PanicsWithError(t, `configuration error: cannot declare test "late" on "s" after the tree was built`, func() {
		captured.Test("late", nop)
	})
}

func TestSuiteHandleIdempotent(t *testing.T) {
	builds := 0
	shared := DeclareSuite("shared", func(s *Suite) {
		builds++
		s.Test("t", nop)
	})
	var again *Suite
	h := DeclareSuite("root", func(s *Suite) {
		first := s.Include(shared)
		again = s.Include(shared)
		assert.Same(t, first, again)
	})

	session, err := BuildSession(Configuration{}, h)
	require.NoError(t, err)
	assert.Equal(t, 1, builds)
	assert.Same(t, shared.Suite(), again)
	assert.Equal(t, []string{"root", "root.shared", "root.shared.t"}, paths(session.Elements()))
}

func TestSuiteHandleReentrantForce(t *testing.T) {
	var self *SuiteHandle
	var observed *Suite
	self = DeclareSuite("self", func(s *Suite) {
		observed = s.Parent().Include(self)
		s.Test("t", nop)
	})

	_, err := BuildSession(Configuration{}, self)
	require.NoError(t, err)
	assert.Same(t, self.Suite(), observed)
}

func TestSuiteHandleDifferentParent(t *testing.T) {
	shared := DeclareSuite("shared", nil)
	a := DeclareSuite("a", func(s *Suite) { s.Include(shared) })
	b := DeclareSuite("b", func(s *Suite) { s.Include(shared) })

	_, err := BuildSession(Configuration{}, a, b)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `already declared under "a"`)
}

func TestSuiteHandleReusedAcrossSessions(t *testing.T) {
	builds := 0
	shared := DeclareSuite("shared", func(s *Suite) {
		builds++
		s.Test("t", nop)
	})
	root := DeclareSuite("root", func(s *Suite) {
		s.Include(shared)
	})

	first, err := BuildSession(Configuration{}, root)
	require.NoError(t, err)
	firstShared := shared.Suite()

	second, err := BuildSession(Configuration{}, root)
	require.NoError(t, err)
	assert.Equal(t, 2, builds)
	assert.NotSame(t, firstShared, shared.Suite())
	assert.Equal(t, paths(first.Elements()), paths(second.Elements()))

	e, ok := first.Lookup("root.shared")
	require.True(t, ok)
	assert.Same(t, firstShared, e)
	e, ok = second.Lookup("root.shared")
	require.True(t, ok)
	assert.Same(t, shared.Suite(), e)
}

func TestSuiteHandleForceWithoutParent(t *testing.T) {
	h := DeclareSuite("orphan", func(s *Suite) { s.Test("t", nop) })

	suite, err := h.Force(nil)
	require.Error(t, err)
	assert.True(t, IsConfigurationError(err))
	assert.Nil(t, suite)

	suite, err = h.Force(&Suite{})
	require.Error(t, err)
	assert.Nil(t, suite)
	assert.Nil(t, h.Suite())
}

func TestSessionOverride(t *testing.T) {
	h := DeclareSuite("s", func(s *Suite) {
		s.Test("a", nop)
		s.Test("b", nop)
	})
	session, err := BuildSession(Configuration{}, h)
	require.NoError(t, err)

	n, err := session.Override(func(path string) bool { return path == "s.a" }, Configuration{InvocationCount: ptr(3)})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	e, _ := session.Lookup("s.a")
	assert.Equal(t, 3, *e.Declared().InvocationCount)

	_, err = session.Override(func(string) bool { return true }, Configuration{InvocationCount: ptr(0)})
	assert.True(t, IsConfigurationError(err))

	require.NoError(t, session.OverrideDefaults(Configuration{Timeout: ptr(time.Minute)}))
	assert.Equal(t, time.Minute, *session.Root().Declared().Timeout)

	session.Freeze()
	_, err = session.Override(func(string) bool { return true }, Configuration{})
	assert.Error(t, err)
	assert.Error(t, session.OverrideDefaults(Configuration{}))
}

func TestWalkSkipsSubtree(t *testing.T) {
	h := DeclareSuite("s", func(s *Suite) {
		s.Suite("skip", func(s *Suite) {
			s.Test("hidden", nop)
		})
		s.Test("visible", nop)
	})
	session, err := BuildSession(Configuration{}, h)
	require.NoError(t, err)

	var visited []string
	Walk(session.Root(), func(e Element) bool {
		visited = append(visited, e.Path())
		return e.Name() != "skip"
	})
	assert.Equal(t, []string{"", "s", "s.skip", "s.visible"}, visited)
	assert.Equal(t, "t#2", Indexed("t", 2))
}
