package reporting

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ethereum-optimism/infra/op-testengine/types"
)

// Node is one element of a reported session, rebuilt from its events.
type Node struct {
	Path        string
	Name        string
	DisplayName string
	Kind        types.ElementKind
	Status      types.TestStatus
	Cause       string
	Aggregated  bool // Cause summarizes failed children
	Start       time.Time
	End         time.Time
	Finished    bool

	Parent   *Node
	Children []*Node

	order uint64 // sequence of the start event
}

// Duration returns the elapsed time of the element.
func (n *Node) Duration() time.Duration {
	if !n.Finished || n.End.IsZero() {
		return 0
	}
	return n.End.Sub(n.Start)
}

// Depth returns the distance from the session root.
func (n *Node) Depth() int {
	depth := 0
	for p := n.Parent; p != nil; p = p.Parent {
		depth++
	}
	return depth
}

// IsLast reports whether n is the last child of its parent.
func (n *Node) IsLast() bool {
	if n.Parent == nil {
		return true
	}
	siblings := n.Parent.Children
	return siblings[len(siblings)-1] == n
}

// AncestorsLast returns IsLast for every ancestor below the root, outermost
// first, as needed to draw tree prefixes.
func (n *Node) AncestorsLast() []bool {
	var out []bool
	for p := n.Parent; p != nil && p.Parent != nil; p = p.Parent {
		out = append(out, p.IsLast())
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// TreeStats counts test leaves by status
type TreeStats struct {
	Total    int     `json:"total"`
	Passed   int     `json:"passed"`
	Failed   int     `json:"failed"`
	Skipped  int     `json:"skipped"`
	TimedOut int     `json:"timedOut"`
	PassRate float64 `json:"passRate"`
}

// Tree is a reported session.
type Tree struct {
	RunID       string
	Root        *Node
	Stats       TreeStats
	Status      types.TestStatus
	Duration    time.Duration
	FailedNodes []*Node // failed or timed-out elements carrying their own cause
}

// Walk visits every node in declaration order. Returning false skips the
// node's subtree.
func (t *Tree) Walk(fn func(*Node) bool) {
	var walk func(n *Node)
	walk = func(n *Node) {
		if !fn(n) {
			return
		}
		for _, c := range n.Children {
			walk(c)
		}
	}
	if t.Root != nil {
		walk(t.Root)
	}
}

// Find returns the node with the given path.
func (t *Tree) Find(path string) *Node {
	var found *Node
	t.Walk(func(n *Node) bool {
		if n.Path == path {
			found = n
			return false
		}
		return found == nil && (n.Path == "" || strings.HasPrefix(path, n.Path+types.PathSeparator))
	})
	return found
}

// TreeBuilder rebuilds the element tree from lifecycle events. It is safe
// for concurrent use.
type TreeBuilder struct {
	mu    sync.Mutex
	nodes map[string]*Node
}

func NewTreeBuilder() *TreeBuilder {
	return &TreeBuilder{nodes: make(map[string]*Node)}
}

// Add records an event.
func (b *TreeBuilder) Add(ev types.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n, ok := b.nodes[ev.Path]
	if !ok {
		n = &Node{Path: ev.Path, Name: lastSegment(ev.Path), order: ev.Sequence}
		b.nodes[ev.Path] = n
	}
	n.DisplayName = ev.DisplayName
	n.Kind = ev.ElementKind
	switch ev.Kind {
	case types.EventStart:
		n.Start = ev.Start
		n.order = ev.Sequence
	case types.EventFinish:
		n.Finished = true
		n.Status = ev.Status
		n.Cause = ev.Cause
		n.Aggregated = ev.Aggregated
		n.Start = ev.Start
		n.End = ev.End
	}
}

// Build assembles the tree. Nodes whose parent never produced an event are
// attached to the root.
func (b *TreeBuilder) Build(runID string) *Tree {
	b.mu.Lock()
	defer b.mu.Unlock()

	nodes := make(map[string]*Node, len(b.nodes))
	for path, n := range b.nodes {
		c := *n
		c.Parent, c.Children = nil, nil
		nodes[path] = &c
	}
	root, ok := nodes[""]
	if !ok {
		root = &Node{Kind: types.KindSession}
		nodes[""] = root
	}

	paths := make([]string, 0, len(nodes))
	for p := range nodes {
		paths = append(paths, p)
	}
	sort.Slice(paths, func(i, j int) bool { return nodes[paths[i]].order < nodes[paths[j]].order })

	for _, p := range paths {
		if p == "" {
			continue
		}
		n := nodes[p]
		parent := root
		for pp := parentPath(p); pp != ""; pp = parentPath(pp) {
			if candidate, ok := nodes[pp]; ok {
				parent = candidate
				break
			}
		}
		n.Parent = parent
		parent.Children = append(parent.Children, n)
	}

	tree := &Tree{RunID: runID, Root: root, Status: root.Status, Duration: root.Duration()}
	tree.Walk(func(n *Node) bool {
		if n.Kind == types.KindTest {
			tree.Stats.Total++
			switch n.Status {
			case types.TestStatusPass:
				tree.Stats.Passed++
			case types.TestStatusFail:
				tree.Stats.Failed++
			case types.TestStatusSkip:
				tree.Stats.Skipped++
			case types.TestStatusTimeout:
				tree.Stats.TimedOut++
			}
		}
		if n.Status.IsFailure() && n.Cause != "" && !n.Aggregated {
			tree.FailedNodes = append(tree.FailedNodes, n)
		}
		return true
	})
	if executed := tree.Stats.Total - tree.Stats.Skipped; executed > 0 {
		tree.Stats.PassRate = float64(tree.Stats.Passed) * 100 / float64(executed)
	}
	if tree.Status == "" {
		tree.Status = types.TestStatusFail
	}
	return tree
}

func parentPath(path string) string {
	if i := strings.LastIndex(path, types.PathSeparator); i >= 0 {
		return path[:i]
	}
	return ""
}

func lastSegment(path string) string {
	return path[strings.LastIndex(path, types.PathSeparator)+1:]
}
