package reporting

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/ethereum-optimism/infra/op-testengine/types"
	"github.com/ethereum-optimism/infra/op-testengine/ui"
)

// formatDuration formats a duration for display
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return d.Truncate(time.Millisecond).String()
}

// getStatusString returns a consistent uppercase status string
func getStatusString(status types.TestStatus) string {
	switch status {
	case types.TestStatusPass:
		return "PASS"
	case types.TestStatusFail:
		return "FAIL"
	case types.TestStatusSkip:
		return "SKIP"
	case types.TestStatusTimeout:
		return "TIMEOUT"
	default:
		return "UNKNOWN"
	}
}

func nodeLabel(n *Node) string {
	if n.DisplayName != "" && n.DisplayName != n.Name {
		return fmt.Sprintf("%s (%s)", n.Name, n.DisplayName)
	}
	return n.Name
}

// TreeTextFormatter renders a tree as an indented plain text summary
type TreeTextFormatter struct {
	includeDetails bool
}

func NewTreeTextFormatter(includeDetails bool) *TreeTextFormatter {
	return &TreeTextFormatter{includeDetails: includeDetails}
}

func (f *TreeTextFormatter) Format(tree *Tree) (string, error) {
	var buf bytes.Buffer

	buf.WriteString("Test Results Summary\n")
	buf.WriteString(strings.Repeat("=", 50) + "\n\n")

	buf.WriteString(fmt.Sprintf("Run ID: %s\n", tree.RunID))
	buf.WriteString(fmt.Sprintf("Duration: %s\n", formatDuration(tree.Duration)))
	buf.WriteString(fmt.Sprintf("Total Tests: %d\n", tree.Stats.Total))
	buf.WriteString(fmt.Sprintf("Passed: %d\n", tree.Stats.Passed))
	buf.WriteString(fmt.Sprintf("Failed: %d\n", tree.Stats.Failed))
	buf.WriteString(fmt.Sprintf("Timed Out: %d\n", tree.Stats.TimedOut))
	buf.WriteString(fmt.Sprintf("Skipped: %d\n", tree.Stats.Skipped))
	buf.WriteString(fmt.Sprintf("Pass Rate: %.1f%%\n", tree.Stats.PassRate))
	buf.WriteString(fmt.Sprintf("Status: %s\n\n", getStatusString(tree.Status)))

	buf.WriteString("Test Hierarchy:\n")
	buf.WriteString(strings.Repeat("-", 30) + "\n")
	tree.Walk(func(n *Node) bool {
		if n.Parent == nil {
			return true
		}
		depth, last, ancestors := n.Depth(), n.IsLast(), n.AncestorsLast()
		buf.WriteString(fmt.Sprintf("%s%s [%s] %s\n", ui.BuildTreePrefix(depth, last, ancestors), nodeLabel(n), getStatusString(n.Status), formatDuration(n.Duration())))
		if f.includeDetails && n.Cause != "" {
			detail := ui.ContinuationPrefix(depth, last, ancestors)
			for _, line := range strings.Split(n.Cause, "\n") {
				buf.WriteString(detail + "  " + line + "\n")
			}
		}
		return true
	})

	if len(tree.FailedNodes) > 0 {
		buf.WriteString("\nFailed Elements:\n")
		buf.WriteString(strings.Repeat("-", 20) + "\n")
		for _, n := range tree.FailedNodes {
			buf.WriteString(fmt.Sprintf("- %s [%s]", n.Path, getStatusString(n.Status)))
			if f.includeDetails {
				buf.WriteString(fmt.Sprintf(" (Error: %s)", firstLine(n.Cause)))
			}
			buf.WriteString("\n")
		}
	}
	return buf.String(), nil
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}

// TreeTableFormatter renders a tree as an ASCII table
type TreeTableFormatter struct {
	title          string
	showContainers bool
}

func NewTreeTableFormatter(title string, showContainers bool) *TreeTableFormatter {
	return &TreeTableFormatter{title: title, showContainers: showContainers}
}

func (f *TreeTableFormatter) Format(tree *Tree) (string, error) {
	var buf bytes.Buffer

	t := table.NewWriter()
	t.SetOutputMirror(&buf)
	t.SetTitle(f.title)
	t.AppendHeader(table.Row{"TYPE", "ID", "DURATION", "TESTS", "PASSED", "FAILED", "SKIPPED", "STATUS", "ERROR"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "TYPE", AutoMerge: true},
		{Name: "ID", WidthMax: 200, WidthMaxEnforcer: text.WrapSoft},
		{Name: "DURATION", Align: text.AlignRight},
		{Name: "TESTS", Align: text.AlignRight},
		{Name: "PASSED", Align: text.AlignRight},
		{Name: "FAILED", Align: text.AlignRight},
		{Name: "SKIPPED", Align: text.AlignRight},
		{Name: "ERROR", WidthMax: 60, WidthMaxEnforcer: text.WrapSoft},
	})

	tree.Walk(func(n *Node) bool {
		if n.Parent == nil {
			return true
		}
		if !f.showContainers && n.Kind != types.KindTest {
			return true
		}
		f.addNodeRow(t, n)
		return true
	})

	switch tree.Status {
	case types.TestStatusFail, types.TestStatusTimeout:
		t.SetStyle(table.StyleColoredBlackOnRedWhite)
	case types.TestStatusSkip:
		t.SetStyle(table.StyleColoredBlackOnYellowWhite)
	case types.TestStatusPass:
		t.SetStyle(table.StyleColoredBlackOnGreenWhite)
	default:
		t.SetStyle(table.StyleDefault)
	}

	t.AppendFooter(table.Row{
		"TOTAL",
		"",
		formatDuration(tree.Duration),
		tree.Stats.Total,
		tree.Stats.Passed,
		tree.Stats.Failed + tree.Stats.TimedOut,
		tree.Stats.Skipped,
		getStatusString(tree.Status),
		"",
	})

	t.Render()
	return buf.String(), nil
}

func (f *TreeTableFormatter) addNodeRow(t table.Writer, n *Node) {
	name := n.Path
	if f.showContainers {
		name = ui.BuildTreePrefix(n.Depth(), n.IsLast(), n.AncestorsLast()) + nodeLabel(n)
	}

	stats := subtreeStats(n)
	t.AppendRow(table.Row{
		strings.ToUpper(string(n.Kind)),
		name,
		formatDuration(n.Duration()),
		stats.Total,
		stats.Passed,
		stats.Failed + stats.TimedOut,
		stats.Skipped,
		getStatusString(n.Status),
		firstLine(n.Cause),
	})
}

func subtreeStats(n *Node) TreeStats {
	var s TreeStats
	var walk func(n *Node)
	walk = func(n *Node) {
		if n.Kind == types.KindTest {
			s.Total++
			switch n.Status {
			case types.TestStatusPass:
				s.Passed++
			case types.TestStatusFail:
				s.Failed++
			case types.TestStatusSkip:
				s.Skipped++
			case types.TestStatusTimeout:
				s.TimedOut++
			}
		}
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(n)
	return s
}

// TreeJSONResponse is the JSON form of a reported session
type TreeJSONResponse struct {
	RunID       string           `json:"runId"`
	Timestamp   time.Time        `json:"timestamp"`
	Duration    time.Duration    `json:"duration"`
	Status      types.TestStatus `json:"status"`
	Stats       TreeStats        `json:"stats"`
	Hierarchy   *TreeNodeJSON    `json:"hierarchy,omitempty"`
	FailedPaths []string         `json:"failedPaths"`
}

// TreeNodeJSON is the JSON form of one node
type TreeNodeJSON struct {
	Path        string            `json:"path"`
	Name        string            `json:"name"`
	DisplayName string            `json:"displayName,omitempty"`
	Kind        types.ElementKind `json:"kind"`
	Status      types.TestStatus  `json:"status,omitempty"`
	Duration    time.Duration     `json:"duration"`
	Cause       string            `json:"cause,omitempty"`
	Running     bool              `json:"running,omitempty"`
	Children    []TreeNodeJSON    `json:"children,omitempty"`
}

// TreeJSONFormatter renders a tree as JSON
type TreeJSONFormatter struct{}

func NewTreeJSONFormatter() *TreeJSONFormatter {
	return &TreeJSONFormatter{}
}

func (f *TreeJSONFormatter) Format(tree *Tree) (string, error) {
	resp := TreeJSONResponse{
		RunID:       tree.RunID,
		Timestamp:   time.Now(),
		Duration:    tree.Duration,
		Status:      tree.Status,
		Stats:       tree.Stats,
		FailedPaths: make([]string, 0, len(tree.FailedNodes)),
	}
	if tree.Root != nil {
		root := NodeJSON(tree.Root)
		resp.Hierarchy = &root
	}
	for _, n := range tree.FailedNodes {
		resp.FailedPaths = append(resp.FailedPaths, n.Path)
	}
	out, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal tree: %w", err)
	}
	return string(out), nil
}

// NodeJSON returns the JSON form of n and its subtree.
func NodeJSON(n *Node) TreeNodeJSON {
	out := TreeNodeJSON{
		Path:        n.Path,
		Name:        n.Name,
		DisplayName: n.DisplayName,
		Kind:        n.Kind,
		Status:      n.Status,
		Duration:    n.Duration(),
		Cause:       n.Cause,
		Running:     !n.Finished,
	}
	for _, c := range n.Children {
		out.Children = append(out.Children, NodeJSON(c))
	}
	return out
}
