package reporting

import (
	"bytes"
	_ "embed"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"time"

	"github.com/ethereum-optimism/infra/op-testengine/types"
)

// HTMLReportFileName is the HTML report written into the run directory
const HTMLReportFileName = "results.html"

//go:embed templates/report.html.tmpl
var reportTemplate string

// htmlRow is one element line of the HTML report
type htmlRow struct {
	Label    string
	Kind     types.ElementKind
	Status   types.TestStatus
	Cause    string
	Depth    int
	Duration time.Duration
}

type htmlReport struct {
	*Tree
	Rows []htmlRow
}

// TreeHTMLFormatter formats trees as a standalone HTML page
type TreeHTMLFormatter struct {
	template *template.Template
}

// NewTreeHTMLFormatter creates a formatter from templateContent. An empty
// template selects the built-in report.
func NewTreeHTMLFormatter(templateContent string) (*TreeHTMLFormatter, error) {
	if templateContent == "" {
		templateContent = reportTemplate
	}
	tmpl, err := template.New("tree-report").Funcs(template.FuncMap{
		"formatDuration": func(d time.Duration) string {
			if d < time.Second {
				return fmt.Sprintf("%dms", d.Milliseconds())
			}
			return d.Truncate(time.Millisecond).String()
		},
		"statusClass": func(status types.TestStatus) string {
			if status == "" {
				return "running"
			}
			return string(status)
		},
		"indent": func(depth int) float64 {
			return 0.5 + 1.5*float64(depth)
		},
	}).Parse(templateContent)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML template: %w", err)
	}
	return &TreeHTMLFormatter{template: tmpl}, nil
}

// Format formats a tree as HTML
func (f *TreeHTMLFormatter) Format(tree *Tree) (string, error) {
	report := htmlReport{Tree: tree}
	tree.Walk(func(n *Node) bool {
		if n.Parent == nil {
			return true
		}
		label := n.Name
		if n.DisplayName != "" && n.DisplayName != n.Name {
			label = fmt.Sprintf("%s (%s)", n.DisplayName, n.Name)
		}
		report.Rows = append(report.Rows, htmlRow{
			Label:    label,
			Kind:     n.Kind,
			Status:   n.Status,
			Cause:    n.Cause,
			Depth:    n.Depth() - 1,
			Duration: n.Duration(),
		})
		return true
	})

	var buf bytes.Buffer
	if err := f.template.Execute(&buf, report); err != nil {
		return "", fmt.Errorf("failed to execute HTML template: %w", err)
	}
	return buf.String(), nil
}

// HTMLSink writes an HTML report into the run directory once the session
// completes.
type HTMLSink struct {
	*TreeSink
	formatter *TreeHTMLFormatter
	baseDir   string
}

// NewHTMLSink creates an HTML sink writing below baseDir with the built-in
// template.
func NewHTMLSink(baseDir string) (*HTMLSink, error) {
	formatter, err := NewTreeHTMLFormatter("")
	if err != nil {
		return nil, err
	}
	return &HTMLSink{
		TreeSink:  NewTreeSink(),
		formatter: formatter,
		baseDir:   baseDir,
	}, nil
}

// Complete generates the HTML report
func (s *HTMLSink) Complete(runID string) error {
	outputDir := RunDir(s.baseDir, runID)
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory %s: %w", outputDir, err)
	}

	content, err := s.formatter.Format(s.Tree(runID))
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(outputDir, HTMLReportFileName), []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write HTML report: %w", err)
	}
	return nil
}
