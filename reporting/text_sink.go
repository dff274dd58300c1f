package reporting

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ethereum-optimism/infra/op-testengine/types"
)

// RunDirectoryPrefix prefixes the per-run output directory
const RunDirectoryPrefix = "testrun-"

// SummaryFileName is the text summary written into the run directory
const SummaryFileName = "summary.log"

// RunDir returns the output directory of a run.
func RunDir(baseDir, runID string) string {
	return filepath.Join(baseDir, RunDirectoryPrefix+runID)
}

// TreeSink rebuilds the session tree from events. It can be snapshotted at
// any time, including while the session is still running.
type TreeSink struct {
	builder *TreeBuilder
}

func NewTreeSink() *TreeSink {
	return &TreeSink{builder: NewTreeBuilder()}
}

func (s *TreeSink) Consume(ev types.Event, _ string) error {
	s.builder.Add(ev)
	return nil
}

func (s *TreeSink) Complete(string) error {
	return nil
}

// Tree returns a snapshot of the tree built so far.
func (s *TreeSink) Tree(runID string) *Tree {
	return s.builder.Build(runID)
}

// TextSummarySink writes a plain text summary into the run directory once
// the session completes.
type TextSummarySink struct {
	*TreeSink
	formatter *TreeTextFormatter
	baseDir   string
}

// NewTextSummarySink creates a new text summary sink writing below baseDir
func NewTextSummarySink(baseDir string, includeDetails bool) *TextSummarySink {
	return &TextSummarySink{
		TreeSink:  NewTreeSink(),
		formatter: NewTreeTextFormatter(includeDetails),
		baseDir:   baseDir,
	}
}

// Complete generates the text summary file
func (s *TextSummarySink) Complete(runID string) error {
	outputDir := RunDir(s.baseDir, runID)
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory %s: %w", outputDir, err)
	}

	content, err := s.formatter.Format(s.Tree(runID))
	if err != nil {
		return fmt.Errorf("failed to format text summary: %w", err)
	}

	summaryFile := filepath.Join(outputDir, SummaryFileName)
	if err := os.WriteFile(summaryFile, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write summary file: %w", err)
	}
	return nil
}

// TableReporter prints a results table once the session completes
type TableReporter struct {
	*TreeSink
	formatter *TreeTableFormatter
	out       io.Writer
}

// NewTableReporter creates a table reporter printing to out
func NewTableReporter(title string, showContainers bool, out io.Writer) *TableReporter {
	if out == nil {
		out = os.Stdout
	}
	return &TableReporter{
		TreeSink:  NewTreeSink(),
		formatter: NewTreeTableFormatter(title, showContainers),
		out:       out,
	}
}

// Complete renders the table
func (r *TableReporter) Complete(runID string) error {
	content, err := r.formatter.Format(r.Tree(runID))
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(r.out, content)
	return err
}
