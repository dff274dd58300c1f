package reporting

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTMLFormatter(t *testing.T) {
	b := NewTreeBuilder()
	for _, ev := range sessionEvents() {
		b.Add(ev)
	}
	formatter, err := NewTreeHTMLFormatter("")
	require.NoError(t, err)

	out, err := formatter.Format(b.Build("run-1"))
	require.NoError(t, err)

	assert.Contains(t, out, "<h1 class=\"fail\">Run run-1: fail</h1>")
	assert.Contains(t, out, "Total 3, passed 1, failed 1")
	assert.Contains(t, out, "50.0% pass rate")
	assert.Contains(t, out, "assertion failed: 1 != 2")
	assert.Contains(t, out, "<td class=\"skip\">skip</td>")
	assert.Contains(t, out, "20ms")
}

func TestHTMLFormatterCustomTemplate(t *testing.T) {
	b := NewTreeBuilder()
	for _, ev := range sessionEvents() {
		b.Add(ev)
	}

	tests := []struct {
		name     string
		template string
		want     string
		wantErr  bool
	}{
		{name: "rows", template: `{{range .Rows}}{{.Label}}:{{.Depth}};{{end}}`, want: "suite1:0;test1:1;inner:1;test2:2;suite2:0;test1:1;"},
		{name: "escaping", template: `{{.RunID}}`, want: "&lt;run&gt;"},
		{name: "parse error", template: `{{range}}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			formatter, err := NewTreeHTMLFormatter(tt.template)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			runID := "run-1"
			if tt.name == "escaping" {
				runID = "<run>"
			}
			out, err := formatter.Format(b.Build(runID))
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestHTMLSink(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewHTMLSink(dir)
	require.NoError(t, err)
	feed(t, sink, sessionEvents())
	require.NoError(t, sink.Complete("run-1"))

	content, err := os.ReadFile(filepath.Join(RunDir(dir, "run-1"), HTMLReportFileName))
	require.NoError(t, err)
	assert.Contains(t, string(content), "<!DOCTYPE html>")
	assert.Contains(t, string(content), "suite1")
}
