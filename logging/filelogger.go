package logging

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/acarl005/stripansi"

	"github.com/ethereum-optimism/infra/op-testengine/reporting"
	"github.com/ethereum-optimism/infra/op-testengine/types"
	"github.com/ethereum-optimism/infra/op-testengine/ui"
)

const (
	EventsFileName  = "events.jsonl"
	AllLogsFileName = "all.log"
	PassedDirName   = "passed"
	FailedDirName   = "failed"

	boxWidth = 72
)

// FileLogger writes the events of a run into its run directory. It is a
// reporting.Sink fanning out to the file based sinks below.
type FileLogger struct {
	baseDir      string                // Base directory for logs
	logDir       string                // Directory of the current run
	mu           sync.Mutex            // Protects asyncWriters
	sinks        []reporting.Sink      // File based consumers
	asyncWriters map[string]*AsyncFile // Writers keyed by path
	runID        string
}

// NewFileLogger creates the run directory layout for runID below baseDir
func NewFileLogger(baseDir string, runID string) (*FileLogger, error) {
	if runID == "" {
		return nil, fmt.Errorf("runID cannot be empty")
	}
	if baseDir == "" {
		return nil, fmt.Errorf("baseDir cannot be empty")
	}

	logDir := reporting.RunDir(baseDir, runID)
	for _, dir := range []string{baseDir, logDir, filepath.Join(logDir, PassedDirName), filepath.Join(logDir, FailedDirName)} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	htmlSink, err := reporting.NewHTMLSink(baseDir)
	if err != nil {
		return nil, err
	}

	l := &FileLogger{
		baseDir:      baseDir,
		logDir:       logDir,
		asyncWriters: make(map[string]*AsyncFile),
		runID:        runID,
	}
	l.sinks = []reporting.Sink{
		&EventLogSink{logger: l},
		&AllLogsFileSink{logger: l},
		&PerTestFileSink{logger: l, processed: make(map[string]bool)},
		reporting.NewTextSummarySink(baseDir, true),
		htmlSink,
	}
	return l, nil
}

// GetDirectoryForRunID returns the run directory for runID
func (l *FileLogger) GetDirectoryForRunID(runID string) (string, error) {
	if runID == "" {
		return "", fmt.Errorf("runID cannot be empty")
	}
	if runID == l.runID {
		return l.logDir, nil
	}
	return reporting.RunDir(l.baseDir, runID), nil
}

// GetBaseDir returns the directory of the current run
func (l *FileLogger) GetBaseDir() string {
	return l.logDir
}

func (l *FileLogger) GetRunID() string {
	return l.runID
}

// Consume feeds an event to every file sink
func (l *FileLogger) Consume(ev types.Event, runID string) error {
	if runID == "" {
		return fmt.Errorf("runID cannot be empty")
	}
	for _, sink := range l.sinks {
		if err := sink.Consume(ev, runID); err != nil {
			return fmt.Errorf("error in sink %T: %w", sink, err)
		}
	}
	return nil
}

// Complete finalizes all sinks and closes all file writers
func (l *FileLogger) Complete(runID string) error {
	if runID == "" {
		return fmt.Errorf("runID cannot be empty")
	}
	for _, sink := range l.sinks {
		if err := sink.Complete(runID); err != nil {
			l.closeAllWriters()
			return fmt.Errorf("error completing sink %T: %w", sink, err)
		}
	}
	return l.closeAllWriters()
}

func (l *FileLogger) getAsyncWriter(path string) (*AsyncFile, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if writer, exists := l.asyncWriters[path]; exists {
		return writer, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	writer, err := NewAsyncFile(path)
	if err != nil {
		return nil, err
	}
	l.asyncWriters[path] = writer
	return writer, nil
}

func (l *FileLogger) closeAllWriters() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var firstErr error
	for _, writer := range l.asyncWriters {
		if err := writer.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	l.asyncWriters = make(map[string]*AsyncFile)
	return firstErr
}

func (l *FileLogger) writeTo(runID, name string, data []byte) error {
	dir, err := l.GetDirectoryForRunID(runID)
	if err != nil {
		return err
	}
	writer, err := l.getAsyncWriter(filepath.Join(dir, name))
	if err != nil {
		return err
	}
	return writer.Write(data)
}

// CleanCause strips terminal escape sequences from a failure cause
func CleanCause(cause string) string {
	return strings.TrimRight(stripansi.Strip(cause), "\n")
}

// safeFilename converts an element path to a safe filename
func safeFilename(s string) string {
	if s == "" {
		return "session"
	}
	return strings.NewReplacer(
		"/", "_", "\\", "_", ":", "_", "*", "_", "?", "_",
		"\"", "_", "<", "_", ">", "_", "|", "_", " ", "_",
	).Replace(s)
}

// EventRecord is one line of the events file
type EventRecord struct {
	RunID string `json:"runId"`
	types.Event
	DurationMS int64 `json:"durationMs,omitempty"`
}

// EventLogSink appends every event as a JSON line to events.jsonl
type EventLogSink struct {
	logger *FileLogger
}

func (s *EventLogSink) Consume(ev types.Event, runID string) error {
	ev.Cause = CleanCause(ev.Cause)
	rec := EventRecord{RunID: runID, Event: ev, DurationMS: ev.Duration().Milliseconds()}
	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal event for %q: %w", ev.Path, err)
	}
	return s.logger.writeTo(runID, EventsFileName, append(line, '\n'))
}

func (s *EventLogSink) Complete(string) error {
	return nil
}

// AllLogsFileSink writes a block for every finished element to all.log
type AllLogsFileSink struct {
	logger *FileLogger
}

func (s *AllLogsFileSink) Consume(ev types.Event, runID string) error {
	if ev.Kind != types.EventFinish {
		return nil
	}
	return s.logger.writeTo(runID, AllLogsFileName, []byte(formatBlock(ev)))
}

func (s *AllLogsFileSink) Complete(string) error {
	return nil
}

func formatBlock(ev types.Event) string {
	var b strings.Builder
	title := fmt.Sprintf("%s: %s", strings.ToUpper(string(ev.ElementKind)), ev.Path)
	if ev.Path == "" {
		title = "SESSION"
	}
	b.WriteString("\n")
	b.WriteString(ui.BuildBoxHeader(title, boxWidth))
	b.WriteString(ui.BuildBoxLine("Status:   "+string(ev.Status), boxWidth))
	if ev.DisplayName != "" {
		b.WriteString(ui.BuildBoxLine("Name:     "+ev.DisplayName, boxWidth))
	}
	b.WriteString(ui.BuildBoxLine("Duration: "+ev.Duration().String(), boxWidth))
	b.WriteString(ui.BuildBoxLine("Time:     "+ev.End.Format(time.RFC3339), boxWidth))
	b.WriteString(ui.BuildBoxFooter(boxWidth))
	if cause := CleanCause(ev.Cause); cause != "" {
		b.WriteString("\nCAUSE:\n~~~~~~\n")
		b.WriteString(indentText(cause, "  "))
		b.WriteString("\n")
	}
	return b.String()
}

func indentText(text, indent string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if line != "" {
			lines[i] = indent + line
		}
	}
	return strings.Join(lines, "\n")
}

// PerTestFileSink writes a dedicated file for every executed test into the
// passed or failed directory. Skipped tests get no file.
type PerTestFileSink struct {
	logger    *FileLogger
	mu        sync.Mutex
	processed map[string]bool
}

func (s *PerTestFileSink) Consume(ev types.Event, runID string) error {
	if ev.Kind != types.EventFinish || ev.ElementKind != types.KindTest || ev.Status == types.TestStatusSkip {
		return nil
	}

	dir := PassedDirName
	if ev.Status.IsFailure() {
		dir = FailedDirName
	}
	name := filepath.Join(dir, safeFilename(ev.Path)+".log")

	s.mu.Lock()
	if s.processed[name] {
		s.mu.Unlock()
		return nil
	}
	s.processed[name] = true
	s.mu.Unlock()

	base, err := s.logger.GetDirectoryForRunID(runID)
	if err != nil {
		return err
	}
	path := filepath.Join(base, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	if err := os.WriteFile(path, []byte(formatBlock(ev)), 0644); err != nil {
		return fmt.Errorf("failed to write test log %s: %w", path, err)
	}
	return nil
}

func (s *PerTestFileSink) Complete(string) error {
	return nil
}
