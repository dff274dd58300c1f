package logging

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethereum-optimism/infra/op-testengine/reporting"
	"github.com/ethereum-optimism/infra/op-testengine/types"
)

func finishEvent(seq uint64, path string, kind types.ElementKind, status types.TestStatus, cause string) types.Event {
	start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	return types.Event{
		Sequence:    seq,
		Path:        path,
		ElementKind: kind,
		Kind:        types.EventFinish,
		Status:      status,
		Cause:       cause,
		Start:       start,
		End:         start.Add(1500 * time.Millisecond),
	}
}

func TestFileLogger(t *testing.T) {
	tmpDir := t.TempDir()
	runID := "test-run-123"
	logger, err := NewFileLogger(tmpDir, runID)
	require.NoError(t, err)

	baseDir, err := logger.GetDirectoryForRunID(runID)
	require.NoError(t, err)
	assert.Equal(t, reporting.RunDir(tmpDir, runID), baseDir)
	assert.Equal(t, baseDir, logger.GetBaseDir())
	assert.DirExists(t, filepath.Join(baseDir, PassedDirName))
	assert.DirExists(t, filepath.Join(baseDir, FailedDirName))

	events := []types.Event{
		{Sequence: 1, Path: "", ElementKind: types.KindSession, Kind: types.EventStart},
		{Sequence: 2, Path: "suite1", ElementKind: types.KindSuite, Kind: types.EventStart},
		{Sequence: 3, Path: "suite1.ok", ElementKind: types.KindTest, Kind: types.EventStart},
		finishEvent(4, "suite1.ok", types.KindTest, types.TestStatusPass, ""),
		{Sequence: 5, Path: "suite1.bad", ElementKind: types.KindTest, Kind: types.EventStart},
		finishEvent(6, "suite1.bad", types.KindTest, types.TestStatusFail, "\x1b[31massertion failed\x1b[0m: want 2"),
		{Sequence: 7, Path: "suite1.off", ElementKind: types.KindTest, Kind: types.EventStart},
		finishEvent(8, "suite1.off", types.KindTest, types.TestStatusSkip, "disabled"),
		finishEvent(9, "suite1", types.KindSuite, types.TestStatusFail, ""),
		finishEvent(10, "", types.KindSession, types.TestStatusFail, ""),
	}
	for _, ev := range events {
		require.NoError(t, logger.Consume(ev, runID))
	}
	require.NoError(t, logger.Complete(runID))

	// events.jsonl holds one line per event with causes cleaned
	f, err := os.Open(filepath.Join(baseDir, EventsFileName))
	require.NoError(t, err)
	defer f.Close()
	var records []EventRecord
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var rec EventRecord
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &rec))
		records = append(records, rec)
	}
	require.NoError(t, scanner.Err())
	require.Len(t, records, len(events))
	assert.Equal(t, runID, records[5].RunID)
	assert.Equal(t, "suite1.bad", records[5].Path)
	assert.Equal(t, "assertion failed: want 2", records[5].Cause)
	assert.Equal(t, int64(1500), records[5].DurationMS)

	allLogs, err := os.ReadFile(filepath.Join(baseDir, AllLogsFileName))
	require.NoError(t, err)
	assert.Contains(t, string(allLogs), "TEST: suite1.bad")
	assert.Contains(t, string(allLogs), "SUITE: suite1")
	assert.Contains(t, string(allLogs), "SESSION")
	assert.NotContains(t, string(allLogs), "\x1b[")

	assert.FileExists(t, filepath.Join(baseDir, PassedDirName, "suite1.ok.log"))
	assert.FileExists(t, filepath.Join(baseDir, FailedDirName, "suite1.bad.log"))
	assert.NoFileExists(t, filepath.Join(baseDir, PassedDirName, "suite1.off.log"))
	assert.FileExists(t, filepath.Join(baseDir, reporting.SummaryFileName))
	assert.FileExists(t, filepath.Join(baseDir, reporting.HTMLReportFileName))
}

func TestLoggerWithEmptyRunID(t *testing.T) {
	_, err := NewFileLogger(t.TempDir(), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "runID cannot be empty")

	_, err = NewFileLogger("", "run")
	require.Error(t, err)

	logger, err := NewFileLogger(t.TempDir(), "run")
	require.NoError(t, err)
	assert.Error(t, logger.Consume(types.Event{}, ""))
	assert.Error(t, logger.Complete(""))
	_, err = logger.GetDirectoryForRunID("")
	assert.Error(t, err)
}

func TestGetDirectoryForOtherRun(t *testing.T) {
	tmpDir := t.TempDir()
	logger, err := NewFileLogger(tmpDir, "current")
	require.NoError(t, err)

	dir, err := logger.GetDirectoryForRunID("other")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(tmpDir, reporting.RunDirectoryPrefix+"other"), dir)
	assert.Equal(t, "current", logger.GetRunID())
}

func TestAsyncFileWriter(t *testing.T) {
	testFilePath := filepath.Join(t.TempDir(), "async_test.log")

	asyncFile, err := NewAsyncFile(testFilePath)
	require.NoError(t, err)

	buf := []byte("Test async write 1\n")
	require.NoError(t, asyncFile.Write(buf))
	// Reusing the buffer after Write must not affect queued data
	copy(buf, "XXXX")
	require.NoError(t, asyncFile.Write([]byte("Test async write 2\n")))
	require.NoError(t, asyncFile.Close())
	require.NoError(t, asyncFile.Close())

	content, err := os.ReadFile(testFilePath)
	require.NoError(t, err)
	assert.Equal(t, "Test async write 1\nTest async write 2\n", string(content))

	err = asyncFile.Write([]byte("This should fail"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is closed")
}

func TestCleanCause(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "plain", input: "boom", want: "boom"},
		{name: "colored", input: "\x1b[1;31mFAIL\x1b[0m boom", want: "FAIL boom"},
		{name: "trailing newlines", input: "boom\n\n", want: "boom"},
		{name: "multiline", input: "line1\n\x1b[32mline2\x1b[0m", want: "line1\nline2"},
		{name: "empty", input: "", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanCause(tt.input))
		})
	}
}

func TestSafeFilename(t *testing.T) {
	assert.Equal(t, "session", safeFilename(""))
	assert.Equal(t, "suite.a_b_c", safeFilename("suite.a b/c"))
	assert.False(t, strings.ContainsAny(safeFilename(`a:b*c?d"e<f>g|h\i`), `:*?"<>|\`))
}
