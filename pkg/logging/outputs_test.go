package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsoleOutputWrite(t *testing.T) {
	var buf bytes.Buffer
	out := &ConsoleOutput{writer: &buf, color: false}

	err := out.Write(LogEntry{
		Time:     time.Now().UnixNano(),
		Severity: INFO,
		Message:  "node evicted",
		File:     "graph.go",
		Line:     10,
		Fields:   map[string]interface{}{"node_id": "n-1"},
	})
	require.NoError(t, err)

	line := buf.String()
	assert.Contains(t, line, "INFO")
	assert.Contains(t, line, "graph.go:10")
	assert.Contains(t, line, "node evicted")
	assert.Contains(t, line, "node_id=n-1")
}

func TestConsoleOutputColor(t *testing.T) {
	var buf bytes.Buffer
	out := &ConsoleOutput{writer: &buf, color: true}

	require.NoError(t, out.Write(LogEntry{
		Time:     time.Now().UnixNano(),
		Severity: ERROR,
		Message:  "boom",
	}))
	assert.Contains(t, buf.String(), "\033[31m")
}

func TestFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "mnemo.log")
	out, err := NewFileOutput(path)
	require.NoError(t, err)

	require.NoError(t, out.Write(LogEntry{
		Time:     time.Now().UnixNano(),
		Severity: WARN,
		Message:  "snapshot save failed",
		File:     "core.go",
		Line:     5,
	}))
	require.NoError(t, out.Sync())
	require.NoError(t, out.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "snapshot save failed")
	assert.Contains(t, string(data), "WARN")
}
