package logging

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureOutput collects entries in memory for assertions.
type captureOutput struct {
	mu      sync.Mutex
	entries []LogEntry
}

func (c *captureOutput) Write(e LogEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, e)
	return nil
}

func (c *captureOutput) Sync() error  { return nil }
func (c *captureOutput) Close() error { return nil }

func (c *captureOutput) Entries() []LogEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]LogEntry, len(c.entries))
	copy(out, c.entries)
	return out
}

func TestLoggerSeverityFiltering(t *testing.T) {
	capture := &captureOutput{}
	logger := NewLogger(Config{
		Severity: WARN,
		Outputs:  []Output{capture},
	})

	ctx := context.Background()
	logger.Debug(ctx, "debug message")
	logger.Info(ctx, "info message")
	logger.Warn(ctx, "warn message")
	logger.Error(ctx, "error message")

	entries := capture.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, WARN, entries[0].Severity)
	assert.Equal(t, "warn message", entries[0].Message)
	assert.Equal(t, ERROR, entries[1].Severity)
}

func TestLoggerDefaultFields(t *testing.T) {
	capture := &captureOutput{}
	logger := NewLogger(Config{
		Severity: DEBUG,
		Outputs:  []Output{capture},
		DefaultFields: map[string]interface{}{
			"component": "experience",
		},
	})

	logger.Info(context.Background(), "recorded entry %d", 42)

	entries := capture.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "recorded entry 42", entries[0].Message)
	assert.Equal(t, "experience", entries[0].Fields["component"])
	assert.NotEmpty(t, entries[0].File)
	assert.NotZero(t, entries[0].Line)
}

func TestGlobalLogger(t *testing.T) {
	t.Run("GetLogger returns default when unset", func(t *testing.T) {
		SetLogger(nil)
		logger := GetLogger()
		require.NotNil(t, logger)
		// Subsequent calls return the same instance
		assert.Same(t, logger, GetLogger())
	})

	t.Run("SetLogger replaces global instance", func(t *testing.T) {
		custom := NewLogger(Config{Severity: ERROR})
		SetLogger(custom)
		defer SetLogger(nil)
		assert.Same(t, custom, GetLogger())
	})
}
