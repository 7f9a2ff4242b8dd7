package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetDefaultConfig(t *testing.T) {
	cfg := GetDefaultConfig()
	require.NotNil(t, cfg)

	assert.Equal(t, 1000, cfg.Experience.MaxEntries)
	assert.Equal(t, 100, cfg.Experience.MaxQueryLimit)
	assert.Equal(t, 500, cfg.Knowledge.MaxNodes)
	assert.Equal(t, 0.1, cfg.Knowledge.ConfidenceIncrement)
	assert.Equal(t, 20, cfg.Pattern.WindowSize)
	assert.Equal(t, 3, cfg.Pattern.MinSupport)
	assert.Equal(t, 5, cfg.Pattern.MaxPatternLength)
	assert.True(t, cfg.Scheduler.Enabled)
	assert.Equal(t, 0.9, cfg.Scheduler.FSRS.TargetRetention)
	assert.Equal(t, "memory", cfg.Persistence.Backend)
	assert.Equal(t, "INFO", cfg.Logging.Level)

	assert.NoError(t, Validate(cfg), "defaults must validate")
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{
			name:   "zero max entries",
			mutate: func(c *Config) { c.Experience.MaxEntries = 0 },
		},
		{
			name:   "negative confidence increment",
			mutate: func(c *Config) { c.Knowledge.ConfidenceIncrement = -0.5 },
		},
		{
			name:   "lapse factor not below one",
			mutate: func(c *Config) { c.Scheduler.FSRS.LapseFactor = 1.5 },
		},
		{
			name:   "unknown persistence backend",
			mutate: func(c *Config) { c.Persistence.Backend = "redis" },
		},
		{
			name:   "pattern length beyond window",
			mutate: func(c *Config) { c.Pattern.MaxPatternLength = 50 },
		},
		{
			name:   "file backend without dir",
			mutate: func(c *Config) { c.Persistence.Backend = "file" },
		},
		{
			name:   "sqlite backend without path",
			mutate: func(c *Config) { c.Persistence.Backend = "sqlite" },
		},
		{
			name:   "unknown log level",
			mutate: func(c *Config) { c.Logging.Level = "TRACE" },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := GetDefaultConfig()
			tt.mutate(cfg)
			err := Validate(cfg)
			require.Error(t, err)

			var verrs ValidationErrors
			require.ErrorAs(t, err, &verrs)
			assert.NotEmpty(t, verrs)
		})
	}
}

func TestValidateNilConfig(t *testing.T) {
	err := Validate(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config is nil")
}

func TestLoadFromFile(t *testing.T) {
	t.Run("overrides defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "mnemo.yaml")
		content := `
experience:
  max_entries: 50
pattern:
  min_support: 5
scheduler:
  enabled: false
`
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))

		cfg, err := LoadFromFile(path)
		require.NoError(t, err)

		assert.Equal(t, 50, cfg.Experience.MaxEntries)
		assert.Equal(t, 5, cfg.Pattern.MinSupport)
		assert.False(t, cfg.Scheduler.Enabled)
		// Untouched fields keep their defaults
		assert.Equal(t, 100, cfg.Experience.MaxQueryLimit)
		assert.Equal(t, 500, cfg.Knowledge.MaxNodes)
	})

	t.Run("missing file keeps defaults", func(t *testing.T) {
		cfg, err := LoadFromFile(filepath.Join(t.TempDir(), "absent.yaml"))
		require.NoError(t, err)
		assert.Equal(t, 1000, cfg.Experience.MaxEntries)
	})

	t.Run("malformed yaml fails", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("experience: ["), 0644))

		_, err := LoadFromFile(path)
		assert.Error(t, err)
	})
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("MNEMO_EXPERIENCE_MAX_ENTRIES", "25")
	t.Setenv("MNEMO_PATTERN_RECENCY_WINDOW", "5m")
	t.Setenv("MNEMO_SCHEDULER_ENABLED", "false")
	t.Setenv("MNEMO_LOGGING_LEVEL", "DEBUG")
	t.Setenv("MNEMO_KNOWLEDGE_MAX_NODES", "not-a-number") // ignored

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 25, cfg.Experience.MaxEntries)
	assert.Equal(t, 5*time.Minute, cfg.Pattern.RecencyWindow)
	assert.False(t, cfg.Scheduler.Enabled)
	assert.Equal(t, "DEBUG", cfg.Logging.Level)
	assert.Equal(t, 500, cfg.Knowledge.MaxNodes, "unparseable override is ignored")
}

func TestLoadPriority(t *testing.T) {
	// Env beats file, file beats defaults.
	path := filepath.Join(t.TempDir(), "mnemo.yaml")
	require.NoError(t, os.WriteFile(path, []byte("experience:\n  max_entries: 50\n  max_query_limit: 10\n"), 0644))
	t.Setenv("MNEMO_EXPERIENCE_MAX_ENTRIES", "75")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 75, cfg.Experience.MaxEntries)
	assert.Equal(t, 10, cfg.Experience.MaxQueryLimit)
	assert.Equal(t, 500, cfg.Knowledge.MaxNodes)
}
