package config

import (
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/XiaoConstantine/mnemo-go/pkg/errors"
)

// EnvPrefix is the prefix for environment variable overrides.
const EnvPrefix = "MNEMO_"

// Load builds a configuration by layering sources in priority order:
// documented defaults, then the optional YAML file at path, then MNEMO_*
// environment variables. An empty path skips the file source; a missing file
// is not an error.
func Load(path string) (*Config, error) {
	cfg := GetDefaultConfig()

	if path != "" {
		if err := mergeFile(cfg, path); err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromFile reads a YAML configuration file over the defaults.
func LoadFromFile(path string) (*Config, error) {
	cfg := GetDefaultConfig()
	if err := mergeFile(cfg, path); err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// mergeFile decodes the YAML file at path onto cfg. Fields absent from the
// file keep their current values.
func mergeFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errors.WithFields(
			errors.Wrap(err, errors.StorageFailed, "failed to read config file"),
			errors.Fields{"path": path},
		)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return errors.WithFields(
			errors.Wrap(err, errors.ValidationFailed, "failed to parse config file"),
			errors.Fields{"path": path},
		)
	}

	return nil
}

// applyEnvOverrides applies MNEMO_*-prefixed environment variables onto cfg.
// Unparseable values are ignored so a stray variable cannot break startup.
func applyEnvOverrides(cfg *Config) {
	setInt := func(key string, dst *int) {
		if raw, ok := os.LookupEnv(EnvPrefix + key); ok {
			if v, err := strconv.Atoi(raw); err == nil {
				*dst = v
			}
		}
	}
	setFloat := func(key string, dst *float64) {
		if raw, ok := os.LookupEnv(EnvPrefix + key); ok {
			if v, err := strconv.ParseFloat(raw, 64); err == nil {
				*dst = v
			}
		}
	}
	setBool := func(key string, dst *bool) {
		if raw, ok := os.LookupEnv(EnvPrefix + key); ok {
			if v, err := strconv.ParseBool(raw); err == nil {
				*dst = v
			}
		}
	}
	setString := func(key string, dst *string) {
		if raw, ok := os.LookupEnv(EnvPrefix + key); ok {
			*dst = raw
		}
	}
	setDuration := func(key string, dst *time.Duration) {
		if raw, ok := os.LookupEnv(EnvPrefix + key); ok {
			if v, err := time.ParseDuration(raw); err == nil {
				*dst = v
			}
		}
	}

	setInt("EXPERIENCE_MAX_ENTRIES", &cfg.Experience.MaxEntries)
	setInt("EXPERIENCE_MAX_QUERY_LIMIT", &cfg.Experience.MaxQueryLimit)

	setInt("KNOWLEDGE_MAX_NODES", &cfg.Knowledge.MaxNodes)
	setFloat("KNOWLEDGE_CONFIDENCE_INCREMENT", &cfg.Knowledge.ConfidenceIncrement)
	setFloat("KNOWLEDGE_DECAY_FACTOR", &cfg.Knowledge.DecayFactor)

	setInt("PATTERN_WINDOW_SIZE", &cfg.Pattern.WindowSize)
	setInt("PATTERN_MIN_SUPPORT", &cfg.Pattern.MinSupport)
	setInt("PATTERN_MAX_LENGTH", &cfg.Pattern.MaxPatternLength)
	setDuration("PATTERN_RECENCY_WINDOW", &cfg.Pattern.RecencyWindow)

	setBool("SCHEDULER_ENABLED", &cfg.Scheduler.Enabled)
	setFloat("SCHEDULER_DEFAULT_STABILITY", &cfg.Scheduler.FSRS.DefaultStability)
	setFloat("SCHEDULER_DEFAULT_DIFFICULTY", &cfg.Scheduler.FSRS.DefaultDifficulty)
	setFloat("SCHEDULER_GROWTH_RATE", &cfg.Scheduler.FSRS.GrowthRate)
	setFloat("SCHEDULER_DECAY_RATE", &cfg.Scheduler.FSRS.DecayRate)
	setFloat("SCHEDULER_LAPSE_FACTOR", &cfg.Scheduler.FSRS.LapseFactor)
	setFloat("SCHEDULER_TARGET_RETENTION", &cfg.Scheduler.FSRS.TargetRetention)

	setString("PERSISTENCE_BACKEND", &cfg.Persistence.Backend)
	setString("PERSISTENCE_DIR", &cfg.Persistence.Dir)
	setString("PERSISTENCE_PATH", &cfg.Persistence.Path)

	setString("LOGGING_LEVEL", &cfg.Logging.Level)
	setString("LOGGING_FILE", &cfg.Logging.File)
}
