package config

import (
	"time"
)

// Config represents the complete configuration for the mnemo-go memory core.
type Config struct {
	// Experience store configuration
	Experience ExperienceConfig `yaml:"experience,omitempty" validate:"omitempty"`

	// Knowledge graph configuration
	Knowledge KnowledgeConfig `yaml:"knowledge,omitempty" validate:"omitempty"`

	// Pattern detector configuration
	Pattern PatternConfig `yaml:"pattern,omitempty" validate:"omitempty"`

	// Spaced-repetition scheduler configuration
	Scheduler SchedulerConfig `yaml:"scheduler,omitempty" validate:"omitempty"`

	// Persistence configuration
	Persistence PersistenceConfig `yaml:"persistence,omitempty" validate:"omitempty"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging,omitempty" validate:"omitempty"`
}

// ExperienceConfig bounds the experience store.
type ExperienceConfig struct {
	// Maximum number of experiences kept; oldest are evicted past this cap
	MaxEntries int `yaml:"max_entries" validate:"min=1"`

	// Upper bound applied to query limits (oversized limits are clamped)
	MaxQueryLimit int `yaml:"max_query_limit" validate:"min=1"`
}

// KnowledgeConfig bounds the knowledge graph and tunes confidence updates.
type KnowledgeConfig struct {
	// Maximum number of nodes; lowest-confidence nodes are evicted past this cap
	MaxNodes int `yaml:"max_nodes" validate:"min=1"`

	// Increment applied on upsert merge: c' = c + (1-c)*increment
	ConfidenceIncrement float64 `yaml:"confidence_increment" validate:"gt=0,lte=1"`

	// Multiplier applied to every confidence during a decay sweep
	DecayFactor float64 `yaml:"decay_factor" validate:"gt=0,lte=1"`
}

// PatternConfig tunes the sliding-window sequence miner.
type PatternConfig struct {
	// Number of recent actions retained per session
	WindowSize int `yaml:"window_size" validate:"min=2"`

	// Minimum support before a candidate is eligible for promotion
	MinSupport int `yaml:"min_support" validate:"min=1"`

	// Longest action sub-sequence considered
	MaxPatternLength int `yaml:"max_pattern_length" validate:"min=2"`

	// Candidates not seen within this window are dropped
	RecencyWindow time.Duration `yaml:"recency_window" validate:"min=0"`
}

// SchedulerConfig controls the FSRS review scheduler. When disabled, knowledge
// nodes carry no schedule and never become due; confidence decay still works.
type SchedulerConfig struct {
	Enabled bool `yaml:"enabled"`

	// FSRS memory-model parameters
	FSRS FSRSConfig `yaml:"fsrs,omitempty" validate:"omitempty"`
}

// FSRSConfig holds the FSRS memory-model parameters.
type FSRSConfig struct {
	// Stability assigned to a freshly scheduled node, in days
	DefaultStability float64 `yaml:"default_stability" validate:"gt=0"`

	// Difficulty assigned to a freshly scheduled node, in [1, 10]
	DefaultDifficulty float64 `yaml:"default_difficulty" validate:"gte=1,lte=10"`

	// Exponent of the stability growth coefficient
	GrowthRate float64 `yaml:"growth_rate"`

	// Exponent weighting low retrievability into larger stability gains
	DecayRate float64 `yaml:"decay_rate" validate:"gte=0"`

	// Stability multiplier applied on a lapse (grade "again")
	LapseFactor float64 `yaml:"lapse_factor" validate:"gt=0,lt=1"`

	// Predicted retrievability at which the next review is due
	TargetRetention float64 `yaml:"target_retention" validate:"gt=0,lt=1"`
}

// PersistenceConfig selects the snapshot backend.
type PersistenceConfig struct {
	// Backend: memory, file or sqlite
	Backend string `yaml:"backend" validate:"oneof=memory file sqlite"`

	// Directory for the file backend (one JSON unit per component)
	Dir string `yaml:"dir,omitempty"`

	// Database file for the sqlite backend
	Path string `yaml:"path,omitempty"`
}

// LoggingConfig configures the core's structured logger.
type LoggingConfig struct {
	// Minimum severity: DEBUG, INFO, WARN, ERROR or FATAL
	Level string `yaml:"level" validate:"oneof=DEBUG INFO WARN ERROR FATAL"`

	// Optional log file path (in addition to console output)
	File string `yaml:"file,omitempty"`
}
