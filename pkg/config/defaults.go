package config

import (
	"time"
)

// GetDefaultConfig returns the default configuration for mnemo-go.
func GetDefaultConfig() *Config {
	return &Config{
		Experience:  getDefaultExperienceConfig(),
		Knowledge:   getDefaultKnowledgeConfig(),
		Pattern:     getDefaultPatternConfig(),
		Scheduler:   getDefaultSchedulerConfig(),
		Persistence: getDefaultPersistenceConfig(),
		Logging:     getDefaultLoggingConfig(),
	}
}

// getDefaultExperienceConfig returns default experience store configuration.
func getDefaultExperienceConfig() ExperienceConfig {
	return ExperienceConfig{
		MaxEntries:    1000,
		MaxQueryLimit: 100,
	}
}

// getDefaultKnowledgeConfig returns default knowledge graph configuration.
func getDefaultKnowledgeConfig() KnowledgeConfig {
	return KnowledgeConfig{
		MaxNodes:            500,
		ConfidenceIncrement: 0.1,
		DecayFactor:         0.98,
	}
}

// getDefaultPatternConfig returns default pattern detector configuration.
func getDefaultPatternConfig() PatternConfig {
	return PatternConfig{
		WindowSize:       20,
		MinSupport:       3,
		MaxPatternLength: 5,
		RecencyWindow:    30 * time.Minute,
	}
}

// getDefaultSchedulerConfig returns default scheduler configuration.
func getDefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Enabled: true,
		FSRS: FSRSConfig{
			DefaultStability:  1.0,
			DefaultDifficulty: 5.0,
			GrowthRate:        -0.5,
			DecayRate:         0.5,
			LapseFactor:       0.5,
			TargetRetention:   0.9,
		},
	}
}

// getDefaultPersistenceConfig returns default persistence configuration.
func getDefaultPersistenceConfig() PersistenceConfig {
	return PersistenceConfig{
		Backend: "memory",
	}
}

// getDefaultLoggingConfig returns default logging configuration.
func getDefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		Level: "INFO",
	}
}
