package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Tag     string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	if e.Message != "" {
		return e.Message
	}

	// Generate custom message based on tag
	switch e.Tag {
	case "required":
		return fmt.Sprintf("%s is required", e.Field)
	case "min", "gte", "gt":
		return fmt.Sprintf("%s is below its minimum", e.Field)
	case "max", "lte", "lt":
		return fmt.Sprintf("%s is above its maximum", e.Field)
	case "oneof":
		return fmt.Sprintf("%s must be one of the allowed values", e.Field)
	default:
		return fmt.Sprintf("%s failed validation", e.Field)
	}
}

// ValidationErrors represents multiple validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var messages []string
	for _, err := range e {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(messages, "; "))
}

// Validator provides configuration validation.
type Validator struct {
	validate *validator.Validate
}

// NewValidator creates a new configuration validator.
func NewValidator() *Validator {
	return &Validator{validate: validator.New()}
}

// ValidateConfig validates a configuration struct.
func (v *Validator) ValidateConfig(config *Config) error {
	if config == nil {
		return ValidationErrors{
			ValidationError{
				Field:   "config",
				Tag:     "required",
				Value:   nil,
				Message: "config is nil",
			},
		}
	}

	err := v.validate.Struct(config)
	if err == nil {
		return v.validateCustomRules(config)
	}

	// Convert validator errors to our custom error format
	var validationErrors ValidationErrors

	if errs, ok := err.(validator.ValidationErrors); ok {
		for _, e := range errs {
			validationErrors = append(validationErrors, ValidationError{
				Field: e.Field(),
				Tag:   e.Tag(),
				Value: e.Value(),
			})
		}
	} else {
		validationErrors = append(validationErrors, ValidationError{
			Message: err.Error(),
		})
	}

	return validationErrors
}

// validateCustomRules performs cross-field rules struct tags cannot express.
func (v *Validator) validateCustomRules(config *Config) error {
	var errs ValidationErrors

	if config.Pattern.MaxPatternLength > config.Pattern.WindowSize {
		errs = append(errs, ValidationError{
			Field:   "Pattern.MaxPatternLength",
			Tag:     "ltefield",
			Value:   config.Pattern.MaxPatternLength,
			Message: "pattern.max_pattern_length cannot exceed pattern.window_size",
		})
	}

	if config.Persistence.Backend == "file" && config.Persistence.Dir == "" {
		errs = append(errs, ValidationError{
			Field:   "Persistence.Dir",
			Tag:     "required",
			Message: "persistence.dir is required for the file backend",
		})
	}

	if config.Persistence.Backend == "sqlite" && config.Persistence.Path == "" {
		errs = append(errs, ValidationError{
			Field:   "Persistence.Path",
			Tag:     "required",
			Message: "persistence.path is required for the sqlite backend",
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// Validate validates a configuration with a fresh validator instance.
func Validate(config *Config) error {
	return NewValidator().ValidateConfig(config)
}
