package config

import (
	"fmt"
	"slices"
	"strings"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "eval.timeout_ms")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d validation errors:\n", len(e))
	for i, err := range e {
		fmt.Fprintf(&sb, "  %d. %s\n", i+1, err.Error())
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateGHCI()...)
	errors = append(errors, c.validateEval()...)
	errors = append(errors, c.validateBatch()...)
	errors = append(errors, c.validateLogging()...)

	return errors
}

func (c *Config) validateGHCI() []ValidationError {
	var errors []ValidationError

	if c.GHCI.Path != "" && strings.TrimSpace(c.GHCI.Path) == "" {
		errors = append(errors, ValidationError{
			Field:   "ghci.path",
			Value:   c.GHCI.Path,
			Message: "must not be blank",
		})
	}

	for i, arg := range c.GHCI.Args {
		if strings.ContainsRune(arg, 0) {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("ghci.args[%d]", i),
				Value:   arg,
				Message: "must not contain NUL bytes",
			})
		}
	}

	return errors
}

func (c *Config) validateEval() []ValidationError {
	var errors []ValidationError

	if c.Eval.TimeoutMs < 0 {
		errors = append(errors, ValidationError{
			Field:   "eval.timeout_ms",
			Value:   c.Eval.TimeoutMs,
			Message: "must be non-negative (0 disables the timeout)",
		})
	}

	for i, mod := range c.Eval.Imports {
		if strings.TrimSpace(mod) == "" || strings.ContainsAny(mod, " \t\n") {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("eval.imports[%d]", i),
				Value:   mod,
				Message: "must be a single module name",
			})
		}
	}

	return errors
}

func (c *Config) validateBatch() []ValidationError {
	var errors []ValidationError

	if c.Batch.MaxParallel < 1 {
		errors = append(errors, ValidationError{
			Field:   "batch.max_parallel",
			Value:   c.Batch.MaxParallel,
			Message: "must be at least 1",
		})
	}

	return errors
}

func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), strings.ToLower(c.Logging.Level)) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	if c.Logging.MaxSizeMB < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: "must be non-negative (0 disables rotation)",
		})
	}

	if c.Logging.MaxBackups < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_backups",
			Value:   c.Logging.MaxBackups,
			Message: "must be non-negative",
		})
	}

	return errors
}
