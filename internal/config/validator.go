package config

import (
	"fmt"
	"slices"
	"strings"

	duelerrors "github.com/Iron-Ham/numduel/internal/errors"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "transport.capacity")
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
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// Unwrap lets callers match any validation failure against ErrInvalidConfiguration.
func (e ValidationErrors) Unwrap() error {
	return duelerrors.ErrInvalidConfiguration
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateGame()...)
	errors = append(errors, c.validateTransport()...)
	errors = append(errors, c.validateLogging()...)

	return errors
}

// validateGame validates the GameConfig. Zero values select binding defaults.
func (c *Config) validateGame() []ValidationError {
	var errors []ValidationError

	if c.Game.Max != 0 && c.Game.Max <= 1 {
		errors = append(errors, ValidationError{
			Field:   "game.max",
			Value:   c.Game.Max,
			Message: "must be greater than 1 (0 selects the binding default)",
		})
	}
	if c.Game.Rounds < 0 {
		errors = append(errors, ValidationError{
			Field:   "game.rounds",
			Value:   c.Game.Rounds,
			Message: "must be non-negative (0 selects the binding default)",
		})
	}

	return errors
}

// validateTransport validates the TransportConfig
func (c *Config) validateTransport() []ValidationError {
	var errors []ValidationError

	if !slices.Contains(ValidBindings(), c.Transport.Binding) {
		errors = append(errors, ValidationError{
			Field:   "transport.binding",
			Value:   c.Transport.Binding,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidBindings(), ", ")),
		})
	}

	for _, q := range []struct{ field, name string }{
		{"transport.queue_a", c.Transport.QueueA},
		{"transport.queue_b", c.Transport.QueueB},
	} {
		if !strings.HasPrefix(q.name, "/") || len(q.name) < 2 || strings.Contains(q.name[1:], "/") {
			errors = append(errors, ValidationError{
				Field:   q.field,
				Value:   q.name,
				Message: "must be a single leading slash followed by a name (e.g. /queuea)",
			})
		}
	}
	if c.Transport.QueueA != "" && c.Transport.QueueA == c.Transport.QueueB {
		errors = append(errors, ValidationError{
			Field:   "transport.queue_b",
			Value:   c.Transport.QueueB,
			Message: "must differ from transport.queue_a",
		})
	}

	const maxCapacity = 1 << 16
	if c.Transport.Capacity < 1 {
		errors = append(errors, ValidationError{
			Field:   "transport.capacity",
			Value:   c.Transport.Capacity,
			Message: "must be at least 1",
		})
	}
	if c.Transport.Capacity > maxCapacity {
		errors = append(errors, ValidationError{
			Field:   "transport.capacity",
			Value:   c.Transport.Capacity,
			Message: fmt.Sprintf("exceeds maximum of %d", maxCapacity),
		})
	}

	if c.Transport.SendRetries < 0 {
		errors = append(errors, ValidationError{
			Field:   "transport.send_retries",
			Value:   c.Transport.SendRetries,
			Message: "must be non-negative (0 disables retries)",
		})
	}
	if c.Transport.RetryBackoffMs < 0 {
		errors = append(errors, ValidationError{
			Field:   "transport.retry_backoff_ms",
			Value:   c.Transport.RetryBackoffMs,
			Message: "must be non-negative",
		})
	}
	if c.Transport.GuesserStartDelayMs < 0 {
		errors = append(errors, ValidationError{
			Field:   "transport.guesser_start_delay_ms",
			Value:   c.Transport.GuesserStartDelayMs,
			Message: "must be non-negative",
		})
	}

	const minPollInterval = 1
	const maxPollInterval = 5000
	if c.Transport.PollIntervalMs < minPollInterval {
		errors = append(errors, ValidationError{
			Field:   "transport.poll_interval_ms",
			Value:   c.Transport.PollIntervalMs,
			Message: fmt.Sprintf("must be at least %dms", minPollInterval),
		})
	}
	if c.Transport.PollIntervalMs > maxPollInterval {
		errors = append(errors, ValidationError{
			Field:   "transport.poll_interval_ms",
			Value:   c.Transport.PollIntervalMs,
			Message: fmt.Sprintf("exceeds maximum of %dms", maxPollInterval),
		})
	}

	return errors
}

// validateLogging validates the LoggingConfig
func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), strings.ToLower(c.Logging.Level)) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	return errors
}
