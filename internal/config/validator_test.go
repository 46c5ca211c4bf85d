package config

import (
	"errors"
	"strings"
	"testing"

	duelerrors "github.com/Iron-Ham/numduel/internal/errors"
)

func TestValidationError_Error(t *testing.T) {
	err := ValidationError{
		Field:   "game.max",
		Value:   1,
		Message: "must be greater than 1",
	}

	expected := "game.max: must be greater than 1 (got: 1)"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
}

func TestValidationErrors_Error(t *testing.T) {
	t.Run("empty errors", func(t *testing.T) {
		var errs ValidationErrors
		if errs.Error() != "" {
			t.Errorf("Error() for empty = %q, want empty string", errs.Error())
		}
	})

	t.Run("single error", func(t *testing.T) {
		errs := ValidationErrors{
			{Field: "transport.capacity", Value: 0, Message: "must be at least 1"},
		}
		expected := "transport.capacity: must be at least 1 (got: 0)"
		if errs.Error() != expected {
			t.Errorf("Error() = %q, want %q", errs.Error(), expected)
		}
	})

	t.Run("multiple errors", func(t *testing.T) {
		errs := ValidationErrors{
			{Field: "field1", Value: "bad", Message: "is invalid"},
			{Field: "field2", Value: -1, Message: "must be positive"},
		}
		result := errs.Error()
		if !strings.Contains(result, "2 validation errors") {
			t.Errorf("Error() should mention 2 errors: %s", result)
		}
		if !strings.Contains(result, "field1") || !strings.Contains(result, "field2") {
			t.Errorf("Error() should mention both fields: %s", result)
		}
	})
}

func TestValidationErrors_MatchesInvalidConfiguration(t *testing.T) {
	var err error = ValidationErrors{{Field: "game.max", Value: 0, Message: "x"}}
	if !errors.Is(err, duelerrors.ErrInvalidConfiguration) {
		t.Error("errors.Is(ValidationErrors, ErrInvalidConfiguration) = false, want true")
	}
	if got := duelerrors.ExitCode(err); got != 2 {
		t.Errorf("ExitCode() = %d, want 2", got)
	}
}

func TestConfig_Validate_DefaultConfig(t *testing.T) {
	cfg := Default()
	if errs := cfg.Validate(); len(errs) != 0 {
		t.Errorf("Default config should be valid, got errors: %v", errs)
	}
}

func TestConfig_Validate_Game(t *testing.T) {
	tests := []struct {
		name      string
		max       int
		rounds    int
		wantField string
	}{
		{"binding defaults", 0, 0, ""},
		{"smallest valid max", 2, 1, ""},
		{"max of one", 1, 10, "game.max"},
		{"negative max", -3, 10, "game.max"},
		{"negative rounds", 10, -1, "game.rounds"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Game.Max = tt.max
			cfg.Game.Rounds = tt.rounds

			errs := cfg.Validate()
			if tt.wantField == "" {
				if len(errs) != 0 {
					t.Errorf("Validate() = %v, want no errors", errs)
				}
				return
			}
			if len(errs) != 1 || errs[0].Field != tt.wantField {
				t.Errorf("Validate() = %v, want one error on %s", errs, tt.wantField)
			}
		})
	}
}

func TestConfig_Validate_Transport(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*TransportConfig)
		wantField string
	}{
		{"queue binding", func(tc *TransportConfig) { tc.Binding = BindingQueue }, ""},
		{"unknown binding", func(tc *TransportConfig) { tc.Binding = "pipe" }, "transport.binding"},
		{"queue name without slash", func(tc *TransportConfig) { tc.QueueA = "queuea" }, "transport.queue_a"},
		{"queue name with nested slash", func(tc *TransportConfig) { tc.QueueB = "/a/b" }, "transport.queue_b"},
		{"bare slash", func(tc *TransportConfig) { tc.QueueA = "/" }, "transport.queue_a"},
		{"identical queue names", func(tc *TransportConfig) { tc.QueueB = tc.QueueA }, "transport.queue_b"},
		{"zero capacity", func(tc *TransportConfig) { tc.Capacity = 0 }, "transport.capacity"},
		{"huge capacity", func(tc *TransportConfig) { tc.Capacity = 1 << 20 }, "transport.capacity"},
		{"negative retries", func(tc *TransportConfig) { tc.SendRetries = -1 }, "transport.send_retries"},
		{"negative backoff", func(tc *TransportConfig) { tc.RetryBackoffMs = -1 }, "transport.retry_backoff_ms"},
		{"negative start delay", func(tc *TransportConfig) { tc.GuesserStartDelayMs = -5 }, "transport.guesser_start_delay_ms"},
		{"zero poll interval", func(tc *TransportConfig) { tc.PollIntervalMs = 0 }, "transport.poll_interval_ms"},
		{"slow poll interval", func(tc *TransportConfig) { tc.PollIntervalMs = 6000 }, "transport.poll_interval_ms"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg.Transport)

			errs := cfg.Validate()
			if tt.wantField == "" {
				if len(errs) != 0 {
					t.Errorf("Validate() = %v, want no errors", errs)
				}
				return
			}
			found := false
			for _, e := range errs {
				if e.Field == tt.wantField {
					found = true
				}
			}
			if !found {
				t.Errorf("Validate() = %v, want an error on %s", errs, tt.wantField)
			}
		})
	}
}

func TestConfig_Validate_Logging(t *testing.T) {
	for _, level := range []string{"debug", "INFO", "warn", "error", ""} {
		cfg := Default()
		cfg.Logging.Level = level
		if errs := cfg.Validate(); len(errs) != 0 {
			t.Errorf("Validate() with level %q = %v, want no errors", level, errs)
		}
	}

	cfg := Default()
	cfg.Logging.Level = "verbose"
	errs := cfg.Validate()
	if len(errs) != 1 || errs[0].Field != "logging.level" {
		t.Errorf("Validate() = %v, want one error on logging.level", errs)
	}
}

func TestConfig_Validate_MultipleErrors(t *testing.T) {
	cfg := Default()
	cfg.Game.Max = 1
	cfg.Transport.Capacity = 0
	cfg.Logging.Level = "loud"

	if errs := cfg.Validate(); len(errs) != 3 {
		t.Errorf("Validate() returned %d errors, want 3: %v", len(errs), errs)
	}
}
