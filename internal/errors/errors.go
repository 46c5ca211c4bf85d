// Package errors provides centralized error definitions and error handling utilities
// for numduel. It defines the protocol's error taxonomy, semantic error types,
// error constructors with context wrapping, and error classification helpers.
//
// # Error Taxonomy
//
//   - ErrInvalidConfiguration: bad max or round count, fatal, reported before any
//     peer or channel is set up
//   - ErrChannelUnavailable: queue missing or full, transient, the caller may retry
//   - ErrDeliveryFailed: the peer endpoint is gone, fatal for the local round loop
//   - ErrProtocolViolation: payload outside the expected domain, discarded
//   - ErrTerminated: the remote peer asked this peer to stop
//
// # Usage
//
//	err := errors.NewChannelError("queue full", errors.ErrChannelUnavailable).
//	    WithBinding("queue").WithChannel("/queuea").WithRetryable(true)
//
//	if errors.IsRetryable(err) {
//	    time.Sleep(backoff)
//	}
//
//	var chErr *errors.ChannelError
//	if errors.As(err, &chErr) { ... }
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Severity represents the severity level of an error.
type Severity int

const (
	// SeverityDebug is for errors that are useful for debugging but not critical.
	SeverityDebug Severity = iota
	// SeverityInfo is for informational errors that don't indicate a problem.
	SeverityInfo
	// SeverityWarning is for errors that might indicate a problem but aren't critical.
	SeverityWarning
	// SeverityError is for errors that indicate a real problem.
	SeverityError
	// SeverityCritical is for errors that end the run.
	SeverityCritical
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

var (
	// ErrInvalidConfiguration indicates a bad max, round count or binding.
	ErrInvalidConfiguration = New("invalid configuration")
	// ErrChannelUnavailable indicates the target queue does not exist or is full.
	ErrChannelUnavailable = New("channel unavailable")
	// ErrDeliveryFailed indicates the target peer endpoint no longer exists.
	ErrDeliveryFailed = New("delivery failed")
	// ErrProtocolViolation indicates a payload outside the expected domain.
	ErrProtocolViolation = New("protocol violation")
	// ErrTerminated indicates the remote peer requested termination.
	ErrTerminated = New("terminated by peer")
	// ErrChannelClosed indicates an operation on a closed endpoint or queue.
	ErrChannelClosed = New("channel closed")
)

// -----------------------------------------------------------------------------
// Base Error Interface
// -----------------------------------------------------------------------------

// DuelError is the base interface for all numduel errors.
type DuelError interface {
	error

	// Unwrap returns the underlying error, if any.
	Unwrap() error

	// Is reports whether this error matches the target error.
	Is(target error) bool

	// Severity returns the severity level of this error.
	Severity() Severity

	// IsRetryable returns true if the operation may succeed on retry.
	IsRetryable() bool
}

// baseError provides common functionality for all error types.
type baseError struct {
	message   string
	cause     error
	severity  Severity
	retryable bool
}

// Error returns the error message.
func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Unwrap returns the underlying error.
func (e *baseError) Unwrap() error {
	return e.cause
}

// Is checks if this error matches the target.
func (e *baseError) Is(target error) bool {
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

// Severity returns the error severity.
func (e *baseError) Severity() Severity {
	return e.severity
}

// IsRetryable returns whether the error is retryable.
func (e *baseError) IsRetryable() bool {
	return e.retryable
}

// -----------------------------------------------------------------------------
// Domain-Specific Errors
// -----------------------------------------------------------------------------

// ChannelError represents a failure of a notification channel operation.
//
// Example:
//
//	err := errors.NewChannelError("send failed", errors.ErrChannelUnavailable).
//	    WithBinding("queue").WithChannel("/queuea")
//	fmt.Println(err) // "channel error [binding=queue, channel=/queuea]: send failed: channel unavailable"
type ChannelError struct {
	baseError
	Binding string
	Channel string
	Peer    int
}

// NewChannelError creates a new ChannelError. Errors wrapping
// ErrChannelUnavailable start out retryable; everything else is fatal.
func NewChannelError(message string, cause error) *ChannelError {
	retryable := errors.Is(cause, ErrChannelUnavailable)
	severity := SeverityCritical
	if retryable {
		severity = SeverityWarning
	}
	return &ChannelError{
		baseError: baseError{
			message:   message,
			cause:     cause,
			severity:  severity,
			retryable: retryable,
		},
	}
}

// WithBinding adds the binding name ("signal" or "queue") to the error context.
func (e *ChannelError) WithBinding(binding string) *ChannelError {
	e.Binding = binding
	return e
}

// WithChannel adds a channel or queue name to the error context.
func (e *ChannelError) WithChannel(name string) *ChannelError {
	e.Channel = name
	return e
}

// WithPeer adds the target peer to the error context.
func (e *ChannelError) WithPeer(peer int) *ChannelError {
	e.Peer = peer
	return e
}

// WithRetryable sets whether the error is retryable.
func (e *ChannelError) WithRetryable(r bool) *ChannelError {
	e.retryable = r
	return e
}

// Error returns the formatted error message.
func (e *ChannelError) Error() string {
	var parts []string
	if e.Binding != "" {
		parts = append(parts, fmt.Sprintf("binding=%s", e.Binding))
	}
	if e.Channel != "" {
		parts = append(parts, fmt.Sprintf("channel=%s", e.Channel))
	}
	if e.Peer > 0 {
		parts = append(parts, fmt.Sprintf("peer=%d", e.Peer))
	}

	prefix := "channel error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("channel error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *ChannelError) Is(target error) bool {
	if _, ok := target.(*ChannelError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// ProtocolError describes a notification that could not be interpreted in the
// current protocol state. It always wraps ErrProtocolViolation.
type ProtocolError struct {
	baseError
	Kind    string
	Payload int
}

// NewProtocolError creates a ProtocolError for the given kind and payload.
func NewProtocolError(message, kind string, payload int) *ProtocolError {
	return &ProtocolError{
		baseError: baseError{
			message:  message,
			cause:    ErrProtocolViolation,
			severity: SeverityWarning,
		},
		Kind:    kind,
		Payload: payload,
	}
}

// Error returns the formatted error message.
func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol error [kind=%s, payload=%d]: %s: %v", e.Kind, e.Payload, e.message, e.cause)
}

// Is checks if this error matches the target.
func (e *ProtocolError) Is(target error) bool {
	if _, ok := target.(*ProtocolError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Semantic Errors
// -----------------------------------------------------------------------------

// ValidationError represents invalid configuration input. It always matches
// ErrInvalidConfiguration.
//
// Example:
//
//	err := errors.NewValidationError("must be greater than 1").WithField("game.max").WithValue(1)
type ValidationError struct {
	baseError
	Field string
	Value any
}

// NewValidationError creates a new ValidationError.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{
		baseError: baseError{
			message:  message,
			cause:    ErrInvalidConfiguration,
			severity: SeverityCritical,
		},
	}
}

// WithField adds a field name to the error context.
func (e *ValidationError) WithField(field string) *ValidationError {
	e.Field = field
	return e
}

// WithValue adds the invalid value to the error context.
func (e *ValidationError) WithValue(value any) *ValidationError {
	e.Value = value
	return e
}

// Error returns the formatted error message.
func (e *ValidationError) Error() string {
	var parts []string
	if e.Field != "" {
		parts = append(parts, fmt.Sprintf("field=%s", e.Field))
	}
	if e.Value != nil {
		parts = append(parts, fmt.Sprintf("value=%v", e.Value))
	}

	prefix := "validation error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("validation error [%s]", strings.Join(parts, ", "))
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *ValidationError) Is(target error) bool {
	if _, ok := target.(*ValidationError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Error Classification Helpers
// -----------------------------------------------------------------------------

// IsRetryable returns true if the error represents a transient condition
// that may succeed on retry. This checks for:
//   - Errors implementing DuelError with IsRetryable() returning true
//   - Errors wrapping ErrChannelUnavailable
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var duelErr DuelError
	if As(err, &duelErr) {
		return duelErr.IsRetryable()
	}

	return Is(err, ErrChannelUnavailable)
}

// IsFatal returns true if the error must end the local round loop.
// Protocol violations are discarded and termination is a normal exit, so
// neither is fatal; retryable errors are not fatal until the caller gives up.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if Is(err, ErrProtocolViolation) || Is(err, ErrTerminated) {
		return false
	}
	return !IsRetryable(err)
}

// GetSeverity returns the severity level of the error.
// Returns SeverityError for errors that don't implement DuelError.
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityDebug
	}

	var duelErr DuelError
	if As(err, &duelErr) {
		return duelErr.Severity()
	}

	return SeverityError
}

// ExitCode maps an error returned by a peer run to a process exit code.
// A nil error and remote termination exit cleanly; invalid configuration
// exits with 2; every other failure exits with 1.
func ExitCode(err error) int {
	switch {
	case err == nil, Is(err, ErrTerminated):
		return 0
	case Is(err, ErrInvalidConfiguration):
		return 2
	default:
		return 1
	}
}

// -----------------------------------------------------------------------------
// Convenience Constructors
// -----------------------------------------------------------------------------

// Wrap wraps an error with additional context message.
//
// Example:
//
//	err := errors.Wrap(baseErr, "failed to open queue")
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted context message.
//
// Example:
//
//	err := errors.Wrapf(baseErr, "round %d", index)
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
