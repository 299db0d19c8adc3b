package engine

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes execution errors.
type ErrorCode string

const (
	// ErrCodeHandlerFailed indicates the handler returned an error.
	ErrCodeHandlerFailed ErrorCode = "HANDLER_FAILED"

	// ErrCodeHandlerPanic indicates the handler panicked.
	ErrCodeHandlerPanic ErrorCode = "HANDLER_PANIC"

	// ErrCodeResolverFailed indicates the skill resolver failed for a
	// reason other than an unknown condition. Execution falls back to the
	// literal parameters.
	ErrCodeResolverFailed ErrorCode = "RESOLVER_FAILED"
)

// ErrUnknownCondition is returned by a SkillResolver that has no mapping
// for a condition. The engine falls back to the literal parameters.
var ErrUnknownCondition = errors.New("unknown condition")

// ErrJourneyScheduled is returned when a journey is scheduled twice on
// the same timeline.
var ErrJourneyScheduled = errors.New("journey already scheduled")

// ExecutionError describes a per-event execution failure. It is recorded
// as the event's error string and never returned from ExecuteEvent.
type ExecutionError struct {
	// Code identifies the error category.
	Code ErrorCode

	// EventID is the timeline event id.
	EventID string

	// Product and EventType select the handler.
	Product   string
	EventType string

	// Message is a human-readable description.
	Message string

	// Err is the underlying error, if any.
	Err error
}

// Error implements the error interface.
func (e *ExecutionError) Error() string {
	msg := fmt.Sprintf("%s: %s/%s: %s", e.Code, e.Product, e.EventType, e.Message)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// IsHandlerPanic returns true if err is an ExecutionError for a panic.
func IsHandlerPanic(err error) bool {
	var ee *ExecutionError
	if errors.As(err, &ee) {
		return ee.Code == ErrCodeHandlerPanic
	}
	return false
}
