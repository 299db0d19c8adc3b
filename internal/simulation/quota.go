package simulation

import (
	"errors"
	"fmt"
)

// DefaultMaxSteps is the default number of trigger instructions a single
// timeline run may apply. It bounds linear cascades (A -> B -> C -> ...)
// that cycle detection does not catch.
const DefaultMaxSteps = 1000

// QuotaEnforcer counts applied instructions for one timeline run and
// enforces a maximum.
//
// Cycle detection catches recursive patterns (A -> B -> A); the quota
// catches long linear chains. Together they guarantee a run terminates.
type QuotaEnforcer struct {
	maxSteps int
	current  int
}

// NewQuotaEnforcer creates a quota enforcer with the given limit.
func NewQuotaEnforcer(maxSteps int) *QuotaEnforcer {
	return &QuotaEnforcer{maxSteps: maxSteps}
}

// Check increments the step counter and validates against the limit.
func (q *QuotaEnforcer) Check(entityID string) error {
	q.current++
	if q.current > q.maxSteps {
		return &StepsExceededError{
			EntityID: entityID,
			Steps:    q.current,
			Limit:    q.maxSteps,
		}
	}
	return nil
}

// Reset resets the step counter to 0.
func (q *QuotaEnforcer) Reset() {
	q.current = 0
}

// Current returns the current step count.
func (q *QuotaEnforcer) Current() int {
	return q.current
}

// MaxSteps returns the limit.
func (q *QuotaEnforcer) MaxSteps() int {
	return q.maxSteps
}

// StepsExceededError reports a trigger cascade that hit the quota. The run
// stops firing triggers but still executes the events already scheduled.
type StepsExceededError struct {
	EntityID string
	Steps    int
	Limit    int
}

// Error implements the error interface.
func (e *StepsExceededError) Error() string {
	return fmt.Sprintf("entity %s exceeded trigger quota: %d steps > %d limit",
		e.EntityID, e.Steps, e.Limit)
}

// IsStepsExceededError returns true if err is a StepsExceededError.
func IsStepsExceededError(err error) bool {
	var se *StepsExceededError
	return errors.As(err, &se)
}
