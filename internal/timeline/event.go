package timeline

import (
	"errors"
	"fmt"
	"time"

	"github.com/roach88/journeysim/internal/ir"
)

// Status is the lifecycle state of a TimelineEvent.
type Status string

const (
	StatusPending  Status = "pending"
	StatusExecuted Status = "executed"
	StatusFailed   Status = "failed"

	// StatusSkipped marks an audit placeholder for an event that was
	// excluded at scheduling time. It is never executed.
	StatusSkipped Status = "skipped"
)

// IsTerminal reports whether no further transition is allowed.
func (s Status) IsTerminal() bool {
	return s != StatusPending
}

// ErrInvalidTransition is returned when a transition starts from a
// non-pending status.
var ErrInvalidTransition = errors.New("invalid status transition")

// Source records where a trigger-created event came from.
type Source struct {
	TriggerID     string `json:"trigger_id"`
	InstructionID string `json:"instruction_id"`
	SourceEventID string `json:"source_event_id"`
	SourceProduct string `json:"source_product"`
}

// TimelineEvent is one concrete, dated occurrence on a timeline.
type TimelineEvent struct {
	ID                string      `json:"id"`
	JourneyID         string      `json:"journey_id,omitempty"`
	EventDefinitionID string      `json:"event_definition_id,omitempty"`
	ScheduledDate     time.Time   `json:"scheduled_date"`
	EventType         string      `json:"event_type"`
	Product           string      `json:"product"`
	Name              string      `json:"name"`
	Status            Status      `json:"status"`
	Result            ir.IRObject `json:"result,omitempty"`
	Error             string      `json:"error,omitempty"`
	Condition         string      `json:"condition,omitempty"`
	Parameters        ir.IRObject `json:"parameters,omitempty"`
	SkipReason        string      `json:"skip_reason,omitempty"`
	Source            *Source     `json:"source,omitempty"`
}

// IsPending reports whether the event still awaits execution.
func (e *TimelineEvent) IsPending() bool {
	return e.Status == StatusPending
}

// MarkExecuted records a handler result.
func (e *TimelineEvent) MarkExecuted(result ir.IRObject) error {
	if err := e.transition(StatusExecuted); err != nil {
		return err
	}
	e.Result = result
	return nil
}

// MarkFailed records a handler error.
func (e *TimelineEvent) MarkFailed(msg string) error {
	if err := e.transition(StatusFailed); err != nil {
		return err
	}
	e.Error = msg
	return nil
}

// MarkSkipped turns a pending event into an audit placeholder.
func (e *TimelineEvent) MarkSkipped(reason string) error {
	if err := e.transition(StatusSkipped); err != nil {
		return err
	}
	e.SkipReason = reason
	return nil
}

func (e *TimelineEvent) transition(to Status) error {
	if e.Status != StatusPending {
		return fmt.Errorf("%w: event %s is %s, cannot become %s", ErrInvalidTransition, e.ID, e.Status, to)
	}
	e.Status = to
	return nil
}
