package journey

import (
	"errors"
	"fmt"
)

// ErrInvalidSpec is matched by every *SpecificationError via errors.Is.
var ErrInvalidSpec = errors.New("invalid specification")

// SpecificationError reports an invalid journey, event, delay or condition.
// It is raised at construction/validation time, never during execution.
type SpecificationError struct {
	// Journey is the journey ID, when known.
	Journey string

	// Event is the event definition ID, when known.
	Event string

	// Field names the offending field (e.g. "delay.days_min").
	Field string

	// Message is a human-readable description.
	Message string
}

// Error implements the error interface.
func (e *SpecificationError) Error() string {
	loc := e.Field
	switch {
	case e.Journey != "" && e.Event != "":
		loc = fmt.Sprintf("%s/%s: %s", e.Journey, e.Event, e.Field)
	case e.Event != "":
		loc = fmt.Sprintf("%s: %s", e.Event, e.Field)
	case e.Journey != "":
		loc = fmt.Sprintf("%s: %s", e.Journey, e.Field)
	}
	return fmt.Sprintf("%s: %s", loc, e.Message)
}

// Is makes errors.Is(err, ErrInvalidSpec) succeed.
func (e *SpecificationError) Is(target error) bool {
	return target == ErrInvalidSpec
}

// withLocation fills in journey/event when they are not already set.
func withLocation(err error, journeyID, eventID string) error {
	var se *SpecificationError
	if errors.As(err, &se) {
		if se.Journey == "" {
			se.Journey = journeyID
		}
		if se.Event == "" {
			se.Event = eventID
		}
	}
	return err
}
