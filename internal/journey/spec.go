package journey

import (
	"fmt"
	"slices"
)

// JourneySpecification is a reusable template of event definitions.
// It is immutable after load.
type JourneySpecification struct {
	ID           string            `json:"journey_id" yaml:"journey_id"`
	Name         string            `json:"name" yaml:"name"`
	Description  string            `json:"description,omitempty" yaml:"description,omitempty"`
	Products     []string          `json:"products" yaml:"products"`
	Events       []EventDefinition `json:"events" yaml:"events"`
	DurationDays *int              `json:"duration_days,omitempty" yaml:"duration_days,omitempty"`
}

// Validate checks every event definition plus the journey-level rules:
// unique event ids, depends_on naming an earlier-declared event, and
// products drawn from Products when Products is non-empty.
func (j *JourneySpecification) Validate() error {
	if j.ID == "" {
		return &SpecificationError{Field: "journey_id", Message: "journey_id is required"}
	}
	if j.DurationDays != nil && *j.DurationDays < 0 {
		return &SpecificationError{Journey: j.ID, Field: "duration_days", Message: fmt.Sprintf("negative duration %d", *j.DurationDays)}
	}

	seen := make(map[string]bool, len(j.Events))
	for i, ev := range j.Events {
		if err := ev.Validate(); err != nil {
			return fmt.Errorf("events[%d]: %w", i, withLocation(err, j.ID, ev.ID))
		}
		if seen[ev.ID] {
			return &SpecificationError{Journey: j.ID, Event: ev.ID, Field: "event_id", Message: "duplicate event_id"}
		}
		if ev.DependsOn != "" && !seen[ev.DependsOn] {
			return &SpecificationError{
				Journey: j.ID,
				Event:   ev.ID,
				Field:   "depends_on",
				Message: fmt.Sprintf("%q is not declared before this event", ev.DependsOn),
			}
		}
		if len(j.Products) > 0 && !slices.Contains(j.Products, ev.Product) {
			return &SpecificationError{
				Journey: j.ID,
				Event:   ev.ID,
				Field:   "product",
				Message: fmt.Sprintf("product %q not listed in journey products", ev.Product),
			}
		}
		seen[ev.ID] = true
	}
	return nil
}

// Event returns the definition with the given id.
func (j *JourneySpecification) Event(id string) (EventDefinition, bool) {
	for _, ev := range j.Events {
		if ev.ID == id {
			return ev, true
		}
	}
	return EventDefinition{}, false
}
