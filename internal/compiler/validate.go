package compiler

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/roach88/journeysim/internal/journey"
	"github.com/roach88/journeysim/internal/trigger"
)

// Validation error codes (E100-E199)
const (
	// Journey errors (E101-E109)
	ErrJourneyInvalid    = "E101" // journey fails its own validation
	ErrJourneyDuplicate  = "E102" // journey id defined twice
	ErrInvalidIdentifier = "E103" // product or event type is not snake_case

	// Trigger errors (E110-E119)
	ErrTriggerInvalid     = "E110" // trigger fails its own validation
	ErrTriggerDuplicate   = "E111" // trigger id defined twice
	ErrParameterCollision = "E112" // two source paths map to one target parameter
	ErrTriggerIdentifier  = "E113" // trigger product or event type is not snake_case
)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// identPattern matches product names and event types: "patientsim",
// "claim_professional".
var identPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// Validate checks a set of journeys and triggers loaded from any number of
// files. Returns all errors found (does not fail-fast).
func Validate(journeys []*journey.JourneySpecification, triggers []trigger.RegisteredTrigger) []ValidationError {
	errs := []ValidationError{}

	seen := make(map[string]bool)
	for i, j := range journeys {
		field := fmt.Sprintf("journeys[%d]", i)
		if j.ID != "" {
			field = "journey " + j.ID
		}

		if seen[j.ID] {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("duplicate journey id %q", j.ID),
				Code:    ErrJourneyDuplicate,
			})
		}
		seen[j.ID] = true

		if err := j.Validate(); err != nil {
			errs = append(errs, ValidationError{Field: field, Message: err.Error(), Code: ErrJourneyInvalid})
		}

		for k, ev := range j.Events {
			errs = append(errs, checkIdent(fmt.Sprintf("%s.events[%d].product", field, k), ev.Product, ErrInvalidIdentifier)...)
			errs = append(errs, checkIdent(fmt.Sprintf("%s.events[%d].event_type", field, k), ev.EventType, ErrInvalidIdentifier)...)
		}
	}

	triggerIDs := make(map[string]bool)
	for i, t := range triggers {
		field := fmt.Sprintf("triggers[%d]", i)
		if t.ID != "" {
			field = "trigger " + t.ID

			if triggerIDs[t.ID] {
				errs = append(errs, ValidationError{
					Field:   field,
					Message: fmt.Sprintf("duplicate trigger id %q", t.ID),
					Code:    ErrTriggerDuplicate,
				})
			}
			triggerIDs[t.ID] = true
		}

		if err := t.Validate(); err != nil {
			errs = append(errs, ValidationError{Field: field, Message: err.Error(), Code: ErrTriggerInvalid})
		}

		for _, f := range []struct{ name, value string }{
			{"source_product", t.SourceProduct},
			{"source_event_type", t.SourceEventType},
			{"target_product", t.TargetProduct},
			{"target_event_type", t.TargetEventType},
		} {
			errs = append(errs, checkIdent(field+"."+f.name, f.value, ErrTriggerIdentifier)...)
		}

		errs = append(errs, checkParameterMap(field, t.ParameterMap)...)
	}

	return errs
}

// checkIdent reports a non-empty value that is not snake_case. Empty values
// are left to the owning type's Validate.
func checkIdent(field, value, code string) []ValidationError {
	if value == "" || identPattern.MatchString(value) {
		return nil
	}
	return []ValidationError{{
		Field:   field,
		Message: fmt.Sprintf("%q must be lower snake_case", value),
		Code:    code,
	}}
}

func checkParameterMap(field string, m map[string]string) []ValidationError {
	sources := make([]string, 0, len(m))
	for src := range m {
		sources = append(sources, src)
	}
	sort.Strings(sources)

	var errs []ValidationError
	targets := make(map[string]string)
	for _, src := range sources {
		dst := m[src]
		if prev, ok := targets[dst]; ok {
			errs = append(errs, ValidationError{
				Field:   field + ".parameter_map",
				Message: fmt.Sprintf("%q and %q both map to %q", prev, src, dst),
				Code:    ErrParameterCollision,
			})
			continue
		}
		targets[dst] = src
	}
	return errs
}
