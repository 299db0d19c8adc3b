package compiler

import (
	"fmt"

	"cuelang.org/go/cue"

	"github.com/roach88/journeysim/internal/journey"
)

var journeyFields = []string{
	"journey_id", "name", "description", "products", "events", "duration_days",
}

var eventFields = []string{
	"event_id", "name", "event_type", "product", "delay", "depends_on",
	"conditions", "probability", "condition", "parameters",
}

// CompileJourney parses a CUE value into a JourneySpecification.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The journey id defaults to the struct label:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`journey: "diabetes-onset": { events: [...] }`)
//	spec, err := CompileJourney(v.LookupPath(cue.ParsePath(`journey."diabetes-onset"`)))
//
// The compiled journey is validated; a validation failure is returned as a
// *CompileError that wraps the *journey.SpecificationError.
func CompileJourney(v cue.Value) (*journey.JourneySpecification, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	if !v.Exists() {
		return nil, &CompileError{Field: "journey", Message: "value does not exist"}
	}
	if err := checkFields(v, "", journeyFields...); err != nil {
		return nil, err
	}

	spec := &journey.JourneySpecification{}

	// Journey id from the struct label unless given explicitly
	labels := v.Path().Selectors()
	if len(labels) > 0 && labels[len(labels)-1].Type() == cue.StringLabel {
		spec.ID = labels[len(labels)-1].Unquoted()
	}
	id, err := optionalString(v, "journey_id")
	if err != nil {
		return nil, err
	}
	if id != "" {
		spec.ID = id
	}

	if spec.Name, err = optionalString(v, "name"); err != nil {
		return nil, err
	}
	if spec.Description, err = optionalString(v, "description"); err != nil {
		return nil, err
	}
	if productsVal, ok := lookup(v, "products"); ok {
		if spec.Products, err = stringList(productsVal); err != nil {
			return nil, err
		}
	}
	if spec.DurationDays, err = optionalInt(v, "duration_days"); err != nil {
		return nil, err
	}

	eventsVal, ok := lookup(v, "events")
	if !ok {
		return nil, &CompileError{
			Field:   "events",
			Message: "events are required",
			Pos:     v.Pos(),
		}
	}
	iter, err := eventsVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for i := 0; iter.Next(); i++ {
		ev, err := parseEvent(iter.Value(), fmt.Sprintf("events[%d]", i))
		if err != nil {
			return nil, err
		}
		spec.Events = append(spec.Events, ev)
	}

	if err := spec.Validate(); err != nil {
		return nil, &CompileError{
			Field:   "journey " + spec.ID,
			Message: err.Error(),
			Pos:     v.Pos(),
			Err:     err,
		}
	}
	return spec, nil
}

// parseEvent extracts one event definition.
func parseEvent(v cue.Value, where string) (journey.EventDefinition, error) {
	var ev journey.EventDefinition
	if err := checkFields(v, where, eventFields...); err != nil {
		return ev, err
	}

	var err error
	if ev.ID, err = requireString(v, where, "event_id"); err != nil {
		return ev, err
	}
	if ev.Name, err = optionalString(v, "name"); err != nil {
		return ev, err
	}
	if ev.EventType, err = requireString(v, where, "event_type"); err != nil {
		return ev, err
	}
	if ev.Product, err = requireString(v, where, "product"); err != nil {
		return ev, err
	}
	if ev.DependsOn, err = optionalString(v, "depends_on"); err != nil {
		return ev, err
	}
	if ev.Condition, err = optionalString(v, "condition"); err != nil {
		return ev, err
	}

	if delayVal, ok := lookup(v, "delay"); ok {
		if ev.Delay, err = parseDelay(delayVal, joinField(where, "delay")); err != nil {
			return ev, err
		}
	}

	if condsVal, ok := lookup(v, "conditions"); ok {
		iter, err := condsVal.List()
		if err != nil {
			return ev, formatCUEError(err)
		}
		for i := 0; iter.Next(); i++ {
			c, err := parseCondition(iter.Value(), fmt.Sprintf("%s.conditions[%d]", where, i))
			if err != nil {
				return ev, err
			}
			ev.Conditions = append(ev.Conditions, c)
		}
	}

	if probVal, ok := lookup(v, "probability"); ok {
		p, err := probVal.Float64()
		if err != nil {
			return ev, formatCUEError(err)
		}
		ev.Probability = &p
	}

	if paramsVal, ok := lookup(v, "parameters"); ok {
		if ev.Parameters, err = toIRObject(paramsVal, joinField(where, "parameters")); err != nil {
			return ev, err
		}
	}

	return ev, nil
}
