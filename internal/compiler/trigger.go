package compiler

import (
	"cuelang.org/go/cue"

	"github.com/roach88/journeysim/internal/trigger"
)

var triggerFields = []string{
	"id", "source_product", "source_event_type", "target_product",
	"target_event_type", "delay", "condition", "parameter_map",
}

// CompileTrigger parses a CUE value into a RegisteredTrigger.
// The trigger id defaults to the struct label:
//
//	trigger: "dx-claim": {
//		source_product:    "patientsim"
//		source_event_type: "diagnosis"
//		target_product:    "membersim"
//		target_event_type: "claim_professional"
//		delay: days: 3
//		parameter_map: icd10: "diagnosis_code"
//	}
func CompileTrigger(v cue.Value) (*trigger.RegisteredTrigger, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	if !v.Exists() {
		return nil, &CompileError{Field: "trigger", Message: "value does not exist"}
	}
	if err := checkFields(v, "", triggerFields...); err != nil {
		return nil, err
	}

	t := &trigger.RegisteredTrigger{}

	labels := v.Path().Selectors()
	if len(labels) > 0 && labels[len(labels)-1].Type() == cue.StringLabel {
		t.ID = labels[len(labels)-1].Unquoted()
	}
	id, err := optionalString(v, "id")
	if err != nil {
		return nil, err
	}
	if id != "" {
		t.ID = id
	}

	required := []struct {
		field string
		dst   *string
	}{
		{"source_product", &t.SourceProduct},
		{"source_event_type", &t.SourceEventType},
		{"target_product", &t.TargetProduct},
		{"target_event_type", &t.TargetEventType},
	}
	for _, r := range required {
		if *r.dst, err = requireString(v, "", r.field); err != nil {
			return nil, err
		}
	}

	if delayVal, ok := lookup(v, "delay"); ok {
		d, err := parseDelay(delayVal, "delay")
		if err != nil {
			return nil, err
		}
		t.Delay = &d
	}

	if condVal, ok := lookup(v, "condition"); ok {
		c, err := parseCondition(condVal, "condition")
		if err != nil {
			return nil, err
		}
		t.Condition = &c
	}

	if mapVal, ok := lookup(v, "parameter_map"); ok {
		iter, err := mapVal.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		t.ParameterMap = make(map[string]string)
		for iter.Next() {
			dst, err := iter.Value().String()
			if err != nil {
				return nil, formatCUEError(err)
			}
			t.ParameterMap[iter.Label()] = dst
		}
	}

	if err := t.Validate(); err != nil {
		return nil, &CompileError{
			Field:   "trigger " + t.ID,
			Message: err.Error(),
			Pos:     v.Pos(),
			Err:     err,
		}
	}
	return t, nil
}
