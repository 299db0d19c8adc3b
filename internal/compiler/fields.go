package compiler

import (
	"fmt"
	"sort"
	"strings"

	"cuelang.org/go/cue"

	"github.com/roach88/journeysim/internal/ir"
	"github.com/roach88/journeysim/internal/journey"
)

// checkFields rejects labels not in allowed, mirroring yaml KnownFields.
func checkFields(v cue.Value, where string, allowed ...string) error {
	iter, err := v.Fields()
	if err != nil {
		return formatCUEError(err)
	}
	known := make(map[string]bool, len(allowed))
	for _, a := range allowed {
		known[a] = true
	}
	for iter.Next() {
		if !known[iter.Label()] {
			sorted := append([]string(nil), allowed...)
			sort.Strings(sorted)
			return &CompileError{
				Field:   joinField(where, iter.Label()),
				Message: fmt.Sprintf("unknown field (allowed: %s)", strings.Join(sorted, ", ")),
				Pos:     iter.Value().Pos(),
			}
		}
	}
	return nil
}

func joinField(prefix, field string) string {
	if prefix == "" {
		return field
	}
	return prefix + "." + field
}

// lookup returns the named field and whether it is present.
func lookup(v cue.Value, field string) (cue.Value, bool) {
	f := v.LookupPath(cue.MakePath(cue.Str(field)))
	return f, f.Exists()
}

func requireString(v cue.Value, where, field string) (string, error) {
	f, ok := lookup(v, field)
	if !ok {
		return "", &CompileError{
			Field:   joinField(where, field),
			Message: field + " is required",
			Pos:     v.Pos(),
		}
	}
	s, err := f.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func optionalString(v cue.Value, field string) (string, error) {
	f, ok := lookup(v, field)
	if !ok {
		return "", nil
	}
	s, err := f.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func optionalInt(v cue.Value, field string) (*int, error) {
	f, ok := lookup(v, field)
	if !ok {
		return nil, nil
	}
	n, err := f.Int64()
	if err != nil {
		return nil, formatCUEError(err)
	}
	i := int(n)
	return &i, nil
}

func stringList(v cue.Value) ([]string, error) {
	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var out []string
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out = append(out, s)
	}
	return out, nil
}

// toIRValue converts a concrete CUE value through its JSON form, so
// numbers keep exact decimal precision.
func toIRValue(v cue.Value) (ir.IRValue, error) {
	data, err := v.MarshalJSON()
	if err != nil {
		return nil, formatCUEError(err)
	}
	irv, err := ir.UnmarshalIRValue(data)
	if err != nil {
		return nil, &CompileError{Field: "value", Message: err.Error(), Pos: v.Pos()}
	}
	return irv, nil
}

func toIRObject(v cue.Value, where string) (ir.IRObject, error) {
	irv, err := toIRValue(v)
	if err != nil {
		return nil, err
	}
	obj, ok := irv.(ir.IRObject)
	if !ok {
		return nil, &CompileError{Field: where, Message: "must be a struct", Pos: v.Pos()}
	}
	return obj, nil
}

// parseDelay reads {days, days_min, days_max, distribution}.
func parseDelay(v cue.Value, where string) (journey.DelaySpec, error) {
	var d journey.DelaySpec
	if err := checkFields(v, where, "days", "days_min", "days_max", "distribution"); err != nil {
		return d, err
	}

	days, err := optionalInt(v, "days")
	if err != nil {
		return d, err
	}
	if days != nil {
		d.Days = *days
	}
	if d.DaysMin, err = optionalInt(v, "days_min"); err != nil {
		return d, err
	}
	if d.DaysMax, err = optionalInt(v, "days_max"); err != nil {
		return d, err
	}
	dist, err := optionalString(v, "distribution")
	if err != nil {
		return d, err
	}
	d.Distribution = journey.Distribution(dist)
	return d, nil
}

// parseCondition reads {field, operator, value}.
func parseCondition(v cue.Value, where string) (journey.EventCondition, error) {
	var c journey.EventCondition
	if err := checkFields(v, where, "field", "operator", "value"); err != nil {
		return c, err
	}

	var err error
	if c.Field, err = requireString(v, where, "field"); err != nil {
		return c, err
	}
	op, err := requireString(v, where, "operator")
	if err != nil {
		return c, err
	}
	c.Operator = journey.Operator(op)

	valueVal, ok := lookup(v, "value")
	if !ok {
		return c, &CompileError{
			Field:   joinField(where, "value"),
			Message: "value is required",
			Pos:     v.Pos(),
		}
	}
	if c.Value, err = toIRValue(valueVal); err != nil {
		return c, err
	}
	return c, nil
}
