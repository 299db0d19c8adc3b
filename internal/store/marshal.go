package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/roach88/journeysim/internal/ir"
	"github.com/roach88/journeysim/internal/timeline"
)

// marshalObject converts an IRObject to canonical JSON TEXT for storage.
// A nil object is stored as "{}".
func marshalObject(field string, obj ir.IRObject) (string, error) {
	if obj == nil {
		obj = ir.IRObject{}
	}
	data, err := ir.MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("marshal %s: %w", field, err)
	}
	return string(data), nil
}

// marshalResult is like marshalObject but keeps "no result yet" distinct
// from an empty result: nil is stored as SQL NULL.
func marshalResult(result ir.IRObject) (*string, error) {
	if result == nil {
		return nil, nil
	}
	s, err := marshalObject("result", result)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// unmarshalObject parses canonical JSON TEXT to IRObject.
// Uses ir.IRObject.UnmarshalJSON so large integers keep full precision.
func unmarshalObject(field, data string) (ir.IRObject, error) {
	if data == "" || data == "{}" {
		return ir.IRObject{}, nil
	}
	var obj ir.IRObject
	if err := json.Unmarshal([]byte(data), &obj); err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", field, err)
	}
	return obj, nil
}

// marshalStrings stores a string list as a JSON array. Order is preserved.
func marshalStrings(field string, vals []string) (string, error) {
	if vals == nil {
		vals = []string{}
	}
	data, err := json.Marshal(vals)
	if err != nil {
		return "", fmt.Errorf("marshal %s: %w", field, err)
	}
	return string(data), nil
}

func unmarshalStrings(field, data string) ([]string, error) {
	vals := []string{}
	if data == "" {
		return vals, nil
	}
	if err := json.Unmarshal([]byte(data), &vals); err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", field, err)
	}
	return vals, nil
}

func parseDate(field, s string) (time.Time, error) {
	d, err := timeline.ParseDate(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse %s: %w", field, err)
	}
	return d, nil
}
