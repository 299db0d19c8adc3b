package journey

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/roach88/journeysim/internal/ir"
)

// Operator is a comparison operator for EventCondition.
type Operator string

const (
	OpEq    Operator = "eq"
	OpNeq   Operator = "neq"
	OpGt    Operator = "gt"
	OpGte   Operator = "gte"
	OpLt    Operator = "lt"
	OpLte   Operator = "lte"
	OpIn    Operator = "in"
	OpNotIn Operator = "not_in"
)

// ValidOperators lists the supported operators.
var ValidOperators = map[Operator]bool{
	OpEq: true, OpNeq: true,
	OpGt: true, OpGte: true, OpLt: true, OpLte: true,
	OpIn: true, OpNotIn: true,
}

// EventCondition is a predicate over a dotted path into a context object.
// It is stateless: Evaluate is a pure function of its argument.
type EventCondition struct {
	Field    string     `json:"field" yaml:"field"`
	Operator Operator   `json:"operator" yaml:"operator"`
	Value    ir.IRValue `json:"value" yaml:"value"`
}

// Validate checks the condition is well formed.
func (c EventCondition) Validate() error {
	if c.Field == "" {
		return &SpecificationError{Field: "conditions.field", Message: "field path is required"}
	}
	if !ValidOperators[c.Operator] {
		return &SpecificationError{Field: "conditions.operator", Message: fmt.Sprintf("unknown operator %q", c.Operator)}
	}
	if c.Operator == OpIn || c.Operator == OpNotIn {
		if _, ok := c.Value.(ir.IRArray); !ok {
			return &SpecificationError{Field: "conditions.value", Message: fmt.Sprintf("operator %q requires a list value", c.Operator)}
		}
	}
	return nil
}

// Evaluate resolves Field in ctx and applies the operator.
//
// Evaluation fails closed: a missing path, a type mismatch on an ordering
// operator, a non-list operand for in/not_in or an unknown operator all
// yield false. Evaluate never panics.
func (c EventCondition) Evaluate(ctx ir.IRObject) bool {
	actual, ok := ir.Lookup(ctx, c.Field)
	if !ok {
		return false
	}

	switch c.Operator {
	case OpEq:
		return ir.Equal(actual, c.Value)
	case OpNeq:
		return !ir.Equal(actual, c.Value)
	case OpGt, OpGte, OpLt, OpLte:
		cmp, ok := ir.CompareNumeric(actual, c.Value)
		if !ok {
			return false
		}
		switch c.Operator {
		case OpGt:
			return cmp > 0
		case OpGte:
			return cmp >= 0
		case OpLt:
			return cmp < 0
		default:
			return cmp <= 0
		}
	case OpIn, OpNotIn:
		list, ok := c.Value.(ir.IRArray)
		if !ok {
			return false
		}
		found := false
		for _, v := range list {
			if ir.Equal(actual, v) {
				found = true
				break
			}
		}
		if c.Operator == OpIn {
			return found
		}
		return !found
	default:
		return false
	}
}

// AllHold reports whether every condition evaluates true. An empty list holds.
func AllHold(conds []EventCondition, ctx ir.IRObject) bool {
	for _, c := range conds {
		if !c.Evaluate(ctx) {
			return false
		}
	}
	return true
}

type conditionWire struct {
	Field    string          `json:"field"`
	Operator Operator        `json:"operator"`
	Value    json.RawMessage `json:"value"`
}

// UnmarshalJSON decodes Value into an ir.IRValue. Unknown keys are
// rejected; the caller's decoder settings do not reach this method.
func (c *EventCondition) UnmarshalJSON(data []byte) error {
	var w conditionWire
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&w); err != nil {
		return fmt.Errorf("condition: %w", err)
	}
	c.Field, c.Operator, c.Value = w.Field, w.Operator, ir.IRNull{}
	if len(w.Value) > 0 {
		v, err := ir.UnmarshalIRValue(w.Value)
		if err != nil {
			return fmt.Errorf("condition %q value: %w", w.Field, err)
		}
		c.Value = v
	}
	return nil
}

// MarshalJSON encodes Value through ir.MarshalIRValue.
func (c EventCondition) MarshalJSON() ([]byte, error) {
	val, err := ir.MarshalIRValue(c.Value)
	if err != nil {
		return nil, err
	}
	return json.Marshal(conditionWire{Field: c.Field, Operator: c.Operator, Value: val})
}

// UnmarshalYAML decodes Value into an ir.IRValue. Unknown keys are
// rejected, matching the KnownFields decoder used for whole journeys.
func (c *EventCondition) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.MappingNode {
		for i := 0; i+1 < len(node.Content); i += 2 {
			switch key := node.Content[i]; key.Value {
			case "field", "operator", "value":
			default:
				return fmt.Errorf("line %d: condition: unknown field %q", key.Line, key.Value)
			}
		}
	}
	var w struct {
		Field    string   `yaml:"field"`
		Operator Operator `yaml:"operator"`
		Value    any      `yaml:"value"`
	}
	if err := node.Decode(&w); err != nil {
		return err
	}
	v, err := ir.FromAny(w.Value)
	if err != nil {
		return fmt.Errorf("line %d: condition %q value: %w", node.Line, w.Field, err)
	}
	c.Field, c.Operator, c.Value = w.Field, w.Operator, v
	return nil
}
