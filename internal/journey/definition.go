package journey

import (
	"fmt"
	"math"

	"github.com/roach88/journeysim/internal/ir"
)

// SkillRefParam is the parameter key that pins an explicit skill reference.
const SkillRefParam = "skill_ref"

// EventDefinition is one declared step of a journey.
type EventDefinition struct {
	ID         string           `json:"event_id" yaml:"event_id"`
	Name       string           `json:"name" yaml:"name"`
	EventType  string           `json:"event_type" yaml:"event_type"`
	Product    string           `json:"product" yaml:"product"`
	Delay      DelaySpec        `json:"delay" yaml:"delay"`
	DependsOn  string           `json:"depends_on,omitempty" yaml:"depends_on,omitempty"`
	Conditions []EventCondition `json:"conditions,omitempty" yaml:"conditions,omitempty"`

	// Probability is the inclusion probability; nil means always included.
	Probability *float64 `json:"probability,omitempty" yaml:"probability,omitempty"`

	// Condition is a domain-condition hint resolved by the skill resolver.
	Condition  string      `json:"condition,omitempty" yaml:"condition,omitempty"`
	Parameters ir.IRObject `json:"parameters,omitempty" yaml:"parameters,omitempty"`
}

// InclusionProbability returns Probability, defaulting to 1.
func (d EventDefinition) InclusionProbability() float64 {
	if d.Probability == nil {
		return 1
	}
	return *d.Probability
}

// SkillRef returns the explicit parameters.skill_ref, if any.
func (d EventDefinition) SkillRef() (string, bool) {
	v, ok := d.Parameters[SkillRefParam]
	if !ok {
		return "", false
	}
	s, ok := v.(ir.IRString)
	if !ok || s == "" {
		return "", false
	}
	return string(s), true
}

// UsesAutoResolution reports whether final parameters come from the skill
// resolver: a condition hint is set and no explicit skill_ref overrides it.
func (d EventDefinition) UsesAutoResolution() bool {
	if d.Condition == "" {
		return false
	}
	_, pinned := d.SkillRef()
	return !pinned
}

// Validate checks the definition in isolation. Dependency ordering is
// checked by JourneySpecification.Validate.
func (d EventDefinition) Validate() error {
	if d.ID == "" {
		return &SpecificationError{Field: "event_id", Message: "event_id is required"}
	}
	if d.EventType == "" {
		return &SpecificationError{Event: d.ID, Field: "event_type", Message: "event_type is required"}
	}
	if d.Product == "" {
		return &SpecificationError{Event: d.ID, Field: "product", Message: "product is required"}
	}
	if err := d.Delay.Validate(); err != nil {
		return withLocation(err, "", d.ID)
	}
	if p := d.InclusionProbability(); math.IsNaN(p) || p < 0 || p > 1 {
		return &SpecificationError{Event: d.ID, Field: "probability", Message: fmt.Sprintf("probability %v outside [0,1]", p)}
	}
	for i, c := range d.Conditions {
		if err := c.Validate(); err != nil {
			err = withLocation(err, "", d.ID)
			return fmt.Errorf("conditions[%d]: %w", i, err)
		}
	}
	return nil
}
