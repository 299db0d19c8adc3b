package trigger

import (
	"fmt"
	"sort"

	"github.com/roach88/journeysim/internal/ir"
	"github.com/roach88/journeysim/internal/journey"
	"github.com/roach88/journeysim/internal/seed"
	"github.com/roach88/journeysim/internal/timeline"
)

// RegisteredTrigger maps a (source product, source event type) to a new
// event in a target product.
type RegisteredTrigger struct {
	ID              string                  `json:"id" yaml:"id"`
	SourceProduct   string                  `json:"source_product" yaml:"source_product"`
	SourceEventType string                  `json:"source_event_type" yaml:"source_event_type"`
	TargetProduct   string                  `json:"target_product" yaml:"target_product"`
	TargetEventType string                  `json:"target_event_type" yaml:"target_event_type"`
	Delay           *journey.DelaySpec      `json:"delay,omitempty" yaml:"delay,omitempty"`
	Condition       *journey.EventCondition `json:"condition,omitempty" yaml:"condition,omitempty"`

	// ParameterMap maps a dotted path in the source result to a target
	// parameter name.
	ParameterMap map[string]string `json:"parameter_map,omitempty" yaml:"parameter_map,omitempty"`
}

// Validate checks the trigger definition.
func (t RegisteredTrigger) Validate() error {
	required := []struct{ field, value string }{
		{"source_product", t.SourceProduct},
		{"source_event_type", t.SourceEventType},
		{"target_product", t.TargetProduct},
		{"target_event_type", t.TargetEventType},
	}
	for _, r := range required {
		if r.value == "" {
			return &journey.SpecificationError{Event: t.ID, Field: r.field, Message: r.field + " is required"}
		}
	}
	if t.Delay != nil {
		if err := t.Delay.Validate(); err != nil {
			return fmt.Errorf("trigger %s: %w", t.ID, err)
		}
	}
	if t.Condition != nil {
		if err := t.Condition.Validate(); err != nil {
			return fmt.Errorf("trigger %s: %w", t.ID, err)
		}
	}
	for src, dst := range t.ParameterMap {
		if src == "" || dst == "" {
			return &journey.SpecificationError{Event: t.ID, Field: "parameter_map", Message: "empty path in parameter_map"}
		}
	}
	return nil
}

// Option configures a trigger passed to Register.
type Option func(*RegisteredTrigger)

// WithID sets an explicit trigger id.
func WithID(id string) Option {
	return func(t *RegisteredTrigger) { t.ID = id }
}

// WithDelay sets the delay between source and target event.
func WithDelay(d journey.DelaySpec) Option {
	return func(t *RegisteredTrigger) { t.Delay = &d }
}

// WithCondition gates the trigger on a condition.
func WithCondition(c journey.EventCondition) Option {
	return func(t *RegisteredTrigger) { t.Condition = &c }
}

// WithParameterMap copies source result fields into target parameters.
func WithParameterMap(m map[string]string) Option {
	return func(t *RegisteredTrigger) { t.ParameterMap = m }
}

type sourceKey struct {
	product   string
	eventType string
}

// Registry is an ordered set of triggers keyed by source.
//
// Thread-safety: populate at startup; concurrent FireTriggers calls are
// safe only once registration has stopped.
type Registry struct {
	seed  int64
	byKey map[sourceKey][]*RegisteredTrigger
	all   []*RegisteredTrigger
	ids   map[string]bool
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithSeed sets the seed used for uniform trigger delays.
func WithSeed(s int64) RegistryOption {
	return func(r *Registry) { r.seed = s }
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		byKey: make(map[sourceKey][]*RegisteredTrigger),
		ids:   make(map[string]bool),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register appends a trigger for (sourceProduct, sourceEventType).
// Several triggers per key are all evaluated, in registration order.
func (r *Registry) Register(sourceProduct, sourceEventType, targetProduct, targetEventType string, opts ...Option) (*RegisteredTrigger, error) {
	t := RegisteredTrigger{
		SourceProduct:   sourceProduct,
		SourceEventType: sourceEventType,
		TargetProduct:   targetProduct,
		TargetEventType: targetEventType,
	}
	for _, opt := range opts {
		opt(&t)
	}
	return r.RegisterSpec(t)
}

// RegisterSpec validates and appends a fully described trigger, such as
// one decoded from YAML or compiled from CUE. An empty ID is derived from
// the source and target.
func (r *Registry) RegisterSpec(t RegisteredTrigger) (*RegisteredTrigger, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	if t.ID == "" {
		t.ID = r.nextID(t)
	}
	if r.ids[t.ID] {
		return nil, &journey.SpecificationError{Event: t.ID, Field: "id", Message: "duplicate trigger id"}
	}

	stored := t
	r.ids[stored.ID] = true
	key := sourceKey{product: stored.SourceProduct, eventType: stored.SourceEventType}
	r.byKey[key] = append(r.byKey[key], &stored)
	r.all = append(r.all, &stored)
	return &stored, nil
}

// MustRegister is like Register but panics on error.
// Use only for built-in defaults and tests.
func (r *Registry) MustRegister(sourceProduct, sourceEventType, targetProduct, targetEventType string, opts ...Option) *RegisteredTrigger {
	t, err := r.Register(sourceProduct, sourceEventType, targetProduct, targetEventType, opts...)
	if err != nil {
		panic(err)
	}
	return t
}

// GetTriggers returns the triggers for a source key in registration order.
func (r *Registry) GetTriggers(sourceProduct, sourceEventType string) []*RegisteredTrigger {
	ts := r.byKey[sourceKey{product: sourceProduct, eventType: sourceEventType}]
	out := make([]*RegisteredTrigger, len(ts))
	copy(out, ts)
	return out
}

// All returns every trigger in registration order.
func (r *Registry) All() []*RegisteredTrigger {
	out := make([]*RegisteredTrigger, len(r.all))
	copy(out, r.all)
	return out
}

// Len returns the number of registered triggers.
func (r *Registry) Len() int {
	return len(r.all)
}

// FireTriggers evaluates the triggers registered for source's product and
// event type and returns one Instruction per trigger that passes.
//
// Conditions are evaluated against ctx extended with "source" (the source
// event's fields) and "result" (sourceResult). A trigger's target date is
// the source date plus its delay, or the source date when it has none.
// Uniform delays are seeded from the registry seed, trigger id and source
// event id. Parameters are copied from sourceResult via ParameterMap;
// missing source fields are omitted.
func (r *Registry) FireTriggers(source *timeline.TimelineEvent, sourceResult ir.IRObject, ctx ir.IRObject) []Instruction {
	triggers := r.byKey[sourceKey{product: source.Product, eventType: source.EventType}]
	if len(triggers) == 0 {
		return nil
	}

	evalCtx := ctx.Merge(ir.IRObject{
		"source": ir.IRObject{
			"id":             ir.IRString(source.ID),
			"event_type":     ir.IRString(source.EventType),
			"product":        ir.IRString(source.Product),
			"scheduled_date": ir.IRString(timeline.FormatDate(source.ScheduledDate)),
			"parameters":     source.Parameters.Clone(),
		},
		"result": sourceResult.Clone(),
	})

	var out []Instruction
	for _, t := range triggers {
		if t.Condition != nil && !t.Condition.Evaluate(evalCtx) {
			continue
		}
		out = append(out, r.instruction(t, source, sourceResult))
	}
	return out
}

func (r *Registry) instruction(t *RegisteredTrigger, source *timeline.TimelineEvent, result ir.IRObject) Instruction {
	target := timeline.DateOf(source.ScheduledDate)
	if t.Delay != nil {
		target = t.Delay.Apply(target, ir.DeriveSeed(r.seed, seed.PurposeTrigger, t.ID, source.ID))
	}

	return Instruction{
		ID:              ir.MustInstructionID(t.ID, source.ID),
		TriggerID:       t.ID,
		SourceEventID:   source.ID,
		SourceProduct:   source.Product,
		SourceEventType: source.EventType,
		TargetProduct:   t.TargetProduct,
		TargetEventType: t.TargetEventType,
		TargetDate:      target,
		Parameters:      mapParameters(t.ParameterMap, result),
	}
}

// mapParameters applies a parameter map in sorted key order so that two
// paths writing the same target resolve deterministically.
func mapParameters(m map[string]string, result ir.IRObject) ir.IRObject {
	params := ir.IRObject{}
	srcs := make([]string, 0, len(m))
	for src := range m {
		srcs = append(srcs, src)
	}
	sort.Strings(srcs)

	for _, src := range srcs {
		v, ok := ir.Lookup(result, src)
		if !ok {
			continue
		}
		ir.SetPath(params, m[src], ir.CloneValue(v))
	}
	return params
}

func (r *Registry) nextID(t RegisteredTrigger) string {
	base := fmt.Sprintf("%s.%s->%s.%s", t.SourceProduct, t.SourceEventType, t.TargetProduct, t.TargetEventType)
	id := base
	for n := 2; r.ids[id]; n++ {
		id = fmt.Sprintf("%s#%d", base, n)
	}
	return id
}
