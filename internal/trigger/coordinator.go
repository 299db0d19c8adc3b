package trigger

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/roach88/journeysim/internal/ir"
	"github.com/roach88/journeysim/internal/journey"
	"github.com/roach88/journeysim/internal/timeline"
)

// Simulated products.
const (
	ProductPatient  = "patientsim"
	ProductMember   = "membersim"
	ProductRxMember = "rxmembersim"
	ProductTrial    = "trialsim"
)

// ProductEntityIDParam is the parameter set on an applied event when the
// entity has an id in the target product.
const ProductEntityIDParam = "product_entity_id"

// LinkedEntity associates a core entity with its per-product ids.
type LinkedEntity struct {
	CoreID     string            `json:"core_id"`
	ProductIDs map[string]string `json:"product_ids"`
}

func (l *LinkedEntity) clone() LinkedEntity {
	ids := make(map[string]string, len(l.ProductIDs))
	for k, v := range l.ProductIDs {
		ids[k] = v
	}
	return LinkedEntity{CoreID: l.CoreID, ProductIDs: ids}
}

// DefaultTriggers returns the built-in cross-product triggers.
func DefaultTriggers() []RegisteredTrigger {
	fixed := func(days int) *journey.DelaySpec {
		d := journey.Fixed(days)
		return &d
	}
	return []RegisteredTrigger{
		{
			SourceProduct: ProductPatient, SourceEventType: "diagnosis",
			TargetProduct: ProductMember, TargetEventType: "claim_professional",
			Delay:        fixed(3),
			ParameterMap: map[string]string{"icd10": "diagnosis_code", "provider_npi": "rendering_npi"},
		},
		{
			SourceProduct: ProductPatient, SourceEventType: "medication_order",
			TargetProduct: ProductRxMember, TargetEventType: "fill",
			Delay:        fixed(1),
			ParameterMap: map[string]string{"ndc": "ndc", "drug": "drug", "days_supply": "days_supply"},
		},
		{
			SourceProduct: ProductPatient, SourceEventType: "lab_order",
			TargetProduct: ProductMember, TargetEventType: "claim_lab",
			Delay:        fixed(2),
			ParameterMap: map[string]string{"loinc": "loinc"},
		},
		{
			SourceProduct: ProductPatient, SourceEventType: "admission",
			TargetProduct: ProductMember, TargetEventType: "claim_institutional",
			Delay:        fixed(5),
			ParameterMap: map[string]string{"drg": "drg", "length_of_stay": "length_of_stay"},
		},
		{
			SourceProduct: ProductTrial, SourceEventType: "adverse_event",
			TargetProduct: ProductPatient, TargetEventType: "encounter",
			Delay:        fixed(0),
			ParameterMap: map[string]string{"term": "reason", "severity": "severity"},
		},
	}
}

// Coordinator owns a trigger registry and the linked-entity map.
type Coordinator struct {
	registry *Registry
	ids      IDGenerator
	logger   *slog.Logger

	mu    sync.RWMutex
	links map[string]*LinkedEntity
}

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithRegistry replaces the default registry.
func WithRegistry(r *Registry) CoordinatorOption {
	return func(c *Coordinator) { c.registry = r }
}

// WithIDGenerator sets the generator used by EnsureLinked.
// Default: UUIDv7Generator.
func WithIDGenerator(g IDGenerator) CoordinatorOption {
	return func(c *Coordinator) { c.ids = g }
}

// WithCoordinatorLogger sets the logger. Default: slog.Default().
func WithCoordinatorLogger(l *slog.Logger) CoordinatorOption {
	return func(c *Coordinator) { c.logger = l }
}

// NewCoordinator creates a coordinator. Unless WithRegistry is given, the
// registry is pre-populated with DefaultTriggers.
func NewCoordinator(opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		ids:    UUIDv7Generator{},
		logger: slog.Default(),
		links:  make(map[string]*LinkedEntity),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.registry == nil {
		c.registry = NewRegistry()
		for _, t := range DefaultTriggers() {
			if _, err := c.registry.RegisterSpec(t); err != nil {
				panic(fmt.Sprintf("default trigger %s.%s: %v", t.SourceProduct, t.SourceEventType, err))
			}
		}
	}
	return c
}

// Registry returns the coordinator's trigger registry.
func (c *Coordinator) Registry() *Registry {
	return c.registry
}

// FireTriggers delegates to the registry.
func (c *Coordinator) FireTriggers(source *timeline.TimelineEvent, result ir.IRObject, ctx ir.IRObject) []Instruction {
	return c.registry.FireTriggers(source, result, ctx)
}

// LinkEntity records product ids for coreID, merging with any existing
// ids, and returns a copy of the link.
func (c *Coordinator) LinkEntity(coreID string, productIDs map[string]string) LinkedEntity {
	c.mu.Lock()
	defer c.mu.Unlock()

	link := c.linkLocked(coreID)
	for product, id := range productIDs {
		link.ProductIDs[product] = id
	}
	return link.clone()
}

// EnsureLinked generates ids for any of products that coreID does not
// yet have and returns a copy of the link.
func (c *Coordinator) EnsureLinked(coreID string, products ...string) LinkedEntity {
	c.mu.Lock()
	defer c.mu.Unlock()

	link := c.linkLocked(coreID)
	for _, product := range products {
		if _, ok := link.ProductIDs[product]; !ok {
			link.ProductIDs[product] = c.ids.Generate(coreID, product)
		}
	}
	return link.clone()
}

// LinkedEntity returns a copy of the link for coreID.
func (c *Coordinator) LinkedEntity(coreID string) (LinkedEntity, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	link, ok := c.links[coreID]
	if !ok {
		return LinkedEntity{}, false
	}
	return link.clone(), true
}

// ProductID returns coreID's id in product.
func (c *Coordinator) ProductID(coreID, product string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	link, ok := c.links[coreID]
	if !ok {
		return "", false
	}
	id, ok := link.ProductIDs[product]
	return id, ok
}

// LinkedEntities returns copies of every link, sorted by core id.
func (c *Coordinator) LinkedEntities() []LinkedEntity {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]LinkedEntity, 0, len(c.links))
	for _, link := range c.links {
		out = append(out, link.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CoreID < out[j].CoreID })
	return out
}

// ApplyInstruction adds the instruction's target event to tl, pending.
// The event id is the instruction id, so applying the same instruction
// twice returns applied=false and no error.
func (c *Coordinator) ApplyInstruction(tl *timeline.Timeline, instr Instruction) (ev *timeline.TimelineEvent, applied bool, err error) {
	params := instr.Parameters.Clone()
	if params == nil {
		params = ir.IRObject{}
	}
	if id, ok := c.ProductID(tl.EntityID, instr.TargetProduct); ok {
		params[ProductEntityIDParam] = ir.IRString(id)
	}

	ev = &timeline.TimelineEvent{
		ID:            instr.ID,
		ScheduledDate: instr.TargetDate,
		EventType:     instr.TargetEventType,
		Product:       instr.TargetProduct,
		Name:          instr.TargetEventType,
		Status:        timeline.StatusPending,
		Parameters:    params,
		Source: &timeline.Source{
			TriggerID:     instr.TriggerID,
			InstructionID: instr.ID,
			SourceEventID: instr.SourceEventID,
			SourceProduct: instr.SourceProduct,
		},
	}

	if err := tl.AddEvent(ev); err != nil {
		if errors.Is(err, timeline.ErrDuplicateEvent) {
			return tl.Event(instr.ID), false, nil
		}
		return nil, false, fmt.Errorf("apply instruction %s: %w", instr.ID, err)
	}

	c.logger.Debug("instruction applied",
		"entity_id", tl.EntityID,
		"trigger_id", instr.TriggerID,
		"target_product", instr.TargetProduct,
		"target_event_type", instr.TargetEventType,
		"target_date", timeline.FormatDate(instr.TargetDate),
	)
	return ev, true, nil
}

func (c *Coordinator) linkLocked(coreID string) *LinkedEntity {
	link, ok := c.links[coreID]
	if !ok {
		link = &LinkedEntity{CoreID: coreID, ProductIDs: make(map[string]string)}
		c.links[coreID] = link
	}
	return link
}
