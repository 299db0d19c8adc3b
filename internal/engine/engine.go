package engine

import (
	"log/slog"

	"github.com/roach88/journeysim/internal/ir"
	"github.com/roach88/journeysim/internal/seed"
)

// Context keys built by BuildContext.
const (
	CtxEntity     = "entity"
	CtxEntityID   = "entity_id"
	CtxEntityType = "entity_type"
	CtxJourneyID  = "journey_id"
	CtxEvent      = "event"
)

// Engine schedules timelines from journey specifications and executes
// their events through registered handlers.
//
// Thread-safety model:
//   - RegisterHandler: startup only, not safe with concurrent readers
//   - CreateTimeline, ScheduleJourney, ExecuteEvent, ExecuteTimeline:
//     safe for concurrent use on distinct timelines
//
// A single timeline must not be scheduled or executed from two goroutines
// at once.
type Engine struct {
	seeds        *seed.Manager
	handlers     map[handlerKey]Handler
	resolver     SkillResolver
	placeholders bool
	logger       *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithSkillResolver sets the collaborator used for auto-resolved events.
func WithSkillResolver(r SkillResolver) Option {
	return func(e *Engine) {
		e.resolver = r
	}
}

// WithSkippedPlaceholders records excluded events as skipped timeline
// events instead of omitting them.
func WithSkippedPlaceholders() Option {
	return func(e *Engine) {
		e.placeholders = true
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// New creates an engine for the given master seed.
func New(masterSeed int64, opts ...Option) *Engine {
	e := &Engine{
		seeds:    seed.NewManager(masterSeed),
		handlers: make(map[handlerKey]Handler),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Seeds returns the engine's seed manager.
func (e *Engine) Seeds() *seed.Manager {
	return e.seeds
}

// RegisterHandler installs h for (product, eventType), replacing any
// previous handler. Call during startup only.
func (e *Engine) RegisterHandler(product, eventType string, h Handler) {
	e.handlers[handlerKey{product: product, eventType: eventType}] = h
}

// Handler returns the handler for (product, eventType).
func (e *Engine) Handler(product, eventType string) (Handler, bool) {
	h, ok := e.handlers[handlerKey{product: product, eventType: eventType}]
	return h, ok
}

// BuildContext returns the evaluation context for an entity:
//
//	{"entity": <attributes>, "entity_id": ..., "entity_type": ..., "journey_id": ...}
//
// Attributes are cloned, so conditions and handlers cannot mutate the
// caller's entity through the context.
func (e *Engine) BuildContext(entity Entity, entityType, journeyID string) ir.IRObject {
	attrs := entity.Attributes.Clone()
	if attrs == nil {
		attrs = ir.IRObject{}
	}
	if entityType == "" {
		entityType = entity.Type
	}
	ctx := ir.IRObject{
		CtxEntity:     attrs,
		CtxEntityID:   ir.IRString(entity.ID),
		CtxEntityType: ir.IRString(entityType),
	}
	if journeyID != "" {
		ctx[CtxJourneyID] = ir.IRString(journeyID)
	}
	return ctx
}
