package engine

import (
	"context"

	"github.com/roach88/journeysim/internal/ir"
	"github.com/roach88/journeysim/internal/timeline"
)

// Entity is the subject a timeline is attached to. The engine only ever
// performs dotted-path lookups into Attributes.
type Entity struct {
	ID         string      `json:"id"`
	Type       string      `json:"type"`
	Attributes ir.IRObject `json:"attributes"`
}

// Handler executes one (product, event_type) event and returns its result.
//
// evctx holds the entity context (see BuildContext) plus an "event" object
// describing the event and any caller-supplied extras.
type Handler interface {
	Execute(ctx context.Context, entity Entity, event *timeline.TimelineEvent, evctx ir.IRObject) (ir.IRObject, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, entity Entity, event *timeline.TimelineEvent, evctx ir.IRObject) (ir.IRObject, error)

// Execute calls f.
func (f HandlerFunc) Execute(ctx context.Context, entity Entity, event *timeline.TimelineEvent, evctx ir.IRObject) (ir.IRObject, error) {
	return f(ctx, entity, event, evctx)
}

// SkillResolver supplies final event parameters for a domain condition.
// It returns ErrUnknownCondition when it has no mapping.
type SkillResolver interface {
	ResolveForEvent(ctx context.Context, eventType, condition string, entity Entity, product string) (ir.IRObject, error)
}

// SkillResolverFunc adapts a function to SkillResolver.
type SkillResolverFunc func(ctx context.Context, eventType, condition string, entity Entity, product string) (ir.IRObject, error)

// ResolveForEvent calls f.
func (f SkillResolverFunc) ResolveForEvent(ctx context.Context, eventType, condition string, entity Entity, product string) (ir.IRObject, error) {
	return f(ctx, eventType, condition, entity, product)
}

type handlerKey struct {
	product   string
	eventType string
}
