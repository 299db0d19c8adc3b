package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/journeysim/internal/ir"
	"github.com/roach88/journeysim/internal/journey"
	"github.com/roach88/journeysim/internal/timeline"
)

// UnknownEventStatus is the "status" of the result recorded for an event
// with no registered handler.
const UnknownEventStatus = "unknown_event"

// Summary tallies one ExecuteTimeline call. Unknown events are counted in
// both Executed and Unknown.
type Summary struct {
	Executed int `json:"executed"`
	Failed   int `json:"failed"`
	Unknown  int `json:"unknown"`
}

// Add accumulates other into s.
func (s *Summary) Add(other Summary) {
	s.Executed += other.Executed
	s.Failed += other.Failed
	s.Unknown += other.Unknown
}

// ExecuteEvent runs one pending event and returns its result.
//
// Final parameters are resolved first (see ResolveParameters). The
// handler for (product, event_type) is then invoked synchronously. A
// missing handler marks the event executed with an unknown_event result.
// A handler error or panic marks it failed and returns nil; nothing is
// propagated to the caller. An event that is not pending is left alone
// and its existing result is returned.
//
// extra is merged over the built context and may be nil.
func (e *Engine) ExecuteEvent(ctx context.Context, tl *timeline.Timeline, ev *timeline.TimelineEvent, entity Entity, extra ir.IRObject) ir.IRObject {
	if !ev.IsPending() {
		return ev.Result
	}

	ev.Parameters = e.ResolveParameters(ctx, ev, entity)
	evctx := e.eventContext(tl, ev, entity, extra)

	h, ok := e.Handler(ev.Product, ev.EventType)
	if !ok {
		result := UnknownEventResult(ev)
		e.mark(ev, ev.MarkExecuted(result))
		e.logger.Debug("no handler registered",
			"event_id", ev.ID,
			"product", ev.Product,
			"event_type", ev.EventType,
		)
		return result
	}

	result, err := invoke(ctx, h, entity, ev, evctx)
	if err != nil {
		e.mark(ev, ev.MarkFailed(err.Error()))
		e.logger.Warn("event failed",
			"event_id", ev.ID,
			"entity_id", entity.ID,
			"product", ev.Product,
			"event_type", ev.EventType,
			"error", err,
		)
		return nil
	}

	if result == nil {
		result = ir.IRObject{}
	}
	e.mark(ev, ev.MarkExecuted(result))
	e.logger.Debug("event executed",
		"event_id", ev.ID,
		"entity_id", entity.ID,
		"product", ev.Product,
		"event_type", ev.EventType,
	)
	return result
}

// ExecuteTimeline executes every pending event dated on or before upTo,
// in chronological order. One event failing never blocks the rest.
//
// The only error returned is ctx's, checked between events.
func (e *Engine) ExecuteTimeline(ctx context.Context, tl *timeline.Timeline, entity Entity, upTo time.Time) (Summary, error) {
	var sum Summary
	for _, ev := range tl.PendingEventsUpTo(upTo) {
		if err := ctx.Err(); err != nil {
			return sum, fmt.Errorf("execute timeline %s: %w", tl.EntityID, err)
		}
		e.ExecuteEvent(ctx, tl, ev, entity, nil)
		sum.Add(Tally(ev))
	}
	return sum, nil
}

// Tally returns the Summary contribution of one executed event.
func Tally(ev *timeline.TimelineEvent) Summary {
	switch ev.Status {
	case timeline.StatusExecuted:
		if IsUnknownResult(ev.Result) {
			return Summary{Executed: 1, Unknown: 1}
		}
		return Summary{Executed: 1}
	case timeline.StatusFailed:
		return Summary{Failed: 1}
	}
	return Summary{}
}

// ResolveParameters computes an event's final parameters.
//
// An explicit parameters.skill_ref always wins over the condition hint,
// so such events use their literal parameters. Otherwise, when a
// condition is set and a resolver is configured, the resolved parameters
// form the base and literal parameters override them. Any resolver
// failure falls back to the literal parameters.
func (e *Engine) ResolveParameters(ctx context.Context, ev *timeline.TimelineEvent, entity Entity) ir.IRObject {
	literal := ev.Parameters.Clone()
	if literal == nil {
		literal = ir.IRObject{}
	}

	def := journey.EventDefinition{Condition: ev.Condition, Parameters: ev.Parameters}
	if !def.UsesAutoResolution() || e.resolver == nil {
		return literal
	}

	resolved, err := e.resolver.ResolveForEvent(ctx, ev.EventType, ev.Condition, entity, ev.Product)
	switch {
	case errors.Is(err, ErrUnknownCondition):
		e.logger.Debug("condition not resolvable, using literal parameters",
			"event_id", ev.ID,
			"condition", ev.Condition,
		)
		return literal
	case err != nil:
		rerr := &ExecutionError{
			Code:      ErrCodeResolverFailed,
			EventID:   ev.ID,
			Product:   ev.Product,
			EventType: ev.EventType,
			Message:   fmt.Sprintf("resolve condition %q", ev.Condition),
			Err:       err,
		}
		e.logger.Warn("skill resolution failed, using literal parameters",
			"event_id", ev.ID,
			"error", rerr,
		)
		return literal
	}
	return resolved.Merge(literal)
}

// UnknownEventResult is the result recorded when no handler is registered.
func UnknownEventResult(ev *timeline.TimelineEvent) ir.IRObject {
	return ir.IRObject{
		"status":     ir.IRString(UnknownEventStatus),
		"product":    ir.IRString(ev.Product),
		"event_type": ir.IRString(ev.EventType),
	}
}

// IsUnknownResult reports whether result came from a missing handler.
func IsUnknownResult(result ir.IRObject) bool {
	s, ok := result["status"].(ir.IRString)
	return ok && s == UnknownEventStatus
}

func (e *Engine) eventContext(tl *timeline.Timeline, ev *timeline.TimelineEvent, entity Entity, extra ir.IRObject) ir.IRObject {
	entityType := entity.Type
	if tl != nil {
		entityType = tl.EntityType
	}
	evctx := e.BuildContext(entity, entityType, ev.JourneyID)
	evctx[CtxEvent] = ir.IRObject{
		"id":             ir.IRString(ev.ID),
		"name":           ir.IRString(ev.Name),
		"event_type":     ir.IRString(ev.EventType),
		"product":        ir.IRString(ev.Product),
		"scheduled_date": ir.IRString(timeline.FormatDate(ev.ScheduledDate)),
		"parameters":     ev.Parameters.Clone(),
	}
	if extra != nil {
		evctx = evctx.Merge(extra)
	}
	return evctx
}

// mark logs a transition error. ExecuteEvent only transitions pending
// events, so this fires only if a handler changed the status itself.
func (e *Engine) mark(ev *timeline.TimelineEvent, err error) {
	if err != nil {
		e.logger.Error("status transition rejected", "event_id", ev.ID, "error", err)
	}
}

// invoke calls the handler and converts an error or panic into an
// *ExecutionError.
func invoke(ctx context.Context, h Handler, entity Entity, ev *timeline.TimelineEvent, evctx ir.IRObject) (result ir.IRObject, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = &ExecutionError{
				Code:      ErrCodeHandlerPanic,
				EventID:   ev.ID,
				Product:   ev.Product,
				EventType: ev.EventType,
				Message:   fmt.Sprintf("handler panicked: %v", r),
			}
		}
	}()

	result, err = h.Execute(ctx, entity, ev, evctx)
	if err != nil {
		return nil, &ExecutionError{
			Code:      ErrCodeHandlerFailed,
			EventID:   ev.ID,
			Product:   ev.Product,
			EventType: ev.EventType,
			Message:   "handler returned error",
			Err:       err,
		}
	}
	return result, nil
}
