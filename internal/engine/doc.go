// Package engine schedules journey timelines and executes their events.
//
// Scheduling:
// CreateTimeline walks a journey's events once, in declaration order.
// Each event is filtered by its conditions and a seeded probability roll,
// anchored to its depends_on event (or the start date when that event
// was excluded) and dated by sampling its delay. There is no topological sort: a dependency must be
// declared before its dependent. Excluded events are omitted, or recorded
// as skipped placeholders when the engine is built with
// WithSkippedPlaceholders.
//
// Determinism:
// Every random draw uses a seed derived from (master seed, entity,
// journey, event) by the seed package. Two engines with the same master
// seed produce the same timeline for the same inputs, independent of the
// order in which entities are processed.
//
// Execution:
// ExecuteEvent resolves final parameters, looks up the handler registered
// for (product, event_type) and records the outcome on the event. A
// missing handler yields an "unknown_event" result; a handler error or
// panic marks the event failed. Neither is returned to the caller, so one
// bad event never stops the rest of a timeline.
//
// Handlers and the skill resolver are registered at startup and treated
// as read-only afterwards. The engine itself does no I/O.
package engine
