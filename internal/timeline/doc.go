// Package timeline holds the per-entity, date-ordered list of scheduled
// events and the event status state machine.
//
// A Timeline is owned by the caller that created it. It is mutated only by
// AddEvent (scheduling) and by the Mark* transitions (execution); every
// query is a pure read. Timelines are not safe for concurrent mutation:
// cohort runs give each worker its own timeline.
//
// Status transitions:
//
//	pending -> executed
//	pending -> failed
//	pending -> skipped
//
// All three targets are terminal.
package timeline
