// Package trigger couples a completed event in one product's timeline to
// new events in other products.
//
// A Registry holds triggers keyed by (source product, source event type).
// FireTriggers evaluates every trigger on the key, in registration order,
// and returns pure-data Instructions; it never touches a timeline. The
// caller decides whether and where to apply them, typically through
// Coordinator.ApplyInstruction.
//
// Registries are populated at startup and read-only afterwards. The
// Coordinator's linked-entity map is the only shared mutable state and is
// guarded by a mutex.
package trigger
