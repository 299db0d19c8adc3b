// Package simulation drives timelines end to end: it executes events,
// fires cross-product triggers and applies the resulting instructions
// back onto the entity's timeline, then fans the work out over a cohort.
//
// A run over one timeline is sequential. Cohorts are embarrassingly
// parallel: every subject gets its own timeline and its own RNG derived
// from the entity seed, so results do not depend on worker count or
// scheduling order.
package simulation
