// Package store provides SQLite-backed persistence for simulation runs.
//
// Tables:
//   - runs: one row per simulate invocation (seed, horizon, journeys)
//   - timelines: one row per entity in a run
//   - timeline_events: every scheduled event with its status and result
//   - trigger_firings: applied trigger instructions (idempotent)
//   - linked_entities: per-product ids of each core entity
//
// # Determinism
//
// JSON columns are written with ir.MarshalCanonical. Every read orders by
// an explicit key (seq, then id COLLATE BINARY), so reading a run back
// yields the same bytes as the run that wrote it.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
