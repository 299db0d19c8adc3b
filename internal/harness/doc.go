// Package harness runs journey scenarios as executable contract tests.
//
// A scenario names journey and trigger specs, a set of entities and the
// assertions their simulated timelines must satisfy. Each scenario runs
// against the real scheduler, trigger coordinator and runner with a
// recording handler, in a fresh in-memory store. The trace is read back
// from the store, so every run also exercises persistence.
//
// # Scenario Format
//
//	name: diabetes_cascade
//	description: "Diagnosis fans out into claims"
//	specs:
//	  - ../specs/diabetes.yaml
//	  - ../specs/lab_results.cue
//	seed: 42
//	start_date: "2025-01-01"
//	horizon_days: 120
//	entities:
//	  - id: patient-001
//	    attributes: {age: 54}
//	handlers:
//	  - product: rxmembersim
//	    event_type: fill
//	    fail: "pharmacy offline"
//	assertions:
//	  - type: event_status
//	    entity: patient-001
//	    event_type: fill
//	    status: failed
//
// Spec paths are relative to the scenario file. YAML and JSON specs hold
// one journey each; CUE specs may hold journeys and triggers.
//
// # Assertion Types
//
//   - event_scheduled: a matching event exists on the timeline
//   - event_status: a matching event exists and has the given status
//   - event_absent: no matching event exists
//   - event_count: exactly count matching events exist
//   - event_order: event types first occur in the given order
//   - instruction_count: exactly count trigger instructions were applied
//   - entity_linked: the entity has an id in the given product
//
// # Deterministic Testing
//
// Linked product ids come from testutil.NamedIDs ("membersim:patient-001")
// and every random draw is derived from the scenario seed, so traces are
// stable and suitable for golden comparison. Content-addressed event and
// instruction ids are left out of the trace to keep golden files readable.
package harness
