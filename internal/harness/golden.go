package harness

import (
	"context"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/journeysim/internal/ir"
)

// TraceSnapshot captures the trace of a scenario execution.
type TraceSnapshot struct {
	ScenarioName string       `json:"scenario_name"`
	Seed         int64        `json:"seed"`
	Trace        []TraceEvent `json:"trace"`
}

// toCanonical converts the snapshot to an IR object for canonical JSON.
// Empty optional fields are omitted.
func (s *TraceSnapshot) toCanonical() ir.IRObject {
	trace := make(ir.IRArray, len(s.Trace))
	for i, ev := range s.Trace {
		obj := ir.IRObject{
			"seq":        ir.IRInt(ev.Seq),
			"entity":     ir.IRString(ev.Entity),
			"date":       ir.IRString(ev.Date),
			"product":    ir.IRString(ev.Product),
			"event_type": ir.IRString(ev.EventType),
			"status":     ir.IRString(ev.Status),
		}
		optional := map[string]string{
			"journey":     ev.Journey,
			"event":       ev.Event,
			"trigger":     ev.Trigger,
			"error":       ev.Error,
			"skip_reason": ev.SkipReason,
		}
		for k, v := range optional {
			if v != "" {
				obj[k] = ir.IRString(v)
			}
		}
		if len(ev.Parameters) > 0 {
			obj["parameters"] = ev.Parameters
		}
		if ev.Result != nil {
			obj["result"] = ev.Result
		}
		trace[i] = obj
	}

	return ir.IRObject{
		"scenario_name": ir.IRString(s.ScenarioName),
		"seed":          ir.IRInt(s.Seed),
		"trace":         trace,
	}
}

// Snapshot renders a result's trace as canonical JSON.
func Snapshot(scenario *Scenario, result *Result) ([]byte, error) {
	snapshot := TraceSnapshot{
		ScenarioName: scenario.Name,
		Seed:         scenario.Seed,
		Trace:        result.Trace,
	}
	return ir.MarshalCanonical(snapshot.toCanonical())
}

// RunWithGolden executes a scenario and compares its trace against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Extra options are applied after the defaults, so tests may redirect
// the fixture directory.
func RunWithGolden(t *testing.T, scenario *Scenario, opts ...goldie.Option) (*Result, error) {
	t.Helper()

	result, err := Run(context.Background(), scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario, result, opts...); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result's trace against its golden
// file without re-running the scenario.
func AssertGolden(t *testing.T, scenario *Scenario, result *Result, opts ...goldie.Option) error {
	t.Helper()

	traceJSON, err := Snapshot(scenario, result)
	if err != nil {
		return err
	}

	g := goldie.New(t, append([]goldie.Option{
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	}, opts...)...)
	g.Assert(t, scenario.Name, traceJSON)
	return nil
}
