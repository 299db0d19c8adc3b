package harness

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/journeysim/internal/engine"
	"github.com/roach88/journeysim/internal/ir"
)

func scenarioPath(name string) string {
	return filepath.Join("testdata", "scenarios", name+".yaml")
}

func TestRun_DiabetesCascade(t *testing.T) {
	sc, result, err := RunFile(context.Background(), scenarioPath("diabetes_cascade"))
	require.NoError(t, err)
	require.NotNil(t, sc)

	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Empty(t, result.Errors)
	require.Len(t, result.Trace, 10)

	first := result.Trace[0]
	assert.Equal(t, 1, first.Seq)
	assert.Equal(t, "patient-001", first.Entity)
	assert.Equal(t, "2025-01-01", first.Date)
	assert.Equal(t, "diagnosis", first.EventType)
	assert.Equal(t, "diabetes-onset", first.Journey)
	assert.Equal(t, "dx", first.Event)

	claim := result.Trace[1]
	assert.Equal(t, "membersim", claim.Product)
	assert.Equal(t, "patientsim.diagnosis->membersim.claim_professional", claim.Trigger)
	assert.Equal(t, ir.IRString("membersim:patient-001"), claim.Parameters["product_entity_id"])
	assert.Equal(t, ir.IRString("E11.9"), claim.Parameters["diagnosis_code"])

	assert.Len(t, result.Instructions["patient-001"], 3)
	assert.Len(t, result.Instructions["patient-002"], 2)
	assert.Equal(t, map[string]string{
		"patientsim": "patientsim:patient-002",
		"membersim":  "membersim:patient-002",
	}, result.Links["patient-002"])
	assert.Zero(t, result.CyclesBlocked)
	assert.Empty(t, result.QuotaExceeded)
}

func TestRun_PharmacyOutage(t *testing.T) {
	_, result, err := RunFile(context.Background(), scenarioPath("pharmacy_outage"))
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)

	var fill, claim *TraceEvent
	for i := range result.Trace {
		switch result.Trace[i].EventType {
		case "fill":
			fill = &result.Trace[i]
		case "claim_professional":
			claim = &result.Trace[i]
		}
	}
	require.NotNil(t, fill)
	require.NotNil(t, claim)

	assert.Equal(t, "failed", fill.Status)
	assert.Contains(t, fill.Error, "pharmacy offline")
	assert.Contains(t, fill.Error, string(engine.ErrCodeHandlerFailed))
	assert.Nil(t, fill.Result)

	assert.Equal(t, ir.IRString("C-1001"), claim.Result["claim_id"])
}

func TestRun_CUETriggers(t *testing.T) {
	_, result, err := RunFile(context.Background(), scenarioPath("lab_results_cue"))
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)

	var skipped []TraceEvent
	for _, ev := range result.Trace {
		if ev.Status == "skipped" {
			skipped = append(skipped, ev)
		}
	}
	require.Len(t, skipped, 1)
	assert.Equal(t, "rx", skipped[0].Event)
	assert.Equal(t, engine.SkipReasonCondition, skipped[0].SkipReason)
}

func TestRun_FailingAssertionsReported(t *testing.T) {
	sc, err := LoadScenario(scenarioPath("diabetes_cascade"))
	require.NoError(t, err)
	sc.Assertions = []Assertion{
		{Type: AssertEventScheduled, Entity: "patient-002", EventType: "medication_order"},
		{Type: AssertEventCount, EventType: "diagnosis", Count: intPtr(2)},
	}

	result, err := Run(context.Background(), sc)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "assertions[0]")
}

func TestRun_DefaultTriggersDisabled(t *testing.T) {
	sc, err := LoadScenario(scenarioPath("diabetes_cascade"))
	require.NoError(t, err)
	off := false
	sc.DefaultTriggers = &off
	sc.Assertions = []Assertion{
		{Type: AssertInstructionCount, Count: intPtr(0)},
		{Type: AssertEventAbsent, Product: "membersim"},
	}

	result, err := Run(context.Background(), sc)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Len(t, result.Trace, 5)
}

func TestRun_QuotaExceeded(t *testing.T) {
	sc, err := LoadScenario(scenarioPath("diabetes_cascade"))
	require.NoError(t, err)
	sc.MaxSteps = 1
	sc.Entities = sc.Entities[:1]
	sc.Assertions = []Assertion{{Type: AssertInstructionCount, Count: intPtr(1)}}

	result, err := Run(context.Background(), sc)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, []string{"patient-001"}, result.QuotaExceeded)
}

func TestRun_UnknownJourney(t *testing.T) {
	sc, err := LoadScenario(scenarioPath("diabetes_cascade"))
	require.NoError(t, err)
	sc.Entities[0].Journeys = []string{"asthma"}

	_, err = Run(context.Background(), sc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown journey "asthma"`)
}

func TestRun_InvalidSpecs(t *testing.T) {
	dir := t.TempDir()
	bad := `
trigger: "bad": {
	source_product:    "PatientSim"
	source_event_type: "diagnosis"
	target_product:    "membersim"
	target_event_type: "claim_professional"
}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.cue"), []byte(bad), 0o644))
	writeSpec(t, dir)

	sc := &Scenario{
		Name:        "invalid",
		Description: "invalid trigger identifiers",
		Specs:       []string{filepath.Join(dir, "diabetes.yaml"), filepath.Join(dir, "bad.cue")},
		Entities:    []EntityFixture{{ID: "p1"}},
		Assertions:  []Assertion{{Type: AssertEventAbsent}},
	}

	_, err := Run(context.Background(), sc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid specs")
	assert.Contains(t, err.Error(), "E113")
}

func TestRun_Deterministic(t *testing.T) {
	sc, err := LoadScenario(scenarioPath("diabetes_cascade"))
	require.NoError(t, err)

	a, err := Run(context.Background(), sc)
	require.NoError(t, err)
	b, err := Run(context.Background(), sc)
	require.NoError(t, err)

	snapA, err := Snapshot(sc, a)
	require.NoError(t, err)
	snapB, err := Snapshot(sc, b)
	require.NoError(t, err)
	assert.Equal(t, string(snapA), string(snapB))
}

func TestHandlerPairs_SortedAndUnique(t *testing.T) {
	stubs := []HandlerStub{{Product: "zeta", EventType: "ping"}, {Product: "membersim", EventType: "claim_lab"}}
	journeys, _, err := loadSpecs([]string{filepath.Join("testdata", "specs", "diabetes.yaml")})
	require.NoError(t, err)

	pairs := handlerPairs(journeys, nil, stubs)
	assert.Equal(t, [][2]string{
		{"membersim", "claim_lab"},
		{"patientsim", "diagnosis"},
		{"patientsim", "lab_order"},
		{"patientsim", "medication_order"},
		{"zeta", "ping"},
	}, pairs)
}
