package harness

import (
	"context"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The committed golden file pins the full cascade trace. Regenerate with:
//
//	go test ./internal/harness -run TestRunWithGolden_DiabetesCascade -update
func TestRunWithGolden_DiabetesCascade(t *testing.T) {
	sc, err := LoadScenario(scenarioPath("diabetes_cascade"))
	require.NoError(t, err)

	result, err := RunWithGolden(t, sc)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRunWithGolden_RoundTripInTempDir(t *testing.T) {
	for _, name := range []string{"pharmacy_outage", "lab_results_cue"} {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			sc, err := LoadScenario(scenarioPath(name))
			require.NoError(t, err)

			first, err := Run(context.Background(), sc)
			require.NoError(t, err)
			data, err := Snapshot(sc, first)
			require.NoError(t, err)

			g := goldie.New(t, goldie.WithFixtureDir(dir), goldie.WithNameSuffix(".golden"))
			require.NoError(t, g.Update(t, sc.Name, data))

			_, err = RunWithGolden(t, sc, goldie.WithFixtureDir(dir))
			require.NoError(t, err)
		})
	}
}

func TestSnapshot_OmitsEmptyFields(t *testing.T) {
	sc := &Scenario{Name: "tiny", Seed: 3}
	result := NewResult()
	result.Trace = []TraceEvent{{
		Seq:        1,
		Entity:     "p1",
		Date:       "2025-01-01",
		Product:    "patientsim",
		EventType:  "diagnosis",
		Status:     "skipped",
		Journey:    "j",
		Event:      "dx",
		SkipReason: "probability",
	}}

	data, err := Snapshot(sc, result)
	require.NoError(t, err)
	assert.Equal(t,
		`{"scenario_name":"tiny","seed":3,"trace":[{"date":"2025-01-01","entity":"p1","event":"dx","event_type":"diagnosis","journey":"j","product":"patientsim","seq":1,"skip_reason":"probability","status":"skipped"}]}`,
		string(data))
}
