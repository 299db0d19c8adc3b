package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTestCommandMissingArgs(t *testing.T) {
	_, err := execute(t, NewTestCommand(testOptions(t, "text")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

func TestTestCommandNonExistentScenariosDir(t *testing.T) {
	_, err := execute(t, NewTestCommand(testOptions(t, "text")), "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "scenarios directory not found")
}

func TestTestCommandEmptyScenariosDir(t *testing.T) {
	out, err := execute(t, NewTestCommand(testOptions(t, "text")), t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found")
}

func TestTestCommandEmptyScenariosDirJSON(t *testing.T) {
	out, err := execute(t, NewTestCommand(testOptions(t, "json")), t.TempDir())
	require.NoError(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 0, resp.Data.Total)
	assert.Empty(t, resp.Data.Scenarios)
}

func TestTestCommandHarnessScenarios(t *testing.T) {
	out, err := execute(t, NewTestCommand(testOptions(t, "json")), harnessScenarios)
	require.NoError(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 3, resp.Data.Total)
	assert.Equal(t, 3, resp.Data.Passed)

	golden := make(map[string]string)
	for _, sr := range resp.Data.Scenarios {
		assert.True(t, sr.Pass, "%s: %v", sr.Name, sr.Errors)
		golden[sr.Name] = sr.Golden
	}
	assert.Equal(t, map[string]string{
		"diabetes_cascade": "match",
		"lab_results_cue":  "none",
		"pharmacy_outage":  "none",
	}, golden)
}

func TestTestCommandFilter(t *testing.T) {
	out, err := execute(t, NewTestCommand(testOptions(t, "text")), harnessScenarios, "--filter", "diabetes*")
	require.NoError(t, err)
	assert.Contains(t, out, "\u2713 diabetes_cascade")
	assert.NotContains(t, out, "pharmacy_outage")
	assert.Contains(t, out, "1 passed, 0 failed, 1 total")
}

func TestTestCommandUpdateThenCompare(t *testing.T) {
	goldenDir := filepath.Join(t.TempDir(), "golden")

	out, err := execute(t, NewTestCommand(testOptions(t, "text")), harnessScenarios, "--golden-dir", goldenDir, "--update")
	require.NoError(t, err)
	assert.Contains(t, out, "\u2713 pharmacy_outage (golden updated)")

	for _, name := range []string{"diabetes_cascade", "lab_results_cue", "pharmacy_outage"} {
		assert.FileExists(t, filepath.Join(goldenDir, name+".golden"))
	}
	committed, err := os.ReadFile(filepath.Join(harnessScenarios, "..", "golden", "diabetes_cascade.golden"))
	require.NoError(t, err)
	written, err := os.ReadFile(filepath.Join(goldenDir, "diabetes_cascade.golden"))
	require.NoError(t, err)
	assert.Equal(t, string(committed), string(written))

	// A tampered golden file fails the scenario.
	require.NoError(t, os.WriteFile(filepath.Join(goldenDir, "pharmacy_outage.golden"), []byte(`{}`), 0o644))
	out, err = execute(t, NewTestCommand(testOptions(t, "text")), harnessScenarios, "--golden-dir", goldenDir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "\u2717 pharmacy_outage")
	assert.Contains(t, out, "trace does not match golden file")
	assert.Contains(t, out, "2 passed, 1 failed, 3 total")
}

func TestTestCommandFailingScenario(t *testing.T) {
	dir := t.TempDir()
	copySpec(t, dir, "diabetes.yaml", "diabetes.yaml")
	writeFile(t, filepath.Join(dir, "scenarios", "minor.yaml"), `
name: minor_gets_metformin
description: Expects a prescription the age condition rules out
specs: [../diabetes.yaml]
entities:
  - id: p1
    attributes: {age: 12}
assertions:
  - type: event_scheduled
    entity: p1
    event_type: medication_order
`)

	out, err := execute(t, NewTestCommand(testOptions(t, "json")), filepath.Join(dir, "scenarios"))
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, 1, resp.Data.Failed)
	require.Len(t, resp.Data.Scenarios, 1)
	assert.Equal(t, "minor_gets_metformin", resp.Data.Scenarios[0].Name)
	assert.NotEmpty(t, resp.Data.Scenarios[0].Errors)
}

func TestTestCommandBadScenarioFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "broken.yaml"), "name: [\n")

	out, err := execute(t, NewTestCommand(testOptions(t, "text")), dir)
	require.Error(t, err)
	assert.Contains(t, out, "\u2717 broken.yaml")
	assert.Contains(t, out, "failed to load scenario")
}
