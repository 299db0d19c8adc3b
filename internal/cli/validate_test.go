package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateValidSpecs(t *testing.T) {
	cmd := NewValidateCommand(testOptions(t, "text"))
	out, err := execute(t, cmd, harnessSpecs)
	require.NoError(t, err)
	assert.Contains(t, out, "\u2713 All specs valid (1 journeys, 1 triggers)")
}

func TestValidateValidSpecsJSON(t *testing.T) {
	cmd := NewValidateCommand(testOptions(t, "json"))
	out, err := execute(t, cmd, harnessSpecs)
	require.NoError(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Valid)
	assert.Equal(t, 1, resp.Data.Journeys)
	assert.Equal(t, 1, resp.Data.Triggers)
	assert.Empty(t, resp.Data.Errors)
}

func TestValidateDuplicateJourney(t *testing.T) {
	dir := t.TempDir()
	copySpec(t, dir, "diabetes.yaml", "a.yaml")
	copySpec(t, dir, "diabetes.yaml", "b.yaml")

	cmd := NewValidateCommand(testOptions(t, "text"))
	out, err := execute(t, cmd, dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "\u2717 Validation failed")
	assert.Contains(t, out, "E102")
}

func TestValidateCollectsLoadErrors(t *testing.T) {
	dir := t.TempDir()
	copySpec(t, dir, "diabetes.yaml", "a.yaml")
	writeFile(t, filepath.Join(dir, "broken.yaml"), "journey_id: [\n")

	cmd := NewValidateCommand(testOptions(t, "json"))
	out, err := execute(t, cmd, dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
		Error  *CLIError        `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.False(t, resp.Data.Valid)
	require.Len(t, resp.Data.Errors, 1)
	assert.Equal(t, ErrCodeLoadFailed, resp.Data.Errors[0].Code)
	assert.Equal(t, filepath.Join(dir, "broken.yaml"), resp.Data.Errors[0].Field)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeLoadFailed, resp.Error.Code)
}

func TestValidateNonExistentPath(t *testing.T) {
	cmd := NewValidateCommand(testOptions(t, "text"))
	_, err := execute(t, cmd, "/nonexistent/specs")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), ErrCodeNotFound)
	assert.Contains(t, err.Error(), "not found")
}

func TestValidateEmptyDirectory(t *testing.T) {
	cmd := NewValidateCommand(testOptions(t, "text"))
	_, err := execute(t, cmd, t.TempDir())
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), ErrCodeNoSpecs)
}

func TestValidateReportsCycles(t *testing.T) {
	dir := t.TempDir()
	copySpec(t, dir, "diabetes.yaml", "diabetes.yaml")
	writeFile(t, filepath.Join(dir, "loop.cue"), `
trigger: "ping": {
	source_product:    "membersim"
	source_event_type: "ping"
	target_product:    "patientsim"
	target_event_type: "pong"
}
trigger: "pong": {
	source_product:    "patientsim"
	source_event_type: "pong"
	target_product:    "membersim"
	target_event_type: "ping"
}
`)

	opts := testOptions(t, "json")
	opts.Config.Triggers.Defaults = false
	out, err := execute(t, NewValidateCommand(opts), dir)
	require.NoError(t, err)

	var resp struct {
		Data ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.True(t, resp.Data.Valid)
	require.Len(t, resp.Data.Warnings, 1)
	assert.Equal(t, "warning", resp.Data.Warnings[0].Level)
	assert.ElementsMatch(t, []string{"ping", "pong"}, resp.Data.Warnings[0].Path[:2])
}
