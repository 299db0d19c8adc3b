package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func simulateJSON(t *testing.T, opts *RootOptions, args ...string) SimulationSummary {
	t.Helper()
	out, err := execute(t, NewSimulateCommand(opts), args...)
	require.NoError(t, err)

	var resp struct {
		Status string            `json:"status"`
		Data   SimulationSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Equal(t, "ok", resp.Status)
	return resp.Data
}

func TestSimulateCohort(t *testing.T) {
	s := simulateJSON(t, testOptions(t, "json"), harnessSpecs, "--count", "3", "--days", "120", "--run-id", "run-1")

	assert.Equal(t, "run-1", s.RunID)
	assert.Equal(t, int64(42), s.Seed)
	assert.Equal(t, "2025-01-01", s.StartDate)
	assert.Equal(t, "2025-05-01", s.UpTo)
	assert.Equal(t, 3, s.Entities)
	assert.Equal(t, []string{"diabetes-onset"}, s.Journeys)
	assert.Zero(t, s.Summary.Failed)
	assert.Positive(t, s.Summary.Executed)
	assert.LessOrEqual(t, s.Summary.Executed, s.Events)
	assert.Positive(t, s.Instructions)
	assert.Empty(t, s.QuotaExceeded)
	assert.Empty(t, s.Database)
}

func TestSimulateDeterministic(t *testing.T) {
	args := []string{harnessSpecs, "--count", "5", "--days", "200", "--run-id", "r", "--workers", "3"}
	first := simulateJSON(t, testOptions(t, "json"), args...)
	second := simulateJSON(t, testOptions(t, "json"), args...)
	assert.Equal(t, first, second)

	opts := testOptions(t, "json")
	opts.Config.Seed = 43
	other := simulateJSON(t, opts, args...)
	assert.Equal(t, int64(43), other.Seed)
}

func TestSimulateQuota(t *testing.T) {
	opts := testOptions(t, "json")
	opts.Config.Sim.MaxSteps = 1
	s := simulateJSON(t, opts, harnessSpecs, "--count", "2", "--days", "120", "--run-id", "q")

	assert.Len(t, s.QuotaExceeded, 2)
	assert.Equal(t, 2, s.Instructions)
}

func TestSimulateText(t *testing.T) {
	out, err := execute(t, NewSimulateCommand(testOptions(t, "text")), harnessSpecs, "-n", "2", "--run-id", "txt")
	require.NoError(t, err)
	assert.Contains(t, out, "Run txt (seed 42)")
	assert.Contains(t, out, "entities:      2")
}

func TestSimulateErrors(t *testing.T) {
	dup := t.TempDir()
	copySpec(t, dup, "diabetes.yaml", "a.yaml")
	copySpec(t, dup, "diabetes.yaml", "b.yaml")

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"bad count", []string{harnessSpecs, "--count", "0"}, "--count must be at least 1"},
		{"missing specs", []string{"/nonexistent/specs"}, "not found"},
		{"invalid specs", []string{dup}, "E102"},
		{"unknown journey", []string{harnessSpecs, "--journey", "asthma"}, `unknown journey "asthma"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, NewSimulateCommand(testOptions(t, "text")), tt.args...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestSimulatePersistsAndShows(t *testing.T) {
	db := filepath.Join(t.TempDir(), "sim.db")
	s := simulateJSON(t, testOptions(t, "json"), harnessSpecs, "--count", "3", "--days", "120", "--run-id", "run-1", "--db", db)
	assert.Equal(t, db, s.Database)

	out, err := execute(t, NewShowCommand(testOptions(t, "text")), "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "run-1")
	assert.Contains(t, out, "diabetes-onset")

	out, err = execute(t, NewShowCommand(testOptions(t, "json")), "--db", db, "run-1")
	require.NoError(t, err)
	var runResp struct {
		Data RunDetail `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &runResp))
	assert.Equal(t, "run-1", runResp.Data.Run.ID)
	assert.Equal(t, int64(42), runResp.Data.Run.MasterSeed)
	require.Len(t, runResp.Data.Entities, 3)

	entityID := runResp.Data.Entities[0]
	out, err = execute(t, NewShowCommand(testOptions(t, "json")), "--db", db, "run-1", entityID)
	require.NoError(t, err)
	var entResp struct {
		Data EntityDetail `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &entResp))
	require.NotNil(t, entResp.Data.Timeline)
	assert.Equal(t, entityID, entResp.Data.Timeline.EntityID)
	assert.NotEmpty(t, entResp.Data.Timeline.Events)
	assert.NotEmpty(t, entResp.Data.Firings)
	assert.Contains(t, entResp.Data.ProductIDs, "membersim")
	assert.Contains(t, entResp.Data.Attributes, "age")

	out, err = execute(t, NewShowCommand(testOptions(t, "text")), "--db", db, "run-1", entityID)
	require.NoError(t, err)
	assert.Contains(t, out, entityID)
	assert.Contains(t, out, "Trigger firings:")
	assert.Contains(t, out, "Linked ids:")
}

func TestShowErrors(t *testing.T) {
	t.Run("no database configured", func(t *testing.T) {
		_, err := execute(t, NewShowCommand(testOptions(t, "text")))
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
		assert.Contains(t, err.Error(), "no database")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := execute(t, NewShowCommand(testOptions(t, "text")), "--db", filepath.Join(t.TempDir(), "missing.db"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database not found")
	})

	db := filepath.Join(t.TempDir(), "sim.db")
	simulateJSON(t, testOptions(t, "json"), harnessSpecs, "--count", "1", "--run-id", "only", "--db", db)

	t.Run("unknown run", func(t *testing.T) {
		_, err := execute(t, NewShowCommand(testOptions(t, "text")), "--db", db, "nope")
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
		assert.Contains(t, err.Error(), "run not found: nope")
	})

	t.Run("unknown entity", func(t *testing.T) {
		_, err := execute(t, NewShowCommand(testOptions(t, "text")), "--db", db, "only", "patient-x")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "entity patient-x not found in run only")
	})

	t.Run("database from config", func(t *testing.T) {
		opts := testOptions(t, "text")
		opts.Config.Database.Path = db
		out, err := execute(t, NewShowCommand(opts))
		require.NoError(t, err)
		assert.Contains(t, out, "only")
	})
}
