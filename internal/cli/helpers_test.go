package cli

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/roach88/journeysim/internal/config"
)

var (
	harnessSpecs     = filepath.Join("..", "harness", "testdata", "specs")
	harnessScenarios = filepath.Join("..", "harness", "testdata", "scenarios")
)

// testOptions returns root options with default configuration and a
// silent logger, so commands skip config loading.
func testOptions(t *testing.T, format string) *RootOptions {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Seed = 42
	cfg.StartDate = "2025-01-01"
	cfg.Database.Path = ""
	return &RootOptions{
		Format: format,
		Config: cfg,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// execute runs cmd with args and returns stdout.
func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// copySpec copies a harness spec into dir under name.
func copySpec(t *testing.T, dir, src, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(harnessSpecs, src))
	require.NoError(t, err)
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}
