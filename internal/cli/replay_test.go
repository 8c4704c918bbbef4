package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomkit/loom/internal/journal"
)

func TestReplayMissingJournalFlag(t *testing.T) {
	buf := &bytes.Buffer{}
	errBuf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewReplayCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(errBuf)
	cmd.SetArgs([]string{})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
}

func TestReplayEmptyJournal(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "loom.db")
	j, err := journal.Open(dbPath)
	require.NoError(t, err)
	require.NoError(t, j.Close())

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewReplayCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--journal", dbPath})

	require.NoError(t, cmd.Execute())
	assert.Empty(t, buf.String())
}

// renderJournal runs the render command end to end with journaling on and
// returns the journal path.
func renderJournal(t *testing.T) string {
	t.Helper()
	path := writeSceneFile(t, listScene)
	dbPath := filepath.Join(t.TempDir(), "loom.db")

	rootOpts := &RootOptions{Format: "text"}
	cmd := NewRenderCommand(rootOpts)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{path, "--journal", dbPath})
	require.NoError(t, cmd.Execute())
	return dbPath
}

func TestReplayJournaledScene(t *testing.T) {
	dbPath := renderJournal(t)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewReplayCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--journal", dbPath})

	require.NoError(t, cmd.Execute())

	output := buf.String()
	assert.Contains(t, output, "== root 1 (3 passes, deterministic=true)")
	// The prune step removed li "alpha"; only "beta" survives.
	assert.Contains(t, output, `li#4 label="beta"`)
	assert.NotContains(t, output, "alpha")
}

func TestReplayJournaledSceneJSON(t *testing.T) {
	dbPath := renderJournal(t)

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "json"}
	cmd := NewReplayCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--journal", dbPath, "--root", "1"})

	require.NoError(t, cmd.Execute())

	var resp Response
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)

	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, data["all_deterministic"])

	roots, ok := data["roots"].([]any)
	require.True(t, ok)
	require.Len(t, roots, 1)
	root, ok := roots[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(1), root["root_id"])
	assert.Equal(t, float64(3), root["passes"])
}

func TestReplayUnknownJournal(t *testing.T) {
	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewReplayCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--journal", filepath.Join(t.TempDir(), "missing", "loom.db")})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
