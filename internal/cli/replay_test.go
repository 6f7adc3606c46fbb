package cli

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sketchsync/internal/ir"
	"github.com/roach88/sketchsync/internal/store"
	"github.com/roach88/sketchsync/internal/testutil"
)

func TestReplayNoJournal(t *testing.T) {
	_, err := execute(t, &RootOptions{Format: "text"}, NewReplayCommand)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "pass --db or set journal.path")
}

func TestReplayJournalFromConfig(t *testing.T) {
	db := writeJournal(t, consistentEvents()...)
	cfg := writeFile(t, "sketchsync.toml", "[journal]\npath = '"+db+"'\n")

	out, err := execute(t, &RootOptions{Format: "text", ConfigPath: cfg}, NewReplayCommand)
	require.NoError(t, err)
	assert.Contains(t, out, "Replay Summary: 5 event(s)")
}

func TestReplayEmptyDatabase(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := store.Open(dbPath)
	require.NoError(t, err)
	st.Close()

	out, err := execute(t, &RootOptions{Format: "text"}, NewReplayCommand, "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "No events found")
}

func TestReplayConsistentJournal(t *testing.T) {
	db := writeJournal(t, consistentEvents()...)

	out, err := execute(t, &RootOptions{Format: "text", Verbose: true}, NewReplayCommand, "--db", db)
	require.NoError(t, err)

	assert.Contains(t, out, "Replay Summary: 5 event(s)")
	assert.Contains(t, out, "Applied: 4, skipped: 1, stale: 0, rejected: 0")
	assert.Contains(t, out, "Version: 4")
	assert.Contains(t, out, "Checkpoints: 1")
	assert.Contains(t, out, "✓ Snapshot 2")
	assert.Contains(t, out, "✓ Replay verified deterministic")
}

func TestReplayConsistentJournalJSON(t *testing.T) {
	db := writeJournal(t, consistentEvents()...)

	out, err := execute(t, &RootOptions{Format: "json"}, NewReplayCommand, "--db", db)
	require.NoError(t, err)

	var result ReplayResult
	resp := decode(t, out, &result)
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, result.Deterministic)
	assert.Equal(t, 5, result.Events)
	assert.Equal(t, int64(4), result.Version)
	assert.Equal(t, 1, result.Checkpoints)
	assert.Empty(t, result.Divergences)
	require.NotNil(t, result.SnapshotMatch)
	assert.True(t, *result.SnapshotMatch)

	want, err := ir.Fingerprint(testutil.Sketch([]string{"A", "B"}, testutil.Reg("A", "B")))
	require.NoError(t, err)
	assert.Equal(t, want, result.Fingerprint)
}

func TestReplayDivergedCheckpoint(t *testing.T) {
	events := consistentEvents()
	// The refresh disagrees with the regulation the patches created
	events[len(events)-1] = ir.SketchRefreshed{Sketch: testutil.Sketch([]string{"A", "B"})}
	db := writeJournal(t, events...)

	out, err := execute(t, &RootOptions{Format: "text"}, NewReplayCommand, "--db", db)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ sketchRefreshed at seq 5")
	assert.Contains(t, out, "1 checkpoint(s) diverged")
}

func TestReplayDivergedCheckpointJSON(t *testing.T) {
	events := consistentEvents()
	events[len(events)-1] = ir.SketchRefreshed{Sketch: testutil.Sketch([]string{"A", "B"})}
	db := writeJournal(t, events...)

	out, err := execute(t, &RootOptions{Format: "json"}, NewReplayCommand, "--db", db)
	require.Error(t, err)

	var result ReplayResult
	resp := decode(t, out, &result)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeDiverged, resp.Error.Code)
	assert.True(t, result.Deterministic)
	require.Len(t, result.Divergences, 1)
	assert.Equal(t, int64(5), result.Divergences[0].EventSeq)
}

func TestReplayCountsStaleEvents(t *testing.T) {
	db := writeJournal(t,
		ir.SketchRefreshed{Sketch: testutil.Sketch([]string{"A"})},
		ir.VariableRemoved{ID: "Ghost"},
		ir.RegulationRemoved{Source: "A", Target: "Ghost"},
	)

	out, err := execute(t, &RootOptions{Format: "json"}, NewReplayCommand, "--db", db)
	require.NoError(t, err)

	var result ReplayResult
	decode(t, out, &result)
	assert.Equal(t, 2, result.Stale)
	assert.Equal(t, 1, result.Applied)
	assert.Equal(t, int64(1), result.Version)
}

func TestReplayNonExistentDatabase(t *testing.T) {
	_, err := execute(t, &RootOptions{Format: "text"}, NewReplayCommand, "--db", "/nonexistent/path/test.db")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to open database")
}

func TestRebuild_Deterministic(t *testing.T) {
	ctx := context.Background()
	db := writeJournal(t, consistentEvents()...)
	st, err := store.Open(db)
	require.NoError(t, err)
	defer st.Close()

	first, err := rebuild(ctx, st)
	require.NoError(t, err)
	second, err := rebuild(ctx, st)
	require.NoError(t, err)

	assert.Equal(t, first.result, second.result)
	assert.Equal(t, first.fingerprints, second.fingerprints)
	assert.Len(t, first.fingerprints, 2)
}
