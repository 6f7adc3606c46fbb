package cli

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sketchsync/internal/store"
)

func TestTraceNonExistentDatabase(t *testing.T) {
	_, err := execute(t, &RootOptions{Format: "text"}, NewTraceCommand, "--db", "/nonexistent/path/test.db")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTraceEmptyJournal(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := store.Open(dbPath)
	require.NoError(t, err)
	st.Close()

	out, err := execute(t, &RootOptions{Format: "text"}, NewTraceCommand, "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Journal is empty.")
}

func TestTraceText(t *testing.T) {
	db := writeJournal(t, consistentEvents()...)

	out, err := execute(t, &RootOptions{Format: "text"}, NewTraceCommand, "--db", db)
	require.NoError(t, err)

	assert.Contains(t, out, "Commands (2):")
	assert.Contains(t, out, "[1] refreshSketch cmd-1")
	assert.Contains(t, out, "[2] addVariable cmd-2")
	assert.Contains(t, out, "Events (5):")
	assert.Contains(t, out, "[1] sketchRefreshed (snapshot)")
	assert.Contains(t, out, "[2] variableCreated\n")
	assert.Contains(t, out, "[5] sketchRefreshed (snapshot)")
	assert.NotContains(t, out, `"position"`, "payloads only in verbose mode")
}

func TestTraceVerboseIncludesPayloads(t *testing.T) {
	db := writeJournal(t, consistentEvents()...)

	out, err := execute(t, &RootOptions{Format: "text", Verbose: true}, NewTraceCommand, "--db", db)
	require.NoError(t, err)

	assert.Contains(t, out, `"position"`)
	assert.Contains(t, out, "Event counts:")
	assert.Contains(t, out, "sketchRefreshed: 2")
}

func TestTraceFilters(t *testing.T) {
	db := writeJournal(t, consistentEvents()...)

	out, err := execute(t, &RootOptions{Format: "json"}, NewTraceCommand, "--db", db, "--event", "sketchRefreshed", "--after", "1")
	require.NoError(t, err)

	var result TraceResult
	resp := decode(t, out, &result)
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, result.Events, 1)
	assert.Equal(t, int64(5), result.Events[0].Seq)
	assert.NotEmpty(t, result.Events[0].Payload)
	assert.Equal(t, 2, result.Stats.Commands)
	assert.Equal(t, 1, result.Stats.Events)
	assert.Equal(t, map[string]int{"sketchRefreshed": 1}, result.Stats.ByEvent)
	assert.Equal(t, int64(5), result.Stats.SnapshotSeq)
}

func TestTraceUnknownEvent(t *testing.T) {
	db := writeJournal(t, consistentEvents()...)

	_, err := execute(t, &RootOptions{Format: "text"}, NewTraceCommand, "--db", db, "--event", "geneCreated")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), `unknown event "geneCreated"`)
}
