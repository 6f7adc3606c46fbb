package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sketchsync/internal/ir"
	"github.com/roach88/sketchsync/internal/store"
	"github.com/roach88/sketchsync/internal/testutil"
)

const scenarioDir = "../../testdata/scenarios"

func TestMain(m *testing.M) {
	slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
	os.Exit(m.Run())
}

// execute runs a subcommand built by newCmd and returns its stdout.
func execute(t *testing.T, opts *RootOptions, newCmd func(*RootOptions) *cobra.Command, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := newCmd(opts)
	cmd.SetOut(buf)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

// decode parses a JSON response and its data into data.
func decode(t *testing.T, out string, data any) CLIResponse {
	t.Helper()
	var raw struct {
		CLIResponse
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &raw))
	if data != nil {
		require.NoError(t, json.Unmarshal(raw.Data, data))
	}
	return raw.CLIResponse
}

// consistentEvents builds A, then adds B and A -> B as granular events and
// confirms the result with a full refresh.
func consistentEvents() []ir.Event {
	return []ir.Event{
		ir.SketchRefreshed{Sketch: testutil.Sketch([]string{"A"})},
		ir.VariableCreated{Variable: testutil.Var("B"), Position: ir.Position{X: 100, Y: 100}},
		ir.CanUndoChanged{Value: true},
		ir.RegulationCreated{Regulation: testutil.Reg("A", "B")},
		ir.SketchRefreshed{Sketch: testutil.Sketch([]string{"A", "B"}, testutil.Reg("A", "B"))},
	}
}

// writeJournal records one refresh command and events to a new journal.
func writeJournal(t *testing.T, events ...ir.Event) string {
	t.Helper()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "journal.db")

	st, err := store.Open(path)
	require.NoError(t, err)
	defer st.Close()

	require.NoError(t, st.RecordCommand(ctx, "cmd-1", ir.RefreshSketch{}))
	require.NoError(t, st.RecordCommand(ctx, "cmd-2", ir.AddVariable{Variable: testutil.Var("B"), Position: ir.Position{X: 100, Y: 100}}))
	rec := store.NewRecorder(st)
	for _, ev := range events {
		require.NoError(t, rec.Record(ctx, ev))
	}
	return path
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}
