package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sketchsync/internal/ir"
	"github.com/roach88/sketchsync/internal/undo"
)

// Golden files live in testdata/golden. To regenerate after an intended
// behavior change:
//
//	go test ./internal/harness -run Golden -update
func TestRunWithGolden_SharedScenarios(t *testing.T) {
	for _, name := range []string{
		"create_regulate_remove",
		"rename_and_stale_delivery",
		"undo_limits_and_toggles",
	} {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, RunWithGolden(t, loadShared(t, name)))
		})
	}
}

func TestAssertGolden_FromResult(t *testing.T) {
	scenario := loadShared(t, "create_regulate_remove")

	result, err := Run(scenario)
	require.NoError(t, err)
	require.True(t, result.Pass, "errors: %v", result.Errors)

	require.NoError(t, AssertGolden(t, scenario.Name, result))
}

func TestSnapshot_Marshal(t *testing.T) {
	result := NewResult()
	result.addTrace(TraceEvent{Type: TypeCommand, Name: "refreshSketch"})
	result.addTrace(TraceEvent{Type: TypeError, Name: "undo", Code: "NOTHING_TO_UNDO"})
	result.Sketch = ir.Normalize(ir.Sketch{Model: ir.Model{
		Variables:   []ir.Variable{{ID: "B"}, {ID: "A"}},
		Regulations: []ir.Regulation{{Source: "A", Target: "B", Essential: ir.EssentialTrue, Monotonicity: ir.MonotonicityDual}},
		Layout:      ir.Layout{Nodes: map[string]ir.Position{"A": {}, "B": {}}},
	}})
	result.Undo = undo.State{CanRedo: true}
	result.Version = 4

	data, err := NewSnapshot("snap", result).Marshal()
	require.NoError(t, err)

	assert.Equal(t,
		`{"regulations":["A -> B"],"scenario":"snap",`+
			`"trace":["command refreshSketch","error undo NOTHING_TO_UNDO"],`+
			`"undo":{"can_redo":true,"can_undo":false},"variables":["A","B"],"version":4}`,
		string(data))
}

func TestSnapshot_EmptyCollections(t *testing.T) {
	data, err := NewSnapshot("empty", NewResult()).Marshal()
	require.NoError(t, err)

	// Empty lists, not null
	assert.Contains(t, string(data), `"variables":[]`)
	assert.Contains(t, string(data), `"regulations":[]`)
	assert.Contains(t, string(data), `"trace":[]`)
}

func TestCanonicalJSONDeterminism(t *testing.T) {
	scenario := loadShared(t, "undo_limits_and_toggles")

	result1, err := Run(scenario)
	require.NoError(t, err)
	result2, err := Run(scenario)
	require.NoError(t, err)

	json1, err := NewSnapshot(scenario.Name, result1).Marshal()
	require.NoError(t, err)
	json2, err := NewSnapshot(scenario.Name, result2).Marshal()
	require.NoError(t, err)

	require.Equal(t, json1, json2, "canonical JSON must be deterministic")
}
