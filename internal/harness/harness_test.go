package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sketchsync/internal/ir"
)

// scenarioDir holds the shared scenarios, also used by the CLI.
const scenarioDir = "../../testdata/scenarios"

func loadShared(t *testing.T, name string) *Scenario {
	t.Helper()
	scenario, err := LoadScenario(filepath.Join(scenarioDir, name+".yaml"))
	require.NoError(t, err)
	return scenario
}

func addVar(id string, x float64) Step {
	return Step{
		Command: string(ir.CommandAddVariable),
		Args: map[string]any{
			"variable": map[string]any{"id": id},
			"position": map[string]any{"x": x, "y": 0},
		},
	}
}

func TestRun_MinimalScenario(t *testing.T) {
	scenario := &Scenario{
		Name:        "minimal",
		Description: "Minimal test scenario",
		Steps:       []Step{addVar("A", 0)},
		Assertions: []Assertion{
			{Type: AssertTraceContains, Name: "variableCreated"},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Empty(t, result.Errors)

	// Initial refresh (4) + command, creation, availability (3)
	require.Len(t, result.Trace, 7)
	assert.Equal(t, TraceEvent{Seq: 1, Type: TypeCommand, Name: "refreshSketch", Payload: map[string]any{}}, result.Trace[0])
	assert.Equal(t, TypeCommand, result.Trace[4].Type)
	assert.Equal(t, "addVariable", result.Trace[4].Name)
	assert.Equal(t, TypeEvent, result.Trace[5].Type)
	assert.Equal(t, "variableCreated", result.Trace[5].Name)

	assert.Equal(t, int64(2), result.Version)
	assert.Equal(t, []string{"A"}, NewSnapshot("minimal", result).Variables)
	assert.True(t, result.Undo.CanUndo)
}

func TestRun_SharedScenarios(t *testing.T) {
	for _, name := range []string{
		"create_regulate_remove",
		"rename_and_stale_delivery",
		"undo_limits_and_toggles",
	} {
		t.Run(name, func(t *testing.T) {
			result, err := Run(loadShared(t, name))
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestRun_UnexpectedRejectionFails(t *testing.T) {
	scenario := &Scenario{
		Name:        "unexpected_rejection",
		Description: "A rejection the step does not expect",
		Steps: []Step{
			{Command: string(ir.CommandRemoveVariable), Args: map[string]any{"id": "Z"}},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "unexpected rejection [NOT_FOUND]")

	last := result.Trace[len(result.Trace)-1]
	assert.Equal(t, TypeError, last.Type)
	assert.Equal(t, "NOT_FOUND", last.Code)
	assert.Contains(t, last.Message, `"Z"`)
}

func TestRun_ExpectMismatch(t *testing.T) {
	step := addVar("A", 0)
	step.Expect = &Expect{
		Sent:   []string{"addVariable", "refreshSketch"},
		Events: []string{"variableCreated"},
	}
	scenario := &Scenario{
		Name:        "expect_mismatch",
		Description: "Wrong sent and events lists",
		Steps:       []Step{step},
	}

	result, err := Run(scenario)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0], "sent [addVariable]")
	assert.Contains(t, result.Errors[1], "events [variableCreated canUndoChanged]")
}

func TestRun_UnchangedDetectsChange(t *testing.T) {
	step := addVar("A", 0)
	step.Expect = &Expect{Unchanged: true}
	scenario := &Scenario{
		Name:        "unchanged",
		Description: "A creation changes the replica",
		Steps:       []Step{step},
	}

	result, err := Run(scenario)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "replica changed from version 1 to 2")
}

func TestRun_RefreshDelayDisabled(t *testing.T) {
	scenario := &Scenario{
		Name:        "no_delay",
		Description: "A zero delay disables the static property refresh",
		Settings:    Settings{RefreshDelay: "0s"},
		Steps: []Step{
			addVar("A", 0),
			addVar("B", 10),
			{
				Command: string(ir.CommandAddRegulation),
				Args: map[string]any{"regulation": map[string]any{
					"source": "A", "target": "B", "essential": "Unknown", "monotonicity": "Dual",
				}},
			},
			{
				Command: string(ir.CommandRemoveRegulation),
				Args:    map[string]any{"source": "A", "target": "B"},
				Expect:  &Expect{Sent: []string{"removeRegulation"}},
			},
			{Advance: "1s", Expect: &Expect{Sent: []string{}}},
		},
		Assertions: []Assertion{
			{Type: AssertTraceCount, Name: "refreshStaticProperties", Count: 0},
			{Type: AssertConverged},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_DeferredRefreshCoalesces(t *testing.T) {
	removeReg := func(src string) Step {
		return Step{Command: string(ir.CommandRemoveRegulation), Args: map[string]any{"source": src, "target": "C"}}
	}
	addReg := func(src string) Step {
		return Step{
			Command: string(ir.CommandAddRegulation),
			Args: map[string]any{"regulation": map[string]any{
				"source": src, "target": "C", "essential": "True", "monotonicity": "Activation",
			}},
		}
	}

	scenario := &Scenario{
		Name:        "coalesce",
		Description: "Two removals within the delay cause one refresh",
		Steps: []Step{
			addVar("A", 0), addVar("B", 10), addVar("C", 20),
			addReg("A"), addReg("B"),
			removeReg("A"),
			{Advance: "30ms", Expect: &Expect{Sent: []string{}}},
			removeReg("B"),
			{Advance: "30ms", Expect: &Expect{Sent: []string{}}},
			{Advance: "20ms", Expect: &Expect{Sent: []string{"refreshStaticProperties"}}},
		},
		Assertions: []Assertion{
			{Type: AssertTraceCount, Name: "refreshStaticProperties", Count: 1},
			{Type: AssertRegulations},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_Deterministic(t *testing.T) {
	scenario := loadShared(t, "create_regulate_remove")

	result1, err := Run(scenario)
	require.NoError(t, err)
	result2, err := Run(scenario)
	require.NoError(t, err)

	assert.Equal(t, result1.Trace, result2.Trace)
	assert.Equal(t, result1.Sketch, result2.Sketch)
	assert.Equal(t, result1.Version, result2.Version)
}

func TestRun_StepErrors(t *testing.T) {
	tests := []struct {
		name string
		step Step
		msg  string
	}{
		{
			name: "bad command payload",
			step: Step{Command: "removeVariable", Args: map[string]any{"ident": "A"}},
			msg:  "decode command removeVariable",
		},
		{
			name: "toggle without regulation",
			step: Step{Intent: IntentToggleSign, Args: map[string]any{"source": "A", "target": "B"}},
			msg:  "regulation A -> B not in replica",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scenario := &Scenario{Name: "step_error", Description: "x", Steps: []Step{tt.step}}
			_, err := Run(scenario)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
			assert.Contains(t, err.Error(), "step 0")
		})
	}
}

func TestRun_BadInitialSketch(t *testing.T) {
	scenario := &Scenario{
		Name:        "bad_sketch",
		Description: "x",
		Sketch:      filepath.Join(t.TempDir(), "missing.json"),
		Steps:       []Step{{Intent: IntentRefresh}},
	}

	_, err := Run(scenario)
	assert.ErrorContains(t, err, "failed to load sketch")
}

func TestResult_AddError(t *testing.T) {
	result := NewResult()
	assert.True(t, result.Pass)

	result.AddError("boom")
	assert.False(t, result.Pass)
	assert.Equal(t, []string{"boom"}, result.Errors)
}

func TestResult_AddTrace(t *testing.T) {
	result := NewResult()
	result.addTrace(TraceEvent{Type: TypeCommand, Name: "undo"})
	result.addTrace(TraceEvent{Type: TypeError, Name: "undo", Code: "NOTHING_TO_UNDO"})

	assert.Equal(t, int64(1), result.Trace[0].Seq)
	assert.Equal(t, int64(2), result.Trace[1].Seq)
	assert.Equal(t, "command undo", result.Trace[0].Line())
	assert.Equal(t, "error undo NOTHING_TO_UNDO", result.Trace[1].Line())
}
