package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeScenario writes content to a scenario file in a temp dir.
func writeScenario(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadScenario_ValidFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "start.json"), []byte(`{}`), 0644))
	path := filepath.Join(dir, "test.yaml")

	content := `
name: test_scenario
description: "Test scenario for validation"
sketch: start.json
settings:
  refresh_delay: 20ms
  event_limit: 4
steps:
  - command: addVariable
    args:
      variable: { id: A }
  - intent: remove_variable
    args: { id: A }
    confirm: false
    expect:
      sent: []
      unchanged: true
  - advance: 20ms
assertions:
  - type: variables
    ids: [A]
  - type: undo_state
    can_undo: true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	scenario, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "test_scenario", scenario.Name)
	assert.Equal(t, filepath.Join(dir, "start.json"), scenario.Sketch)
	assert.Equal(t, Settings{RefreshDelay: "20ms", EventLimit: 4}, scenario.Settings)
	require.Len(t, scenario.Steps, 3)
	assert.Equal(t, "command", scenario.Steps[0].Kind())
	assert.Equal(t, "intent remove_variable", scenario.Steps[1].Label())
	require.NotNil(t, scenario.Steps[1].Confirm)
	assert.False(t, *scenario.Steps[1].Confirm)
	assert.True(t, scenario.Steps[1].Expect.Unchanged)
	assert.Equal(t, "advance", scenario.Steps[2].Kind())
	require.Len(t, scenario.Assertions, 2)
	assert.Equal(t, []string{"A"}, scenario.Assertions[0].IDs)
}

func TestLoadScenario_SharedScenariosLoad(t *testing.T) {
	paths, err := FindScenarios(scenarioDir)
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		_, err := LoadScenario(path)
		assert.NoError(t, err, path)
	}
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario("/nonexistent/scenario.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_UnknownField(t *testing.T) {
	path := writeScenario(t, `
name: test
description: "Test"
steps:
  - intent: undo
assertion:
  - type: converged
`)

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestLoadScenario_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		msg     string
	}{
		{
			name:    "missing name",
			content: "description: x\nsteps:\n  - intent: undo\n",
			msg:     "name is required",
		},
		{
			name:    "missing description",
			content: "name: x\nsteps:\n  - intent: undo\n",
			msg:     "description is required",
		},
		{
			name:    "missing steps",
			content: "name: x\ndescription: x\nsteps: []\n",
			msg:     "steps list is required",
		},
		{
			name:    "missing sketch file",
			content: "name: x\ndescription: x\nsketch: nope.json\nsteps:\n  - intent: undo\n",
			msg:     "sketch file not found",
		},
		{
			name:    "bad refresh delay",
			content: "name: x\ndescription: x\nsettings: { refresh_delay: soon }\nsteps:\n  - intent: undo\n",
			msg:     "settings.refresh_delay",
		},
		{
			name:    "two kinds in one step",
			content: "name: x\ndescription: x\nsteps:\n  - intent: undo\n    advance: 1s\n",
			msg:     "exactly one of command, intent, event, advance",
		},
		{
			name:    "empty step",
			content: "name: x\ndescription: x\nsteps:\n  - args: {}\n",
			msg:     "exactly one of command, intent, event, advance",
		},
		{
			name:    "unknown command",
			content: "name: x\ndescription: x\nsteps:\n  - command: addGene\n",
			msg:     `unknown command "addGene"`,
		},
		{
			name:    "unknown intent",
			content: "name: x\ndescription: x\nsteps:\n  - intent: paste\n",
			msg:     `unknown intent "paste"`,
		},
		{
			name:    "unknown event",
			content: "name: x\ndescription: x\nsteps:\n  - event: geneCreated\n",
			msg:     `unknown event "geneCreated"`,
		},
		{
			name:    "negative advance",
			content: "name: x\ndescription: x\nsteps:\n  - advance: -1s\n",
			msg:     "advance must be positive",
		},
		{
			name:    "confirm on non-removal",
			content: "name: x\ndescription: x\nsteps:\n  - intent: undo\n    confirm: true\n",
			msg:     "confirm only applies to removal intents",
		},
		{
			name:    "assertion without type",
			content: "name: x\ndescription: x\nsteps:\n  - intent: undo\nassertions:\n  - name: undo\n",
			msg:     "type is required",
		},
		{
			name:    "unknown assertion",
			content: "name: x\ndescription: x\nsteps:\n  - intent: undo\nassertions:\n  - type: final_state\n",
			msg:     `unknown assertion type "final_state"`,
		},
		{
			name:    "variable without expect",
			content: "name: x\ndescription: x\nsteps:\n  - intent: undo\nassertions:\n  - type: variable\n    id: A\n",
			msg:     "expect is required for variable",
		},
		{
			name:    "undo_state without values",
			content: "name: x\ndescription: x\nsteps:\n  - intent: undo\nassertions:\n  - type: undo_state\n",
			msg:     "can_undo or can_redo is required",
		},
		{
			name:    "journal without table",
			content: "name: x\ndescription: x\nsteps:\n  - intent: undo\nassertions:\n  - type: journal\n    count: 1\n",
			msg:     "table is required for journal",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadScenario(writeScenario(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestStep_KindAndLabel(t *testing.T) {
	tests := []struct {
		step  Step
		kind  string
		label string
	}{
		{Step{Command: "undo"}, "command", "undo"},
		{Step{Intent: IntentMoveNode}, "intent", "intent move_node"},
		{Step{Event: "variableRemoved"}, "event", "event variableRemoved"},
		{Step{Advance: "5ms"}, "advance", "advance 5ms"},
		{Step{}, "", "empty step"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.kind, tt.step.Kind())
		assert.Equal(t, tt.label, tt.step.Label())
	}
}
