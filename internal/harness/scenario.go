package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/sketchsync/internal/ir"
)

// Scenario is a scripted editing session. The harness plays its steps
// against the reference backend and checks the replica that results.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Sketch optionally names a sketch document the backend starts from.
	// Relative paths are resolved against the scenario file.
	Sketch string `yaml:"sketch,omitempty"`

	// Settings override the configuration defaults for this run.
	Settings Settings `yaml:"settings,omitempty"`

	// Steps run in order. Each step is dispatched to quiescence before the
	// next one starts.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final trace, replica and journal.
	Assertions []Assertion `yaml:"assertions"`
}

// Settings mirrors the tunable parts of config.Config.
type Settings struct {
	RefreshDelay string `yaml:"refresh_delay,omitempty"`
	EventLimit   int    `yaml:"event_limit,omitempty"`
	PayloadLimit int    `yaml:"payload_limit,omitempty"`
}

// Step is exactly one of: a raw command, an editor intent, an injected
// event or a clock advance.
type Step struct {
	// Command is a command name sent as is, with Args as its payload.
	Command string `yaml:"command,omitempty"`

	// Intent is an editor gesture (see the Intent* constants).
	Intent string `yaml:"intent,omitempty"`

	// Event is an event name delivered straight to the replica and the
	// undo tracker, bypassing the backend. Used to simulate reordered or
	// stale delivery.
	Event string `yaml:"event,omitempty"`

	// Advance moves the fake clock forward, firing deferred requests.
	Advance string `yaml:"advance,omitempty"`

	// Args is the command or event payload, or the intent arguments.
	Args map[string]any `yaml:"args,omitempty"`

	// Confirm answers the confirmation a destructive intent asks for.
	// Default: confirmed.
	Confirm *bool `yaml:"confirm,omitempty"`

	// Expect validates what the step caused.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Kind names which of the step's fields is set.
func (s Step) Kind() string {
	switch {
	case s.Command != "":
		return "command"
	case s.Intent != "":
		return "intent"
	case s.Event != "":
		return "event"
	case s.Advance != "":
		return "advance"
	}
	return ""
}

// Label is a short description used in failure messages.
func (s Step) Label() string {
	switch s.Kind() {
	case "command":
		return s.Command
	case "intent":
		return "intent " + s.Intent
	case "event":
		return "event " + s.Event
	case "advance":
		return "advance " + s.Advance
	}
	return "empty step"
}

// Expect lists what a step must cause. Omitted fields are not checked.
type Expect struct {
	// Sent is the exact sequence of commands dispatched during the step,
	// follow-up requests included.
	Sent []string `yaml:"sent,omitempty"`

	// Events is the exact sequence of events the backend published.
	Events []string `yaml:"events,omitempty"`

	// Error is the code of the command rejection the step must cause.
	// Without it any rejection fails the step.
	Error string `yaml:"error,omitempty"`

	// Unchanged requires the replica snapshot to stay the same.
	Unchanged bool `yaml:"unchanged,omitempty"`
}

// Intents understood by Step.Intent.
const (
	IntentAddVariable        = "add_variable"
	IntentRemoveVariable     = "remove_variable"
	IntentAddRegulation      = "add_regulation"
	IntentRemoveRegulation   = "remove_regulation"
	IntentToggleEssentiality = "toggle_essentiality"
	IntentToggleSign         = "toggle_sign"
	IntentSetVariableData    = "set_variable_data"
	IntentSetUpdateFn        = "set_update_fn"
	IntentRenameVariable     = "rename_variable"
	IntentMoveNode           = "move_node"
	IntentRefresh            = "refresh"
	IntentUndo               = "undo"
	IntentRedo               = "redo"
)

var knownIntents = map[string]bool{
	IntentAddVariable:        true,
	IntentRemoveVariable:     true,
	IntentAddRegulation:      true,
	IntentRemoveRegulation:   true,
	IntentToggleEssentiality: true,
	IntentToggleSign:         true,
	IntentSetVariableData:    true,
	IntentSetUpdateFn:        true,
	IntentRenameVariable:     true,
	IntentMoveNode:           true,
	IntentRefresh:            true,
	IntentUndo:               true,
	IntentRedo:               true,
}

// Assertion validates the final trace, replica or journal.
type Assertion struct {
	// Type selects the check (see the Assert* constants).
	Type string `yaml:"type"`

	// Name is a command or event name (trace_contains, trace_count).
	Name string `yaml:"name,omitempty"`

	// Names is the expected order (trace_order).
	Names []string `yaml:"names,omitempty"`

	// Args is a subset of the payload to match (trace_contains).
	Args map[string]any `yaml:"args,omitempty"`

	// Count is the expected number of occurrences or rows.
	Count int `yaml:"count,omitempty"`

	// IDs are the expected variable ids in order (variables).
	IDs []string `yaml:"ids,omitempty"`

	// Pairs are the expected regulations as "source -> target" (regulations).
	Pairs []string `yaml:"pairs,omitempty"`

	// ID selects a variable (variable).
	ID string `yaml:"id,omitempty"`

	// CanUndo and CanRedo are the expected availability (undo_state).
	CanUndo *bool `yaml:"can_undo,omitempty"`
	CanRedo *bool `yaml:"can_redo,omitempty"`

	// Table and Where select journal rows (journal).
	Table string         `yaml:"table,omitempty"`
	Where map[string]any `yaml:"where,omitempty"`

	// Expect holds expected field values (variable, journal).
	// Subset match: only listed fields are validated.
	Expect map[string]any `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertVariables     = "variables"
	AssertRegulations   = "regulations"
	AssertVariable      = "variable"
	AssertUndoState     = "undo_state"
	AssertConverged     = "converged"
	AssertReplays       = "replays"
	AssertJournal       = "journal"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict decoding catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Sketch != "" && !filepath.IsAbs(scenario.Sketch) {
		scenario.Sketch = filepath.Join(filepath.Dir(path), scenario.Sketch)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	if s.Sketch != "" {
		if _, err := os.Stat(s.Sketch); os.IsNotExist(err) {
			return fmt.Errorf("sketch file not found: %s", s.Sketch)
		}
	}

	if s.Settings.RefreshDelay != "" {
		if _, err := time.ParseDuration(s.Settings.RefreshDelay); err != nil {
			return fmt.Errorf("settings.refresh_delay: %w", err)
		}
	}

	for i, step := range s.Steps {
		if err := validateStep(i, step); err != nil {
			return err
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

func validateStep(index int, step Step) error {
	set := 0
	for _, v := range []string{step.Command, step.Intent, step.Event, step.Advance} {
		if v != "" {
			set++
		}
	}
	if set != 1 {
		return fmt.Errorf("steps[%d]: exactly one of command, intent, event, advance is required", index)
	}

	switch step.Kind() {
	case "command":
		if !slices.Contains(ir.AllCommandNames(), ir.CommandName(step.Command)) {
			return fmt.Errorf("steps[%d]: unknown command %q", index, step.Command)
		}
	case "intent":
		if !knownIntents[step.Intent] {
			return fmt.Errorf("steps[%d]: unknown intent %q", index, step.Intent)
		}
	case "event":
		if !slices.Contains(ir.AllEventNames(), ir.EventName(step.Event)) {
			return fmt.Errorf("steps[%d]: unknown event %q", index, step.Event)
		}
	case "advance":
		d, err := time.ParseDuration(step.Advance)
		if err != nil {
			return fmt.Errorf("steps[%d]: advance: %w", index, err)
		}
		if d <= 0 {
			return fmt.Errorf("steps[%d]: advance must be positive", index)
		}
	}

	if step.Confirm != nil && step.Intent != IntentRemoveVariable && step.Intent != IntentRemoveRegulation {
		return fmt.Errorf("steps[%d]: confirm only applies to removal intents", index)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Name == "" {
			return fmt.Errorf("assertions[%d]: name is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Names) == 0 {
			return fmt.Errorf("assertions[%d]: names list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Name == "" {
			return fmt.Errorf("assertions[%d]: name is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertVariables, AssertRegulations, AssertConverged, AssertReplays:
	case AssertVariable:
		if a.ID == "" {
			return fmt.Errorf("assertions[%d]: id is required for variable", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for variable", index)
		}
	case AssertUndoState:
		if a.CanUndo == nil && a.CanRedo == nil {
			return fmt.Errorf("assertions[%d]: can_undo or can_redo is required for undo_state", index)
		}
	case AssertJournal:
		if a.Table == "" {
			return fmt.Errorf("assertions[%d]: table is required for journal", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for journal", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
