package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/sketchsync/internal/ir"
	"github.com/roach88/sketchsync/internal/undo"
)

// Snapshot captures what a scenario execution did and where it ended.
// Payloads are left out so snapshots stay readable; assertions cover them.
type Snapshot struct {
	Scenario    string     `json:"scenario"`
	Trace       []string   `json:"trace"`
	Variables   []string   `json:"variables"`
	Regulations []string   `json:"regulations"`
	Undo        undo.State `json:"undo"`
	Version     int64      `json:"version"`
}

// NewSnapshot builds the golden snapshot of a result.
func NewSnapshot(name string, result *Result) Snapshot {
	snap := Snapshot{
		Scenario:    name,
		Trace:       make([]string, 0, len(result.Trace)),
		Variables:   make([]string, 0, len(result.Sketch.Model.Variables)),
		Regulations: make([]string, 0, len(result.Sketch.Model.Regulations)),
		Undo:        result.Undo,
		Version:     result.Version,
	}
	for _, ev := range result.Trace {
		snap.Trace = append(snap.Trace, ev.Line())
	}
	for _, v := range result.Sketch.Model.Variables {
		snap.Variables = append(snap.Variables, v.ID)
	}
	for _, r := range result.Sketch.Model.Regulations {
		snap.Regulations = append(snap.Regulations, r.Key().String())
	}
	return snap
}

// Marshal returns the snapshot as canonical JSON.
func (s Snapshot) Marshal() ([]byte, error) {
	return ir.MarshalCanonical(s)
}

// RunWithGolden executes a scenario and compares its snapshot against a
// golden file in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return err
	}
	return AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares an existing result against a golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := NewSnapshot(scenarioName, result).Marshal()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)

	return nil
}
