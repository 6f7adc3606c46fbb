package replica

import "github.com/roach88/sketchsync/internal/ir"

// Snapshot is one immutable version of the replicated sketch.
//
// Snapshots share untouched collections with their predecessors. Treat every
// slice and map reachable from a Snapshot as read-only.
type Snapshot struct {
	// Version increases by one for every applied event. The initial empty
	// snapshot has version 0.
	Version int64

	// Cause is the event that produced this snapshot, "" for the initial one.
	Cause ir.EventName

	// Sketch is the full, self-consistent document.
	Sketch ir.Sketch
}

// Variable looks up a variable by id.
func (s *Snapshot) Variable(id string) (ir.Variable, bool) {
	if i := s.Sketch.Model.FindVariable(id); i >= 0 {
		return s.Sketch.Model.Variables[i], true
	}
	return ir.Variable{}, false
}

// Regulation looks up a regulation by its endpoints.
func (s *Snapshot) Regulation(source, target string) (ir.Regulation, bool) {
	if i := s.Sketch.Model.FindRegulation(ir.RegulationKey{Source: source, Target: target}); i >= 0 {
		return s.Sketch.Model.Regulations[i], true
	}
	return ir.Regulation{}, false
}

// Position returns the layout position of a variable.
func (s *Snapshot) Position(id string) (ir.Position, bool) {
	p, ok := s.Sketch.Model.Layout.Nodes[id]
	return p, ok
}
