package testutil

import "github.com/roach88/sketchsync/internal/ir"

// Var returns a variable whose name equals its id.
func Var(id string) ir.Variable {
	return ir.Variable{ID: id, Name: id}
}

// Reg returns an essential, activating regulation.
func Reg(source, target string) ir.Regulation {
	return ir.Regulation{
		Source:       source,
		Target:       target,
		Essential:    ir.EssentialTrue,
		Monotonicity: ir.MonotonicityActivation,
	}
}

// Sketch builds a normalized sketch with the given variables laid out on a
// diagonal and the given regulations.
func Sketch(vars []string, regs ...ir.Regulation) ir.Sketch {
	s := ir.Sketch{Model: ir.Model{Layout: ir.Layout{ID: ir.DefaultLayoutID, Nodes: map[string]ir.Position{}}}}
	for i, id := range vars {
		s.Model.Variables = append(s.Model.Variables, Var(id))
		s.Model.Layout.Nodes[id] = ir.Position{X: float64(i * 100), Y: float64(i * 100)}
	}
	s.Model.Regulations = regs
	return ir.Normalize(s)
}
