package replica

import (
	"maps"
	"slices"

	"github.com/roach88/sketchsync/internal/ir"
)

// Reduce folds one event into s and returns the next sketch.
//
// Reduce is pure: s is never modified, and collections the event does not
// touch are shared with the result. On error the caller keeps s.
//
// Keyed events address entities strictly by id or (source, target), so
// events on distinct keys commute.
func Reduce(s ir.Sketch, ev ir.Event) (ir.Sketch, error) {
	switch e := ev.(type) {
	case ir.VariableCreated:
		return reduceVariableCreated(s, e)
	case ir.VariableRemoved:
		return reduceVariableRemoved(s, e)
	case ir.VariableDataChanged:
		return patchVariable(s, e, e.ID, func(v *ir.Variable) {
			v.Name = e.Name
			v.Annotation = e.Annotation
		})
	case ir.VariableUpdateFnChanged:
		return patchVariable(s, e, e.ID, func(v *ir.Variable) {
			v.UpdateFn = e.UpdateFn
		})
	case ir.VariableIDChanged:
		return acceptRenamedModel(s, e, e.Model, e.OldID)
	case ir.RegulationCreated:
		return reduceRegulationCreated(s, e)
	case ir.RegulationRemoved:
		return reduceRegulationRemoved(s, e)
	case ir.RegulationEssentialityChanged:
		if !e.Essential.Valid() {
			return s, malformed(e, string(e.Essential), "unknown essentiality")
		}
		return patchRegulation(s, e, ir.RegulationKey{Source: e.Source, Target: e.Target}, func(r *ir.Regulation) {
			r.Essential = e.Essential
		})
	case ir.RegulationSignChanged:
		if !e.Monotonicity.Valid() {
			return s, malformed(e, string(e.Monotonicity), "unknown monotonicity")
		}
		return patchRegulation(s, e, ir.RegulationKey{Source: e.Source, Target: e.Target}, func(r *ir.Regulation) {
			r.Monotonicity = e.Monotonicity
		})
	case ir.NodePositionChanged:
		return reduceNodePositionChanged(s, e)
	case ir.UninterpretedFnIDChanged:
		return acceptRenamedModel(s, e, e.Model, e.OldID)
	case ir.SketchRefreshed:
		return ir.Normalize(e.Sketch), nil
	case ir.SketchReplaced:
		return ir.Normalize(e.Sketch), nil
	case ir.ModelRefreshed:
		s.Model = ir.NormalizeModel(e.Model)
		return s, nil
	case ir.VariablesRefreshed:
		s.Model.Variables = ir.SortVariables(e.Variables)
		return s, nil
	case ir.RegulationsRefreshed:
		s.Model.Regulations = ir.SortRegulations(e.Regulations)
		return s, nil
	case ir.LayoutNodesRefreshed:
		s.Model.Layout = ir.NormalizeLayout(e.Layout)
		return s, nil
	case ir.FunctionsRefreshed:
		s.Model.Functions = ir.SortFunctions(e.Functions)
		return s, nil
	case ir.DatasetsRefreshed:
		s.Datasets = ir.SortDatasets(e.Datasets)
		return s, nil
	case ir.StaticPropertiesRefreshed:
		s.StaticProperties = ir.SortProperties(e.Properties)
		return s, nil
	case ir.DynamicPropertiesRefreshed:
		s.DynamicProperties = ir.SortProperties(e.Properties)
		return s, nil
	case ir.CanUndoChanged, ir.CanRedoChanged:
		// Availability is tracked by the undo package, not the sketch
		return s, nil
	default:
		return s, &ReduceError{Code: ErrCodeUnknownEvent, Event: ev.EventName(), Message: "no reducer"}
	}
}

// reduceVariableCreated inserts the variable and its layout node together so
// the layout stays in bijection with the variables. A re-delivered creation
// overwrites the existing entry.
func reduceVariableCreated(s ir.Sketch, e ir.VariableCreated) (ir.Sketch, error) {
	if e.Variable.ID == "" {
		return s, malformed(e, "", "variable without id")
	}

	vars := slices.Clone(s.Model.Variables)
	if i := s.Model.FindVariable(e.Variable.ID); i >= 0 {
		vars[i] = e.Variable
	} else {
		vars = append(vars, e.Variable)
	}
	s.Model.Variables = ir.SortVariables(vars)
	s.Model.Layout = withNode(s.Model.Layout, e.Variable.ID, e.Position)
	return s, nil
}

// reduceVariableRemoved drops the variable and its layout node. Incident
// regulations are removed by their own events, which the backend emits first.
func reduceVariableRemoved(s ir.Sketch, e ir.VariableRemoved) (ir.Sketch, error) {
	i := s.Model.FindVariable(e.ID)
	if i < 0 {
		return s, stale(e, e.ID, "variable not found")
	}

	s.Model.Variables = slices.Delete(slices.Clone(s.Model.Variables), i, i+1)
	nodes := maps.Clone(s.Model.Layout.Nodes)
	delete(nodes, e.ID)
	s.Model.Layout.Nodes = nonNilNodes(nodes)
	return s, nil
}

func patchVariable(s ir.Sketch, ev ir.Event, id string, patch func(*ir.Variable)) (ir.Sketch, error) {
	i := s.Model.FindVariable(id)
	if i < 0 {
		return s, stale(ev, id, "variable not found")
	}
	vars := slices.Clone(s.Model.Variables)
	patch(&vars[i])
	s.Model.Variables = vars
	return s, nil
}

// acceptRenamedModel replaces the whole model with the post-rename model the
// backend computed. Ids are never rewritten locally: the rename may have
// cascaded through regulations, layout and update functions.
func acceptRenamedModel(s ir.Sketch, ev ir.Event, model *ir.Model, oldID string) (ir.Sketch, error) {
	if model == nil {
		return s, &ReduceError{
			Code:    ErrCodeRefreshRequired,
			Event:   ev.EventName(),
			Key:     oldID,
			Message: "rename without model",
		}
	}
	s.Model = ir.NormalizeModel(*model)
	return s, nil
}

func reduceRegulationCreated(s ir.Sketch, e ir.RegulationCreated) (ir.Sketch, error) {
	r := e.Regulation
	if !r.Essential.Valid() || !r.Monotonicity.Valid() {
		return s, malformed(e, r.Key().String(), "unknown essentiality or monotonicity")
	}
	// An endpoint that is already gone means a later removal overtook us
	for _, id := range []string{r.Source, r.Target} {
		if s.Model.FindVariable(id) < 0 {
			return s, stale(e, r.Key().String(), "endpoint "+id+" not found")
		}
	}

	regs := slices.Clone(s.Model.Regulations)
	if i := s.Model.FindRegulation(r.Key()); i >= 0 {
		regs[i] = r
	} else {
		regs = append(regs, r)
	}
	s.Model.Regulations = ir.SortRegulations(regs)
	return s, nil
}

func reduceRegulationRemoved(s ir.Sketch, e ir.RegulationRemoved) (ir.Sketch, error) {
	key := ir.RegulationKey{Source: e.Source, Target: e.Target}
	i := s.Model.FindRegulation(key)
	if i < 0 {
		return s, stale(e, key.String(), "regulation not found")
	}
	s.Model.Regulations = slices.Delete(slices.Clone(s.Model.Regulations), i, i+1)
	return s, nil
}

func patchRegulation(s ir.Sketch, ev ir.Event, key ir.RegulationKey, patch func(*ir.Regulation)) (ir.Sketch, error) {
	i := s.Model.FindRegulation(key)
	if i < 0 {
		return s, stale(ev, key.String(), "regulation not found")
	}
	regs := slices.Clone(s.Model.Regulations)
	patch(&regs[i])
	s.Model.Regulations = regs
	return s, nil
}

func reduceNodePositionChanged(s ir.Sketch, e ir.NodePositionChanged) (ir.Sketch, error) {
	if e.Layout != "" && e.Layout != s.Model.Layout.ID {
		return s, stale(e, e.Layout, "unknown layout")
	}
	if _, ok := s.Model.Layout.Nodes[e.Variable]; !ok {
		return s, stale(e, e.Variable, "layout node not found")
	}
	s.Model.Layout = withNode(s.Model.Layout, e.Variable, ir.Position{X: e.X, Y: e.Y})
	return s, nil
}

// withNode returns a copy of l with one node set.
func withNode(l ir.Layout, id string, pos ir.Position) ir.Layout {
	nodes := make(map[string]ir.Position, len(l.Nodes)+1)
	maps.Copy(nodes, l.Nodes)
	nodes[id] = pos
	l.Nodes = nodes
	return l
}

func nonNilNodes(m map[string]ir.Position) map[string]ir.Position {
	if m == nil {
		return map[string]ir.Position{}
	}
	return m
}
