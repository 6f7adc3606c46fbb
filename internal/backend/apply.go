package backend

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/roach88/sketchsync/internal/ir"
)

// change is the outcome of applying one command: the next sketch, the
// events describing it and the commands that redo and undo it.
type change struct {
	sketch  ir.Sketch
	events  []ir.Event
	perform []ir.Command
	reverse []ir.Command
}

// apply validates cmd against s and computes the change. s is never
// modified; collections that change are copied.
func apply(s ir.Sketch, cmd ir.Command, v Validator) (change, error) {
	switch c := cmd.(type) {
	case ir.AddVariable:
		return addVariable(s, c)
	case ir.RemoveVariable:
		return removeVariable(s, c)
	case ir.SetVariableData:
		return setVariableData(s, c)
	case ir.SetVariableUpdateFn:
		return setVariableUpdateFn(s, c)
	case ir.SetVariableID:
		return setVariableID(s, c)
	case ir.AddRegulation:
		return addRegulation(s, c)
	case ir.RemoveRegulation:
		return removeRegulation(s, c)
	case ir.SetRegulationEssentiality:
		return setRegulationEssentiality(s, c)
	case ir.SetRegulationSign:
		return setRegulationSign(s, c)
	case ir.ChangeNodePosition:
		return changeNodePosition(s, c)
	case ir.AddUninterpretedFn:
		return addUninterpretedFn(s, c)
	case ir.RemoveUninterpretedFn:
		return removeUninterpretedFn(s, c)
	case ir.SetUninterpretedFnID:
		return setUninterpretedFnID(s, c)
	case ir.SetDatasets:
		return setDatasets(s, c)
	case ir.SetStaticProperties:
		return setProperties(s, c, c.Properties, true)
	case ir.SetDynamicProperties:
		return setProperties(s, c, c.Properties, false)
	case ir.ReplaceSketch:
		return replaceSketch(s, c, v)
	default:
		return change{}, rejectf(cmd, ErrCodeInvalidArgument, "command cannot be applied")
	}
}

// idTaken reports whether id names a variable or a function.
func idTaken(m ir.Model, id string) bool {
	return m.FindVariable(id) >= 0 || m.FindFunction(id) >= 0
}

func checkNewID(cmd ir.Command, m ir.Model, id string) error {
	if !validID(id) {
		return rejectf(cmd, ErrCodeInvalidArgument, "invalid id %q", id)
	}
	if idTaken(m, id) {
		return rejectf(cmd, ErrCodeDuplicateID, "id %q already in use", id)
	}
	return nil
}

func addVariable(s ir.Sketch, c ir.AddVariable) (change, error) {
	v := c.Variable
	if v.ID == "" {
		v.ID = freshID("var", func(id string) bool { return idTaken(s.Model, id) })
	}
	if err := checkNewID(c, s.Model, v.ID); err != nil {
		return change{}, err
	}
	if v.Name == "" {
		v.Name = v.ID
	}

	s.Model.Variables = ir.SortVariables(append(slices.Clone(s.Model.Variables), v))
	s.Model.Layout = withNode(s.Model.Layout, v.ID, c.Position)

	return change{
		sketch:  s,
		events:  []ir.Event{ir.VariableCreated{Variable: v, Position: c.Position}},
		perform: []ir.Command{ir.AddVariable{Variable: v, Position: c.Position}},
		reverse: []ir.Command{ir.RemoveVariable{ID: v.ID}},
	}, nil
}

func removeVariable(s ir.Sketch, c ir.RemoveVariable) (change, error) {
	i := s.Model.FindVariable(c.ID)
	if i < 0 {
		return change{}, rejectf(c, ErrCodeNotFound, "variable %q not found", c.ID)
	}
	v := s.Model.Variables[i]
	pos := s.Model.Layout.Nodes[c.ID]

	var events []ir.Event
	reverse := []ir.Command{ir.AddVariable{Variable: v, Position: pos}}
	kept := make([]ir.Regulation, 0, len(s.Model.Regulations))
	var removedKeys []ir.RegulationKey
	for _, r := range s.Model.Regulations {
		if r.Source != c.ID && r.Target != c.ID {
			kept = append(kept, r)
			continue
		}
		removedKeys = append(removedKeys, r.Key())
		events = append(events, ir.RegulationRemoved{Source: r.Source, Target: r.Target})
		reverse = append(reverse, ir.AddRegulation{Regulation: r})
	}
	events = append(events, ir.VariableRemoved{ID: c.ID})

	oldProps := s.StaticProperties
	props, dropped := dropProperties(oldProps, func(p ir.Property) bool {
		return slices.ContainsFunc(removedKeys, p.ReferencesRegulation)
	})
	if dropped {
		events = append(events, ir.StaticPropertiesRefreshed{Properties: props})
		reverse = append(reverse, ir.SetStaticProperties{Properties: oldProps})
	}

	s.Model.Regulations = kept
	s.Model.Variables = slices.Delete(slices.Clone(s.Model.Variables), i, i+1)
	nodes := maps.Clone(s.Model.Layout.Nodes)
	delete(nodes, c.ID)
	s.Model.Layout.Nodes = nodes
	s.StaticProperties = props

	return change{sketch: s, events: events, perform: []ir.Command{c}, reverse: reverse}, nil
}

func setVariableData(s ir.Sketch, c ir.SetVariableData) (change, error) {
	i := s.Model.FindVariable(c.ID)
	if i < 0 {
		return change{}, rejectf(c, ErrCodeNotFound, "variable %q not found", c.ID)
	}
	old := s.Model.Variables[i]
	vars := slices.Clone(s.Model.Variables)
	vars[i].Name = c.Name
	vars[i].Annotation = c.Annotation
	s.Model.Variables = vars

	return change{
		sketch:  s,
		events:  []ir.Event{ir.VariableDataChanged{ID: c.ID, Name: c.Name, Annotation: c.Annotation}},
		perform: []ir.Command{c},
		reverse: []ir.Command{ir.SetVariableData{ID: c.ID, Name: old.Name, Annotation: old.Annotation}},
	}, nil
}

func setVariableUpdateFn(s ir.Sketch, c ir.SetVariableUpdateFn) (change, error) {
	i := s.Model.FindVariable(c.ID)
	if i < 0 {
		return change{}, rejectf(c, ErrCodeNotFound, "variable %q not found", c.ID)
	}
	old := s.Model.Variables[i].UpdateFn
	expr := strings.TrimSpace(c.Expression)
	vars := slices.Clone(s.Model.Variables)
	vars[i].UpdateFn = expr
	s.Model.Variables = vars

	return change{
		sketch:  s,
		events:  []ir.Event{ir.VariableUpdateFnChanged{ID: c.ID, UpdateFn: expr}},
		perform: []ir.Command{ir.SetVariableUpdateFn{ID: c.ID, Expression: expr}},
		reverse: []ir.Command{ir.SetVariableUpdateFn{ID: c.ID, Expression: old}},
	}, nil
}

func setVariableID(s ir.Sketch, c ir.SetVariableID) (change, error) {
	if s.Model.FindVariable(c.OldID) < 0 {
		return change{}, rejectf(c, ErrCodeNotFound, "variable %q not found", c.OldID)
	}
	if c.OldID == c.NewID {
		return change{}, rejectf(c, ErrCodeInvalidArgument, "id %q is unchanged", c.NewID)
	}
	if err := checkNewID(c, s.Model, c.NewID); err != nil {
		return change{}, err
	}

	r := renameVariable(s, c.OldID, c.NewID)
	model := r.sketch.Model
	events := []ir.Event{ir.VariableIDChanged{OldID: c.OldID, NewID: c.NewID, Model: &model}}
	if r.datasetsChanged {
		events = append(events, ir.DatasetsRefreshed{Datasets: r.sketch.Datasets})
	}
	if r.staticChanged {
		events = append(events, ir.StaticPropertiesRefreshed{Properties: r.sketch.StaticProperties})
	}
	if r.dynamicChanged {
		events = append(events, ir.DynamicPropertiesRefreshed{Properties: r.sketch.DynamicProperties})
	}

	return change{
		sketch:  r.sketch,
		events:  events,
		perform: []ir.Command{c},
		reverse: []ir.Command{ir.SetVariableID{OldID: c.NewID, NewID: c.OldID}},
	}, nil
}

func addRegulation(s ir.Sketch, c ir.AddRegulation) (change, error) {
	r := c.Regulation
	if !r.Essential.Valid() {
		return change{}, rejectf(c, ErrCodeInvalidArgument, "invalid essentiality %q", r.Essential)
	}
	if !r.Monotonicity.Valid() {
		return change{}, rejectf(c, ErrCodeInvalidArgument, "invalid monotonicity %q", r.Monotonicity)
	}
	for _, id := range []string{r.Source, r.Target} {
		if s.Model.FindVariable(id) < 0 {
			return change{}, rejectf(c, ErrCodeNotFound, "variable %q not found", id)
		}
	}
	if s.Model.FindRegulation(r.Key()) >= 0 {
		return change{}, rejectf(c, ErrCodeDuplicateID, "regulation %s already exists", r.Key())
	}

	s.Model.Regulations = ir.SortRegulations(append(slices.Clone(s.Model.Regulations), r))

	return change{
		sketch:  s,
		events:  []ir.Event{ir.RegulationCreated{Regulation: r}},
		perform: []ir.Command{c},
		reverse: []ir.Command{ir.RemoveRegulation{Source: r.Source, Target: r.Target}},
	}, nil
}

// removeRegulation also drops the static properties parameterized by the
// regulation; the replica cannot see that dependency, so the new property
// list is published explicitly.
func removeRegulation(s ir.Sketch, c ir.RemoveRegulation) (change, error) {
	key := ir.RegulationKey{Source: c.Source, Target: c.Target}
	i := s.Model.FindRegulation(key)
	if i < 0 {
		return change{}, rejectf(c, ErrCodeNotFound, "regulation %s not found", key)
	}
	old := s.Model.Regulations[i]

	events := []ir.Event{ir.RegulationRemoved{Source: c.Source, Target: c.Target}}
	reverse := []ir.Command{ir.AddRegulation{Regulation: old}}

	oldProps := s.StaticProperties
	props, dropped := dropProperties(oldProps, func(p ir.Property) bool {
		return p.ReferencesRegulation(key)
	})
	if dropped {
		events = append(events, ir.StaticPropertiesRefreshed{Properties: props})
		reverse = append(reverse, ir.SetStaticProperties{Properties: oldProps})
	}

	s.Model.Regulations = slices.Delete(slices.Clone(s.Model.Regulations), i, i+1)
	s.StaticProperties = props

	return change{sketch: s, events: events, perform: []ir.Command{c}, reverse: reverse}, nil
}

func setRegulationEssentiality(s ir.Sketch, c ir.SetRegulationEssentiality) (change, error) {
	if !c.Essential.Valid() {
		return change{}, rejectf(c, ErrCodeInvalidArgument, "invalid essentiality %q", c.Essential)
	}
	key := ir.RegulationKey{Source: c.Source, Target: c.Target}
	i := s.Model.FindRegulation(key)
	if i < 0 {
		return change{}, rejectf(c, ErrCodeNotFound, "regulation %s not found", key)
	}
	old := s.Model.Regulations[i].Essential
	regs := slices.Clone(s.Model.Regulations)
	regs[i].Essential = c.Essential
	s.Model.Regulations = regs

	return change{
		sketch:  s,
		events:  []ir.Event{ir.RegulationEssentialityChanged{Source: c.Source, Target: c.Target, Essential: c.Essential}},
		perform: []ir.Command{c},
		reverse: []ir.Command{ir.SetRegulationEssentiality{Source: c.Source, Target: c.Target, Essential: old}},
	}, nil
}

func setRegulationSign(s ir.Sketch, c ir.SetRegulationSign) (change, error) {
	if !c.Monotonicity.Valid() {
		return change{}, rejectf(c, ErrCodeInvalidArgument, "invalid monotonicity %q", c.Monotonicity)
	}
	key := ir.RegulationKey{Source: c.Source, Target: c.Target}
	i := s.Model.FindRegulation(key)
	if i < 0 {
		return change{}, rejectf(c, ErrCodeNotFound, "regulation %s not found", key)
	}
	old := s.Model.Regulations[i].Monotonicity
	regs := slices.Clone(s.Model.Regulations)
	regs[i].Monotonicity = c.Monotonicity
	s.Model.Regulations = regs

	return change{
		sketch:  s,
		events:  []ir.Event{ir.RegulationSignChanged{Source: c.Source, Target: c.Target, Monotonicity: c.Monotonicity}},
		perform: []ir.Command{c},
		reverse: []ir.Command{ir.SetRegulationSign{Source: c.Source, Target: c.Target, Monotonicity: old}},
	}, nil
}

func changeNodePosition(s ir.Sketch, c ir.ChangeNodePosition) (change, error) {
	layout := s.Model.Layout
	if c.Layout != "" && c.Layout != layout.ID {
		return change{}, rejectf(c, ErrCodeNotFound, "layout %q not found", c.Layout)
	}
	old, ok := layout.Nodes[c.Variable]
	if !ok {
		return change{}, rejectf(c, ErrCodeNotFound, "no layout node for %q", c.Variable)
	}
	s.Model.Layout = withNode(layout, c.Variable, ir.Position{X: c.X, Y: c.Y})

	return change{
		sketch:  s,
		events:  []ir.Event{ir.NodePositionChanged{Layout: layout.ID, Variable: c.Variable, X: c.X, Y: c.Y}},
		perform: []ir.Command{c},
		reverse: []ir.Command{ir.ChangeNodePosition{Layout: layout.ID, Variable: c.Variable, X: old.X, Y: old.Y}},
	}, nil
}

func addUninterpretedFn(s ir.Sketch, c ir.AddUninterpretedFn) (change, error) {
	f := c.Function
	if f.ID == "" {
		f.ID = freshID("fn", func(id string) bool { return idTaken(s.Model, id) })
	}
	if err := checkNewID(c, s.Model, f.ID); err != nil {
		return change{}, err
	}
	if f.Arity < 0 {
		return change{}, rejectf(c, ErrCodeInvalidArgument, "negative arity %d", f.Arity)
	}
	if f.Name == "" {
		f.Name = f.ID
	}

	s.Model.Functions = ir.SortFunctions(append(slices.Clone(s.Model.Functions), f))

	return change{
		sketch:  s,
		events:  []ir.Event{ir.FunctionsRefreshed{Functions: s.Model.Functions}},
		perform: []ir.Command{ir.AddUninterpretedFn{Function: f}},
		reverse: []ir.Command{ir.RemoveUninterpretedFn{ID: f.ID}},
	}, nil
}

// removeUninterpretedFn refuses to remove a function that is still used by
// an expression or a property.
func removeUninterpretedFn(s ir.Sketch, c ir.RemoveUninterpretedFn) (change, error) {
	i := s.Model.FindFunction(c.ID)
	if i < 0 {
		return change{}, rejectf(c, ErrCodeNotFound, "function %q not found", c.ID)
	}
	for _, v := range s.Model.Variables {
		if mentions(v.UpdateFn, c.ID) {
			return change{}, rejectf(c, ErrCodeInvalidArgument, "function %q is used by the update function of %q", c.ID, v.ID)
		}
	}
	for _, f := range s.Model.Functions {
		if f.ID != c.ID && mentions(f.Expression, c.ID) {
			return change{}, rejectf(c, ErrCodeInvalidArgument, "function %q is used by function %q", c.ID, f.ID)
		}
	}
	for _, p := range s.StaticProperties {
		if functionTarget(p) == c.ID {
			return change{}, rejectf(c, ErrCodeInvalidArgument, "function %q is used by property %q", c.ID, p.ID)
		}
	}

	old := s.Model.Functions[i]
	s.Model.Functions = slices.Delete(slices.Clone(s.Model.Functions), i, i+1)

	return change{
		sketch:  s,
		events:  []ir.Event{ir.FunctionsRefreshed{Functions: s.Model.Functions}},
		perform: []ir.Command{c},
		reverse: []ir.Command{ir.AddUninterpretedFn{Function: old}},
	}, nil
}

func functionTarget(p ir.Property) string {
	switch v := p.Variant.(type) {
	case ir.FnInputEssential:
		return v.Target
	case ir.FnInputMonotonic:
		return v.Target
	}
	return ""
}

func setUninterpretedFnID(s ir.Sketch, c ir.SetUninterpretedFnID) (change, error) {
	if s.Model.FindFunction(c.OldID) < 0 {
		return change{}, rejectf(c, ErrCodeNotFound, "function %q not found", c.OldID)
	}
	if c.OldID == c.NewID {
		return change{}, rejectf(c, ErrCodeInvalidArgument, "id %q is unchanged", c.NewID)
	}
	if err := checkNewID(c, s.Model, c.NewID); err != nil {
		return change{}, err
	}

	next, propsChanged := renameFunction(s, c.OldID, c.NewID)
	model := next.Model
	events := []ir.Event{ir.UninterpretedFnIDChanged{OldID: c.OldID, NewID: c.NewID, Model: &model}}
	if propsChanged {
		events = append(events, ir.StaticPropertiesRefreshed{Properties: next.StaticProperties})
	}

	return change{
		sketch:  next,
		events:  events,
		perform: []ir.Command{c},
		reverse: []ir.Command{ir.SetUninterpretedFnID{OldID: c.NewID, NewID: c.OldID}},
	}, nil
}

func setDatasets(s ir.Sketch, c ir.SetDatasets) (change, error) {
	if err := checkDatasets(c.Datasets); err != nil {
		return change{}, rejectf(c, ErrCodeInvalidArgument, "%v", err)
	}
	old := s.Datasets
	s.Datasets = ir.SortDatasets(c.Datasets)

	return change{
		sketch:  s,
		events:  []ir.Event{ir.DatasetsRefreshed{Datasets: s.Datasets}},
		perform: []ir.Command{ir.SetDatasets{Datasets: s.Datasets}},
		reverse: []ir.Command{ir.SetDatasets{Datasets: old}},
	}, nil
}

func checkDatasets(datasets []ir.Dataset) error {
	seen := make(map[string]bool, len(datasets))
	for _, d := range datasets {
		if !validID(d.ID) {
			return fmt.Errorf("invalid dataset id %q", d.ID)
		}
		if seen[d.ID] {
			return fmt.Errorf("duplicate dataset %q", d.ID)
		}
		seen[d.ID] = true

		columns := make(map[string]bool, len(d.Variables))
		for _, v := range d.Variables {
			columns[v] = true
		}
		rows := make(map[string]bool, len(d.Observations))
		for _, o := range d.Observations {
			if rows[o.ID] {
				return fmt.Errorf("dataset %q: duplicate observation %q", d.ID, o.ID)
			}
			rows[o.ID] = true
			for v, val := range o.Values {
				if !columns[v] {
					return fmt.Errorf("dataset %q: observation %q uses unknown variable %q", d.ID, o.ID, v)
				}
				switch val {
				case ir.ValueZero, ir.ValueOne, ir.ValueAny:
				default:
					return fmt.Errorf("dataset %q: observation %q has invalid value %q", d.ID, o.ID, val)
				}
			}
		}
	}
	return nil
}

func setProperties(s ir.Sketch, cmd ir.Command, props []ir.Property, static bool) (change, error) {
	seen := make(map[string]bool, len(props))
	for _, p := range props {
		if p.ID == "" || seen[p.ID] {
			return change{}, rejectf(cmd, ErrCodeDuplicateID, "missing or duplicate property id %q", p.ID)
		}
		seen[p.ID] = true
		if p.Variant == nil || p.Kind().IsStatic() != static {
			return change{}, rejectf(cmd, ErrCodeInvalidArgument, "property %q has kind %q", p.ID, p.Kind())
		}
	}
	sorted := ir.SortProperties(props)

	if static {
		old := s.StaticProperties
		s.StaticProperties = sorted
		return change{
			sketch:  s,
			events:  []ir.Event{ir.StaticPropertiesRefreshed{Properties: sorted}},
			perform: []ir.Command{ir.SetStaticProperties{Properties: sorted}},
			reverse: []ir.Command{ir.SetStaticProperties{Properties: old}},
		}, nil
	}
	old := s.DynamicProperties
	s.DynamicProperties = sorted
	return change{
		sketch:  s,
		events:  []ir.Event{ir.DynamicPropertiesRefreshed{Properties: sorted}},
		perform: []ir.Command{ir.SetDynamicProperties{Properties: sorted}},
		reverse: []ir.Command{ir.SetDynamicProperties{Properties: old}},
	}, nil
}

func replaceSketch(s ir.Sketch, c ir.ReplaceSketch, v Validator) (change, error) {
	next := ir.Normalize(c.Sketch)
	if v != nil {
		if err := v.ValidateSketch(next); err != nil {
			return change{}, rejectf(c, ErrCodeInvalidArgument, "schema: %v", err)
		}
	}
	if errs := ir.CheckIntegrity(next); len(errs) > 0 {
		return change{}, rejectf(c, ErrCodeInvalidArgument, "integrity: %v", errs[0])
	}

	return change{
		sketch:  next,
		events:  []ir.Event{ir.SketchReplaced{Sketch: next}},
		perform: []ir.Command{ir.ReplaceSketch{Sketch: next}},
		reverse: []ir.Command{ir.ReplaceSketch{Sketch: s}},
	}, nil
}

// dropProperties removes the properties matching drop and reports whether
// any were removed.
func dropProperties(in []ir.Property, drop func(ir.Property) bool) ([]ir.Property, bool) {
	out := slices.DeleteFunc(slices.Clone(in), drop)
	if len(out) == len(in) {
		return in, false
	}
	return out, true
}

// withNode returns a copy of l with one node set.
func withNode(l ir.Layout, id string, pos ir.Position) ir.Layout {
	nodes := make(map[string]ir.Position, len(l.Nodes)+1)
	maps.Copy(nodes, l.Nodes)
	nodes[id] = pos
	l.Nodes = nodes
	return l
}
