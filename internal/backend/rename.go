package backend

import (
	"fmt"
	"maps"
	"regexp"
	"slices"

	"github.com/roach88/sketchsync/internal/ir"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// validID reports whether id can name a variable or function.
func validID(id string) bool {
	return identifierPattern.MatchString(id)
}

// mentions reports whether expr references id as a whole identifier.
func mentions(expr, id string) bool {
	return identifierRef(id).MatchString(expr)
}

// renameInExpression replaces whole-identifier occurrences of old in expr.
// Substrings of longer identifiers are left alone.
func renameInExpression(expr, old, new string) string {
	return identifierRef(old).ReplaceAllLiteralString(expr, new)
}

func identifierRef(id string) *regexp.Regexp {
	return regexp.MustCompile(`\b` + regexp.QuoteMeta(id) + `\b`)
}

// freshID returns prefix_N for the smallest N not used by taken.
func freshID(prefix string, taken func(string) bool) string {
	for n := 0; ; n++ {
		id := fmt.Sprintf("%s_%d", prefix, n)
		if !taken(id) {
			return id
		}
	}
}

// renamedVariable is the sketch after renaming a variable and the parts of
// it that changed outside the model.
type renamedVariable struct {
	sketch          ir.Sketch
	datasetsChanged bool
	staticChanged   bool
	dynamicChanged  bool
}

// renameVariable rewrites every reference to old: the variable itself,
// regulation endpoints, the layout node, update functions, dataset columns
// and regulation properties.
func renameVariable(s ir.Sketch, old, new string) renamedVariable {
	m := s.Model

	vars := slices.Clone(m.Variables)
	for i := range vars {
		if vars[i].ID == old {
			vars[i].ID = new
		}
		vars[i].UpdateFn = renameInExpression(vars[i].UpdateFn, old, new)
	}
	m.Variables = ir.SortVariables(vars)

	regs := slices.Clone(m.Regulations)
	for i := range regs {
		if regs[i].Source == old {
			regs[i].Source = new
		}
		if regs[i].Target == old {
			regs[i].Target = new
		}
	}
	m.Regulations = ir.SortRegulations(regs)

	nodes := maps.Clone(m.Layout.Nodes)
	if pos, ok := nodes[old]; ok {
		delete(nodes, old)
		nodes[new] = pos
	}
	m.Layout.Nodes = nodes
	s.Model = m

	out := renamedVariable{}
	s.Datasets, out.datasetsChanged = renameInDatasets(s.Datasets, old, new)
	s.StaticProperties, out.staticChanged = mapProperties(s.StaticProperties, func(p ir.Property) ir.Property {
		return p.WithVariableRenamed(old, new)
	})
	s.DynamicProperties, out.dynamicChanged = mapProperties(s.DynamicProperties, func(p ir.Property) ir.Property {
		return p.WithVariableRenamed(old, new)
	})
	out.sketch = s
	return out
}

func renameInDatasets(in []ir.Dataset, old, new string) ([]ir.Dataset, bool) {
	changed := false
	out := slices.Clone(in)
	for i, d := range out {
		j := slices.Index(d.Variables, old)
		if j < 0 {
			continue
		}
		changed = true
		d.Variables = slices.Clone(d.Variables)
		d.Variables[j] = new
		obs := slices.Clone(d.Observations)
		for k := range obs {
			if v, ok := obs[k].Values[old]; ok {
				values := maps.Clone(obs[k].Values)
				delete(values, old)
				values[new] = v
				obs[k].Values = values
			}
		}
		d.Observations = obs
		out[i] = d
	}
	if !changed {
		return in, false
	}
	return out, true
}

// renameFunction rewrites every reference to the function old: the function
// itself, update function expressions and function input properties.
func renameFunction(s ir.Sketch, old, new string) (ir.Sketch, bool) {
	m := s.Model

	fns := slices.Clone(m.Functions)
	for i := range fns {
		if fns[i].ID == old {
			fns[i].ID = new
		}
		fns[i].Expression = renameInExpression(fns[i].Expression, old, new)
	}
	m.Functions = ir.SortFunctions(fns)

	vars := slices.Clone(m.Variables)
	for i := range vars {
		vars[i].UpdateFn = renameInExpression(vars[i].UpdateFn, old, new)
	}
	m.Variables = vars
	s.Model = m

	var changed bool
	s.StaticProperties, changed = mapProperties(s.StaticProperties, func(p ir.Property) ir.Property {
		switch v := p.Variant.(type) {
		case ir.FnInputEssential:
			if v.Target == old {
				v.Target = new
				p.Variant = v
			}
		case ir.FnInputMonotonic:
			if v.Target == old {
				v.Target = new
				p.Variant = v
			}
		}
		return p
	})
	return s, changed
}

// mapProperties applies f to every property and reports whether any
// property changed.
func mapProperties(in []ir.Property, f func(ir.Property) ir.Property) ([]ir.Property, bool) {
	out := make([]ir.Property, len(in))
	changed := false
	for i, p := range in {
		out[i] = f(p)
		if out[i] != p {
			changed = true
		}
	}
	if !changed {
		return in, false
	}
	return out, true
}
