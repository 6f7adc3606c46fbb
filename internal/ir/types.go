package ir

import (
	"cmp"
	"fmt"
	"maps"
	"slices"
	"strings"
)

// DefaultLayoutID is the identifier of the single layout every sketch carries.
const DefaultLayoutID = "default"

// Variable is a node of the regulatory network.
type Variable struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Annotation string `json:"annotation"`
	UpdateFn   string `json:"update_fn"`
}

// Regulation is a directed edge between two variables.
// At most one regulation exists per (source, target) pair.
type Regulation struct {
	Source       string       `json:"source"`
	Target       string       `json:"target"`
	Essential    Essentiality `json:"essential"`
	Monotonicity Monotonicity `json:"monotonicity"`
}

// Key returns the identity of the regulation.
func (r Regulation) Key() RegulationKey {
	return RegulationKey{Source: r.Source, Target: r.Target}
}

// RegulationKey identifies a regulation by its endpoints.
type RegulationKey struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// String renders the key as "source -> target".
func (k RegulationKey) String() string {
	return k.Source + " -> " + k.Target
}

// Position is a node position in a layout.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Layout maps variable ids to positions. Nodes is in bijection with the
// sketch's variables.
type Layout struct {
	ID    string              `json:"id"`
	Name  string              `json:"name"`
	Nodes map[string]Position `json:"nodes"`
}

// UninterpretedFn is a named function symbol usable in update functions.
type UninterpretedFn struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Annotation string `json:"annotation"`
	Arity      int    `json:"arity"`
	Expression string `json:"expression"`
}

// Observation is one row of a dataset. Values is sparse: variables without
// an entry are unobserved.
type Observation struct {
	ID         string            `json:"id"`
	Annotation string            `json:"annotation"`
	Values     map[string]string `json:"values"`
}

// Observed values allowed in an Observation.
const (
	ValueZero = "0"
	ValueOne  = "1"
	ValueAny  = "*"
)

// Dataset is an ordered list of observations over a set of variables.
type Dataset struct {
	ID           string        `json:"id"`
	Annotation   string        `json:"annotation"`
	Variables    []string      `json:"variables"`
	Observations []Observation `json:"observations"`
}

// Model is the network part of a sketch.
type Model struct {
	Variables   []Variable        `json:"variables"`
	Regulations []Regulation      `json:"regulations"`
	Functions   []UninterpretedFn `json:"uninterpreted_fns"`
	Layout      Layout            `json:"layout"`
}

// Sketch is the complete document synchronized between backend and replica.
type Sketch struct {
	Model             Model      `json:"model"`
	Datasets          []Dataset  `json:"datasets"`
	StaticProperties  []Property `json:"stat_properties"`
	DynamicProperties []Property `json:"dyn_properties"`
}

// NewSketch returns an empty, normalized sketch.
func NewSketch() Sketch {
	return Normalize(Sketch{})
}

// Normalize returns a copy of s with every collection non-nil and sorted in
// display order. The input is not modified.
func Normalize(s Sketch) Sketch {
	return Sketch{
		Model:             NormalizeModel(s.Model),
		Datasets:          SortDatasets(s.Datasets),
		StaticProperties:  SortProperties(s.StaticProperties),
		DynamicProperties: SortProperties(s.DynamicProperties),
	}
}

// NormalizeModel is Normalize for the model part.
func NormalizeModel(m Model) Model {
	return Model{
		Variables:   SortVariables(m.Variables),
		Regulations: SortRegulations(m.Regulations),
		Functions:   SortFunctions(m.Functions),
		Layout:      NormalizeLayout(m.Layout),
	}
}

// NormalizeLayout copies the node map and fills in the default id.
func NormalizeLayout(l Layout) Layout {
	out := Layout{ID: l.ID, Name: l.Name, Nodes: make(map[string]Position, len(l.Nodes))}
	if out.ID == "" {
		out.ID = DefaultLayoutID
	}
	if out.Name == "" {
		out.Name = out.ID
	}
	maps.Copy(out.Nodes, l.Nodes)
	return out
}

// SortVariables returns a sorted copy ordered by id.
func SortVariables(in []Variable) []Variable {
	out := cloneSlice(in)
	slices.SortFunc(out, func(a, b Variable) int { return strings.Compare(a.ID, b.ID) })
	return out
}

// SortRegulations returns a sorted copy ordered by source+target, with the
// source breaking ties between concatenations that collide.
func SortRegulations(in []Regulation) []Regulation {
	out := cloneSlice(in)
	slices.SortFunc(out, compareRegulations)
	return out
}

func compareRegulations(a, b Regulation) int {
	return cmp.Or(
		strings.Compare(a.Source+a.Target, b.Source+b.Target),
		strings.Compare(a.Source, b.Source),
	)
}

// SortFunctions returns a sorted copy ordered by id.
func SortFunctions(in []UninterpretedFn) []UninterpretedFn {
	out := cloneSlice(in)
	slices.SortFunc(out, func(a, b UninterpretedFn) int { return strings.Compare(a.ID, b.ID) })
	return out
}

// SortDatasets returns a sorted copy ordered by id.
func SortDatasets(in []Dataset) []Dataset {
	out := cloneSlice(in)
	slices.SortFunc(out, func(a, b Dataset) int { return strings.Compare(a.ID, b.ID) })
	return out
}

// SortProperties returns a sorted copy ordered by id.
func SortProperties(in []Property) []Property {
	out := cloneSlice(in)
	slices.SortFunc(out, func(a, b Property) int { return strings.Compare(a.ID, b.ID) })
	return out
}

// cloneSlice copies in, returning an empty non-nil slice for nil input.
func cloneSlice[T any](in []T) []T {
	out := make([]T, len(in))
	copy(out, in)
	return out
}

// FindVariable returns the index of the variable with the given id, or -1.
func (m Model) FindVariable(id string) int {
	return slices.IndexFunc(m.Variables, func(v Variable) bool { return v.ID == id })
}

// FindRegulation returns the index of the regulation with the given key, or -1.
func (m Model) FindRegulation(key RegulationKey) int {
	return slices.IndexFunc(m.Regulations, func(r Regulation) bool { return r.Key() == key })
}

// FindFunction returns the index of the function with the given id, or -1.
func (m Model) FindFunction(id string) int {
	return slices.IndexFunc(m.Functions, func(f UninterpretedFn) bool { return f.ID == id })
}

// IntegrityError describes one violated structural invariant of a sketch.
type IntegrityError struct {
	Kind    string
	Subject string
}

func (e IntegrityError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Subject)
}

// Integrity violation kinds.
const (
	IntegrityDuplicateID      = "duplicate_id"
	IntegrityDanglingEndpoint = "dangling_endpoint"
	IntegrityDuplicateKey     = "duplicate_regulation"
	IntegrityLayoutMismatch   = "layout_mismatch"
)

// CheckIntegrity reports every violated structural invariant: unique
// variable and function ids, unique regulation keys, regulation endpoints
// that exist, and a layout in bijection with the variables.
// Returns nil for a consistent sketch.
func CheckIntegrity(s Sketch) []IntegrityError {
	var errs []IntegrityError
	m := s.Model

	vars := make(map[string]bool, len(m.Variables))
	for _, v := range m.Variables {
		if vars[v.ID] {
			errs = append(errs, IntegrityError{Kind: IntegrityDuplicateID, Subject: "variable " + v.ID})
		}
		vars[v.ID] = true
	}

	fns := make(map[string]bool, len(m.Functions))
	for _, f := range m.Functions {
		if fns[f.ID] {
			errs = append(errs, IntegrityError{Kind: IntegrityDuplicateID, Subject: "function " + f.ID})
		}
		fns[f.ID] = true
	}

	keys := make(map[RegulationKey]bool, len(m.Regulations))
	for _, r := range m.Regulations {
		if keys[r.Key()] {
			errs = append(errs, IntegrityError{Kind: IntegrityDuplicateKey, Subject: r.Key().String()})
		}
		keys[r.Key()] = true
		if !vars[r.Source] {
			errs = append(errs, IntegrityError{Kind: IntegrityDanglingEndpoint, Subject: r.Key().String() + " (source)"})
		}
		if !vars[r.Target] {
			errs = append(errs, IntegrityError{Kind: IntegrityDanglingEndpoint, Subject: r.Key().String() + " (target)"})
		}
	}

	for id := range vars {
		if _, ok := m.Layout.Nodes[id]; !ok {
			errs = append(errs, IntegrityError{Kind: IntegrityLayoutMismatch, Subject: "no node for " + id})
		}
	}
	for _, id := range slices.Sorted(maps.Keys(m.Layout.Nodes)) {
		if !vars[id] {
			errs = append(errs, IntegrityError{Kind: IntegrityLayoutMismatch, Subject: "orphan node " + id})
		}
	}

	slices.SortStableFunc(errs, func(a, b IntegrityError) int {
		return cmp.Or(strings.Compare(a.Kind, b.Kind), strings.Compare(a.Subject, b.Subject))
	})
	return errs
}
