package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSketchIsEmptyAndNonNil(t *testing.T) {
	s := NewSketch()

	assert.NotNil(t, s.Model.Variables)
	assert.NotNil(t, s.Model.Regulations)
	assert.NotNil(t, s.Model.Functions)
	assert.NotNil(t, s.Model.Layout.Nodes)
	assert.NotNil(t, s.Datasets)
	assert.NotNil(t, s.StaticProperties)
	assert.NotNil(t, s.DynamicProperties)
	assert.Equal(t, DefaultLayoutID, s.Model.Layout.ID)
	assert.Empty(t, CheckIntegrity(s))
}

func TestNormalizeSortsWithoutMutating(t *testing.T) {
	vars := []Variable{{ID: "C"}, {ID: "A"}, {ID: "B"}}
	s := Sketch{Model: Model{Variables: vars}}

	n := Normalize(s)

	assert.Equal(t, []string{"A", "B", "C"}, []string{n.Model.Variables[0].ID, n.Model.Variables[1].ID, n.Model.Variables[2].ID})
	assert.Equal(t, "C", vars[0].ID, "input slice must not be reordered")
}

func TestSortRegulationsConcatenationOrder(t *testing.T) {
	regs := []Regulation{
		{Source: "b", Target: "a"},
		{Source: "a", Target: "bc"},
		{Source: "ab", Target: "c"},
		{Source: "a", Target: "a"},
	}

	sorted := SortRegulations(regs)

	keys := make([]string, len(sorted))
	for i, r := range sorted {
		keys[i] = r.Key().String()
	}
	// "abc" collides; the shorter source sorts first
	assert.Equal(t, []string{"a -> a", "a -> bc", "ab -> c", "b -> a"}, keys)
}

func TestCheckIntegrity(t *testing.T) {
	s := Sketch{Model: Model{
		Variables: []Variable{{ID: "A"}, {ID: "A"}, {ID: "B"}},
		Regulations: []Regulation{
			{Source: "A", Target: "C"},
		},
		Layout: Layout{Nodes: map[string]Position{"A": {}, "Z": {}}},
	}}

	errs := CheckIntegrity(s)
	require.Len(t, errs, 4)

	kinds := map[string]int{}
	for _, e := range errs {
		kinds[e.Kind]++
	}
	assert.Equal(t, 1, kinds[IntegrityDanglingEndpoint])
	assert.Equal(t, 1, kinds[IntegrityDuplicateID])
	assert.Equal(t, 2, kinds[IntegrityLayoutMismatch], "B has no node and Z is an orphan")
}

func TestEssentialityNextCycles(t *testing.T) {
	e := EssentialTrue
	seen := []Essentiality{e}
	for range 3 {
		e = e.Next()
		seen = append(seen, e)
	}
	assert.Equal(t, []Essentiality{EssentialTrue, EssentialFalse, EssentialUnknown, EssentialTrue}, seen)
	assert.Equal(t, EssentialTrue, Essentiality("").Next())
	assert.False(t, Essentiality("maybe").Valid())
}

func TestMonotonicityNextCycles(t *testing.T) {
	m := MonotonicityActivation
	for range 4 {
		m = m.Next()
		assert.True(t, m.Valid())
	}
	assert.Equal(t, MonotonicityActivation, m)
	assert.Equal(t, MonotonicityInhibition, MonotonicityActivation.Next())
}

func TestModelFind(t *testing.T) {
	m := NormalizeModel(Model{
		Variables:   []Variable{{ID: "B"}, {ID: "A"}},
		Regulations: []Regulation{{Source: "A", Target: "B"}},
		Functions:   []UninterpretedFn{{ID: "f"}},
	})

	assert.Equal(t, 1, m.FindVariable("B"))
	assert.Equal(t, -1, m.FindVariable("C"))
	assert.Equal(t, 0, m.FindRegulation(RegulationKey{Source: "A", Target: "B"}))
	assert.Equal(t, -1, m.FindRegulation(RegulationKey{Source: "B", Target: "A"}))
	assert.Equal(t, 0, m.FindFunction("f"))
}
