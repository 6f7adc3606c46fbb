package ir

import (
	"encoding/json"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPropertyJSONShape(t *testing.T) {
	p := Property{
		ID:      "fp",
		Name:    "fixed point",
		Variant: FixedPoint{Dataset: "d1", Observation: "o1"},
	}

	data, err := json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"id": "fp",
		"name": "fixed point",
		"annotation": "",
		"variant": "ExistsFixedPoint",
		"params": {"dataset": "d1", "observation": "o1"}
	}`, string(data))

	var back Property
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, p, back)
}

func TestPropertyUnknownVariant(t *testing.T) {
	var p Property
	err := json.Unmarshal([]byte(`{"id":"x","variant":"Telepathy","params":{}}`), &p)
	assert.ErrorContains(t, err, "unknown property variant")
}

func TestPropertyMissingVariant(t *testing.T) {
	_, err := json.Marshal(Property{ID: "x"})
	assert.Error(t, err)
}

func TestPropertyCBOR(t *testing.T) {
	props := []Property{
		{ID: "a", Variant: TrapSpace{Dataset: "d", Minimal: true, NonPercolable: true}},
		{ID: "b", Variant: AttractorCount{Minimal: 1, Maximal: 3}},
		{ID: "c", Variant: FnInputMonotonic{Input: 2, Target: "f", Value: MonotonicityDual}},
	}

	data, err := cbor.Marshal(props)
	require.NoError(t, err)

	var back []Property
	require.NoError(t, cbor.Unmarshal(data, &back))
	assert.Equal(t, props, back)
}

func TestPropertyKindClass(t *testing.T) {
	assert.True(t, KindRegulationEssential.IsStatic())
	assert.True(t, KindGenericStatic.IsStatic())
	assert.False(t, KindFixedPoint.IsStatic())
	assert.False(t, KindGenericDynamic.IsStatic())
}

func TestPropertyReferencesRegulation(t *testing.T) {
	ess := Property{ID: "p", Variant: RegulationEssential{Input: "A", Target: "B"}}
	mono := Property{ID: "q", Variant: RegulationMonotonic{Input: "B", Target: "A"}}
	generic := Property{ID: "r", Variant: GenericStatic{Formula: "A -> B"}}

	key := RegulationKey{Source: "A", Target: "B"}
	assert.True(t, ess.ReferencesRegulation(key))
	assert.False(t, mono.ReferencesRegulation(key))
	assert.False(t, generic.ReferencesRegulation(key))
}

func TestPropertyWithVariableRenamed(t *testing.T) {
	p := Property{ID: "p", Variant: RegulationMonotonic{Input: "A", Target: "A", Value: MonotonicityActivation}}

	renamed := p.WithVariableRenamed("A", "Z")

	assert.Equal(t, RegulationMonotonic{Input: "Z", Target: "Z", Value: MonotonicityActivation}, renamed.Variant)
	assert.Equal(t, RegulationMonotonic{Input: "A", Target: "A", Value: MonotonicityActivation}, p.Variant, "original untouched")
}
