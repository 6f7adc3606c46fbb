package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSketch() Sketch {
	return Sketch{
		Model: Model{
			Variables: []Variable{
				{ID: "B", Name: "B", UpdateFn: "A"},
				{ID: "A", Name: "A"},
			},
			Regulations: []Regulation{
				{Source: "A", Target: "B", Essential: EssentialTrue, Monotonicity: MonotonicityActivation},
			},
			Layout: Layout{ID: DefaultLayoutID, Nodes: map[string]Position{"A": {X: 1, Y: 2}, "B": {X: 3.5, Y: 4}}},
		},
		StaticProperties: []Property{
			{ID: "p1", Name: "ess", Variant: RegulationEssential{Input: "A", Target: "B", Value: EssentialTrue}},
		},
	}
}

func TestFingerprintDeterminism(t *testing.T) {
	s := sampleSketch()

	fp1, err := Fingerprint(s)
	require.NoError(t, err)
	fp2, err := Fingerprint(s)
	require.NoError(t, err)

	assert.Equal(t, fp1, fp2, "Fingerprint must be deterministic")
	assert.Len(t, fp1, 64, "SHA-256 hex is 64 characters")
}

func TestFingerprintIgnoresOrderAndNilCollections(t *testing.T) {
	s := sampleSketch()
	normalized := Normalize(s)

	fp1, err := Fingerprint(s)
	require.NoError(t, err)
	fp2, err := Fingerprint(normalized)
	require.NoError(t, err)

	assert.Equal(t, fp1, fp2)
}

func TestFingerprintChangesWithContent(t *testing.T) {
	s := sampleSketch()
	fp1, err := Fingerprint(s)
	require.NoError(t, err)

	s.Model.Layout.Nodes = map[string]Position{"A": {X: 1, Y: 2}, "B": {X: 3.5, Y: 5}}
	fp2, err := Fingerprint(s)
	require.NoError(t, err)

	assert.NotEqual(t, fp1, fp2, "moving a node must change the fingerprint")
}

func TestHashWithDomainSeparation(t *testing.T) {
	data := []byte(`{"a":1}`)
	assert.NotEqual(t, hashWithDomain(DomainSketch, data), hashWithDomain(DomainCommand, data))
}

func TestCommandDigest(t *testing.T) {
	d1, err := CommandDigest(RemoveVariable{ID: "A"})
	require.NoError(t, err)
	d2, err := CommandDigest(RemoveVariable{ID: "B"})
	require.NoError(t, err)
	assert.NotEqual(t, d1, d2)
}
