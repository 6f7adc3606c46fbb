package ir

import (
	"encoding/json"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// PropertyKind names a property variant.
type PropertyKind string

// Dynamic property kinds.
const (
	KindGenericDynamic   PropertyKind = "GenericDynProp"
	KindFixedPoint       PropertyKind = "ExistsFixedPoint"
	KindTrapSpace        PropertyKind = "ExistsTrapSpace"
	KindExistsTrajectory PropertyKind = "ExistsTrajectory"
	KindAttractorCount   PropertyKind = "AttractorCount"
	KindHasAttractor     PropertyKind = "HasAttractor"
)

// Static property kinds.
const (
	KindGenericStatic       PropertyKind = "GenericStatProp"
	KindRegulationEssential PropertyKind = "RegulationEssential"
	KindRegulationMonotonic PropertyKind = "RegulationMonotonic"
	KindFnInputEssential    PropertyKind = "FnInputEssential"
	KindFnInputMonotonic    PropertyKind = "FnInputMonotonic"
)

// IsStatic reports whether the kind belongs to the static class.
func (k PropertyKind) IsStatic() bool {
	switch k {
	case KindGenericStatic, KindRegulationEssential, KindRegulationMonotonic,
		KindFnInputEssential, KindFnInputMonotonic:
		return true
	}
	return false
}

// PropertyVariant is the kind-specific part of a Property.
//
// Sealed: only types in this package implement it.
type PropertyVariant interface {
	Kind() PropertyKind
	propertyVariant()
}

// Property is a static or dynamic property attached to a sketch.
// The variant's parameters are opaque to the replica.
type Property struct {
	ID         string
	Name       string
	Annotation string
	Variant    PropertyVariant
}

// Kind returns the variant kind, or "" when no variant is set.
func (p Property) Kind() PropertyKind {
	if p.Variant == nil {
		return ""
	}
	return p.Variant.Kind()
}

// ReferencesRegulation reports whether the property is parameterized by the
// regulation with the given key.
func (p Property) ReferencesRegulation(key RegulationKey) bool {
	switch v := p.Variant.(type) {
	case RegulationEssential:
		return v.Input == key.Source && v.Target == key.Target
	case RegulationMonotonic:
		return v.Input == key.Source && v.Target == key.Target
	}
	return false
}

// WithVariableRenamed returns p with variable references old replaced by new.
func (p Property) WithVariableRenamed(old, new string) Property {
	rename := func(s string) string {
		if s == old {
			return new
		}
		return s
	}
	switch v := p.Variant.(type) {
	case RegulationEssential:
		v.Input, v.Target = rename(v.Input), rename(v.Target)
		p.Variant = v
	case RegulationMonotonic:
		v.Input, v.Target = rename(v.Input), rename(v.Target)
		p.Variant = v
	}
	return p
}

// GenericDynamic is a dynamic property given by a raw formula.
type GenericDynamic struct {
	Formula string `json:"formula"`
}

// FixedPoint requires a fixed point matching an observation.
// An empty Observation means every observation of the dataset.
type FixedPoint struct {
	Dataset     string `json:"dataset"`
	Observation string `json:"observation"`
}

// TrapSpace requires a trap space matching an observation.
type TrapSpace struct {
	Dataset       string `json:"dataset"`
	Observation   string `json:"observation"`
	Minimal       bool   `json:"minimal"`
	NonPercolable bool   `json:"non_percolable"`
}

// ExistsTrajectory requires a trajectory through the dataset's observations.
type ExistsTrajectory struct {
	Dataset string `json:"dataset"`
}

// AttractorCount bounds the number of attractors.
type AttractorCount struct {
	Minimal int `json:"minimal"`
	Maximal int `json:"maximal"`
}

// HasAttractor requires an attractor matching an observation.
type HasAttractor struct {
	Dataset     string `json:"dataset"`
	Observation string `json:"observation"`
}

// GenericStatic is a static property given by a raw formula.
type GenericStatic struct {
	Formula string `json:"formula"`
}

// RegulationEssential constrains the essentiality of the regulation Input -> Target.
type RegulationEssential struct {
	Input   string       `json:"input"`
	Target  string       `json:"target"`
	Value   Essentiality `json:"value"`
	Context string       `json:"context"`
}

// RegulationMonotonic constrains the sign of the regulation Input -> Target.
type RegulationMonotonic struct {
	Input   string       `json:"input"`
	Target  string       `json:"target"`
	Value   Monotonicity `json:"value"`
	Context string       `json:"context"`
}

// FnInputEssential constrains the essentiality of an uninterpreted function input.
type FnInputEssential struct {
	Input   int          `json:"input_index"`
	Target  string       `json:"target_fn"`
	Value   Essentiality `json:"value"`
	Context string       `json:"context"`
}

// FnInputMonotonic constrains the sign of an uninterpreted function input.
type FnInputMonotonic struct {
	Input   int          `json:"input_index"`
	Target  string       `json:"target_fn"`
	Value   Monotonicity `json:"value"`
	Context string       `json:"context"`
}

func (GenericDynamic) Kind() PropertyKind      { return KindGenericDynamic }
func (FixedPoint) Kind() PropertyKind          { return KindFixedPoint }
func (TrapSpace) Kind() PropertyKind           { return KindTrapSpace }
func (ExistsTrajectory) Kind() PropertyKind    { return KindExistsTrajectory }
func (AttractorCount) Kind() PropertyKind      { return KindAttractorCount }
func (HasAttractor) Kind() PropertyKind        { return KindHasAttractor }
func (GenericStatic) Kind() PropertyKind       { return KindGenericStatic }
func (RegulationEssential) Kind() PropertyKind { return KindRegulationEssential }
func (RegulationMonotonic) Kind() PropertyKind { return KindRegulationMonotonic }
func (FnInputEssential) Kind() PropertyKind    { return KindFnInputEssential }
func (FnInputMonotonic) Kind() PropertyKind    { return KindFnInputMonotonic }

func (GenericDynamic) propertyVariant()      {}
func (FixedPoint) propertyVariant()          {}
func (TrapSpace) propertyVariant()           {}
func (ExistsTrajectory) propertyVariant()    {}
func (AttractorCount) propertyVariant()      {}
func (HasAttractor) propertyVariant()        {}
func (GenericStatic) propertyVariant()       {}
func (RegulationEssential) propertyVariant() {}
func (RegulationMonotonic) propertyVariant() {}
func (FnInputEssential) propertyVariant()    {}
func (FnInputMonotonic) propertyVariant()    {}

// propertyJSON is the wire form of a Property.
type propertyJSON struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Annotation string          `json:"annotation"`
	Variant    PropertyKind    `json:"variant"`
	Params     json.RawMessage `json:"params"`
}

// MarshalJSON implements json.Marshaler.
func (p Property) MarshalJSON() ([]byte, error) {
	if p.Variant == nil {
		return nil, fmt.Errorf("property %q: missing variant", p.ID)
	}
	params, err := json.Marshal(p.Variant)
	if err != nil {
		return nil, fmt.Errorf("property %q: %w", p.ID, err)
	}
	return json.Marshal(propertyJSON{
		ID:         p.ID,
		Name:       p.Name,
		Annotation: p.Annotation,
		Variant:    p.Variant.Kind(),
		Params:     params,
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *Property) UnmarshalJSON(data []byte) error {
	var w propertyJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	v, err := decodeVariant(w.Variant, w.Params, json.Unmarshal)
	if err != nil {
		return fmt.Errorf("property %q: %w", w.ID, err)
	}
	*p = Property{ID: w.ID, Name: w.Name, Annotation: w.Annotation, Variant: v}
	return nil
}

// propertyCBOR is the CBOR form of a Property, used for journal snapshots.
type propertyCBOR struct {
	ID         string          `cbor:"id"`
	Name       string          `cbor:"name"`
	Annotation string          `cbor:"annotation"`
	Variant    PropertyKind    `cbor:"variant"`
	Params     cbor.RawMessage `cbor:"params"`
}

// MarshalCBOR implements cbor.Marshaler.
func (p Property) MarshalCBOR() ([]byte, error) {
	if p.Variant == nil {
		return nil, fmt.Errorf("property %q: missing variant", p.ID)
	}
	params, err := cbor.Marshal(p.Variant)
	if err != nil {
		return nil, fmt.Errorf("property %q: %w", p.ID, err)
	}
	return cbor.Marshal(propertyCBOR{
		ID:         p.ID,
		Name:       p.Name,
		Annotation: p.Annotation,
		Variant:    p.Variant.Kind(),
		Params:     params,
	})
}

// UnmarshalCBOR implements cbor.Unmarshaler.
func (p *Property) UnmarshalCBOR(data []byte) error {
	var w propertyCBOR
	if err := cbor.Unmarshal(data, &w); err != nil {
		return err
	}
	v, err := decodeVariant(w.Variant, w.Params, cbor.Unmarshal)
	if err != nil {
		return fmt.Errorf("property %q: %w", w.ID, err)
	}
	*p = Property{ID: w.ID, Name: w.Name, Annotation: w.Annotation, Variant: v}
	return nil
}

func decodeVariant(kind PropertyKind, params []byte, unmarshal func([]byte, any) error) (PropertyVariant, error) {
	switch kind {
	case KindGenericDynamic:
		return decodeAs[GenericDynamic](params, unmarshal)
	case KindFixedPoint:
		return decodeAs[FixedPoint](params, unmarshal)
	case KindTrapSpace:
		return decodeAs[TrapSpace](params, unmarshal)
	case KindExistsTrajectory:
		return decodeAs[ExistsTrajectory](params, unmarshal)
	case KindAttractorCount:
		return decodeAs[AttractorCount](params, unmarshal)
	case KindHasAttractor:
		return decodeAs[HasAttractor](params, unmarshal)
	case KindGenericStatic:
		return decodeAs[GenericStatic](params, unmarshal)
	case KindRegulationEssential:
		return decodeAs[RegulationEssential](params, unmarshal)
	case KindRegulationMonotonic:
		return decodeAs[RegulationMonotonic](params, unmarshal)
	case KindFnInputEssential:
		return decodeAs[FnInputEssential](params, unmarshal)
	case KindFnInputMonotonic:
		return decodeAs[FnInputMonotonic](params, unmarshal)
	default:
		return nil, fmt.Errorf("unknown property variant %q", kind)
	}
}

func decodeAs[V PropertyVariant](params []byte, unmarshal func([]byte, any) error) (PropertyVariant, error) {
	var v V
	if len(params) > 0 {
		if err := unmarshal(params, &v); err != nil {
			return nil, fmt.Errorf("params for %s: %w", v.Kind(), err)
		}
	}
	return v, nil
}
