package ir

// Essentiality states whether a regulation's source is essential for its
// target.
type Essentiality string

const (
	EssentialTrue    Essentiality = "True"
	EssentialFalse   Essentiality = "False"
	EssentialUnknown Essentiality = "Unknown"
)

// Valid reports whether e is one of the known values.
func (e Essentiality) Valid() bool {
	switch e {
	case EssentialTrue, EssentialFalse, EssentialUnknown:
		return true
	}
	return false
}

// Next cycles True -> False -> Unknown -> True. Used by the toggle intent.
func (e Essentiality) Next() Essentiality {
	switch e {
	case EssentialTrue:
		return EssentialFalse
	case EssentialFalse:
		return EssentialUnknown
	default:
		return EssentialTrue
	}
}

// Monotonicity is the sign of a regulation.
type Monotonicity string

const (
	MonotonicityActivation  Monotonicity = "Activation"
	MonotonicityInhibition  Monotonicity = "Inhibition"
	MonotonicityDual        Monotonicity = "Dual"
	MonotonicityUnspecified Monotonicity = "Unspecified"
)

// Valid reports whether m is one of the known values.
func (m Monotonicity) Valid() bool {
	switch m {
	case MonotonicityActivation, MonotonicityInhibition, MonotonicityDual, MonotonicityUnspecified:
		return true
	}
	return false
}

// Next cycles Activation -> Inhibition -> Dual -> Unspecified -> Activation.
func (m Monotonicity) Next() Monotonicity {
	switch m {
	case MonotonicityActivation:
		return MonotonicityInhibition
	case MonotonicityInhibition:
		return MonotonicityDual
	case MonotonicityDual:
		return MonotonicityUnspecified
	default:
		return MonotonicityActivation
	}
}
