// Package blood holds the ABO/Rh blood typing shared by the coordination
// domains.
package blood

// Type is one of the eight ABO/Rh blood types.
type Type string

const (
	APositive  Type = "A+"
	ANegative  Type = "A-"
	BPositive  Type = "B+"
	BNegative  Type = "B-"
	ABPositive Type = "AB+"
	ABNegative Type = "AB-"
	OPositive  Type = "O+"
	ONegative  Type = "O-"
)

// Types lists all eight blood types.
var Types = []Type{
	APositive, ANegative, BPositive, BNegative,
	ABPositive, ABNegative, OPositive, ONegative,
}

// Valid reports whether t is one of the eight ABO/Rh types.
func Valid(t Type) bool {
	for _, known := range Types {
		if t == known {
			return true
		}
	}
	return false
}

// CompatibleDonor reports whether a donor of the given blood group can serve
// an emergency asking for the needed type.
//
// The matching rule is donor-side: O- serves everything, identical types
// always match, O+ serves any Rh-positive need, A-group donors serve A-group
// needs, B-group donors serve B-group needs, and AB donors serve only their
// identical type. AB is deliberately excluded from cross-matching even though
// AB- is transfusion-compatible with AB+ recipients; callers rely on this
// exact rule.
func CompatibleDonor(donor, need Type) bool {
	if donor == need {
		return true
	}
	switch donor {
	case ONegative:
		return true
	case OPositive:
		return need == APositive || need == BPositive || need == ABPositive
	case APositive, ANegative:
		return need == APositive || need == ANegative
	case BPositive, BNegative:
		return need == BPositive || need == BNegative
	}
	return false
}
