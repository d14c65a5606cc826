package condition

// Tristate is the result of evaluating a condition under three-valued logic.
// The zero value is Unknown so an unset result never reads as a match.
type Tristate uint8

const (
	Unknown Tristate = iota
	False
	True
)

// FromBool converts a definite boolean into a Tristate.
func FromBool(b bool) Tristate {
	if b {
		return True
	}
	return False
}

// Not negates a definite result; Unknown stays Unknown.
func (t Tristate) Not() Tristate {
	switch t {
	case True:
		return False
	case False:
		return True
	default:
		return Unknown
	}
}

// IsTrue reports whether t is definitely true.
func (t Tristate) IsTrue() bool { return t == True }

func (t Tristate) String() string {
	switch t {
	case True:
		return "TRUE"
	case False:
		return "FALSE"
	default:
		return "UNKNOWN"
	}
}
