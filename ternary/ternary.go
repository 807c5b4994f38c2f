// Package ternary implements the three-valued presence lattice used by the
// causality pass's constructive fixed-point check: Bottom (not yet
// determined) sqsubseteq Absent, sqsubseteq Present(v); two distinct
// Present values are incomparable.
package ternary

import (
	"fmt"

	"github.com/regelum-go/regelum/value"
)

// Presence tags the three cases of V3.
type Presence int

const (
	// Bottom is the least element: not yet determined by the constructive
	// iteration.
	Bottom Presence = iota
	// AbsentP means the constructive iteration has determined the value is
	// definitely Absent this tick.
	AbsentP
	// PresentP means the constructive iteration has determined a concrete
	// value this tick.
	PresentP
)

func (p Presence) String() string {
	switch p {
	case Bottom:
		return "⊥"
	case AbsentP:
		return "absent"
	case PresentP:
		return "present"
	default:
		return "invalid"
	}
}

// V3 is one element of the presence lattice.
type V3 struct {
	presence Presence
	val      value.Value
}

// BottomV is the zero value of V3 (Bottom, no value).
var BottomV = V3{presence: Bottom}

// AbsentV constructs a Present... no, an Absent V3.
func AbsentV() V3 { return V3{presence: AbsentP} }

// Present constructs a Present(v) V3.
func Present(v value.Value) V3 { return V3{presence: PresentP, val: v} }

// FromConcrete lifts a concrete, fully-evaluated value (which may itself be
// value.Absent) into the lattice.
func FromConcrete(v value.Value) V3 {
	if value.IsAbsent(v) {
		return AbsentV()
	}
	return Present(v)
}

// Presence reports which case this V3 occupies.
func (v V3) Presence() Presence { return v.presence }

// IsBottom reports whether v is the least element.
func (v V3) IsBottom() bool { return v.presence == Bottom }

// IsAbsent reports whether v is definitely Absent.
func (v V3) IsAbsent() bool { return v.presence == AbsentP }

// IsPresent reports whether v carries a concrete value.
func (v V3) IsPresent() bool { return v.presence == PresentP }

// Value returns the carried value; only meaningful when IsPresent is true.
func (v V3) Value() value.Value { return v.val }

func (v V3) String() string {
	switch v.presence {
	case Bottom:
		return "⊥"
	case AbsentP:
		return "absent"
	default:
		return fmt.Sprintf("present(%v)", v.val)
	}
}

// Conflict is returned by Join when two incomparable Present values meet;
// the constructive check must treat this as outright failure, never as a
// silent fallback to Bottom.
type Conflict struct {
	A, B V3
}

func (c Conflict) Error() string {
	return fmt.Sprintf("ternary: conflicting presences %s vs %s", c.A, c.B)
}

// Join computes the least upper bound of a and b under sqsubseteq. It is
// associative and commutative. A conflict between two distinct Present
// values, or between Absent and Present, is reported as an error rather
// than silently resolved — soundness of the constructive causality check
// depends on conflicts aborting instead of collapsing to Bottom.
func Join(a, b V3) (V3, error) {
	if a.presence == Bottom {
		return b, nil
	}
	if b.presence == Bottom {
		return a, nil
	}
	if a.presence == AbsentP && b.presence == AbsentP {
		return AbsentV(), nil
	}
	if a.presence == PresentP && b.presence == PresentP {
		if value.Equal(a.val, b.val) {
			return a, nil
		}
		return V3{}, Conflict{A: a, B: b}
	}
	// One Absent, one Present: not comparable, a genuine conflict.
	return V3{}, Conflict{A: a, B: b}
}
