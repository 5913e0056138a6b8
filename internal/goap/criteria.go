package goap

import "math"

// Stock checkers and comparers for numeric properties. Scenario content
// composes these; fully custom Checker/Comparer funcs remain first-class.

// Above returns a Checker satisfied when the value is strictly greater than
// threshold. Non-numeric values never satisfy.
func Above(threshold float64) Checker {
	return func(value any) bool {
		v, ok := Number(value)
		return ok && v > threshold
	}
}

// AtLeast returns a Checker satisfied when the value is >= threshold.
func AtLeast(threshold float64) Checker {
	return func(value any) bool {
		v, ok := Number(value)
		return ok && v >= threshold
	}
}

// Below returns a Checker satisfied when the value is strictly less than
// threshold.
func Below(threshold float64) Checker {
	return func(value any) bool {
		v, ok := Number(value)
		return ok && v < threshold
	}
}

// AtMost returns a Checker satisfied when the value is <= threshold.
func AtMost(threshold float64) Checker {
	return func(value any) bool {
		v, ok := Number(value)
		return ok && v <= threshold
	}
}

// EqualTo returns a Checker satisfied when the value equals target exactly.
func EqualTo(target float64) Checker {
	return func(value any) bool {
		v, ok := Number(value)
		return ok && v == target
	}
}

// Between returns a Checker satisfied when lo <= value <= hi.
//
// Precondition: lo <= hi.
func Between(lo, hi float64) Checker {
	if lo > hi {
		panic("goap.Between: lo must not exceed hi")
	}
	return func(value any) bool {
		v, ok := Number(value)
		return ok && v >= lo && v <= hi
	}
}

// conceptNumber reads the bound property from the concept's target store.
func conceptNumber(c *Concept, target Target, property string) (float64, bool) {
	if target == TargetWorld {
		return NumberAt(c.World, property)
	}
	return NumberAt(c.Agent, property)
}

// compareFloat orders two floats: Greater when a wins.
func compareFloat(a, b float64) Ordering {
	switch {
	case a > b:
		return Greater
	case a < b:
		return Less
	default:
		return Equal
	}
}

// comparePresence breaks ties when one side is missing the property: a
// present value beats an absent one.
func comparePresence(okA, okB bool) Ordering {
	switch {
	case okA && !okB:
		return Greater
	case okB && !okA:
		return Less
	default:
		return Equal
	}
}

// numericComparer builds a Comparer from a value transform and a direction.
func numericComparer(target Target, property string, transform func(float64) float64, higherWins bool) Comparer {
	return func(a, b *Concept) Ordering {
		va, okA := conceptNumber(a, target, property)
		vb, okB := conceptNumber(b, target, property)
		if !okA || !okB {
			return comparePresence(okA, okB)
		}
		if transform != nil {
			va = transform(va)
			vb = transform(vb)
		}
		if higherWins {
			return compareFloat(va, vb)
		}
		return compareFloat(vb, va)
	}
}

// PreferHigher returns a Comparer where a higher property value always wins.
func PreferHigher(target Target, property string) Comparer {
	return numericComparer(target, property, nil, true)
}

// PreferLower returns a Comparer where a lower property value always wins.
func PreferLower(target Target, property string) Comparer {
	return numericComparer(target, property, nil, false)
}

// PreferHigherUntil returns a Comparer where higher wins up to cap; once
// both sides reach cap the criterion is indifferent, so satisfied branches
// stop voting and other criteria decide.
func PreferHigherUntil(target Target, property string, cap float64) Comparer {
	return numericComparer(target, property, func(v float64) float64 {
		return math.Min(v, cap)
	}, true)
}

// PreferLowerUntil returns a Comparer where lower wins down to floor; once
// both sides reach floor the criterion is indifferent.
func PreferLowerUntil(target Target, property string, floor float64) Comparer {
	return numericComparer(target, property, func(v float64) float64 {
		return math.Max(v, floor)
	}, false)
}

// PreferCloseTo returns a Comparer where the value nearer to target wins.
func PreferCloseTo(target Target, property string, value float64) Comparer {
	return numericComparer(target, property, func(v float64) float64 {
		return math.Abs(v - value)
	}, false)
}

// PreferWithin returns a Comparer where the value with the smaller distance
// to the interval [lo, hi] wins; values inside the interval are indifferent
// to each other.
//
// Precondition: lo <= hi.
func PreferWithin(target Target, property string, lo, hi float64) Comparer {
	if lo > hi {
		panic("goap.PreferWithin: lo must not exceed hi")
	}
	return numericComparer(target, property, func(v float64) float64 {
		switch {
		case v < lo:
			return lo - v
		case v > hi:
			return v - hi
		default:
			return 0
		}
	}, false)
}

// WithTiebreak returns a Comparer that consults tiebreak when primary is
// indifferent.
func WithTiebreak(primary, tiebreak Comparer) Comparer {
	return func(a, b *Concept) Ordering {
		if o := primary(a, b); o != Equal {
			return o
		}
		return tiebreak(a, b)
	}
}
