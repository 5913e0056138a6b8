package goap

// Ordering is the result of a pairwise comparison between two hypothetical
// states: Less means the second is preferred, Greater the first.
type Ordering int

const (
	Less    Ordering = -1
	Equal   Ordering = 0
	Greater Ordering = 1
)

// Invert flips Less and Greater.
func (o Ordering) Invert() Ordering {
	return -o
}

// Concept is a hypothetical (agent, world) state pair produced by
// speculative simulation and ranked by expectation comparers.
type Concept struct {
	Agent Store
	World Store
}

// Checker reports whether a single property value satisfies a criterion.
type Checker func(value any) bool

// Comparer ranks two hypothetical states by closeness to satisfying one
// criterion. The rule is domain-specific: distance to a threshold, a
// secondary resource tie-break, whatever the scenario supplies.
type Comparer func(a, b *Concept) Ordering

// Expectation is one named criterion of a goal, bound to one property on one
// target store: a boolean satisfaction check plus a pairwise comparer.
//
// Invariant: check and compare are non-nil.
type Expectation struct {
	Name     string
	Target   Target
	Property string

	check   Checker
	compare Comparer
}

// NewExpectation constructs an Expectation.
//
// Precondition: check and compare must not be nil.
func NewExpectation(name string, target Target, property string, check Checker, compare Comparer) *Expectation {
	if check == nil {
		panic("goap.NewExpectation: check must not be nil")
	}
	if compare == nil {
		panic("goap.NewExpectation: compare must not be nil")
	}
	return &Expectation{Name: name, Target: target, Property: property, check: check, compare: compare}
}

// store selects the target store out of the (agent, world) pair.
func (e *Expectation) store(agent, world Store) Store {
	if e.Target == TargetWorld {
		return world
	}
	return agent
}

// Check reports whether the expectation is met against the given state.
//
// Postcondition: false when the bound property is absent from the target
// store; an expectation over missing state is unmet, never an error.
func (e *Expectation) Check(agent, world Store) bool {
	value, ok := e.store(agent, world).Get(e.Property)
	if !ok {
		return false
	}
	return e.check(value)
}

// Compare ranks two hypothetical states by this criterion alone.
func (e *Expectation) Compare(a, b *Concept) Ordering {
	return e.compare(a, b)
}
