package goap

// Predicate reports whether an action can run against the given state. It
// must be pure: no mutation, safe to call redundantly.
type Predicate func(agent, world Store) bool

// Action is a named, costed operation: a precondition predicate plus an
// ordered list of effects.
//
// Actions are immutable once constructed; the planner compares them by
// pointer identity.
type Action struct {
	Name    string
	Cost    float64
	Effects []*Effect

	canPerform Predicate
}

// NewAction constructs an Action. A nil predicate means always performable.
//
// Precondition: cost must be non-negative.
func NewAction(name string, cost float64, canPerform Predicate, effects ...*Effect) *Action {
	if cost < 0 {
		panic("goap.NewAction: cost must be non-negative")
	}
	return &Action{Name: name, Cost: cost, Effects: effects, canPerform: canPerform}
}

// CanPerform reports whether the action's precondition holds.
func (a *Action) CanPerform(agent, world Store) bool {
	if a.canPerform == nil {
		return true
	}
	return a.canPerform(agent, world)
}

var noOp = NewAction("no-op", 0, nil)

// NoOp returns the distinguished zero-cost, always-performable, effect-free
// action. It is the trivial plan for a goal with no expectations.
//
// Postcondition: every call returns the same *Action, so repeated picks stay
// reference-equal across plans.
func NoOp() *Action {
	return noOp
}
