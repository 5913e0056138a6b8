package goap

// GoalReached reports whether every expectation of goal is met against the
// given state. Short-circuits on the first unmet expectation.
//
// Postcondition: a goal with zero expectations is always reached.
func GoalReached(goal *Goal, agent, world Store) bool {
	for _, e := range goal.Expectations {
		if !e.Check(agent, world) {
			return false
		}
	}
	return true
}

// goalCmp ranks two hypothetical states against the whole goal by majority
// vote: each expectation's comparer casts one vote, and the side with more
// votes wins. No single criterion dominates by magnitude, only by vote
// count; an exact tie is Equal.
func goalCmp(goal *Goal, a, b *Concept) Ordering {
	votesA, votesB := 0, 0
	for _, e := range goal.Expectations {
		switch e.Compare(a, b) {
		case Greater:
			votesA++
		case Less:
			votesB++
		}
	}
	switch {
	case votesA > votesB:
		return Greater
	case votesB > votesA:
		return Less
	default:
		return Equal
	}
}

// Plan is an ordered sequence of action references, built incrementally by
// the search. Candidate plans are immutable snapshots: extending copies.
type Plan []*Action

// Cost is the sum of constituent action costs; the empty plan costs 0.
func (p Plan) Cost() float64 {
	total := 0.0
	for _, a := range p {
		total += a.Cost
	}
	return total
}

// Names returns the action names in plan order.
func (p Plan) Names() []string {
	names := make([]string, len(p))
	for i, a := range p {
		names[i] = a.Name
	}
	return names
}

// extend returns a fresh plan with action appended; the receiver is never
// mutated.
func (p Plan) extend(action *Action) Plan {
	next := make(Plan, len(p)+1)
	copy(next, p)
	next[len(p)] = action
	return next
}

// ApplyAction commits every effect of action to the given stores, in effect
// order. Used by callers executing a finished plan and by the simulator;
// preconditions are the caller's responsibility via CanPerform.
func ApplyAction(agent, world Store, action *Action) {
	for _, e := range action.Effects {
		e.Apply(agent, world)
	}
}
