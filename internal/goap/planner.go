package goap

import (
	"sort"
)

const (
	// DefaultDepth is the lookahead depth used by NewPlanner.
	DefaultDepth = 5

	// beamWidth bounds how many ranked leaf plans survive each expansion.
	// The search trades completeness for a constant multiple of work per
	// level: a better but lower-ranked intermediate branch can be lost.
	beamWidth = 3

	// maxPlanIterations caps the top-level commit loop.
	maxPlanIterations = 50
)

// Planner holds the registered actions (cost-sorted) and ambient actions and
// runs the bounded-depth beam search.
//
// A Planner is not safe for concurrent use; every simulation branch owns its
// own cloned store pair, so independent Planner instances never interfere.
//
// Invariant: actions stays sorted by ascending cost, stable in registration
// order. Planning is deterministic: identical registries and store contents
// always yield the same plan, since nothing in ranking or selection is
// randomized.
type Planner struct {
	actions []*Action
	ambient []*Action
	depth   int
}

// NewPlanner constructs a Planner with the default lookahead depth and empty
// registries.
func NewPlanner() *Planner {
	return &Planner{depth: DefaultDepth}
}

// SetDepth overrides the lookahead depth.
//
// Precondition: depth must be positive.
func (p *Planner) SetDepth(depth int) {
	if depth <= 0 {
		panic("goap.Planner.SetDepth: depth must be positive")
	}
	p.depth = depth
}

// SetActions replaces the action registry with a cost-ascending sorted copy
// of actions. Equal-cost actions keep their registration order.
func (p *Planner) SetActions(actions []*Action) {
	p.actions = make([]*Action, len(actions))
	copy(p.actions, actions)
	sort.SliceStable(p.actions, func(i, j int) bool {
		return p.actions[i].Cost < p.actions[j].Cost
	})
}

// SetAmbientActions replaces the ambient registry with a copy of actions.
// Ambient actions are never chosen by the search; they are folded into every
// simulated step, gated only by their own precondition.
func (p *Planner) SetAmbientActions(actions []*Action) {
	p.ambient = make([]*Action, len(actions))
	copy(p.ambient, actions)
}

// Result is the outcome of Plan.
//
// Validated reports whether Simulate confirmed the plan reaches the goal; a
// false value means the iteration cap expired and Actions is the best effort
// accumulated so far.
type Result struct {
	Actions    Plan
	Cost       float64
	Validated  bool
	Iterations int
}

// Plan searches for an action sequence that drives the given state toward
// goal.
//
// The loop asks introspect for the next action, appends it, and whenever the
// appended action is performable against the real stores revalidates the
// whole accumulated plan with a full simulation. It terminates when the
// simulation confirms the goal, fails when the search cannot extend the
// plan, and returns the unvalidated accumulation when the iteration cap
// expires.
//
// Precondition: goal, agent, and world must not be nil.
// Postcondition: ok is false only for infeasibility; the real stores are
// never mutated.
func (p *Planner) Plan(goal *Goal, agent, world Store) (*Result, bool) {
	if goal == nil {
		panic("goap.Planner.Plan: goal must not be nil")
	}
	if agent == nil || world == nil {
		panic("goap.Planner.Plan: agent and world must not be nil")
	}

	// A goal with nothing to satisfy plans to exactly the no-op.
	if len(goal.Expectations) == 0 {
		return &Result{Actions: Plan{NoOp()}, Validated: true}, true
	}

	var accumulated Plan
	for i := 1; i <= maxPlanIterations; i++ {
		action, ok := p.introspect(goal, accumulated, agent, world, p.depth)
		if !ok {
			return nil, false
		}
		accumulated = accumulated.extend(action)
		if action.CanPerform(agent, world) && p.Simulate(goal, accumulated, agent, world) {
			return &Result{Actions: accumulated, Cost: accumulated.Cost(), Validated: true, Iterations: i}, true
		}
	}
	return &Result{Actions: accumulated, Cost: accumulated.Cost(), Iterations: maxPlanIterations}, true
}

// introspect runs the lookahead and returns the single next action to append
// to plan: the first newly appended action of the best-ranked leaf.
//
// Postcondition: ok is false when the best leaf did not extend plan, meaning
// no action can make progress from here.
func (p *Planner) introspect(goal *Goal, plan Plan, agent, world Store, depth int) (*Action, bool) {
	leaves := p.planIntrospection(goal, plan, agent, world, depth)
	best := leaves[0]
	if len(best) <= len(plan) {
		return nil, false
	}
	return best[len(plan)], true
}

// planIntrospection is the recursive lookahead: it expands plan with every
// performable candidate action, recurses to depth, and returns the top
// ranked leaf plans.
//
// Candidate generation excludes the action at the tail of plan, so adjacent
// repetition is disallowed at each level while non-adjacent recurrence stays
// legal. Each candidate is vetted by replaying plan on fresh clones and
// checking the candidate's precondition against the simulated state.
//
// Postcondition: never returns an empty slice; a branch with no surviving
// candidate yields [plan] so shorter branches still compete in ranking.
func (p *Planner) planIntrospection(goal *Goal, plan Plan, agent, world Store, depth int) []Plan {
	if depth <= 0 {
		return []Plan{plan}
	}

	var tail *Action
	if len(plan) > 0 {
		tail = plan[len(plan)-1]
	}

	var leaves []Plan
	for _, action := range p.actions {
		if action == tail {
			continue
		}
		simAgent := CloneStore(agent)
		simWorld := CloneStore(world)
		if !p.simulateInPlace(plan, simAgent, simWorld) {
			continue
		}
		if !action.CanPerform(simAgent, simWorld) {
			continue
		}
		leaves = append(leaves, p.planIntrospection(goal, plan.extend(action), agent, world, depth-1)...)
	}
	if len(leaves) == 0 {
		return []Plan{plan}
	}

	ranked := p.rank(goal, leaves, agent, world)
	if len(ranked) > beamWidth {
		ranked = ranked[:beamWidth]
	}
	return ranked
}

// rank orders leaf plans best-first: each leaf is replayed on a fresh clone
// pair and the outcomes are compared pairwise with goalCmp, ties broken by
// ascending plan cost. A leaf whose replay fails ranks below any that
// replays cleanly.
func (p *Planner) rank(goal *Goal, leaves []Plan, agent, world Store) []Plan {
	type outcome struct {
		plan  Plan
		after *Concept
		ok    bool
	}
	outcomes := make([]outcome, len(leaves))
	for i, leaf := range leaves {
		simAgent := CloneStore(agent)
		simWorld := CloneStore(world)
		ok := p.simulateInPlace(leaf, simAgent, simWorld)
		outcomes[i] = outcome{plan: leaf, after: &Concept{Agent: simAgent, World: simWorld}, ok: ok}
	}
	sort.SliceStable(outcomes, func(i, j int) bool {
		a, b := outcomes[i], outcomes[j]
		if a.ok != b.ok {
			return a.ok
		}
		if a.ok {
			switch goalCmp(goal, a.after, b.after) {
			case Greater:
				return true
			case Less:
				return false
			}
		}
		return a.plan.Cost() < b.plan.Cost()
	})
	ranked := make([]Plan, len(outcomes))
	for i, o := range outcomes {
		ranked[i] = o.plan
	}
	return ranked
}

// simulateInPlace replays plan against the given stores, mutating them: for
// each plan action every ambient action is folded in first, then the plan
// action's precondition is checked and its effects applied.
//
// Ambient actions never abort the replay; a plan action whose precondition
// fails does.
//
// Postcondition: true iff every plan action performed; on false the stores
// hold the partially replayed state.
func (p *Planner) simulateInPlace(plan Plan, agent, world Store) bool {
	for _, action := range plan {
		for _, ambient := range p.ambient {
			if ambient.CanPerform(agent, world) {
				ApplyAction(agent, world, ambient)
			}
		}
		if !action.CanPerform(agent, world) {
			return false
		}
		ApplyAction(agent, world, action)
	}
	return true
}

// Simulate replays plan on clones of agent and world and reports whether the
// goal is reached in the resulting state. The inputs are never mutated.
//
// Postcondition: false when any plan action's precondition fails mid-replay.
func (p *Planner) Simulate(goal *Goal, plan Plan, agent, world Store) bool {
	simAgent := CloneStore(agent)
	simWorld := CloneStore(world)
	if !p.simulateInPlace(plan, simAgent, simWorld) {
		return false
	}
	return GoalReached(goal, simAgent, simWorld)
}
