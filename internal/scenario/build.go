package scenario

import (
	"fmt"

	"github.com/ashkettle/forage/internal/goap"
)

// HookCaller dispatches named Lua hooks for one scenario. The scripting
// Manager satisfies it; tests substitute fakes.
type HookCaller interface {
	HasHook(scenarioID, fn string) bool
	CallPredicate(scenarioID, fn string, agent, world goap.Store) (bool, error)
	CallChecker(scenarioID, fn string, value any) (bool, error)
	CallComparer(scenarioID, fn string, a, b *goap.Concept) (goap.Ordering, error)
}

// Builder compiles validated scenarios into planner values.
type Builder struct {
	hooks HookCaller
}

// NewBuilder creates a Builder. hooks may be nil when no scenario delegates
// to Lua; building a Lua-referencing scenario without hooks is an error.
func NewBuilder(hooks HookCaller) *Builder {
	return &Builder{hooks: hooks}
}

// Built is the compiled, plannable form of one scenario.
//
// Invariant: Actions always starts with the shared zero-cost no-op.
type Built struct {
	Scenario *Scenario
	Agent    *goap.MapStore
	World    *goap.MapStore
	Actions  []*goap.Action
	Ambient  []*goap.Action
	Goals    []*goap.Goal
}

// Goal returns the compiled goal with the given ID, or false if not found.
func (b *Built) Goal(id string) (*goap.Goal, bool) {
	for _, g := range b.Goals {
		if g.Name == id {
			return g, true
		}
	}
	return nil, false
}

// Build compiles s into stores, actions, and goals.
//
// Precondition: s must have passed Validate; the scenario's scripts must
// already be loaded into the hook caller.
// Postcondition: the returned stores are fresh and unaliased; every Lua
// reference has been resolved against the hook caller.
func (b *Builder) Build(s *Scenario) (*Built, error) {
	if s.UsesLua() && b.hooks == nil {
		return nil, fmt.Errorf("scenario.Builder: scenario %q uses Lua hooks but no hook caller is configured", s.ID)
	}
	if err := b.checkHooks(s); err != nil {
		return nil, err
	}

	built := &Built{
		Scenario: s,
		Agent:    storeFrom(s.Agent),
		World:    storeFrom(s.World),
		Actions:  []*goap.Action{goap.NoOp()},
	}

	for _, a := range s.Actions {
		built.Actions = append(built.Actions, b.buildAction(s, a))
	}
	for _, a := range s.Ambient {
		built.Ambient = append(built.Ambient, b.buildAction(s, a))
	}
	for _, g := range s.Goals {
		built.Goals = append(built.Goals, b.buildGoal(s, g))
	}

	return built, nil
}

// checkHooks fails fast on references to Lua functions the loaded scripts do
// not define.
func (b *Builder) checkHooks(s *Scenario) error {
	check := func(fn, where string) error {
		if fn == "" {
			return nil
		}
		if !b.hooks.HasHook(s.ID, fn) {
			return fmt.Errorf("scenario.Builder: scenario %q %s references undefined Lua hook %q", s.ID, where, fn)
		}
		return nil
	}

	for _, a := range append(append([]*Action{}, s.Actions...), s.Ambient...) {
		if a.Precondition == nil {
			continue
		}
		if err := check(a.Precondition.Lua, fmt.Sprintf("action %q precondition", a.ID)); err != nil {
			return err
		}
	}
	for _, g := range s.Goals {
		for _, e := range g.Expectations {
			if err := check(e.Check.Lua, fmt.Sprintf("expectation %q check", e.ID)); err != nil {
				return err
			}
			for c := e.Compare; c != nil; c = c.Tiebreak {
				if err := check(c.Lua, fmt.Sprintf("expectation %q compare", e.ID)); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (b *Builder) buildAction(s *Scenario, a *Action) *goap.Action {
	effects := make([]*goap.Effect, 0, len(a.Effects))
	for _, e := range a.Effects {
		name := fmt.Sprintf("%s/%s.%s", a.ID, e.Target, e.Property)
		target := targetOf(e.Target)
		if e.Min != nil {
			effects = append(effects, goap.NewClampedEffect(name, target, e.Property, e.Delta, *e.Min, *e.Max))
		} else {
			effects = append(effects, goap.NewEffect(name, target, e.Property, e.Delta))
		}
	}
	return goap.NewAction(a.ID, a.Cost, b.buildPredicate(s, a.Precondition), effects...)
}

func (b *Builder) buildPredicate(s *Scenario, p *Precondition) goap.Predicate {
	if p == nil {
		return nil
	}
	if p.Lua != "" {
		scenarioID, fn := s.ID, p.Lua
		return func(agent, world goap.Store) bool {
			ok, err := b.hooks.CallPredicate(scenarioID, fn, agent, world)
			return err == nil && ok
		}
	}

	tests := make([]func(agent, world goap.Store) bool, 0, len(p.All))
	for _, c := range p.All {
		target := targetOf(c.Target)
		property := c.Property
		checker := thresholdChecker(c.Above, c.AtLeast, c.Below, c.AtMost, c.Equals, c.Between)
		tests = append(tests, func(agent, world goap.Store) bool {
			v, ok := storeOf(target, agent, world).Get(property)
			return ok && checker(v)
		})
	}
	return func(agent, world goap.Store) bool {
		for _, test := range tests {
			if !test(agent, world) {
				return false
			}
		}
		return true
	}
}

func (b *Builder) buildGoal(s *Scenario, g *Goal) *goap.Goal {
	expectations := make([]*goap.Expectation, 0, len(g.Expectations))
	for _, e := range g.Expectations {
		expectations = append(expectations, goap.NewExpectation(
			e.ID,
			targetOf(e.Target),
			e.Property,
			b.buildChecker(s, e.Check),
			b.buildComparer(s, e.Target, e.Property, e.Compare),
		))
	}
	return goap.NewGoal(g.ID, expectations...)
}

func (b *Builder) buildChecker(s *Scenario, c *Check) goap.Checker {
	if c.Lua != "" {
		scenarioID, fn := s.ID, c.Lua
		return func(value any) bool {
			ok, err := b.hooks.CallChecker(scenarioID, fn, value)
			return err == nil && ok
		}
	}
	return thresholdChecker(c.Above, c.AtLeast, c.Below, c.AtMost, c.Equals, c.Between)
}

func (b *Builder) buildComparer(s *Scenario, parentTarget, parentProperty string, c *Compare) goap.Comparer {
	target := c.Target
	if target == "" {
		target = parentTarget
	}
	property := c.Property
	if property == "" {
		property = parentProperty
	}

	var primary goap.Comparer
	switch {
	case c.Lua != "":
		scenarioID, fn := s.ID, c.Lua
		primary = func(a, b *goap.Concept) goap.Ordering {
			ord, err := b.hooks.CallComparer(scenarioID, fn, a, b)
			if err != nil {
				return goap.Equal
			}
			return ord
		}
	case c.Prefer == "higher" && c.Until != nil:
		primary = goap.PreferHigherUntil(targetOf(target), property, *c.Until)
	case c.Prefer == "higher":
		primary = goap.PreferHigher(targetOf(target), property)
	case c.Prefer == "lower" && c.Until != nil:
		primary = goap.PreferLowerUntil(targetOf(target), property, *c.Until)
	case c.Prefer == "lower":
		primary = goap.PreferLower(targetOf(target), property)
	case c.Toward != nil:
		primary = goap.PreferCloseTo(targetOf(target), property, *c.Toward)
	default:
		primary = goap.PreferWithin(targetOf(target), property, c.Within[0], c.Within[1])
	}

	if c.Tiebreak != nil {
		return goap.WithTiebreak(primary, b.buildComparer(s, target, property, c.Tiebreak))
	}
	return primary
}

// thresholdChecker maps a validated clause's single set threshold onto the
// matching planner checker.
func thresholdChecker(above, atLeast, below, atMost, equals *float64, between []float64) goap.Checker {
	switch {
	case above != nil:
		return goap.Above(*above)
	case atLeast != nil:
		return goap.AtLeast(*atLeast)
	case below != nil:
		return goap.Below(*below)
	case atMost != nil:
		return goap.AtMost(*atMost)
	case equals != nil:
		return goap.EqualTo(*equals)
	default:
		return goap.Between(between[0], between[1])
	}
}

func storeFrom(values map[string]float64) *goap.MapStore {
	converted := make(map[string]any, len(values))
	for k, v := range values {
		converted[k] = v
	}
	return goap.NewMapStoreFrom(converted)
}

func targetOf(s string) goap.Target {
	if s == TargetWorld {
		return goap.TargetWorld
	}
	return goap.TargetAgent
}

func storeOf(t goap.Target, agent, world goap.Store) goap.Store {
	if t == goap.TargetWorld {
		return world
	}
	return agent
}
