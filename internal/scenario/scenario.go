// Package scenario loads planning content from YAML files.
//
// A scenario file declares the initial agent and world properties, the costed
// actions an agent may take, the ambient actions the world applies on its
// own, and the goals agents plan toward. Thresholds and rankings are declared
// as plain clauses or delegated to named Lua hooks; the builder compiles both
// forms into planner values.
package scenario

import (
	"errors"
	"fmt"
)

// Valid Target values for clauses, effects, and expectations.
const (
	TargetAgent = "agent"
	TargetWorld = "world"
)

// Clause is a single threshold test against one property. Exactly one of the
// threshold fields must be set.
type Clause struct {
	Target   string    `yaml:"target"`
	Property string    `yaml:"property"`
	Above    *float64  `yaml:"above"`
	AtLeast  *float64  `yaml:"at_least"`
	Below    *float64  `yaml:"below"`
	AtMost   *float64  `yaml:"at_most"`
	Equals   *float64  `yaml:"equals"`
	Between  []float64 `yaml:"between"`
}

// Precondition gates an action. All clauses must hold, or the named Lua hook
// must return truthy. Exactly one form may be used; a nil Precondition means
// the action is always performable.
type Precondition struct {
	All []*Clause `yaml:"all"`
	Lua string    `yaml:"lua"`
}

// Effect is one property mutation. Min and Max are optional clamp bounds and
// must be set together.
type Effect struct {
	Target   string   `yaml:"target"`
	Property string   `yaml:"property"`
	Delta    float64  `yaml:"delta"`
	Min      *float64 `yaml:"min"`
	Max      *float64 `yaml:"max"`
}

// Action is a costed, gated bundle of effects.
//
// Precondition: ID must be non-empty and Cost must be >= 0.
type Action struct {
	ID           string        `yaml:"id"`
	Cost         float64       `yaml:"cost"`
	Precondition *Precondition `yaml:"precondition"`
	Effects      []*Effect     `yaml:"effects"`
}

// Check declares when an expectation is satisfied: one threshold field, or a
// Lua hook called with the property's current value.
type Check struct {
	Above   *float64  `yaml:"above"`
	AtLeast *float64  `yaml:"at_least"`
	Below   *float64  `yaml:"below"`
	AtMost  *float64  `yaml:"at_most"`
	Equals  *float64  `yaml:"equals"`
	Between []float64 `yaml:"between"`
	Lua     string    `yaml:"lua"`
}

// Compare declares how an expectation ranks two hypothetical outcomes.
// Exactly one mode: Prefer (optionally bounded by Until), Toward, Within, or
// Lua. Target and Property default to the owning expectation's pair.
// Tiebreak, consulted on ties, may not be combined with Lua.
type Compare struct {
	Target   string    `yaml:"target"`
	Property string    `yaml:"property"`
	Prefer   string    `yaml:"prefer"` // "higher" or "lower"
	Until    *float64  `yaml:"until"`
	Toward   *float64  `yaml:"toward"`
	Within   []float64 `yaml:"within"`
	Lua      string    `yaml:"lua"`
	Tiebreak *Compare  `yaml:"tiebreak"`
}

// Expectation is one named, checkable, comparable aspect of a goal.
//
// Precondition: ID, Target, and Property must be non-empty; Check and
// Compare must both be present.
type Expectation struct {
	ID       string   `yaml:"id"`
	Target   string   `yaml:"target"`
	Property string   `yaml:"property"`
	Check    *Check   `yaml:"check"`
	Compare  *Compare `yaml:"compare"`
}

// Goal is a named set of expectations. An empty set is legal and trivially
// satisfied.
type Goal struct {
	ID           string         `yaml:"id"`
	Expectations []*Expectation `yaml:"expectations"`
}

// Scenario holds one full planning domain loaded from a YAML file.
//
// Invariant: all action, goal, and per-goal expectation IDs are unique.
// Invariant: every property referenced anywhere exists in the Agent or World
// initial state; effects mutate properties, they never create them.
type Scenario struct {
	ID                     string             `yaml:"id"`
	Name                   string             `yaml:"name"`
	Description            string             `yaml:"description"`
	ScriptDir              string             `yaml:"script_dir"`
	ScriptInstructionLimit int                `yaml:"script_instruction_limit"`
	Agent                  map[string]float64 `yaml:"agent"`
	World                  map[string]float64 `yaml:"world"`
	Actions                []*Action          `yaml:"actions"`
	Ambient                []*Action          `yaml:"ambient"`
	Goals                  []*Goal            `yaml:"goals"`
}

// NoOpActionID is reserved: the builder always supplies the zero-cost no-op,
// so scenario files may not redefine it.
const NoOpActionID = "no-op"

// Validate checks all required fields and cross-field constraints.
//
// Postcondition: nil return guarantees a non-empty ID, at least one action
// and one goal, unique IDs, ordered clamp and interval bounds, exactly one
// mode per clause, and every property reference resolvable against the
// initial state maps.
func (s *Scenario) Validate() error {
	if s.ID == "" {
		return errors.New("scenario.Scenario: ID must not be empty")
	}
	if len(s.Actions) == 0 {
		return fmt.Errorf("scenario.Scenario %q: must have at least one action", s.ID)
	}
	if len(s.Goals) == 0 {
		return fmt.Errorf("scenario.Scenario %q: must have at least one goal", s.ID)
	}
	if s.ScriptInstructionLimit < 0 {
		return fmt.Errorf("scenario.Scenario %q: script_instruction_limit must not be negative", s.ID)
	}

	// Check for duplicate action IDs; plan actions and ambient actions share
	// one namespace.
	actionIDs := make(map[string]struct{}, len(s.Actions)+len(s.Ambient))
	for _, a := range append(append([]*Action{}, s.Actions...), s.Ambient...) {
		if a.ID == "" {
			return fmt.Errorf("scenario.Scenario %q: action has empty ID", s.ID)
		}
		if a.ID == NoOpActionID {
			return fmt.Errorf("scenario.Scenario %q: action ID %q is reserved", s.ID, a.ID)
		}
		if _, dup := actionIDs[a.ID]; dup {
			return fmt.Errorf("scenario.Scenario %q: duplicate action ID %q", s.ID, a.ID)
		}
		actionIDs[a.ID] = struct{}{}
	}

	for _, a := range s.Actions {
		if err := s.validateAction(a); err != nil {
			return err
		}
	}
	for _, a := range s.Ambient {
		if err := s.validateAction(a); err != nil {
			return err
		}
		if err := s.validateAmbient(a); err != nil {
			return err
		}
	}

	// Check for duplicate goal IDs
	goalIDs := make(map[string]struct{}, len(s.Goals))
	for _, g := range s.Goals {
		if g.ID == "" {
			return fmt.Errorf("scenario.Scenario %q: goal has empty ID", s.ID)
		}
		if _, dup := goalIDs[g.ID]; dup {
			return fmt.Errorf("scenario.Scenario %q: duplicate goal ID %q", s.ID, g.ID)
		}
		goalIDs[g.ID] = struct{}{}
		if err := s.validateGoal(g); err != nil {
			return err
		}
	}

	return nil
}

func (s *Scenario) validateAction(a *Action) error {
	if a.Cost < 0 {
		return fmt.Errorf("scenario.Scenario %q action %q: cost must not be negative", s.ID, a.ID)
	}
	if len(a.Effects) == 0 {
		return fmt.Errorf("scenario.Scenario %q action %q: must have at least one effect", s.ID, a.ID)
	}
	for _, e := range a.Effects {
		if err := s.validateEffect(a.ID, e); err != nil {
			return err
		}
	}
	if a.Precondition == nil {
		return nil
	}
	if a.Precondition.Lua != "" {
		if len(a.Precondition.All) > 0 {
			return fmt.Errorf("scenario.Scenario %q action %q: precondition may not combine clauses with lua", s.ID, a.ID)
		}
		if s.ScriptDir == "" {
			return fmt.Errorf("scenario.Scenario %q action %q: lua precondition requires script_dir", s.ID, a.ID)
		}
		return nil
	}
	if len(a.Precondition.All) == 0 {
		return fmt.Errorf("scenario.Scenario %q action %q: precondition must have clauses or lua", s.ID, a.ID)
	}
	for _, c := range a.Precondition.All {
		if err := s.validateClause(a.ID, c); err != nil {
			return err
		}
	}
	return nil
}

// validateAmbient enforces the extra constraints on ambient actions: they are
// world dynamics shared by every agent, so they may only read and write world
// properties, and their gating must be declarative. A Lua precondition would
// see a different agent during search than during the shared tick.
func (s *Scenario) validateAmbient(a *Action) error {
	if a.Precondition != nil && a.Precondition.Lua != "" {
		return fmt.Errorf("scenario.Scenario %q ambient action %q: lua preconditions are not allowed on ambient actions", s.ID, a.ID)
	}
	if a.Precondition != nil {
		for _, c := range a.Precondition.All {
			if c.Target != TargetWorld {
				return fmt.Errorf("scenario.Scenario %q ambient action %q: clause on %q: ambient actions may only reference world properties", s.ID, a.ID, c.Property)
			}
		}
	}
	for _, e := range a.Effects {
		if e.Target != TargetWorld {
			return fmt.Errorf("scenario.Scenario %q ambient action %q: effect on %q: ambient actions may only mutate world properties", s.ID, a.ID, e.Property)
		}
	}
	return nil
}

func (s *Scenario) validateEffect(actionID string, e *Effect) error {
	if err := s.checkProperty(e.Target, e.Property); err != nil {
		return fmt.Errorf("scenario.Scenario %q action %q effect: %w", s.ID, actionID, err)
	}
	if (e.Min == nil) != (e.Max == nil) {
		return fmt.Errorf("scenario.Scenario %q action %q effect on %q: min and max must be set together", s.ID, actionID, e.Property)
	}
	if e.Min != nil && *e.Min > *e.Max {
		return fmt.Errorf("scenario.Scenario %q action %q effect on %q: min must not exceed max", s.ID, actionID, e.Property)
	}
	return nil
}

func (s *Scenario) validateClause(actionID string, c *Clause) error {
	if err := s.checkProperty(c.Target, c.Property); err != nil {
		return fmt.Errorf("scenario.Scenario %q action %q clause: %w", s.ID, actionID, err)
	}
	set := 0
	for _, p := range []*float64{c.Above, c.AtLeast, c.Below, c.AtMost, c.Equals} {
		if p != nil {
			set++
		}
	}
	if len(c.Between) > 0 {
		set++
		if err := checkInterval(c.Between); err != nil {
			return fmt.Errorf("scenario.Scenario %q action %q clause on %q: %w", s.ID, actionID, c.Property, err)
		}
	}
	if set != 1 {
		return fmt.Errorf("scenario.Scenario %q action %q clause on %q: exactly one threshold required", s.ID, actionID, c.Property)
	}
	return nil
}

func (s *Scenario) validateGoal(g *Goal) error {
	expIDs := make(map[string]struct{}, len(g.Expectations))
	for _, e := range g.Expectations {
		if e.ID == "" {
			return fmt.Errorf("scenario.Scenario %q goal %q: expectation has empty ID", s.ID, g.ID)
		}
		if _, dup := expIDs[e.ID]; dup {
			return fmt.Errorf("scenario.Scenario %q goal %q: duplicate expectation ID %q", s.ID, g.ID, e.ID)
		}
		expIDs[e.ID] = struct{}{}
		if err := s.validateExpectation(g.ID, e); err != nil {
			return err
		}
	}
	return nil
}

func (s *Scenario) validateExpectation(goalID string, e *Expectation) error {
	if err := s.checkProperty(e.Target, e.Property); err != nil {
		return fmt.Errorf("scenario.Scenario %q goal %q expectation %q: %w", s.ID, goalID, e.ID, err)
	}
	if e.Check == nil {
		return fmt.Errorf("scenario.Scenario %q goal %q expectation %q: check is required", s.ID, goalID, e.ID)
	}
	if err := s.validateCheck(goalID, e.ID, e.Check); err != nil {
		return err
	}
	if e.Compare == nil {
		return fmt.Errorf("scenario.Scenario %q goal %q expectation %q: compare is required", s.ID, goalID, e.ID)
	}
	return s.validateCompare(goalID, e.ID, e.Target, e.Property, e.Compare)
}

func (s *Scenario) validateCheck(goalID, expID string, c *Check) error {
	set := 0
	for _, p := range []*float64{c.Above, c.AtLeast, c.Below, c.AtMost, c.Equals} {
		if p != nil {
			set++
		}
	}
	if len(c.Between) > 0 {
		set++
		if err := checkInterval(c.Between); err != nil {
			return fmt.Errorf("scenario.Scenario %q goal %q expectation %q check: %w", s.ID, goalID, expID, err)
		}
	}
	if c.Lua != "" {
		set++
		if s.ScriptDir == "" {
			return fmt.Errorf("scenario.Scenario %q goal %q expectation %q: lua check requires script_dir", s.ID, goalID, expID)
		}
	}
	if set != 1 {
		return fmt.Errorf("scenario.Scenario %q goal %q expectation %q check: exactly one mode required", s.ID, goalID, expID)
	}
	return nil
}

func (s *Scenario) validateCompare(goalID, expID, parentTarget, parentProperty string, c *Compare) error {
	target := c.Target
	if target == "" {
		target = parentTarget
	}
	property := c.Property
	if property == "" {
		property = parentProperty
	}

	set := 0
	if c.Prefer != "" {
		set++
		if c.Prefer != "higher" && c.Prefer != "lower" {
			return fmt.Errorf("scenario.Scenario %q goal %q expectation %q compare: prefer must be \"higher\" or \"lower\"", s.ID, goalID, expID)
		}
	}
	if c.Until != nil && c.Prefer == "" {
		return fmt.Errorf("scenario.Scenario %q goal %q expectation %q compare: until requires prefer", s.ID, goalID, expID)
	}
	if c.Toward != nil {
		set++
	}
	if len(c.Within) > 0 {
		set++
		if err := checkInterval(c.Within); err != nil {
			return fmt.Errorf("scenario.Scenario %q goal %q expectation %q compare: %w", s.ID, goalID, expID, err)
		}
	}
	if c.Lua != "" {
		set++
		if s.ScriptDir == "" {
			return fmt.Errorf("scenario.Scenario %q goal %q expectation %q: lua compare requires script_dir", s.ID, goalID, expID)
		}
		if c.Tiebreak != nil {
			return fmt.Errorf("scenario.Scenario %q goal %q expectation %q compare: lua may not carry a tiebreak", s.ID, goalID, expID)
		}
	}
	if set != 1 {
		return fmt.Errorf("scenario.Scenario %q goal %q expectation %q compare: exactly one mode required", s.ID, goalID, expID)
	}

	// Lua comparers see whole concepts; only clause modes resolve a property.
	if c.Lua == "" {
		if err := s.checkProperty(target, property); err != nil {
			return fmt.Errorf("scenario.Scenario %q goal %q expectation %q compare: %w", s.ID, goalID, expID, err)
		}
	}

	if c.Tiebreak != nil {
		return s.validateCompare(goalID, expID, target, property, c.Tiebreak)
	}
	return nil
}

// checkProperty verifies target is agent or world and that the named
// property exists in that store's initial state.
func (s *Scenario) checkProperty(target, property string) error {
	if property == "" {
		return errors.New("property must not be empty")
	}
	switch target {
	case TargetAgent:
		if _, ok := s.Agent[property]; !ok {
			return fmt.Errorf("agent has no property %q", property)
		}
	case TargetWorld:
		if _, ok := s.World[property]; !ok {
			return fmt.Errorf("world has no property %q", property)
		}
	default:
		return fmt.Errorf("target must be %q or %q, got %q", TargetAgent, TargetWorld, target)
	}
	return nil
}

func checkInterval(bounds []float64) error {
	if len(bounds) != 2 {
		return fmt.Errorf("interval must have exactly two bounds, got %d", len(bounds))
	}
	if bounds[0] > bounds[1] {
		return fmt.Errorf("interval lower bound %v exceeds upper bound %v", bounds[0], bounds[1])
	}
	return nil
}

// GoalByID returns the goal with the given ID, or false if not found.
func (s *Scenario) GoalByID(id string) (*Goal, bool) {
	for _, g := range s.Goals {
		if g.ID == id {
			return g, true
		}
	}
	return nil, false
}

// UsesLua reports whether any precondition, check, or compare in the
// scenario names a Lua hook.
func (s *Scenario) UsesLua() bool {
	for _, a := range append(append([]*Action{}, s.Actions...), s.Ambient...) {
		if a.Precondition != nil && a.Precondition.Lua != "" {
			return true
		}
	}
	for _, g := range s.Goals {
		for _, e := range g.Expectations {
			if e.Check != nil && e.Check.Lua != "" {
				return true
			}
			if compareUsesLua(e.Compare) {
				return true
			}
		}
	}
	return false
}

func compareUsesLua(c *Compare) bool {
	for ; c != nil; c = c.Tiebreak {
		if c.Lua != "" {
			return true
		}
	}
	return false
}
