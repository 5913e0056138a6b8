package scenario

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ashkettle/forage/internal/goap"
	"github.com/ashkettle/forage/internal/scripting"
)

// fakeHooks satisfies HookCaller with plain Go functions keyed by hook name.
type fakeHooks struct {
	predicates map[string]goap.Predicate
	checkers   map[string]goap.Checker
	comparers  map[string]goap.Comparer
}

func (f *fakeHooks) HasHook(scenarioID, fn string) bool {
	if _, ok := f.predicates[fn]; ok {
		return true
	}
	if _, ok := f.checkers[fn]; ok {
		return true
	}
	_, ok := f.comparers[fn]
	return ok
}

func (f *fakeHooks) CallPredicate(scenarioID, fn string, agent, world goap.Store) (bool, error) {
	p, ok := f.predicates[fn]
	if !ok {
		return false, nil
	}
	return p(agent, world), nil
}

func (f *fakeHooks) CallChecker(scenarioID, fn string, value any) (bool, error) {
	c, ok := f.checkers[fn]
	if !ok {
		return false, nil
	}
	return c(value), nil
}

func (f *fakeHooks) CallComparer(scenarioID, fn string, a, b *goap.Concept) (goap.Ordering, error) {
	c, ok := f.comparers[fn]
	if !ok {
		return goap.Equal, nil
	}
	return c(a, b), nil
}

func eatHooks() *fakeHooks {
	return &fakeHooks{
		predicates: map[string]goap.Predicate{
			"can_eat": func(agent, world goap.Store) bool {
				food, _ := goap.NumberAt(agent, "food")
				hunger, _ := goap.NumberAt(agent, "hunger")
				return food > 0 && hunger > 2
			},
		},
	}
}

func concept(agentVals, worldVals map[string]any) *goap.Concept {
	return &goap.Concept{
		Agent: goap.NewMapStoreFrom(agentVals),
		World: goap.NewMapStoreFrom(worldVals),
	}
}

func TestBuilder_Build_StoresPopulated(t *testing.T) {
	built, err := NewBuilder(eatHooks()).Build(validTestScenario())
	require.NoError(t, err)

	food, ok := goap.NumberAt(built.Agent, "food")
	require.True(t, ok)
	assert.Equal(t, 20.0, food)

	fire, ok := goap.NumberAt(built.World, "fire")
	require.True(t, ok)
	assert.Equal(t, 9.0, fire)
}

func TestBuilder_Build_NoOpLeads(t *testing.T) {
	built, err := NewBuilder(eatHooks()).Build(validTestScenario())
	require.NoError(t, err)

	require.Len(t, built.Actions, 3)
	assert.Same(t, goap.NoOp(), built.Actions[0])
	assert.Equal(t, "get_wood", built.Actions[1].Name)
	assert.Equal(t, "eat_food", built.Actions[2].Name)
	require.Len(t, built.Ambient, 1)
	assert.Equal(t, "fire_decay", built.Ambient[0].Name)
}

func TestBuilder_Build_ClausePrecondition(t *testing.T) {
	built, err := NewBuilder(eatHooks()).Build(validTestScenario())
	require.NoError(t, err)

	getWood := built.Actions[1]
	assert.True(t, getWood.CanPerform(built.Agent, built.World))

	depleted := goap.NewMapStoreFrom(map[string]any{"wood": 1.0, "fire": 9.0})
	assert.False(t, getWood.CanPerform(built.Agent, depleted))
}

func TestBuilder_Build_LuaPrecondition(t *testing.T) {
	built, err := NewBuilder(eatHooks()).Build(validTestScenario())
	require.NoError(t, err)

	eat := built.Actions[2]
	// Fixture agent starts sated; hunger must pass the threshold first.
	assert.False(t, eat.CanPerform(built.Agent, built.World))

	hungry := goap.NewMapStoreFrom(map[string]any{"food": 5.0, "hunger": 30.0, "wood": 0.0})
	assert.True(t, eat.CanPerform(hungry, built.World))
}

func TestBuilder_Build_ClampedEffect(t *testing.T) {
	built, err := NewBuilder(eatHooks()).Build(validTestScenario())
	require.NoError(t, err)

	agent := goap.NewMapStoreFrom(map[string]any{"food": 5.0, "hunger": 3.0, "wood": 0.0})
	world := goap.NewMapStoreFrom(map[string]any{"fire": 9.0, "wood": 50.0})
	goap.ApplyAction(agent, world, built.Actions[2])

	hunger, ok := goap.NumberAt(agent, "hunger")
	require.True(t, ok)
	assert.Equal(t, 0.0, hunger, "hunger 3 - 4 clamps to the floor")

	food, _ := goap.NumberAt(agent, "food")
	assert.Equal(t, 4.0, food)
}

func TestBuilder_Build_CheckersCompiled(t *testing.T) {
	built, err := NewBuilder(eatHooks()).Build(validTestScenario())
	require.NoError(t, err)

	survive, ok := built.Goal("survive")
	require.True(t, ok)
	fireBurning := survive.Expectations[0]

	cold := goap.NewMapStoreFrom(map[string]any{"fire": 68.0, "wood": 50.0})
	warm := goap.NewMapStoreFrom(map[string]any{"fire": 69.0, "wood": 50.0})
	assert.False(t, fireBurning.Check(built.Agent, cold))
	assert.True(t, fireBurning.Check(built.Agent, warm))
}

func TestBuilder_Build_ComparerWithTiebreak(t *testing.T) {
	built, err := NewBuilder(eatHooks()).Build(validTestScenario())
	require.NoError(t, err)

	survive, _ := built.Goal("survive")
	fireBurning := survive.Expectations[0]

	hotter := concept(map[string]any{"wood": 0.0}, map[string]any{"fire": 30.0})
	colder := concept(map[string]any{"wood": 0.0}, map[string]any{"fire": 20.0})
	assert.Equal(t, goap.Greater, fireBurning.Compare(hotter, colder))

	// Both past the target: the primary is indifferent and the tiebreak
	// ranks by wood distance from the stock midpoint.
	blazingStocked := concept(map[string]any{"wood": 7.0}, map[string]any{"fire": 80.0})
	blazingBare := concept(map[string]any{"wood": 1.0}, map[string]any{"fire": 69.0})
	assert.Equal(t, goap.Greater, fireBurning.Compare(blazingStocked, blazingBare))
}

func TestBuilder_Build_WithinComparer(t *testing.T) {
	s := validTestScenario()
	s.Goals[0].Expectations[1].Compare = &Compare{Within: []float64{40, 60}}
	built, err := NewBuilder(eatHooks()).Build(s)
	require.NoError(t, err)

	survive, _ := built.Goal("survive")
	notStarving := survive.Expectations[1]

	inside := concept(map[string]any{"hunger": 50.0}, nil)
	outside := concept(map[string]any{"hunger": 70.0}, nil)
	assert.Equal(t, goap.Greater, notStarving.Compare(inside, outside))
}

func TestBuilder_Build_LuaCheckerAndComparer(t *testing.T) {
	s := validTestScenario()
	s.Goals[0].Expectations[1].Check = &Check{Lua: "hunger_ok"}
	s.Goals[0].Expectations[1].Compare = &Compare{Lua: "less_hungry"}

	hooks := eatHooks()
	hooks.checkers = map[string]goap.Checker{
		"hunger_ok": func(value any) bool {
			v, ok := goap.Number(value)
			return ok && v < 50
		},
	}
	hooks.comparers = map[string]goap.Comparer{
		"less_hungry": func(a, b *goap.Concept) goap.Ordering {
			av, _ := goap.NumberAt(a.Agent, "hunger")
			bv, _ := goap.NumberAt(b.Agent, "hunger")
			switch {
			case av < bv:
				return goap.Greater
			case av > bv:
				return goap.Less
			default:
				return goap.Equal
			}
		},
	}

	built, err := NewBuilder(hooks).Build(s)
	require.NoError(t, err)

	survive, _ := built.Goal("survive")
	notStarving := survive.Expectations[1]

	sated := goap.NewMapStoreFrom(map[string]any{"hunger": 10.0, "food": 20.0, "wood": 0.0})
	starving := goap.NewMapStoreFrom(map[string]any{"hunger": 80.0, "food": 20.0, "wood": 0.0})
	assert.True(t, notStarving.Check(sated, built.World))
	assert.False(t, notStarving.Check(starving, built.World))

	a := concept(map[string]any{"hunger": 10.0}, nil)
	b := concept(map[string]any{"hunger": 30.0}, nil)
	assert.Equal(t, goap.Greater, notStarving.Compare(a, b))
}

func TestBuilder_Build_MissingHook(t *testing.T) {
	_, err := NewBuilder(&fakeHooks{}).Build(validTestScenario())
	require.Error(t, err)
	assert.Contains(t, err.Error(), `undefined Lua hook "can_eat"`)
}

func TestBuilder_Build_LuaWithoutHookCaller(t *testing.T) {
	_, err := NewBuilder(nil).Build(validTestScenario())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no hook caller")
}

func TestBuilder_Build_NoLuaNeedsNoHooks(t *testing.T) {
	s := validTestScenario()
	s.Actions[1].Precondition = nil

	built, err := NewBuilder(nil).Build(s)
	require.NoError(t, err)
	assert.NotNil(t, built)
}

// TestBuilder_Build_CampfireEndToEnd drives the whole stack: the shipped
// YAML, the shipped Lua hooks, the builder, and the planner.
func TestBuilder_Build_CampfireEndToEnd(t *testing.T) {
	root := filepath.Join("..", "..")
	s, err := LoadFromFile(filepath.Join(root, "content", "scenarios", "campfire.yaml"))
	require.NoError(t, err)

	mgr := scripting.NewManager(zap.NewNop())
	defer mgr.Close()
	require.NoError(t, mgr.LoadScenario(s.ID, filepath.Join(root, s.ScriptDir), s.ScriptInstructionLimit))

	built, err := NewBuilder(mgr).Build(s)
	require.NoError(t, err)

	planner := goap.NewPlanner()
	planner.SetActions(built.Actions)
	planner.SetAmbientActions(built.Ambient)

	survive, ok := built.Goal("survive")
	require.True(t, ok)

	result, ok := planner.Plan(survive, built.Agent, built.World)
	require.True(t, ok, "campfire scenario must be feasible")
	require.NotEmpty(t, result.Actions)
	assert.True(t, result.Validated)
	assert.True(t, planner.Simulate(survive, result.Actions, built.Agent, built.World))

	// Replay on clones and confirm every expectation holds at the end.
	agent := goap.CloneStore(built.Agent)
	world := goap.CloneStore(built.World)
	for _, action := range result.Actions {
		for _, ambient := range built.Ambient {
			if ambient.CanPerform(agent, world) {
				goap.ApplyAction(agent, world, ambient)
			}
		}
		goap.ApplyAction(agent, world, action)
	}
	assert.True(t, goap.GoalReached(survive, agent, world))

	fire, _ := goap.NumberAt(world, "fire")
	assert.GreaterOrEqual(t, fire, 69.0)
	wood, _ := goap.NumberAt(agent, "wood")
	assert.GreaterOrEqual(t, wood, 5.0)
	assert.LessOrEqual(t, wood, 10.0)
	hunger, _ := goap.NumberAt(agent, "hunger")
	assert.Less(t, hunger, 50.0)
}
