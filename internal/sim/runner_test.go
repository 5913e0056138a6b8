package sim_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"pgregory.net/rapid"

	"github.com/ashkettle/forage/internal/goap"
	"github.com/ashkettle/forage/internal/scenario"
	"github.com/ashkettle/forage/internal/scripting"
	"github.com/ashkettle/forage/internal/sim"
)

// feedAction converts one unit of agent wood into five units of world fire.
func feedAction() *goap.Action {
	return goap.NewAction("feed", 1,
		func(agent, world goap.Store) bool {
			wood, ok := goap.NumberAt(agent, "wood")
			return ok && wood >= 1
		},
		goap.NewEffect("feed/agent.wood", goap.TargetAgent, "wood", -1),
		goap.NewEffect("feed/world.fire", goap.TargetWorld, "fire", 5),
	)
}

func decayAction() *goap.Action {
	return goap.NewAction("fire_decay", 0,
		func(agent, world goap.Store) bool {
			fire, ok := goap.NumberAt(world, "fire")
			return ok && fire > 0
		},
		goap.NewEffect("fire_decay/world.fire", goap.TargetWorld, "fire", -1),
	)
}

func warmGoal() *goap.Goal {
	return goap.NewGoal("warm", goap.NewExpectation(
		"fire_hot",
		goap.TargetWorld,
		"fire",
		goap.AtLeast(10),
		goap.PreferHigherUntil(goap.TargetWorld, "fire", 10),
	))
}

func warmPlanner() *goap.Planner {
	p := goap.NewPlanner()
	p.SetActions([]*goap.Action{goap.NoOp(), feedAction()})
	return p
}

func warmStores() (*goap.MapStore, *goap.MapStore) {
	agent := goap.NewMapStoreFrom(map[string]any{"wood": 3.0})
	world := goap.NewMapStoreFrom(map[string]any{"fire": 0.0})
	return agent, world
}

func newTestRunner(t *testing.T, planner *goap.Planner, world *goap.MapStore, ambient []*goap.Action) (*sim.Runner, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	return sim.NewRunner("warmth", planner, world, ambient, zap.New(core)), logs
}

type captureRecorder struct {
	records []sim.PlanRecord
	err     error
}

func (c *captureRecorder) RecordPlan(_ context.Context, rec sim.PlanRecord) error {
	if c.err != nil {
		return c.err
	}
	c.records = append(c.records, rec)
	return nil
}

func TestNewRunner_PanicsOnNilPlanner(t *testing.T) {
	_, world := warmStores()
	assert.Panics(t, func() {
		sim.NewRunner("warmth", nil, world, nil, zap.NewNop())
	})
}

func TestNewRunner_PanicsOnNilLogger(t *testing.T) {
	_, world := warmStores()
	assert.Panics(t, func() {
		sim.NewRunner("warmth", warmPlanner(), world, nil, nil)
	})
}

func TestRunner_AddAgent_EmptyName(t *testing.T) {
	agent, world := warmStores()
	r, _ := newTestRunner(t, warmPlanner(), world, nil)
	_, err := r.AddAgent("", agent, warmGoal())
	assert.Error(t, err)
}

func TestRunner_AddAgent_NilStoreOrGoal(t *testing.T) {
	agent, world := warmStores()
	r, _ := newTestRunner(t, warmPlanner(), world, nil)
	_, err := r.AddAgent("camper", nil, warmGoal())
	assert.Error(t, err)
	_, err = r.AddAgent("camper", agent, nil)
	assert.Error(t, err)
}

func TestRunner_AddAgent_DuplicateName(t *testing.T) {
	agent, world := warmStores()
	r, _ := newTestRunner(t, warmPlanner(), world, nil)
	_, err := r.AddAgent("camper", agent, warmGoal())
	require.NoError(t, err)
	_, err = r.AddAgent("camper", goap.NewMapStore(), warmGoal())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")
}

func TestRunner_AddAgent_RegistrationOrder(t *testing.T) {
	_, world := warmStores()
	r, _ := newTestRunner(t, warmPlanner(), world, nil)
	for _, name := range []string{"first", "second", "third"} {
		_, err := r.AddAgent(name, goap.NewMapStore(), warmGoal())
		require.NoError(t, err)
	}

	agents := r.Agents()
	require.Len(t, agents, 3)
	assert.Equal(t, "first", agents[0].Name)
	assert.Equal(t, "second", agents[1].Name)
	assert.Equal(t, "third", agents[2].Name)
}

// TestRunner_StepPlansAndExecutesToSatisfaction walks the full cycle: the
// first step produces a validated plan and executes its head, subsequent
// steps execute one action each, and the step after the last action observes
// the satisfied goal.
func TestRunner_StepPlansAndExecutesToSatisfaction(t *testing.T) {
	agentStore, world := warmStores()
	r, logs := newTestRunner(t, warmPlanner(), world, nil)
	camper, err := r.AddAgent("camper", agentStore, warmGoal())
	require.NoError(t, err)

	for i := 0; i < 6; i++ {
		r.Step(context.Background())
	}

	assert.Equal(t, sim.StatusSatisfied, camper.Status)
	assert.Nil(t, camper.Plan)
	assert.Equal(t, uint64(6), r.Tick())

	fire, _ := goap.NumberAt(world, "fire")
	assert.Equal(t, 10.0, fire)
	wood, _ := goap.NumberAt(agentStore, "wood")
	assert.Equal(t, 1.0, wood)

	// The first plan validated, so no replan was ever needed.
	assert.Equal(t, 1, logs.FilterMessage("plan produced").Len())
	assert.Equal(t, 1, logs.FilterMessage("goal satisfied").Len())
}

func TestRunner_SatisfiedAgentShortCircuits(t *testing.T) {
	agentStore := goap.NewMapStoreFrom(map[string]any{"wood": 3.0})
	world := goap.NewMapStoreFrom(map[string]any{"fire": 10.0})
	r, logs := newTestRunner(t, warmPlanner(), world, nil)
	camper, err := r.AddAgent("camper", agentStore, warmGoal())
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		r.Step(context.Background())
	}

	assert.Equal(t, sim.StatusSatisfied, camper.Status)
	assert.Zero(t, logs.FilterMessage("plan produced").Len())
	wood, _ := goap.NumberAt(agentStore, "wood")
	assert.Equal(t, 3.0, wood)
}

// TestRunner_AmbientAppliesBeforeAgentEvaluation pins the step ordering: the
// world decays first, so an agent that was satisfied last tick re-evaluates
// against the already-decayed state.
func TestRunner_AmbientAppliesBeforeAgentEvaluation(t *testing.T) {
	planner := goap.NewPlanner()
	planner.SetActions([]*goap.Action{goap.NoOp()})
	planner.SetAmbientActions([]*goap.Action{decayAction()})

	agentStore := goap.NewMapStore()
	world := goap.NewMapStoreFrom(map[string]any{"fire": 11.0})
	r, logs := newTestRunner(t, planner, world, []*goap.Action{decayAction()})
	camper, err := r.AddAgent("camper", agentStore, warmGoal())
	require.NoError(t, err)

	r.Step(context.Background())
	fire, _ := goap.NumberAt(world, "fire")
	assert.Equal(t, 10.0, fire)
	assert.Equal(t, sim.StatusSatisfied, camper.Status)

	// One more decay drops the fire below the goal; with only the no-op
	// available the planner cannot recover and the agent goes stuck.
	r.Step(context.Background())
	fire, _ = goap.NumberAt(world, "fire")
	assert.Equal(t, 9.0, fire)
	assert.Equal(t, sim.StatusStuck, camper.Status)
	assert.Equal(t, uint64(7), camper.RetryAtTick)
	assert.Equal(t, 1, logs.FilterMessage("no feasible plan").Len())
}

func TestRunner_StuckAgentBacksOff(t *testing.T) {
	planner := goap.NewPlanner()
	planner.SetActions([]*goap.Action{feedAction()})

	agentStore := goap.NewMapStoreFrom(map[string]any{"wood": 0.0})
	world := goap.NewMapStoreFrom(map[string]any{"fire": 0.0})
	r, logs := newTestRunner(t, planner, world, nil)
	camper, err := r.AddAgent("camper", agentStore, warmGoal())
	require.NoError(t, err)

	for i := 0; i < 7; i++ {
		r.Step(context.Background())
	}

	// Planning was attempted on tick 1 and retried on tick 6, nothing else.
	assert.Equal(t, 2, logs.FilterMessage("no feasible plan").Len())
	assert.Equal(t, sim.StatusStuck, camper.Status)
	assert.Equal(t, uint64(11), camper.RetryAtTick)
}

// TestRunner_AbortsPlanWhoseActionCannotPerform covers divergence between the
// planned trajectory and the real stores: the remainder is abandoned and the
// next step plans afresh.
func TestRunner_AbortsPlanWhoseActionCannotPerform(t *testing.T) {
	agentStore, world := warmStores()
	r, logs := newTestRunner(t, warmPlanner(), world, nil)
	camper, err := r.AddAgent("camper", agentStore, warmGoal())
	require.NoError(t, err)

	impossible := goap.NewAction("mine_gold", 1, func(agent, world goap.Store) bool {
		gold, ok := goap.NumberAt(agent, "gold")
		return ok && gold >= 1
	})
	camper.Plan = goap.Plan{impossible}
	camper.Cursor = 0
	camper.Status = sim.StatusExecuting

	r.Step(context.Background())
	assert.Equal(t, sim.StatusIdle, camper.Status)
	assert.Nil(t, camper.Plan)
	assert.Equal(t, 1, logs.FilterMessage("plan aborted").Len())

	r.Step(context.Background())
	assert.Equal(t, sim.StatusExecuting, camper.Status)
	assert.Equal(t, 1, logs.FilterMessage("plan produced").Len())
}

func TestRunner_AmbientGatedByOwnPrecondition(t *testing.T) {
	world := goap.NewMapStoreFrom(map[string]any{"fire": 2.0})
	r, _ := newTestRunner(t, warmPlanner(), world, []*goap.Action{decayAction()})

	for i := 0; i < 5; i++ {
		r.Step(context.Background())
	}

	fire, _ := goap.NumberAt(world, "fire")
	assert.Equal(t, 0.0, fire)
}

func TestRunner_RecorderReceivesPlanRecord(t *testing.T) {
	agentStore, world := warmStores()
	r, _ := newTestRunner(t, warmPlanner(), world, nil)
	_, err := r.AddAgent("camper", agentStore, warmGoal())
	require.NoError(t, err)

	rec := &captureRecorder{}
	r.SetRecorder(rec)
	r.Step(context.Background())

	require.Len(t, rec.records, 1)
	got := rec.records[0]
	assert.Equal(t, "warmth", got.ScenarioID)
	assert.Equal(t, "camper", got.AgentName)
	assert.Equal(t, "warm", got.GoalID)
	assert.Equal(t, []string{"no-op", "feed", "no-op", "feed"}, got.Actions)
	assert.Equal(t, 2.0, got.Cost)
	assert.True(t, got.Validated)
	assert.Equal(t, 4, got.Iterations)
	assert.GreaterOrEqual(t, got.PlanningMS, int64(0))

	// Snapshots are taken before the first action executes.
	assert.Equal(t, 3.0, got.AgentState["wood"])
	assert.Equal(t, 0.0, got.WorldState["fire"])
}

func TestRunner_RecorderErrorIsLoggedNotFatal(t *testing.T) {
	agentStore, world := warmStores()
	r, logs := newTestRunner(t, warmPlanner(), world, nil)
	camper, err := r.AddAgent("camper", agentStore, warmGoal())
	require.NoError(t, err)

	r.SetRecorder(&captureRecorder{err: errors.New("connection refused")})
	r.Step(context.Background())

	assert.Equal(t, sim.StatusExecuting, camper.Status)
	assert.NotEmpty(t, camper.Plan)
	assert.Equal(t, 1, logs.FilterMessage("recording plan").Len())
}

// TestProperty_StuckRetrySchedule checks the backoff arithmetic: an agent
// that can never plan attempts on tick 1 and then every fifth tick.
func TestProperty_StuckRetrySchedule(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		steps := rapid.IntRange(1, 40).Draw(t, "steps")

		planner := goap.NewPlanner()
		planner.SetActions([]*goap.Action{feedAction()})
		agentStore := goap.NewMapStoreFrom(map[string]any{"wood": 0.0})
		world := goap.NewMapStoreFrom(map[string]any{"fire": 0.0})
		core, logs := observer.New(zap.DebugLevel)
		r := sim.NewRunner("warmth", planner, world, nil, zap.New(core))
		if _, err := r.AddAgent("camper", agentStore, warmGoal()); err != nil {
			t.Fatalf("AddAgent: %v", err)
		}

		for i := 0; i < steps; i++ {
			r.Step(context.Background())
		}

		want := (steps-1)/5 + 1
		if got := logs.FilterMessage("no feasible plan").Len(); got != want {
			t.Fatalf("planning attempts after %d steps: got %d, want %d", steps, got, want)
		}
	})
}

// TestRunner_CampfireEndToEnd runs the shipped campfire content through the
// live loop: ambient decay, replanning, and execution against real stores
// until the goal is observed satisfied.
func TestRunner_CampfireEndToEnd(t *testing.T) {
	root := filepath.Join("..", "..")
	s, err := scenario.LoadFromFile(filepath.Join(root, "content", "scenarios", "campfire.yaml"))
	require.NoError(t, err)

	mgr := scripting.NewManager(zap.NewNop())
	defer mgr.Close()
	require.NoError(t, mgr.LoadScenario(s.ID, filepath.Join(root, s.ScriptDir), s.ScriptInstructionLimit))

	built, err := scenario.NewBuilder(mgr).Build(s)
	require.NoError(t, err)

	planner := goap.NewPlanner()
	planner.SetActions(built.Actions)
	planner.SetAmbientActions(built.Ambient)

	survive, ok := built.Goal("survive")
	require.True(t, ok)

	r := sim.NewRunner(s.ID, planner, built.World, built.Ambient, zap.NewNop())
	camper, err := r.AddAgent("survivor", built.Agent, survive)
	require.NoError(t, err)

	satisfiedAt := 0
	for i := 1; i <= 120; i++ {
		r.Step(context.Background())
		if camper.Status == sim.StatusSatisfied {
			satisfiedAt = i
			break
		}
	}
	require.NotZero(t, satisfiedAt, "agent never reached the survive goal")

	fire, _ := goap.NumberAt(built.World, "fire")
	assert.GreaterOrEqual(t, fire, 69.0)
	wood, _ := goap.NumberAt(camper.Store, "wood")
	assert.GreaterOrEqual(t, wood, 5.0)
	assert.LessOrEqual(t, wood, 10.0)
	hunger, _ := goap.NumberAt(camper.Store, "hunger")
	assert.Less(t, hunger, 50.0)

	// The loop keeps running after satisfaction: decay unseats the goal and
	// the agent feeds the fire again without ever wedging.
	for i := 0; i < 20; i++ {
		r.Step(context.Background())
	}
	fire, _ = goap.NumberAt(built.World, "fire")
	assert.GreaterOrEqual(t, fire, 49.0)
}
