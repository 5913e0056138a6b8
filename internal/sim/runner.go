package sim

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ashkettle/forage/internal/goap"
)

// stuckRetryTicks is how many ticks a stuck agent waits before planning again.
const stuckRetryTicks = 5

// PlanRecord is the persistable outcome of one planner call.
type PlanRecord struct {
	ScenarioID string
	AgentName  string
	GoalID     string
	Actions    []string
	Cost       float64
	Validated  bool
	Iterations int
	PlanningMS int64
	AgentState map[string]any
	WorldState map[string]any
}

// Recorder receives plan records as they are produced. Implementations must
// tolerate being called once per successful planner call.
type Recorder interface {
	RecordPlan(ctx context.Context, rec PlanRecord) error
}

// Runner drives one scenario: it owns the shared world store, the ambient
// actions, the planner, and the agents acting in registration order.
// All methods are safe for concurrent use.
//
// Invariant: ambient actions are applied to the world exactly once per step,
// before any agent acts.
type Runner struct {
	scenarioID string
	planner    *goap.Planner
	world      *goap.MapStore
	ambient    []*goap.Action
	logger     *zap.Logger
	recorder   Recorder

	mu     sync.RWMutex
	agents []*Agent
	names  map[string]bool
	tick   uint64

	// neutral stands in for the agent store when gating ambient actions,
	// which validation restricts to world properties.
	neutral *goap.MapStore
}

// NewRunner creates a Runner for one scenario.
//
// Precondition: planner, world, and logger must be non-nil.
func NewRunner(scenarioID string, planner *goap.Planner, world *goap.MapStore, ambient []*goap.Action, logger *zap.Logger) *Runner {
	if planner == nil || world == nil {
		panic("sim.NewRunner: planner and world must not be nil")
	}
	if logger == nil {
		panic("sim.NewRunner: logger must not be nil")
	}
	return &Runner{
		scenarioID: scenarioID,
		planner:    planner,
		world:      world,
		ambient:    ambient,
		logger:     logger,
		names:      make(map[string]bool),
		neutral:    goap.NewMapStore(),
	}
}

// SetRecorder installs a persistence hook for produced plans. A nil recorder
// disables recording. Recorder failures are logged, never fatal.
func (r *Runner) SetRecorder(rec Recorder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recorder = rec
}

// AddAgent registers a new agent acting after all previously added agents.
//
// Precondition: name must be non-empty and unused; store and goal must be
// non-nil.
// Postcondition: Returns the registered idle agent.
func (r *Runner) AddAgent(name string, store *goap.MapStore, goal *goap.Goal) (*Agent, error) {
	if name == "" {
		return nil, fmt.Errorf("sim.Runner.AddAgent: name must not be empty")
	}
	if store == nil || goal == nil {
		return nil, fmt.Errorf("sim.Runner.AddAgent: store and goal must not be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.names[name] {
		return nil, fmt.Errorf("sim.Runner.AddAgent: agent %q already registered", name)
	}

	a := NewAgent(name, store, goal)
	r.agents = append(r.agents, a)
	r.names[name] = true
	return a, nil
}

// Agents returns a snapshot of the registered agents in registration order.
//
// Postcondition: Returns a non-nil slice (may be empty).
func (r *Runner) Agents() []*Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Agent, len(r.agents))
	copy(out, r.agents)
	return out
}

// Tick returns the number of completed steps.
func (r *Runner) Tick() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tick
}

// World returns the runner's shared world store.
func (r *Runner) World() *goap.MapStore {
	return r.world
}

// Step advances the scenario by one tick: ambient actions mutate the world,
// then each agent observes the result and plans or executes.
//
// Postcondition: every performable ambient action applied exactly once; every
// agent advanced by at most one plan action.
func (r *Runner) Step(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	started := time.Now()
	r.tick++

	for _, a := range r.ambient {
		if a.CanPerform(r.neutral, r.world) {
			goap.ApplyAction(r.neutral, r.world, a)
		}
	}

	for _, a := range r.agents {
		r.stepAgent(ctx, a)
	}

	r.logger.Debug("step complete",
		zap.String("scenario", r.scenarioID),
		zap.Uint64("tick", r.tick),
		zap.Duration("elapsed", time.Since(started)),
	)
}

// stepAgent runs one agent's turn: satisfied goals short-circuit, missing
// plans trigger the planner (respecting stuck backoff), and a plan whose next
// action no longer performs against the real stores is abandoned for a fresh
// plan next tick.
func (r *Runner) stepAgent(ctx context.Context, a *Agent) {
	if goap.GoalReached(a.Goal, a.Store, r.world) {
		if a.Status != StatusSatisfied {
			r.logger.Info("goal satisfied",
				zap.String("scenario", r.scenarioID),
				zap.String("agent", a.Name),
				zap.String("goal", a.Goal.Name),
				zap.Uint64("tick", r.tick),
			)
		}
		a.Status = StatusSatisfied
		a.Plan, a.Cursor = nil, 0
		return
	}

	if a.Cursor >= len(a.Plan) {
		if a.Status == StatusStuck && r.tick < a.RetryAtTick {
			return
		}
		if !r.plan(ctx, a) {
			return
		}
	}

	action := a.Plan[a.Cursor]
	if !action.CanPerform(a.Store, r.world) {
		r.logger.Info("plan aborted",
			zap.String("scenario", r.scenarioID),
			zap.String("agent", a.Name),
			zap.String("action", action.Name),
			zap.Int("cursor", a.Cursor),
			zap.Uint64("tick", r.tick),
		)
		a.Status = StatusIdle
		a.Plan, a.Cursor = nil, 0
		return
	}

	goap.ApplyAction(a.Store, r.world, action)
	a.Cursor++
	if a.Cursor >= len(a.Plan) {
		a.Status = StatusIdle
		a.Plan, a.Cursor = nil, 0
	}
}

// plan asks the planner for a fresh plan and installs it on the agent.
//
// Postcondition: Returns true with the agent executing, or false with the
// agent stuck and a retry tick scheduled.
func (r *Runner) plan(ctx context.Context, a *Agent) bool {
	a.Status = StatusPlanning
	started := time.Now()
	result, ok := r.planner.Plan(a.Goal, a.Store, r.world)
	elapsed := time.Since(started)

	if !ok {
		a.Status = StatusStuck
		a.RetryAtTick = r.tick + stuckRetryTicks
		r.logger.Warn("no feasible plan",
			zap.String("scenario", r.scenarioID),
			zap.String("agent", a.Name),
			zap.String("goal", a.Goal.Name),
			zap.Uint64("tick", r.tick),
			zap.Uint64("retry_at", a.RetryAtTick),
		)
		return false
	}

	a.Status = StatusExecuting
	a.Plan = result.Actions
	a.Cursor = 0
	a.RetryAtTick = 0
	r.logger.Info("plan produced",
		zap.String("scenario", r.scenarioID),
		zap.String("agent", a.Name),
		zap.String("goal", a.Goal.Name),
		zap.Strings("actions", result.Actions.Names()),
		zap.Float64("cost", result.Cost),
		zap.Bool("validated", result.Validated),
		zap.Int("iterations", result.Iterations),
		zap.Duration("planning", elapsed),
	)

	r.record(ctx, a, result, elapsed)
	return true
}

// record forwards a successful plan to the recorder, if one is installed.
func (r *Runner) record(ctx context.Context, a *Agent, result *goap.Result, elapsed time.Duration) {
	if r.recorder == nil {
		return
	}
	rec := PlanRecord{
		ScenarioID: r.scenarioID,
		AgentName:  a.Name,
		GoalID:     a.Goal.Name,
		Actions:    result.Actions.Names(),
		Cost:       result.Cost,
		Validated:  result.Validated,
		Iterations: result.Iterations,
		PlanningMS: elapsed.Milliseconds(),
		AgentState: storeSnapshot(a.Store),
		WorldState: storeSnapshot(r.world),
	}
	if err := r.recorder.RecordPlan(ctx, rec); err != nil {
		r.logger.Warn("recording plan",
			zap.String("scenario", r.scenarioID),
			zap.String("agent", a.Name),
			zap.Error(err),
		)
	}
}

// storeSnapshot copies a store's properties into a plain map.
func storeSnapshot(s goap.Store) map[string]any {
	out := make(map[string]any)
	for _, k := range s.Keys() {
		if v, ok := s.Get(k); ok {
			out[k] = v
		}
	}
	return out
}
