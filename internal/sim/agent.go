package sim

import (
	"github.com/google/uuid"

	"github.com/ashkettle/forage/internal/goap"
)

// Status is an agent's position in the plan/execute cycle.
type Status string

const (
	// StatusIdle means the agent has no plan and will ask for one next step.
	StatusIdle Status = "idle"
	// StatusPlanning means the agent is inside a planner call.
	StatusPlanning Status = "planning"
	// StatusExecuting means the agent is walking a plan action by action.
	StatusExecuting Status = "executing"
	// StatusSatisfied means the agent's goal holds against the current state.
	StatusSatisfied Status = "satisfied"
	// StatusStuck means planning failed; the agent retries after a backoff.
	StatusStuck Status = "stuck"
)

// Agent is a live planning entity inside one scenario run.
type Agent struct {
	// ID uniquely identifies this runtime agent.
	ID string
	// Name is the agent's display name, unique within the runner.
	Name string
	// Store holds the agent's real properties, mutated as actions execute.
	Store *goap.MapStore
	// Goal is the goal this agent plans toward.
	Goal *goap.Goal
	// Status is the agent's position in the plan/execute cycle.
	Status Status
	// Plan is the action sequence currently being executed; nil when idle.
	Plan goap.Plan
	// Cursor indexes the next Plan action to execute.
	Cursor int
	// RetryAtTick is the earliest tick a stuck agent plans again.
	RetryAtTick uint64
}

// NewAgent creates an idle agent with a fresh unique ID.
//
// Precondition: name must be non-empty; store and goal must be non-nil.
// Postcondition: Status is StatusIdle with no plan.
func NewAgent(name string, store *goap.MapStore, goal *goap.Goal) *Agent {
	return &Agent{
		ID:     uuid.New().String(),
		Name:   name,
		Store:  store,
		Goal:   goal,
		Status: StatusIdle,
	}
}
