package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// defaultListLimit bounds ListByScenario when the caller passes no limit.
const defaultListLimit = 50

// ErrSessionNotFound is returned when a planning session lookup yields no results.
var ErrSessionNotFound = errors.New("planning session not found")

// ErrSessionExists is returned when recording a session with an ID already stored.
var ErrSessionExists = errors.New("planning session already exists")

// PlanningSession is one recorded planner outcome: the plan an agent committed
// to, with its cost, validation flag, and search effort.
type PlanningSession struct {
	ID         string
	ScenarioID string
	AgentName  string
	GoalID     string
	Actions    []string
	Cost       float64
	Validated  bool
	Iterations int
	PlanningMS int64
	CreatedAt  time.Time
}

// SessionRepository provides planning session persistence operations.
type SessionRepository struct {
	db *pgxpool.Pool
}

// NewSessionRepository creates a SessionRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewSessionRepository(db *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{db: db}
}

// Record inserts a planning session. An empty ID is assigned a fresh UUID.
//
// Precondition: s.ScenarioID, s.AgentName, and s.GoalID must be non-empty.
// Postcondition: Returns the stored session with ID and CreatedAt set, or
// ErrSessionExists if the supplied ID is already stored.
func (r *SessionRepository) Record(ctx context.Context, s PlanningSession) (PlanningSession, error) {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	if s.Actions == nil {
		s.Actions = []string{}
	}

	var out PlanningSession
	err := r.db.QueryRow(ctx, `
		INSERT INTO planning_sessions
			(id, scenario_id, agent_name, goal_id, actions, cost, validated, iterations, planning_ms)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING id, scenario_id, agent_name, goal_id, actions, cost, validated, iterations, planning_ms, created_at`,
		s.ID, s.ScenarioID, s.AgentName, s.GoalID, s.Actions, s.Cost, s.Validated, s.Iterations, s.PlanningMS,
	).Scan(
		&out.ID, &out.ScenarioID, &out.AgentName, &out.GoalID, &out.Actions,
		&out.Cost, &out.Validated, &out.Iterations, &out.PlanningMS, &out.CreatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return PlanningSession{}, ErrSessionExists
		}
		return PlanningSession{}, fmt.Errorf("inserting planning session: %w", err)
	}
	return out, nil
}

// Get retrieves a planning session by its ID.
//
// Precondition: id must be non-empty.
// Postcondition: Returns the PlanningSession or ErrSessionNotFound.
func (r *SessionRepository) Get(ctx context.Context, id string) (PlanningSession, error) {
	var s PlanningSession
	err := r.db.QueryRow(ctx, `
		SELECT id, scenario_id, agent_name, goal_id, actions, cost, validated, iterations, planning_ms, created_at
		FROM planning_sessions WHERE id = $1`,
		id,
	).Scan(
		&s.ID, &s.ScenarioID, &s.AgentName, &s.GoalID, &s.Actions,
		&s.Cost, &s.Validated, &s.Iterations, &s.PlanningMS, &s.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PlanningSession{}, ErrSessionNotFound
		}
		return PlanningSession{}, fmt.Errorf("querying planning session: %w", err)
	}
	return s, nil
}

// ListByScenario returns the newest sessions for a scenario, newest first.
// A limit below 1 falls back to the default.
//
// Precondition: scenarioID must be non-empty.
// Postcondition: Returns a slice (may be empty) or a non-nil error.
func (r *SessionRepository) ListByScenario(ctx context.Context, scenarioID string, limit int) ([]PlanningSession, error) {
	if limit < 1 {
		limit = defaultListLimit
	}

	rows, err := r.db.Query(ctx, `
		SELECT id, scenario_id, agent_name, goal_id, actions, cost, validated, iterations, planning_ms, created_at
		FROM planning_sessions WHERE scenario_id = $1
		ORDER BY created_at DESC, id DESC LIMIT $2`,
		scenarioID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing planning sessions: %w", err)
	}
	defer rows.Close()

	sessions := make([]PlanningSession, 0)
	for rows.Next() {
		var s PlanningSession
		if err := rows.Scan(
			&s.ID, &s.ScenarioID, &s.AgentName, &s.GoalID, &s.Actions,
			&s.Cost, &s.Validated, &s.Iterations, &s.PlanningMS, &s.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning planning session row: %w", err)
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}
