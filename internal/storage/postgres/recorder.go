package postgres

import (
	"context"
	"fmt"

	"github.com/ashkettle/forage/internal/sim"
)

// PlanRecorder persists runner plan records as a planning session plus the
// agent and world snapshots captured when the plan was produced. It satisfies
// sim.Recorder.
type PlanRecorder struct {
	sessions  *SessionRepository
	snapshots *SnapshotRepository
}

// NewPlanRecorder creates a PlanRecorder over the given repositories.
//
// Precondition: sessions and snapshots must be non-nil.
func NewPlanRecorder(sessions *SessionRepository, snapshots *SnapshotRepository) *PlanRecorder {
	return &PlanRecorder{sessions: sessions, snapshots: snapshots}
}

// RecordPlan stores the session row and one snapshot per store.
//
// Postcondition: On success the session and both snapshots are stored. On
// failure a wrapped error is returned and any rows already inserted remain.
func (p *PlanRecorder) RecordPlan(ctx context.Context, rec sim.PlanRecord) error {
	sess, err := p.sessions.Record(ctx, PlanningSession{
		ScenarioID: rec.ScenarioID,
		AgentName:  rec.AgentName,
		GoalID:     rec.GoalID,
		Actions:    rec.Actions,
		Cost:       rec.Cost,
		Validated:  rec.Validated,
		Iterations: rec.Iterations,
		PlanningMS: rec.PlanningMS,
	})
	if err != nil {
		return fmt.Errorf("recording session: %w", err)
	}

	if _, err := p.snapshots.Record(ctx, sess.ID, SnapshotKindAgent, rec.AgentState); err != nil {
		return fmt.Errorf("recording agent snapshot: %w", err)
	}
	if _, err := p.snapshots.Record(ctx, sess.ID, SnapshotKindWorld, rec.WorldState); err != nil {
		return fmt.Errorf("recording world snapshot: %w", err)
	}
	return nil
}
