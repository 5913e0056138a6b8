package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Kind constants for snapshot subjects.
const (
	SnapshotKindAgent = "agent"
	SnapshotKindWorld = "world"
)

// ValidSnapshotKind reports whether kind is a recognised snapshot subject.
func ValidSnapshotKind(kind string) bool {
	switch kind {
	case SnapshotKindAgent, SnapshotKindWorld:
		return true
	}
	return false
}

// ErrInvalidSnapshotKind is returned when an unrecognised kind string is supplied.
var ErrInvalidSnapshotKind = errors.New("invalid snapshot kind")

// ErrSnapshotNotFound is returned when a snapshot lookup yields no results.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// Snapshot is a property-store capture taken when a plan was recorded. Agent
// snapshots hold the planning agent's properties, world snapshots the shared
// world's, both as they stood before the plan executed.
type Snapshot struct {
	ID         int64
	SessionID  string
	Kind       string
	Properties map[string]any
	TakenAt    time.Time
}

// SnapshotRepository provides snapshot persistence operations.
type SnapshotRepository struct {
	db *pgxpool.Pool
}

// NewSnapshotRepository creates a SnapshotRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewSnapshotRepository(db *pgxpool.Pool) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// Record inserts a snapshot for the given session.
//
// Precondition: sessionID must reference a stored planning session; kind must
// be a valid kind string (use ValidSnapshotKind to check).
// Postcondition: Returns the stored Snapshot with ID and TakenAt set, or
// ErrInvalidSnapshotKind.
func (r *SnapshotRepository) Record(ctx context.Context, sessionID, kind string, properties map[string]any) (Snapshot, error) {
	if !ValidSnapshotKind(kind) {
		return Snapshot{}, ErrInvalidSnapshotKind
	}
	if properties == nil {
		properties = map[string]any{}
	}

	var snap Snapshot
	err := r.db.QueryRow(ctx, `
		INSERT INTO agent_snapshots (session_id, kind, properties)
		VALUES ($1, $2, $3)
		RETURNING id, session_id, kind, properties, taken_at`,
		sessionID, kind, properties,
	).Scan(&snap.ID, &snap.SessionID, &snap.Kind, &snap.Properties, &snap.TakenAt)
	if err != nil {
		return Snapshot{}, fmt.Errorf("inserting snapshot: %w", err)
	}
	return snap, nil
}

// Latest retrieves the most recent snapshot of the given kind for a session.
//
// Precondition: sessionID must be non-empty; kind must be a valid kind string.
// Postcondition: Returns the Snapshot, ErrInvalidSnapshotKind, or ErrSnapshotNotFound.
func (r *SnapshotRepository) Latest(ctx context.Context, sessionID, kind string) (Snapshot, error) {
	if !ValidSnapshotKind(kind) {
		return Snapshot{}, ErrInvalidSnapshotKind
	}

	var snap Snapshot
	err := r.db.QueryRow(ctx, `
		SELECT id, session_id, kind, properties, taken_at
		FROM agent_snapshots
		WHERE session_id = $1 AND kind = $2
		ORDER BY taken_at DESC, id DESC LIMIT 1`,
		sessionID, kind,
	).Scan(&snap.ID, &snap.SessionID, &snap.Kind, &snap.Properties, &snap.TakenAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Snapshot{}, ErrSnapshotNotFound
		}
		return Snapshot{}, fmt.Errorf("querying snapshot: %w", err)
	}
	return snap, nil
}

// ListBySession retrieves all snapshots for a session, oldest first.
//
// Precondition: sessionID must be non-empty.
// Postcondition: Returns a slice (may be empty) or a non-nil error.
func (r *SnapshotRepository) ListBySession(ctx context.Context, sessionID string) ([]Snapshot, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, session_id, kind, properties, taken_at
		FROM agent_snapshots
		WHERE session_id = $1
		ORDER BY taken_at ASC, id ASC`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}
	defer rows.Close()

	snaps := make([]Snapshot, 0)
	for rows.Next() {
		var snap Snapshot
		if err := rows.Scan(&snap.ID, &snap.SessionID, &snap.Kind, &snap.Properties, &snap.TakenAt); err != nil {
			return nil, fmt.Errorf("scanning snapshot row: %w", err)
		}
		snaps = append(snaps, snap)
	}
	return snaps, rows.Err()
}
