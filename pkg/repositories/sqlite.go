package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/eliperez-dev/flightsync/pkg/messages"
	_ "github.com/mattn/go-sqlite3"
)

type SQLiteRepository struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS session_log (
	run_id TEXT NOT NULL,
	player_id INTEGER NOT NULL,
	name TEXT NOT NULL,
	event TEXT NOT NULL,
	at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS position_samples (
	run_id TEXT NOT NULL,
	player_id INTEGER NOT NULL,
	x REAL NOT NULL,
	y REAL NOT NULL,
	z REAL NOT NULL,
	state_timestamp INTEGER NOT NULL,
	at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_position_samples_player
	ON position_samples (run_id, player_id);
`

// NewSQLiteRepository opens (and if needed initializes) a flight log
// database at the given path.
func NewSQLiteRepository(ctx context.Context, path string) (Repository, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %v", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %v", err)
	}

	return &SQLiteRepository{
		db: db,
	}, nil
}

func (r *SQLiteRepository) Close(ctx context.Context) error {
	return r.db.Close()
}

func (r *SQLiteRepository) RecordJoin(ctx context.Context, runID string, playerID uint32, name string, at time.Time) error {
	q := `
	INSERT INTO session_log (run_id, player_id, name, event, at)
	VALUES (?, ?, ?, 'join', ?);
	`
	if _, err := r.db.ExecContext(ctx, q, runID, playerID, name, at.UnixMilli()); err != nil {
		return fmt.Errorf("failed to insert join entry: %v", err)
	}
	return nil
}

func (r *SQLiteRepository) RecordLeave(ctx context.Context, runID string, playerID uint32, at time.Time) error {
	q := `
	INSERT INTO session_log (run_id, player_id, name, event, at)
	VALUES (?, ?, '', 'leave', ?);
	`
	if _, err := r.db.ExecContext(ctx, q, runID, playerID, at.UnixMilli()); err != nil {
		return fmt.Errorf("failed to insert leave entry: %v", err)
	}
	return nil
}

func (r *SQLiteRepository) RecordSample(ctx context.Context, runID string, state messages.PlayerState, at time.Time) error {
	q := `
	INSERT INTO position_samples (run_id, player_id, x, y, z, state_timestamp, at)
	VALUES (?, ?, ?, ?, ?, ?, ?);
	`
	if _, err := r.db.ExecContext(ctx, q, runID, state.ID, state.Position.X, state.Position.Y, state.Position.Z, state.Timestamp, at.UnixMilli()); err != nil {
		return fmt.Errorf("failed to insert position sample: %v", err)
	}
	return nil
}
