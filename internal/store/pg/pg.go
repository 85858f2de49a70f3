// Package pg implements the Postgres-backed persistence alternative to
// the file store, for deployments that already run a database; like
// state.json, it holds only the latest snapshot.
package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/nextlevelbuilder/chanmirror/internal/mirror"
	"github.com/nextlevelbuilder/chanmirror/internal/store"
)

// Store is the Postgres-backed implementation of store.Store. It keeps
// exactly one row (id = 1) holding the latest snapshot as JSONB, upserted
// on every Save — history is not retained, matching the file backend's
// overwrite semantics, but gains transactional durability.
type Store struct {
	db *sql.DB
}

// New opens a connection pool against dsn (e.g. POSTGRES_DSN).
func New(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Load(ctx context.Context) (*store.Snapshot, error) {
	row := s.db.QueryRowContext(ctx, `SELECT pollers, jobs, recent_by_session, recent_by_bot, dead_sessions, updated_at FROM mirror_state WHERE id = 1`)

	var pollersRaw, jobsRaw, recentSessRaw, recentBotRaw, deadRaw []byte
	var updatedAt time.Time
	if err := row.Scan(&pollersRaw, &jobsRaw, &recentSessRaw, &recentBotRaw, &deadRaw, &updatedAt); err != nil {
		if err == sql.ErrNoRows {
			return emptySnapshot(), nil
		}
		return emptySnapshot(), nil
	}

	snap := emptySnapshot()
	_ = json.Unmarshal(pollersRaw, &snap.Pollers)
	_ = json.Unmarshal(jobsRaw, &snap.Jobs)
	_ = json.Unmarshal(recentSessRaw, &snap.RecentBySession)
	_ = json.Unmarshal(recentBotRaw, &snap.RecentByBot)
	_ = json.Unmarshal(deadRaw, &snap.DeadSessions)
	snap.SavedAt = updatedAt
	return snap, nil
}

func (s *Store) Save(ctx context.Context, snap *store.Snapshot) error {
	pollersJSON, err := json.Marshal(snap.Pollers)
	if err != nil {
		return err
	}
	jobsJSON, err := json.Marshal(snap.Jobs)
	if err != nil {
		return err
	}
	recentSessJSON, err := json.Marshal(snap.RecentBySession)
	if err != nil {
		return err
	}
	recentBotJSON, err := json.Marshal(snap.RecentByBot)
	if err != nil {
		return err
	}
	deadJSON, err := json.Marshal(snap.DeadSessions)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO mirror_state (id, pollers, jobs, recent_by_session, recent_by_bot, dead_sessions, updated_at)
		VALUES (1, $1, $2, $3, $4, $5, now())
		ON CONFLICT (id) DO UPDATE SET
			pollers = EXCLUDED.pollers,
			jobs = EXCLUDED.jobs,
			recent_by_session = EXCLUDED.recent_by_session,
			recent_by_bot = EXCLUDED.recent_by_bot,
			dead_sessions = EXCLUDED.dead_sessions,
			updated_at = EXCLUDED.updated_at
	`, pollersJSON, jobsJSON, recentSessJSON, recentBotJSON, deadJSON)
	if err != nil {
		return fmt.Errorf("save mirror_state: %w", err)
	}
	return nil
}

func emptySnapshot() *store.Snapshot {
	return &store.Snapshot{
		RecentBySession: make(map[string][]mirror.RecentPublish),
		RecentByBot:     make(map[string][]mirror.RecentPublish),
		DeadSessions:    make(map[string]string),
	}
}
