// Package store persists the Poller Table, Job Table, recent-publish
// rings, and dead-session map described in spec §3/§6. Session live state
// is never persisted (§3: "Session live state is not persisted").
package store

import (
	"context"
	"time"

	"github.com/nextlevelbuilder/chanmirror/internal/mirror"
)

// Snapshot is the full persisted state, serialized to state.json (file
// backend) or the equivalent row set (Postgres backend).
type Snapshot struct {
	Pollers         []*mirror.Poller                  `json:"pollers"`
	Jobs            []*mirror.Job                     `json:"jobs"`
	RecentBySession map[string][]mirror.RecentPublish `json:"recent_by_session"`
	RecentByBot     map[string][]mirror.RecentPublish `json:"recent_by_bot"`
	DeadSessions    map[string]string                 `json:"dead_sessions"`
	SavedAt         time.Time                         `json:"saved_at"`
}

// Store is the persistence backend interface; both the file and Postgres
// implementations satisfy it identically so cmd/serve can select either at
// startup per DB_MODE.
type Store interface {
	Load(ctx context.Context) (*Snapshot, error)
	Save(ctx context.Context, snap *Snapshot) error
	Close() error
}
