// Package file implements the file-backed persistence backend: a single
// state.json snapshot written atomically (temp file + fsync + rename), the
// pattern the teacher uses for its session manager's on-disk state.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/nextlevelbuilder/chanmirror/internal/mirror"
	"github.com/nextlevelbuilder/chanmirror/internal/store"
)

// Store is the file-backed implementation of store.Store.
type Store struct {
	path string
	mu   sync.Mutex
}

// New returns a Store writing to path (typically "<state-dir>/state.json").
func New(path string) *Store {
	return &Store{path: path}
}

// Load reads the snapshot. A missing or unparseable file is treated as
// empty state per spec §6.
func (s *Store) Load(ctx context.Context) (*store.Snapshot, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return emptySnapshot(), nil
		}
		return emptySnapshot(), nil
	}
	var snap store.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return emptySnapshot(), nil
	}
	return &snap, nil
}

// Save writes the snapshot atomically: marshal to a temp file in the same
// directory, fsync, then rename over the target. A failed rename never
// leaves a half-written state.json.
func (s *Store) Save(ctx context.Context, snap *store.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("state dir: %w", err)
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".state-*.json.tmp")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp state file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("fsync temp state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp state file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("rename temp state file: %w", err)
	}
	return nil
}

func (s *Store) Close() error { return nil }

func emptySnapshot() *store.Snapshot {
	return &store.Snapshot{
		RecentBySession: make(map[string][]mirror.RecentPublish),
		RecentByBot:     make(map[string][]mirror.RecentPublish),
		DeadSessions:    make(map[string]string),
	}
}
