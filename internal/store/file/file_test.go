package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nextlevelbuilder/chanmirror/internal/mirror"
	"github.com/nextlevelbuilder/chanmirror/internal/store"
)

func TestLoadMissingFileReturnsEmptySnapshot(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "state.json"))

	snap, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(snap.Pollers) != 0 || len(snap.Jobs) != 0 {
		t.Errorf("expected an empty snapshot, got %+v", snap)
	}
	if snap.RecentBySession == nil || snap.RecentByBot == nil || snap.DeadSessions == nil {
		t.Error("emptySnapshot() must initialize all maps, never leave them nil")
	}
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.json")
	s := New(path)

	want := &store.Snapshot{
		Pollers:         []*mirror.Poller{{Source: mirror.ChannelRef{ID: 1}, PollSessionName: "alpha"}},
		Jobs:            []*mirror.Job{{ID: "job1", Source: mirror.ChannelRef{ID: 1}, Dest: mirror.ChannelRef{ID: 2}}},
		RecentBySession: map[string][]mirror.RecentPublish{},
		RecentByBot:     map[string][]mirror.RecentPublish{},
		DeadSessions:    map[string]string{},
		SavedAt:         time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	if err := s.Save(context.Background(), want); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(got.Pollers) != 1 || got.Pollers[0].PollSessionName != "alpha" {
		t.Fatalf("round-tripped pollers mismatch: %+v", got.Pollers)
	}
	if len(got.Jobs) != 1 || got.Jobs[0].ID != "job1" {
		t.Fatalf("round-tripped jobs mismatch: %+v", got.Jobs)
	}
	if !got.SavedAt.Equal(want.SavedAt) {
		t.Errorf("SavedAt = %v, want %v", got.SavedAt, want.SavedAt)
	}
}

func TestSaveLeavesNoTempFilesBehind(t *testing.T) {
	dir := t.TempDir()
	s := New(filepath.Join(dir, "state.json"))

	if err := s.Save(context.Background(), emptySnapshot()); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "state.json" {
		names := make([]string, len(entries))
		for i, e := range entries {
			names[i] = e.Name()
		}
		t.Errorf("expected only state.json in %s after Save, found %v", dir, names)
	}
}
