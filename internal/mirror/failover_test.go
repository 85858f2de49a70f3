package mirror

import (
	"testing"

	"github.com/nextlevelbuilder/chanmirror/internal/telegram"
)

func testSession(t *testing.T, name string, online bool) *telegram.Session {
	t.Helper()
	// NewBot validates token shape but never dials the network.
	s, err := telegram.NewSession(name, "/tmp/"+name+".session", "123456789:AAHdqTcvCH1vGWJxfSeofSAs0K5PALDsaw")
	if err != nil {
		t.Fatalf("construct session %q: %v", name, err)
	}
	s.SetOnline(online, "")
	return s
}

func TestFailoverPickCandidateSkipsOfflineAndPostSessions(t *testing.T) {
	registry := NewRegistry(t.TempDir(), 0)
	online := testSession(t, "alpha", true)
	offline := testSession(t, "beta", false)
	poster := testSession(t, "gamma", true)
	registry.sessions = []*telegram.Session{offline, poster, online}
	registry.reindexLocked()

	pollers := NewPollerTable()
	f := NewFailoverController(registry, pollers, nil)

	roles := RoleMap{Poll: map[string]bool{}, Post: map[string]bool{"gamma": true}}
	candidate := f.pickCandidate(registry.All(), roles, ChannelRef{ID: 1})
	if candidate == nil || candidate.Name != "alpha" {
		t.Fatalf("expected alpha as the only eligible candidate, got %v", candidate)
	}
}

func TestFailoverPickCandidatePrefersLeastLoaded(t *testing.T) {
	registry := NewRegistry(t.TempDir(), 0)
	busy := testSession(t, "busy", true)
	idle := testSession(t, "idle", true)
	registry.sessions = []*telegram.Session{busy, idle}
	registry.reindexLocked()

	pollers := NewPollerTable()
	pollers.Upsert(ChannelRef{ID: 1}, "busy", 0)
	pollers.Upsert(ChannelRef{ID: 2}, "busy", 0)

	f := NewFailoverController(registry, pollers, nil)
	roles := RoleMap{Poll: map[string]bool{}, Post: map[string]bool{}}
	candidate := f.pickCandidate(registry.All(), roles, ChannelRef{ID: 3})
	if candidate == nil || candidate.Name != "idle" {
		t.Fatalf("expected the less-loaded session idle, got %v", candidate)
	}
}

func TestFailoverEnsureLiveKeepsCurrentSessionWhenOnline(t *testing.T) {
	registry := NewRegistry(t.TempDir(), 0)
	online := testSession(t, "alpha", true)
	registry.sessions = []*telegram.Session{online}
	registry.reindexLocked()

	pollers := NewPollerTable()
	p := pollers.Upsert(ChannelRef{ID: 1}, "alpha", 0)

	f := NewFailoverController(registry, pollers, nil)
	roles := RoleMap{Poll: map[string]bool{"alpha": true}, Post: map[string]bool{}}
	got := f.EnsureLive(p, roles)
	if got != "alpha" {
		t.Errorf("EnsureLive() = %q, want alpha (still online)", got)
	}
}

func TestFailoverEnsureLiveReturnsEmptyWhenNoCandidate(t *testing.T) {
	registry := NewRegistry(t.TempDir(), 0)
	dead := testSession(t, "alpha", false)
	registry.sessions = []*telegram.Session{dead}
	registry.reindexLocked()

	pollers := NewPollerTable()
	p := pollers.Upsert(ChannelRef{ID: 1}, "alpha", 0)

	f := NewFailoverController(registry, pollers, nil)
	roles := RoleMap{Poll: map[string]bool{"alpha": true}, Post: map[string]bool{}}
	got := f.EnsureLive(p, roles)
	if got != "" {
		t.Errorf("EnsureLive() = %q, want empty string when no session is eligible", got)
	}
	updated, _ := pollers.Get(ChannelRef{ID: 1})
	if updated.LastError == "" {
		t.Error("expected LastError to be recorded when failover finds no candidate")
	}
}
