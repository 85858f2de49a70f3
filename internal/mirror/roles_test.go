package mirror

import "testing"

func TestComputeRoleMap(t *testing.T) {
	pollers := []*Poller{
		{Source: ChannelRef{ID: 1}, PollSessionName: "Poller_A"},
		{Source: ChannelRef{ID: 2}, PollSessionName: "poller_b"},
	}
	jobs := []*Job{
		{ID: "j1", Source: ChannelRef{ID: 1}, PostMode: PostModeUser, PostSessionName: "Poster_X"},
		{ID: "j2", Source: ChannelRef{ID: 2}, PostMode: PostModeBot, BotToken: "tok"},
	}

	rm := ComputeRoleMap(pollers, jobs)

	if !rm.Poll["poller_a"] || !rm.Poll["poller_b"] {
		t.Fatalf("expected both poll sessions lowercased in map, got %#v", rm.Poll)
	}
	if !rm.Post["poster_x"] {
		t.Fatalf("expected post session lowercased in map, got %#v", rm.Post)
	}
	if len(rm.Post) != 1 {
		t.Fatalf("bot-mode job must not contribute a post session, got %#v", rm.Post)
	}
}

func TestRoleMapConflictsWith(t *testing.T) {
	rm := RoleMap{
		Poll: map[string]bool{"alice": true},
		Post: map[string]bool{"bob": true},
	}

	if !rm.ConflictsWith("Bob", true, false) {
		t.Error("expected conflict: bob is post-role, requesting poll-role too")
	}
	if !rm.ConflictsWith("Alice", false, true) {
		t.Error("expected conflict: alice is poll-role, requesting post-role too")
	}
	if rm.ConflictsWith("carol", true, false) {
		t.Error("carol holds no role; requesting poll-role should not conflict")
	}
	if rm.ConflictsWith("alice", true, false) {
		t.Error("alice already poll-role; requesting poll-role again is not a conflict")
	}
}
