package mirror

import "testing"

func TestComputeJobIDStableAndDistinguishesIdentity(t *testing.T) {
	src := ChannelRef{ID: 100, Username: "source"}
	dst := ChannelRef{ID: 200, Username: "dest"}

	id1 := ComputeJobID(src, dst, PostModeUser, "Poster_A", "")
	id2 := ComputeJobID(src, dst, PostModeUser, "poster_a", "")
	if id1 != id2 {
		t.Errorf("job id must be case-insensitive on post session name: %q != %q", id1, id2)
	}

	id3 := ComputeJobID(src, dst, PostModeUser, "poster_b", "")
	if id1 == id3 {
		t.Error("different post session names must yield different job ids")
	}

	botID1 := ComputeJobID(src, dst, PostModeBot, "", "token-one")
	botID2 := ComputeJobID(src, dst, PostModeBot, "", "token-two")
	if botID1 == botID2 {
		t.Error("different bot tokens must yield different job ids")
	}
	if botID1 == id1 {
		t.Error("user-mode and bot-mode jobs over the same source/dest must differ")
	}
}

func TestJobTableAdvanceCursorMonotonic(t *testing.T) {
	jt := NewJobTable()
	j := jt.Upsert(&Job{ID: "j1", LastOkID: 10})

	jt.AdvanceCursor("j1", 5)
	if j.LastOkID != 10 {
		t.Errorf("cursor must never move backward: got %d, want 10", j.LastOkID)
	}

	jt.AdvanceCursor("j1", 10)
	if j.LastOkID != 10 {
		t.Errorf("advancing to the same id must be a no-op: got %d, want 10", j.LastOkID)
	}

	jt.AdvanceCursor("j1", 11)
	if j.LastOkID != 11 {
		t.Errorf("cursor must advance on a strictly greater id: got %d, want 11", j.LastOkID)
	}
	if j.PausedReason != "" {
		t.Error("a successful advance must clear any paused reason")
	}
}

func TestJobTableUpsertPreservesCursor(t *testing.T) {
	jt := NewJobTable()
	jt.Upsert(&Job{ID: "j1", LastOkID: 42, TextStrip: "old"})

	updated := jt.Upsert(&Job{ID: "j1", LastOkID: 0, TextStrip: "new"})
	if updated.LastOkID != 42 {
		t.Errorf("re-upserting an existing job must preserve its cursor: got %d, want 42", updated.LastOkID)
	}
	if updated.TextStrip != "new" {
		t.Errorf("re-upserting must still apply new config fields: got %q", updated.TextStrip)
	}
}

func TestJobTablePauseAndResume(t *testing.T) {
	jt := NewJobTable()
	jt.Upsert(&Job{ID: "j1"})

	jt.Pause("j1", "post_session_die")
	j, _ := jt.Get("j1")
	if j.PausedReason != "post_session_die" {
		t.Fatalf("expected paused reason set, got %q", j.PausedReason)
	}

	jt.Resume("j1")
	j, _ = jt.Get("j1")
	if j.PausedReason != "" {
		t.Fatalf("expected paused reason cleared after resume, got %q", j.PausedReason)
	}
}

func TestMinCursor(t *testing.T) {
	if got := MinCursor(nil); got != -1 {
		t.Errorf("MinCursor(nil) = %d, want -1 (orphan signal)", got)
	}

	jobs := []*Job{{LastOkID: 50}, {LastOkID: 10}, {LastOkID: 30}}
	if got := MinCursor(jobs); got != 10 {
		t.Errorf("MinCursor() = %d, want 10", got)
	}
}

func TestJobTableBySource(t *testing.T) {
	jt := NewJobTable()
	src := ChannelRef{ID: 1}
	other := ChannelRef{ID: 2}
	jt.Upsert(&Job{ID: "a", Source: src})
	jt.Upsert(&Job{ID: "b", Source: src})
	jt.Upsert(&Job{ID: "c", Source: other})

	got := jt.BySource(src)
	if len(got) != 2 {
		t.Fatalf("expected 2 jobs for source, got %d", len(got))
	}
}
