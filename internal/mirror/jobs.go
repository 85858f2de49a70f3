package mirror

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
)

// Job is one row of the Job Table (§3, §4.5): a single source -> destination
// publishing pipeline with its own cursor, transform settings, and post
// identity.
type Job struct {
	ID   string     `json:"id"`
	Source ChannelRef `json:"source"`
	Dest   ChannelRef `json:"dest"`

	PostMode        PostMode `json:"post_mode"`
	PostSessionName string   `json:"post_session_name,omitempty"` // PostModeUser
	BotToken        string   `json:"-"`                           // PostModeBot; never serialized in /status

	TextStrip     string `json:"text_strip,omitempty"`
	CaptionAppend string `json:"caption_append,omitempty"`

	LastOkID     int    `json:"last_ok_id"`
	LastError    string `json:"last_error,omitempty"`
	PausedReason string `json:"paused_reason,omitempty"`

	CreatedTS time.Time  `json:"created_ts"`
	UpdatedTS time.Time  `json:"updated_ts"`
	LastPostTS *time.Time `json:"last_post_ts,omitempty"`
}

// postIdentity is the component of the job-id hash that distinguishes
// "post as session X" from "post via bot token Y"; a bot token enters only
// as a truncated SHA-256 fingerprint, never as the raw secret.
func (j *Job) postIdentity() string {
	if j.PostMode == PostModeBot {
		sum := sha256.Sum256([]byte(j.BotToken))
		return "bot:" + hex.EncodeToString(sum[:8])
	}
	return "user:" + lowerName(j.PostSessionName)
}

// ComputeJobID derives a stable id from (source, dest, post_mode,
// post_identity) per spec §4.5, so re-adding an identical job after a
// restart resolves to the same cursor row instead of starting over.
func ComputeJobID(source, dest ChannelRef, mode PostMode, postSessionName, botToken string) string {
	j := &Job{Source: source, Dest: dest, PostMode: mode, PostSessionName: postSessionName, BotToken: botToken}
	parts := sourceKey(source) + "|" + sourceKey(dest) + "|" + string(mode) + "|" + j.postIdentity()
	sum := sha256.Sum256([]byte(parts))
	return hex.EncodeToString(sum[:12])
}

// JobTable is the Job Table (JT): every configured mirror pipeline, keyed
// by its stable id.
type JobTable struct {
	mu   sync.Mutex
	byID map[string]*Job
}

func NewJobTable() *JobTable {
	return &JobTable{byID: make(map[string]*Job)}
}

// Upsert installs or updates a job definition. Re-upserting an existing id
// preserves LastOkID (the cursor survives a config reload).
func (t *JobTable) Upsert(j *Job) *Job {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	if existing, ok := t.byID[j.ID]; ok {
		existing.Source = j.Source
		existing.Dest = j.Dest
		existing.PostMode = j.PostMode
		existing.PostSessionName = j.PostSessionName
		existing.BotToken = j.BotToken
		existing.TextStrip = j.TextStrip
		existing.CaptionAppend = j.CaptionAppend
		existing.UpdatedTS = now
		return existing
	}
	j.CreatedTS = now
	j.UpdatedTS = now
	t.byID[j.ID] = j
	return j
}

func (t *JobTable) Get(id string) (*Job, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	j, ok := t.byID[id]
	return j, ok
}

// Delete removes a job by id, returning false if it did not exist.
func (t *JobTable) Delete(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.byID[id]; !ok {
		return false
	}
	delete(t.byID, id)
	return true
}

// AdvanceCursor sets last_ok_id forward and clears any error/pause state on
// a successful publish. Never moves the cursor backward (§5 monotonicity).
func (t *JobTable) AdvanceCursor(id string, newLastOkID int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	j, ok := t.byID[id]
	if !ok || newLastOkID <= j.LastOkID {
		return
	}
	j.LastOkID = newLastOkID
	j.LastError = ""
	j.PausedReason = ""
	now := time.Now()
	j.LastPostTS = &now
	j.UpdatedTS = now
}

// SetError records a non-fatal publish failure without pausing the job.
func (t *JobTable) SetError(id, errText string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if j, ok := t.byID[id]; ok {
		j.LastError = errText
		j.UpdatedTS = time.Now()
	}
}

// Pause marks a job as halted (e.g. post_session_missing, post_session_die)
// per spec §4.7. The reason is advisory /status state: the Poll Loop still
// retries a paused job every tick, and AdvanceCursor clears the reason on
// the next successful publish.
func (t *JobTable) Pause(id, reason string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if j, ok := t.byID[id]; ok {
		j.PausedReason = reason
		j.UpdatedTS = time.Now()
	}
}

// Resume clears a job's paused state, e.g. once its post session reappears.
func (t *JobTable) Resume(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if j, ok := t.byID[id]; ok {
		j.PausedReason = ""
		j.UpdatedTS = time.Now()
	}
}

// BySource returns every job whose Source matches, used by the Poll Loop
// to compute the per-poller minimum cursor (§4.6).
func (t *JobTable) BySource(source ChannelRef) []*Job {
	t.mu.Lock()
	defer t.mu.Unlock()
	key := sourceKey(source)
	var out []*Job
	for _, j := range t.byID {
		if sourceKey(j.Source) == key {
			out = append(out, j)
		}
	}
	return out
}

// Snapshot returns every job, for RR and persistence.
func (t *JobTable) Snapshot() []*Job {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*Job, 0, len(t.byID))
	for _, j := range t.byID {
		out = append(out, j)
	}
	return out
}

// Replace swaps the table contents wholesale (used on snapshot load).
func (t *JobTable) Replace(jobs []*Job) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.byID = make(map[string]*Job, len(jobs))
	for _, j := range jobs {
		t.byID[j.ID] = j
	}
}

// MinCursor returns the lowest LastOkID across jobs sharing one source, the
// floor below which the Poll Loop never needs to fetch (§4.6). Returns -1
// when jobs is empty (caller should skip the poller entirely — orphan).
func MinCursor(jobs []*Job) int {
	if len(jobs) == 0 {
		return -1
	}
	min := jobs[0].LastOkID
	for _, j := range jobs[1:] {
		if j.LastOkID < min {
			min = j.LastOkID
		}
	}
	return min
}
