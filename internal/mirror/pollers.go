package mirror

import (
	"strconv"
	"sync"
	"time"
)

// Poller is one row of the Poller Table (§3, §4.4): a source channel bound
// to exactly one polling session. Multiple Jobs may share a Poller by
// pointing at the same Source.
type Poller struct {
	Source          ChannelRef `json:"source"`
	PollSessionName string     `json:"poll_session_name"`
	SessionIndex    int        `json:"session_index"`
	CreatedTS       time.Time  `json:"created_ts"`
	LastError       string     `json:"last_error,omitempty"`
	LastFailoverTS  *time.Time `json:"last_failover_ts,omitempty"`
}

func sourceKey(ref ChannelRef) string {
	if ref.Username != "" {
		return "u:" + lowerName(ref.Username)
	}
	return "i:" + strconv.FormatInt(ref.ID, 10)
}

// PollerTable is the Poller Table (PT): one entry per distinct source
// channel currently being polled by some session.
type PollerTable struct {
	mu   sync.Mutex
	byID map[string]*Poller
}

func NewPollerTable() *PollerTable {
	return &PollerTable{byID: make(map[string]*Poller)}
}

// Upsert returns the existing Poller for source if present, otherwise
// creates one bound to sessionName/sessionIndex. The invariant "at most one
// poller per source" (§5) is enforced by this being the only insertion
// path.
func (t *PollerTable) Upsert(source ChannelRef, sessionName string, sessionIndex int) *Poller {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := sourceKey(source)
	if p, ok := t.byID[key]; ok {
		return p
	}
	p := &Poller{
		Source:          source,
		PollSessionName: sessionName,
		SessionIndex:    sessionIndex,
		CreatedTS:       time.Now(),
	}
	t.byID[key] = p
	return p
}

// Get returns the Poller for source, if any.
func (t *PollerTable) Get(source ChannelRef) (*Poller, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.byID[sourceKey(source)]
	return p, ok
}

// Rebind switches a Poller to a new session after failover (§4.8).
func (t *PollerTable) Rebind(source ChannelRef, sessionName string, sessionIndex int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.byID[sourceKey(source)]
	if !ok {
		return
	}
	p.PollSessionName = sessionName
	p.SessionIndex = sessionIndex
	p.LastError = ""
	now := time.Now()
	p.LastFailoverTS = &now
}

// SetError records the most recent poll failure for a source, surfaced via
// /status.
func (t *PollerTable) SetError(source ChannelRef, errText string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if p, ok := t.byID[sourceKey(source)]; ok {
		p.LastError = errText
	}
}

// RemoveIfOrphan deletes the Poller for source when no Job references it
// any longer (§4.4: pollers without jobs are garbage).
func (t *PollerTable) RemoveIfOrphan(source ChannelRef, jobs []*Job) {
	for _, j := range jobs {
		if sourceKey(j.Source) == sourceKey(source) {
			return
		}
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.byID, sourceKey(source))
}

// Snapshot returns all pollers, for RR and persistence.
func (t *PollerTable) Snapshot() []*Poller {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*Poller, 0, len(t.byID))
	for _, p := range t.byID {
		out = append(out, p)
	}
	return out
}

// Replace swaps the table contents wholesale (used on snapshot load).
func (t *PollerTable) Replace(pollers []*Poller) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.byID = make(map[string]*Poller, len(pollers))
	for _, p := range pollers {
		t.byID[sourceKey(p.Source)] = p
	}
}
