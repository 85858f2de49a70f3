package mirror

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"os"
	"time"
)

// Core wires the Session Registry, Poller/Job tables, and Role Resolver
// into the single object the HTTP API and CLI commands drive. It never
// runs the Poll Loop itself — that is owned by cmd/serve — but every
// mutation it exposes keeps PT/JT/SR consistent synchronously, per the
// "configuration errors rejected at the API boundary" rule in §7.
type Core struct {
	registry *Registry
	pollers  *PollerTable
	jobs     *JobTable
	rings    *RecentRings
	health   *HealthMonitor
}

func NewCore(registry *Registry, pollers *PollerTable, jobs *JobTable, rings *RecentRings, health *HealthMonitor) *Core {
	return &Core{registry: registry, pollers: pollers, jobs: jobs, rings: rings, health: health}
}

// StatusSnapshot is the data backing GET /status.
type StatusSnapshot struct {
	Sessions []SessionSnapshot
	Pollers  []*Poller
	Jobs     []*Job
	Dead     map[string]string
	Recent   map[string][]RecentPublish
	AsOf     time.Time
}

func (c *Core) Status() StatusSnapshot {
	return StatusSnapshot{
		Sessions: c.registry.ListSnapshot(),
		Pollers:  c.pollers.Snapshot(),
		Jobs:     c.jobs.Snapshot(),
		Dead:     c.health.DeadSessions(),
		Recent:   c.rings.Snapshot(),
		AsOf:     time.Now(),
	}
}

// UpsertParams mirrors httpapi.UpsertJobRequest without importing it
// (avoids an import cycle; httpapi depends on mirror, not vice versa).
type UpsertParams struct {
	Source               ChannelRef
	Dest                 ChannelRef
	PostMode             PostMode
	PostSessionName      string
	BotToken             string
	PreferredPollSession string
	TextStrip            string
	CaptionAppend        string
}

// Upsert implements §4.4/§4.5's upsertPoller + upsertJob, enforcing the
// role-exclusion invariant (§4.2) synchronously before any state changes.
func (c *Core) Upsert(ctx context.Context, p UpsertParams) (*Job, error) {
	if p.PostMode == PostModeUser && p.PostSessionName == "" {
		return nil, ErrMissingPostIdentity
	}
	if p.PostMode == PostModeBot && p.BotToken == "" {
		return nil, ErrMissingPostIdentity
	}

	roles := ComputeRoleMap(c.pollers.Snapshot(), c.jobs.Snapshot())

	if p.PostMode == PostModeUser && roles.ConflictsWith(p.PostSessionName, false, true) {
		return nil, ErrRoleConflict
	}
	if p.PreferredPollSession != "" && roles.ConflictsWith(p.PreferredPollSession, true, false) {
		return nil, ErrRoleConflict
	}

	pollSessionName, pollSessionIndex, err := c.resolvePollSession(ctx, p.Source, p.PreferredPollSession, roles)
	if err != nil {
		return nil, err
	}

	c.pollers.Upsert(p.Source, pollSessionName, pollSessionIndex)

	id := ComputeJobID(p.Source, p.Dest, p.PostMode, p.PostSessionName, p.BotToken)
	baseline := c.baselineCursor(p.Source, pollSessionName)

	job := &Job{
		ID:              id,
		Source:          p.Source,
		Dest:            p.Dest,
		PostMode:        p.PostMode,
		PostSessionName: p.PostSessionName,
		BotToken:        p.BotToken,
		TextStrip:       p.TextStrip,
		CaptionAppend:   p.CaptionAppend,
		LastOkID:        baseline,
	}
	return c.jobs.Upsert(job), nil
}

// resolvePollSession implements §4.4's upsertPoller selection rules.
func (c *Core) resolvePollSession(ctx context.Context, source ChannelRef, preferred string, roles RoleMap) (name string, index int, err error) {
	if existing, ok := c.pollers.Get(source); ok && existing.PollSessionName != "" {
		if sess := c.registry.FindByName(ctx, existing.PollSessionName); sess != nil && sess.Online() {
			return existing.PollSessionName, existing.SessionIndex, nil
		}
	}

	sessions := c.registry.All()

	if preferred != "" {
		for i, s := range sessions {
			if lowerName(s.Name) == lowerName(preferred) {
				if !s.Online() {
					return "", 0, fmt.Errorf("%w: preferred session %q is not online", ErrNoPollSession, preferred)
				}
				return s.Name, i, nil
			}
		}
		return "", 0, fmt.Errorf("%w: %s", ErrUnknownSession, preferred)
	}

	load := make(map[string]int)
	for _, p := range c.pollers.Snapshot() {
		load[lowerName(p.PollSessionName)]++
	}

	bestIdx := -1
	bestLoad := -1
	bestName := ""
	for i, s := range sessions {
		if !s.Online() || roles.Post[lowerName(s.Name)] {
			continue
		}
		l := load[lowerName(s.Name)]
		if bestIdx == -1 || l < bestLoad {
			bestIdx, bestLoad, bestName = i, l, s.Name
		}
	}
	if bestName == "" {
		return "", 0, ErrNoPollSession
	}
	return bestName, bestIdx, nil
}

// baselineCursor implements §4.5: a new job baselines to the source's
// current tip so historical messages are not replayed. Under the Bot-API
// substitution (SPEC_FULL §0) "tip" is the highest id currently buffered;
// a source with no traffic yet baselines to 0, which is indistinguishable
// from "never polled" but correct going forward (§9 open question).
func (c *Core) baselineCursor(source ChannelRef, pollSessionName string) int {
	sess := c.registry.FindByName(context.Background(), pollSessionName)
	if sess == nil {
		return 0
	}
	return sess.Buffers().LatestID(source.ID)
}

// DeleteAllForSource implements §4.5's deleteAll plus §4.4's
// removePollerIfOrphan.
func (c *Core) DeleteAllForSource(ctx context.Context, source ChannelRef) error {
	for _, j := range c.jobs.BySource(source) {
		c.jobs.Delete(j.ID)
	}
	c.pollers.RemoveIfOrphan(source, c.jobs.Snapshot())
	return nil
}

func (c *Core) UploadSession(ctx context.Context, name, token string) error {
	return c.registry.Upload(ctx, name, token)
}

func (c *Core) DeleteSession(name string) error {
	return c.registry.Delete(name)
}

// DownloadSession zips the named session's on-disk file(s), per §6's
// GET /session/download.
func (c *Core) DownloadSession(name string) ([]byte, error) {
	sess := c.registry.FindByName(context.Background(), name)
	if sess == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSession, name)
	}

	data, err := os.ReadFile(sess.Path)
	if err != nil {
		return nil, fmt.Errorf("read session file: %w", err)
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	fw, err := zw.Create(name + ".session")
	if err != nil {
		return nil, err
	}
	if _, err := fw.Write(data); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
