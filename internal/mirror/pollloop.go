package mirror

import (
	"context"
	"math/rand"
	"sort"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/mymmrac/telego"

	"github.com/nextlevelbuilder/chanmirror/internal/tracing"
)

// PollLoop is §4.6: the central ticker that fans out one task per Poller
// every POLL_TICK_SEC (+ IDLE_JITTER_MS jitter).
type PollLoop struct {
	registry    *Registry
	pollers     *PollerTable
	jobs        *JobTable
	joinGov     *JoinGovernor
	failover    *FailoverController
	republisher *Republisher
	rings       *RecentRings

	tick     time.Duration
	jitter   time.Duration
	batchMax int

	onProgress func() // hook for the persistence layer to schedule a snapshot write
}

func NewPollLoop(registry *Registry, pollers *PollerTable, jobs *JobTable, joinGov *JoinGovernor, failover *FailoverController, republisher *Republisher, rings *RecentRings, tick, jitter time.Duration, batchMax int) *PollLoop {
	return &PollLoop{
		registry:    registry,
		pollers:     pollers,
		jobs:        jobs,
		joinGov:     joinGov,
		failover:    failover,
		republisher: republisher,
		rings:       rings,
		tick:        tick,
		jitter:      jitter,
		batchMax:    batchMax,
	}
}

// OnProgress installs a callback invoked after every tick that advanced at
// least one cursor, so the caller can trigger an async snapshot write.
func (pl *PollLoop) OnProgress(f func()) { pl.onProgress = f }

func (pl *PollLoop) Run(ctx context.Context) {
	for {
		if err := sleepWithJitter(ctx, pl.tick, pl.jitter); err != nil {
			return
		}
		pl.runTick(ctx)
	}
}

func sleepWithJitter(ctx context.Context, base, jitter time.Duration) error {
	d := base
	if jitter > 0 {
		d += time.Duration(rand.Int63n(int64(jitter)))
	}
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (pl *PollLoop) runTick(ctx context.Context) {
	tracer := tracing.Tracer()
	ctx, span := tracer.Start(ctx, "poll_loop.tick")
	defer span.End()

	pollers := pl.pollers.Snapshot()
	jobs := pl.jobs.Snapshot()
	roles := ComputeRoleMap(pollers, jobs)
	span.SetAttributes(attribute.Int("pollers", len(pollers)), attribute.Int("jobs", len(jobs)))

	// Step 1: FC sweep runs once, sequentially, ahead of fan-out; it mutates
	// the Poller entries referenced by pollers in place (PollerTable.Rebind),
	// so processPoller below sees each poller's live session directly.
	pl.failover.SweepDeadPollers(roles)

	var progressed atomic.Bool
	g, gctx := errgroup.WithContext(ctx)
	for _, p := range pollers {
		p := p
		g.Go(func() error {
			if pl.processPoller(gctx, tracer, p) {
				progressed.Store(true)
			}
			return nil
		})
	}
	_ = g.Wait()

	if progressed.Load() && pl.onProgress != nil {
		pl.onProgress()
	}
}

// processPoller implements §4.6 steps 2-6 for a single source (step 1, the
// FC sweep, already ran for the whole tick in runTick). Returns true if any
// job's cursor advanced.
func (pl *PollLoop) processPoller(ctx context.Context, tracer trace.Tracer, p *Poller) bool {
	ctx, span := tracer.Start(ctx, "poll_loop.poller",
		trace.WithAttributes(attribute.String("source", sourceKey(p.Source))))
	defer span.End()

	if p.PollSessionName == "" {
		span.SetStatus(codes.Error, "no live session")
		return false
	}
	sess := pl.registry.FindByName(ctx, p.PollSessionName)
	if sess == nil || !sess.Online() {
		span.SetStatus(codes.Error, "poll session not online")
		return false
	}

	// Step 2: ensure join of the source through the poll session.
	_, notJoinable, err := pl.joinGov.EnsureJoined(ctx, sess, p.Source)
	if err != nil {
		pl.pollers.SetError(p.Source, err.Error())
		span.SetStatus(codes.Error, err.Error())
		return false
	}
	if notJoinable {
		pl.pollers.SetError(p.Source, "source not joinable: private or admin-required")
		return false
	}

	// Step 3: min cursor across jobs for this source.
	jobsForSource := pl.jobs.BySource(p.Source)
	if len(jobsForSource) == 0 {
		pl.pollers.RemoveIfOrphan(p.Source, pl.jobs.Snapshot())
		return false
	}
	minCursor := MinCursor(jobsForSource)
	if minCursor < 0 {
		minCursor = 0
	}

	// Step 4: fetch ascending, id > minCursor, limit batchMax.
	msgs := sess.Buffers().FetchSince(p.Source.ID, minCursor, pl.batchMax)
	if len(msgs) == 0 {
		return false
	}
	span.SetAttributes(attribute.Int("fetched", len(msgs)))

	// Steps 5-6: partition into albums/singletons, process albums first.
	units := partitionUnits(msgs)

	progressed := false
	for _, unit := range units {
		for _, job := range jobsForSource {
			if job.LastOkID >= unit.ID {
				continue
			}
			// A paused job is still re-attempted every tick (§7: "re-attempted
			// on the next tick"), not skipped: PausedReason is advisory status
			// for /status, not a hard gate, so a job whose post session comes
			// back online self-clears on the next successful Publish via
			// AdvanceCursor instead of staying stuck forever.
			res := pl.republisher.Publish(ctx, sess, p.Source, job, unit, pl.rings)
			if res.OK {
				pl.jobs.AdvanceCursor(job.ID, unit.ID)
				progressed = true
			} else if res.PausedReason != "" {
				pl.jobs.Pause(job.ID, res.PausedReason)
			}
		}
	}
	return progressed
}

// partitionUnits implements §4.6 steps 5-6 and the album policy: albums
// first (ordered by smallest member id), then singletons ascending. An
// album's primary is the member with the longest text, ties broken by
// highest id.
func partitionUnits(msgs []*telego.Message) []Unit {
	groups := make(map[string][]*telego.Message)
	var singles []*telego.Message
	for _, m := range msgs {
		if m.MediaGroupID != "" {
			groups[m.MediaGroupID] = append(groups[m.MediaGroupID], m)
		} else {
			singles = append(singles, m)
		}
	}

	// Albums are ordered for processing by their smallest member id (§4.6
	// step 6), but the Unit's ID — what gates cursor advancement — is the
	// primary member's id (§4.6 album policy), which need not be the
	// smallest. Track the two separately.
	type albumEntry struct {
		orderID int
		unit    Unit
	}
	var albumEntries []albumEntry
	for _, members := range groups {
		primary := albumPrimary(members)
		u := Unit{ID: primary.MessageID, Raw: primary}.withTextFrom(primary)
		albumEntries = append(albumEntries, albumEntry{orderID: albumSmallestID(members), unit: u})
	}
	sort.Slice(albumEntries, func(i, j int) bool { return albumEntries[i].orderID < albumEntries[j].orderID })
	albumUnits := make([]Unit, len(albumEntries))
	for i, e := range albumEntries {
		albumUnits[i] = e.unit
	}

	var singleUnits []Unit
	for _, m := range singles {
		singleUnits = append(singleUnits, Unit{
			ID:       m.MessageID,
			Text:     m.Text,
			Entities: m.Entities,
			Raw:      m,
		})
	}
	sort.Slice(singleUnits, func(i, j int) bool { return singleUnits[i].ID < singleUnits[j].ID })

	return append(albumUnits, singleUnits...)
}

func (u Unit) withTextFrom(primary *telego.Message) Unit {
	if primary == nil {
		return u
	}
	u.Text = primary.Caption
	if u.Text == "" {
		u.Text = primary.Text
	}
	u.Entities = primary.CaptionEntities
	if len(u.Entities) == 0 {
		u.Entities = primary.Entities
	}
	return u
}

func albumSmallestID(members []*telego.Message) int {
	min := members[0].MessageID
	for _, m := range members[1:] {
		if m.MessageID < min {
			min = m.MessageID
		}
	}
	return min
}

// albumPrimary picks the member with the longest text, ties broken by
// highest id (spec §4.6 album policy).
func albumPrimary(members []*telego.Message) *telego.Message {
	best := members[0]
	bestLen := messageTextLen(best)
	for _, m := range members[1:] {
		l := messageTextLen(m)
		if l > bestLen || (l == bestLen && m.MessageID > best.MessageID) {
			best = m
			bestLen = l
		}
	}
	return best
}

func messageTextLen(m *telego.Message) int {
	if m.Caption != "" {
		return len(m.Caption)
	}
	return len(m.Text)
}
