package mirror

import (
	"github.com/nextlevelbuilder/chanmirror/internal/telegram"
)

// FailoverController is §4.8: reassigns a Poller whose bound session is
// offline or missing to the least-loaded eligible online session.
type FailoverController struct {
	registry *Registry
	pollers  *PollerTable
	alerts   *AlertSink
}

func NewFailoverController(registry *Registry, pollers *PollerTable, alerts *AlertSink) *FailoverController {
	return &FailoverController{registry: registry, pollers: pollers, alerts: alerts}
}

// EnsureLive checks whether p's bound session is online; if not, attempts
// reassignment per §4.8. Returns the (possibly updated) session name bound
// to p, or "" if no live session could be found.
func (f *FailoverController) EnsureLive(p *Poller, roles RoleMap) string {
	sessions := f.registry.All()

	if p.PollSessionName != "" {
		for _, s := range sessions {
			if lowerName(s.Name) == lowerName(p.PollSessionName) && s.Online() {
				return s.Name
			}
		}
	}

	candidate := f.pickCandidate(sessions, roles, p.Source)
	if candidate == nil {
		f.pollers.SetError(p.Source, "no online poll-eligible session available")
		return ""
	}

	f.pollers.Rebind(p.Source, candidate.Name, f.indexOf(sessions, candidate.Name))
	f.alerts.Send("failover:"+sourceKey(p.Source), "source "+sourceKey(p.Source)+" failed over to session "+candidate.Name)
	return candidate.Name
}

// pickCandidate selects the least-loaded online, poll-eligible session:
// ties broken by lowest current poller-count, then lowest index.
func (f *FailoverController) pickCandidate(sessions []*telegram.Session, roles RoleMap, exclude ChannelRef) *telegram.Session {
	load := f.pollerLoadBySession()

	var best *telegram.Session
	bestLoad := -1
	bestIdx := -1
	for i, s := range sessions {
		if !s.Online() {
			continue
		}
		if roles.Post[lowerName(s.Name)] {
			continue
		}
		l := load[lowerName(s.Name)]
		if best == nil || l < bestLoad || (l == bestLoad && i < bestIdx) {
			best = s
			bestLoad = l
			bestIdx = i
		}
	}
	return best
}

func (f *FailoverController) pollerLoadBySession() map[string]int {
	load := make(map[string]int)
	for _, p := range f.pollers.Snapshot() {
		load[lowerName(p.PollSessionName)]++
	}
	return load
}

func (f *FailoverController) indexOf(sessions []*telegram.Session, name string) int {
	for i, s := range sessions {
		if lowerName(s.Name) == lowerName(name) {
			return i
		}
	}
	return -1
}

// SweepDeadPollers runs EnsureLive over every poller; called once per Poll
// Loop tick ahead of fan-out (§4.6 step 1).
func (f *FailoverController) SweepDeadPollers(roles RoleMap) {
	for _, p := range f.pollers.Snapshot() {
		f.EnsureLive(p, roles)
	}
}
