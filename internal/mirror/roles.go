package mirror

import "strings"

func lowerName(s string) string { return strings.ToLower(s) }

// ComputeRoleMap is the Role Resolver (§4.2): a pure function over the
// current Poller and Job tables. It never mutates state and is safe to
// call from any goroutine holding no locks on PT/JT (callers snapshot
// first).
func ComputeRoleMap(pollers []*Poller, jobs []*Job) RoleMap {
	rm := RoleMap{Poll: make(map[string]bool), Post: make(map[string]bool)}
	for _, p := range pollers {
		if p.PollSessionName != "" {
			rm.Poll[lowerName(p.PollSessionName)] = true
		}
	}
	for _, j := range jobs {
		if j.PostMode == PostModeUser && j.PostSessionName != "" {
			rm.Post[lowerName(j.PostSessionName)] = true
		}
	}
	return rm
}
