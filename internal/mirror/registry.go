package mirror

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/nextlevelbuilder/chanmirror/internal/telegram"
)

// sessionFile is the on-disk descriptor for one session (spec §6:
// "sessions/<name>.session"). Under the Bot-API substitution (SPEC_FULL §0)
// this holds a bot token instead of an MTProto auth key.
type sessionFile struct {
	Token string `json:"token"`
}

// Registry is the Session Registry (§4.1): discovers session files, starts
// and stops their clients, and tracks liveness.
type Registry struct {
	dir string

	mu       sync.Mutex
	sessions []*telegram.Session // dense index == position in this slice
	byName   map[string]int      // lowercased name -> index

	rescanInterval time.Duration
	watcher        *fsnotify.Watcher
}

// NewRegistry creates a Session Registry rooted at dir (spec: "sessions/").
func NewRegistry(dir string, rescanInterval time.Duration) *Registry {
	return &Registry{
		dir:            dir,
		byName:         make(map[string]int),
		rescanInterval: rescanInterval,
	}
}

// Run starts the fixed-interval rescan ticker and, best-effort, an fsnotify
// watch that triggers immediate rescans on file changes. The ticker is the
// correctness backstop (spec-mandated); fsnotify only reduces latency and
// its loss is never observable as a correctness issue.
func (r *Registry) Run(ctx context.Context) {
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		slog.Error("session registry: cannot create sessions dir", "dir", r.dir, "error", err)
	}

	r.rescan(ctx)

	watcher, err := fsnotify.NewWatcher()
	if err == nil {
		if watchErr := watcher.Add(r.dir); watchErr == nil {
			r.watcher = watcher
			go r.watchLoop(ctx)
		} else {
			watcher.Close()
		}
	}

	ticker := time.NewTicker(r.rescanInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			r.shutdown()
			return
		case <-ticker.C:
			r.rescan(ctx)
		}
	}
}

func (r *Registry) watchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-r.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Create|fsnotify.Remove|fsnotify.Rename|fsnotify.Write) != 0 {
				r.rescan(ctx)
			}
		case _, ok := <-r.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

// RunOnce performs a single synchronous discovery pass without starting the
// background ticker or fsnotify watch — for one-shot CLI commands that
// need a populated registry without running the full SR loop.
func (r *Registry) RunOnce(ctx context.Context) {
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		slog.Error("session registry: cannot create sessions dir", "dir", r.dir, "error", err)
	}
	r.rescan(ctx)
}

// rescan discovers new/removed session files and renumbers indices densely.
func (r *Registry) rescan(ctx context.Context) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		slog.Warn("session registry: rescan failed", "error", err)
		return
	}

	seen := make(map[string]bool)
	var toStart []*telegram.Session

	r.mu.Lock()
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".session" {
			continue
		}
		name := strings.TrimSuffix(e.Name(), ".session")
		seen[lowerName(name)] = true
		if _, exists := r.byName[lowerName(name)]; exists {
			continue
		}

		path := filepath.Join(r.dir, e.Name())
		tok, readErr := readSessionToken(path)
		if readErr != nil {
			slog.Warn("session registry: cannot read session file", "path", path, "error", readErr)
			continue
		}
		sess, newErr := telegram.NewSession(name, path, tok)
		if newErr != nil {
			slog.Warn("session registry: cannot construct session", "name", name, "error", newErr)
			continue
		}
		r.sessions = append(r.sessions, sess)
		toStart = append(toStart, sess)
	}

	// Evict sessions whose file disappeared.
	kept := r.sessions[:0]
	for _, s := range r.sessions {
		if seen[lowerName(s.Name)] {
			kept = append(kept, s)
		} else {
			s.Stop()
			slog.Info("session registry: evicted session whose file disappeared", "name", s.Name)
		}
	}
	r.sessions = kept
	r.reindexLocked()
	r.mu.Unlock()

	for _, sess := range toStart {
		go sess.Start(ctx)
	}
}

func (r *Registry) reindexLocked() {
	sort.Slice(r.sessions, func(i, j int) bool { return r.sessions[i].Name < r.sessions[j].Name })
	r.byName = make(map[string]int, len(r.sessions))
	for i, s := range r.sessions {
		r.byName[lowerName(s.Name)] = i
	}
}

func (r *Registry) shutdown() {
	r.mu.Lock()
	sessions := append([]*telegram.Session(nil), r.sessions...)
	r.mu.Unlock()
	for _, s := range sessions {
		s.Stop()
	}
	if r.watcher != nil {
		r.watcher.Close()
	}
}

// ListSnapshot returns a stable, ordered view of all known sessions.
func (r *Registry) ListSnapshot() []SessionSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]SessionSnapshot, len(r.sessions))
	for i, s := range r.sessions {
		out[i] = SessionSnapshot{
			Name:        s.Name,
			Path:        s.Path,
			Online:      s.Online(),
			LastCheckTS: s.LastCheckTS(),
			LastError:   s.LastError(),
			Index:       i,
		}
	}
	return out
}

// FindByName does a case-insensitive match on the session's stem (e.g.
// "alpha"), its full filename (e.g. "alpha.session"), or its platform
// display name (the bot's @username, once known) per §4.1. If the client
// was never started (e.g. added between rescans), it is started on demand.
func (r *Registry) FindByName(ctx context.Context, name string) *telegram.Session {
	needle := lowerName(strings.TrimSuffix(name, ".session"))

	r.mu.Lock()
	idx, ok := r.byName[needle]
	if !ok {
		for i, s := range r.sessions {
			if lowerName(s.BotUsername()) != "" && lowerName(s.BotUsername()) == needle {
				idx, ok = i, true
				break
			}
		}
	}
	if !ok {
		r.mu.Unlock()
		return nil
	}
	sess := r.sessions[idx]
	r.mu.Unlock()

	if !sess.Online() && sess.LastCheckTS().IsZero() {
		sess.Start(ctx)
	}
	return sess
}

// All returns every known session (for RR/FC candidate selection).
func (r *Registry) All() []*telegram.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*telegram.Session(nil), r.sessions...)
}

// Delete stops a session's client, removes its file, and clears it from
// the registry.
func (r *Registry) Delete(name string) error {
	r.mu.Lock()
	idx, ok := r.byName[lowerName(name)]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("session %q not found", name)
	}
	sess := r.sessions[idx]
	r.sessions = append(r.sessions[:idx], r.sessions[idx+1:]...)
	r.reindexLocked()
	r.mu.Unlock()

	sess.Stop()
	if err := os.Remove(sess.Path); err != nil && !os.IsNotExist(err) {
		return err
	}
	os.Remove(sess.Path + "-journal")
	return nil
}

// Upload installs a new session file (spec §6 POST /sessions/upload),
// triggering an immediate rescan rather than waiting for the ticker.
func (r *Registry) Upload(ctx context.Context, name, token string) error {
	if !validSessionName(name) {
		return fmt.Errorf("invalid session name %q", name)
	}
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(r.dir, name+".session")
	data, err := json.Marshal(sessionFile{Token: token})
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return err
	}
	r.rescan(ctx)
	return nil
}

func readSessionToken(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	var sf sessionFile
	if err := json.Unmarshal(data, &sf); err != nil {
		return "", err
	}
	if sf.Token == "" {
		return "", fmt.Errorf("session file %q has no token", path)
	}
	return sf.Token, nil
}

func validSessionName(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		if !(r >= 'A' && r <= 'Z' || r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '.' || r == '_' || r == '+' || r == '-') {
			return false
		}
	}
	return true
}
