package mirror

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/nextlevelbuilder/chanmirror/internal/telegram"
)

// HealthMonitor is §4.9: periodically reconnects/re-authorizes every known
// session and publishes a dead-session map.
type HealthMonitor struct {
	registry *Registry
	interval time.Duration

	mu   sync.Mutex
	dead map[string]string // session name -> last_error
}

func NewHealthMonitor(registry *Registry, interval time.Duration) *HealthMonitor {
	return &HealthMonitor{registry: registry, interval: interval, dead: make(map[string]string)}
}

func (h *HealthMonitor) Run(ctx context.Context) {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	h.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.sweep(ctx)
		}
	}
}

func (h *HealthMonitor) sweep(ctx context.Context) {
	sessions := h.registry.All()
	dead := make(map[string]string)
	for _, s := range sessions {
		if err := s.CheckAuthorization(ctx); err != nil {
			reason := err.Error()
			if telegram.IsTerminalAuthError(err) {
				reason = "terminal: " + reason
			}
			s.SetOnline(false, reason)
			dead[s.Name] = reason
			slog.Warn("health monitor: session unhealthy", "session", s.Name, "error", err)
			continue
		}
		s.SetOnline(true, "")
	}

	h.mu.Lock()
	h.dead = dead
	h.mu.Unlock()
}

// DeadSessions returns the last published dead-session map.
func (h *HealthMonitor) DeadSessions() map[string]string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make(map[string]string, len(h.dead))
	for k, v := range h.dead {
		out[k] = v
	}
	return out
}
