package mirror

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/mymmrac/telego"

	"github.com/nextlevelbuilder/chanmirror/internal/telegram"
)

// JoinGovernor is the Join Governor (§4.3): throttles a session's
// channel-join attempts to at most one per JOIN_INTERVAL_SEC, with jitter,
// so a burst of new jobs never triggers a flood-wait ban.
type JoinGovernor struct {
	interval time.Duration
	jitter   time.Duration

	mu       sync.Mutex
	limiters map[string]*rate.Limiter // per session name
	joined   map[string]map[string]bool // session -> source key -> joined
}

func NewJoinGovernor(interval, jitter time.Duration) *JoinGovernor {
	return &JoinGovernor{
		interval: interval,
		jitter:   jitter,
		limiters: make(map[string]*rate.Limiter),
		joined:   make(map[string]map[string]bool),
	}
}

func (g *JoinGovernor) limiterFor(sessionName string) *rate.Limiter {
	g.mu.Lock()
	defer g.mu.Unlock()
	l, ok := g.limiters[sessionName]
	if !ok {
		l = rate.NewLimiter(rate.Every(g.interval), 1)
		g.limiters[sessionName] = l
	}
	return l
}

func (g *JoinGovernor) markJoined(sessionName string, source ChannelRef) {
	g.mu.Lock()
	defer g.mu.Unlock()
	m, ok := g.joined[sessionName]
	if !ok {
		m = make(map[string]bool)
		g.joined[sessionName] = m
	}
	m[sourceKey(source)] = true
}

func (g *JoinGovernor) hasJoined(sessionName string, source ChannelRef) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.joined[sessionName][sourceKey(source)]
}

// EnsureJoined attempts to join sess to source if it hasn't already,
// respecting the governor's rate limit and adding uniform jitter before the
// call. Returns (joined, notJoinable, err): notJoinable signals a
// private/admin-required condition the caller should treat as
// "not joinable, continue" rather than a hard failure (§4.3, §4.7).
func (g *JoinGovernor) EnsureJoined(ctx context.Context, sess *telegram.Session, source ChannelRef) (joined bool, notJoinable bool, err error) {
	if g.hasJoined(sess.Name, source) {
		return true, false, nil
	}

	limiter := g.limiterFor(sess.Name)
	if err := limiter.Wait(ctx); err != nil {
		return false, false, err
	}

	if g.jitter > 0 {
		d := time.Duration(rand.Int63n(int64(g.jitter)))
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return false, false, ctx.Err()
		}
	}

	chatID := chatIDParam(source)
	_, joinErr := sess.Bot().GetChat(ctx, &telego.GetChatParams{ChatID: chatID})
	if joinErr != nil {
		if wait, isFlood := telegram.FloodWait(joinErr); isFlood {
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return false, false, ctx.Err()
			}
			return false, false, fmt.Errorf("flood wait on join, retry scheduled: %w", joinErr)
		}
		if telegram.IsAdminRequiredError(joinErr) {
			return false, true, nil
		}
		return false, false, joinErr
	}

	_, joinErr = sess.Bot().JoinChat(ctx, &telego.JoinChatParams{ChatID: chatID})
	if joinErr != nil {
		if telegram.IsAdminRequiredError(joinErr) {
			return false, true, nil
		}
		if wait, isFlood := telegram.FloodWait(joinErr); isFlood {
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return false, false, ctx.Err()
			}
			return false, false, fmt.Errorf("flood wait on join, retry scheduled: %w", joinErr)
		}
		// A bot already present in the chat (or the chat not requiring an
		// explicit join, e.g. a public channel it can read via GetChat)
		// is treated as already joined rather than a hard error.
		g.markJoined(sess.Name, source)
		return true, false, nil
	}

	g.markJoined(sess.Name, source)
	return true, false, nil
}

func chatIDParam(ref ChannelRef) telego.ChatID {
	if ref.Username != "" {
		return telego.ChatID{Username: "@" + ref.Username}
	}
	return telego.ChatID{ID: ref.ID}
}
