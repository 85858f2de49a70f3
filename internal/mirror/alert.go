package mirror

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/mymmrac/telego"

	"github.com/nextlevelbuilder/chanmirror/internal/events"
)

// AlertSink is the fire-and-forget notifier described in spec §4.7/§7: a
// best-effort HTTPS call to the alert bot's sendMessage, never retried,
// never blocking core progress. Per-key throttling resolves the wall-clock
// modulus flaw noted as an Open Question in §9 by tracking last-sent time
// per throttle key instead of bucketing on wall-clock modulus.
type AlertSink struct {
	bot     *telego.Bot
	chatID  int64
	topicID int
	bus     *events.Bus

	mu       sync.Mutex
	lastSent map[string]time.Time
	throttle time.Duration
}

// NewAlertSink builds a sink from a standalone bot token (ambient alert
// channel, independent of any mirror session). A nil sink is valid and
// Send becomes a no-op, for deployments without alerting configured. bus
// may be nil if the WebSocket surface is disabled.
func NewAlertSink(token string, chatID int64, topicID int, throttle time.Duration, bus *events.Bus) (*AlertSink, error) {
	if token == "" {
		return nil, nil
	}
	bot, err := telego.NewBot(token, telego.WithHTTPClient(&http.Client{Timeout: 20 * time.Second}))
	if err != nil {
		return nil, fmt.Errorf("alert sink: %w", err)
	}
	return &AlertSink{
		bot:      bot,
		chatID:   chatID,
		topicID:  topicID,
		bus:      bus,
		lastSent: make(map[string]time.Time),
		throttle: throttle,
	}, nil
}

// Send emits text under throttleKey, skipping silently if that key fired
// within the throttle window (default 30s, per §4.7's post_session_die
// alert). Errors are logged, never propagated: alerting must never stall
// the core per §6.
func (a *AlertSink) Send(throttleKey, text string) {
	if a == nil {
		return
	}

	a.mu.Lock()
	now := time.Now()
	if last, ok := a.lastSent[throttleKey]; ok && now.Sub(last) < a.throttle {
		a.mu.Unlock()
		return
	}
	a.lastSent[throttleKey] = now
	a.mu.Unlock()

	if a.bus != nil {
		a.bus.Publish(events.Event{Kind: "alert", Key: throttleKey, Message: text})
	}

	go func() {
		sendCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
		defer cancel()

		params := &telego.SendMessageParams{
			ChatID: telego.ChatID{ID: a.chatID},
			Text:   text,
		}
		if a.topicID != 0 {
			params.MessageThreadID = a.topicID
		}
		if _, err := a.bot.SendMessage(sendCtx, params); err != nil {
			slog.Warn("alert sink: send failed", "key", throttleKey, "error", err)
		}
	}()
}
