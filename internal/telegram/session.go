// Package telegram adapts the mirror core's notion of an authenticated
// "session" onto github.com/mymmrac/telego's Bot API client — the only
// Telegram client library present in the retrieved corpus. A session is a
// named bot token; "starting" it means constructing a telego.Bot and
// confirming the token is live via GetMe. See SPEC_FULL.md §0 for the
// rationale behind this substitution.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mymmrac/telego"
)

// ErrSessionOffline is returned by operations that require a live client.
var ErrSessionOffline = errors.New("telegram: session offline")

// Session is one authenticated bot identity bound to a session file on disk.
type Session struct {
	Name string
	Path string

	mu          sync.RWMutex
	bot         *telego.Bot
	token       string
	online      bool
	lastCheckTS time.Time
	lastError   string
	botUserID   int64
	botUsername string

	buffers *channelBuffers

	pollCancel context.CancelFunc
	pollDone   chan struct{}
	running    atomic.Bool
}

// NewSession constructs a Session bound to a token, without starting it.
func NewSession(name, path, token string) (*Session, error) {
	bot, err := telego.NewBot(token, telego.WithHTTPClient(&http.Client{Timeout: 30 * time.Second}))
	if err != nil {
		return nil, fmt.Errorf("create bot for session %q: %w", name, err)
	}
	return &Session{
		Name:    name,
		Path:    path,
		bot:     bot,
		token:   token,
		buffers: newChannelBuffers(),
	}, nil
}

// Start connects the session and begins long polling for channel posts.
// A failed authorization check marks the session offline but does not
// return an error: the caller (Session Registry) treats this the same way
// as any other dead session, retried on the next rescan/healthcheck.
func (s *Session) Start(ctx context.Context) {
	me, err := s.bot.GetMe(ctx)
	s.mu.Lock()
	s.lastCheckTS = time.Now()
	if err != nil {
		s.online = false
		s.lastError = err.Error()
		s.mu.Unlock()
		slog.Warn("session authorization failed", "session", s.Name, "error", err)
		return
	}
	s.online = true
	s.lastError = ""
	s.botUserID = me.ID
	s.botUsername = me.Username
	s.mu.Unlock()

	pollCtx, cancel := context.WithCancel(ctx)
	s.pollCancel = cancel
	s.pollDone = make(chan struct{})

	updates, err := s.bot.UpdatesViaLongPolling(pollCtx, &telego.GetUpdatesParams{
		Timeout:        30,
		AllowedUpdates: []string{"channel_post", "edited_channel_post", "message"},
	})
	if err != nil {
		cancel()
		s.mu.Lock()
		s.online = false
		s.lastError = err.Error()
		s.mu.Unlock()
		return
	}

	s.running.Store(true)
	go func() {
		defer close(s.pollDone)
		for {
			select {
			case <-pollCtx.Done():
				return
			case upd, ok := <-updates:
				if !ok {
					return
				}
				s.ingest(&upd)
			}
		}
	}()
}

// Stop cancels long polling and waits for the goroutine to exit.
func (s *Session) Stop() {
	s.running.Store(false)
	if s.pollCancel != nil {
		s.pollCancel()
	}
	if s.pollDone != nil {
		select {
		case <-s.pollDone:
		case <-time.After(10 * time.Second):
			slog.Warn("session polling goroutine did not exit in time", "session", s.Name)
		}
	}
}

func (s *Session) ingest(upd *telego.Update) {
	var msg *telego.Message
	switch {
	case upd.ChannelPost != nil:
		msg = upd.ChannelPost
	case upd.EditedChannelPost != nil:
		msg = upd.EditedChannelPost
	case upd.Message != nil:
		msg = upd.Message
	default:
		return
	}
	s.buffers.ingest(msg.Chat.ID, msg)
}

// Online reports the last-known liveness of the session.
func (s *Session) Online() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.online
}

// SetOnline force-updates liveness (used by the health monitor).
func (s *Session) SetOnline(online bool, lastErr string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.online = online
	s.lastError = lastErr
	s.lastCheckTS = time.Now()
}

// LastError returns the most recently recorded error string, if any.
func (s *Session) LastError() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastError
}

// LastCheckTS returns the timestamp of the last liveness check.
func (s *Session) LastCheckTS() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastCheckTS
}

// BotUsername returns the session's bot @username, if known.
func (s *Session) BotUsername() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.botUsername
}

// Bot returns the underlying telego client for direct API calls.
func (s *Session) Bot() *telego.Bot { return s.bot }

// Buffers returns the per-channel ingestion buffers fed by long polling.
func (s *Session) Buffers() *channelBuffers { return s.buffers }

// CheckAuthorization re-verifies the bot token is still accepted by the
// platform. Used by the Health Monitor, which classifies terminal failures
// (revoked/deactivated) from the returned error via IsTerminalAuthError.
func (s *Session) CheckAuthorization(ctx context.Context) error {
	_, err := s.bot.GetMe(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastCheckTS = time.Now()
	if err != nil {
		s.online = false
		s.lastError = err.Error()
		return err
	}
	s.online = true
	s.lastError = ""
	return nil
}

// IsTerminalAuthError recognizes platform error text indicating the
// credential itself is dead (not a transient network/flood issue).
func IsTerminalAuthError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, needle := range []string{"Unauthorized", "bot was blocked", "bot is not a member", "account deactivated", "token is invalid"} {
		if containsFold(msg, needle) {
			return true
		}
	}
	return false
}
