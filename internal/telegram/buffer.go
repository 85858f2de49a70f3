package telegram

import (
	"sort"
	"sync"

	"github.com/mymmrac/telego"
)

// bufferDepth bounds how many trailing messages per channel are retained.
// The Bot API only ever pushes messages live (there is no arbitrary
// backfill call for a channel a bot has joined), so this ring is the
// realistic backing store for "fetch messages with id > cursor": once a
// poller has been gone long enough to fall further behind than this depth,
// the gap is unrecoverable from the platform too, not just from this
// buffer — matching the spec's explicit Non-goal of unbounded backfill.
const bufferDepth = 2000

// channelBuffers holds one ordered message ring per source channel ID,
// fed by a session's long-polling loop.
type channelBuffers struct {
	mu   sync.Mutex
	byID map[int64]*channelRing
}

type channelRing struct {
	messages []*telego.Message // kept sorted ascending by MessageID
}

func newChannelBuffers() *channelBuffers {
	return &channelBuffers{byID: make(map[int64]*channelRing)}
}

func (b *channelBuffers) ingest(chatID int64, msg *telego.Message) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ring, ok := b.byID[chatID]
	if !ok {
		ring = &channelRing{}
		b.byID[chatID] = ring
	}

	// Replace an edited message in place; otherwise insert keeping order.
	for i, m := range ring.messages {
		if m.MessageID == msg.MessageID {
			ring.messages[i] = msg
			return
		}
	}
	ring.messages = append(ring.messages, msg)
	sort.Slice(ring.messages, func(i, j int) bool {
		return ring.messages[i].MessageID < ring.messages[j].MessageID
	})
	if len(ring.messages) > bufferDepth {
		ring.messages = ring.messages[len(ring.messages)-bufferDepth:]
	}
}

// FetchSince returns up to limit buffered messages for chatID with
// MessageID > minID, in ascending id order.
func (b *channelBuffers) FetchSince(chatID int64, minID int, limit int) []*telego.Message {
	b.mu.Lock()
	defer b.mu.Unlock()

	ring, ok := b.byID[chatID]
	if !ok {
		return nil
	}

	out := make([]*telego.Message, 0, limit)
	for _, m := range ring.messages {
		if m.MessageID <= minID {
			continue
		}
		out = append(out, m)
		if len(out) >= limit {
			break
		}
	}
	return out
}

// LatestID returns the highest buffered message id for chatID, or 0.
func (b *channelBuffers) LatestID(chatID int64) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	ring, ok := b.byID[chatID]
	if !ok || len(ring.messages) == 0 {
		return 0
	}
	return ring.messages[len(ring.messages)-1].MessageID
}
