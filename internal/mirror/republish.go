package mirror

import (
	"context"
	"strings"
	"time"

	"github.com/mymmrac/telego"

	"github.com/nextlevelbuilder/chanmirror/internal/telegram"
)

// captionSeparator is the exact separator from spec §4.7 step 3.
const captionSeparator = "\n\n--------------------------------\n"

// postSessionDieThrottle matches the 30s alert throttle named in §4.7/§7.
const postSessionDieThrottle = 30 * time.Second

// Unit is one album-or-singleton handed to the Republisher by the Poll
// Loop (§4.6 step 6).
type Unit struct {
	ID       int
	Text     string
	Entities []telego.MessageEntity
	Raw      *telego.Message // representative member, for media extraction
}

// Republisher is §4.7: transforms and transports one unit into one job's
// destination.
type Republisher struct {
	registry     *Registry
	joinGov      *JoinGovernor
	alerts       *AlertSink
	includeMedia bool
	mediaMaxBytes int64
	host         string
}

func NewRepublisher(registry *Registry, joinGov *JoinGovernor, alerts *AlertSink, includeMedia bool, mediaMaxBytes int64, host string) *Republisher {
	return &Republisher{
		registry:      registry,
		joinGov:       joinGov,
		alerts:        alerts,
		includeMedia:  includeMedia,
		mediaMaxBytes: mediaMaxBytes,
		host:          host,
	}
}

// Result carries the outcome of one Publish call. PausedReason is set only
// on the hard-fail paths: post_session_missing / post_session_die (§4.7)
// and post_bot_missing_token for a bot job without a token; the Poll Loop
// is responsible for applying it via JobTable.Pause.
type Result struct {
	OK           bool
	PausedReason string
}

// Publish implements §4.7 end to end. pollSession is the session that owns
// the source (used to download media);
// rings records successful publishes for /status introspection. Publish
// never mutates job; the caller applies the returned Result through
// JobTable so table writes stay single-threaded through its mutex.
func (r *Republisher) Publish(ctx context.Context, pollSession *telegram.Session, source ChannelRef, job *Job, unit Unit, rings *RecentRings) Result {
	finalText, preserveEntities := transformText(unit.Text, job.TextStrip, job.CaptionAppend)

	var media *telegram.Media
	if r.includeMedia && r.mediaMaxBytes > 0 {
		if fileID, kind, fileName, contentType, size, ok := telegram.ExtractMedia(unit.Raw); ok {
			if size <= r.mediaMaxBytes {
				downloaded, err := pollSession.DownloadMedia(ctx, fileID, r.mediaMaxBytes)
				if err == nil {
					downloaded.Kind = kind
					downloaded.FileName = fileName
					downloaded.ContentType = contentType
					telegram.NormalizeForUpload(downloaded)
					media = downloaded
				}
				// Oversized/failed downloads degrade to text-only; the
				// text path below is always attempted regardless.
			}
		}
	}

	var entities []telego.MessageEntity
	if preserveEntities {
		entities = unit.Entities
	}

	var res Result
	switch job.PostMode {
	case PostModeUser:
		res = r.publishAsUser(ctx, job, finalText, entities, media)
	case PostModeBot:
		res = r.publishAsBot(ctx, job, finalText, entities, media)
	}

	if res.OK {
		link := linkFor(r.host, job.Dest, unit.ID)
		rings.Append(job.postIdentity(), RecentPublish{Source: source, Dest: job.Dest, Link: link, TS: time.Now()})
	}
	return res
}

func (r *Republisher) publishAsUser(ctx context.Context, job *Job, text string, entities []telego.MessageEntity, media *telegram.Media) Result {
	sess := r.registry.FindByName(ctx, job.PostSessionName)
	if sess == nil {
		return Result{OK: false, PausedReason: "post_session_missing"}
	}
	if !sess.Online() {
		r.alerts.Send("post_session_die:"+job.ID, "post session "+job.PostSessionName+" is offline; job "+job.ID+" paused")
		return Result{OK: false, PausedReason: "post_session_die"}
	}

	if joined, notJoinable, err := r.joinGov.EnsureJoined(ctx, sess, job.Dest); err != nil || (!joined && !notJoinable) {
		return Result{OK: false}
	}

	return Result{OK: r.send(ctx, sess.Bot(), job.Dest, text, entities, media) == nil}
}

func (r *Republisher) publishAsBot(ctx context.Context, job *Job, text string, entities []telego.MessageEntity, media *telegram.Media) Result {
	if job.BotToken == "" {
		return Result{OK: false, PausedReason: "post_bot_missing_token"}
	}
	bot, err := telego.NewBot(job.BotToken)
	if err != nil {
		return Result{OK: false}
	}
	return Result{OK: r.send(ctx, bot, job.Dest, text, entities, media) == nil}
}

func (r *Republisher) send(ctx context.Context, bot *telego.Bot, dest ChannelRef, text string, entities []telego.MessageEntity, media *telegram.Media) error {
	return telegram.Send(ctx, bot, telegram.SendParams{
		ChatID:   dest.ID,
		Text:     text,
		Entities: entities,
		Media:    media,
	})
}

// transformText runs spec §4.7 steps 1-4, returning the final text and
// whether original formatting entities should still be honored.
func transformText(original, textStrip, captionAppend string) (final string, preserveEntities bool) {
	result := original
	if textStrip != "" {
		result = strings.ReplaceAll(result, textStrip, "")
		result = strings.TrimSpace(result)
	}

	switch {
	case captionAppend != "" && result != "":
		result = result + captionSeparator + captionAppend
	case captionAppend != "" && result == "":
		result = captionAppend
	}

	noEdits := textStrip == "" && captionAppend == ""
	return result, noEdits
}

func linkFor(host string, dest ChannelRef, msgID int) string {
	return messageLink(host, dest.Username, dest.ID, int64(msgID))
}
