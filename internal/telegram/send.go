package telegram

import (
	"bytes"
	"context"
	"fmt"

	"github.com/mymmrac/telego"
)

// SendParams carries everything the Republisher needs to push one unit
// (message or album primary) through either a named session's bot or an
// ad hoc bot token.
type SendParams struct {
	ChatID     int64
	ThreadID   int // 0 = no forum topic
	Text       string
	Entities   []telego.MessageEntity // preserved formatting; nil if text was transformed
	Media      *Media
}

// Send delivers text and/or a single media attachment through a live bot.
// Entities are only honored when no text edits were applied (caller's
// decision, per spec §4.7 step 4); otherwise Text is sent as plain text.
func Send(ctx context.Context, bot *telego.Bot, p SendParams) error {
	if p.Media != nil {
		return sendMedia(ctx, bot, p)
	}
	return sendText(ctx, bot, p)
}

func sendText(ctx context.Context, bot *telego.Bot, p SendParams) error {
	params := &telego.SendMessageParams{
		ChatID: telego.ChatID{ID: p.ChatID},
		Text:   p.Text,
	}
	if p.ThreadID != 0 {
		params.MessageThreadID = p.ThreadID
	}
	if len(p.Entities) > 0 {
		params.Entities = p.Entities
	}
	_, err := bot.SendMessage(ctx, params)
	return err
}

func sendMedia(ctx context.Context, bot *telego.Bot, p SendParams) error {
	file := telego.InputFile{File: namedReader{bytes.NewReader(p.Media.Bytes), fileNameFor(p.Media)}}

	switch p.Media.Kind {
	case "photo":
		params := &telego.SendPhotoParams{
			ChatID: telego.ChatID{ID: p.ChatID},
			Photo:  file,
			Caption: p.Text,
		}
		if p.ThreadID != 0 {
			params.MessageThreadID = p.ThreadID
		}
		if len(p.Entities) > 0 {
			params.CaptionEntities = p.Entities
		}
		_, err := bot.SendPhoto(ctx, params)
		return err
	case "document":
		params := &telego.SendDocumentParams{
			ChatID:   telego.ChatID{ID: p.ChatID},
			Document: file,
			Caption:  p.Text,
		}
		if p.ThreadID != 0 {
			params.MessageThreadID = p.ThreadID
		}
		if len(p.Entities) > 0 {
			params.CaptionEntities = p.Entities
		}
		_, err := bot.SendDocument(ctx, params)
		return err
	default:
		return fmt.Errorf("unsupported media kind %q", p.Media.Kind)
	}
}

func fileNameFor(m *Media) string {
	if m.FileName != "" {
		return m.FileName
	}
	if m.Kind == "photo" {
		return "photo.jpg"
	}
	return "file.bin"
}

// namedReader adapts a bytes.Reader to the io.Reader + Name() telego wants
// for multipart uploads without round-tripping through a temp file.
type namedReader struct {
	*bytes.Reader
	name string
}

func (n namedReader) Name() string { return n.name }
