package mirror

import (
	"context"
	"testing"

	"github.com/mymmrac/telego"
)

func TestTransformTextCaptionAppend(t *testing.T) {
	// Spec §8 scenario 5.
	final, preserve := transformText("hello promo world", "promo", "Mirrored")
	want := "hello  world" + captionSeparator + "Mirrored"
	if final != want {
		t.Errorf("transformText() = %q, want %q", final, want)
	}
	if preserve {
		t.Error("text edits were applied; entities must not be preserved")
	}
}

func TestTransformTextStripOnly(t *testing.T) {
	final, preserve := transformText("  promo hello  ", "promo", "")
	if final != "hello" {
		t.Errorf("transformText() = %q, want %q", final, "hello")
	}
	if preserve {
		t.Error("text_strip alone still counts as a text edit")
	}
}

func TestTransformTextCaptionOnlyWithEmptyResult(t *testing.T) {
	final, _ := transformText("promo", "promo", "Mirrored")
	if final != "Mirrored" {
		t.Errorf("empty result after strip must yield the bare caption: got %q", final)
	}
}

func TestTransformTextNoEditsPreservesEntities(t *testing.T) {
	final, preserve := transformText("unchanged text", "", "")
	if final != "unchanged text" {
		t.Errorf("transformText() = %q, want unchanged", final)
	}
	if !preserve {
		t.Error("no text_strip and no caption_append must preserve original entities")
	}
}

func TestTransformTextBothEmptyYieldsEmpty(t *testing.T) {
	final, preserve := transformText("", "", "")
	if final != "" {
		t.Errorf("transformText() = %q, want empty string", final)
	}
	if !preserve {
		t.Error("no edits requested, even on empty input, must preserve entities")
	}
}

// TestPublishMediaMaxBytesZeroDegradesToTextOnly pins spec §8's boundary:
// MEDIA_MAX_BYTES = 0 must always degrade to text-only, never attempt a
// download. A nil poll session proves the download path was never entered:
// reaching it would nil-dereference through (*telegram.Session).DownloadMedia.
func TestPublishMediaMaxBytesZeroDegradesToTextOnly(t *testing.T) {
	r := NewRepublisher(nil, nil, nil, true, 0, "")
	job := &Job{ID: "j1", PostMode: PostModeBot, BotToken: ""}
	unit := Unit{ID: 1, Text: "hello", Raw: &telego.Message{
		MessageID: 1,
		Photo:     []telego.PhotoSize{{FileID: "f1", FileSize: 100}},
	}}

	res := r.Publish(context.Background(), nil, ChannelRef{ID: 1}, job, unit, NewRecentRings())

	if res.PausedReason != "post_bot_missing_token" {
		t.Fatalf("Publish() result = %+v, want the text-only bot path to still run and pause on the missing token", res)
	}
}
