package telegram

import (
	"testing"

	"github.com/mymmrac/telego"
)

func TestExtractMediaPhoto(t *testing.T) {
	msg := &telego.Message{
		Photo: []telego.PhotoSize{
			{FileID: "small", FileSize: 100},
			{FileID: "large", FileSize: 5000},
		},
	}

	fileID, kind, _, contentType, size, ok := ExtractMedia(msg)
	if !ok {
		t.Fatal("expected photo to be extracted")
	}
	if fileID != "large" {
		t.Errorf("expected the largest photo size variant, got %q", fileID)
	}
	if kind != "photo" || contentType != "image/jpeg" || size != 5000 {
		t.Errorf("unexpected extraction: kind=%q contentType=%q size=%d", kind, contentType, size)
	}
}

func TestExtractMediaDocument(t *testing.T) {
	msg := &telego.Message{
		Document: &telego.Document{
			FileID:   "doc1",
			FileName: "report.pdf",
			MimeType: "application/pdf",
			FileSize: 2048,
		},
	}

	fileID, kind, fileName, contentType, size, ok := ExtractMedia(msg)
	if !ok {
		t.Fatal("expected document to be extracted")
	}
	if fileID != "doc1" || kind != "document" || fileName != "report.pdf" || contentType != "application/pdf" || size != 2048 {
		t.Errorf("unexpected extraction: %q %q %q %q %d", fileID, kind, fileName, contentType, size)
	}
}

func TestExtractMediaNone(t *testing.T) {
	_, _, _, _, _, ok := ExtractMedia(&telego.Message{Text: "just text"})
	if ok {
		t.Error("a plain text message must not yield media")
	}
}
