package telegram

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"testing"

	"golang.org/x/image/bmp"
)

func solidBMP(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 50, B: 50, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := bmp.Encode(&buf, img); err != nil {
		t.Fatalf("encode fixture bmp: %v", err)
	}
	return buf.Bytes()
}

func TestNormalizeForUploadConvertsBMPPhotoToJPEG(t *testing.T) {
	m := &Media{Kind: "photo", ContentType: "image/bmp", Bytes: solidBMP(t), FileName: "sticker.bmp"}

	NormalizeForUpload(m)

	if m.ContentType != "image/jpeg" {
		t.Fatalf("expected normalized content type image/jpeg, got %q", m.ContentType)
	}
	if m.FileName != "sticker.jpg" {
		t.Errorf("expected extension swapped to .jpg, got %q", m.FileName)
	}
	if _, err := jpeg.Decode(bytes.NewReader(m.Bytes)); err != nil {
		t.Errorf("normalized bytes must decode as JPEG: %v", err)
	}
}

func TestNormalizeForUploadPromotesDocumentToPhoto(t *testing.T) {
	m := &Media{Kind: "document", ContentType: "image/bmp", Bytes: solidBMP(t), FileName: "sticker.bmp"}

	NormalizeForUpload(m)

	if m.Kind != "photo" {
		t.Errorf("a normalized image document must be promoted to photo kind, got %q", m.Kind)
	}
}

func TestNormalizeForUploadLeavesCompatibleFormatsUntouched(t *testing.T) {
	original := []byte("not really a jpeg, but untouched bytes")
	m := &Media{Kind: "photo", ContentType: "image/jpeg", Bytes: original}

	NormalizeForUpload(m)

	if !bytes.Equal(m.Bytes, original) {
		t.Error("a content type not requiring normalization must be forwarded unchanged")
	}
}

func TestNormalizeForUploadLeavesDocumentsUntouched(t *testing.T) {
	original := []byte("%PDF-1.4 fake pdf bytes")
	m := &Media{Kind: "document", ContentType: "application/pdf", Bytes: original}

	NormalizeForUpload(m)

	if !bytes.Equal(m.Bytes, original) {
		t.Error("a non-image document must never be re-encoded")
	}
}

func TestNormalizeForUploadNilSafe(t *testing.T) {
	NormalizeForUpload(nil) // must not panic
}
