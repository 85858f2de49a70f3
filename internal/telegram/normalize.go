package telegram

import (
	"bytes"
	"fmt"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // imaging registers BMP/TIFF decoders but not WEBP
)

// formatsNeedingNormalization are content types the Bot API's sendPhoto
// rejects or silently mangles; republishing them requires decoding and
// re-encoding as JPEG first. Anything else is forwarded byte-for-byte.
var formatsNeedingNormalization = map[string]bool{
	"image/webp": true,
	"image/bmp":  true,
	"image/tiff": true,
}

// NormalizeForUpload re-encodes m in place as JPEG when its content type
// is one sendPhoto can't take directly (e.g. a WEBP sticker shipped as a
// document, or a WEBP/BMP/TIFF photo thumbnail). A sticker document that
// normalizes successfully is promoted to Kind "photo" so it republishes
// through sendPhoto with the caption intact. A decode/encode failure
// leaves m untouched; the caller forwards the original bytes as-is.
func NormalizeForUpload(m *Media) {
	if m == nil || (m.Kind != "photo" && m.Kind != "document") || !formatsNeedingNormalization[m.ContentType] {
		return
	}

	img, err := imaging.Decode(bytes.NewReader(m.Bytes))
	if err != nil {
		return
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG); err != nil {
		return
	}

	m.Bytes = buf.Bytes()
	m.ContentType = "image/jpeg"
	m.Kind = "photo"
	if m.FileName != "" {
		m.FileName = fmt.Sprintf("%s.jpg", trimExt(m.FileName))
	}
}

func trimExt(name string) string {
	for i := len(name) - 1; i >= 0 && name[i] != '/'; i-- {
		if name[i] == '.' {
			return name[:i]
		}
	}
	return name
}
