package telegram

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mymmrac/telego"
)

// Media is a downloaded attachment ready to be republished.
type Media struct {
	Kind        string // "photo" or "document"
	Bytes       []byte
	FileName    string
	ContentType string
}

// ExtractMedia picks the single representative attachment off a message,
// per spec §4.7 ("photo or document"). A message never carries both.
func ExtractMedia(msg *telego.Message) (fileID, kind, fileName, contentType string, size int64, ok bool) {
	switch {
	case len(msg.Photo) > 0:
		p := msg.Photo[len(msg.Photo)-1]
		return p.FileID, "photo", "", "image/jpeg", int64(p.FileSize), true
	case msg.Document != nil:
		d := msg.Document
		return d.FileID, "document", d.FileName, d.MimeType, int64(d.FileSize), true
	default:
		return "", "", "", "", 0, false
	}
}

// DownloadMedia pulls file bytes into memory via the session's bot token.
// Oversized or failing downloads return an error; callers degrade to the
// text-only path per spec §4.7.
func (s *Session) DownloadMedia(ctx context.Context, fileID string, maxBytes int64) (*Media, error) {
	file, err := s.bot.GetFile(ctx, &telego.GetFileParams{FileID: fileID})
	if err != nil {
		return nil, fmt.Errorf("get file info: %w", err)
	}
	if file.FilePath == "" {
		return nil, fmt.Errorf("empty file path for file_id %s", fileID)
	}
	if maxBytes > 0 && int64(file.FileSize) > maxBytes {
		return nil, fmt.Errorf("file too large: %d bytes (max %d)", file.FileSize, maxBytes)
	}

	url := fmt.Sprintf("https://api.telegram.org/file/bot%s/%s", s.token, file.FilePath)

	client := &http.Client{Timeout: 30 * time.Second}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download failed with status %d", resp.StatusCode)
	}

	limit := maxBytes
	if limit <= 0 {
		limit = 1
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read file body: %w", err)
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("file exceeds max size during download: %d bytes", len(data))
	}

	return &Media{Bytes: data}, nil
}
