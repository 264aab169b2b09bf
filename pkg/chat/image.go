package chat

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"resty.dev/v3"
)

// EditWindow is how long after arrival an image may still be edited.
const EditWindow = 120_000 * time.Millisecond

const (
	imageFilePrefix = "school-ai-image-"
	defaultImageExt = ".png"
	dataURIPrefix   = "data:"
	base64Marker    = ";base64"
)

// IsEditDisabled reports whether the edit action is unavailable for an image
// that arrived at createdAt (epoch milliseconds). A missing timestamp disables
// editing.
func IsEditDisabled(now time.Time, createdAt *int64) bool {
	if createdAt == nil {
		return true
	}
	return now.UnixMilli()-*createdAt >= EditWindow.Milliseconds()
}

// Download saves the image at src into dir and returns the written path. src is
// either an http(s) URL or a data URI. The file extension follows the detected
// content type.
func Download(ctx context.Context, client *resty.Client, src, dir string, now time.Time) (string, error) {
	data, err := fetchImage(ctx, client, src)
	if err != nil {
		return "", err
	}
	if len(data) == 0 {
		return "", errors.New("image is empty")
	}

	ext := mimetype.Detect(data).Extension()
	if ext == "" {
		ext = defaultImageExt
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating download directory: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("%s%d%s", imageFilePrefix, now.UnixMilli(), ext))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing image: %w", err)
	}
	return path, nil
}

func fetchImage(ctx context.Context, client *resty.Client, src string) ([]byte, error) {
	if strings.HasPrefix(src, dataURIPrefix) {
		return decodeDataURI(src)
	}

	u, err := url.Parse(src)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("unsupported image source %q", truncate(src, 32))
	}

	resp, err := client.R().SetContext(ctx).Get(src)
	if err != nil {
		return nil, fmt.Errorf("fetching image: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("fetching image: status %d", resp.StatusCode())
	}
	return resp.Bytes(), nil
}

func decodeDataURI(src string) ([]byte, error) {
	header, payload, ok := strings.Cut(strings.TrimPrefix(src, dataURIPrefix), ",")
	if !ok {
		return nil, errors.New("malformed data URI")
	}

	if strings.HasSuffix(header, base64Marker) {
		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil, fmt.Errorf("decoding data URI: %w", err)
		}
		return data, nil
	}

	data, err := url.PathUnescape(payload)
	if err != nil {
		return nil, fmt.Errorf("decoding data URI: %w", err)
	}
	return []byte(data), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
