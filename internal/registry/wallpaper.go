package registry

import (
	"context"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"keroro/internal/backend"
	"keroro/internal/logging"
	"keroro/internal/validation"
)

const uploadFailed = "上传失败"

type uploadResponse struct {
	Success bool   `json:"success"`
	URL     string `json:"url"`
	Detail  string `json:"detail"`
}

// UploadWallpaper sends an image as the editor background and returns its
// absolute URL.
func (c *Client) UploadWallpaper(ctx context.Context, filename string, content io.Reader) (string, error) {
	name := filepath.Base(strings.TrimSpace(filename))
	if name == "." || name == string(filepath.Separator) {
		name = ""
	}
	if err := validation.RequireNonEmpty(name, "文件名"); err != nil {
		return "", err
	}
	var resp uploadResponse
	found, err := c.transport.Upload(ctx, "/api/wallpaper/upload", "file", name, content, &resp)
	if err != nil {
		var appErr *backend.ApplicationError
		if errors.As(err, &appErr) {
			return "", &backend.ApplicationError{
				StatusCode: appErr.StatusCode,
				Message:    uploadMessage(appErr.Detail),
				Detail:     appErr.Detail,
			}
		}
		return "", err
	}
	if !found || !resp.Success || strings.TrimSpace(resp.URL) == "" {
		msg := strings.TrimSpace(resp.Detail)
		if msg == "" {
			msg = uploadFailed
		}
		return "", &backend.ApplicationError{StatusCode: http.StatusOK, Message: msg, Detail: resp.Detail}
	}
	absolute := c.transport.ResolveURL(resp.URL)
	c.logger.Info("wallpaper uploaded",
		logging.String("file", name),
		logging.String("url", absolute),
		logging.String(logging.FieldEventType, "wallpaper_uploaded"),
	)
	return absolute, nil
}

func uploadMessage(detail any) string {
	if fields, ok := detail.(map[string]any); ok {
		if text, ok := fields["detail"].(string); ok && strings.TrimSpace(text) != "" {
			return strings.TrimSpace(text)
		}
	}
	return uploadFailed
}
