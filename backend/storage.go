package backend

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/valyala/fasthttp"

	"cloudmail/utils"
)

// Upload stores an object under bucket/key. The object is publicly
// readable immediately after a successful upload; PublicURL resolves it.
func (c *Client) Upload(token, bucket, key string, data []byte, contentType string) error {
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	target := c.cfg.URL + "/storage/v1/object/" + bucket + "/" + escapeKey(key)
	status, resp, err := c.do(fasthttp.MethodPost, target, token, contentType, data, nil)
	if err != nil {
		return utils.UploadError("Upload failed", err)
	}
	if status >= 400 {
		msg := apiMessage(resp)
		if msg == "" {
			msg = fmt.Sprintf("upload rejected (status %d)", status)
		}
		return utils.UploadError(msg, nil)
	}
	return nil
}

// PublicURL returns the durable URL of an uploaded object.
func (c *Client) PublicURL(bucket, key string) string {
	return c.cfg.URL + "/storage/v1/object/public/" + bucket + "/" + escapeKey(key)
}

// escapeKey escapes each path segment of an object key while keeping the
// separators, so keys with slashes stay hierarchical.
func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
