// Package backend speaks the hosted provider's HTTP and websocket surface:
// auth, table reads/writes, object storage and the realtime change feed.
// Everything above this package works with models types and never sees the
// wire format.
package backend

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/valyala/fasthttp"

	"cloudmail/config"
)

const requestTimeout = 15 * time.Second

// Client is a stateless handle on the provider project. Per-user access
// tokens are passed per call, so a single Client serves every session.
type Client struct {
	cfg  config.ProviderConfig
	http *fasthttp.Client
}

// New creates a provider client for the configured project.
func New(cfg config.ProviderConfig) *Client {
	return &Client{
		cfg: cfg,
		http: &fasthttp.Client{
			ReadTimeout:  requestTimeout,
			WriteTimeout: requestTimeout,
		},
	}
}

// Config exposes the provider configuration to collaborators that need
// table or bucket names.
func (c *Client) Config() config.ProviderConfig {
	return c.cfg
}

// do performs one request against the project. token may be empty for
// anonymous calls; the public api key is always attached. The response body
// is copied out of fasthttp's pooled buffers before release.
func (c *Client) do(method, url, token, contentType string, body []byte, extra map[string]string) (int, []byte, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(url)
	req.Header.SetMethod(method)
	req.Header.Set("apikey", c.cfg.AnonKey)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	} else {
		req.Header.Set("Authorization", "Bearer "+c.cfg.AnonKey)
	}
	if contentType != "" {
		req.Header.SetContentType(contentType)
	}
	for k, v := range extra {
		req.Header.Set(k, v)
	}
	if body != nil {
		req.SetBody(body)
	}

	if err := c.http.DoTimeout(req, resp, requestTimeout); err != nil {
		return 0, nil, fmt.Errorf("provider request failed: %w", err)
	}

	out := append([]byte(nil), resp.Body()...)
	return resp.StatusCode(), out, nil
}

// apiMessage extracts the human-readable message out of a provider error
// body. The auth, table and storage services each use a different field
// name for it.
func apiMessage(body []byte) string {
	var payload struct {
		Message          string `json:"message"`
		Msg              string `json:"msg"`
		ErrorDescription string `json:"error_description"`
		Error            string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	switch {
	case payload.Message != "":
		return payload.Message
	case payload.Msg != "":
		return payload.Msg
	case payload.ErrorDescription != "":
		return payload.ErrorDescription
	default:
		return payload.Error
	}
}
