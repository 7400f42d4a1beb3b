// Package aiclient talks to the hosted crop doctor function. The function
// accepts an OpenAI-style message list and answers with an SSE stream.
package aiclient

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"agroguard/internal/config"
	"agroguard/internal/sse"
)

var ErrNotConfigured = errors.New("hosted AI function is not configured")

type ImageURL struct {
	URL string `json:"url"`
}

type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

func TextPart(text string) ContentPart {
	return ContentPart{Type: "text", Text: text}
}

func ImagePart(dataURL string) ContentPart {
	return ContentPart{Type: "image_url", ImageURL: &ImageURL{URL: dataURL}}
}

// Message content is either a string or a []ContentPart.
type Message struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"`
}

type Request struct {
	Messages []Message `json:"messages"`
	Language string    `json:"language"`
	HasImage bool      `json:"hasImage,omitempty"`
}

type Client struct {
	url        string
	apiKey     string
	configured bool
	httpClient *http.Client
}

func New(cfg config.CropDoctorConfig) *Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.InsecureTLS {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // development only
	}
	return &Client{
		url:        cfg.BaseURL + cfg.Path,
		apiKey:     cfg.APIKey,
		configured: cfg.Enabled(),
		httpClient: &http.Client{Transport: transport},
	}
}

func (c *Client) Configured() bool {
	return c != nil && c.configured
}

// Post sends req and returns the raw response body. Non-2xx answers become
// an *UpstreamError.
func (c *Client) Post(ctx context.Context, req Request, timeout time.Duration) ([]byte, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	log.Debug().
		Int("status", resp.StatusCode).
		Str("content_type", resp.Header.Get("Content-Type")).
		Int("bytes", len(body)).
		Dur("elapsed", time.Since(start)).
		Msg("Hosted AI function responded")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &UpstreamError{StatusCode: resp.StatusCode, Body: truncate(string(body), 200)}
	}
	return body, nil
}

// Complete posts req and decodes the SSE answer. A stream without deltas is
// returned together with sse.ErrNoContent so callers can inspect Raw.
func (c *Client) Complete(ctx context.Context, req Request, timeout time.Duration) (sse.Result, error) {
	body, err := c.Post(ctx, req, timeout)
	if err != nil {
		return sse.Result{}, err
	}
	return sse.Decode(body)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
