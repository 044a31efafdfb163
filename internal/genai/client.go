// Package genai is a minimal REST client for the Gemini image
// generation endpoint. It submits one image-edit request per call:
// retrying here would stack with the editor's own retry-on-503 and
// blow through the request deadline, so overload is surfaced to the
// caller instead.
package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/albumforge/albumforge/internal/config"
	"github.com/albumforge/albumforge/internal/metrics"
)

var (
	// ErrOverloaded marks retryable provider congestion. The editor is
	// expected to retry manually.
	ErrOverloaded = errors.New("provider overloaded")

	// ErrNoImage means the model answered without an inline image part.
	ErrNoImage = errors.New("Model completed but did not return an image.")
)

// Image is an inline image payload as the provider returns it:
// base64-encoded bytes plus a mime type.
type Image struct {
	Data     string
	MimeType string
}

type Client struct {
	httpClient *http.Client
	apiKey     string
	model      string
	baseURL    string
}

func NewClient(cfg config.GeminiConfig) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
	}
}

type generateRequest struct {
	Contents         []content         `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type generationConfig struct {
	ImageConfig *imageConfig `json:"imageConfig,omitempty"`
}

type imageConfig struct {
	ImageSize string `json:"imageSize,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

// EditImage submits the source image plus instruction prompt and
// returns the first inline image from the response. imageSize may be
// empty to use the provider default.
func (c *Client) EditImage(ctx context.Context, prompt, imageBase64, mimeType, imageSize string) (*Image, error) {
	reqBody := generateRequest{
		Contents: []content{{
			Parts: []part{
				{InlineData: &inlineData{MimeType: mimeType, Data: imageBase64}},
				{Text: prompt},
			},
		}},
	}
	if imageSize != "" {
		reqBody.GenerationConfig = &generationConfig{
			ImageConfig: &imageConfig{ImageSize: imageSize},
		}
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshaling generate request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("building generate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.ProviderRequestDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("calling image provider: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading provider response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, c.providerError(resp.StatusCode, body)
	}

	var parsed generateResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decoding provider response: %w", err)
	}

	for _, cand := range parsed.Candidates {
		for _, p := range cand.Content.Parts {
			if p.InlineData != nil && p.InlineData.Data != "" {
				return &Image{Data: p.InlineData.Data, MimeType: p.InlineData.MimeType}, nil
			}
		}
	}
	return nil, ErrNoImage
}

// providerError extracts the human-readable message from an error body
// and classifies retryable congestion. Error payloads are not uniform
// (sometimes double-encoded), hence gjson rather than a fixed struct.
func (c *Client) providerError(status int, body []byte) error {
	msg := gjson.GetBytes(body, "error.message").String()
	if msg != "" {
		// Some failures arrive with the real payload stringified
		// inside the message field.
		if inner := gjson.Get(msg, "error.message"); inner.Exists() {
			msg = inner.String()
		}
	}
	if msg == "" {
		msg = strings.TrimSpace(string(body))
	}
	if msg == "" {
		msg = http.StatusText(status)
	}

	if status == http.StatusServiceUnavailable || IsOverloadMessage(msg) {
		return fmt.Errorf("%w: %s", ErrOverloaded, msg)
	}
	return fmt.Errorf("image provider error (status %d): %s", status, msg)
}

// IsOverloadMessage reports whether an error message looks like
// provider congestion. Substring matching is all the provider offers;
// there is no structured code for this condition.
func IsOverloadMessage(msg string) bool {
	return strings.Contains(msg, "503") ||
		strings.Contains(msg, "overloaded") ||
		strings.Contains(msg, "UNAVAILABLE")
}
