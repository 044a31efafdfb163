// Package generate is the AI proxy: it gates each image edit through
// the quota service, forwards the work to the image provider, and maps
// provider failures onto the editor-facing error contract.
package generate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/albumforge/albumforge/internal/genai"
	"github.com/albumforge/albumforge/internal/metrics"
	"github.com/albumforge/albumforge/internal/nats"
	"github.com/albumforge/albumforge/internal/quota"
)

// QuotaGate is the slice of the quota service the proxy needs.
type QuotaGate interface {
	CheckAndConsume(ctx context.Context, clientKey string) (*quota.Consumption, error)
}

// ImageEditor is the provider call the proxy makes.
type ImageEditor interface {
	EditImage(ctx context.Context, prompt, imageBase64, mimeType, imageSize string) (*genai.Image, error)
}

// Result is a finished edit: the new image plus the calls left today.
type Result struct {
	Data      string
	MimeType  string
	Remaining int
}

type Service struct {
	gate   QuotaGate
	editor ImageEditor
	events *nats.Publisher
}

func NewService(gate QuotaGate, editor ImageEditor, events *nats.Publisher) *Service {
	return &Service{
		gate:   gate,
		editor: editor,
		events: events,
	}
}

// Generate consumes one quota unit, then performs the edit. The unit is
// spent before the provider call and is not refunded on provider
// failure; refunding would reopen the check-then-act race the atomic
// consume exists to close.
func (s *Service) Generate(ctx context.Context, clientKey, prompt, imageBase64, mimeType, resolution string) (*Result, error) {
	consumption, err := s.gate.CheckAndConsume(ctx, clientKey)
	if err != nil {
		var exceeded *quota.QuotaExceededError
		if errors.As(err, &exceeded) {
			s.events.PublishAuditEvent(ctx, nats.NewQuotaDeniedEvent(clientKey, exceeded.Limit))
		}
		return nil, err
	}

	img, err := s.editor.EditImage(ctx, prompt, imageBase64, mimeType, resolution)
	if err != nil {
		switch {
		case errors.Is(err, genai.ErrOverloaded):
			metrics.GenerationsTotal.WithLabelValues(metrics.GenStatusOverloaded).Inc()
		case errors.Is(err, genai.ErrNoImage):
			metrics.GenerationsTotal.WithLabelValues(metrics.GenStatusNoImage).Inc()
		default:
			metrics.GenerationsTotal.WithLabelValues(metrics.GenStatusError).Inc()
		}
		slog.Error("image generation failed", "key", clientKey, "error", err)
		return nil, fmt.Errorf("editing image: %w", err)
	}

	metrics.GenerationsTotal.WithLabelValues(metrics.GenStatusSuccess).Inc()
	return &Result{
		Data:      img.Data,
		MimeType:  img.MimeType,
		Remaining: consumption.Remaining,
	}, nil
}
