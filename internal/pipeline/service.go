package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"receiptd/internal/common"
	"receiptd/internal/document"
	"receiptd/internal/entity"
)

// Result carries the structured receipt together with the text it was
// extracted from, so callers can archive both.
type Result struct {
	Receipt entity.Receipt
	Text    document.ExtractedText
}

// Service is the end-to-end extraction flow: document to text, text
// normalization, then structured extraction.
type Service struct {
	logger  *slog.Logger
	adapter *document.Adapter
	orch    *Orchestrator
}

func NewService(adapter *document.Adapter, orch *Orchestrator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger, adapter: adapter, orch: orch}
}

// ProcessDocument extracts text from the uploaded document, normalizes
// it and runs structured extraction. Document-layer failures (unsupported
// format, unreadable content, no text) surface to the caller unchanged.
func (s *Service) ProcessDocument(ctx context.Context, doc document.RawDocument) (Result, error) {
	rid := requestID(ctx)
	start := time.Now()

	s.logger.Info("pipeline.process.start",
		"req_id", rid,
		"name", doc.Name,
		"content_type", doc.ContentType,
		"bytes", len(doc.Data),
	)

	text, err := s.adapter.Extract(ctx, doc)
	if err != nil {
		s.logger.Warn("pipeline.process.extract_failed",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return Result{}, err
	}
	text.Text = document.Normalize(text.Text)

	rec, err := s.orch.Extract(ctx, text.Text)
	if err != nil {
		return Result{}, err
	}

	s.logger.Info("pipeline.process.ok",
		"req_id", rid,
		"source", text.Source,
		"path", rec.ExtractionPath,
		"store", rec.StoreName,
		"confidence", rec.ConfidenceScore,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return Result{Receipt: rec, Text: text}, nil
}

// ProcessText runs structured extraction over caller-supplied text,
// skipping the document layer.
func (s *Service) ProcessText(ctx context.Context, text string) (Result, error) {
	norm := document.Normalize(text)
	rec, err := s.orch.Extract(ctx, norm)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Receipt: rec,
		Text:    document.ExtractedText{Text: norm, Source: "text"},
	}, nil
}

// requestID reuses the caller's request ID when one travelled in via
// the HTTP layer, minting one otherwise so CLI runs stay traceable.
func requestID(ctx context.Context) string {
	if rid := common.RequestIDFromContext(ctx); rid != "" {
		return rid
	}
	return uuid.New().String()
}
