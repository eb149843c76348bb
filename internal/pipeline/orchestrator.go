// Package pipeline coordinates text extraction: the AI attempt, the
// deterministic fallback, and the post-processing that keeps whichever
// result wins internally sane.
package pipeline

import (
	"context"
	"log/slog"
	"math"
	"time"

	"receiptd/internal/entity"
	"receiptd/internal/llm"
	"receiptd/internal/rules"
)

// Orchestrator runs one bounded AI attempt and falls back to the
// deterministic extractor on any recoverable AI failure. Extraction as a
// whole never fails on account of the AI layer.
type Orchestrator struct {
	logger *slog.Logger
	ai     llm.Extractor // nil disables the AI path
	det    *rules.Extractor
}

func NewOrchestrator(ai llm.Extractor, det *rules.Extractor, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if det == nil {
		det = rules.NewExtractor(logger)
	}
	return &Orchestrator{logger: logger, ai: ai, det: det}
}

// Extract produces a structured receipt from normalized text. The AI
// extractor gets exactly one attempt; recoverable failures route to the
// deterministic path with the reason logged. Context cancellation from
// the caller still propagates.
func (o *Orchestrator) Extract(ctx context.Context, text string) (entity.Receipt, error) {
	start := time.Now()

	if o.ai != nil {
		rec, _, err := o.ai.Extract(ctx, text)
		if err == nil {
			rec = o.postprocess(rec, text)
			o.logger.Info("pipeline.extract.ok",
				"path", rec.ExtractionPath,
				"items", len(rec.Items),
				"confidence", rec.ConfidenceScore,
				"elapsed_ms", time.Since(start).Milliseconds(),
			)
			return rec, nil
		}
		if !llm.Fallible(err) {
			return entity.Receipt{}, err
		}
		o.logger.Warn("pipeline.extract.fallback", "reason", err)
	}

	rec := o.det.Extract(text)
	rec = o.postprocess(rec, text)
	o.logger.Info("pipeline.extract.ok",
		"path", rec.ExtractionPath,
		"items", len(rec.Items),
		"confidence", rec.ConfidenceScore,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return rec, nil
}

// postprocess applies the trust rules both paths share: money rounded to
// cents, negative amounts discarded, confidence kept in range and damped
// when the arithmetic does not add up. An AI result with no items gets a
// second chance from the deterministic item scanner.
func (o *Orchestrator) postprocess(rec entity.Receipt, text string) entity.Receipt {
	rec.Subtotal = cleanMoney(rec.Subtotal)
	rec.Tax = cleanMoney(rec.Tax)
	rec.Total = cleanMoney(rec.Total)

	items := rec.Items[:0]
	for _, it := range rec.Items {
		if it.ItemPrice < 0 {
			continue
		}
		it.ItemPrice = round2(it.ItemPrice)
		items = append(items, it)
	}
	rec.Items = items

	if rec.ExtractionPath == entity.PathAI && len(rec.Items) == 0 {
		if det := o.det.Extract(text); len(det.Items) > 0 {
			rec.Items = det.Items
			o.logger.Info("pipeline.extract.items_recovered", "count", len(det.Items))
		}
	}

	if rec.ConfidenceScore < 0 {
		rec.ConfidenceScore = 0
	}
	if rec.ConfidenceScore > 1 {
		rec.ConfidenceScore = 1
	}
	if !rec.Consistent() {
		rec.ConfidenceScore *= 0.85
	}
	return rec
}

func cleanMoney(v *float64) *float64 {
	if v == nil || *v < 0 {
		return nil
	}
	r := round2(*v)
	return &r
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
