package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"receiptd/internal/entity"
	"receiptd/internal/llm"
)

// Extract implements llm.Extractor using text-only chat/completions.
// Any failure wraps one of the llm sentinels so the caller can fall back.
func (c *Client) Extract(ctx context.Context, text string) (entity.Receipt, []byte, error) {
	rid := uuid.New().String()
	start := time.Now()

	if strings.TrimSpace(c.cfg.APIKey) == "" {
		c.logger.Warn("llm.extract.no_api_key", "req_id", rid)
		return entity.Receipt{}, nil, fmt.Errorf("%w: no API key configured", llm.ErrUnavailable)
	}

	c.logger.Info("llm.extract.start",
		"req_id", rid,
		"model", c.cfg.Model,
		"temp", c.cfg.Temperature,
		"text_len", len(text),
	)

	schema := llm.BuildReceiptJSONSchema()
	body := map[string]any{
		"model":           c.cfg.Model,
		"temperature":     c.cfg.Temperature,
		"response_format": map[string]any{"type": "json_object"},
		"messages": []map[string]any{
			{"role": "system", "content": llm.BuildSystemPrompt()},
			{"role": "user", "content": llm.BuildUserPrompt(text)},
			{"role": "system", "content": "JSON Schema:\n" + mustJSON(schema)},
		},
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	raw, err := c.post(ctx, endpoint, body)
	if err != nil {
		c.logger.Error("llm.extract.http_error",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return entity.Receipt{}, nil, err
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		c.logger.Error("llm.extract.decode_error",
			"req_id", rid, "error", err, "raw_bytes", len(raw),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return entity.Receipt{}, raw, fmt.Errorf("%w: decode response: %v", llm.ErrMalformedOutput, err)
	}
	if len(cc.Choices) == 0 {
		c.logger.Error("llm.extract.no_choices",
			"req_id", rid,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return entity.Receipt{}, raw, fmt.Errorf("%w: no choices in response", llm.ErrMalformedOutput)
	}

	content, err := llm.ExtractJSONBlock(cc.Choices[0].Message.Content)
	if err != nil {
		c.logger.Error("llm.extract.no_json_block",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return entity.Receipt{}, raw, err
	}

	// Validate strictly first; on failure try a sanitize pass and re-validate.
	if vErr := llm.ValidateJSONAgainstSchema(schema, content); vErr != nil {
		cleaned, dropped, sErr := llm.NormalizeAndSanitizeJSON(content, c.logger)
		if sErr != nil {
			c.logger.Error("llm.extract.sanitize_failed",
				"req_id", rid, "error", sErr,
				"elapsed_ms", time.Since(start).Milliseconds(),
			)
			return entity.Receipt{}, content, fmt.Errorf("%w: %v", llm.ErrMalformedOutput, sErr)
		}
		if vErr := llm.ValidateJSONAgainstSchema(schema, cleaned); vErr != nil {
			c.logger.Error("llm.extract.schema_validation_failed",
				"req_id", rid, "error", vErr,
				"elapsed_ms", time.Since(start).Milliseconds(),
			)
			return entity.Receipt{}, cleaned, fmt.Errorf("%w: %v", llm.ErrMalformedOutput, vErr)
		}
		c.logger.Warn("llm.extract.lenient_sanitize_applied",
			"req_id", rid, "dropped", dropped,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		content = cleaned
	}

	rec, err := llm.DecodeReceipt(content)
	if err != nil {
		c.logger.Error("llm.extract.unmarshal_failed",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return entity.Receipt{}, content, err
	}
	rec.ExtractionPath = entity.PathAI

	c.logger.Info("llm.extract.ok",
		"req_id", rid,
		"store", rec.StoreName,
		"date", rec.Date,
		"items", len(rec.Items),
		"confidence", rec.ConfidenceScore,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return rec, content, nil
}

func (c *Client) post(ctx context.Context, url string, body map[string]any) ([]byte, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", llm.ErrUnavailable, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, llm.ClassifyTransport(err)
	}
	defer func(body io.ReadCloser) {
		if cerr := body.Close(); cerr != nil {
			c.logger.Warn("llm.http.response_body_close_error", "error", cerr)
		}
	}(resp.Body)

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("%w: status %d", llm.ErrUnavailable, resp.StatusCode)
	}
	return raw, nil
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}
