// Package gemini implements the llm.Extractor contract on top of
// Google Gemini via the generative-ai-go SDK.
package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/google/uuid"
	"google.golang.org/api/option"

	"receiptd/internal/entity"
	"receiptd/internal/llm"
)

type Config struct {
	APIKey      string
	Model       string // default "gemini-2.0-flash"
	Temperature float32
	Timeout     time.Duration
}

type Client struct {
	cfg    Config
	client *genai.Client
	model  *genai.GenerativeModel
	logger *slog.Logger
}

func NewClient(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	// JSON output is enforced by the prompt contract; the response is
	// fence-stripped and schema-validated before anything trusts it.
	model := client.GenerativeModel(cfg.Model)
	model.SetTemperature(cfg.Temperature)

	return &Client{cfg: cfg, client: client, model: model, logger: logger}, nil
}

// Extract implements llm.Extractor. Failures wrap the llm sentinels so the
// caller can fall back to the deterministic extractor.
func (c *Client) Extract(ctx context.Context, text string) (entity.Receipt, []byte, error) {
	rid := uuid.New().String()
	start := time.Now()

	c.logger.Info("llm.extract.start",
		"req_id", rid,
		"model", c.cfg.Model,
		"text_len", len(text),
	)

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	schema := llm.BuildReceiptJSONSchema()
	prompt := llm.BuildSystemPrompt() + "\n\nJSON Schema:\n" + mustJSON(schema) + "\n\n" + llm.BuildUserPrompt(text)

	resp, err := c.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		c.logger.Error("llm.extract.generate_error",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return entity.Receipt{}, nil, llm.ClassifyTransport(err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		c.logger.Error("llm.extract.empty_response",
			"req_id", rid,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return entity.Receipt{}, nil, fmt.Errorf("%w: empty response", llm.ErrMalformedOutput)
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			sb.WriteString(string(t))
		}
	}

	content, err := llm.ExtractJSONBlock(sb.String())
	if err != nil {
		c.logger.Error("llm.extract.no_json_block",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return entity.Receipt{}, nil, err
	}

	if vErr := llm.ValidateJSONAgainstSchema(schema, content); vErr != nil {
		cleaned, dropped, sErr := llm.NormalizeAndSanitizeJSON(content, c.logger)
		if sErr != nil {
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
		return entity.Receipt{}, content, err
	}
	rec.ExtractionPath = entity.PathAI

	c.logger.Info("llm.extract.ok",
		"req_id", rid,
		"store", rec.StoreName,
		"items", len(rec.Items),
		"confidence", rec.ConfidenceScore,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return rec, content, nil
}

// Close releases the underlying SDK client.
func (c *Client) Close() error {
	return c.client.Close()
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}
