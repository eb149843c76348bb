package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"receiptd/internal/common"
	"receiptd/internal/llm"
	"receiptd/internal/llm/gemini"
	"receiptd/internal/llm/openai"
)

// NewExtractorFromConfig builds the configured AI client. A missing API
// key returns nil, which disables the AI path and leaves extraction fully
// deterministic.
func NewExtractorFromConfig(ctx context.Context, cfg common.LLMConfig, logger *slog.Logger) (llm.Extractor, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.APIKey == "" {
		logger.Warn("llm.disabled", "reason", "no API key configured")
		return nil, nil
	}

	switch cfg.Provider {
	case "gemini":
		return gemini.NewClient(ctx, gemini.Config{
			APIKey:      cfg.APIKey,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			Timeout:     cfg.Timeout,
		}, logger)
	case "groq":
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = openai.GroqBaseURL
		}
		return openai.NewClient(openai.Config{
			APIKey:      cfg.APIKey,
			BaseURL:     baseURL,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			Timeout:     cfg.Timeout,
		}, logger), nil
	case "openai", "":
		return openai.NewClient(openai.Config{
			APIKey:      cfg.APIKey,
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			Timeout:     cfg.Timeout,
		}, logger), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}
