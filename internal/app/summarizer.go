package app

import (
	"context"
	"fmt"

	"trailmark/internal/adapter/gemini"
	"trailmark/internal/adapter/openai"
	"trailmark/internal/config"
	"trailmark/internal/summarizer"
)

// NewSummarizer builds the configured completion backend behind the
// breaker and limiter. The returned close func releases the backend.
func NewSummarizer(ctx context.Context, cfg *config.Config) (*summarizer.Summarizer, func(), error) {
	opts := summarizer.DefaultOptions()
	if cfg.SummarizerTimeoutSeconds > 0 {
		opts.Timeout = cfg.SummarizerTimeout()
	}
	opts.RatePerSecond = cfg.SummarizerRatePerSecond

	switch cfg.SummarizerProvider {
	case config.ProviderOpenAI:
		client := openai.NewClient(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.AIModel)
		return summarizer.New(client, opts), func() {}, nil
	case config.ProviderGemini, "":
		client, err := gemini.NewClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, nil, fmt.Errorf("gemini summarizer: %w", err)
		}
		return summarizer.New(client, opts), func() { _ = client.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown summarizer provider %q", cfg.SummarizerProvider)
	}
}
