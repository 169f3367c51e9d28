package llm

import (
	"context"
	"fmt"

	"mealplan-engine/internal/config"
	"mealplan-engine/internal/shared"
)

// ContentResponse contains the generated text and metadata like token usage.
type ContentResponse struct {
	Content string
	Usage   shared.TokenUsage
}

// TextGenerator is an interface for generating text from a prompt.
type TextGenerator interface {
	GenerateContent(ctx context.Context, prompt string) (ContentResponse, error)
}

// Closer is an interface for closing resources.
type Closer interface {
	Close() error
}

// New returns the text generator of the configured provider.
func New(ctx context.Context, cfg *config.Config) (TextGenerator, error) {
	if err := cfg.RequireLLM(); err != nil {
		return nil, err
	}
	switch cfg.LLMProvider {
	case "groq":
		return NewGroqClient(cfg), nil
	case "gemini":
		return NewGeminiClient(ctx, cfg)
	}
	return nil, fmt.Errorf("unsupported LLM provider %q", cfg.LLMProvider)
}
