package llm

import (
	"context"
	"fmt"

	"github.com/tbourn/don-confiado-backend/internal/config"
)

// Model is the capability every service needs from a generative model:
// free text for replies and schema-constrained JSON for classification and
// extraction.
type Model interface {
	// Generate returns the model's text answer to prompt.
	Generate(ctx context.Context, prompt string) (string, error)
	// GenerateJSON asks for a JSON document conforming to schema and returns
	// it undecoded. Use the Decode helpers to validate it.
	GenerateJSON(ctx context.Context, prompt string, schema *Schema) (string, error)
}

// New builds the provider selected by cfg.Provider, wrapped with tracing,
// metrics and the configured per-call timeout.
func New(ctx context.Context, cfg config.LLMConfig) (Model, error) {
	var (
		m   Model
		err error
	)
	switch cfg.Provider {
	case config.ProviderGemini:
		m, err = NewGemini(ctx, cfg.Gemini)
	case config.ProviderOpenRouter:
		m, err = NewOpenRouter(cfg.OpenRouter)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	return Observe(cfg.Provider, cfg.Timeout, m), nil
}
