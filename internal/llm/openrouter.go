package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/tbourn/don-confiado-backend/internal/config"
)

// OpenRouter talks to any OpenAI-compatible chat-completions endpoint
// (OpenRouter by default).
type OpenRouter struct {
	client openai.Client
	model  string
}

// NewOpenRouter constructs an OpenAI-compatible model. Client retries are
// disabled; a failed call is reported once.
func NewOpenRouter(cfg config.OpenRouterConfig) (*OpenRouter, error) {
	key := strings.TrimSpace(cfg.APIKey)
	if key == "" {
		return nil, fmt.Errorf("%w: OPENROUTER_API_KEY", ErrMissingAPIKey)
	}
	opts := []option.RequestOption{
		option.WithAPIKey(key),
		option.WithMaxRetries(0),
	}
	if trimmed := strings.TrimRight(cfg.BaseURL, "/"); trimmed != "" {
		opts = append(opts, option.WithBaseURL(trimmed))
	}
	if cfg.SiteURL != "" {
		opts = append(opts, option.WithHeader("HTTP-Referer", cfg.SiteURL))
	}
	if cfg.SiteName != "" {
		opts = append(opts, option.WithHeader("X-Title", cfg.SiteName))
	}
	return &OpenRouter{client: openai.NewClient(opts...), model: cfg.Model}, nil
}

// Generate implements Model.
func (o *OpenRouter) Generate(ctx context.Context, prompt string) (string, error) {
	return o.complete(ctx, o.params(prompt))
}

// GenerateJSON implements Model with response_format=json_schema.
func (o *OpenRouter) GenerateJSON(ctx context.Context, prompt string, schema *Schema) (string, error) {
	p := o.params(prompt)
	name := schema.Title
	if name == "" {
		name = "response"
	}
	p.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
		OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
			JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
				Name:   name,
				Schema: schema.JSONSchema(),
			},
		},
	}
	return o.complete(ctx, p)
}

func (o *OpenRouter) params(prompt string) openai.ChatCompletionNewParams {
	return openai.ChatCompletionNewParams{
		Model: o.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
	}
}

func (o *OpenRouter) complete(ctx context.Context, p openai.ChatCompletionNewParams) (string, error) {
	resp, err := o.client.Chat.Completions.New(ctx, p)
	if err != nil {
		return "", fmt.Errorf("%w: openrouter: %w", ErrModelInvoke, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: openrouter model %s returned no choices", ErrEmptyResponse, o.model)
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("%w: openrouter model %s", ErrEmptyResponse, o.model)
	}
	return text, nil
}
