package services

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/tbourn/don-confiado-backend/internal/domain"
	"github.com/tbourn/don-confiado-backend/internal/llm"
	"github.com/tbourn/don-confiado-backend/internal/prompt"
)

// Classifier labels the latest message with one of the closed set of
// intents.
type Classifier struct {
	Model   llm.Model
	Prompts *prompt.Catalog
}

// Classify asks the model for an intent label given the transcript and the
// latest message. Unrecognized labels map to IntentOther.
func (c *Classifier) Classify(ctx context.Context, history, message string) (domain.Intent, error) {
	ctx, span := otel.Tracer("services/Classifier").Start(ctx, "Classify")
	defer span.End()

	raw, err := c.Model.GenerateJSON(ctx, c.Prompts.ClassifyPrompt(history, message), llm.IntentSchema(domain.Intents()))
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("classify: %w", err)
	}
	label, err := llm.DecodeIntent(raw)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("classify: %w", err)
	}
	intent := domain.ParseIntent(label)
	if string(intent) != label {
		zerolog.Ctx(ctx).Debug().Str("label", label).Msg("unrecognized intent label, routing to general chat")
	}
	span.SetAttributes(attribute.String("chat.intent", string(intent)))
	intentTotal.WithLabelValues(string(intent)).Inc()
	return intent, nil
}
