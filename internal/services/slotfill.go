package services

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/tbourn/don-confiado-backend/internal/domain"
	"github.com/tbourn/don-confiado-backend/internal/llm"
	"github.com/tbourn/don-confiado-backend/internal/prompt"
)

// schemaTitle names a response schema after fs, e.g. "ProductoData".
// Casers are stateful, so one is built per call.
func schemaTitle(fs domain.FieldSchema, suffix string) string {
	return cases.Title(language.Spanish).String(fs.Name) + suffix
}

// SlotFiller runs the two model calls of a registration: a completeness
// check against the schema policy, then field extraction. Both see only the
// current message.
type SlotFiller struct {
	Model   llm.Model
	Prompts *prompt.Catalog
}

// Check reports whether message carries every field the policy of fs needs.
func (s *SlotFiller) Check(ctx context.Context, fs domain.FieldSchema, message string) (domain.Completeness, error) {
	ctx, span := otel.Tracer("services/SlotFiller").Start(ctx, "Check")
	defer span.End()
	span.SetAttributes(attribute.String("schema", fs.Name))

	fields := fs.PolicyFields()
	raw, err := s.Model.GenerateJSON(ctx,
		s.Prompts.CompletenessPrompt(fs.Name, fs.Policy, message),
		llm.CompletenessSchema(schemaTitle(fs, "Completeness"), fields),
	)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("completeness check: %w", err)
	}
	c, err := llm.DecodeCompleteness(raw, fields)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("completeness check: %w", err)
	}
	return c, nil
}

// Extract returns the fields of fs present in message. Keys outside the
// schema are dropped.
func (s *SlotFiller) Extract(ctx context.Context, fs domain.FieldSchema, message string) (domain.Extraction, error) {
	ctx, span := otel.Tracer("services/SlotFiller").Start(ctx, "Extract")
	defer span.End()
	span.SetAttributes(attribute.String("schema", fs.Name))

	raw, err := s.Model.GenerateJSON(ctx,
		s.Prompts.ExtractionPrompt(fs.Name, message),
		llm.ExtractionSchema(schemaTitle(fs, "Data"), fs),
	)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("extract: %w", err)
	}
	obj, err := llm.DecodeObject(raw)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("extract: %w", err)
	}

	out := make(domain.Extraction, len(obj))
	for k, v := range obj {
		if !fs.Has(k) {
			zerolog.Ctx(ctx).Debug().Str("schema", fs.Name).Str("field", k).Msg("dropping unknown extracted field")
			continue
		}
		out[k] = v
	}
	return out, nil
}
