package services

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"

	"github.com/tbourn/don-confiado-backend/internal/domain"
	"github.com/tbourn/don-confiado-backend/internal/llm"
	"github.com/tbourn/don-confiado-backend/internal/memory"
	"github.com/tbourn/don-confiado-backend/internal/prompt"
)

// Composer turns a prompt into the assistant's reply and records it in the
// user's conversation. Every user-visible sentence comes from here.
type Composer struct {
	Model   llm.Model
	Memory  memory.Store
	Prompts *prompt.Catalog
}

// General answers with the Don Confiado persona. history is the transcript
// to show the model.
func (c *Composer) General(ctx context.Context, userID, history, message string) (string, error) {
	return c.reply(ctx, userID, c.Prompts.GeneralPrompt(history, message))
}

// Registration answers one slot-filling outcome.
func (c *Composer) Registration(ctx context.Context, userID string, r prompt.Registration) (string, error) {
	return c.reply(ctx, userID, c.Prompts.RegistrationPrompt(r))
}

func (c *Composer) reply(ctx context.Context, userID, text string) (string, error) {
	ctx, span := otel.Tracer("services/Composer").Start(ctx, "Reply")
	defer span.End()

	out, err := c.Model.Generate(ctx, text)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("compose reply: %w", err)
	}
	if err := c.Memory.Append(ctx, userID, domain.RoleAI, out); err != nil {
		return "", fmt.Errorf("record reply: %w", err)
	}
	return out, nil
}
