package services

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/tbourn/don-confiado-backend/internal/domain"
	"github.com/tbourn/don-confiado-backend/internal/memory"
)

// GeneralChat answers free conversation with the Don Confiado persona.
type GeneralChat struct {
	Memory   memory.Store
	Composer *Composer
}

// ReplyOptions tunes GeneralChat.Reply.
type ReplyOptions struct {
	// SkipAppend leaves memory untouched before answering, for callers that
	// already recorded the human turn.
	SkipAppend bool
	// Intent is echoed as userintention when set.
	Intent domain.Intent
}

// Reply renders the transcript, records the human turn, and answers.
func (g *GeneralChat) Reply(ctx context.Context, userID, message string, opts ReplyOptions) (domain.Envelope, error) {
	ctx, span := otel.Tracer("services/GeneralChat").Start(ctx, "Reply")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	history, err := g.Memory.Render(ctx, userID)
	if err != nil {
		return domain.Envelope{}, fmt.Errorf("render history: %w", err)
	}
	if !opts.SkipAppend {
		if err := g.Memory.Append(ctx, userID, domain.RoleHuman, message); err != nil {
			return domain.Envelope{}, fmt.Errorf("record message: %w", err)
		}
	}

	reply, err := g.Composer.General(ctx, userID, history, message)
	if err != nil {
		span.RecordError(err)
		return domain.Envelope{}, err
	}
	return domain.Envelope{UserIntention: opts.Intent, Reply: reply}, nil
}
