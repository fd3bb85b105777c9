package services

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/tbourn/don-confiado-backend/internal/domain"
	"github.com/tbourn/don-confiado-backend/internal/llm"
	"github.com/tbourn/don-confiado-backend/internal/memory"
	"github.com/tbourn/don-confiado-backend/internal/prompt"
	"github.com/tbourn/don-confiado-backend/internal/repo"
)

// Deps are the collaborators shared by every flow. They are built once at
// startup.
type Deps struct {
	Model     llm.Model
	Memory    memory.Store
	Persister repo.Persister
	Prompts   *prompt.Catalog

	// MaxMessageRunes rejects longer messages when > 0.
	MaxMessageRunes int
}

// Handler serves one classified intent.
type Handler interface {
	Handle(ctx context.Context, userID, message string) (domain.Envelope, error)
}

// Router is the conversation entry point. Chat answers without
// classification; Handle classifies and dispatches.
type Router struct {
	Memory     memory.Store
	Classifier *Classifier
	General    *GeneralChat
	Handlers   map[domain.Intent]Handler

	MaxMessageRunes int
}

// NewRouter wires the classifier, general chat and both registration flows.
func NewRouter(d Deps) *Router {
	if d.Prompts == nil {
		d.Prompts = prompt.Default()
	}
	composer := &Composer{Model: d.Model, Memory: d.Memory, Prompts: d.Prompts}
	return &Router{
		Memory:     d.Memory,
		Classifier: &Classifier{Model: d.Model, Prompts: d.Prompts},
		General:    &GeneralChat{Memory: d.Memory, Composer: composer},
		Handlers: map[domain.Intent]Handler{
			domain.IntentCreateDistributor: NewDistributorRegistration(d),
			domain.IntentCreateProduct:     NewProductRegistration(d),
		},
		MaxMessageRunes: d.MaxMessageRunes,
	}
}

// Chat answers message as general conversation.
func (r *Router) Chat(ctx context.Context, userID, message string) (domain.Envelope, error) {
	message, err := r.validate(userID, message)
	if err != nil {
		return domain.Envelope{}, err
	}
	return r.General.Reply(ctx, userID, message, ReplyOptions{})
}

// Handle records the human turn, classifies it against the transcript and
// dispatches to the matching flow. Unknown intents go to general chat.
func (r *Router) Handle(ctx context.Context, userID, message string) (domain.Envelope, error) {
	ctx, span := otel.Tracer("services/Router").Start(ctx, "Handle")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	message, err := r.validate(userID, message)
	if err != nil {
		return domain.Envelope{}, err
	}

	if err := r.Memory.Append(ctx, userID, domain.RoleHuman, message); err != nil {
		return domain.Envelope{}, fmt.Errorf("record message: %w", err)
	}
	history, err := r.Memory.Render(ctx, userID)
	if err != nil {
		return domain.Envelope{}, fmt.Errorf("render history: %w", err)
	}

	intent, err := r.Classifier.Classify(ctx, history, message)
	if err != nil {
		return domain.Envelope{}, err
	}
	span.SetAttributes(attribute.String("chat.intent", string(intent)))
	zerolog.Ctx(ctx).Debug().Str("intent", string(intent)).Msg("intent classified")

	if h, ok := r.Handlers[intent]; ok {
		return h.Handle(ctx, userID, message)
	}
	return r.General.Reply(ctx, userID, message, ReplyOptions{SkipAppend: true, Intent: domain.IntentOther})
}

func (r *Router) validate(userID, message string) (string, error) {
	if strings.TrimSpace(userID) == "" {
		return "", ErrEmptyUserID
	}
	message = strings.TrimSpace(message)
	if message == "" {
		return "", ErrEmptyMessage
	}
	if r.MaxMessageRunes > 0 && utf8.RuneCountInString(message) > r.MaxMessageRunes {
		return "", ErrMessageTooLong
	}
	return message, nil
}
