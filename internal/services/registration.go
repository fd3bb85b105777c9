package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/don-confiado-backend/internal/domain"
	"github.com/tbourn/don-confiado-backend/internal/llm"
	"github.com/tbourn/don-confiado-backend/internal/memory"
	"github.com/tbourn/don-confiado-backend/internal/prompt"
	"github.com/tbourn/don-confiado-backend/internal/repo"
)

// Registration is the slot-filling flow for one kind of record. Each request
// is evaluated on its own message: a missing field must be supplied again
// together with the rest.
type Registration struct {
	Intent domain.Intent
	Schema domain.FieldSchema
	Table  string
	// Prepare adjusts the sanitized record before it is inserted.
	Prepare func(record map[string]any) error

	Slots     *SlotFiller
	Composer  *Composer
	Memory    memory.Store
	Persister repo.Persister
}

// NewDistributorRegistration registers suppliers into terceros.
func NewDistributorRegistration(d Deps) *Registration {
	return newRegistration(d, domain.IntentCreateDistributor, domain.DistributorSchema, repo.TableTerceros,
		func(record map[string]any) error {
			record["tipo_tercero"] = "proveedor"
			return nil
		})
}

// NewProductRegistration registers products into productos.
func NewProductRegistration(d Deps) *Registration {
	return newRegistration(d, domain.IntentCreateProduct, domain.ProductSchema, repo.TableProductos,
		func(record map[string]any) error {
			return domain.CoerceInts(record, "cantidad", "proveedor_id")
		})
}

func newRegistration(d Deps, intent domain.Intent, fs domain.FieldSchema, table string, prepare func(map[string]any) error) *Registration {
	return &Registration{
		Intent:    intent,
		Schema:    fs,
		Table:     table,
		Prepare:   prepare,
		Slots:     &SlotFiller{Model: d.Model, Prompts: d.Prompts},
		Composer:  &Composer{Model: d.Model, Memory: d.Memory, Prompts: d.Prompts},
		Memory:    d.Memory,
		Persister: d.Persister,
	}
}

// Handle runs completeness check, extraction and insert for message. The
// human turn must already be in memory. Model failures are returned as
// errors; missing credentials and persistence faults are reported in the
// envelope with Status error.
func (r *Registration) Handle(ctx context.Context, userID, message string) (domain.Envelope, error) {
	ctx, span := otel.Tracer("services/Registration").Start(ctx, "Handle")
	defer span.End()
	span.SetAttributes(
		attribute.String("user.id", userID),
		attribute.String("registration.entity", r.Schema.Name),
	)
	log := zerolog.Ctx(ctx).With().Str("entity", r.Schema.Name).Logger()

	completeness, err := r.Slots.Check(ctx, r.Schema, message)
	if err != nil {
		return r.fail(span, err)
	}
	if inc, ok := completeness.(domain.Incomplete); ok {
		return r.needMoreData(ctx, userID, message, inc.Missing)
	}

	extracted, err := r.Slots.Extract(ctx, r.Schema, message)
	if err != nil {
		return r.fail(span, err)
	}

	// Missing credentials are reported whatever the extraction holds.
	if err := r.Persister.Ready(); err != nil {
		log.Warn().Err(err).Msg("persistence backend not configured")
		registrationTotal.WithLabelValues(r.Schema.Name, "missing_credentials").Inc()
		reply, err := r.Composer.Registration(ctx, userID, prompt.Registration{
			Entity:  r.Schema.Name,
			Detail:  prompt.DetailMissingCredentials,
			Message: message,
		})
		if err != nil {
			return r.fail(span, err)
		}
		return domain.Envelope{
			UserIntention: r.Intent,
			Status:        domain.StatusError,
			Error:         MissingCredentialsText,
			Reply:         reply,
			Extracted:     extracted,
		}, nil
	}

	record := domain.Sanitize(extracted)

	// The model may call a message complete and then omit fields.
	if inc, ok := r.Schema.Check(record).(domain.Incomplete); ok {
		log.Debug().Strs("missing", inc.Missing).Msg("extraction incomplete after completeness check")
		return r.needMoreData(ctx, userID, message, inc.Missing)
	}

	rows, err := r.insert(ctx, record)
	if err != nil {
		// Raw backend errors stay in the logs.
		log.Error().Err(err).Str("table", r.Table).Msg("insert failed")
		span.RecordError(err)
		registrationTotal.WithLabelValues(r.Schema.Name, "persistence_error").Inc()
		reply, cerr := r.Composer.Registration(ctx, userID, prompt.Registration{
			Entity:  r.Schema.Name,
			Detail:  prompt.DetailPersistenceError,
			Message: message,
		})
		if cerr != nil {
			return r.fail(span, cerr)
		}
		return domain.Envelope{
			UserIntention: r.Intent,
			Status:        domain.StatusError,
			Error:         persistenceErrorText(r.Schema.Name),
			Reply:         reply,
			Extracted:     extracted,
		}, nil
	}

	log.Info().Int("rows", len(rows)).Msg("record created")
	registrationTotal.WithLabelValues(r.Schema.Name, "created").Inc()
	reply, err := r.Composer.Registration(ctx, userID, prompt.Registration{
		Entity:  r.Schema.Name,
		Detail:  prompt.DetailCreated,
		Message: message,
	})
	if err != nil {
		return r.fail(span, err)
	}
	return domain.Envelope{
		UserIntention: r.Intent,
		Status:        domain.StatusCreated,
		Reply:         reply,
		Data:          rows,
	}, nil
}

func (r *Registration) insert(ctx context.Context, record map[string]any) ([]map[string]any, error) {
	if r.Prepare != nil {
		if err := r.Prepare(record); err != nil {
			return nil, err
		}
	}
	return r.Persister.Insert(ctx, r.Table, record)
}

func (r *Registration) needMoreData(ctx context.Context, userID, message string, missing []string) (domain.Envelope, error) {
	if len(missing) == 0 {
		missing = r.Schema.PolicyFields()
	}
	registrationTotal.WithLabelValues(r.Schema.Name, "need_more_data").Inc()

	history, err := r.Memory.Render(ctx, userID)
	if err != nil {
		return domain.Envelope{}, fmt.Errorf("render history: %w", err)
	}
	reply, err := r.Composer.Registration(ctx, userID, prompt.Registration{
		Entity:  r.Schema.Name,
		Detail:  prompt.DetailNeedMoreData,
		Message: message,
		Missing: missing,
		History: history,
	})
	if err != nil {
		return domain.Envelope{}, err
	}
	return domain.Envelope{
		UserIntention: r.Intent,
		Status:        domain.StatusNeedMoreData,
		MissingFields: missing,
		Reply:         reply,
	}, nil
}

func (r *Registration) fail(span trace.Span, err error) (domain.Envelope, error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, "registration failed")
	registrationTotal.WithLabelValues(r.Schema.Name, "model_error").Inc()
	return domain.Envelope{}, err
}

// persistenceErrorText is the user-facing error for a failed insert.
func persistenceErrorText(entity string) string {
	return fmt.Sprintf("No fue posible registrar el %s. Intenta de nuevo en unos minutos.", entity)
}

// IsModelFailure reports whether err came from the model transport or its
// output validation.
func IsModelFailure(err error) bool {
	return errors.Is(err, llm.ErrModelInvoke) ||
		errors.Is(err, llm.ErrSchemaViolation) ||
		errors.Is(err, llm.ErrEmptyResponse)
}
