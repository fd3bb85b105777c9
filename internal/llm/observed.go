package llm

import (
	"context"
	"errors"
	"time"
	"unicode/utf8"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	llmCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_requests_total",
			Help: "Total number of generative model calls.",
		},
		[]string{"provider", "mode", "outcome"},
	)

	llmLat = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "llm_request_duration_seconds",
			Help:    "Duration of generative model calls in seconds.",
			Buckets: []float64{.25, .5, 1, 2, 4, 8, 15, 30, 60},
		},
		[]string{"provider", "mode"},
	)
)

func init() {
	prometheus.MustRegister(llmCalls, llmLat)
}

// Observed decorates a Model with a per-call timeout, an OpenTelemetry span,
// Prometheus metrics, and a debug log line.
type Observed struct {
	next     Model
	provider string
	timeout  time.Duration
}

// Observe wraps next. A timeout <= 0 leaves the caller's deadline untouched.
func Observe(provider string, timeout time.Duration, next Model) *Observed {
	return &Observed{next: next, provider: provider, timeout: timeout}
}

// Generate implements Model.
func (o *Observed) Generate(ctx context.Context, prompt string) (string, error) {
	return o.call(ctx, "text", prompt, func(ctx context.Context) (string, error) {
		return o.next.Generate(ctx, prompt)
	})
}

// GenerateJSON implements Model.
func (o *Observed) GenerateJSON(ctx context.Context, prompt string, schema *Schema) (string, error) {
	return o.call(ctx, "json", prompt, func(ctx context.Context) (string, error) {
		return o.next.GenerateJSON(ctx, prompt, schema)
	})
}

func (o *Observed) call(ctx context.Context, mode, prompt string, fn func(context.Context) (string, error)) (string, error) {
	ctx, span := otel.Tracer("llm").Start(ctx, "Generate",
		trace.WithAttributes(
			attribute.String("llm.provider", o.provider),
			attribute.String("llm.mode", mode),
			attribute.Int("llm.prompt_runes", utf8.RuneCountInString(prompt)),
		),
	)
	defer span.End()

	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	start := time.Now()
	out, err := fn(ctx)
	dur := time.Since(start)

	llmLat.WithLabelValues(o.provider, mode).Observe(dur.Seconds())
	llmCalls.WithLabelValues(o.provider, mode, outcome(err)).Inc()

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "model call failed")
	}
	zerolog.Ctx(ctx).Debug().
		Str("provider", o.provider).
		Str("mode", mode).
		Dur("latency", dur).
		Err(err).
		Msg("llm call")
	return out, err
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, ErrEmptyResponse):
		return "empty"
	default:
		return "error"
	}
}
