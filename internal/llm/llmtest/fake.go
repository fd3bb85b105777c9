// Package llmtest provides a scripted llm.Model for tests.
package llmtest

import (
	"context"
	"fmt"
	"sync"

	"github.com/tbourn/don-confiado-backend/internal/llm"
)

// Call records one request made to a Fake.
type Call struct {
	Prompt string
	Schema *llm.Schema // nil for free-text calls
}

// Fake answers calls from a queue of scripted replies. Each reply is either
// a string or an error. Once the queue is exhausted Fallback is used.
type Fake struct {
	mu       sync.Mutex
	replies  []any
	Fallback string
	Calls    []Call
}

// New returns a Fake that answers with replies in order.
func New(replies ...any) *Fake {
	return &Fake{replies: replies}
}

// Generate implements llm.Model.
func (f *Fake) Generate(ctx context.Context, prompt string) (string, error) {
	return f.next(ctx, Call{Prompt: prompt})
}

// GenerateJSON implements llm.Model.
func (f *Fake) GenerateJSON(ctx context.Context, prompt string, schema *llm.Schema) (string, error) {
	return f.next(ctx, Call{Prompt: prompt, Schema: schema})
}

func (f *Fake) next(ctx context.Context, c Call) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %w", llm.ErrModelInvoke, err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, c)
	if len(f.replies) == 0 {
		return f.Fallback, nil
	}
	r := f.replies[0]
	f.replies = f.replies[1:]
	switch v := r.(type) {
	case error:
		return "", v
	case string:
		return v, nil
	default:
		return fmt.Sprint(v), nil
	}
}
