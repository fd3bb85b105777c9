package services

import (
	"context"
	"sync"
	"testing"

	"github.com/tbourn/don-confiado-backend/internal/llm/llmtest"
	"github.com/tbourn/don-confiado-backend/internal/memory"
	"github.com/tbourn/don-confiado-backend/internal/prompt"
)

// ---------- test doubles ----------

type insertCall struct {
	Table  string
	Record map[string]any
}

type fakePersister struct {
	mu       sync.Mutex
	readyErr error
	rows     []map[string]any
	err      error
	calls    []insertCall
}

func (f *fakePersister) Ready() error { return f.readyErr }

func (f *fakePersister) Insert(_ context.Context, table string, record map[string]any) ([]map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, insertCall{Table: table, Record: record})
	if f.err != nil {
		return nil, f.err
	}
	if f.rows != nil {
		return f.rows, nil
	}
	row := map[string]any{"id": 1}
	for k, v := range record {
		row[k] = v
	}
	return []map[string]any{row}, nil
}

type fixture struct {
	model     *llmtest.Fake
	mem       *memory.InMemory
	persister *fakePersister
	router    *Router
}

func newFixture(t *testing.T, replies ...any) *fixture {
	t.Helper()
	f := &fixture{
		model:     llmtest.New(replies...),
		mem:       memory.NewInMemory(),
		persister: &fakePersister{},
	}
	f.router = NewRouter(Deps{
		Model:           f.model,
		Memory:          f.mem,
		Persister:       f.persister,
		Prompts:         prompt.Default(),
		MaxMessageRunes: 200,
	})
	return f
}

func (f *fixture) turns(userID string) int {
	return len(f.mem.Turns(context.Background(), userID))
}
