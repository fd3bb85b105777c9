package memory

import (
	"context"
	"sync"
	"time"

	"github.com/tbourn/don-confiado-backend/internal/domain"
)

// InMemory keeps every conversation in process memory for the lifetime of
// the process. There is no eviction and no size bound.
//
// The mutex protects the map; it does not serialize the request flow of a
// single user, so concurrent requests for the same user id interleave their
// turns in arrival order.
type InMemory struct {
	mu    sync.RWMutex
	convs map[string][]domain.Turn
	now   func() time.Time
}

// NewInMemory returns an empty store.
func NewInMemory() *InMemory {
	return &InMemory{
		convs: make(map[string][]domain.Turn),
		now:   time.Now,
	}
}

// Append adds a turn to the end of userID's conversation, creating the
// conversation on first use.
func (s *InMemory) Append(_ context.Context, userID string, role domain.Role, text string) error {
	s.mu.Lock()
	s.convs[userID] = append(s.convs[userID], domain.Turn{Role: role, Text: text, At: s.now().UTC()})
	s.mu.Unlock()
	return nil
}

// Render returns userID's transcript; an unknown user renders as "".
func (s *InMemory) Render(_ context.Context, userID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Render(s.convs[userID]), nil
}

// Turns returns a copy of userID's turns in append order.
func (s *InMemory) Turns(_ context.Context, userID string) []domain.Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	src := s.convs[userID]
	out := make([]domain.Turn, len(src))
	copy(out, src)
	return out
}

// Users reports how many conversations are held.
func (s *InMemory) Users() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.convs)
}
