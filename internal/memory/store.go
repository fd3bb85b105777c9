// Package memory holds per-user conversation history.
//
// Services depend on the Store interface and receive an implementation at
// construction time; the process-local InMemory store is the only backend.
package memory

import (
	"context"
	"strings"

	"github.com/tbourn/don-confiado-backend/internal/domain"
)

// Store appends turns to a user's conversation and renders it as text.
type Store interface {
	Append(ctx context.Context, userID string, role domain.Role, text string) error
	Render(ctx context.Context, userID string) (string, error)
}

// Render formats turns as a transcript, one "Label: text" line per turn.
// Turns whose role has no label are skipped.
func Render(turns []domain.Turn) string {
	var b strings.Builder
	first := true
	for _, t := range turns {
		label, ok := t.Role.Label()
		if !ok {
			continue
		}
		if !first {
			b.WriteByte('\n')
		}
		first = false
		b.WriteString(label)
		b.WriteString(": ")
		b.WriteString(t.Text)
	}
	return b.String()
}
