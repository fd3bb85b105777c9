package repo

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = gorm.ErrRecordNotFound
	// ErrDuplicate indicates a unique-constraint violation.
	ErrDuplicate = errors.New("duplicate")
	// ErrMissingCredentials means the persistence backend is not configured.
	ErrMissingCredentials = errors.New("missing Supabase credentials")
	// ErrUnknownTable is returned for a table with no registered model.
	ErrUnknownTable = errors.New("unknown table")
)

// PersistenceError is a failed insert reported by the backend. For the REST
// backend the fields mirror the PostgREST error body.
type PersistenceError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
}

func (e *PersistenceError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "persistence error")
	if e.Status != 0 {
		fmt.Fprintf(&b, " (status %d)", e.Status)
	}
	if e.Code != "" {
		fmt.Fprintf(&b, " [%s]", e.Code)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Details != "" {
		b.WriteString("; ")
		b.WriteString(e.Details)
	}
	return b.String()
}

// isUniqueViolation reports unique-constraint failures across drivers.
// glebarez/sqlite often returns plain-text errors for UNIQUE violations.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "unique constraint failed") ||
		strings.Contains(low, "constraint failed: unique") ||
		strings.Contains(low, "duplicate key value")
}
