package repo

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/tbourn/don-confiado-backend/internal/config"
)

// Table names written by the registration flows.
const (
	TableTerceros  = "terceros"
	TableProductos = "productos"
)

// Persister inserts one sanitized record into a named table and returns the
// rows the backend reports as inserted.
type Persister interface {
	// Ready returns ErrMissingCredentials when the backend cannot be used.
	Ready() error
	Insert(ctx context.Context, table string, record map[string]any) ([]map[string]any, error)
}

// NewPersister builds the backend selected by cfg.PersistenceBackend. local
// is the service's SQLite database, used by the sqlite backend.
//
// A backend with missing credentials is still returned: its Ready method
// reports ErrMissingCredentials so the chat flow can answer conversationally.
func NewPersister(cfg config.Config, local *gorm.DB) (Persister, error) {
	switch cfg.PersistenceBackend {
	case config.BackendSupabase:
		return NewSupabase(cfg.Supabase, nil), nil
	case config.BackendPostgres:
		if cfg.Supabase.DBURL == "" {
			return NewGorm(nil), nil
		}
		db, err := OpenPostgres(cfg.Supabase.DBURL)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		return NewGorm(db), nil
	case config.BackendSQLite:
		if local == nil {
			return nil, fmt.Errorf("sqlite backend requires a database")
		}
		if err := MigrateRecords(local); err != nil {
			return nil, fmt.Errorf("migrate records: %w", err)
		}
		return NewGorm(local), nil
	default:
		return nil, fmt.Errorf("unknown persistence backend %q", cfg.PersistenceBackend)
	}
}
