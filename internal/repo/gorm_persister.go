package repo

import (
	"context"
	"fmt"
	"sort"

	"github.com/mitchellh/mapstructure"
	"gorm.io/gorm"

	"github.com/tbourn/don-confiado-backend/internal/domain"
)

// model describes how a table's rows map to a GORM model.
type model struct {
	new func() any
	id  func(any) int64
}

var models = map[string]model{
	TableTerceros: {
		new: func() any { return &domain.Tercero{} },
		id:  func(m any) int64 { return m.(*domain.Tercero).ID },
	},
	TableProductos: {
		new: func() any { return &domain.Producto{} },
		id:  func(m any) int64 { return m.(*domain.Producto).ID },
	},
}

// Gorm inserts records through GORM. It serves both the Postgres backend
// (Supabase's database reached directly) and the local SQLite backend.
type Gorm struct {
	db *gorm.DB
}

// NewGorm returns a GORM persister. A nil db is reported by Ready as
// missing credentials.
func NewGorm(db *gorm.DB) *Gorm { return &Gorm{db: db} }

// Ready implements Persister.
func (g *Gorm) Ready() error {
	if g.db == nil {
		return ErrMissingCredentials
	}
	return nil
}

// Insert implements Persister. The record is decoded into the table's model
// and only the supplied columns are written, so absent fields fall back to
// column defaults. The inserted row is re-read by primary key.
func (g *Gorm) Insert(ctx context.Context, table string, record map[string]any) ([]map[string]any, error) {
	if err := g.Ready(); err != nil {
		return nil, err
	}
	m, ok := models[table]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTable, table)
	}

	row := m.new()
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           row,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(record); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidRecord, err)
	}

	cols := make([]string, 0, len(record)+1)
	for k := range record {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	cols = append(cols, "created_at")

	db := g.db.WithContext(ctx)
	if err := db.Select(cols).Create(row).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %w", ErrDuplicate, &PersistenceError{Message: err.Error()})
		}
		return nil, &PersistenceError{Message: err.Error()}
	}

	out := map[string]any{}
	if err := db.Table(table).Where("id = ?", m.id(row)).Take(&out).Error; err != nil {
		return nil, fmt.Errorf("re-read %s: %w", table, err)
	}
	return []map[string]any{out}, nil
}
