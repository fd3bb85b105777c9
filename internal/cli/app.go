package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/don-confiado-backend/internal/config"
	"github.com/tbourn/don-confiado-backend/internal/llm"
	"github.com/tbourn/don-confiado-backend/internal/memory"
	"github.com/tbourn/don-confiado-backend/internal/observability"
	"github.com/tbourn/don-confiado-backend/internal/prompt"
	"github.com/tbourn/don-confiado-backend/internal/repo"
	"github.com/tbourn/don-confiado-backend/internal/services"
)

// app holds the process-wide collaborators shared by serve and chat.
type app struct {
	cfg       config.Config
	db        *gorm.DB
	persister repo.Persister
	memory    *memory.InMemory
	router    *services.Router

	closers []func(context.Context) error
}

// newModel is swapped in tests.
var newModel = llm.New

// buildApp opens the local database, selects the record backend and the
// model provider, and wires the conversation router.
func buildApp(ctx context.Context, cfg config.Config, version string) (*app, error) {
	a := &app{cfg: cfg, memory: memory.NewInMemory()}

	shutdown, err := observability.SetupOTel(ctx, cfg, version)
	if err != nil {
		return nil, fmt.Errorf("otel: %w", err)
	}
	a.closers = append(a.closers, shutdown)

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		_ = a.Close(ctx)
		return nil, fmt.Errorf("open %s: %w", cfg.DBPath, err)
	}
	a.db = db
	a.closers = append(a.closers, func(context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	})
	if err := repo.AutoMigrate(db); err != nil {
		_ = a.Close(ctx)
		return nil, fmt.Errorf("migrate: %w", err)
	}

	a.persister, err = repo.NewPersister(cfg, db)
	if err != nil {
		_ = a.Close(ctx)
		return nil, fmt.Errorf("persistence: %w", err)
	}
	if err := a.persister.Ready(); err != nil {
		log.Warn().Str("backend", cfg.PersistenceBackend).Err(err).
			Msg("record store not configured; registrations will answer with an error")
	}

	model, err := newModel(ctx, cfg.LLM)
	if err != nil {
		_ = a.Close(ctx)
		return nil, fmt.Errorf("model: %w", err)
	}

	a.router = services.NewRouter(services.Deps{
		Model:           model,
		Memory:          a.memory,
		Persister:       a.persister,
		Prompts:         prompt.Default(),
		MaxMessageRunes: cfg.MaxMessageRunes,
	})
	return a, nil
}

// purgeIdempotency deletes expired Idempotency-Key records every interval
// until ctx is done.
func (a *app) purgeIdempotency(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		n, err := repo.PurgeExpiredIdempotency(ctx, a.db, time.Now().UTC())
		switch {
		case err != nil && ctx.Err() == nil:
			log.Warn().Err(err).Msg("idempotency purge failed")
		case n > 0:
			log.Debug().Int64("rows", n).Msg("expired idempotency records purged")
		}
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
