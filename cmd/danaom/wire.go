package main

import (
	"context"
	"fmt"

	"github.com/and161185/danaom/internal/config"
	"github.com/and161185/danaom/internal/migrate"
	"github.com/and161185/danaom/internal/repository"
	"github.com/and161185/danaom/internal/repository/memory"
	"github.com/and161185/danaom/internal/repository/postgres"
	"github.com/and161185/danaom/internal/repository/sqlite"
)

// openStore opens the configured backend with its schema migrated.
func openStore(ctx context.Context, cfg *config.Config) (repository.Store, error) {
	switch cfg.DBDriver {
	case config.DriverSQLite:
		return sqlite.Open(ctx, cfg.DBDSN)
	case config.DriverPostgres:
		if err := migrate.Up(ctx, cfg.DBDSN); err != nil {
			return nil, fmt.Errorf("migrate up: %w", err)
		}
		db, err := postgres.New(ctx, cfg.DBDSN)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		return postgres.NewStore(db), nil
	case config.DriverMemory:
		return memory.New(), nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.DBDriver)
}
