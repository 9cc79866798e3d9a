// Command danaom-migrate applies the embedded schema migrations to a store.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/and161185/danaom/internal/config"
	"github.com/and161185/danaom/internal/migrate"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

// main parses flags and migrates the store up to the latest version.
func main() {
	driver := flag.String("driver", config.DriverSQLite, "store driver: sqlite or postgres")
	dsn := flag.String("dsn", "file:danaom.db", "store DSN")
	status := flag.Bool("status", false, "only print the applied schema version")
	flag.Parse()

	logger, _ := zap.NewProduction()
	defer func() { _ = logger.Sync() }()
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("driver", *driver),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	v, err := run(ctx, *driver, *dsn, *status)
	if err != nil {
		logger.Error("migrate", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("schema version", zap.Int64("version", v))
	fmt.Println(v)
}

// run migrates (unless statusOnly) and returns the resulting schema version.
func run(ctx context.Context, driver, dsn string, statusOnly bool) (int64, error) {
	var sqlDriver string
	var d migrate.Dialect
	switch driver {
	case config.DriverSQLite:
		sqlDriver, d = "sqlite3", migrate.SQLite
	case config.DriverPostgres:
		sqlDriver, d = "pgx", migrate.Postgres
	default:
		return 0, fmt.Errorf("unsupported driver %q", driver)
	}

	db, err := sql.Open(sqlDriver, dsn)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", driver, err)
	}
	defer db.Close()

	if !statusOnly {
		if err := migrate.UpDB(ctx, db, d); err != nil {
			return 0, err
		}
	}
	return migrate.Version(ctx, db, d)
}
