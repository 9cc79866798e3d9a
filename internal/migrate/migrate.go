// Package migrate applies embedded SQL migrations on startup.
package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/and161185/danaom/migrations"
)

// Dialect names a supported database flavour.
type Dialect string

// Supported dialects. The value doubles as the migrations subdirectory.
const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

// goose keeps its dialect and base FS in package globals.
var gooseMu sync.Mutex

func (d Dialect) gooseDialect() (string, error) {
	switch d {
	case Postgres:
		return "postgres", nil
	case SQLite:
		return "sqlite3", nil
	}
	return "", fmt.Errorf("unsupported dialect %q", d)
}

// Up opens a PostgreSQL connection for dsn and runs all pending migrations.
func Up(ctx context.Context, dsn string) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	return UpDB(ctx, db, Postgres)
}

// UpDB runs all pending migrations for dialect on an already open connection.
func UpDB(ctx context.Context, db *sql.DB, d Dialect) error {
	name, err := d.gooseDialect()
	if err != nil {
		return err
	}

	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(migrations.FS)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect(name); err != nil {
		return err
	}
	if err := goose.UpContext(ctx, db, string(d)); err != nil {
		return fmt.Errorf("goose up (%s): %w", d, err)
	}
	return nil
}

// Version reports the applied schema version.
func Version(ctx context.Context, db *sql.DB, d Dialect) (int64, error) {
	name, err := d.gooseDialect()
	if err != nil {
		return 0, err
	}

	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect(name); err != nil {
		return 0, err
	}
	return goose.GetDBVersionContext(ctx, db)
}
