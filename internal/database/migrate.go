package database

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/edgard/expensebot/migrations"
)

// ApplyMigrations runs database migrations using embedded files for the given dialect.
func ApplyMigrations(db *sql.DB, dialect Dialect) error {
	if db == nil {
		return errors.New("database connection is nil, cannot apply migrations")
	}

	slog.Info("Applying database migrations...", "dialect", dialect)

	sourceDriver, err := iofs.New(migrations.FS, string(dialect))
	if err != nil {
		return fmt.Errorf("failed to create embed source driver instance: %w", err)
	}

	var dbDriver database.Driver
	switch dialect {
	case DialectSQLite:
		dbDriver, err = migratesqlite.WithInstance(db, &migratesqlite.Config{})
	case DialectPostgres:
		dbDriver, err = migratepgx.WithInstance(db, &migratepgx.Config{})
	default:
		return fmt.Errorf("unsupported database dialect %q", dialect)
	}
	if err != nil {
		return fmt.Errorf("failed to create %s database driver: %w", dialect, err)
	}

	migrator, err := migrate.NewWithInstance("iofs", sourceDriver, string(dialect), dbDriver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	if err := migrator.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			slog.Info("No database migrations to apply.")
			return nil
		}
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	slog.Info("Database migrations applied successfully.")
	return nil
}
