// Package database provides database setup, models, and data access layer (Store).
package database

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	_ "github.com/jackc/pgx/v5/stdlib" //revive:disable:blank-imports
	_ "modernc.org/sqlite"             //revive:disable:blank-imports
)

// Dialect identifies the SQL backend behind a connection.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// driverName returns the database/sql driver registered for the dialect.
func (d Dialect) driverName() (string, error) {
	switch d {
	case DialectSQLite:
		return "sqlite", nil
	case DialectPostgres:
		return "pgx", nil
	default:
		return "", fmt.Errorf("unsupported database dialect %q", d)
	}
}

// PoolConfig holds connection pool limits. Zero values keep the dialect defaults.
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NewDB initializes, applies migrations, and returns a new database connection pool.
// For SQLite dsn is a file path (or file: URI); for Postgres it is a connection URL.
func NewDB(dialect Dialect, dsn string, pool PoolConfig) (*sqlx.DB, error) {
	driver, err := dialect.driverName()
	if err != nil {
		return nil, err
	}

	if dialect == DialectSQLite {
		dsn = withSQLitePragmas(dsn)
	}

	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if dialect == DialectSQLite {
		// SQLite doesn't support concurrent writes, so max open conns = 1
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(5 * time.Minute)
	} else {
		if pool.MaxOpenConns > 0 {
			db.SetMaxOpenConns(pool.MaxOpenConns)
		}
		if pool.MaxIdleConns > 0 {
			db.SetMaxIdleConns(pool.MaxIdleConns)
		}
		if pool.ConnMaxLifetime > 0 {
			db.SetConnMaxLifetime(pool.ConnMaxLifetime)
		}
	}

	if err := ApplyMigrations(db.DB, dialect); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("Error closing database after migration failure", "error", closeErr)
		}
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	slog.Info("Database connected and migrations applied successfully", "dialect", dialect, "dsn", redactDSN(dsn))
	return db, nil
}

// CloseDB closes the database connection pool.
func CloseDB(db *sqlx.DB) {
	if db == nil {
		return
	}
	if err := db.Close(); err != nil {
		slog.Error("Error closing database connection", "error", err)
	} else {
		slog.Info("Database connection closed successfully.")
	}
}

// withSQLitePragmas enables foreign keys and a busy timeout on every connection.
func withSQLitePragmas(dsn string) string {
	if strings.Contains(dsn, "_pragma=") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

// redactDSN hides credentials so connection strings can be logged.
func redactDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.User == nil {
		return dsn
	}
	return u.Redacted()
}
