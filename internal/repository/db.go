package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/tursodatabase/go-libsql"

	"github.com/vaultpass/consumer-secrets/internal/config"
)

const (
	DriverMySQL  = "mysql"
	DriverLibSQL = "libsql"
)

// DB wraps the connection pool with the driver name so queries can adapt to the dialect.
type DB struct {
	*sql.DB
	driver string
}

// Driver returns the database driver name.
func (db *DB) Driver() string {
	return db.driver
}

// NewDB opens a connection pool for the configured driver.
// A libsql DSN is a file URI, e.g. "file:/var/lib/vaultpass/secrets.db".
func NewDB(cfg config.Database) (*DB, error) {
	switch cfg.Driver {
	case DriverMySQL, DriverLibSQL:
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}

	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Driver, err)
	}

	if cfg.Driver == DriverLibSQL {
		// SQLite serializes writers; one connection avoids SQLITE_BUSY under load.
		db.SetMaxOpenConns(1)
		if err := applyPragmas(db); err != nil {
			db.Close()
			return nil, err
		}
	} else {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
		db.SetMaxIdleConns(cfg.MaxIdleConns)
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if err := db.Ping(); err != nil {
		slog.Warn("database ping failed", "driver", cfg.Driver, "error", err)
	}

	return &DB{DB: db, driver: cfg.Driver}, nil
}

// applyPragmas tunes the libsql connection. Journal and timeout settings are
// best effort; foreign_keys is required.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, p := range pragmas {
		var result string
		if err := db.QueryRow(p).Scan(&result); err != nil && !errors.Is(err, sql.ErrNoRows) {
			slog.Warn("database pragma failed", "pragma", p, "error", err)
		}
	}

	var enabled int
	if err := db.QueryRow("PRAGMA foreign_keys").Scan(&enabled); err != nil {
		return fmt.Errorf("check foreign_keys: %w", err)
	}
	if enabled != 1 {
		return errors.New("libsql: foreign_keys could not be enabled")
	}
	return nil
}

// Migrate applies pending schema migrations for this driver.
func (db *DB) Migrate(ctx context.Context) error {
	return runMigrations(ctx, db)
}

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// inTx runs fn inside a new transaction, committing on success.
func (db *DB) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}
