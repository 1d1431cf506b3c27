package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/Krutik08064/CricSaga-Bot/internal/config"
	"github.com/Krutik08064/CricSaga-Bot/internal/constants"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// DBTX is the executor shared by *sql.DB and *sql.Tx. Repositories are
// written against it so the stats aggregator can rebind them to a
// transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func New(cfg *config.Config, logger zerolog.Logger) (*sql.DB, error) {
	logger.Info().Str("path", cfg.DBPath).Msg("opening ranked engine database")
	return Open(cfg.DBPath, logger)
}

// Open opens, tunes, and migrates a SQLite database at the given path.
// Tests use Open(":memory:", ...) to get a fully migrated throwaway store.
func Open(path string, logger zerolog.Logger) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if path == ":memory:" {
		// An in-memory database lives per-connection; more than one open
		// conn would see different stores.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(constants.DBMaxOpenConns)
		db.SetMaxIdleConns(constants.DBMaxIdleConns)
		db.SetConnMaxLifetime(constants.DBConnMaxLifetime)
		db.SetConnMaxIdleTime(constants.DBMaxIdleTime)
	}

	if err := applyPragmas(db, logger); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to tune SQLite: %w", err)
	}
	if err := runMigrations(db, logger); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	logger.Info().Msg("database ready")
	return db, nil
}

func runMigrations(db *sql.DB, logger zerolog.Logger) error {
	goose.SetBaseFS(embedMigrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("failed to run goose migrations: %w", err)
	}

	logger.Info().Msg("migrations completed successfully")
	return nil
}

func applyPragmas(sqlDB *sql.DB, logger zerolog.Logger) error {
	pragmas := []struct {
		name  string
		value string
	}{
		{"journal_mode", "WAL"},
		{"synchronous", "NORMAL"},
		{"busy_timeout", "5000"},
		{"foreign_keys", "ON"},
		{"temp_store", "MEMORY"},
	}

	for _, pragma := range pragmas {
		query := fmt.Sprintf("PRAGMA %s = %s", pragma.name, pragma.value)
		if _, err := sqlDB.Exec(query); err != nil {
			return fmt.Errorf("failed to set PRAGMA %s: %w", pragma.name, err)
		}
		logger.Debug().
			Str("pragma", pragma.name).
			Str("value", pragma.value).
			Msg("SQLite pragma set")
	}

	return nil
}
