// Package db opens embedded libsql databases for the answer stores.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	_ "github.com/tursodatabase/go-libsql"
)

// Connect opens an embedded libsql database at path, creating the file and
// its directory when absent.
func Connect(path string, logger zerolog.Logger) (*sql.DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("could not create database directory %s: %w", dir, err)
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		logger.Info().Str("path", path).Msg("database not found, creating a new one")
		file, err := os.Create(path)
		if err != nil {
			return nil, fmt.Errorf("could not create db at path %s: %w", path, err)
		}
		file.Close()
	}

	dsn := fmt.Sprintf("file:%s?_foreign_keys=1&_journal_mode=WAL&_synchronous=NORMAL", path)

	conn, err := sql.Open("libsql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open libsql connection: %w", err)
	}

	if err := verify(conn, logger); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

// verify checks connectivity and the JSON1 functions the evidence column
// relies on.
func verify(conn *sql.DB, logger zerolog.Logger) error {
	ctx := context.Background()

	var result int
	if err := conn.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("connectivity check failed: %w", err)
	}

	var jsonResult string
	if err := conn.QueryRowContext(ctx, `SELECT json_extract('{"k":"v"}', '$.k')`).Scan(&jsonResult); err != nil {
		logger.Warn().Err(err).Msg("JSON1 check failed")
	} else if jsonResult != "v" {
		logger.Warn().Str("result", jsonResult).Msg("JSON1 check returned unexpected result")
	}

	return nil
}
