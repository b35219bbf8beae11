// Package store implements the owner-scoped history and conversation stores
// on libsql. Evidence lists are stored as JSON columns rather than a
// normalized table; schema is managed by goose migrations embedded in the
// binary.
package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"time"

	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog"

	ports "github.com/questerhq/quester/quester/answer/ports"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store bundles the history and conversation stores over one connection.
type Store struct {
	db *sql.DB

	History       *History
	Conversations *Conversations
}

// New wraps an open database connection and brings the schema up to date.
func New(conn *sql.DB, logger zerolog.Logger) (*Store, error) {
	if err := migrate(conn); err != nil {
		return nil, err
	}
	return &Store{
		db:            conn,
		History:       &History{db: conn, logger: logger},
		Conversations: &Conversations{db: conn, logger: logger},
	}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error { return s.db.Close() }

func migrate(conn *sql.DB) error {
	dir, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to open embedded migrations: %w", err)
	}
	provider, err := goose.NewProvider(goose.DialectTurso, conn, dir)
	if err != nil {
		return fmt.Errorf("failed to create goose provider: %w", err)
	}
	if _, err := provider.Up(context.Background()); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

func marshalEvidence(evidence []ports.EvidenceItem) (string, error) {
	if len(evidence) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(evidence)
	if err != nil {
		return "", fmt.Errorf("failed to marshal evidence: %w", err)
	}
	return string(data), nil
}

func unmarshalEvidence(raw string) ([]ports.EvidenceItem, error) {
	if raw == "" {
		return nil, nil
	}
	var evidence []ports.EvidenceItem
	if err := json.Unmarshal([]byte(raw), &evidence); err != nil {
		return nil, fmt.Errorf("failed to unmarshal evidence: %w", err)
	}
	return evidence, nil
}

// Timestamps are stored as unix nanoseconds so append ordering survives
// sub-second bursts.
func toUnix(t time.Time) int64   { return t.UnixNano() }
func fromUnix(n int64) time.Time { return time.Unix(0, n).UTC() }
func now() time.Time             { return time.Now().UTC() }
