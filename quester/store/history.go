package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	ports "github.com/questerhq/quester/quester/answer/ports"
)

const defaultHistoryLimit = 20

// History implements the HistoryStore port on libsql.
type History struct {
	db     *sql.DB
	logger zerolog.Logger
}

// Record creates the history entry for a completed blocking answer.
func (h *History) Record(ctx context.Context, owner, query, answerText string, evidence []ports.EvidenceItem) (*ports.AnswerRecord, error) {
	evidenceJSON, err := marshalEvidence(evidence)
	if err != nil {
		return nil, err
	}

	record := &ports.AnswerRecord{
		ID:        uuid.NewString(),
		Owner:     owner,
		Query:     query,
		Answer:    answerText,
		Evidence:  evidence,
		CreatedAt: now(),
	}

	_, err = h.db.ExecContext(ctx,
		`INSERT INTO answer_history (id, owner, query, answer, evidence, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		record.ID, record.Owner, record.Query, record.Answer, evidenceJSON, toUnix(record.CreatedAt))
	if err != nil {
		return nil, fmt.Errorf("failed to insert history record: %w", err)
	}

	h.logger.Debug().Str("owner", owner).Str("id", record.ID).Msg("history record created")
	return record, nil
}

// List returns the owner's records newest-first plus the owner's total count.
// Calling it twice with no intervening writes returns identical results.
func (h *History) List(ctx context.Context, owner string, limit, offset int) ([]ports.AnswerRecord, int, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := h.db.QueryContext(ctx,
		`SELECT id, owner, query, answer, evidence, created_at
		 FROM answer_history WHERE owner = ?
		 ORDER BY created_at DESC LIMIT ? OFFSET ?`,
		owner, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	records := make([]ports.AnswerRecord, 0, limit)
	for rows.Next() {
		var (
			record       ports.AnswerRecord
			evidenceJSON string
			createdAt    int64
		)
		if err := rows.Scan(&record.ID, &record.Owner, &record.Query, &record.Answer, &evidenceJSON, &createdAt); err != nil {
			return nil, 0, fmt.Errorf("failed to scan history record: %w", err)
		}
		if record.Evidence, err = unmarshalEvidence(evidenceJSON); err != nil {
			return nil, 0, err
		}
		record.CreatedAt = fromUnix(createdAt)
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating history: %w", err)
	}

	var total int
	if err := h.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM answer_history WHERE owner = ?`, owner).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count history: %w", err)
	}

	return records, total, nil
}

// Delete removes a record by id. Records that do not exist or belong to a
// different owner are left untouched without error.
func (h *History) Delete(ctx context.Context, owner, id string) error {
	_, err := h.db.ExecContext(ctx,
		`DELETE FROM answer_history WHERE id = ? AND owner = ?`, id, owner)
	if err != nil {
		return fmt.Errorf("failed to delete history record: %w", err)
	}
	return nil
}

var _ ports.HistoryStore = (*History)(nil)
