package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/questerhq/quester/quester/answer"
	ports "github.com/questerhq/quester/quester/answer/ports"
)

// titleLimit bounds the default title taken from the opening query.
const titleLimit = 50

// Conversations implements the ConversationStore port on libsql.
type Conversations struct {
	db     *sql.DB
	logger zerolog.Logger
}

// Create seeds a conversation with the opening user query and assistant
// answer. When title is empty it defaults to the first 50 characters of the
// query.
func (c *Conversations) Create(ctx context.Context, owner, title, query, answerText string, evidence []ports.EvidenceItem) (*ports.Conversation, error) {
	if title == "" {
		title = truncateTitle(query)
	}

	createdAt := now()
	conv := &ports.Conversation{
		ID:        uuid.NewString(),
		Owner:     owner,
		Title:     title,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO conversations (id, owner, title, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		conv.ID, conv.Owner, conv.Title, toUnix(conv.CreatedAt), toUnix(conv.UpdatedAt))
	if err != nil {
		return nil, fmt.Errorf("failed to insert conversation: %w", err)
	}

	userMsg, err := insertMessage(ctx, tx, conv.ID, ports.RoleUser, query, nil, createdAt)
	if err != nil {
		return nil, err
	}
	assistantMsg, err := insertMessage(ctx, tx, conv.ID, ports.RoleAssistant, answerText, evidence, createdAt.Add(time.Nanosecond))
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit conversation: %w", err)
	}

	conv.Messages = []ports.Message{*userMsg, *assistantMsg}
	c.logger.Debug().Str("owner", owner).Str("id", conv.ID).Msg("conversation created")
	return conv, nil
}

// Append adds one message to an owned conversation and advances its
// UpdatedAt. Appending to an absent or foreign conversation fails with
// ErrNotFound.
func (c *Conversations) Append(ctx context.Context, owner, conversationID, role, content string, evidence []ports.EvidenceItem) (*ports.Message, error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var id string
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM conversations WHERE id = ? AND owner = ?`, conversationID, owner).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, answer.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to check conversation ownership: %w", err)
	}

	createdAt := now()
	msg, err := insertMessage(ctx, tx, conversationID, role, content, evidence, createdAt)
	if err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE conversations SET updated_at = ? WHERE id = ?`, toUnix(createdAt), conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to update conversation timestamp: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit message: %w", err)
	}
	return msg, nil
}

// Get returns an owned conversation with its messages ascending by creation
// time, or ErrNotFound.
func (c *Conversations) Get(ctx context.Context, owner, conversationID string) (*ports.Conversation, error) {
	conv := &ports.Conversation{}
	var createdAt, updatedAt int64
	err := c.db.QueryRowContext(ctx,
		`SELECT id, owner, title, created_at, updated_at FROM conversations WHERE id = ? AND owner = ?`,
		conversationID, owner).Scan(&conv.ID, &conv.Owner, &conv.Title, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, answer.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query conversation: %w", err)
	}
	conv.CreatedAt = fromUnix(createdAt)
	conv.UpdatedAt = fromUnix(updatedAt)

	rows, err := c.db.QueryContext(ctx,
		`SELECT id, conversation_id, role, content, evidence, created_at
		 FROM messages WHERE conversation_id = ?
		 ORDER BY created_at ASC, rowid ASC`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		msg, err := scanMessageRow(rows)
		if err != nil {
			return nil, err
		}
		conv.Messages = append(conv.Messages, *msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating messages: %w", err)
	}
	return conv, nil
}

// List returns the owner's conversations ordered by UpdatedAt descending,
// each with its earliest message as a preview.
func (c *Conversations) List(ctx context.Context, owner string) ([]ports.ConversationSummary, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT id, title, created_at, updated_at FROM conversations
		 WHERE owner = ? ORDER BY updated_at DESC`, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to query conversations: %w", err)
	}
	defer rows.Close()

	summaries := []ports.ConversationSummary{}
	for rows.Next() {
		var (
			summary              ports.ConversationSummary
			createdAt, updatedAt int64
		)
		if err := rows.Scan(&summary.ID, &summary.Title, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		summary.CreatedAt = fromUnix(createdAt)
		summary.UpdatedAt = fromUnix(updatedAt)
		summaries = append(summaries, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating conversations: %w", err)
	}

	for i := range summaries {
		preview, err := c.earliestMessage(ctx, summaries[i].ID)
		if err != nil {
			return nil, err
		}
		summaries[i].Preview = preview
	}
	return summaries, nil
}

// Delete removes the conversation and all its messages in one transaction.
// Absent or foreign conversations are a no-op.
func (c *Conversations) Delete(ctx context.Context, owner, conversationID string) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`DELETE FROM messages WHERE conversation_id IN
		 (SELECT id FROM conversations WHERE id = ? AND owner = ?)`,
		conversationID, owner)
	if err != nil {
		return fmt.Errorf("failed to delete messages: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`DELETE FROM conversations WHERE id = ? AND owner = ?`, conversationID, owner)
	if err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit delete: %w", err)
	}
	return nil
}

func (c *Conversations) earliestMessage(ctx context.Context, conversationID string) (*ports.Message, error) {
	row := c.db.QueryRowContext(ctx,
		`SELECT id, conversation_id, role, content, evidence, created_at
		 FROM messages WHERE conversation_id = ?
		 ORDER BY created_at ASC, rowid ASC LIMIT 1`, conversationID)

	msg, err := scanMessageRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return msg, err
}

func insertMessage(ctx context.Context, tx *sql.Tx, conversationID, role, content string, evidence []ports.EvidenceItem, createdAt time.Time) (*ports.Message, error) {
	msg := &ports.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		Evidence:       evidence,
		CreatedAt:      createdAt,
	}

	var evidenceJSON sql.NullString
	if len(evidence) > 0 {
		raw, err := marshalEvidence(evidence)
		if err != nil {
			return nil, err
		}
		evidenceJSON = sql.NullString{String: raw, Valid: true}
	}

	_, err := tx.ExecContext(ctx,
		`INSERT INTO messages (id, conversation_id, role, content, evidence, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.ConversationID, msg.Role, msg.Content, evidenceJSON, toUnix(msg.CreatedAt))
	if err != nil {
		return nil, fmt.Errorf("failed to insert message: %w", err)
	}
	return msg, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessageRow(row rowScanner) (*ports.Message, error) {
	var (
		msg          ports.Message
		evidenceJSON sql.NullString
		createdAt    int64
	)
	if err := row.Scan(&msg.ID, &msg.ConversationID, &msg.Role, &msg.Content, &evidenceJSON, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan message: %w", err)
	}
	if evidenceJSON.Valid {
		evidence, err := unmarshalEvidence(evidenceJSON.String)
		if err != nil {
			return nil, err
		}
		msg.Evidence = evidence
	}
	msg.CreatedAt = fromUnix(createdAt)
	return &msg, nil
}

func truncateTitle(query string) string {
	runes := []rune(query)
	if len(runes) <= titleLimit {
		return query
	}
	return string(runes[:titleLimit])
}

var _ ports.ConversationStore = (*Conversations)(nil)
