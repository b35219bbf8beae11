package answerports

import "context"

// HistoryStore persists one AnswerRecord per completed blocking query.
//
// Every operation is owner-scoped: a non-owner's read or delete of a record
// behaves exactly as if the record did not exist.
type HistoryStore interface {
	// Record creates the history entry for a completed blocking answer.
	Record(ctx context.Context, owner, query, answer string, evidence []EvidenceItem) (*AnswerRecord, error)
	// List returns the owner's records newest-first plus the owner's total
	// record count for pagination.
	List(ctx context.Context, owner string, limit, offset int) ([]AnswerRecord, int, error)
	// Delete removes a record by id. Absent or foreign records are a no-op.
	Delete(ctx context.Context, owner, id string) error
}

// ConversationStore persists titled, append-only message transcripts.
//
// Owner scoping matches HistoryStore: cross-owner access is indistinguishable
// from a missing conversation (ErrNotFound or silent no-op, never an
// existence leak).
type ConversationStore interface {
	// Create seeds a conversation with a user query and an assistant answer.
	// An empty title defaults to a bounded prefix of the opening query.
	Create(ctx context.Context, owner, title, query, answer string, evidence []EvidenceItem) (*Conversation, error)
	// Append adds one message and advances the conversation's UpdatedAt.
	Append(ctx context.Context, owner, conversationID, role, content string, evidence []EvidenceItem) (*Message, error)
	// Get returns the conversation with messages ascending by creation time.
	Get(ctx context.Context, owner, conversationID string) (*Conversation, error)
	// List returns the owner's conversations ordered by UpdatedAt descending,
	// each with its earliest message as a preview.
	List(ctx context.Context, owner string) ([]ConversationSummary, error)
	// Delete removes the conversation and all its messages. Absent or foreign
	// conversations are a no-op.
	Delete(ctx context.Context, owner, conversationID string) error
}
