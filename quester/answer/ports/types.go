package answerports

import "time"

// EvidenceKind discriminates the media type of a retrieved evidence item.
type EvidenceKind string

const (
	KindText  EvidenceKind = "text"
	KindImage EvidenceKind = "image"
	KindVideo EvidenceKind = "video"
)

// EvidenceItem is a single retrieved fact, image, or video reference used to
// ground a generated answer. Items are immutable once created and keep the
// provider's returned order; the pipeline never re-sorts them.
type EvidenceItem struct {
	Title       string       `json:"title"`
	URL         string       `json:"url"`
	Content     string       `json:"content,omitempty"` // empty for image/video kinds
	Score       float64      `json:"score,omitempty"`
	Kind        EvidenceKind `json:"kind"`
	Thumbnail   string       `json:"thumbnail,omitempty"`
	Description string       `json:"description,omitempty"`
}

// AnswerRecord is one completed blocking query persisted to history.
// Records are created exactly once and never mutated.
type AnswerRecord struct {
	ID        string         `json:"id"`
	Owner     string         `json:"owner"`
	Query     string         `json:"query"`
	Answer    string         `json:"answer"`
	Evidence  []EvidenceItem `json:"evidence"`
	CreatedAt time.Time      `json:"created_at"`
}

// Message roles within a conversation transcript.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single turn in a conversation. Evidence is populated only for
// assistant turns that were grounded in retrieved evidence.
type Message struct {
	ID             string         `json:"id"`
	ConversationID string         `json:"conversation_id"`
	Role           string         `json:"role"`
	Content        string         `json:"content"`
	Evidence       []EvidenceItem `json:"evidence,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

// Conversation is a titled, append-only message transcript owned by a single
// identity. Messages are ordered by creation time ascending.
type Conversation struct {
	ID        string    `json:"id"`
	Owner     string    `json:"owner"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Messages  []Message `json:"messages"`
}

// ConversationSummary is a list entry: conversation metadata plus the earliest
// message as a preview.
type ConversationSummary struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Preview   *Message  `json:"preview,omitempty"`
}
