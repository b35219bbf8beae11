package answer

import "errors"

// Sentinel errors for the non-wrapping failure classes.
var (
	// ErrMissingAPIKey reports an absent provider credential. It is checked
	// before any network call and is never retried.
	ErrMissingAPIKey = errors.New("provider API key is missing")

	// ErrEmptyQuery reports a blank or whitespace-only query.
	ErrEmptyQuery = errors.New("query must not be empty")

	// ErrNotFound reports an owner/id mismatch on a persistence operation.
	// A record owned by someone else yields the same error as a record that
	// does not exist.
	ErrNotFound = errors.New("not found")
)

// RetrievalError wraps a provider or network failure during evidence search.
// Zero results are not an error; this covers non-success responses and
// malformed payloads only.
type RetrievalError struct {
	Err error
}

func (e *RetrievalError) Error() string { return "retrieval failed: " + e.Err.Error() }
func (e *RetrievalError) Unwrap() error { return e.Err }

// GenerationError wraps a provider or network failure during answer
// generation. For streaming calls it arrives as the stream's terminal error
// after any already-delivered chunks.
type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string { return "generation failed: " + e.Err.Error() }
func (e *GenerationError) Unwrap() error { return e.Err }
