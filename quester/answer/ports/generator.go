package answerports

import "context"

// Options controls sampling and limits for a single generation call.
type Options struct {
	MaxTokens   int
	Temperature float32
	// TimeoutMs applies to the provider call only, not the caller's deadline.
	TimeoutMs int
}

// Completion is the provider's non-streaming response.
type Completion struct {
	Text string
	Raw  any // raw provider payload for debugging
}

// CompletionChunk is the provider's streaming delta. A chunk with Err set
// terminates the stream abnormally: the text delivered so far is partial and
// must not be treated as a final answer. A chunk with Done set (and nil Err)
// is the normal end-of-stream marker.
type CompletionChunk struct {
	DeltaText string
	Done      bool
	Err       error
}

// Generator is the abstraction for text-generation backends.
//
// Stream returns a finite, non-restartable sequence of chunks; the channel is
// closed after the terminal chunk. Cancelling ctx releases the underlying
// provider connection and closes the channel. Concatenating all DeltaText
// values of a normally terminated stream yields what Complete would have
// returned for the same prompt.
type Generator interface {
	Complete(ctx context.Context, prompt string, opts Options) (Completion, error)
	Stream(ctx context.Context, prompt string, opts Options) (<-chan CompletionChunk, error)
}
