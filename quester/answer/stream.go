package answer

import (
	"context"
	"sync"

	ports "github.com/questerhq/quester/quester/answer/ports"
)

// AnswerStream delivers a generated answer incrementally. Evidence is resolved
// before the first chunk is emitted, so consumers that persist the completed
// answer already hold the evidence it was grounded in.
//
// The chunk channel is finite and non-restartable. After it closes, Err
// reports whether the stream terminated normally (nil) or was cut short by a
// generation failure; a non-nil Err means the concatenated chunks are a
// partial answer and must not be treated as final.
type AnswerStream struct {
	evidence []ports.EvidenceItem
	chunks   chan string
	cancel   context.CancelFunc

	mu  sync.Mutex
	err error
}

func newAnswerStream(evidence []ports.EvidenceItem, buffer int, cancel context.CancelFunc) *AnswerStream {
	if cancel == nil {
		cancel = func() {}
	}
	return &AnswerStream{
		evidence: evidence,
		chunks:   make(chan string, buffer),
		cancel:   cancel,
	}
}

// Evidence returns the evidence list the answer is grounded in, in citation
// order.
func (s *AnswerStream) Evidence() []ports.EvidenceItem { return s.evidence }

// Chunks returns the channel of answer text chunks, closed at end-of-stream.
func (s *AnswerStream) Chunks() <-chan string { return s.chunks }

// Err reports the terminal error of the stream. It is meaningful once Chunks
// has been closed.
func (s *AnswerStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close abandons the stream: the underlying provider connection is released
// and no further chunks are produced. Safe to call more than once and after
// normal completion.
func (s *AnswerStream) Close() {
	s.cancel()
}

func (s *AnswerStream) setErr(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}
