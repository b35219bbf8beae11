package answer

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ports "github.com/questerhq/quester/quester/answer/ports"
)

// stubSearch implements SearchProvider for testing.
type stubSearch struct {
	textFunc   func(ctx context.Context, query string, limit int) ([]ports.EvidenceItem, error)
	imagesFunc func(ctx context.Context, query string, limit int) ([]ports.EvidenceItem, error)
	videosFunc func(ctx context.Context, query string, limit int) ([]ports.EvidenceItem, error)
}

func (s *stubSearch) SearchText(ctx context.Context, query string, limit int) ([]ports.EvidenceItem, error) {
	if s.textFunc != nil {
		return s.textFunc(ctx, query, limit)
	}
	return []ports.EvidenceItem{}, nil
}

func (s *stubSearch) SearchImages(ctx context.Context, query string, limit int) ([]ports.EvidenceItem, error) {
	if s.imagesFunc != nil {
		return s.imagesFunc(ctx, query, limit)
	}
	return []ports.EvidenceItem{}, nil
}

func (s *stubSearch) SearchVideos(ctx context.Context, query string, limit int) ([]ports.EvidenceItem, error) {
	if s.videosFunc != nil {
		return s.videosFunc(ctx, query, limit)
	}
	return []ports.EvidenceItem{}, nil
}

// stubGenerator implements Generator for testing and counts Complete calls.
type stubGenerator struct {
	completeFunc  func(ctx context.Context, prompt string, opts ports.Options) (ports.Completion, error)
	streamFunc    func(ctx context.Context, prompt string, opts ports.Options) (<-chan ports.CompletionChunk, error)
	completeCalls atomic.Int32
}

func (g *stubGenerator) Complete(ctx context.Context, prompt string, opts ports.Options) (ports.Completion, error) {
	g.completeCalls.Add(1)
	if g.completeFunc != nil {
		return g.completeFunc(ctx, prompt, opts)
	}
	return ports.Completion{Text: "stub answer [1]"}, nil
}

func (g *stubGenerator) Stream(ctx context.Context, prompt string, opts ports.Options) (<-chan ports.CompletionChunk, error) {
	if g.streamFunc != nil {
		return g.streamFunc(ctx, prompt, opts)
	}
	ch := make(chan ports.CompletionChunk, 1)
	ch <- ports.CompletionChunk{DeltaText: "stub", Done: true}
	close(ch)
	return ch, nil
}

func newTestPipeline(search ports.SearchProvider, generator ports.Generator) *Pipeline {
	return NewPipeline(search, generator, nil, zerolog.Nop(), DefaultOptions())
}

func TestAnswerBlockingEmptyEvidenceSkipsGeneration(t *testing.T) {
	generator := &stubGenerator{}
	pipeline := newTestPipeline(&stubSearch{}, generator)

	result, err := pipeline.AnswerBlocking(context.Background(), "obscure query")
	require.NoError(t, err)

	assert.Equal(t, DefaultOptions().NoAnswerMessage, result.Text)
	assert.NotNil(t, result.Evidence)
	assert.Empty(t, result.Evidence)
	assert.Equal(t, int32(0), generator.completeCalls.Load(), "generator must not be called with zero evidence")
}

func TestAnswerBlockingGrounded(t *testing.T) {
	evidence := evidenceFixture(3)
	var seenPrompt string

	search := &stubSearch{
		textFunc: func(ctx context.Context, query string, limit int) ([]ports.EvidenceItem, error) {
			assert.Equal(t, "capital of France", query)
			assert.Equal(t, 10, limit)
			return evidence, nil
		},
	}
	generator := &stubGenerator{
		completeFunc: func(ctx context.Context, prompt string, opts ports.Options) (ports.Completion, error) {
			seenPrompt = prompt
			return ports.Completion{Text: "Paris is the capital of France [1]."}, nil
		},
	}

	pipeline := newTestPipeline(search, generator)
	result, err := pipeline.AnswerBlocking(context.Background(), "capital of France")
	require.NoError(t, err)

	assert.Contains(t, result.Text, "[1]")
	assert.Equal(t, evidence, result.Evidence, "evidence order must survive the pipeline")
	assert.Equal(t, ComposePrompt("capital of France", evidence), seenPrompt)
}

func TestAnswerBlockingValidation(t *testing.T) {
	pipeline := newTestPipeline(&stubSearch{}, &stubGenerator{})

	for _, query := range []string{"", "   ", "\n\t"} {
		_, err := pipeline.AnswerBlocking(context.Background(), query)
		assert.ErrorIs(t, err, ErrEmptyQuery)
	}
}

func TestAnswerBlockingRetrievalFailure(t *testing.T) {
	search := &stubSearch{
		textFunc: func(ctx context.Context, query string, limit int) ([]ports.EvidenceItem, error) {
			return nil, &RetrievalError{Err: errors.New("tavily http 500")}
		},
	}
	generator := &stubGenerator{}
	pipeline := newTestPipeline(search, generator)

	_, err := pipeline.AnswerBlocking(context.Background(), "anything")

	var retrievalErr *RetrievalError
	require.ErrorAs(t, err, &retrievalErr)
	assert.Equal(t, int32(0), generator.completeCalls.Load())
}

func TestAnswerStreamingDeliversChunksWithEvidence(t *testing.T) {
	evidence := evidenceFixture(2)
	search := &stubSearch{
		textFunc: func(ctx context.Context, query string, limit int) ([]ports.EvidenceItem, error) {
			return evidence, nil
		},
	}
	generator := &stubGenerator{
		streamFunc: func(ctx context.Context, prompt string, opts ports.Options) (<-chan ports.CompletionChunk, error) {
			ch := make(chan ports.CompletionChunk, 4)
			ch <- ports.CompletionChunk{DeltaText: "Paris is the capital"}
			ch <- ports.CompletionChunk{DeltaText: " of France [1]."}
			ch <- ports.CompletionChunk{Done: true}
			close(ch)
			return ch, nil
		},
	}

	pipeline := newTestPipeline(search, generator)
	stream, err := pipeline.AnswerStreaming(context.Background(), "capital of France")
	require.NoError(t, err)
	defer stream.Close()

	assert.Equal(t, evidence, stream.Evidence(), "evidence must be resolved before the first chunk")

	var full strings.Builder
	for chunk := range stream.Chunks() {
		full.WriteString(chunk)
	}

	require.NoError(t, stream.Err())
	assert.Contains(t, full.String(), "[1]")
}

func TestAnswerStreamingEmptyEvidence(t *testing.T) {
	pipeline := newTestPipeline(&stubSearch{}, &stubGenerator{})

	stream, err := pipeline.AnswerStreaming(context.Background(), "obscure query")
	require.NoError(t, err)

	var chunks []string
	for chunk := range stream.Chunks() {
		chunks = append(chunks, chunk)
	}

	require.NoError(t, stream.Err())
	assert.Equal(t, []string{DefaultOptions().NoAnswerMessage}, chunks)
	assert.Empty(t, stream.Evidence())
}

func TestAnswerStreamingErrorAfterChunks(t *testing.T) {
	search := &stubSearch{
		textFunc: func(ctx context.Context, query string, limit int) ([]ports.EvidenceItem, error) {
			return evidenceFixture(1), nil
		},
	}
	generator := &stubGenerator{
		streamFunc: func(ctx context.Context, prompt string, opts ports.Options) (<-chan ports.CompletionChunk, error) {
			ch := make(chan ports.CompletionChunk, 4)
			ch <- ports.CompletionChunk{DeltaText: "first "}
			ch <- ports.CompletionChunk{DeltaText: "second "}
			ch <- ports.CompletionChunk{Err: errors.New("connection reset")}
			close(ch)
			return ch, nil
		},
	}

	pipeline := newTestPipeline(search, generator)
	stream, err := pipeline.AnswerStreaming(context.Background(), "anything")
	require.NoError(t, err)

	var chunks []string
	for chunk := range stream.Chunks() {
		chunks = append(chunks, chunk)
	}

	assert.Equal(t, []string{"first ", "second "}, chunks, "chunks delivered before the failure are kept")

	var genErr *GenerationError
	require.ErrorAs(t, stream.Err(), &genErr, "a terminated stream must surface a generation error")
}

func TestAnswerStreamingKeepsClassifiedErrors(t *testing.T) {
	search := &stubSearch{
		textFunc: func(ctx context.Context, query string, limit int) ([]ports.EvidenceItem, error) {
			return evidenceFixture(1), nil
		},
	}
	classified := &GenerationError{Err: errors.New("connection reset")}
	generator := &stubGenerator{
		streamFunc: func(ctx context.Context, prompt string, opts ports.Options) (<-chan ports.CompletionChunk, error) {
			ch := make(chan ports.CompletionChunk, 1)
			ch <- ports.CompletionChunk{Err: classified}
			close(ch)
			return ch, nil
		},
	}

	pipeline := newTestPipeline(search, generator)
	stream, err := pipeline.AnswerStreaming(context.Background(), "anything")
	require.NoError(t, err)

	for range stream.Chunks() {
	}

	require.Same(t, classified, stream.Err(), "an already classified error passes through unchanged")
	assert.Equal(t, 1, strings.Count(stream.Err().Error(), "generation failed:"))
}

func TestAnswerStreamingCloseCancelsProvider(t *testing.T) {
	providerDone := make(chan struct{})
	search := &stubSearch{
		textFunc: func(ctx context.Context, query string, limit int) ([]ports.EvidenceItem, error) {
			return evidenceFixture(1), nil
		},
	}
	generator := &stubGenerator{
		streamFunc: func(ctx context.Context, prompt string, opts ports.Options) (<-chan ports.CompletionChunk, error) {
			ch := make(chan ports.CompletionChunk, 1)
			ch <- ports.CompletionChunk{DeltaText: "partial"}
			go func() {
				// Emit nothing further until the pipeline releases us.
				<-ctx.Done()
				close(ch)
				close(providerDone)
			}()
			return ch, nil
		},
	}

	pipeline := newTestPipeline(search, generator)
	stream, err := pipeline.AnswerStreaming(context.Background(), "anything")
	require.NoError(t, err)

	<-stream.Chunks()
	stream.Close()

	select {
	case <-providerDone:
	case <-time.After(2 * time.Second):
		t.Fatal("provider context was not cancelled after Close")
	}

	for range stream.Chunks() {
		// Drain whatever was buffered; the channel must close.
	}
}

func TestAnswerMedia(t *testing.T) {
	images := []ports.EvidenceItem{{URL: "https://img.example.com/1.png", Kind: ports.KindImage}}
	search := &stubSearch{
		imagesFunc: func(ctx context.Context, query string, limit int) ([]ports.EvidenceItem, error) {
			assert.Equal(t, 5, limit)
			return images, nil
		},
	}

	pipeline := newTestPipeline(search, &stubGenerator{})

	got, err := pipeline.AnswerMedia(context.Background(), "sunsets", ports.KindImage)
	require.NoError(t, err)
	assert.Equal(t, images, got)

	videos, err := pipeline.AnswerMedia(context.Background(), "sunsets", ports.KindVideo)
	require.NoError(t, err)
	assert.Empty(t, videos, "video capability gap yields an empty result, not an error")

	_, err = pipeline.AnswerMedia(context.Background(), "sunsets", ports.KindText)
	assert.Error(t, err)
}

func TestMediaGallery(t *testing.T) {
	images := []ports.EvidenceItem{{URL: "https://img.example.com/1.png", Kind: ports.KindImage}}
	videos := []ports.EvidenceItem{{URL: "https://vid.example.com/1", Kind: ports.KindVideo}}
	search := &stubSearch{
		imagesFunc: func(ctx context.Context, query string, limit int) ([]ports.EvidenceItem, error) {
			return images, nil
		},
		videosFunc: func(ctx context.Context, query string, limit int) ([]ports.EvidenceItem, error) {
			return videos, nil
		},
	}

	pipeline := newTestPipeline(search, &stubGenerator{})
	gotImages, gotVideos, err := pipeline.MediaGallery(context.Background(), "eiffel tower")
	require.NoError(t, err)
	assert.Equal(t, images, gotImages)
	assert.Equal(t, videos, gotVideos)
}
