package answer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"

	ports "github.com/questerhq/quester/quester/answer/ports"
)

// Answer is the result of a completed blocking query.
type Answer struct {
	Text     string
	Evidence []ports.EvidenceItem
}

// Options controls retrieval limits, generation sampling, and the fixed
// answer returned when retrieval yields nothing.
type Options struct {
	TextLimit       int
	ImageLimit      int
	VideoLimit      int
	MaxTokens       int
	Temperature     float32
	NoAnswerMessage string
	// StreamBuffer is the chunk channel capacity for streaming answers.
	StreamBuffer int
}

// DefaultOptions returns the pipeline defaults.
func DefaultOptions() Options {
	return Options{
		TextLimit:       10,
		ImageLimit:      5,
		VideoLimit:      5,
		MaxTokens:       1024,
		Temperature:     0.7,
		NoAnswerMessage: "No relevant information was found. Try different keywords.",
		StreamBuffer:    16,
	}
}

// Pipeline coordinates retrieval, prompt composition, and generation for a
// single query.
// It holds no per-request state and is safe for concurrent use; the only
// serialization point is that it never issues a second generation call for
// the same invocation.
//
// The pipeline does not persist anything. Callers that want history or
// conversation records submit the completed answer to the stores themselves.
type Pipeline struct {
	search    ports.SearchProvider
	generator ports.Generator
	tracer    ports.Tracer
	logger    zerolog.Logger
	opts      Options
}

// NewPipeline wires a pipeline from its collaborators. A nil tracer disables
// span emission.
func NewPipeline(search ports.SearchProvider, generator ports.Generator, tracer ports.Tracer, logger zerolog.Logger, opts Options) *Pipeline {
	if tracer == nil {
		tracer = &noOpTracer{}
	}
	if opts.TextLimit <= 0 {
		opts.TextLimit = DefaultOptions().TextLimit
	}
	if opts.ImageLimit <= 0 {
		opts.ImageLimit = DefaultOptions().ImageLimit
	}
	if opts.VideoLimit <= 0 {
		opts.VideoLimit = DefaultOptions().VideoLimit
	}
	if opts.NoAnswerMessage == "" {
		opts.NoAnswerMessage = DefaultOptions().NoAnswerMessage
	}
	if opts.StreamBuffer <= 0 {
		opts.StreamBuffer = DefaultOptions().StreamBuffer
	}
	return &Pipeline{
		search:    search,
		generator: generator,
		tracer:    tracer,
		logger:    logger,
		opts:      opts,
	}
}

// AnswerBlocking retrieves text evidence, composes the grounding prompt, and
// returns the complete generated answer together with the evidence list.
//
// When retrieval yields zero results the pipeline short-circuits to the fixed
// no-information answer without calling the generator.
func (p *Pipeline) AnswerBlocking(ctx context.Context, query string) (*Answer, error) {
	query, err := normalizeQuery(query)
	if err != nil {
		return nil, err
	}

	ctx, finish := p.tracer.StartSpan(ctx, "answer_blocking", map[string]any{"query": query})

	evidence, err := p.search.SearchText(ctx, query, p.opts.TextLimit)
	if err != nil {
		finish(err)
		return nil, err
	}

	if len(evidence) == 0 {
		p.tracer.Event(ctx, "empty_result", nil)
		finish(nil)
		return &Answer{Text: p.opts.NoAnswerMessage, Evidence: []ports.EvidenceItem{}}, nil
	}

	prompt := ComposePrompt(query, evidence)
	p.tracer.Event(ctx, "generating", map[string]any{"evidence_count": len(evidence)})

	completion, err := p.generator.Complete(ctx, prompt, p.generationOptions())
	if err != nil {
		finish(err)
		return nil, err
	}

	p.logger.Debug().Str("query", query).Int("evidence", len(evidence)).Msg("blocking answer complete")
	finish(nil)
	return &Answer{Text: completion.Text, Evidence: evidence}, nil
}

// AnswerStreaming retrieves text evidence up front, then streams the
// generated answer chunk by chunk. Closing the returned stream cancels the
// underlying provider call.
//
// With zero retrieved evidence the stream carries the fixed no-information
// message as its single chunk.
func (p *Pipeline) AnswerStreaming(ctx context.Context, query string) (*AnswerStream, error) {
	query, err := normalizeQuery(query)
	if err != nil {
		return nil, err
	}

	ctx, finish := p.tracer.StartSpan(ctx, "answer_streaming", map[string]any{"query": query})

	evidence, err := p.search.SearchText(ctx, query, p.opts.TextLimit)
	if err != nil {
		finish(err)
		return nil, err
	}

	if len(evidence) == 0 {
		p.tracer.Event(ctx, "empty_result", nil)
		stream := newAnswerStream([]ports.EvidenceItem{}, 1, nil)
		stream.chunks <- p.opts.NoAnswerMessage
		close(stream.chunks)
		finish(nil)
		return stream, nil
	}

	prompt := ComposePrompt(query, evidence)

	genCtx, cancel := context.WithCancel(ctx)
	chunkCh, err := p.generator.Stream(genCtx, prompt, p.generationOptions())
	if err != nil {
		cancel()
		finish(err)
		return nil, err
	}

	stream := newAnswerStream(evidence, p.opts.StreamBuffer, cancel)
	go p.forwardChunks(genCtx, stream, chunkCh, finish)
	return stream, nil
}

// forwardChunks relays provider deltas to the consumer until the provider
// finishes, fails, or the stream is abandoned.
func (p *Pipeline) forwardChunks(ctx context.Context, stream *AnswerStream, chunkCh <-chan ports.CompletionChunk, finish func(error)) {
	defer close(stream.chunks)

	for {
		select {
		case <-ctx.Done():
			// Consumer closed the stream; stop pulling so the provider can
			// release its connection.
			stream.setErr(ctx.Err())
			finish(ctx.Err())
			return
		case chunk, ok := <-chunkCh:
			if !ok {
				finish(nil)
				return
			}
			if chunk.Err != nil {
				err := chunk.Err
				// Provider clients may already classify their failures;
				// wrap only raw causes.
				var genErr *GenerationError
				if !errors.As(err, &genErr) {
					err = &GenerationError{Err: err}
				}
				stream.setErr(err)
				finish(err)
				return
			}
			if chunk.DeltaText != "" {
				select {
				case stream.chunks <- chunk.DeltaText:
				case <-ctx.Done():
					stream.setErr(ctx.Err())
					finish(ctx.Err())
					return
				}
			}
			if chunk.Done {
				finish(nil)
				return
			}
		}
	}
}

// AnswerMedia is the retrieval-only path: it returns image or video evidence
// for a query without any generation call.
func (p *Pipeline) AnswerMedia(ctx context.Context, query string, kind ports.EvidenceKind) ([]ports.EvidenceItem, error) {
	query, err := normalizeQuery(query)
	if err != nil {
		return nil, err
	}

	switch kind {
	case ports.KindImage:
		return p.search.SearchImages(ctx, query, p.opts.ImageLimit)
	case ports.KindVideo:
		return p.search.SearchVideos(ctx, query, p.opts.VideoLimit)
	default:
		return nil, fmt.Errorf("unsupported media kind %q", kind)
	}
}

// MediaGallery fetches image and video evidence for a query concurrently.
// The two retrieval kinds are independent, so a failure in either cancels
// the other and is returned to the caller.
func (p *Pipeline) MediaGallery(ctx context.Context, query string) (images, videos []ports.EvidenceItem, err error) {
	query, err = normalizeQuery(query)
	if err != nil {
		return nil, nil, err
	}

	g := pool.New().WithContext(ctx).WithCancelOnError()
	g.Go(func(ctx context.Context) error {
		var gerr error
		images, gerr = p.search.SearchImages(ctx, query, p.opts.ImageLimit)
		return gerr
	})
	g.Go(func(ctx context.Context) error {
		var gerr error
		videos, gerr = p.search.SearchVideos(ctx, query, p.opts.VideoLimit)
		return gerr
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return images, videos, nil
}

func (p *Pipeline) generationOptions() ports.Options {
	return ports.Options{
		MaxTokens:   p.opts.MaxTokens,
		Temperature: p.opts.Temperature,
	}
}

func normalizeQuery(query string) (string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", ErrEmptyQuery
	}
	return query, nil
}

// noOpTracer drops all spans and events.
type noOpTracer struct{}

func (t *noOpTracer) StartSpan(ctx context.Context, name string, attrs map[string]any) (context.Context, func(err error)) {
	return ctx, func(err error) {}
}

func (t *noOpTracer) Event(ctx context.Context, name string, attrs map[string]any) {}

var _ ports.Tracer = (*noOpTracer)(nil)
