// Command quester answers a question from live web evidence, either all at
// once or streamed chunk by chunk, and keeps an owner-scoped history of
// completed answers.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/questerhq/quester/quester/answer"
	"github.com/questerhq/quester/quester/answer/adapters"
	ports "github.com/questerhq/quester/quester/answer/ports"
	"github.com/questerhq/quester/quester/config"
	"github.com/questerhq/quester/quester/db"
	"github.com/questerhq/quester/quester/generation"
	"github.com/questerhq/quester/quester/search"
	"github.com/questerhq/quester/quester/store"
)

func main() {
	_ = godotenv.Load()

	var (
		cfgPath string
		owner   string
		stream  bool
		media   bool
	)
	flag.StringVar(&cfgPath, "config", "", "path to YAML config file (optional)")
	flag.StringVar(&owner, "owner", "local", "owner identity for history and conversations")
	flag.BoolVar(&stream, "stream", false, "stream the answer as it is generated")
	flag.BoolVar(&media, "media", false, "fetch image and video evidence instead of an answer")
	flag.Parse()

	query := strings.TrimSpace(strings.Join(flag.Args(), " "))
	if query == "" {
		fmt.Fprintln(os.Stderr, "usage: quester [-config config.yaml] [-owner id] [-stream|-media] <query>")
		os.Exit(1)
	}

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	conn, err := db.Connect(cfg.Database.Path, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open database")
	}
	st, err := store.New(conn, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize store")
	}
	defer st.Close()

	searcher := search.NewTavilyWithClient(cfg.Search.APIKey, cfg.Search.Depth,
		httpClient(cfg.Search.TimeoutSecs))

	generator, err := generation.NewOpenAIClient(generation.OpenAIConfig{
		BaseURL: cfg.LLM.BaseURL,
		APIKey:  cfg.LLM.APIKey,
		Model:   cfg.LLM.Model,
		Timeout: time.Duration(cfg.LLM.TimeoutSecs) * time.Second,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create generation client")
	}

	var tracer ports.Tracer
	if cfg.Pipeline.EnableTracing {
		tracer = adapters.NewZerologTracer(logger)
	}

	opts := answer.DefaultOptions()
	opts.TextLimit = cfg.Search.MaxResults
	opts.ImageLimit = cfg.Search.MaxImages
	opts.MaxTokens = cfg.LLM.MaxTokens
	opts.Temperature = cfg.LLM.Temperature
	opts.NoAnswerMessage = cfg.Pipeline.NoAnswerMessage
	opts.StreamBuffer = cfg.Pipeline.StreamBuffer

	pipeline := answer.NewPipeline(searcher, generator, tracer, logger, opts)

	switch {
	case media:
		err = runMedia(ctx, pipeline, query)
	case stream:
		err = runStreaming(ctx, pipeline, st, owner, query)
	default:
		err = runBlocking(ctx, pipeline, st, owner, query)
	}
	if err != nil {
		logger.Fatal().Err(err).Msg("query failed")
	}
}

func runBlocking(ctx context.Context, pipeline *answer.Pipeline, st *store.Store, owner, query string) error {
	result, err := pipeline.AnswerBlocking(ctx, query)
	if err != nil {
		return err
	}

	fmt.Println(result.Text)
	printSources(result.Evidence)

	if _, err := st.History.Record(ctx, owner, query, result.Text, result.Evidence); err != nil {
		return fmt.Errorf("failed to record history: %w", err)
	}
	return nil
}

func runStreaming(ctx context.Context, pipeline *answer.Pipeline, st *store.Store, owner, query string) error {
	answerStream, err := pipeline.AnswerStreaming(ctx, query)
	if err != nil {
		return err
	}
	defer answerStream.Close()

	var full strings.Builder
	for chunk := range answerStream.Chunks() {
		fmt.Print(chunk)
		full.WriteString(chunk)
	}
	fmt.Println()

	if err := answerStream.Err(); err != nil {
		// Chunks delivered so far are a partial answer; do not persist them.
		return err
	}

	printSources(answerStream.Evidence())

	// The streaming path itself never persists; the consumer finalizes the
	// completed text and submits it.
	if _, err := st.History.Record(ctx, owner, query, full.String(), answerStream.Evidence()); err != nil {
		return fmt.Errorf("failed to record history: %w", err)
	}
	return nil
}

func runMedia(ctx context.Context, pipeline *answer.Pipeline, query string) error {
	images, videos, err := pipeline.MediaGallery(ctx, query)
	if err != nil {
		return err
	}

	fmt.Printf("Images (%d):\n", len(images))
	for _, img := range images {
		fmt.Printf("  %s  %s\n", img.URL, img.Description)
	}
	fmt.Printf("Videos (%d):\n", len(videos))
	for _, vid := range videos {
		fmt.Printf("  %s  %s\n", vid.URL, vid.Description)
	}
	return nil
}

func printSources(evidence []ports.EvidenceItem) {
	if len(evidence) == 0 {
		return
	}
	fmt.Println("\nSources:")
	for i, item := range evidence {
		fmt.Printf("  [%d] %s (%s)\n", i+1, item.Title, item.URL)
	}
}

func httpClient(timeoutSecs int) *http.Client {
	if timeoutSecs <= 0 {
		timeoutSecs = 10
	}
	return &http.Client{Timeout: time.Duration(timeoutSecs) * time.Second}
}
