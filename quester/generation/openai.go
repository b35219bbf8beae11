// Package generation provides text-generation providers for the answer
// pipeline. OpenAIClient speaks the OpenAI-compatible chat-completions
// protocol, which covers OpenAI itself plus Ollama, vLLM, and similar
// gateways.
package generation

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/questerhq/quester/quester/answer"
	ports "github.com/questerhq/quester/quester/answer/ports"
)

// OpenAIConfig configures the OpenAI-compatible generation client.
type OpenAIConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// OpenAIClient implements the Generator port against a chat-completions
// endpoint. It performs no internal retries; failures surface as
// GenerationError and retry policy belongs to the caller.
type OpenAIClient struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
	// streamClient has no overall timeout: a stream lives as long as the
	// provider keeps generating, bounded by the caller's ctx.
	streamClient *http.Client
}

// NewOpenAIClient creates a generation client. The API key is required; it is
// validated here so a missing credential fails before any provider call.
func NewOpenAIClient(cfg OpenAIConfig) (*OpenAIClient, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, answer.ErrMissingAPIKey
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4"
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	return &OpenAIClient{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:       cfg.APIKey,
		model:        cfg.Model,
		client:       &http.Client{Timeout: timeout},
		streamClient: &http.Client{},
	}, nil
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float32       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Stream      bool          `json:"stream,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type chatStreamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
}

// Complete sends the prompt and blocks until the provider returns the full
// answer text.
func (c *OpenAIClient) Complete(ctx context.Context, prompt string, opts ports.Options) (ports.Completion, error) {
	resp, err := c.post(ctx, chatRequest{
		Model:       c.model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	})
	if err != nil {
		return ports.Completion{}, err
	}
	defer resp.Body.Close()

	var decoded chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return ports.Completion{}, &answer.GenerationError{Err: err}
	}
	if len(decoded.Choices) == 0 {
		return ports.Completion{}, &answer.GenerationError{Err: fmt.Errorf("no choices in response")}
	}
	return ports.Completion{Text: decoded.Choices[0].Message.Content, Raw: decoded}, nil
}

// Stream sends the prompt in streaming mode and forwards delta chunks on the
// returned channel. The channel closes after a terminal chunk: Done for a
// normal finish, Err for a mid-stream failure. Cancelling ctx closes the
// provider connection and the channel.
func (c *OpenAIClient) Stream(ctx context.Context, prompt string, opts ports.Options) (<-chan ports.CompletionChunk, error) {
	resp, err := c.post(ctx, chatRequest{
		Model:       c.model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
		Stream:      true,
	})
	if err != nil {
		return nil, err
	}

	out := make(chan ports.CompletionChunk, 8)
	go c.readStream(ctx, resp.Body, out)
	return out, nil
}

// readStream parses the SSE body line by line until [DONE], an error, or
// cancellation.
func (c *OpenAIClient) readStream(ctx context.Context, body io.ReadCloser, out chan<- ports.CompletionChunk) {
	defer close(out)
	defer body.Close()

	// Closing the body when ctx ends unblocks the scanner mid-read.
	stop := context.AfterFunc(ctx, func() { body.Close() })
	defer stop()

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "[DONE]" {
			c.emit(ctx, out, ports.CompletionChunk{Done: true})
			return
		}

		var chunk chatStreamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			c.emit(ctx, out, ports.CompletionChunk{Err: &answer.GenerationError{Err: err}})
			return
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		if delta := chunk.Choices[0].Delta.Content; delta != "" {
			if !c.emit(ctx, out, ports.CompletionChunk{DeltaText: delta}) {
				return
			}
		}
		if chunk.Choices[0].FinishReason != nil {
			c.emit(ctx, out, ports.CompletionChunk{Done: true})
			return
		}
	}

	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		c.emit(ctx, out, ports.CompletionChunk{Err: &answer.GenerationError{Err: err}})
		return
	}
	if ctx.Err() != nil {
		return
	}
	// Stream ended without [DONE]; treat as truncated.
	c.emit(ctx, out, ports.CompletionChunk{Err: &answer.GenerationError{Err: io.ErrUnexpectedEOF}})
}

func (c *OpenAIClient) emit(ctx context.Context, out chan<- ports.CompletionChunk, chunk ports.CompletionChunk) bool {
	select {
	case out <- chunk:
		return true
	case <-ctx.Done():
		return false
	}
}

func (c *OpenAIClient) post(ctx context.Context, body chatRequest) (*http.Response, error) {
	client := c.client
	if body.Stream {
		client = c.streamClient
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, &answer.GenerationError{Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, &answer.GenerationError{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := client.Do(req)
	if err != nil {
		return nil, &answer.GenerationError{Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, &answer.GenerationError{Err: fmt.Errorf("chat completions http %d", resp.StatusCode)}
	}
	return resp, nil
}

var _ ports.Generator = (*OpenAIClient)(nil)
