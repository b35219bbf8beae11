// Package search provides web search providers for the answer pipeline.
//
// Tavily is the reference provider. It supports text search with relevance
// scores and optional image results; it offers no video search, so
// SearchVideos reports an empty result (a valid outcome, not an error).
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/questerhq/quester/quester/answer"
	ports "github.com/questerhq/quester/quester/answer/ports"
)

const defaultTavilyURL = "https://api.tavily.com/search"

// Tavily calls the Tavily search API.
type Tavily struct {
	apiKey  string
	baseURL string
	// depth controls Tavily's search_depth parameter (basic or advanced).
	depth  string
	client *http.Client
}

// NewTavily constructs a Tavily search provider.
func NewTavily(apiKey, depth string) *Tavily {
	return NewTavilyWithClient(apiKey, depth, &http.Client{Timeout: 10 * time.Second})
}

// NewTavilyWithClient constructs a Tavily search provider using the supplied
// HTTP client, e.g. to override the default timeout.
func NewTavilyWithClient(apiKey, depth string, client *http.Client) *Tavily {
	if depth == "" {
		depth = "basic"
	}
	return &Tavily{apiKey: apiKey, baseURL: defaultTavilyURL, depth: depth, client: client}
}

type tavilyRequest struct {
	APIKey                   string `json:"api_key"`
	Query                    string `json:"query"`
	SearchDepth              string `json:"search_depth"`
	MaxResults               int    `json:"max_results"`
	IncludeImages            bool   `json:"include_images,omitempty"`
	IncludeImageDescriptions bool   `json:"include_image_descriptions,omitempty"`
}

type tavilyResponse struct {
	Results []struct {
		Title   string  `json:"title"`
		URL     string  `json:"url"`
		Content string  `json:"content"`
		Score   float64 `json:"score"`
	} `json:"results"`
	Images []struct {
		URL         string `json:"url"`
		Description string `json:"description"`
	} `json:"images"`
}

// SearchText retrieves up to limit text results in the provider's order.
func (t *Tavily) SearchText(ctx context.Context, query string, limit int) ([]ports.EvidenceItem, error) {
	resp, err := t.post(ctx, tavilyRequest{
		Query:       query,
		SearchDepth: t.depth,
		MaxResults:  limit,
	})
	if err != nil {
		return nil, err
	}

	items := make([]ports.EvidenceItem, 0, len(resp.Results))
	for _, r := range resp.Results {
		items = append(items, ports.EvidenceItem{
			Title:   r.Title,
			URL:     r.URL,
			Content: r.Content,
			Score:   r.Score,
			Kind:    ports.KindText,
		})
		if len(items) >= limit {
			break
		}
	}
	return items, nil
}

// SearchImages retrieves up to limit image results.
func (t *Tavily) SearchImages(ctx context.Context, query string, limit int) ([]ports.EvidenceItem, error) {
	resp, err := t.post(ctx, tavilyRequest{
		Query:                    query,
		SearchDepth:              t.depth,
		MaxResults:               limit,
		IncludeImages:            true,
		IncludeImageDescriptions: true,
	})
	if err != nil {
		return nil, err
	}

	items := make([]ports.EvidenceItem, 0, len(resp.Images))
	for _, img := range resp.Images {
		items = append(items, ports.EvidenceItem{
			Title:       img.Description,
			URL:         img.URL,
			Kind:        ports.KindImage,
			Thumbnail:   img.URL,
			Description: img.Description,
		})
		if len(items) >= limit {
			break
		}
	}
	return items, nil
}

// SearchVideos reports no results: Tavily has no video search. Callers treat
// an empty sequence as a valid outcome.
func (t *Tavily) SearchVideos(ctx context.Context, query string, limit int) ([]ports.EvidenceItem, error) {
	return []ports.EvidenceItem{}, nil
}

func (t *Tavily) post(ctx context.Context, body tavilyRequest) (*tavilyResponse, error) {
	if strings.TrimSpace(t.apiKey) == "" {
		return nil, answer.ErrMissingAPIKey
	}
	body.APIKey = t.apiKey

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, &answer.RetrievalError{Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL, bytes.NewReader(payload))
	if err != nil {
		return nil, &answer.RetrievalError{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, &answer.RetrievalError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &answer.RetrievalError{Err: fmt.Errorf("tavily http %d", resp.StatusCode)}
	}

	var decoded tavilyResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, &answer.RetrievalError{Err: err}
	}
	return &decoded, nil
}

var _ ports.SearchProvider = (*Tavily)(nil)
