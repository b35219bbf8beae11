package answerports

import "context"

// SearchProvider is the abstraction for web evidence retrieval backends.
//
// All three calls return the provider's results normalized to EvidenceItem in
// the provider's own order. A zero-result response is a valid outcome (empty
// slice, nil error), distinct from a provider failure. SearchVideos may be a
// capability gap: providers without video search return an empty slice rather
// than an error, so callers must not infer the capability from an empty
// result.
type SearchProvider interface {
	SearchText(ctx context.Context, query string, limit int) ([]EvidenceItem, error)
	SearchImages(ctx context.Context, query string, limit int) ([]EvidenceItem, error)
	SearchVideos(ctx context.Context, query string, limit int) ([]EvidenceItem, error)
}
