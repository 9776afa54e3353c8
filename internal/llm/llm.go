package llm

import (
	"context"
	"errors"
)

// Client abstracts chat-completion providers used for document review.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// Request is a single system+user chat completion.
type Request struct {
	System      string
	User        string
	Model       string
	Temperature float64
	MaxTokens   int
}

// ErrUnknownModel is returned when a model is not in the catalog.
var ErrUnknownModel = errors.New("unknown model")

// ErrNotConfigured is returned by the placeholder client.
var ErrNotConfigured = errors.New("LLM not configured")

// PlaceholderClient is used when no API key is configured so the rest of the
// pipeline can still start; every chunk fails and documents end NOT_ANALYZED.
type PlaceholderClient struct{}

// Complete returns ErrNotConfigured.
func (PlaceholderClient) Complete(ctx context.Context, req Request) (string, error) {
	_ = ctx
	_ = req
	return "", ErrNotConfigured
}
