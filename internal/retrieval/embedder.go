package retrieval

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// EmbedBackend produces embedding vectors for text. The Ollama backend
// implements it; question answering may run on a different backend, but the
// index must always be queried with the model it was built with.
type EmbedBackend interface {
	Embed(ctx context.Context, model string, text string) ([]float32, error)
}

// Embedder wraps an EmbedBackend and normalizes every vector it returns, so
// inner product downstream equals cosine similarity.
type Embedder struct {
	backend EmbedBackend
	model   string
}

// NewEmbedder creates an Embedder using the given backend and model name.
func NewEmbedder(b EmbedBackend, model string) *Embedder {
	return &Embedder{backend: b, model: model}
}

// Embed returns the unit-normalized embedding vector for a single text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := e.backend.Embed(ctx, e.model, text)
	if err != nil {
		return nil, fmt.Errorf("embedding text: %w", err)
	}
	normalize(vec)
	return vec, nil
}

// EmbedBatch returns unit-normalized embedding vectors for multiple texts
// concurrently. Returns nil (not error) for empty/nil input.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	results := make([][]float32, len(texts))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(4) // Bound concurrency to avoid overwhelming the embedding server.

	for i, text := range texts {
		i, text := i, text
		g.Go(func() error {
			vec, err := e.backend.Embed(gCtx, e.model, text)
			if err != nil {
				return fmt.Errorf("embedding text %d: %w", i, err)
			}
			normalize(vec)
			results[i] = vec
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
