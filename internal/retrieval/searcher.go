package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
)

// Passage is a review text returned by similarity search, with its score.
type Passage struct {
	ReviewID int64
	Text     string
	Rating   int
	Score    float32
}

// Searcher answers similarity queries over the review corpus: embed the
// question, search the index (or a filtered subset), resolve metadata.
type Searcher struct {
	embedder *Embedder
	index    *Index
	meta     *MetadataStore
}

// NewSearcher creates a Searcher over the given embedder, index, and
// metadata store.
func NewSearcher(embedder *Embedder, index *Index, meta *MetadataStore) *Searcher {
	return &Searcher{embedder: embedder, index: index, meta: meta}
}

// Search embeds the question and returns the topK most similar passages,
// scanning nProbe index partitions. Fewer than topK indexed reviews yield a
// shorter result; an untrained index yields none. Neither is an error.
func (s *Searcher) Search(ctx context.Context, question string, topK, nProbe int) ([]Passage, error) {
	vec, err := s.embedder.Embed(ctx, question)
	if err != nil {
		return nil, err
	}

	hits := s.index.Search(vec, topK, nProbe)
	if len(hits) == 0 {
		return nil, nil
	}

	slots := make([]int32, len(hits))
	for i, h := range hits {
		slots[i] = h.Slot
	}
	entries, err := s.meta.GetBySlots(ctx, slots)
	if err != nil {
		return nil, fmt.Errorf("resolving passages: %w", err)
	}

	passages := make([]Passage, 0, len(hits))
	for _, h := range hits {
		e, ok := entries[h.Slot]
		if !ok {
			slog.Warn("index slot missing from metadata", "slot", h.Slot)
			continue
		}
		passages = append(passages, Passage{ReviewID: e.ReviewID, Text: e.Text, Rating: e.Rating, Score: h.Score})
	}
	return passages, nil
}

// SearchWithin embeds the question and re-ranks only the reviews in the given
// ID set by inner product against their stored embeddings, returning the topK
// best. The index itself is bypassed; this serves the filter-then-rank path.
func (s *Searcher) SearchWithin(ctx context.Context, question string, ids []int64, topK int) ([]Passage, error) {
	if len(ids) == 0 || topK < 1 {
		return nil, nil
	}

	vec, err := s.embedder.Embed(ctx, question)
	if err != nil {
		return nil, err
	}

	entries, err := s.meta.GetByReviewIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("loading filtered embeddings: %w", err)
	}
	if len(entries) == 0 {
		return nil, nil
	}

	passages := make([]Passage, len(entries))
	for i, e := range entries {
		normalize(e.Embedding)
		passages[i] = Passage{ReviewID: e.ReviewID, Text: e.Text, Rating: e.Rating, Score: dot(vec, e.Embedding)}
	}
	sort.Slice(passages, func(i, j int) bool { return passages[i].Score > passages[j].Score })

	if len(passages) > topK {
		passages = passages[:topK]
	}
	return passages, nil
}
