package ingest

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kalambet/reviewqa/internal/retrieval"
	"github.com/kalambet/reviewqa/internal/store"
)

// embedBatchSize bounds how many texts go to the embedder per batch call.
const embedBatchSize = 32

// BuildIndex embeds every stored review, trains a partitioned index with
// nlist clusters, writes it to indexPath, and fills the embedding metadata
// table. Slots are assigned in review id order, so the index and metadata
// stay aligned. Returns the number of indexed reviews.
func BuildIndex(ctx context.Context, st *store.Store, embedder *retrieval.Embedder, indexPath string, nlist int) (int, error) {
	reviews, err := st.ListReviews()
	if err != nil {
		return 0, fmt.Errorf("loading reviews: %w", err)
	}
	if len(reviews) == 0 {
		return 0, fmt.Errorf("no reviews to index; ingest a CSV first")
	}

	vectors := make([][]float32, 0, len(reviews))
	for start := 0; start < len(reviews); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(reviews) {
			end = len(reviews)
		}
		texts := make([]string, 0, end-start)
		for _, r := range reviews[start:end] {
			texts = append(texts, r.Text)
		}

		batch, err := embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return 0, fmt.Errorf("embedding batch at %d: %w", start, err)
		}
		vectors = append(vectors, batch...)
		slog.Info("embedded reviews", "done", end, "total", len(reviews))
	}

	ix := retrieval.NewIndex()
	if err := ix.Train(vectors, nlist); err != nil {
		return 0, fmt.Errorf("training index: %w", err)
	}
	if err := ix.Add(vectors); err != nil {
		return 0, fmt.Errorf("adding vectors: %w", err)
	}
	if err := ix.Save(indexPath); err != nil {
		return 0, fmt.Errorf("saving index: %w", err)
	}

	entries := make([]retrieval.Entry, len(reviews))
	for i, r := range reviews {
		entries[i] = retrieval.Entry{
			Slot:      int32(i),
			ReviewID:  r.ID,
			Text:      r.Text,
			Rating:    r.Rating,
			Year:      r.Year,
			Month:     r.Month,
			Day:       r.Day,
			Embedding: vectors[i],
		}
	}
	meta := retrieval.NewMetadataStore(st.DB())
	if err := meta.InsertEntries(ctx, entries); err != nil {
		return 0, fmt.Errorf("writing embedding metadata: %w", err)
	}

	slog.Info("index built", "reviews", len(reviews), "nlist", nlist, "path", indexPath)
	return len(reviews), nil
}
