package retrieval

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Entry is one row of the embedding metadata table. Slot mirrors the vector's
// position in the index; the raw embedding is stored alongside so the hybrid
// path can re-rank without touching the index.
type Entry struct {
	Slot      int32
	ReviewID  int64
	Text      string
	Rating    int
	Year      int
	Month     int
	Day       int
	Embedding []float32
}

// MetadataStore persists embedding metadata in the review_embedding table,
// sharing the database handle with the review store.
type MetadataStore struct {
	db *sql.DB
}

// NewMetadataStore wraps an existing *sql.DB. The review_embedding table must
// already exist (created via migrations).
func NewMetadataStore(db *sql.DB) *MetadataStore {
	return &MetadataStore{db: db}
}

// InsertEntries writes metadata rows in a single transaction.
func (m *MetadataStore) InsertEntries(ctx context.Context, entries []Entry) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning insert transaction: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO review_embedding (slot, review_id, text, rating, year, month, day, embedding)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("preparing insert statement: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		blob := encodeFloat32s(e.Embedding)
		if _, err := stmt.Exec(e.Slot, e.ReviewID, e.Text, e.Rating, e.Year, e.Month, e.Day, blob); err != nil {
			tx.Rollback()
			return fmt.Errorf("inserting entry for slot %d: %w", e.Slot, err)
		}
	}

	return tx.Commit()
}

const entryColumns = "slot, review_id, text, rating, year, month, day, embedding"

// GetBySlots returns the entries for the given index slots, keyed by slot.
func (m *MetadataStore) GetBySlots(ctx context.Context, slots []int32) (map[int32]Entry, error) {
	if len(slots) == 0 {
		return nil, nil
	}

	args := make([]interface{}, len(slots))
	for i, s := range slots {
		args[i] = s
	}
	query := "SELECT " + entryColumns + " FROM review_embedding WHERE slot IN (?" +
		strings.Repeat(",?", len(slots)-1) + ")"

	rows, err := m.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying by slots: %w", err)
	}
	defer rows.Close()

	entries := make(map[int32]Entry, len(slots))
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries[e.Slot] = e
	}
	return entries, rows.Err()
}

// GetByReviewIDs returns the entries whose review IDs are in the given set,
// embeddings included. Used by the hybrid path to re-rank a filtered subset.
func (m *MetadataStore) GetByReviewIDs(ctx context.Context, ids []int64) ([]Entry, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	query := "SELECT " + entryColumns + " FROM review_embedding WHERE review_id IN (?" +
		strings.Repeat(",?", len(ids)-1) + ")"

	rows, err := m.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying by review IDs: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Count returns the number of metadata rows.
func (m *MetadataStore) Count(ctx context.Context) (int, error) {
	var count int
	err := m.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM review_embedding").Scan(&count)
	return count, err
}

func scanEntry(rows *sql.Rows) (Entry, error) {
	var e Entry
	var blob []byte
	if err := rows.Scan(&e.Slot, &e.ReviewID, &e.Text, &e.Rating, &e.Year, &e.Month, &e.Day, &blob); err != nil {
		return Entry{}, fmt.Errorf("scanning entry: %w", err)
	}
	embedding, err := decodeFloat32s(blob)
	if err != nil {
		return Entry{}, fmt.Errorf("decoding embedding for slot %d: %w", e.Slot, err)
	}
	e.Embedding = embedding
	return e, nil
}
