package retrieval

import (
	"path/filepath"
	"testing"
)

// unit returns a unit-normalized copy of v.
func unit(v ...float32) []float32 {
	out := append([]float32(nil), v...)
	normalize(out)
	return out
}

// clusteredVectors returns two tight clusters of unit vectors, one around the
// x axis and one around the y axis.
func clusteredVectors() [][]float32 {
	return [][]float32{
		unit(1, 0.01, 0),
		unit(1, -0.02, 0.01),
		unit(1, 0.03, -0.01),
		unit(0.02, 1, 0),
		unit(-0.01, 1, 0.02),
		unit(0.01, 1, -0.03),
	}
}

func TestIndex_TrainAndSearch(t *testing.T) {
	vectors := clusteredVectors()
	ix := NewIndex()
	if err := ix.Train(vectors, 2); err != nil {
		t.Fatalf("Train() error = %v", err)
	}
	if err := ix.Add(vectors); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	hits := ix.Search(unit(1, 0, 0), 3, 2)
	if len(hits) != 3 {
		t.Fatalf("got %d hits, want 3", len(hits))
	}
	for i := 1; i < len(hits); i++ {
		if hits[i].Score > hits[i-1].Score {
			t.Errorf("hits not sorted by descending score: %v", hits)
		}
	}
	// All three winners must come from the x cluster (slots 0..2).
	for _, h := range hits {
		if h.Slot > 2 {
			t.Errorf("hit slot %d from the wrong cluster (score %f)", h.Slot, h.Score)
		}
	}
}

func TestIndex_TopKLargerThanCorpus(t *testing.T) {
	vectors := [][]float32{unit(1, 0, 0), unit(0, 1, 0), unit(0, 0, 1)}
	ix := NewIndex()
	if err := ix.Train(vectors, 2); err != nil {
		t.Fatalf("Train() error = %v", err)
	}
	if err := ix.Add(vectors); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	hits := ix.Search(unit(1, 0, 0), 10, 2)
	if len(hits) != 3 {
		t.Errorf("got %d hits, want all 3 indexed vectors", len(hits))
	}
}

func TestIndex_Untrained(t *testing.T) {
	ix := NewIndex()
	if hits := ix.Search(unit(1, 0, 0), 5, 10); hits != nil {
		t.Errorf("untrained Search() = %v, want nil", hits)
	}
	if err := ix.Add([][]float32{unit(1, 0, 0)}); err == nil {
		t.Error("Add() on untrained index should error")
	}
}

func TestIndex_NlistClampedToCorpus(t *testing.T) {
	vectors := [][]float32{unit(1, 0, 0), unit(0, 1, 0)}
	ix := NewIndex()
	if err := ix.Train(vectors, 100); err != nil {
		t.Fatalf("Train() with nlist > corpus error = %v", err)
	}
	if err := ix.Add(vectors); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if hits := ix.Search(unit(0, 1, 0), 1, 100); len(hits) != 1 || hits[0].Slot != 1 {
		t.Errorf("Search() = %v, want the y-axis vector at slot 1", hits)
	}
}

func TestIndex_SaveLoadRoundTrip(t *testing.T) {
	vectors := clusteredVectors()
	ix := NewIndex()
	if err := ix.Train(vectors, 2); err != nil {
		t.Fatalf("Train() error = %v", err)
	}
	if err := ix.Add(vectors); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	path := filepath.Join(t.TempDir(), "reviews.index")
	if err := ix.Save(path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Len() != ix.Len() {
		t.Fatalf("loaded %d vectors, want %d", loaded.Len(), ix.Len())
	}

	query := unit(0, 1, 0)
	want := ix.Search(query, 3, 2)
	got := loaded.Search(query, 3, 2)
	if len(got) != len(want) {
		t.Fatalf("loaded index returned %d hits, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].Slot != want[i].Slot {
			t.Errorf("hit %d slot = %d, want %d", i, got[i].Slot, want[i].Slot)
		}
	}
}

func TestIndex_SaveUntrained(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.index")
	if err := NewIndex().Save(path); err == nil {
		t.Error("Save() of an untrained index should error")
	}
}
