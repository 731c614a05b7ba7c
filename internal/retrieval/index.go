package retrieval

import (
	"bufio"
	"container/heap"
	"encoding/binary"
	"fmt"
	"os"
)

// indexMagic and indexVersion identify the on-disk index format.
const (
	indexMagic   = uint32(0x52515649) // "RQVI"
	indexVersion = uint32(1)
)

const kmeansIterations = 25

// Hit is one search result: the slot of the matching vector and its
// inner-product score against the query.
type Hit struct {
	Slot  int32
	Score float32
}

// Index is a partitioned inverted-file flat index over unit-normalized
// vectors with an inner-product metric. Train clusters the corpus into nlist
// partitions; Search scans only the nProbe partitions whose centroids are
// closest to the query, trading a little recall for a much smaller scan.
//
// The index is not safe for concurrent mutation; serving code treats it as
// read-only after Load.
type Index struct {
	dim       int
	centroids [][]float32
	lists     [][]int32
	vectors   [][]float32
}

// NewIndex returns an empty, untrained index.
func NewIndex() *Index {
	return &Index{}
}

// Trained reports whether Train has produced centroids.
func (ix *Index) Trained() bool { return len(ix.centroids) > 0 }

// Len returns the number of indexed vectors.
func (ix *Index) Len() int { return len(ix.vectors) }

// Train runs spherical k-means over the given unit vectors to build nlist
// partitions. nlist is clamped to the corpus size. Training discards any
// previously added vectors.
func (ix *Index) Train(vectors [][]float32, nlist int) error {
	if len(vectors) == 0 {
		return fmt.Errorf("training requires at least one vector")
	}
	if nlist < 1 {
		return fmt.Errorf("nlist must be positive, got %d", nlist)
	}
	if nlist > len(vectors) {
		nlist = len(vectors)
	}

	dim := len(vectors[0])
	for i, v := range vectors {
		if len(v) != dim {
			return fmt.Errorf("vector %d has dimension %d, want %d", i, len(v), dim)
		}
	}

	// Seed centroids from evenly spaced corpus vectors: deterministic, and
	// good enough for review-sized corpora.
	centroids := make([][]float32, nlist)
	for i := range centroids {
		src := vectors[i*len(vectors)/nlist]
		centroids[i] = append([]float32(nil), src...)
	}

	assign := make([]int, len(vectors))
	for iter := 0; iter < kmeansIterations; iter++ {
		changed := false
		for i, v := range vectors {
			best := nearestCentroid(centroids, v)
			if assign[i] != best {
				assign[i] = best
				changed = true
			}
		}
		if !changed && iter > 0 {
			break
		}

		sums := make([][]float64, nlist)
		counts := make([]int, nlist)
		for i := range sums {
			sums[i] = make([]float64, dim)
		}
		for i, v := range vectors {
			c := assign[i]
			counts[c]++
			for j, f := range v {
				sums[c][j] += float64(f)
			}
		}
		for c := range centroids {
			if counts[c] == 0 {
				continue // empty cluster keeps its previous centroid
			}
			for j := range centroids[c] {
				centroids[c][j] = float32(sums[c][j] / float64(counts[c]))
			}
			normalize(centroids[c])
		}
	}

	ix.dim = dim
	ix.centroids = centroids
	ix.lists = make([][]int32, nlist)
	ix.vectors = nil
	return nil
}

// Add appends vectors to the index, assigning each to its nearest partition.
// Slots are sequential in insertion order and align with the metadata store.
func (ix *Index) Add(vectors [][]float32) error {
	if !ix.Trained() {
		return fmt.Errorf("index must be trained before adding vectors")
	}
	for _, v := range vectors {
		if len(v) != ix.dim {
			return fmt.Errorf("vector has dimension %d, want %d", len(v), ix.dim)
		}
		slot := int32(len(ix.vectors))
		ix.vectors = append(ix.vectors, append([]float32(nil), v...))
		c := nearestCentroid(ix.centroids, v)
		ix.lists[c] = append(ix.lists[c], slot)
	}
	return nil
}

// Search returns up to topK hits for the query vector, scanning only the
// nProbe partitions nearest to it. An untrained or empty index yields no
// hits, and fewer than topK matches yields a shorter result; neither is an
// error. Hits come back ordered by descending score.
func (ix *Index) Search(vec []float32, topK, nProbe int) []Hit {
	if !ix.Trained() || len(ix.vectors) == 0 || topK < 1 || len(vec) != ix.dim {
		return nil
	}
	if nProbe < 1 {
		nProbe = 1
	}
	if nProbe > len(ix.centroids) {
		nProbe = len(ix.centroids)
	}

	probes := nearestCentroids(ix.centroids, vec, nProbe)

	h := &hitHeap{}
	heap.Init(h)
	for _, c := range probes {
		for _, slot := range ix.lists[c] {
			score := dot(vec, ix.vectors[slot])
			if h.Len() < topK {
				heap.Push(h, Hit{Slot: slot, Score: score})
			} else if score > (*h)[0].Score {
				(*h)[0] = Hit{Slot: slot, Score: score}
				heap.Fix(h, 0)
			}
		}
	}

	hits := make([]Hit, h.Len())
	for i := len(hits) - 1; i >= 0; i-- {
		hits[i] = heap.Pop(h).(Hit)
	}
	return hits
}

// nearestCentroid returns the index of the centroid with the highest inner
// product against v.
func nearestCentroid(centroids [][]float32, v []float32) int {
	best, bestScore := 0, float32(-2)
	for i, c := range centroids {
		if s := dot(c, v); s > bestScore {
			best, bestScore = i, s
		}
	}
	return best
}

// nearestCentroids returns the indices of the n centroids with the highest
// inner product against v, unordered.
func nearestCentroids(centroids [][]float32, v []float32, n int) []int {
	type cs struct {
		idx   int
		score float32
	}
	top := make([]cs, 0, n)
	for i, c := range centroids {
		s := dot(c, v)
		if len(top) < n {
			top = append(top, cs{i, s})
			continue
		}
		worst := 0
		for j := 1; j < len(top); j++ {
			if top[j].score < top[worst].score {
				worst = j
			}
		}
		if s > top[worst].score {
			top[worst] = cs{i, s}
		}
	}
	out := make([]int, len(top))
	for i, t := range top {
		out[i] = t.idx
	}
	return out
}

// Save writes the index to path in a little-endian binary format.
func (ix *Index) Save(path string) error {
	if !ix.Trained() {
		return fmt.Errorf("refusing to save an untrained index")
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating index file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	header := []uint32{indexMagic, indexVersion, uint32(ix.dim), uint32(len(ix.centroids)), uint32(len(ix.vectors))}
	for _, h := range header {
		if err := binary.Write(w, binary.LittleEndian, h); err != nil {
			return fmt.Errorf("writing index header: %w", err)
		}
	}
	for _, c := range ix.centroids {
		if _, err := w.Write(encodeFloat32s(c)); err != nil {
			return fmt.Errorf("writing centroid: %w", err)
		}
	}
	for _, list := range ix.lists {
		if err := binary.Write(w, binary.LittleEndian, uint32(len(list))); err != nil {
			return fmt.Errorf("writing list length: %w", err)
		}
		if err := binary.Write(w, binary.LittleEndian, list); err != nil {
			return fmt.Errorf("writing list: %w", err)
		}
	}
	for _, v := range ix.vectors {
		if _, err := w.Write(encodeFloat32s(v)); err != nil {
			return fmt.Errorf("writing vector: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flushing index file: %w", err)
	}
	return nil
}

// Load reads an index previously written by Save.
func Load(path string) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening index file: %w", err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	var magic, version, dim, nlist, ntotal uint32
	for _, field := range []*uint32{&magic, &version, &dim, &nlist, &ntotal} {
		if err := binary.Read(r, binary.LittleEndian, field); err != nil {
			return nil, fmt.Errorf("reading index header: %w", err)
		}
	}
	if magic != indexMagic {
		return nil, fmt.Errorf("not an index file: bad magic %#x", magic)
	}
	if version != indexVersion {
		return nil, fmt.Errorf("unsupported index version %d", version)
	}

	ix := &Index{dim: int(dim)}
	ix.centroids = make([][]float32, nlist)
	for i := range ix.centroids {
		ix.centroids[i] = make([]float32, dim)
		if err := binary.Read(r, binary.LittleEndian, ix.centroids[i]); err != nil {
			return nil, fmt.Errorf("reading centroid %d: %w", i, err)
		}
	}
	ix.lists = make([][]int32, nlist)
	for i := range ix.lists {
		var n uint32
		if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
			return nil, fmt.Errorf("reading list %d length: %w", i, err)
		}
		ix.lists[i] = make([]int32, n)
		if err := binary.Read(r, binary.LittleEndian, ix.lists[i]); err != nil {
			return nil, fmt.Errorf("reading list %d: %w", i, err)
		}
	}
	ix.vectors = make([][]float32, ntotal)
	for i := range ix.vectors {
		ix.vectors[i] = make([]float32, dim)
		if err := binary.Read(r, binary.LittleEndian, ix.vectors[i]); err != nil {
			return nil, fmt.Errorf("reading vector %d: %w", i, err)
		}
	}
	return ix, nil
}

// hitHeap is a min-heap of Hit ordered by Score, used to track top-K
// candidates during partition scans.
type hitHeap []Hit

func (h hitHeap) Len() int            { return len(h) }
func (h hitHeap) Less(i, j int) bool  { return h[i].Score < h[j].Score }
func (h hitHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *hitHeap) Push(x interface{}) { *h = append(*h, x.(Hit)) }
func (h *hitHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
