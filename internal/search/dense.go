package search

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/coder/hnsw"
)

// DenseIndexThreshold is the corpus size (embeddings for the active model)
// above which dense search switches from brute-force cosine scan to the
// approximate HNSW index.
const DenseIndexThreshold = 1000

// DenseHit is one nearest-neighbor result against a chunk_hash.
type DenseHit struct {
	ChunkHash string
	Score     float32 // cosine similarity in [-1, 1], higher is better
}

// DenseIndex answers nearest-neighbor queries over a single embedding model's
// vector space, choosing brute-force or ANN search based on corpus size. It
// owns no persistence of its own -- embeddings are loaded from store.Store
// and the index is rebuilt in-process, scoped to the search package instead
// of the store package, since ANN here is a read-side concern over rows the
// store already owns.
type DenseIndex struct {
	mu sync.RWMutex

	dimensions int
	graph      *hnsw.Graph[uint64]
	idMap      map[string]uint64
	keyMap     map[uint64]string
	nextKey    uint64

	brute map[string][]float32
}

// NewDenseIndex creates an empty index for the given vector dimensionality.
func NewDenseIndex(dimensions int) *DenseIndex {
	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = 16
	graph.EfSearch = 64
	graph.Ml = 0.25

	return &DenseIndex{
		dimensions: dimensions,
		graph:      graph,
		idMap:      make(map[string]uint64),
		keyMap:     make(map[uint64]string),
		brute:      make(map[string][]float32),
	}
}

// Len reports how many distinct chunk hashes are currently indexed.
func (d *DenseIndex) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.brute)
}

// Upsert adds or replaces the vector for chunkHash. Both the brute-force map
// and the HNSW graph are kept in sync; which one actually serves a query is
// decided at Search time by corpus size.
func (d *DenseIndex) Upsert(chunkHash string, vec []float32) error {
	if len(vec) != d.dimensions {
		return fmt.Errorf("dense index: expected %d dimensions, got %d", d.dimensions, len(vec))
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	norm := normalize(vec)
	d.brute[chunkHash] = norm

	// Lazy deletion on collision: orphan the old graph key instead of
	// deleting it, since coder/hnsw corrupts its graph when the last node
	// is removed.
	if oldKey, ok := d.idMap[chunkHash]; ok {
		delete(d.keyMap, oldKey)
		delete(d.idMap, chunkHash)
	}
	key := d.nextKey
	d.nextKey++
	d.graph.Add(hnsw.MakeNode(key, norm))
	d.idMap[chunkHash] = key
	d.keyMap[key] = chunkHash
	return nil
}

// Remove drops chunkHash from the brute-force map; the HNSW graph entry is
// lazily orphaned, same as Upsert's collision path.
func (d *DenseIndex) Remove(chunkHash string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	delete(d.brute, chunkHash)
	if key, ok := d.idMap[chunkHash]; ok {
		delete(d.keyMap, key)
		delete(d.idMap, chunkHash)
	}
}

// Search returns the top-k chunks by cosine similarity to query. Below
// DenseIndexThreshold active vectors it scores every vector directly
// (bit-for-bit deterministic); at or above it, it defers to the HNSW graph.
func (d *DenseIndex) Search(ctx context.Context, query []float32, k int) ([]DenseHit, error) {
	if len(query) != d.dimensions {
		return nil, fmt.Errorf("dense index: query has %d dimensions, expected %d", len(query), d.dimensions)
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	q := normalize(query)

	if len(d.brute) < DenseIndexThreshold {
		return d.bruteSearch(q, k), nil
	}
	return d.annSearch(q, k), nil
}

func (d *DenseIndex) bruteSearch(q []float32, k int) []DenseHit {
	hits := make([]DenseHit, 0, len(d.brute))
	for hash, vec := range d.brute {
		hits = append(hits, DenseHit{ChunkHash: hash, Score: cosine(q, vec)})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ChunkHash < hits[j].ChunkHash
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits
}

func (d *DenseIndex) annSearch(q []float32, k int) []DenseHit {
	if d.graph.Len() == 0 {
		return nil
	}
	nodes := d.graph.Search(q, k)
	hits := make([]DenseHit, 0, len(nodes))
	for _, n := range nodes {
		hash, ok := d.keyMap[n.Key]
		if !ok {
			continue // orphaned (lazily deleted) node
		}
		dist := d.graph.Distance(q, n.Value)
		hits = append(hits, DenseHit{ChunkHash: hash, Score: 1.0 - dist/2.0})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ChunkHash < hits[j].ChunkHash
	})
	return hits
}

// UsedANN reports whether a Search call with the index's current size would
// take the ANN path rather than brute force, for telemetry.
func (d *DenseIndex) UsedANN() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.brute) >= DenseIndexThreshold
}

func normalize(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	var sumSq float64
	for _, x := range out {
		sumSq += float64(x) * float64(x)
	}
	if sumSq == 0 {
		return out
	}
	inv := float32(1.0 / math.Sqrt(sumSq))
	for i := range out {
		out[i] *= inv
	}
	return out
}

func cosine(a, b []float32) float32 {
	var dot float32
	for i := range a {
		dot += a[i] * b[i]
	}
	return dot
}
