package vector

import (
	"container/heap"
	"context"
	"math"
	"sync"

	"github.com/hyperjump/shiori/internal/models"
	"github.com/hyperjump/shiori/pkg/utils"
)

// FlatIndex is an exact brute-force index. Vectors are stored contiguously in insertion order.
type FlatIndex struct {
	dimensions int
	model      string
	vectors    []float32 // len = size * dimensions
	payloads   []models.Chunk
	closed     bool
	mu         sync.RWMutex
}

func newFlatIndex(dimensions int, model string, vectors []float32, payloads []models.Chunk) *FlatIndex {
	return &FlatIndex{
		dimensions: dimensions,
		model:      model,
		vectors:    vectors,
		payloads:   payloads,
	}
}

// candidate is a scored position; the heap keeps the current worst candidate on top.
type candidate struct {
	dist float64
	pos  int
}

type worstFirst []candidate

func (h worstFirst) Len() int { return len(h) }
func (h worstFirst) Less(i, j int) bool {
	if h[i].dist != h[j].dist {
		return h[i].dist > h[j].dist
	}
	return h[i].pos > h[j].pos
}
func (h worstFirst) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *worstFirst) Push(x any)   { *h = append(*h, x.(candidate)) }
func (h *worstFirst) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// Search scans every vector and keeps the k best in a bounded heap.
func (f *FlatIndex) Search(ctx context.Context, query []float32, k int) (models.RetrievalResult, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		return nil, ErrIndexClosed
	}
	if err := checkQuery(query, k, f.dimensions); err != nil {
		return nil, err
	}
	n := len(f.payloads)
	if k > n {
		k = n
	}
	if k == 0 {
		return models.RetrievalResult{}, nil
	}

	h := make(worstFirst, 0, k+1)
	for pos := 0; pos < n; pos++ {
		if pos%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		d := utils.SquaredL2(query, f.vectors[pos*f.dimensions:(pos+1)*f.dimensions])
		c := candidate{dist: d, pos: pos}
		if h.Len() < k {
			heap.Push(&h, c)
			continue
		}
		top := h[0]
		if d < top.dist || (d == top.dist && pos < top.pos) {
			h[0] = c
			heap.Fix(&h, 0)
		}
	}

	result := make(models.RetrievalResult, h.Len())
	for i := len(result) - 1; i >= 0; i-- {
		c := heap.Pop(&h).(candidate)
		result[i] = hit(f.payloads[c.pos], c.pos, math.Sqrt(c.dist))
	}
	for i := range result {
		result[i].Rank = i + 1
	}
	return result, nil
}

// Save writes the index to dir through the shared atomic directory writer.
func (f *FlatIndex) Save(dir string) error {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		return ErrIndexClosed
	}
	m := newManifest(IndexTypeFlat, f.dimensions, f.model, len(f.payloads))
	return writeIndexDir(dir, m, f.payloads, func(tmp string) error {
		return writeVectorBlob(blobPath(tmp, IndexTypeFlat), f.dimensions, len(f.payloads), f.vectors)
	})
}

// Size returns the number of entries.
func (f *FlatIndex) Size() int { return len(f.payloads) }

// Dimensions returns the vector length.
func (f *FlatIndex) Dimensions() int { return f.dimensions }

// Model returns the embedding model identifier.
func (f *FlatIndex) Model() string { return f.model }

// Type returns IndexTypeFlat.
func (f *FlatIndex) Type() IndexType { return IndexTypeFlat }

// Close releases the vectors; later calls fail with ErrIndexClosed.
func (f *FlatIndex) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	f.vectors = nil
	return nil
}
