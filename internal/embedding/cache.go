package embedding

import (
	"container/list"
	"context"
	"fmt"
	"sync"
)

// EmbeddingCache is an LRU cache for embeddings keyed by text.
type EmbeddingCache struct {
	capacity int
	cache    map[string]*list.Element
	lru      *list.List
	mu       sync.Mutex
}

type cacheEntry struct {
	key   string
	value []float32
}

// NewEmbeddingCache creates a new cache with the given capacity (at least 1).
func NewEmbeddingCache(capacity int) *EmbeddingCache {
	if capacity < 1 {
		capacity = 1
	}
	return &EmbeddingCache{
		capacity: capacity,
		cache:    make(map[string]*list.Element),
		lru:      list.New(),
	}
}

// Get returns the cached embedding for key if present.
func (c *EmbeddingCache) Get(key string) ([]float32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.cache[key]; ok {
		c.lru.MoveToFront(elem)
		return elem.Value.(*cacheEntry).value, true
	}
	return nil, false
}

// Set stores the embedding for key, evicting the oldest entry if at capacity.
func (c *EmbeddingCache) Set(key string, value []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.cache[key]; ok {
		c.lru.MoveToFront(elem)
		elem.Value.(*cacheEntry).value = value
		return
	}

	elem := c.lru.PushFront(&cacheEntry{key: key, value: value})
	c.cache[key] = elem

	if c.lru.Len() > c.capacity {
		if oldest := c.lru.Back(); oldest != nil {
			c.lru.Remove(oldest)
			delete(c.cache, oldest.Value.(*cacheEntry).key)
		}
	}
}

// Len returns the number of cached entries.
func (c *EmbeddingCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// DedupEmbedder wraps an Embedder so repeated texts within its lifetime are embedded once.
// It is meant to live for a single index build; queries go straight to the wrapped Embedder.
type DedupEmbedder struct {
	Embedder
	cache *EmbeddingCache
}

// NewDedupEmbedder wraps inner with an LRU cache of the given capacity.
func NewDedupEmbedder(inner Embedder, capacity int) *DedupEmbedder {
	return &DedupEmbedder{Embedder: inner, cache: NewEmbeddingCache(capacity)}
}

// Embed returns the cached vector for text or computes and caches it.
func (d *DedupEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := d.cache.Get(text); ok {
		return v, nil
	}
	v, err := d.Embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	d.cache.Set(text, v)
	return v, nil
}

// EmbedBatch sends only the distinct uncached texts to the wrapped Embedder, preserving order.
func (d *DedupEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var missing []string
	pending := make(map[string][]int)
	for i, t := range texts {
		if v, ok := d.cache.Get(t); ok {
			out[i] = v
			continue
		}
		if _, seen := pending[t]; !seen {
			missing = append(missing, t)
		}
		pending[t] = append(pending[t], i)
	}
	if len(missing) == 0 {
		return out, nil
	}
	vecs, err := d.Embedder.EmbedBatch(ctx, missing)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(missing) {
		return nil, embeddingErr(d.Model(), fmt.Errorf("provider returned %d vectors for %d texts", len(vecs), len(missing)))
	}
	for j, t := range missing {
		d.cache.Set(t, vecs[j])
		for _, i := range pending[t] {
			out[i] = vecs[j]
		}
	}
	return out, nil
}
