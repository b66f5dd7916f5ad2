package vector

import (
	"fmt"

	"github.com/hyperjump/shiori/internal/models"
)

// IndexType names a vector index implementation.
type IndexType string

const (
	// IndexTypeFlat is exact brute-force search. The default.
	IndexTypeFlat IndexType = "flat"
	// IndexTypeFAISS uses a FAISS IndexFlatL2. Requires the FAISS library and -tags=faiss.
	IndexTypeFAISS IndexType = "faiss"
)

// Build creates an index of the given type from all entries at once. Entries keep their order as
// insertion positions; vectors and payloads are copied. An empty entries slice gives a valid,
// empty index.
func Build(indexType string, dimensions int, model string, entries []models.IndexEntry) (Index, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive, got %d", dimensions)
	}
	vectors := make([]float32, len(entries)*dimensions)
	payloads := make([]models.Chunk, len(entries))
	for i, e := range entries {
		if len(e.Vector) != dimensions {
			return nil, fmt.Errorf("entry %d: %w", i, &DimensionMismatchError{Got: len(e.Vector), Want: dimensions})
		}
		copy(vectors[i*dimensions:], e.Vector)
		payloads[i] = models.Chunk{Content: e.Payload.Content, Metadata: models.CloneMetadata(e.Payload.Metadata)}
	}

	switch IndexType(indexType) {
	case IndexTypeFlat, "":
		return newFlatIndex(dimensions, model, vectors, payloads), nil
	case IndexTypeFAISS:
		idx, err := newFAISSIndex(dimensions, model, vectors, payloads)
		if err != nil {
			return nil, err
		}
		return idx, nil
	default:
		return nil, fmt.Errorf("unknown index type: %s (supported: flat, faiss)", indexType)
	}
}

// IsFAISSAvailable returns true if FAISS support is compiled in (build tag faiss with cgo).
func IsFAISSAvailable() bool {
	idx, err := newFAISSIndex(1, "", nil, nil)
	if err != nil {
		return false
	}
	_ = idx.Close()
	return true
}
