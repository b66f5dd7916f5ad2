//go:build faiss && cgo
// +build faiss,cgo

package vector

/*
#cgo CFLAGS: -I/opt/homebrew/include -I/usr/local/include
#cgo LDFLAGS: -L/opt/homebrew/lib -L/usr/local/lib -lfaiss_c

#include <stdlib.h>
#include <faiss/c_api/Index_c.h>
#include <faiss/c_api/IndexFlat_c.h>
#include <faiss/c_api/index_io_c.h>
#include <faiss/c_api/error_c.h>
*/
import "C"

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"unsafe"

	"github.com/hyperjump/shiori/internal/models"
)

// FAISSIndex wraps a FAISS IndexFlatL2. FAISS labels are insertion positions into payloads.
type FAISSIndex struct {
	index      *C.FaissIndex
	dimensions int
	model      string
	payloads   []models.Chunk
	mu         sync.RWMutex
}

// faissLastError returns the last FAISS error message.
func faissLastError() string {
	cErr := C.faiss_get_last_error()
	if cErr == nil {
		return "unknown error"
	}
	return C.GoString(cErr)
}

func newFAISSIndex(dimensions int, model string, vectors []float32, payloads []models.Chunk) (*FAISSIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	var flat *C.FaissIndexFlatL2
	if ret := C.faiss_IndexFlatL2_new_with(&flat, C.idx_t(dimensions)); ret != 0 {
		return nil, fmt.Errorf("failed to create FAISS index: %s", faissLastError())
	}
	idx := (*C.FaissIndex)(unsafe.Pointer(flat))
	if n := len(payloads); n > 0 {
		ret := C.faiss_Index_add(idx, C.idx_t(n), (*C.float)(unsafe.Pointer(&vectors[0])))
		if ret != 0 {
			C.faiss_Index_free(idx)
			return nil, fmt.Errorf("failed to add vectors to FAISS index: %s", faissLastError())
		}
	}
	return &FAISSIndex{index: idx, dimensions: dimensions, model: model, payloads: payloads}, nil
}

func loadFAISSIndex(path string, dimensions int, model string, payloads []models.Chunk) (*FAISSIndex, error) {
	cPath := C.CString(path)
	defer C.free(unsafe.Pointer(cPath))

	var idx *C.FaissIndex
	if ret := C.faiss_read_index_fname(cPath, 0, &idx); ret != 0 {
		return nil, fmt.Errorf("failed to read FAISS index: %s", faissLastError())
	}
	if d := int(C.faiss_Index_d(idx)); d != dimensions {
		C.faiss_Index_free(idx)
		return nil, fmt.Errorf("FAISS index has %d dimensions, manifest says %d", d, dimensions)
	}
	if n := int(C.faiss_Index_ntotal(idx)); n != len(payloads) {
		C.faiss_Index_free(idx)
		return nil, fmt.Errorf("FAISS index has %d vectors, payload table has %d", n, len(payloads))
	}
	return &FAISSIndex{index: idx, dimensions: dimensions, model: model, payloads: payloads}, nil
}

// Search asks FAISS for the k nearest and re-sorts by (distance, position) so ties are stable.
// FAISS breaks ties at the k boundary on its own terms, so which of several equidistant
// entries makes the cut may differ from the flat index.
func (f *FAISSIndex) Search(ctx context.Context, query []float32, k int) (models.RetrievalResult, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.index == nil {
		return nil, ErrIndexClosed
	}
	if err := checkQuery(query, k, f.dimensions); err != nil {
		return nil, err
	}
	ntotal := int(C.faiss_Index_ntotal(f.index))
	if k > ntotal {
		k = ntotal
	}
	if k == 0 {
		return models.RetrievalResult{}, nil
	}

	distances := make([]float32, k)
	labels := make([]int64, k)
	ret := C.faiss_Index_search(
		f.index,
		1,
		(*C.float)(unsafe.Pointer(&query[0])),
		C.idx_t(k),
		(*C.float)(unsafe.Pointer(&distances[0])),
		(*C.idx_t)(unsafe.Pointer(&labels[0])),
	)
	if ret != 0 {
		return nil, fmt.Errorf("FAISS search failed: %s", faissLastError())
	}

	result := make(models.RetrievalResult, 0, k)
	for i := 0; i < k; i++ {
		pos := int(labels[i])
		if pos < 0 || pos >= len(f.payloads) {
			continue
		}
		// IndexFlatL2 reports squared distances.
		d := math.Sqrt(math.Max(0, float64(distances[i])))
		result = append(result, hit(f.payloads[pos], pos, d))
	}
	sort.SliceStable(result, func(i, j int) bool {
		if result[i].Distance != result[j].Distance {
			return result[i].Distance < result[j].Distance
		}
		return result[i].Position < result[j].Position
	})
	for i := range result {
		result[i].Rank = i + 1
	}
	return result, nil
}

// Save writes the FAISS index file and payloads through the shared atomic directory writer.
func (f *FAISSIndex) Save(dir string) error {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.index == nil {
		return ErrIndexClosed
	}
	m := newManifest(IndexTypeFAISS, f.dimensions, f.model, len(f.payloads))
	return writeIndexDir(dir, m, f.payloads, func(tmp string) error {
		cPath := C.CString(blobPath(tmp, IndexTypeFAISS))
		defer C.free(unsafe.Pointer(cPath))
		if ret := C.faiss_write_index_fname(f.index, cPath); ret != 0 {
			return fmt.Errorf("failed to save FAISS index: %s", faissLastError())
		}
		return nil
	})
}

// Size returns the number of entries.
func (f *FAISSIndex) Size() int { return len(f.payloads) }

// Dimensions returns the vector length.
func (f *FAISSIndex) Dimensions() int { return f.dimensions }

// Model returns the embedding model identifier.
func (f *FAISSIndex) Model() string { return f.model }

// Type returns IndexTypeFAISS.
func (f *FAISSIndex) Type() IndexType { return IndexTypeFAISS }

// Close frees the FAISS index resources.
func (f *FAISSIndex) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.index != nil {
		C.faiss_Index_free(f.index)
		f.index = nil
	}
	return nil
}
