//go:build !faiss || !cgo
// +build !faiss !cgo

package vector

import (
	"errors"
	"fmt"

	"github.com/hyperjump/shiori/internal/models"
)

var errNoFAISS = errors.New("FAISS not available: build with -tags=faiss and install FAISS library")

// FAISSIndex is a placeholder when FAISS support is not compiled in.
type FAISSIndex struct {
	*FlatIndex
}

func newFAISSIndex(int, string, []float32, []models.Chunk) (*FAISSIndex, error) {
	return nil, errNoFAISS
}

func loadFAISSIndex(string, int, string, []models.Chunk) (*FAISSIndex, error) {
	return nil, fmt.Errorf("read FAISS index: %w", errNoFAISS)
}
