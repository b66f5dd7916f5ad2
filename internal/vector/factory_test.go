package vector

import (
	"errors"
	"testing"

	"github.com/hyperjump/shiori/internal/models"
)

func TestBuild_Types(t *testing.T) {
	for _, typ := range []string{"flat", ""} {
		idx, err := Build(typ, 3, "m", nil)
		if err != nil {
			t.Fatalf("Build(%q): %v", typ, err)
		}
		if idx.Type() != IndexTypeFlat {
			t.Errorf("Build(%q).Type()=%s, want flat", typ, idx.Type())
		}
		_ = idx.Close()
	}
}

func TestBuild_Unknown(t *testing.T) {
	if _, err := Build("hnsw", 3, "m", nil); err == nil {
		t.Error("expected error for unknown index type")
	}
}

func TestBuild_InvalidDimension(t *testing.T) {
	if _, err := Build("flat", 0, "m", nil); err == nil {
		t.Error("expected error for zero dimension")
	}
}

func TestBuild_EntryDimensionMismatch(t *testing.T) {
	entries := []models.IndexEntry{
		{Vector: []float32{1, 0, 0}},
		{Vector: []float32{1, 0}},
	}
	_, err := Build("flat", 3, "m", entries)
	var dm *DimensionMismatchError
	if !errors.As(err, &dm) {
		t.Fatalf("expected DimensionMismatchError, got %v", err)
	}
	if dm.Got != 2 || dm.Want != 3 {
		t.Errorf("mismatch = %+v", dm)
	}
}

func TestIsFAISSAvailable(t *testing.T) {
	available := IsFAISSAvailable()
	t.Logf("FAISS available: %v", available)
	if !available {
		if _, err := Build("faiss", 3, "m", nil); err == nil {
			t.Error("expected error building faiss index without FAISS support")
		}
	}
}
