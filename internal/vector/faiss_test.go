//go:build faiss && cgo
// +build faiss,cgo

package vector

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestFAISSIndex_Search(t *testing.T) {
	idx, err := Build("faiss", 3, "m", sampleEntries())
	if err != nil {
		t.Fatal(err)
	}
	defer idx.Close()

	got, err := idx.Search(context.Background(), []float32{1, 0, 0}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 results, got %d", len(got))
	}
	if got[0].Chunk.Content != "alpha" || got[0].Rank != 1 {
		t.Errorf("top result = %+v, want alpha", got[0])
	}
	if got[0].Distance > 1e-6 {
		t.Errorf("exact match distance=%v", got[0].Distance)
	}
}

func TestFAISSIndex_MatchesFlat(t *testing.T) {
	flat, err := Build("flat", 3, "m", sampleEntries())
	if err != nil {
		t.Fatal(err)
	}
	defer flat.Close()
	fi, err := Build("faiss", 3, "m", sampleEntries())
	if err != nil {
		t.Fatal(err)
	}
	defer fi.Close()

	q := []float32{0.2, 0.9, 0.1}
	want, _ := flat.Search(context.Background(), q, 4)
	got, err := fi.Search(context.Background(), q, 4)
	if err != nil {
		t.Fatal(err)
	}
	for i := range want {
		if got[i].Position != want[i].Position {
			t.Errorf("result %d: faiss position %d, flat position %d", i, got[i].Position, want[i].Position)
		}
	}
}

func TestFAISSIndex_Empty(t *testing.T) {
	idx, err := Build("faiss", 3, "m", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer idx.Close()
	got, err := idx.Search(context.Background(), []float32{1, 0, 0}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("expected empty results, got %d", len(got))
	}
}

func TestFAISSIndex_SaveLoad(t *testing.T) {
	idx, err := Build("faiss", 3, "m", sampleEntries())
	if err != nil {
		t.Fatal(err)
	}
	defer idx.Close()

	dir := filepath.Join(t.TempDir(), "index")
	if err := idx.Save(dir); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dir, faissFile)); err != nil {
		t.Fatalf("faiss file not written: %v", err)
	}
	loaded, err := Load(dir, Expectation{Dimensions: 3, Model: "m"})
	if err != nil {
		t.Fatal(err)
	}
	defer loaded.Close()
	if loaded.Type() != IndexTypeFAISS || loaded.Size() != 4 {
		t.Errorf("loaded = %+v", StatsOf(loaded))
	}
	got, err := loaded.Search(context.Background(), []float32{0, 1, 0}, 1)
	if err != nil {
		t.Fatal(err)
	}
	if got[0].Chunk.Content != "beta" {
		t.Errorf("top result = %q, want beta", got[0].Chunk.Content)
	}
}
