// Package models defines core data structures for documents, chunks, index entries, and retrieval results.
package models

import "maps"

// Metadata keys set by the loader.
const (
	MetaSource     = "source"
	MetaFile       = "file"
	MetaPage       = "page"
	MetaTotalPages = "total_pages"
	MetaSheet      = "sheet"
	MetaSlide      = "slide"
)

// Document is one loaded unit of text: a whole file, or one page/sheet/slide of a paginated format.
// Documents are not modified after the loader returns them.
type Document struct {
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata"`
}

// Chunk is a length-bounded segment of a Document. It carries a copy of the source Document's
// metadata, unchanged.
type Chunk struct {
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata"`
}

// NewChunk returns a chunk of doc with the given content and its own copy of doc's metadata.
func NewChunk(doc Document, content string) Chunk {
	return Chunk{Content: content, Metadata: CloneMetadata(doc.Metadata)}
}

// CloneMetadata returns a copy of m. A nil map yields an empty, non-nil map.
func CloneMetadata(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return maps.Clone(m)
}

// IndexEntry pairs an embedding vector with the chunk it was computed from.
type IndexEntry struct {
	Vector  []float32
	Payload Chunk
}
