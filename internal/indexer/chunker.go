// Package indexer splits documents into chunks and builds the vector index from a directory.
package indexer

import (
	"errors"
	"fmt"
	"unicode"

	"github.com/hyperjump/shiori/internal/models"
)

// ErrInvalidChunking is returned for chunk size/overlap combinations that cannot make progress.
var ErrInvalidChunking = errors.New("invalid chunking parameters")

// separatorTiers are tried in order; within a tier the cut goes after the last occurrence of any member.
var separatorTiers = [][][]rune{
	{[]rune("\n\n")},
	{[]rune("\n")},
	{[]rune(". "), []rune("! "), []rune("? ")},
	{[]rune(" ")},
}

// Chunker splits text into overlapping chunks of at most chunkSize characters (code points).
type Chunker struct {
	chunkSize    int
	chunkOverlap int
}

// NewChunker creates a chunker. chunkSize must be positive and 0 <= chunkOverlap < chunkSize.
func NewChunker(chunkSize, chunkOverlap int) (*Chunker, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("%w: chunk_size must be > 0, got %d", ErrInvalidChunking, chunkSize)
	}
	if chunkOverlap < 0 {
		return nil, fmt.Errorf("%w: chunk_overlap must be >= 0, got %d", ErrInvalidChunking, chunkOverlap)
	}
	if chunkOverlap >= chunkSize {
		return nil, fmt.Errorf("%w: chunk_overlap (%d) must be less than chunk_size (%d)",
			ErrInvalidChunking, chunkOverlap, chunkSize)
	}
	return &Chunker{chunkSize: chunkSize, chunkOverlap: chunkOverlap}, nil
}

// Size returns the maximum chunk length in characters.
func (c *Chunker) Size() int { return c.chunkSize }

// Overlap returns the number of characters carried from one chunk into the next.
func (c *Chunker) Overlap() int { return c.chunkOverlap }

// Split cuts text into chunks. Each chunk after the first starts with the last
// min(overlap, len(previous)) characters of the previous chunk, followed by new text cut at the
// best separator that fits. Whitespace is kept as-is so Reassemble reproduces text exactly.
func (c *Chunker) Split(text string) []string {
	r := []rune(text)
	if len(r) == 0 {
		return nil
	}
	if len(r) <= c.chunkSize {
		return []string{text}
	}

	var chunks []string
	var prefix []rune
	for pos := 0; pos < len(r); {
		window := c.chunkSize - len(prefix)
		seg := r[pos:]
		if len(seg) > window {
			seg = seg[:cutPoint(seg[:window], separatorTiers)]
		}
		chunk := make([]rune, 0, len(prefix)+len(seg))
		chunk = append(chunk, prefix...)
		chunk = append(chunk, seg...)
		chunks = append(chunks, string(chunk))
		pos += len(seg)

		keep := min(c.chunkOverlap, len(chunk))
		prefix = chunk[len(chunk)-keep:]
	}
	return chunks
}

// cutPoint returns how many runes of window to take: just past the last separator of the first
// tier that occurs in window, or all of window when no separator occurs.
func cutPoint(window []rune, tiers [][][]rune) int {
	if len(tiers) == 0 {
		return len(window)
	}
	best := -1
	for _, sep := range tiers[0] {
		if i := lastIndex(window, sep); i >= 0 && i+len(sep) > best {
			best = i + len(sep)
		}
	}
	if best > 0 {
		return best
	}
	return cutPoint(window, tiers[1:])
}

func lastIndex(s, sep []rune) int {
	for i := len(s) - len(sep); i >= 0; i-- {
		match := true
		for j := range sep {
			if s[i+j] != sep[j] {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}

// ChunkDocuments splits every document and gives each chunk a copy of its document's metadata.
func (c *Chunker) ChunkDocuments(docs []models.Document) []models.Chunk {
	var chunks []models.Chunk
	for _, doc := range docs {
		for _, piece := range c.Split(doc.Content) {
			chunks = append(chunks, models.NewChunk(doc, piece))
		}
	}
	return chunks
}

// Reassemble joins chunks produced by Split with the same overlap, dropping each carried prefix.
func Reassemble(chunks []string, overlap int) string {
	var out []rune
	var prevLen int
	for i, ch := range chunks {
		r := []rune(ch)
		if i > 0 {
			r = r[min(overlap, prevLen):]
		}
		out = append(out, r...)
		prevLen = len([]rune(ch))
	}
	return string(out)
}

// IsBlank reports whether s has no non-whitespace characters.
func IsBlank(s string) bool {
	for _, r := range s {
		if !unicode.IsSpace(r) {
			return false
		}
	}
	return true
}
