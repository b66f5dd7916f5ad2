package models

// ScoredChunk is a single retrieval hit.
type ScoredChunk struct {
	Chunk    Chunk   `json:"chunk"`
	Distance float64 `json:"distance"` // Euclidean distance to the query vector; smaller is closer
	Position int     `json:"position"` // insertion position in the index
	Rank     int     `json:"rank"`     // 1-based
}

// RetrievalResult holds hits ordered by ascending distance, ties by insertion position.
type RetrievalResult []ScoredChunk

// Chunks returns the chunks of r in rank order.
func (r RetrievalResult) Chunks() []Chunk {
	out := make([]Chunk, len(r))
	for i, h := range r {
		out[i] = h.Chunk
	}
	return out
}

// RetrieveResponse is the response for a retrieve request.
type RetrieveResponse struct {
	Query     string          `json:"query"`
	K         int             `json:"k"`
	Results   RetrievalResult `json:"results"`
	Total     int             `json:"total"`
	QueryTime int64           `json:"query_time_ms"`
}

// PromptResponse is the response for a prompt request.
type PromptResponse struct {
	Query  string `json:"query"`
	Prompt string `json:"prompt"`
	Hits   int    `json:"hits"`
}
