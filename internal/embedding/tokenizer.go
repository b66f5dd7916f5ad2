package embedding

import (
	"fmt"
	"hash/fnv"
	"strings"
	"unicode"

	"github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/pretrained"
)

const defaultMaxTokens = 256

// Tokenizer produces fixed-length BERT inputs (input_ids, attention_mask, token_type_ids).
type Tokenizer interface {
	Tokenize(text string, maxTokens int) (inputIDs, attentionMask, tokenTypeIDs []int64, err error)
}

// WordPieceTokenizer encodes text with a model's own tokenizer.json (vocabulary, normaliser and
// [CLS]/[SEP] post-processing).
type WordPieceTokenizer struct {
	tk *tokenizer.Tokenizer
}

// NewWordPieceTokenizer loads a Hugging Face tokenizer.json.
func NewWordPieceTokenizer(path string) (*WordPieceTokenizer, error) {
	tk, err := pretrained.FromFile(path)
	if err != nil {
		return nil, fmt.Errorf("load tokenizer %s: %w", path, err)
	}
	return &WordPieceTokenizer{tk: tk}, nil
}

// Tokenize encodes text with special tokens, truncates to maxTokens keeping the final [SEP], and
// zero-pads to exactly maxTokens.
func (w *WordPieceTokenizer) Tokenize(text string, maxTokens int) (inputIDs, attentionMask, tokenTypeIDs []int64, err error) {
	if maxTokens < 2 {
		return nil, nil, nil, fmt.Errorf("max tokens must be >= 2, got %d", maxTokens)
	}
	enc, err := w.tk.EncodeSingle(text, true)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("tokenize: %w", err)
	}
	ids, types := enc.Ids, enc.TypeIds
	if n := len(ids); n > maxTokens {
		ids = append(append([]int(nil), ids[:maxTokens-1]...), ids[n-1])
		types = append(append([]int(nil), types[:maxTokens-1]...), types[n-1])
	}

	inputIDs = make([]int64, maxTokens)
	attentionMask = make([]int64, maxTokens)
	tokenTypeIDs = make([]int64, maxTokens)
	for i, id := range ids {
		inputIDs[i] = int64(id)
		attentionMask[i] = 1
		if i < len(types) {
			tokenTypeIDs[i] = int64(types[i])
		}
	}
	return inputIDs, attentionMask, tokenTypeIDs, nil
}

// Words returns the lower-cased runs of letters and digits in text.
func Words(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// HashWord returns the 32-bit FNV-1a hash of word.
func HashWord(word string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(word))
	return h.Sum32()
}
