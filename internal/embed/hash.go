package embed

import (
	"context"
	"hash/fnv"
	"strings"
	"unicode"
)

const defaultHashDimensions = 256

// HashEmbedder is an offline bag-of-words embedder using signed feature hashing.
// Identical texts get identical vectors; texts sharing words point the same way.
type HashEmbedder struct {
	dimensions int
}

// NewHashEmbedder creates a hash embedder
func NewHashEmbedder(dimensions int) *HashEmbedder {
	if dimensions <= 0 {
		dimensions = defaultHashDimensions
	}
	return &HashEmbedder{dimensions: dimensions}
}

// Name returns the provider name
func (e *HashEmbedder) Name() string {
	return "hash"
}

// Embed implements Provider
func (e *HashEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vec := make([]float32, e.dimensions)
		for _, word := range tokenize(text) {
			h := fnv.New64a()
			_, _ = h.Write([]byte(word))
			sum := h.Sum64()
			slot := int(sum % uint64(e.dimensions))
			if sum&(1<<63) != 0 {
				vec[slot]--
			} else {
				vec[slot]++
			}
		}
		vectors[i] = vec
	}
	return vectors, nil
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}
