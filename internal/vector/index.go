package vector

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/ppiankov/verisum/internal/model"
)

const (
	// DefaultChunkSize bounds how many texts go into one embedding call
	DefaultChunkSize = 50
	// DefaultK is the default number of search results
	DefaultK = 5
	// DefaultMinScore is the default similarity threshold
	DefaultMinScore = 0.6
)

// Embedder converts texts to fixed-length vectors, one per input
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// ProgressFunc is called after each embedded chunk with a 1-based chunk index
type ProgressFunc func(chunk, total int)

// Vectorized is an entry with its embedding and precomputed magnitude
type Vectorized struct {
	model.Entry
	Vector    []float32 `json:"vector"`
	Magnitude float64   `json:"magnitude"`
}

// Match is a search hit
type Match struct {
	Entry Vectorized
	Score float64 // Cosine similarity remapped to [0,1]
}

// Index is an append-only in-memory vector store.
// It is not safe for concurrent writers; callers serialize rebuilds against searches.
type Index struct {
	embedder  Embedder
	chunkSize int
	entries   []Vectorized
	dim       int
}

// NewIndex creates an empty index
func NewIndex(embedder Embedder, chunkSize int) *Index {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Index{
		embedder:  embedder,
		chunkSize: chunkSize,
	}
}

// AddEntries embeds entries in chunks and appends them in input order.
// Nothing is appended unless every chunk succeeds.
func (ix *Index) AddEntries(ctx context.Context, entries []model.Entry, onProgress ProgressFunc) ([]Vectorized, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("add entries: empty entry list: %w", model.ErrInvalidInput)
	}

	total := (len(entries) + ix.chunkSize - 1) / ix.chunkSize
	added := make([]Vectorized, 0, len(entries))
	dim := ix.dim

	for chunk := 0; chunk < total; chunk++ {
		start := chunk * ix.chunkSize
		end := start + ix.chunkSize
		if end > len(entries) {
			end = len(entries)
		}
		batch := entries[start:end]

		texts := make([]string, len(batch))
		for i, e := range batch {
			texts[i] = e.Text
		}

		vectors, err := ix.embedder.Embed(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("embed chunk %d/%d: %w", chunk+1, total, err)
		}
		if len(vectors) != len(batch) {
			return nil, fmt.Errorf("embed chunk %d/%d: got %d vectors for %d texts: %w",
				chunk+1, total, len(vectors), len(batch), model.ErrModelUnavailable)
		}

		for i, vec := range vectors {
			if dim == 0 {
				dim = len(vec)
			}
			if len(vec) != dim {
				return nil, fmt.Errorf("embed chunk %d/%d: vector dimension %d, index uses %d: %w",
					chunk+1, total, len(vec), dim, model.ErrInvalidInput)
			}
			added = append(added, Vectorized{
				Entry:     batch[i],
				Vector:    vec,
				Magnitude: Magnitude(vec),
			})
		}

		if onProgress != nil {
			onProgress(chunk+1, total)
		}
	}

	ix.entries = append(ix.entries, added...)
	ix.dim = dim
	return added, nil
}

// Search returns up to k entries scoring above minScore, best first.
// Equal scores keep insertion order.
func (ix *Index) Search(ctx context.Context, query string, k int, minScore float64) ([]Match, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("search: empty query: %w", model.ErrInvalidInput)
	}
	if len(ix.entries) == 0 {
		return nil, fmt.Errorf("search: %w", model.ErrNotInitialized)
	}
	if k <= 0 {
		k = DefaultK
	}

	vectors, err := ix.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embed query: got %d vectors: %w", len(vectors), model.ErrModelUnavailable)
	}
	q := vectors[0]
	qMag := Magnitude(q)
	if qMag == 0 {
		return []Match{}, nil
	}

	matches := make([]Match, 0, len(ix.entries))
	for _, e := range ix.entries {
		if e.Magnitude == 0 || len(e.Vector) != len(q) {
			continue
		}
		cos := Dot(e.Vector, q) / (e.Magnitude * qMag)
		score := (cos + 1) / 2
		if math.IsNaN(score) || math.IsInf(score, 0) {
			continue
		}
		matches = append(matches, Match{Entry: e, Score: score})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})

	results := make([]Match, 0, k)
	for _, m := range matches {
		if m.Score <= minScore {
			// Sorted descending, nothing further can pass
			break
		}
		results = append(results, m)
		if len(results) == k {
			break
		}
	}

	return results, nil
}

// Clear drops all entries
func (ix *Index) Clear() {
	ix.entries = nil
	ix.dim = 0
}

// Len returns the number of indexed entries
func (ix *Index) Len() int {
	return len(ix.entries)
}

// Entries returns a copy of the indexed entries in insertion order
func (ix *Index) Entries() []Vectorized {
	out := make([]Vectorized, len(ix.entries))
	copy(out, ix.entries)
	return out
}

// Restore replaces the index contents with a previously built snapshot
// without calling the embedder.
func (ix *Index) Restore(entries []Vectorized) {
	ix.entries = make([]Vectorized, len(entries))
	copy(ix.entries, entries)
	ix.dim = 0
	if len(entries) > 0 {
		ix.dim = len(entries[0].Vector)
	}
}

// Magnitude returns the Euclidean norm of v
func Magnitude(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// Dot returns the dot product of two equal-length vectors
func Dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
