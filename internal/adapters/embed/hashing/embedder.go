package hashing

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"github.com/bnema/openclaw-memory/internal/ports"
)

const DefaultDimensions = 256

// Embedder projects word unigrams and bigrams into a fixed number of buckets
// with signed feature hashing. It needs no network or model files, and equal
// texts always map to equal unit vectors.
type Embedder struct {
	dims int
}

var _ ports.Embedder = (*Embedder)(nil)

func NewEmbedder(dims int) *Embedder {
	if dims <= 0 {
		dims = DefaultDimensions
	}

	return &Embedder{dims: dims}
}

func (e *Embedder) Model() string {
	return fmt.Sprintf("local-hash-%d", e.dims)
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = e.vector(text)
	}

	return vectors, nil
}

func (e *Embedder) vector(text string) []float32 {
	vec := make([]float64, e.dims)
	words := tokenize(text)
	for i, word := range words {
		e.add(vec, word, 1)
		if i > 0 {
			e.add(vec, words[i-1]+" "+word, 0.5)
		}
	}

	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	out := make([]float32, e.dims)
	if norm == 0 {
		return out
	}
	norm = math.Sqrt(norm)
	for i, v := range vec {
		out[i] = float32(v / norm)
	}

	return out
}

func (e *Embedder) add(vec []float64, feature string, weight float64) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(feature))
	sum := h.Sum64()

	bucket := int(sum % uint64(e.dims))
	if sum>>63 == 1 {
		weight = -weight
	}
	vec[bucket] += weight
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}
