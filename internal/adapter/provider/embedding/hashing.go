package embedding

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"

	"github.com/heartmarshall/recordreview-backend/internal/domain"
)

// HashingEmbedder is a deterministic, dependency-free embedder. It hashes word
// tokens and character trigrams of the normalized text into a fixed number of
// signed buckets and L2-normalizes the result, so texts sharing words or
// spelling fragments land close under cosine distance.
type HashingEmbedder struct {
	dims int
}

// NewHashingEmbedder creates a HashingEmbedder producing dims-length vectors.
func NewHashingEmbedder(dims int) *HashingEmbedder {
	return &HashingEmbedder{dims: dims}
}

// Embed returns the vector for text. Text that normalizes to nothing is a
// validation error.
func (h *HashingEmbedder) Embed(_ context.Context, text string) (domain.Embedding, error) {
	norm := domain.NormalizeText(text)
	if norm == "" {
		return nil, fmt.Errorf("embedding: %w", domain.NewValidationError("text", "required"))
	}

	vec := make([]float64, h.dims)
	for _, word := range strings.Fields(norm) {
		h.add(vec, "w:"+word, 1.0)

		padded := []rune(" " + word + " ")
		for i := 0; i+3 <= len(padded); i++ {
			h.add(vec, "t:"+string(padded[i:i+3]), 0.5)
		}
	}

	var sum float64
	for _, v := range vec {
		sum += v * v
	}
	out := make(domain.Embedding, h.dims)
	if sum == 0 {
		return out, nil
	}
	n := math.Sqrt(sum)
	for i, v := range vec {
		out[i] = float32(v / n)
	}
	return out, nil
}

// add accumulates weight into the bucket of feature. The top hash bit picks
// the sign so collisions tend to cancel rather than pile up.
func (h *HashingEmbedder) add(vec []float64, feature string, weight float64) {
	f := fnv.New64a()
	_, _ = f.Write([]byte(feature))
	sum := f.Sum64()

	idx := int(sum % uint64(h.dims))
	if sum>>63 == 1 {
		weight = -weight
	}
	vec[idx] += weight
}
