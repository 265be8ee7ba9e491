package embedding

import (
	"context"
	"fmt"
	"math"
)

// Provider turns text into vectors
type Provider interface {
	// Name returns the provider identifier
	Name() string

	// Embed returns one unit-length vector per input text, in input order
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// EmbedBatched embeds texts in groups of at most batchSize
func EmbedBatched(ctx context.Context, p Provider, texts []string, batchSize int) ([][]float32, error) {
	if batchSize <= 0 {
		batchSize = len(texts)
	}

	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += batchSize {
		end := min(start+batchSize, len(texts))

		batch, err := p.Embed(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("embedding batch %d-%d: %w", start, end, err)
		}
		if len(batch) != end-start {
			return nil, fmt.Errorf("%s returned %d vectors for %d texts", p.Name(), len(batch), end-start)
		}
		vectors = append(vectors, batch...)
	}
	return vectors, nil
}

// Normalize scales a vector to unit length so that cosine similarity reduces
// to a dot product
func Normalize(vec []float32) []float32 {
	var magnitude float64
	for _, v := range vec {
		magnitude += float64(v) * float64(v)
	}
	magnitude = math.Sqrt(magnitude)

	if magnitude == 0 {
		return vec
	}

	normalized := make([]float32, len(vec))
	for i, v := range vec {
		normalized[i] = float32(float64(v) / magnitude)
	}
	return normalized
}
