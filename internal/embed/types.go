// Package embed defines the abstract embedding-provider contract and the
// content-addressed caching/batching pipeline in front of it, plus the
// concrete providers (HTTP clients to a local model server, and a
// deterministic static fallback) that implement it.
package embed

import (
	"context"
	"math"
	"time"
)

const, via golang.org/x/sync/semaphore in pipeline.go.
	MaxInFlightBatches = 4

	DefaultWarmTimeout = 120 * time.Second
	DefaultColdTimeout = 180 * time.Second

	ModelUnloadThreshold = 5 * time.Minute
	DefaultMaxRetries    = 3
)

// Embedder is the abstract embedding provider contract. A concrete
// implementation wraps a specific model/backend; this package never talks
// to one directly.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	Dimensions() int
	ModelName() string
	Available(ctx context.Context) bool
	Close() error
}

// normalizeVector L2-normalizes v in place and returns it, matching the
// normalization applied before every embedding is stored or compared
// (cosine similarity assumes unit vectors).
func normalizeVector(v []float32) []float32 {
	var sumSquares float64
	for _, x := range v {
		sumSquares += float64(x) * float64(x)
	}
	if sumSquares == 0 {
		return v
	}
	inv := float32(1.0 / math.Sqrt(sumSquares))
	for i := range v {
		v[i] *= inv
	}
	return v
}
