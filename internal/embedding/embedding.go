package embedding

import (
	"context"
	"fmt"
	"net/http"

	"github.com/dgallion1/medrag/internal/label"
	"github.com/dgallion1/medrag/internal/retry"
)

// Embedder turns text into a vector. The same embedder must be used for
// indexing and querying.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	ModelName() string
}

// statusError maps a non-200 response to an error wrapping
// label.ErrUpstreamUnavailable. 429 and 5xx are retryable.
func statusError(backend string, status int, body []byte) error {
	if status == http.StatusTooManyRequests || status >= 500 {
		return fmt.Errorf("%s: %w: %w", backend, label.ErrUpstreamUnavailable, &retry.RetryableError{
			StatusCode: status,
			Message:    string(body),
		})
	}
	return fmt.Errorf("%s error (status %d): %w: %s", backend, status, label.ErrUpstreamUnavailable, retry.Truncate(string(body), 200))
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, f := range v {
		out[i] = float32(f)
	}
	return out
}
