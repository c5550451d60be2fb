package label

import "errors"

var (
	// ErrNotFound indicates the label source has no record for a drug.
	ErrNotFound = errors.New("drug label not found")

	// ErrUpstreamUnavailable indicates the label source, the embedding
	// backend or the generative backend could not serve a request.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
)
