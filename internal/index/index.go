package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/dgallion1/medrag/internal/chunker"
	"github.com/dgallion1/medrag/internal/embedding"
	"github.com/dgallion1/medrag/internal/label"
	"github.com/dgallion1/medrag/internal/retry"
)

// DefaultCollection is the collection used when none is configured.
const DefaultCollection = "drug_labels"

// Config controls the index.
type Config struct {
	Collection   string
	TopK         int           // Default number of hits per query
	Concurrency  int           // Concurrent embedding calls during Add
	EmbedTimeout time.Duration // Per-call embedding timeout

	// ReplaceOnReingest removes a drug's existing entries when the drug is
	// added again. Off by default: re-ingesting appends.
	ReplaceOnReingest bool
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Collection:   DefaultCollection,
		TopK:         3,
		Concurrency:  4,
		EmbedTimeout: 30 * time.Second,
	}
}

// Hit is one query result.
type Hit struct {
	ID       string           `json:"id"`
	Text     string           `json:"text"`
	Metadata chunker.Metadata `json:"metadata"`
	Score    float64          `json:"score"`
}

// Index embeds chunks and answers similarity queries over a Store.
type Index struct {
	store    Store
	embedder embedding.Embedder
	cfg      Config
	log      *slog.Logger

	retryBackoff func(int) time.Duration
}

// New creates an index. Zero config values fall back to defaults.
func New(store Store, embedder embedding.Embedder, cfg Config, log *slog.Logger) *Index {
	def := DefaultConfig()
	if cfg.Collection == "" {
		cfg.Collection = def.Collection
	}
	if cfg.TopK <= 0 {
		cfg.TopK = def.TopK
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = def.Concurrency
	}
	if cfg.EmbedTimeout <= 0 {
		cfg.EmbedTimeout = def.EmbedTimeout
	}
	return &Index{
		store:        store,
		embedder:     embedder,
		cfg:          cfg,
		log:          log.With("collection", cfg.Collection),
		retryBackoff: retry.Backoff,
	}
}

// Collection returns the collection name.
func (ix *Index) Collection() string {
	return ix.cfg.Collection
}

// Add embeds and stores chunks. If any embedding fails nothing is stored
// and the error wraps label.ErrUpstreamUnavailable.
func (ix *Index) Add(ctx context.Context, chunks []chunker.IndexedChunk) (int, error) {
	if len(chunks) == 0 {
		return 0, nil
	}

	vectors := make([][]float32, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ix.cfg.Concurrency)
	for i, c := range chunks {
		g.Go(func() error {
			vec, err := ix.embed(gctx, c.Text)
			if err != nil {
				return fmt.Errorf("embed chunk %d (%s): %w", i, c.Metadata.Section, err)
			}
			vectors[i] = vec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		ix.log.Error("embedding failed, nothing stored", "chunks", len(chunks), "error", err)
		return 0, err
	}

	now := time.Now()
	model := ix.embedder.ModelName()
	entries := make([]Entry, len(chunks))
	var drugs []string
	seen := map[string]bool{}
	for i, c := range chunks {
		entries[i] = Entry{
			ID:        uuid.NewString(),
			Text:      c.Text,
			Metadata:  c.Metadata,
			Vector:    vectors[i],
			Model:     model,
			CreatedAt: now,
		}
		if !seen[c.Metadata.DrugName] {
			seen[c.Metadata.DrugName] = true
			drugs = append(drugs, c.Metadata.DrugName)
		}
	}

	var replace []string
	if ix.cfg.ReplaceOnReingest {
		replace = drugs
	}
	if err := ix.store.Insert(ctx, ix.cfg.Collection, entries, replace); err != nil {
		return 0, fmt.Errorf("store entries: %w", err)
	}
	ix.log.Info("indexed chunks", "chunks", len(entries), "drugs", drugs)
	return len(entries), nil
}

// Query returns the k entries most similar to text, best first. k <= 0
// uses the configured default.
func (ix *Index) Query(ctx context.Context, text string, k int) ([]Hit, error) {
	if k <= 0 {
		k = ix.cfg.TopK
	}
	vec, err := ix.embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	var hits []Hit
	err = ix.store.Each(ctx, ix.cfg.Collection, func(e Entry) error {
		if len(e.Vector) != len(vec) {
			return nil
		}
		hits = append(hits, Hit{
			ID:       e.ID,
			Text:     e.Text,
			Metadata: e.Metadata,
			Score:    cosine(vec, e.Vector),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan entries: %w", err)
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Count returns the number of stored entries.
func (ix *Index) Count(ctx context.Context) (int, error) {
	return ix.store.Count(ctx, ix.cfg.Collection)
}

// Reset deletes every entry of the collection.
func (ix *Index) Reset(ctx context.Context) (int, error) {
	n, err := ix.store.Reset(ctx, ix.cfg.Collection)
	if err != nil {
		return 0, err
	}
	ix.log.Warn("index reset", "deleted", n)
	return n, nil
}

// embed calls the embedder under the per-call timeout, retrying transient
// failures. Every failure is reported as the backend being unavailable.
func (ix *Index) embed(ctx context.Context, text string) ([]float32, error) {
	var vec []float32
	err := retry.Do(ctx, retry.Policy{
		Backoff: ix.retryBackoff,
		OnRetry: func(attempt int, err error) {
			ix.log.Warn("retryable embedding error", "attempt", attempt, "error", err)
		},
	}, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, ix.cfg.EmbedTimeout)
		defer cancel()
		v, err := ix.embedder.Embed(callCtx, text)
		if err != nil {
			return err
		}
		vec = v
		return nil
	})
	if err != nil {
		if !errors.Is(err, label.ErrUpstreamUnavailable) {
			err = fmt.Errorf("%w: %w", label.ErrUpstreamUnavailable, err)
		}
		return nil, err
	}
	if len(vec) == 0 {
		return nil, fmt.Errorf("%w: empty embedding", label.ErrUpstreamUnavailable)
	}
	return vec, nil
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
