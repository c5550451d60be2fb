package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgallion1/medrag/internal/label"
	"github.com/dgallion1/medrag/internal/retry"
)

// LabelSource looks up the label of a named drug.
type LabelSource interface {
	Search(ctx context.Context, drugName string, limit int) (*label.DrugLabel, error)
}

// Ingester indexes a loaded label and returns the chunks stored.
type Ingester interface {
	IngestLabel(ctx context.Context, l *label.DrugLabel) (int, error)
}

// Worker processes a single batch job.
type Worker struct {
	source   LabelSource
	ingester Ingester
	log      *slog.Logger

	maxConcurrentFetch int
	backoff            func(int) time.Duration
}

func NewWorker(source LabelSource, ingester Ingester, log *slog.Logger, maxFetch int) *Worker {
	if maxFetch <= 0 {
		maxFetch = 1
	}
	return &Worker{
		source:             source,
		ingester:           ingester,
		log:                log,
		maxConcurrentFetch: maxFetch,
		backoff:            retry.Backoff,
	}
}

type fetchResult struct {
	item   Item
	labels []*label.DrugLabel
	err    error
}

// Process fetches every item of the job, then indexes the labels found.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID)
	items := job.Items()

	// Phase 1: Fetch labels with bounded concurrency.
	job.SetStatus(StatusFetching, "fetching")
	results := make(chan fetchResult, len(items))
	sem := make(chan struct{}, w.maxConcurrentFetch)
	for _, it := range items {
		sem <- struct{}{}
		go func(it Item) {
			defer func() { <-sem }()
			labels, err := w.fetch(ctx, it)
			results <- fetchResult{item: it, labels: labels, err: err}
		}(it)
	}

	var labels []*label.DrugLabel
	hadErrors := false
	for range items {
		r := <-results
		job.IncrItemsProcessed()
		if r.err != nil {
			log.Error("fetch failed", "item", r.item.Name(), "error", r.err)
			job.AddError(fmt.Sprintf("%s: %s", r.item.Name(), r.err))
			hadErrors = true
			continue
		}
		labels = append(labels, r.labels...)
	}
	job.releaseItems()
	log.Info("fetch complete", "labels", len(labels), "errors", hadErrors)

	if len(labels) == 0 {
		if !hadErrors {
			job.AddError("no labels found")
		}
		job.SetStatus(StatusFailed, "fetching")
		return
	}

	// Phase 2: Index labels. Index.Add already embeds concurrently.
	job.SetStatus(StatusIndexing, "indexing")
	ingested := 0
	for _, l := range labels {
		if ctx.Err() != nil {
			job.AddError(fmt.Sprintf("%s: %s", l.DisplayName(), ctx.Err()))
			hadErrors = true
			break
		}
		n, err := w.ingester.IngestLabel(ctx, l)
		switch {
		case err != nil:
			log.Error("index failed", "drug_name", l.DisplayName(), "error", err)
			job.AddError(fmt.Sprintf("%s: %s", l.DisplayName(), err))
			hadErrors = true
		case n == 0:
			job.AddError(fmt.Sprintf("%s: no indexable sections", l.DisplayName()))
			hadErrors = true
		default:
			ingested++
			job.AddIngested(n)
		}
	}
	log.Info("indexing complete", "ingested", ingested, "total", len(labels))

	switch {
	case hadErrors && ingested > 0:
		job.SetStatus(StatusPartial, "done")
	case ingested == 0:
		job.SetStatus(StatusFailed, "indexing")
	default:
		job.SetStatus(StatusCompleted, "done")
	}
}

// fetch resolves one item into labels. Drug lookups back off and retry on
// transient upstream errors.
func (w *Worker) fetch(ctx context.Context, it Item) ([]*label.DrugLabel, error) {
	if it.File != nil {
		labels, err := LoadLabels(it.File.Name, it.File.Data)
		if err != nil {
			return nil, err
		}
		w.log.Info("file loaded", "filename", it.File.Name, "labels", len(labels),
			"content_hash", ContentHashHex(it.File.Data))
		return labels, nil
	}

	var l *label.DrugLabel
	err := retry.Do(ctx, retry.Policy{
		Backoff: w.backoff,
		OnRetry: func(attempt int, err error) {
			w.log.Warn("retryable fetch error", "drug_name", it.DrugName, "attempt", attempt, "error", err)
		},
	}, func(ctx context.Context) error {
		var err error
		l, err = w.source.Search(ctx, it.DrugName, 1)
		return err
	})
	if errors.Is(err, label.ErrNotFound) {
		return nil, errors.New("no label found")
	}
	if err != nil {
		return nil, err
	}
	return []*label.DrugLabel{l}, nil
}
