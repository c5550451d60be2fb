// Package core is the operation surface shared by every entry point:
// ingest a drug label, ask a grounded question, generate a schedule.
package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dgallion1/medrag/internal/answer"
	"github.com/dgallion1/medrag/internal/chunker"
	"github.com/dgallion1/medrag/internal/extract"
	"github.com/dgallion1/medrag/internal/label"
	"github.com/dgallion1/medrag/internal/metrics"
	"github.com/dgallion1/medrag/internal/retry"
)

// ErrEmptyQuestion is returned by Ask for a blank question.
var ErrEmptyQuestion = errors.New("question is required")

// Ingest outcomes as recorded in metrics.
const (
	OutcomeSuccess     = "success"
	OutcomeNotFound    = "not_found"
	OutcomeEmpty       = "empty"
	OutcomeUnavailable = "unavailable"
)

// LabelSource looks up the label of a named drug.
type LabelSource interface {
	Search(ctx context.Context, drugName string, limit int) (*label.DrugLabel, error)
}

// Indexer stores chunks for retrieval.
type Indexer interface {
	Add(ctx context.Context, chunks []chunker.IndexedChunk) (int, error)
	Count(ctx context.Context) (int, error)
	Reset(ctx context.Context) (int, error)
}

// Answerer answers a question from indexed content.
type Answerer interface {
	Answer(ctx context.Context, question string) (string, error)
}

// Scheduler extracts reminder schedules.
type Scheduler interface {
	ExtractWithOutcome(ctx context.Context, drugName, dosageText string) (extract.ReminderSchedule, extract.Outcome)
}

// Deps are the collaborators of a Service.
type Deps struct {
	Source   LabelSource
	Index    Indexer
	Answerer Answerer
	Schedule Scheduler
	Chunking chunker.Config
	Metrics  *metrics.Collector
	Log      *slog.Logger
}

// Service owns the ingestion, answering and extraction pipelines.
type Service struct {
	source   LabelSource
	index    Indexer
	answerer Answerer
	schedule Scheduler
	chunking chunker.Config
	metrics  *metrics.Collector
	log      *slog.Logger

	backoff func(int) time.Duration
}

// New creates a service. Every collaborator is required except Metrics.
func New(d Deps) *Service {
	if d.Chunking.ChunkSize <= 0 {
		d.Chunking = chunker.DefaultConfig()
	}
	return &Service{
		source:   d.Source,
		index:    d.Index,
		answerer: d.Answerer,
		schedule: d.Schedule,
		chunking: d.Chunking,
		metrics:  d.Metrics,
		log:      d.Log,
		backoff:  retry.Backoff,
	}
}

// Ingest fetches the label for drugName and indexes it. It returns false
// with a nil error when no label exists or it has no indexable sections,
// and false with an error wrapping label.ErrUpstreamUnavailable when the
// source or embedding backend failed. Nothing is stored on failure.
func (s *Service) Ingest(ctx context.Context, drugName string) (bool, error) {
	n, err := s.IngestDrug(ctx, drugName)
	if errors.Is(err, label.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// IngestDrug is Ingest reporting the number of chunks stored. A missing
// label is reported as label.ErrNotFound.
func (s *Service) IngestDrug(ctx context.Context, drugName string) (int, error) {
	start := time.Now()
	drugName = strings.TrimSpace(drugName)
	log := s.log.With("drug_name", drugName)

	var l *label.DrugLabel
	err := retry.Do(ctx, retry.Policy{
		Backoff: s.backoff,
		OnRetry: func(attempt int, err error) {
			log.Warn("openfda search failed, retrying", "attempt", attempt+1, "error", err)
		},
	}, func(ctx context.Context) error {
		var err error
		l, err = s.source.Search(ctx, drugName, 1)
		return err
	})
	switch {
	case errors.Is(err, label.ErrNotFound):
		log.Warn("drug label not found")
		s.metrics.ObserveIngest(OutcomeNotFound, 0, time.Since(start))
		return 0, fmt.Errorf("%s: %w", drugName, label.ErrNotFound)
	case err != nil:
		log.Error("drug label fetch failed", "error", err)
		s.metrics.ObserveIngest(OutcomeUnavailable, 0, time.Since(start))
		return 0, fmt.Errorf("ingest %s: %w", drugName, err)
	}

	n, err := s.indexLabel(ctx, l)
	switch {
	case err != nil:
		s.metrics.ObserveIngest(OutcomeUnavailable, 0, time.Since(start))
		return 0, fmt.Errorf("ingest %s: %w", drugName, err)
	case n == 0:
		s.metrics.ObserveIngest(OutcomeEmpty, 0, time.Since(start))
		return 0, nil
	}
	s.metrics.ObserveIngest(OutcomeSuccess, n, time.Since(start))
	log.Info("drug ingested", "chunks", n, "source", l.Source)
	return n, nil
}

// IngestLabel chunks and indexes an already loaded label and returns the
// number of chunks stored.
func (s *Service) IngestLabel(ctx context.Context, l *label.DrugLabel) (int, error) {
	start := time.Now()
	n, err := s.indexLabel(ctx, l)
	switch {
	case err != nil:
		s.metrics.ObserveIngest(OutcomeUnavailable, 0, time.Since(start))
		return 0, err
	case n == 0:
		s.metrics.ObserveIngest(OutcomeEmpty, 0, time.Since(start))
	default:
		s.metrics.ObserveIngest(OutcomeSuccess, n, time.Since(start))
		s.log.Info("label ingested", "drug_name", l.DisplayName(), "chunks", n, "source", l.Source)
	}
	return n, nil
}

func (s *Service) indexLabel(ctx context.Context, l *label.DrugLabel) (int, error) {
	if l == nil {
		return 0, errors.New("nil label")
	}
	chunks := chunker.Split(l, s.chunking)
	if len(chunks) == 0 {
		s.log.Warn("label has no indexable sections", "drug_name", l.DisplayName(), "source", l.Source)
		return 0, nil
	}
	n, err := s.index.Add(ctx, chunks)
	if err != nil {
		s.log.Error("indexing failed", "drug_name", l.DisplayName(), "chunks", len(chunks), "error", err)
		return 0, fmt.Errorf("index %s: %w", l.DisplayName(), err)
	}
	return n, nil
}

// Ask answers question from the indexed labels only. An unanswerable
// question yields answer.Refusal, not an error.
func (s *Service) Ask(ctx context.Context, question string) (string, error) {
	start := time.Now()
	if strings.TrimSpace(question) == "" {
		return "", ErrEmptyQuestion
	}
	out, err := s.answerer.Answer(ctx, question)
	if err != nil {
		s.log.Error("answer failed", "error", err)
		s.metrics.ObserveQuestion("error", time.Since(start))
		return "", err
	}
	outcome := "answered"
	if out == answer.Refusal {
		outcome = "refused"
	}
	s.metrics.ObserveQuestion(outcome, time.Since(start))
	return out, nil
}

// GenerateSchedule extracts a reminder schedule. It never fails; see
// extract.Fallback.
func (s *Service) GenerateSchedule(ctx context.Context, drugName, dosageText string) extract.ReminderSchedule {
	start := time.Now()
	sched, outcome := s.schedule.ExtractWithOutcome(ctx, drugName, dosageText)
	s.metrics.ObserveSchedule(string(outcome), time.Since(start))
	return sched
}

// IndexCount returns the number of indexed chunks.
func (s *Service) IndexCount(ctx context.Context) (int, error) {
	n, err := s.index.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count index: %w", err)
	}
	s.metrics.SetIndexEntries(n)
	return n, nil
}

// ResetIndex deletes every indexed chunk and returns how many were removed.
func (s *Service) ResetIndex(ctx context.Context) (int, error) {
	n, err := s.index.Reset(ctx)
	if err != nil {
		return 0, fmt.Errorf("reset index: %w", err)
	}
	s.metrics.SetIndexEntries(0)
	return n, nil
}
