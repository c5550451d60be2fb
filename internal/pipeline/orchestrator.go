package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dgallion1/medrag/internal/metrics"
)

// ErrNoItems is returned when a batch has nothing to ingest.
var ErrNoItems = errors.New("batch has no items")

// Config sizes the worker pool.
type Config struct {
	WorkerCount        int
	MaxQueueSize       int
	MaxConcurrentFetch int
	JobTTL             time.Duration
}

// Orchestrator manages the batch ingestion pipeline.
type Orchestrator struct {
	jobs     *JobStore
	queue    chan *Job
	source   LabelSource
	ingester Ingester
	metrics  *metrics.Collector
	log      *slog.Logger
	cfg      Config

	mu      sync.Mutex
	stopped bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	newWorker func() *Worker
}

// NewOrchestrator creates the pipeline. Call Start to launch workers.
func NewOrchestrator(cfg Config, source LabelSource, ingester Ingester, m *metrics.Collector, log *slog.Logger) *Orchestrator {
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 4
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 100
	}
	if cfg.MaxConcurrentFetch <= 0 {
		cfg.MaxConcurrentFetch = 4
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = time.Hour
	}
	o := &Orchestrator{
		jobs:     NewJobStore(cfg.JobTTL),
		queue:    make(chan *Job, cfg.MaxQueueSize),
		source:   source,
		ingester: ingester,
		metrics:  m,
		log:      log,
		cfg:      cfg,
	}
	o.newWorker = func() *Worker {
		return NewWorker(o.source, o.ingester, o.log, o.cfg.MaxConcurrentFetch)
	}
	return o
}

// Start launches worker goroutines.
func (o *Orchestrator) Start(ctx context.Context) {
	workerCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	for range o.cfg.WorkerCount {
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			w := o.newWorker()
			for {
				select {
				case <-workerCtx.Done():
					return
				case job, ok := <-o.queue:
					if !ok {
						return
					}
					o.metrics.JobStarted()
					w.Process(workerCtx, job)
					o.metrics.JobFinished()
				}
			}
		}()
	}

	// Start job store cleanup.
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-workerCtx.Done():
				return
			case <-ticker.C:
				o.jobs.Cleanup()
			}
		}
	}()
}

// Stop gracefully shuts down the pipeline.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	if o.stopped {
		o.mu.Unlock()
		return
	}
	o.stopped = true
	close(o.queue)
	o.mu.Unlock()

	if o.cancel != nil {
		o.cancel()
	}
	o.wg.Wait()
}

// SubmitDrugs queues a job that looks up each drug name.
func (o *Orchestrator) SubmitDrugs(names []string) (*Job, error) {
	seen := map[string]bool{}
	var items []Item
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		items = append(items, Item{DrugName: n})
	}
	return o.submit(items)
}

// SubmitFiles queues a job that loads each file. Files with identical
// content are loaded once.
func (o *Orchestrator) SubmitFiles(files []File) (*Job, error) {
	seen := map[string]bool{}
	var items []Item
	for i := range files {
		h := ContentHashHex(files[i].Data)
		if seen[h] {
			o.log.Info("duplicate file in batch, skipping", "filename", files[i].Name)
			continue
		}
		seen[h] = true
		items = append(items, Item{File: &files[i]})
	}
	return o.submit(items)
}

func (o *Orchestrator) submit(items []Item) (*Job, error) {
	if len(items) == 0 {
		return nil, ErrNoItems
	}
	job := NewJob(uuid.NewString(), items)
	if err := o.Submit(job); err != nil {
		return job, err
	}
	o.log.Info("batch job queued", "job_id", job.ID, "items", len(items))
	return job, nil
}

// Submit queues a new job for processing.
func (o *Orchestrator) Submit(job *Job) error {
	o.jobs.Put(job)

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.stopped {
		job.SetStatus(StatusFailed, "shutdown")
		return errors.New("pipeline is stopped")
	}
	select {
	case o.queue <- job:
		return nil
	default:
		job.SetStatus(StatusFailed, "queue_full")
		return fmt.Errorf("job queue is full (%d)", o.cfg.MaxQueueSize)
	}
}

// GetJob returns a job by ID.
func (o *Orchestrator) GetJob(id string) *Job {
	return o.jobs.Get(id)
}

// QueueDepth returns current queue depth.
func (o *Orchestrator) QueueDepth() int {
	return len(o.queue)
}
