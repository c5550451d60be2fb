package pipeline

import (
	"crypto/sha256"
	"fmt"
	"sync"
	"time"
)

// JobStatus represents the state of a batch ingestion job.
type JobStatus string

const (
	StatusQueued    JobStatus = "queued"
	StatusFetching  JobStatus = "fetching"
	StatusIndexing  JobStatus = "indexing"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
	StatusPartial   JobStatus = "partial"
)

// Done reports whether the status is terminal.
func (s JobStatus) Done() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusPartial
}

// File is an uploaded label document or openFDA bulk file.
type File struct {
	Name string
	Data []byte
}

// Item is one unit of work: a drug name to look up or a file to load.
type Item struct {
	DrugName string
	File     *File
}

// Name identifies the item in logs and errors.
func (it Item) Name() string {
	if it.File != nil {
		return it.File.Name
	}
	return it.DrugName
}

// Job tracks the state of a batch ingestion.
type Job struct {
	mu sync.Mutex

	ID     string    `json:"job_id"`
	Status JobStatus `json:"status"`
	Phase  string    `json:"phase"`

	Progress Progress `json:"progress"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Internal: not serialized.
	items  []Item
	errors []string
}

// Progress tracks processing progress.
type Progress struct {
	TotalItems     int      `json:"total_items"`
	ItemsProcessed int      `json:"items_processed"`
	LabelsIngested int      `json:"labels_ingested"`
	ChunksIndexed  int      `json:"chunks_indexed"`
	Errors         []string `json:"errors"`
}

// NewJob creates a queued job for items.
func NewJob(id string, items []Item) *Job {
	now := time.Now()
	return &Job{
		ID:        id,
		Status:    StatusQueued,
		Phase:     "queued",
		Progress:  Progress{TotalItems: len(items)},
		CreatedAt: now,
		UpdatedAt: now,
		items:     items,
	}
}

// JobStore is a thread-safe in-memory job registry with TTL eviction.
type JobStore struct {
	mu   sync.Mutex
	jobs map[string]*Job
	ttl  time.Duration
}

func NewJobStore(ttl time.Duration) *JobStore {
	return &JobStore{
		jobs: make(map[string]*Job),
		ttl:  ttl,
	}
}

func (s *JobStore) Put(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
}

func (s *JobStore) Get(id string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id]
}

// Cleanup removes expired jobs.
func (s *JobStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, job := range s.jobs {
		if now.Sub(job.updatedAt()) > s.ttl {
			delete(s.jobs, id)
		}
	}
}

func (j *Job) updatedAt() time.Time {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.UpdatedAt
}

// SetStatus updates job status atomically.
func (j *Job) SetStatus(status JobStatus, phase string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
	j.Phase = phase
	j.UpdatedAt = time.Now()
}

// AddError records an error.
func (j *Job) AddError(err string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.errors = append(j.errors, err)
	j.Progress.Errors = j.errors
	j.UpdatedAt = time.Now()
}

// IncrItemsProcessed atomically increments items processed.
func (j *Job) IncrItemsProcessed() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.ItemsProcessed++
	j.UpdatedAt = time.Now()
}

// AddIngested records one ingested label and its chunk count.
func (j *Job) AddIngested(chunks int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.LabelsIngested++
	j.Progress.ChunksIndexed += chunks
	j.UpdatedAt = time.Now()
}

// Items returns the work items.
func (j *Job) Items() []Item {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.items
}

// releaseItems drops file payloads once they have been loaded.
func (j *Job) releaseItems() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.items = nil
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID        string    `json:"job_id"`
	Status    JobStatus `json:"status"`
	Phase     string    `json:"phase"`
	Progress  Progress  `json:"progress"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	errs := make([]string, len(j.Progress.Errors))
	copy(errs, j.Progress.Errors)
	return JobSnapshot{
		ID:     j.ID,
		Status: j.Status,
		Phase:  j.Phase,
		Progress: Progress{
			TotalItems:     j.Progress.TotalItems,
			ItemsProcessed: j.Progress.ItemsProcessed,
			LabelsIngested: j.Progress.LabelsIngested,
			ChunksIndexed:  j.Progress.ChunksIndexed,
			Errors:         errs,
		},
		CreatedAt: j.CreatedAt,
		UpdatedAt: j.UpdatedAt,
	}
}

// ContentHashHex computes SHA-256 of content and returns hex string.
func ContentHashHex(data []byte) string {
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:])
}
