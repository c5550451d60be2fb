package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/dgallion1/medrag/internal/config"
	"github.com/dgallion1/medrag/internal/extract"
	"github.com/dgallion1/medrag/internal/llm"
	"github.com/dgallion1/medrag/internal/metrics"
	"github.com/dgallion1/medrag/internal/pipeline"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Core is the single-request surface served by the API.
type Core interface {
	IngestDrug(ctx context.Context, drugName string) (int, error)
	Ask(ctx context.Context, question string) (string, error)
	GenerateSchedule(ctx context.Context, drugName, dosageText string) extract.ReminderSchedule
	IndexCount(ctx context.Context) (int, error)
	ResetIndex(ctx context.Context) (int, error)
}

// Batcher queues background ingestion jobs.
type Batcher interface {
	SubmitDrugs(names []string) (*pipeline.Job, error)
	SubmitFiles(files []pipeline.File) (*pipeline.Job, error)
	GetJob(id string) *pipeline.Job
	QueueDepth() int
}

// StatsProvider reports generator latency.
type StatsProvider interface {
	Stats() llm.StatsSnapshot
}

// Server is the HTTP API server for medrag.
type Server struct {
	router  chi.Router
	core    Core
	batch   Batcher
	stats   StatsProvider
	metrics *metrics.Collector
	log     *slog.Logger
	cfg     config.Config
}

// NewServer creates and configures the HTTP server. batch, stats and m may
// be nil; their endpoints then report 503 or 404.
func NewServer(core Core, batch Batcher, stats StatsProvider, m *metrics.Collector, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		core:    core,
		batch:   batch,
		stats:   stats,
		metrics: m,
		log:     log,
		cfg:     cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))
	r.Use(Metrics(s.metrics))

	// Public endpoints.
	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	// Authenticated endpoints.
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(AuthMiddleware(s.cfg.APIKey, s.log))

		r.Post("/ingest/batch", s.handleBatchIngest)
		r.Get("/ingest/{jobID}/status", s.handleIngestStatus)
		r.Post("/ingest/{drugName}", s.handleIngest)

		r.Post("/chat", s.handleChat)
		r.Post("/reminders/generate", s.handleGenerateReminders)

		r.Get("/stats/llm", s.handleLLMStats)
		r.Get("/index/stats", s.handleIndexStats)
		r.Delete("/index", s.handleResetIndex)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
