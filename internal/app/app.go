// Package app builds the medrag object graph from configuration. Every
// entry point (HTTP server, CLI, MCP) shares it.
package app

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgallion1/medrag/internal/answer"
	"github.com/dgallion1/medrag/internal/chunker"
	"github.com/dgallion1/medrag/internal/config"
	"github.com/dgallion1/medrag/internal/core"
	"github.com/dgallion1/medrag/internal/embedding"
	"github.com/dgallion1/medrag/internal/extract"
	"github.com/dgallion1/medrag/internal/index"
	"github.com/dgallion1/medrag/internal/llm"
	"github.com/dgallion1/medrag/internal/metrics"
	"github.com/dgallion1/medrag/internal/openfda"
	"github.com/dgallion1/medrag/internal/pipeline"
)

// App holds the wired components.
type App struct {
	Config       config.Config
	Service      *core.Service
	Index        *index.Index
	Generator    *llm.Resilient
	Orchestrator *pipeline.Orchestrator
	Metrics      *metrics.Collector

	closers []func() error
}

// New wires every component described by cfg. The caller owns the
// orchestrator lifecycle and must call Close.
func New(cfg config.Config, log *slog.Logger) (*App, error) {
	a := &App{Config: cfg, Metrics: metrics.New()}

	source := openfda.NewClient(openfda.Config{
		BaseURL:       cfg.OpenFDAURL,
		APIKey:        cfg.OpenFDAAPIKey,
		RatePerMinute: cfg.OpenFDARatePerMin,
	}, log.With("component", "openfda"))
	a.closers = append(a.closers, func() error { source.Close(); return nil })

	embedder, err := newEmbedder(cfg)
	if err != nil {
		a.Close()
		return nil, err
	}

	store, err := index.OpenSQLite(cfg.DataDir)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("open index: %w", err)
	}
	a.closers = append(a.closers, store.Close)

	a.Index = index.New(store, embedder, index.Config{
		Collection:        cfg.Collection,
		TopK:              cfg.TopK,
		Concurrency:       cfg.EmbedConcurrency,
		EmbedTimeout:      cfg.EmbedTimeout,
		ReplaceOnReingest: cfg.ReplaceOnReingest,
	}, log.With("component", "index"))

	gen, closeGen, err := newGenerator(cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.closers = append(a.closers, closeGen)
	a.Generator = llm.NewResilient(gen, cfg.LLMTimeout, log.With("component", "llm"))

	a.Service = core.New(core.Deps{
		Source: source,
		Index:  a.Index,
		Answerer: answer.New(a.Index, a.Generator, answer.Config{
			TopK:     cfg.TopK,
			MinScore: cfg.MinScore,
		}, log.With("component", "answer")),
		Schedule: extract.New(a.Generator, log.With("component", "extract")),
		Chunking: chunker.Config{ChunkSize: cfg.ChunkSize, ChunkOverlap: cfg.ChunkOverlap},
		Metrics:  a.Metrics,
		Log:      log,
	})

	a.Orchestrator = pipeline.NewOrchestrator(pipeline.Config{
		WorkerCount:  cfg.WorkerCount,
		MaxQueueSize: cfg.MaxQueueSize,
		JobTTL:       cfg.JobTTL,
	}, source, a.Service, a.Metrics, log.With("component", "pipeline"))

	return a, nil
}

// Close releases clients and the index database.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}

func newEmbedder(cfg config.Config) (embedding.Embedder, error) {
	switch cfg.EmbedBackend {
	case config.BackendOpenAI:
		e, err := embedding.NewOpenAI(embedding.OpenAIConfig{
			APIKey:  cfg.OpenAIAPIKey,
			BaseURL: cfg.EmbedURL,
			Model:   cfg.EmbedModel,
			Timeout: cfg.EmbedTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("embedder: %w", err)
		}
		return e, nil
	case config.BackendOllama, "":
		url := cfg.EmbedURL
		if url == "" {
			url = cfg.OllamaURL
		}
		return embedding.NewOllama(embedding.OllamaConfig{
			BaseURL: url,
			Model:   cfg.EmbedModel,
			Timeout: cfg.EmbedTimeout,
		}), nil
	}
	return nil, fmt.Errorf("unknown embedding backend %q", cfg.EmbedBackend)
}

func newGenerator(cfg config.Config) (llm.Generator, func() error, error) {
	switch cfg.LLMBackend {
	case config.BackendAnthropic:
		g, err := llm.NewAnthropic(llm.AnthropicConfig{
			APIKey:  cfg.AnthropicAPIKey,
			Model:   cfg.AnthropicModel,
			Timeout: cfg.LLMTimeout,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("generator: %w", err)
		}
		return g, func() error { g.Close(); return nil }, nil
	case config.BackendOllama, "":
		g := llm.NewOllama(llm.OllamaConfig{
			BaseURL: cfg.OllamaURL,
			Model:   cfg.LLMModel,
			Timeout: cfg.LLMTimeout,
		})
		return g, func() error { g.Close(); return nil }, nil
	}
	return nil, nil, fmt.Errorf("unknown llm backend %q", cfg.LLMBackend)
}
