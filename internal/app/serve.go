package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/dgallion1/medrag/internal/api"
)

// Serve runs the batch pipeline and the HTTP API until ctx is cancelled,
// then drains both.
func (a *App) Serve(ctx context.Context, log *slog.Logger) error {
	if n, err := a.Service.IndexCount(ctx); err != nil {
		log.Warn("index count failed", "error", err)
	} else {
		log.Info("index opened", "collection", a.Index.Collection(), "entries", n)
	}

	a.Orchestrator.Start(ctx)
	defer a.Orchestrator.Stop()

	srv := api.NewServer(a.Service, a.Orchestrator, a.Generator, a.Metrics, log, a.Config)
	httpServer := &http.Server{
		Addr:         ":" + a.Config.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting medrag", "port", a.Config.Port, "llm_model", a.Generator.Model())
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down...")
	a.Orchestrator.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
