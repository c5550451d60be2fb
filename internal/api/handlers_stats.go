package api

import (
	"net/http"
)

func (s *Server) handleLLMStats(w http.ResponseWriter, r *http.Request) {
	if s.stats == nil {
		jsonError(w, "llm stats unavailable", http.StatusServiceUnavailable)
		return
	}
	queue := 0
	if s.batch != nil {
		queue = s.batch.QueueDepth()
	}
	snap := s.stats.Stats()
	writeJSON(w, http.StatusOK, map[string]any{
		"model":       snap.Model,
		"stats":       snap,
		"queue_depth": queue,
	})
}

func (s *Server) handleIndexStats(w http.ResponseWriter, r *http.Request) {
	n, err := s.core.IndexCount(r.Context())
	if err != nil {
		s.log.Error("index count failed", "error", err)
		jsonError(w, "index unavailable", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"collection": s.cfg.Collection,
		"entries":    n,
	})
}

func (s *Server) handleResetIndex(w http.ResponseWriter, r *http.Request) {
	n, err := s.core.ResetIndex(r.Context())
	if err != nil {
		s.log.Error("index reset failed", "error", err)
		jsonError(w, "index unavailable", http.StatusServiceUnavailable)
		return
	}
	s.log.Warn("index reset", "removed", n)
	writeJSON(w, http.StatusOK, map[string]any{"removed": n})
}
