package api

import (
	"errors"
	"net/http"

	"github.com/dgallion1/medrag/internal/core"
)

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	answer, err := s.core.Ask(r.Context(), req.Question)
	switch {
	case errors.Is(err, core.ErrEmptyQuestion):
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	case err != nil:
		s.log.Error("answer failed", "error", err)
		jsonError(w, "answering backend unavailable", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"answer": answer})
}

// handleGenerateReminders always answers 200 for a valid request; an
// unparseable dosage text yields the fallback schedule.
func (s *Server) handleGenerateReminders(w http.ResponseWriter, r *http.Request) {
	var req reminderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, s.core.GenerateSchedule(r.Context(), req.DrugName, req.DosageText))
}
