package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/tehqua/Vitalis/internal/memory"
	"github.com/tehqua/Vitalis/internal/requestctx"
	"github.com/tehqua/Vitalis/internal/workflow"
)

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": code, "message": message})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	components := map[string]string{"engine": "ok"}
	if s.sessions == nil {
		components["session_store"] = "disabled"
	} else {
		components["session_store"] = "ok"
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":     "ok",
		"uptime":     time.Since(s.startTime).String(),
		"components": components,
	})
}

func (s *Server) handleTurn(w http.ResponseWriter, r *http.Request) {
	var req workflow.TurnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid JSON: "+err.Error())
		return
	}
	if req.PatientID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "patient_id is required")
		return
	}

	ctx := requestctx.SetPatientID(r.Context(), req.PatientID)
	if req.SessionID != "" {
		ctx = requestctx.SetSessionID(ctx, req.SessionID)
	}

	res, err := s.engine.Process(ctx, &req)
	if err != nil {
		log.Error().Err(err).Str("patient_id", req.PatientID).Msg("turn_processing_error")
		if res == nil {
			writeError(w, http.StatusInternalServerError, "internal", err.Error())
			return
		}
		// The response is final even when persistence failed.
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleSessionList(w http.ResponseWriter, r *http.Request) {
	if s.sessions == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "session store disabled")
		return
	}
	sessions, err := s.sessions.ListSessions(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("session_list_error")
		writeError(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"sessions": sessions,
		"count":    len(sessions),
	})
}

func (s *Server) handleSessionMessages(w http.ResponseWriter, r *http.Request) {
	if s.sessions == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "session store disabled")
		return
	}
	sessionID := chi.URLParam(r, "id")
	msgs, err := s.sessions.Messages(r.Context(), sessionID)
	if err != nil {
		log.Error().Err(err).Str("session_id", sessionID).Msg("session_read_error")
		writeError(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"session_id": sessionID,
		"messages":   msgs,
		"count":      len(msgs),
	})
}

func (s *Server) handleSessionClear(w http.ResponseWriter, r *http.Request) {
	if s.sessions == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "session store disabled")
		return
	}
	sessionID := chi.URLParam(r, "id")
	if err := s.sessions.Clear(r.Context(), sessionID); err != nil {
		if errors.Is(err, memory.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "session not found")
			return
		}
		log.Error().Err(err).Str("session_id", sessionID).Msg("session_clear_error")
		writeError(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"session_id": sessionID, "status": "cleared"})
}
