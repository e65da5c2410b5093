package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/BTreeMap/Lumi/internal/models"
	"github.com/BTreeMap/Lumi/internal/responses"
	"github.com/BTreeMap/Lumi/internal/store"
)

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]string{"service": "lumi"}))
}

// chatbotHandler answers POST /chatbot with the bare Reply object.
func (s *Server) chatbotHandler(w http.ResponseWriter, r *http.Request) {
	var req models.ChatbotRequest
	if err := decodeJSON(w, r, &req); err != nil {
		slog.Warn("Server.chatbotHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := req.Validate(); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	reply, err := s.router.Converse(r.Context(), req.Message, strings.TrimSpace(req.SenderID))
	if err != nil {
		slog.Error("Server.chatbotHandler: failed to record history", "senderID", req.SenderID, "error", err)
	}
	writeJSONResponse(w, http.StatusOK, reply)
}

func (s *Server) disableSupportHandler(w http.ResponseWriter, r *http.Request) {
	var req models.DisableSupportRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	senderID := strings.TrimSpace(req.SenderID)
	if senderID == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error(models.ErrEmptySenderID.Error()))
		return
	}

	// Same lock as the router so an in-flight message cannot overwrite the flag.
	unlock := s.locks.Lock(senderID)
	err := s.sessions.SetWantsSupport(r.Context(), senderID, false)
	unlock()
	if errors.Is(err, store.ErrNotFound) {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Session not found"))
		return
	}
	if err != nil {
		slog.Error("Server.disableSupportHandler: failed to update session", "senderID", senderID, "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to update session"))
		return
	}
	slog.Info("Server.disableSupportHandler: follow-ups disabled", "senderID", senderID)
	writeJSONResponse(w, http.StatusOK, models.RecordedWithMessage("Support follow-ups disabled"))
}

func (s *Server) getSessionHandler(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.GetSession(r.Context(), r.PathValue("id"))
	if err != nil {
		slog.Error("Server.getSessionHandler: failed to load session", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load session"))
		return
	}
	if sess == nil {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Session not found"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(sess))
}

// listSessionsHandler serves GET /sessions?low_scale=N, the sessions whose last
// reported scale is below N.
func (s *Server) listSessionsHandler(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("low_scale")
	threshold, err := strconv.Atoi(raw)
	if err != nil || threshold < 1 || threshold > 11 {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("low_scale must be an integer between 1 and 11"))
		return
	}
	sessions, err := s.sessions.ListLowScaleSessions(r.Context(), threshold)
	if err != nil {
		slog.Error("Server.listSessionsHandler: query failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to list sessions"))
		return
	}
	if sessions == nil {
		sessions = []*models.Session{}
	}
	writeJSONResponse(w, http.StatusOK, models.Success(sessions))
}

func (s *Server) historyHandler(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryPage
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeJSONResponse(w, http.StatusBadRequest, models.Error("limit must be a positive integer"))
			return
		}
		limit = min(n, store.DefaultHistoryLimit)
	}
	entries, err := s.history.ListMessages(r.Context(), r.PathValue("id"), limit)
	if err != nil {
		slog.Error("Server.historyHandler: query failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load history"))
		return
	}
	if entries == nil {
		entries = []models.HistoryEntry{}
	}
	writeJSONResponse(w, http.StatusOK, models.Success(entries))
}

func (s *Server) listPatternsHandler(w http.ResponseWriter, r *http.Request) {
	patterns, err := s.patterns.List(r.Context())
	if err != nil {
		slog.Error("Server.listPatternsHandler: query failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to list responses"))
		return
	}
	if patterns == nil {
		patterns = []models.ResponsePattern{}
	}
	writeJSONResponse(w, http.StatusOK, models.Success(patterns))
}

func (s *Server) createPatternHandler(w http.ResponseWriter, r *http.Request) {
	var p models.ResponsePattern
	if err := decodeJSON(w, r, &p); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	created, err := s.patterns.Create(r.Context(), p)
	if err != nil {
		writePatternError(w, "Server.createPatternHandler", err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, models.Success(created))
}

func (s *Server) importPatternsHandler(w http.ResponseWriter, r *http.Request) {
	var patterns []models.ResponsePattern
	if err := decodeJSON(w, r, &patterns); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	n, err := s.patterns.Import(r.Context(), patterns)
	if err != nil {
		writePatternError(w, "Server.importPatternsHandler", err)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]int{"imported": n}))
}

func (s *Server) updatePatternHandler(w http.ResponseWriter, r *http.Request) {
	var upd responses.PatternUpdate
	if err := decodeJSON(w, r, &upd); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	updated, err := s.patterns.Update(r.Context(), r.PathValue("id"), upd)
	if err != nil {
		writePatternError(w, "Server.updatePatternHandler", err)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(updated))
}

func (s *Server) deletePatternHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.patterns.Delete(r.Context(), r.PathValue("id")); err != nil {
		writePatternError(w, "Server.deletePatternHandler", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writePatternError(w http.ResponseWriter, where string, err error) {
	switch {
	case errors.Is(err, models.ErrEmptyPatterns), errors.Is(err, models.ErrEmptyResponses):
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
	case errors.Is(err, store.ErrNotFound):
		writeJSONResponse(w, http.StatusNotFound, models.Error("Response pattern not found"))
	default:
		slog.Error(where+": pattern operation failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to update responses"))
	}
}

// runFollowUpsHandler triggers one follow-up sweep outside the cron schedule.
func (s *Server) runFollowUpsHandler(w http.ResponseWriter, r *http.Request) {
	if s.sweep == nil {
		writeJSONResponse(w, http.StatusServiceUnavailable, models.Error("Follow-ups are not configured"))
		return
	}
	result, err := s.sweep.Run(r.Context())
	if err != nil {
		slog.Error("Server.runFollowUpsHandler: sweep failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Follow-up sweep failed"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(result))
}
