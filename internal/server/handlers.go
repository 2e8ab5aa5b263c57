package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"pageforge/internal/orchestrator"
	"pageforge/internal/publish"
	"pageforge/internal/session"
	"pageforge/internal/stream"
)

func (s *Server) runRequest(r *http.Request) (orchestrator.Request, bool) {
	q := r.URL.Query()
	query := strings.TrimSpace(q.Get("query"))
	if query == "" {
		return orchestrator.Request{}, false
	}
	sessionID := strings.TrimSpace(q.Get("session"))
	if sessionID == "" {
		sessionID = strings.TrimSpace(q.Get("slug"))
	}
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	return orchestrator.Request{
		Query:         query,
		SessionID:     sessionID,
		Preset:        strings.TrimSpace(q.Get("preset")),
		ClientContext: session.ParseClientContext(q.Get("ctx")),
	}, true
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	req, ok := s.runRequest(r)
	if !ok {
		http.Error(w, "query is required", http.StatusBadRequest)
		return
	}

	st := stream.New()
	go s.runner.Run(r.Context(), req, st)

	if err := stream.ServeSSE(w, r, st, stream.DefaultHeartbeat, s.log); err != nil {
		s.log.Debug("stream ended early", zap.Error(err))
	}
}

type persistResponse struct {
	Success bool              `json:"success"`
	Path    string            `json:"path,omitempty"`
	URLs    map[string]string `json:"urls,omitempty"`
	Error   string            `json:"error,omitempty"`
}

func (s *Server) handlePersist(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.persister == nil {
		writeJSON(w, http.StatusServiceUnavailable, persistResponse{Success: false, Error: "publishing is not configured"})
		return
	}

	var req struct {
		publish.Request
		Session string `json:"session"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, persistResponse{Success: false, Error: "invalid request body"})
		return
	}
	if strings.TrimSpace(req.Query) == "" || len(req.Blocks) == 0 {
		writeJSON(w, http.StatusBadRequest, persistResponse{Success: false, Error: "query and blocks are required"})
		return
	}

	res, err := s.persister.Persist(r.Context(), req.Request)
	if err != nil {
		s.log.Error("persist failed", zap.String("query", req.Query), zap.Error(err))
		writeJSON(w, http.StatusBadGateway, persistResponse{Success: false, Error: err.Error()})
		return
	}

	if err := s.archive.Add(r.Context(), publish.Record{
		Path:       res.Path,
		Query:      req.Query,
		Title:      req.Title,
		PreviewURL: res.PreviewURL,
		LiveURL:    res.LiveURL,
	}); err != nil {
		s.log.Warn("archive write failed", zap.Error(err))
	}

	// The session's history entry for this query gains the published path.
	s.sessions.SetGeneratedPath(r.Context(), req.Session, req.Query, res.Path)

	writeJSON(w, http.StatusOK, persistResponse{
		Success: true,
		Path:    res.Path,
		URLs:    map[string]string{"preview": res.PreviewURL, "live": res.LiveURL},
	})
}

func (s *Server) handlePages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 && v <= 500 {
			limit = v
		}
	}
	records, err := s.archive.List(r.Context(), limit)
	if err != nil {
		s.log.Error("archive list failed", zap.Error(err))
		http.Error(w, "archive unavailable", http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []publish.Record{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"pages": records})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"store":  s.store.Counts(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
