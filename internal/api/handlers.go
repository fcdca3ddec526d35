package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"trademcp/internal/domain"
	"trademcp/internal/schema"
)

// RegisterRoutes registers all operations routes on the given mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.Handle("GET /metrics", s.metrics.Handler())
	mux.HandleFunc("GET /api/tools", s.handleTools)
	mux.HandleFunc("GET /api/journal", s.handleJournal)
	mux.HandleFunc("GET /api/journal/{reference}", s.handleJournalEntry)
}

// Handler returns the operations mux.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return mux
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	if !s.serving.Load() {
		writeError(w, http.StatusServiceUnavailable, "shutting down")
		return
	}
	writeJSON(w, map[string]string{"status": "ok"})
}

// ToolInfo is one entry of the tool listing.
type ToolInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	ReadOnly    bool   `json:"read_only"`
	Destructive bool   `json:"destructive"`
}

func (s *Server) handleTools(w http.ResponseWriter, _ *http.Request) {
	tools := schema.Tools()
	out := make([]ToolInfo, 0, len(tools))
	for _, t := range tools {
		out = append(out, ToolInfo{Name: t.Name, Description: t.Description, ReadOnly: t.ReadOnly, Destructive: t.Destructive})
	}
	writeJSON(w, out)
}

// handleJournal lists journal entries. Query params: since and until
// (YYYY-MM-DD or RFC 3339), status, limit.
func (s *Server) handleJournal(w http.ResponseWriter, r *http.Request) {
	q, err := journalQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	entries, err := s.engine.Journal(r.Context(), q)
	if err != nil {
		s.log.Error("listing journal", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if entries == nil {
		entries = []domain.JournalEntry{}
	}
	writeJSON(w, entries)
}

func (s *Server) handleJournalEntry(w http.ResponseWriter, r *http.Request) {
	entry, err := s.engine.JournalEntry(r.Context(), r.PathValue("reference"))
	switch {
	case domain.KindOf(err) == domain.KindNotFound:
		writeError(w, http.StatusNotFound, err.Error())
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		writeJSON(w, entry)
	}
}

func journalQuery(r *http.Request) (domain.JournalQuery, error) {
	v := r.URL.Query()
	q := domain.JournalQuery{Status: domain.JournalStatus(v.Get("status"))}
	var err error
	if q.Since, err = parseTime("since", v.Get("since")); err != nil {
		return q, err
	}
	if q.Until, err = parseTime("until", v.Get("until")); err != nil {
		return q, err
	}
	if s := v.Get("limit"); s != "" {
		if q.Limit, err = strconv.Atoi(s); err != nil || q.Limit < 0 {
			return q, &domain.SchemaError{Field: "limit", Reason: "must be a non-negative integer"}
		}
	}
	return q, nil
}

func parseTime(field, s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, &domain.SchemaError{Field: field, Reason: "must be YYYY-MM-DD or RFC 3339"}
	}
	return t, nil
}
