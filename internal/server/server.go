// Package server exposes the latest ranked batch and persisted snapshots
// over a JSON HTTP API.
package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/optick/optionpulse/internal/engine"
	"github.com/optick/optionpulse/internal/logger"
	"github.com/optick/optionpulse/internal/models"
)

const (
	defaultTopN     = 20
	maxTopN         = 200
	defaultSnapshot = 100
	maxSnapshot     = 1000
)

// BatchProvider yields the most recent scored batch, nil before the first
// completed cycle.
type BatchProvider interface {
	Latest() *engine.Batch
}

// SnapshotStore reads persisted snapshot rows.
type SnapshotStore interface {
	RecentSnapshots(limit int) ([]models.ContractRow, error)
}

// Server routes dashboard requests.
type Server struct {
	provider BatchProvider
	store    SnapshotStore
	router   *mux.Router
}

// New builds the server and its routes. store may be nil when persistence
// is disabled.
func New(provider BatchProvider, store SnapshotStore) *Server {
	s := &Server{
		provider: provider,
		store:    store,
		router:   mux.NewRouter(),
	}
	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/api/top", s.handleTop).Methods(http.MethodGet)
	s.router.HandleFunc("/api/snapshots", s.handleSnapshots).Methods(http.MethodGet)
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

type topResponse struct {
	CycleID   string               `json:"cycle_id,omitempty"`
	Timestamp string               `json:"timestamp,omitempty"`
	Rows      []models.ContractRow `json:"rows"`
}

// handleTop serves the top-N rows of the latest batch. Before the first
// cycle, or when the last cycle produced nothing, the response is an empty
// list rather than an error.
func (s *Server) handleTop(w http.ResponseWriter, r *http.Request) {
	n := queryInt(r, "n", defaultTopN, maxTopN)

	resp := topResponse{Rows: []models.ContractRow{}}
	if batch := s.provider.Latest(); batch != nil {
		rows := batch.Rows
		if len(rows) > n {
			rows = rows[:n]
		}
		resp.CycleID = batch.CycleID
		resp.Timestamp = batch.At.Format("2006-01-02T15:04:05.000Z07:00")
		resp.Rows = rows
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSnapshots(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		http.Error(w, "persistence disabled", http.StatusNotFound)
		return
	}
	limit := queryInt(r, "limit", defaultSnapshot, maxSnapshot)

	rows, err := s.store.RecentSnapshots(limit)
	if err != nil {
		logger.Error("Failed to read snapshots: %v", err)
		http.Error(w, "failed to read snapshots", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rows": rows})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func queryInt(r *http.Request, key string, def, max int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 1 {
		return def
	}
	if v > max {
		return max
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error("Failed to encode response: %v", err)
	}
}
