// File path: internal/api/server.go
package api

import (
	"encoding/json"
	"net/http"

	chi "github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/graphdesk/graphdesk/internal/common"
	"github.com/graphdesk/graphdesk/internal/community"
	ctxassembly "github.com/graphdesk/graphdesk/internal/context"
	"github.com/graphdesk/graphdesk/internal/embedding"
	"github.com/graphdesk/graphdesk/internal/graph"
	"github.com/graphdesk/graphdesk/internal/vector"
)

// Server is the thin HTTP layer: request validation and JSON shaping only,
// all logic lives in the core packages.
type Server struct {
	router chi.Router

	assembler    *ctxassembly.Assembler
	provider     embedding.Provider
	index        *vector.Index
	store        graph.Store
	summaries    *community.Index
	summaryStore *community.Store
}

// NewServer wires the core collaborators into routes. summaryStore may be
// nil when summary persistence is disabled.
func NewServer(assembler *ctxassembly.Assembler, provider embedding.Provider, index *vector.Index, store graph.Store, summaries *community.Index, summaryStore *community.Store) *Server {
	s := &Server{
		router:       chi.NewRouter(),
		assembler:    assembler,
		provider:     provider,
		index:        index,
		store:        store,
		summaries:    summaries,
		summaryStore: summaryStore,
	}
	s.router.Use(middleware.Recoverer)
	s.router.Get("/healthz", s.handleHealth)
	s.router.Post("/v1/context", s.handleContext)
	s.router.Get("/v1/search", s.handleSearch)
	s.router.Get("/v1/graph/subgraph", s.handleSubgraph)
	s.router.Post("/v1/ingest", s.handleIngest)
	s.router.Get("/v1/stats", s.handleStats)
	s.router.Get("/v1/logs", s.handleLogs)
	return s
}

// Router exposes the configured handler tree.
func (s *Server) Router() http.Handler {
	return s.router
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	common.Logger().Warn("api: request failed", "status", status, "error", err)
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"logs": common.LogEntries()})
}
