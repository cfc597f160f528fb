// File path: internal/api/stats_handler.go
package api

import (
	"net/http"

	"github.com/graphdesk/graphdesk/internal/common"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "ok",
		"embedder": s.provider.Name(),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	graphStats, err := s.store.Stats(r.Context())
	if err != nil {
		common.Logger().Error("api: graph stats failed", "error", err)
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"vector":      s.index.Stats(),
		"graph":       graphStats,
		"communities": s.summaries.Len(),
	})
}
