// File path: internal/api/graph_handler.go
package api

import (
	"fmt"
	"net/http"
	"strconv"
)

// handleSubgraph returns a bounded node/edge slice for visualization
// consumers.
func (s *Server) handleSubgraph(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 || parsed > 1000 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("limit must be an integer in [1, 1000]"))
			return
		}
		limit = parsed
	}
	expansion, err := s.store.Subgraph(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"nodes": expansion.Nodes,
		"edges": expansion.Edges,
	})
}
