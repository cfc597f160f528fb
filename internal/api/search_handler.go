// File path: internal/api/search_handler.go
package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/graphdesk/graphdesk/internal/common"
)

type searchResult struct {
	Text       string  `json:"text"`
	TicketID   string  `json:"ticket_id"`
	SectionID  string  `json:"section_id"`
	SectionKey string  `json:"section_key"`
	Score      float32 `json:"score"`
}

// handleSearch exposes raw vector search as a debug surface; the assembled
// context endpoint is the primary consumer-facing operation.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("missing q parameter"))
		return
	}
	k := 10
	if v := r.URL.Query().Get("k"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 || parsed > 100 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("k must be an integer in [1, 100]"))
			return
		}
		k = parsed
	}
	minScore := float32(0)
	if v := r.URL.Query().Get("min_score"); v != "" {
		parsed, err := strconv.ParseFloat(v, 32)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid min_score"))
			return
		}
		minScore = float32(parsed)
	}

	queryVector, err := s.provider.EmbedQuery(r.Context(), query)
	if err != nil {
		writeError(w, http.StatusBadGateway, fmt.Errorf("embed query: %w", err))
		return
	}
	records, err := s.index.Search(queryVector, k, minScore)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	results := make([]searchResult, 0, len(records))
	for _, record := range records {
		results = append(results, searchResult{
			Text:       record.Text,
			TicketID:   record.Meta.TicketID,
			SectionID:  record.Meta.SectionID,
			SectionKey: record.Meta.SectionKey,
			Score:      record.Score,
		})
	}
	common.Logger().Debug("api: search served", "results", len(results))
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}
