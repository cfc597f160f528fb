// File path: internal/api/context_handler.go
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/graphdesk/graphdesk/internal/common"
	ctxassembly "github.com/graphdesk/graphdesk/internal/context"
	"github.com/graphdesk/graphdesk/internal/vector"
)

type contextRequest struct {
	Query        string   `json:"query"`
	TopKSections int      `json:"top_k_sections"`
	Hops         int      `json:"num_hops"`
	Threshold    *float64 `json:"similarity_threshold"`
	MaxFanout    int      `json:"max_fanout"`
}

func (s *Server) handleContext(w http.ResponseWriter, r *http.Request) {
	var req contextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("query required"))
		return
	}

	opts := ctxassembly.Options{
		TopKSections: req.TopKSections,
		Hops:         req.Hops,
		MaxFanout:    req.MaxFanout,
	}
	if req.Threshold != nil {
		opts = opts.WithThreshold(*req.Threshold)
	}

	bundle, err := s.assembler.Assemble(r.Context(), req.Query, opts)
	if err != nil {
		var invalid ctxassembly.InvalidOptionsError
		if errors.As(err, &invalid) {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		var dimErr vector.DimensionError
		if errors.As(err, &dimErr) {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		var embErr ctxassembly.EmbeddingError
		var storageErr ctxassembly.StorageError
		if errors.As(err, &embErr) || errors.As(err, &storageErr) {
			writeError(w, http.StatusBadGateway, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	common.Logger().Debug("api: context assembled",
		"empty", bundle.Empty,
		"sections", len(bundle.Sections),
		"nodes", bundle.Graph.NodeCount)
	writeJSON(w, http.StatusOK, bundle)
}
