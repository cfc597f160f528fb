// File path: internal/graph/expand.go
package graph

import (
	"context"
	"sort"

	"github.com/graphdesk/graphdesk/internal/ticket"
)

// Candidate is a neighbor reachable from one frontier ticket: the edge that
// reaches it, its similarity score, and the size of its community when known
// (used only as a deterministic tie-break).
type Candidate struct {
	ID            string
	Score         float64
	CommunitySize int
	Edge          ticket.SimilarityEdge
}

// CandidateSource lists neighbors of one ticket over similarity edges in
// both directions, already filtered to score >= threshold. Backends supply
// this; Walk owns the hop, fanout and tie-break semantics so every backend
// expands identically.
type CandidateSource func(ctx context.Context, sourceID string, threshold float64) ([]Candidate, error)

// Walk performs the bounded breadth-first expansion. It returns the visit
// order of discovered ticket ids (seeds first, in input order after
// deduplication) and the deduplicated edge set traversed. Per hop, each
// frontier ticket contributes at most opts.MaxFanout new tickets, chosen by
// descending score with ties broken by larger community size, then
// lexicographic id. The walk stops after opts.Hops rounds or at a fixpoint.
func Walk(ctx context.Context, seedIDs []string, opts ExpandOptions, source CandidateSource) ([]string, []ticket.SimilarityEdge, error) {
	visited := make(map[string]struct{}, len(seedIDs))
	var order []string
	for _, id := range seedIDs {
		normalized := ticket.NormalizeID(id)
		if normalized == "" {
			continue
		}
		if _, seen := visited[normalized]; seen {
			continue
		}
		visited[normalized] = struct{}{}
		order = append(order, normalized)
	}

	var edges []ticket.SimilarityEdge
	edgeSeen := make(map[string]struct{})
	recordEdge := func(edge ticket.SimilarityEdge) {
		a, b := ticket.NormalizeID(edge.From), ticket.NormalizeID(edge.To)
		key := a + "->" + b
		if b < a {
			key = b + "->" + a
		}
		if _, ok := edgeSeen[key]; ok {
			return
		}
		edgeSeen[key] = struct{}{}
		edges = append(edges, edge)
	}

	frontier := append([]string(nil), order...)
	for hop := 0; hop < opts.Hops && len(frontier) > 0; hop++ {
		var next []string
		for _, sourceID := range frontier {
			if err := ctx.Err(); err != nil {
				return nil, nil, err
			}
			candidates, err := source(ctx, sourceID, opts.Threshold)
			if err != nil {
				return nil, nil, err
			}
			sort.SliceStable(candidates, func(i, j int) bool {
				if candidates[i].Score != candidates[j].Score {
					return candidates[i].Score > candidates[j].Score
				}
				if candidates[i].CommunitySize != candidates[j].CommunitySize {
					return candidates[i].CommunitySize > candidates[j].CommunitySize
				}
				return candidates[i].ID < candidates[j].ID
			})
			accepted := 0
			for _, candidate := range candidates {
				id := ticket.NormalizeID(candidate.ID)
				if id == "" || id == sourceID {
					continue
				}
				if _, seen := visited[id]; seen {
					// Edge between two already-discovered tickets still
					// belongs to the traversed set for rendering and audit.
					recordEdge(candidate.Edge)
					continue
				}
				if accepted >= opts.MaxFanout {
					continue
				}
				visited[id] = struct{}{}
				order = append(order, id)
				next = append(next, id)
				recordEdge(candidate.Edge)
				accepted++
			}
		}
		frontier = next
	}
	return order, edges, nil
}
