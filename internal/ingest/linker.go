// File path: internal/ingest/linker.go
package ingest

import (
	"context"
	"fmt"
	"sort"

	"github.com/graphdesk/graphdesk/internal/common"
	"github.com/graphdesk/graphdesk/internal/graph"
	"github.com/graphdesk/graphdesk/internal/ticket"
	"github.com/graphdesk/graphdesk/internal/vector"
)

const (
	defaultLinkThreshold = 0.7
	defaultLinkTopK      = 10
)

// LinkSimilar is the batch job that materializes SIMILAR_TO edges. Each
// ticket is represented by the renormalized mean of its section vectors;
// every ticket links to at most topK others with cosine similarity at or
// above the threshold. Ticket order is sorted so the edge set is
// reproducible. Returns the number of merged edges.
func LinkSimilar(ctx context.Context, index *vector.Index, store graph.Store, threshold float64, topK int) (int, error) {
	if threshold <= 0 {
		threshold = defaultLinkThreshold
	}
	if topK <= 0 {
		topK = defaultLinkTopK
	}

	byTicket := index.VectorsByTicket()
	ids := make([]string, 0, len(byTicket))
	pooled := make(map[string][]float32, len(byTicket))
	for id, vectors := range byTicket {
		vec := meanPool(vectors)
		if len(vec) == 0 {
			continue
		}
		ids = append(ids, id)
		pooled[id] = vec
	}
	sort.Strings(ids)

	type scored struct {
		id    string
		score float64
	}
	var edges []ticket.SimilarityEdge
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		var candidates []scored
		for _, other := range ids {
			if other == id {
				continue
			}
			score := float64(dot(pooled[id], pooled[other]))
			if score >= threshold {
				candidates = append(candidates, scored{id: other, score: score})
			}
		}
		sort.SliceStable(candidates, func(i, j int) bool {
			if candidates[i].score != candidates[j].score {
				return candidates[i].score > candidates[j].score
			}
			return candidates[i].id < candidates[j].id
		})
		if len(candidates) > topK {
			candidates = candidates[:topK]
		}
		for _, candidate := range candidates {
			edges = append(edges, ticket.SimilarityEdge{
				From:   id,
				To:     candidate.id,
				Score:  candidate.score,
				Method: "cosine",
			})
		}
	}

	if err := store.MergeSimilarityEdges(ctx, edges); err != nil {
		return 0, fmt.Errorf("merge similarity edges: %w", err)
	}
	common.Logger().Info("ingest: similarity linking complete", "tickets", len(ids), "edges", len(edges))
	return len(edges), nil
}

func dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
