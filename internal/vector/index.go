// File path: internal/vector/index.go
package vector

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/graphdesk/graphdesk/internal/common"
	"github.com/graphdesk/graphdesk/internal/common/telemetry"
	"github.com/graphdesk/graphdesk/internal/ticket"
)

// DimensionError reports a query or insert vector whose length does not match
// the index dimension. It indicates a configuration error (wrong embedding
// model for this index build) and is never silently truncated or padded.
type DimensionError struct {
	Got  int
	Want int
}

func (e DimensionError) Error() string {
	return fmt.Sprintf("vector dimension %d does not match index dimension %d", e.Got, e.Want)
}

// StorageError reports a failed or inconsistent persist/load of the index.
type StorageError struct {
	Op  string
	Err error
}

func (e StorageError) Error() string {
	return fmt.Sprintf("vector store %s: %v", e.Op, e.Err)
}

func (e StorageError) Unwrap() error { return e.Err }

// Record is one search hit: the stored section text, its metadata and the
// inner-product score against the query vector.
type Record struct {
	Text  string
	Meta  ticket.VectorMeta
	Score float32
}

// Stats summarizes index contents for health checks.
type Stats struct {
	TotalVectors int      `json:"total_vectors"`
	Tickets      int      `json:"tickets"`
	SectionKeys  []string `json:"section_keys"`
	Dimension    int      `json:"dimension"`
}

// Index is a flat exact nearest-neighbor index over unit vectors. Inner
// product equals cosine similarity because every vector is L2-normalized at
// insertion time by the embedding provider; the index does not renormalize.
// Violating that precondition produces silently wrong rankings, not errors.
//
// Vectors, texts and metadata are parallel slices; search results are
// deterministic for a fixed index state with ties broken by insertion order.
type Index struct {
	mu      sync.RWMutex
	dim     int
	path    string
	vectors [][]float32
	texts   []string
	metas   []ticket.VectorMeta
}

// New constructs an empty index with the configured dimension and snapshot
// path.
func New(cfg Config) *Index {
	cfg.applyDefaults()
	return &Index{dim: cfg.Dimension, path: cfg.Path}
}

// Len reports the number of stored vectors.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.vectors)
}

// Dimension reports the configured vector dimension.
func (ix *Index) Dimension() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.dim
}

// Add appends parallel texts, vectors and metadata records. Vectors must
// already be unit-normalized. Re-adding an existing section id appends a
// duplicate record; dedup happens downstream at context-assembly time.
func (ix *Index) Add(texts []string, vectors [][]float32, metas []ticket.VectorMeta) error {
	if len(texts) != len(vectors) || len(texts) != len(metas) {
		return fmt.Errorf("vector add: parallel lengths differ: %d texts, %d vectors, %d metas",
			len(texts), len(vectors), len(metas))
	}
	if len(texts) == 0 {
		return nil
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()
	for _, vec := range vectors {
		if len(vec) != ix.dim {
			return DimensionError{Got: len(vec), Want: ix.dim}
		}
	}
	for i := range texts {
		stored := make([]float32, ix.dim)
		copy(stored, vectors[i])
		ix.vectors = append(ix.vectors, stored)
		ix.texts = append(ix.texts, texts[i])
		ix.metas = append(ix.metas, metas[i])
	}
	return nil
}

// Search returns up to k records with inner product >= minScore, sorted by
// descending score with insertion-order ties. An empty index yields empty
// results, not an error. The query dimension is checked eagerly before any
// comparison.
func (ix *Index) Search(query []float32, k int, minScore float32) ([]Record, error) {
	start := time.Now()
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if len(query) != ix.dim {
		return nil, DimensionError{Got: len(query), Want: ix.dim}
	}
	if len(ix.vectors) == 0 {
		return nil, nil
	}
	if k <= 0 {
		return nil, nil
	}

	type scored struct {
		idx   int
		score float32
	}
	candidates := make([]scored, 0, len(ix.vectors))
	for i, vec := range ix.vectors {
		score := dot(query, vec)
		if score < minScore {
			continue
		}
		candidates = append(candidates, scored{idx: i, score: score})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})
	if len(candidates) > k {
		candidates = candidates[:k]
	}

	results := make([]Record, 0, len(candidates))
	for _, c := range candidates {
		results = append(results, Record{Text: ix.texts[c.idx], Meta: ix.metas[c.idx], Score: c.score})
	}
	telemetry.RecordVectorSearch(time.Since(start))
	common.Logger().Debug("vector: search complete", "candidates", len(ix.vectors), "returned", len(results))
	return results, nil
}

// ByTicket returns every stored record for one ticket, in insertion order.
func (ix *Index) ByTicket(ticketID string) []Record {
	normalized := ticket.NormalizeID(ticketID)
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	var out []Record
	for i, meta := range ix.metas {
		if ticket.NormalizeID(meta.TicketID) == normalized {
			out = append(out, Record{Text: ix.texts[i], Meta: meta})
		}
	}
	return out
}

// Vectors returns a snapshot of stored vectors keyed by ticket id, used by
// the similarity linker to mean-pool per-ticket embeddings.
func (ix *Index) VectorsByTicket() map[string][][]float32 {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	out := make(map[string][][]float32)
	for i, meta := range ix.metas {
		id := ticket.NormalizeID(meta.TicketID)
		out[id] = append(out[id], ix.vectors[i])
	}
	return out
}

// Stats reports index totals for the health surface; core logic never reads
// it.
func (ix *Index) Stats() Stats {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	tickets := make(map[string]struct{})
	keys := make(map[string]struct{})
	for _, meta := range ix.metas {
		if meta.TicketID != "" {
			tickets[ticket.NormalizeID(meta.TicketID)] = struct{}{}
		}
		if meta.SectionKey != "" {
			keys[meta.SectionKey] = struct{}{}
		}
	}
	ordered := make([]string, 0, len(keys))
	for key := range keys {
		ordered = append(ordered, key)
	}
	sort.Strings(ordered)
	return Stats{
		TotalVectors: len(ix.vectors),
		Tickets:      len(tickets),
		SectionKeys:  ordered,
		Dimension:    ix.dim,
	}
}

func dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
