// File path: internal/context/assembler.go
package context

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/graphdesk/graphdesk/internal/common"
	"github.com/graphdesk/graphdesk/internal/common/telemetry"
	"github.com/graphdesk/graphdesk/internal/community"
	"github.com/graphdesk/graphdesk/internal/graph"
	"github.com/graphdesk/graphdesk/internal/ticket"
	"github.com/graphdesk/graphdesk/internal/vector"
)

// Embedder is the slice of the embedding provider the assembler needs.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	Name() string
}

// Searcher is the slice of the vector index the assembler needs.
type Searcher interface {
	Search(query []float32, k int, minScore float32) ([]vector.Record, error)
}

// Expander is the slice of the graph store the assembler needs.
type Expander interface {
	Expand(ctx context.Context, seedIDs []string, opts graph.ExpandOptions) (*graph.Expansion, error)
}

// CommunityLookup resolves a community id to its summary, nil on a miss.
type CommunityLookup interface {
	Lookup(id int64) *community.Summary
}

const topNodeCount = 5

// Assembler orchestrates one query: embed, vector search, graph expansion,
// community lookup, merge. It holds no mutable state of its own, so one
// instance serves arbitrarily many concurrent calls.
type Assembler struct {
	embedder    Embedder
	searcher    Searcher
	expander    Expander
	communities CommunityLookup

	stageTimeout time.Duration
}

// NewAssembler wires the four collaborators. stageTimeout bounds each of the
// embed, search and expand stages individually; zero disables the bound.
func NewAssembler(embedder Embedder, searcher Searcher, expander Expander, communities CommunityLookup, stageTimeout time.Duration) *Assembler {
	return &Assembler{
		embedder:     embedder,
		searcher:     searcher,
		expander:     expander,
		communities:  communities,
		stageTimeout: stageTimeout,
	}
}

func (a *Assembler) stageContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.stageTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, a.stageTimeout)
}

// Assemble produces the context bundle for one query. Failures of the
// embedding provider or either store abort the whole call; a bundle missing
// graph context is never returned as a degraded result. An empty seed set
// short-circuits to a flagged empty bundle before the graph is touched.
func (a *Assembler) Assemble(ctx context.Context, query string, opts Options) (*ContextBundle, error) {
	start := time.Now()
	opts, err := opts.normalize()
	if err != nil {
		return nil, err
	}

	embedCtx, cancelEmbed := a.stageContext(ctx)
	queryVector, err := a.embedder.EmbedQuery(embedCtx, query)
	cancelEmbed()
	if err != nil {
		return nil, EmbeddingError{Provider: a.embedder.Name(), Err: err}
	}

	// The top-k cap alone governs breadth here. A score floor at this stage
	// would silently empty results for sparse domains.
	hits, err := a.searcher.Search(queryVector, opts.TopKSections, 0)
	if err != nil {
		var dimErr vector.DimensionError
		if errors.As(err, &dimErr) {
			return nil, err
		}
		return nil, StorageError{Store: "vector", Err: err}
	}

	seedIDs := make([]string, 0, len(hits))
	seen := make(map[string]struct{}, len(hits))
	for _, hit := range hits {
		id := ticket.NormalizeID(hit.Meta.TicketID)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		seedIDs = append(seedIDs, id)
	}
	if len(seedIDs) == 0 {
		telemetry.RecordAssemble(true, time.Since(start))
		common.Logger().Debug("context: no seeds, returning empty bundle", "query_len", len(query))
		return &ContextBundle{Query: query, Empty: true}, nil
	}

	expandStart := time.Now()
	expandCtx, cancelExpand := a.stageContext(ctx)
	expansion, err := a.expander.Expand(expandCtx, seedIDs, graph.ExpandOptions{
		Hops:      opts.Hops,
		Threshold: opts.Threshold,
		MaxFanout: opts.MaxFanout,
	})
	cancelExpand()
	if err != nil {
		return nil, StorageError{Store: "graph", Err: err}
	}
	telemetry.RecordGraphExpand(len(expansion.Nodes), time.Since(expandStart))

	bundle := a.merge(query, hits, expansion)
	telemetry.RecordAssemble(false, time.Since(start))
	return bundle, nil
}

func (a *Assembler) merge(query string, hits []vector.Record, expansion *graph.Expansion) *ContextBundle {
	sections := make([]BundleSection, 0, len(hits))
	sectionSeen := make(map[string]struct{}, len(hits))
	for _, hit := range hits {
		id := ticket.NormalizeID(hit.Meta.SectionID)
		if id == "" {
			continue
		}
		// First occurrence wins: hits arrive in rank order.
		if _, dup := sectionSeen[id]; dup {
			continue
		}
		sectionSeen[id] = struct{}{}
		sections = append(sections, BundleSection{
			Text:       hit.Text,
			TicketID:   ticket.NormalizeID(hit.Meta.TicketID),
			SectionID:  id,
			SectionKey: hit.Meta.SectionKey,
			Score:      hit.Score,
		})
	}

	summary := GraphSummary{
		NodeCount: len(expansion.Nodes),
		EdgeCount: len(expansion.Edges),
		Hops:      expansion.Hops,
		Edges:     expansion.Edges,
	}
	ranked := make([]NodeRank, 0, len(expansion.Nodes))
	for _, node := range expansion.Nodes {
		ranked = append(ranked, NodeRank{ID: node.Ticket.ID, Degree: node.Degree})
		if node.Seed {
			summary.SeedIDs = append(summary.SeedIDs, node.Ticket.ID)
		} else {
			summary.ExpandedIDs = append(summary.ExpandedIDs, node.Ticket.ID)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Degree != ranked[j].Degree {
			return ranked[i].Degree > ranked[j].Degree
		}
		return ranked[i].ID < ranked[j].ID
	})
	if len(ranked) > topNodeCount {
		ranked = ranked[:topNodeCount]
	}
	summary.TopNodes = ranked

	var summaries []community.Summary
	var communityIDs []int64
	communitySeen := make(map[int64]struct{})
	for _, node := range expansion.Nodes {
		if node.Ticket.CommunityID == nil {
			continue
		}
		id := *node.Ticket.CommunityID
		if _, dup := communitySeen[id]; dup {
			continue
		}
		communitySeen[id] = struct{}{}
		communityIDs = append(communityIDs, id)
	}
	sort.Slice(communityIDs, func(i, j int) bool { return communityIDs[i] < communityIDs[j] })
	for _, id := range communityIDs {
		if s := a.communities.Lookup(id); s != nil {
			summaries = append(summaries, *s)
		}
	}

	provenance := Provenance{}
	ticketSeen := make(map[string]struct{}, len(expansion.Nodes))
	for _, node := range expansion.Nodes {
		ticketSeen[node.Ticket.ID] = struct{}{}
		provenance.TicketIDs = append(provenance.TicketIDs, node.Ticket.ID)
	}
	for _, section := range sections {
		provenance.SectionIDs = append(provenance.SectionIDs, section.SectionID)
		// A stale seed can carry sections while missing from the graph.
		if _, ok := ticketSeen[section.TicketID]; !ok && section.TicketID != "" {
			ticketSeen[section.TicketID] = struct{}{}
			provenance.TicketIDs = append(provenance.TicketIDs, section.TicketID)
		}
	}
	provenance.CommunityIDs = communityIDs
	provenance.TicketCount = len(provenance.TicketIDs)
	provenance.SectionCount = len(provenance.SectionIDs)
	provenance.CommunityCount = len(communityIDs)

	return &ContextBundle{
		Query:       query,
		Sections:    sections,
		Graph:       summary,
		Communities: summaries,
		Provenance:  provenance,
	}
}
