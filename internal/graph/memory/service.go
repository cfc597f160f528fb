// File path: internal/graph/memory/service.go
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/graphdesk/graphdesk/internal/graph"
	"github.com/graphdesk/graphdesk/internal/ticket"
)

// Service is an in-memory graph.Store. It backs tests and single-node
// deployments that have no Neo4j; the similarity-edge semantics match the
// Neo4j backend exactly because both delegate hop logic to graph.Walk.
type Service struct {
	mu       sync.RWMutex
	tickets  map[string]ticket.Ticket
	sections map[string][]ticket.Section
	owner    map[string]string
	outgoing map[string]map[string]ticket.SimilarityEdge
	incoming map[string]map[string]ticket.SimilarityEdge
}

// NewService constructs an empty store.
func NewService() *Service {
	return &Service{
		tickets:  make(map[string]ticket.Ticket),
		sections: make(map[string][]ticket.Section),
		owner:    make(map[string]string),
		outgoing: make(map[string]map[string]ticket.SimilarityEdge),
		incoming: make(map[string]map[string]ticket.SimilarityEdge),
	}
}

func (s *Service) UpsertTickets(ctx context.Context, tickets []ticket.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range tickets {
		id := ticket.NormalizeID(t.ID)
		if id == "" {
			continue
		}
		existing, ok := s.tickets[id]
		if ok && t.CommunityID == nil {
			// Re-ingestion must not wipe a community assignment; only the
			// detection job mutates it.
			t.CommunityID = existing.CommunityID
		}
		s.tickets[id] = t
	}
	return nil
}

func (s *Service) UpsertSections(ctx context.Context, sections []ticket.Section) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sec := range sections {
		ticketID := ticket.NormalizeID(sec.TicketID)
		sectionID := ticket.NormalizeID(sec.ID)
		if ticketID == "" || sectionID == "" {
			continue
		}
		if _, ok := s.tickets[ticketID]; !ok {
			continue
		}
		if prevOwner, ok := s.owner[sectionID]; ok {
			replaced := false
			for i, existing := range s.sections[prevOwner] {
				if ticket.NormalizeID(existing.ID) == sectionID {
					if prevOwner == ticketID {
						s.sections[prevOwner][i] = sec
						replaced = true
					} else {
						s.sections[prevOwner] = append(s.sections[prevOwner][:i], s.sections[prevOwner][i+1:]...)
					}
					break
				}
			}
			if replaced {
				continue
			}
		}
		s.owner[sectionID] = ticketID
		s.sections[ticketID] = append(s.sections[ticketID], sec)
	}
	return nil
}

func (s *Service) MergeSimilarityEdges(ctx context.Context, edges []ticket.SimilarityEdge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, edge := range edges {
		from := ticket.NormalizeID(edge.From)
		to := ticket.NormalizeID(edge.To)
		if from == "" || to == "" || from == to {
			continue
		}
		if _, ok := s.tickets[from]; !ok {
			continue
		}
		if _, ok := s.tickets[to]; !ok {
			continue
		}
		if s.outgoing[from] == nil {
			s.outgoing[from] = make(map[string]ticket.SimilarityEdge)
		}
		if s.incoming[to] == nil {
			s.incoming[to] = make(map[string]ticket.SimilarityEdge)
		}
		stored := edge
		stored.From, stored.To = from, to
		s.outgoing[from][to] = stored
		s.incoming[to][from] = stored
	}
	return nil
}

func (s *Service) SetCommunities(ctx context.Context, assignment map[string]int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for rawID, communityID := range assignment {
		id := ticket.NormalizeID(rawID)
		t, ok := s.tickets[id]
		if !ok {
			continue
		}
		cid := communityID
		t.CommunityID = &cid
		s.tickets[id] = t
	}
	return nil
}

// Expand walks the similarity neighborhood of the seed set. Unknown seeds
// are dropped silently; the remaining semantics live in graph.Walk.
func (s *Service) Expand(ctx context.Context, seedIDs []string, opts graph.ExpandOptions) (*graph.Expansion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	known := make([]string, 0, len(seedIDs))
	seedSet := make(map[string]struct{}, len(seedIDs))
	for _, id := range seedIDs {
		normalized := ticket.NormalizeID(id)
		if _, ok := s.tickets[normalized]; !ok {
			continue
		}
		if _, dup := seedSet[normalized]; dup {
			continue
		}
		seedSet[normalized] = struct{}{}
		known = append(known, normalized)
	}

	communitySizes := s.communitySizesLocked()
	source := func(ctx context.Context, sourceID string, threshold float64) ([]graph.Candidate, error) {
		return s.candidatesLocked(sourceID, threshold, communitySizes), nil
	}
	order, edges, err := graph.Walk(ctx, known, opts, source)
	if err != nil {
		return nil, err
	}

	expansion := &graph.Expansion{
		Sections: make(map[string][]ticket.Section, len(order)),
		Edges:    edges,
		Hops:     opts.Hops,
	}
	for _, id := range order {
		t := s.tickets[id]
		_, seed := seedSet[id]
		expansion.Nodes = append(expansion.Nodes, graph.Node{
			Ticket: t,
			Degree: s.degreeLocked(id),
			Seed:   seed,
		})
		if sections := s.sections[id]; len(sections) > 0 {
			expansion.Sections[id] = append([]ticket.Section(nil), sections...)
		}
	}
	return expansion, nil
}

func (s *Service) candidatesLocked(sourceID string, threshold float64, communitySizes map[int64]int) []graph.Candidate {
	best := make(map[string]ticket.SimilarityEdge)
	for to, edge := range s.outgoing[sourceID] {
		best[to] = edge
	}
	for from, edge := range s.incoming[sourceID] {
		if existing, ok := best[from]; !ok || edge.Score > existing.Score {
			best[from] = edge
		}
	}
	candidates := make([]graph.Candidate, 0, len(best))
	for id, edge := range best {
		if edge.Score < threshold {
			continue
		}
		size := 0
		if t, ok := s.tickets[id]; ok && t.CommunityID != nil {
			size = communitySizes[*t.CommunityID]
		}
		candidates = append(candidates, graph.Candidate{ID: id, Score: edge.Score, CommunitySize: size, Edge: edge})
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].ID < candidates[j].ID })
	return candidates
}

func (s *Service) degreeLocked(id string) int {
	neighbors := make(map[string]struct{})
	for to := range s.outgoing[id] {
		neighbors[to] = struct{}{}
	}
	for from := range s.incoming[id] {
		neighbors[from] = struct{}{}
	}
	return len(neighbors)
}

func (s *Service) communitySizesLocked() map[int64]int {
	sizes := make(map[int64]int)
	for _, t := range s.tickets {
		if t.CommunityID != nil {
			sizes[*t.CommunityID]++
		}
	}
	return sizes
}

// Communities groups tickets by assigned community id with the degree and
// section data the summary builder consumes. Tickets without an assignment
// are excluded.
func (s *Service) Communities(ctx context.Context) (map[int64][]graph.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[int64][]graph.Member)
	ids := make([]string, 0, len(s.tickets))
	for id := range s.tickets {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		t := s.tickets[id]
		if t.CommunityID == nil {
			continue
		}
		member := graph.Member{
			Ticket:   t,
			Degree:   s.degreeLocked(id),
			Sections: append([]ticket.Section(nil), s.sections[id]...),
		}
		out[*t.CommunityID] = append(out[*t.CommunityID], member)
	}
	return out, nil
}

// Subgraph returns up to limit tickets and the similarity edges among them,
// for the visualization surface.
func (s *Service) Subgraph(ctx context.Context, limit int) (*graph.Expansion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.tickets))
	for id := range s.tickets {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	included := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		included[id] = struct{}{}
	}
	expansion := &graph.Expansion{Sections: make(map[string][]ticket.Section)}
	for _, id := range ids {
		expansion.Nodes = append(expansion.Nodes, graph.Node{Ticket: s.tickets[id], Degree: s.degreeLocked(id)})
	}
	for _, from := range ids {
		targets := make([]string, 0, len(s.outgoing[from]))
		for to := range s.outgoing[from] {
			targets = append(targets, to)
		}
		sort.Strings(targets)
		for _, to := range targets {
			if _, ok := included[to]; !ok {
				continue
			}
			expansion.Edges = append(expansion.Edges, s.outgoing[from][to])
		}
	}
	return expansion, nil
}

func (s *Service) Stats(ctx context.Context) (graph.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stats := graph.Stats{Tickets: len(s.tickets)}
	for _, sections := range s.sections {
		stats.Sections += len(sections)
	}
	for _, targets := range s.outgoing {
		stats.Edges += len(targets)
	}
	return stats, nil
}

func (s *Service) Close(ctx context.Context) error { return nil }

var _ graph.Store = (*Service)(nil)
