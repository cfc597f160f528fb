// File path: internal/graph/types.go
package graph

import (
	"context"

	"github.com/graphdesk/graphdesk/internal/ticket"
)

// Node is one ticket discovered during neighborhood expansion. Seed marks
// tickets whose sections matched the vector search directly; the rest were
// reached only via similarity edges.
type Node struct {
	Ticket ticket.Ticket `json:"ticket"`
	Degree int           `json:"degree"`
	Seed   bool          `json:"seed"`
}

// ExpandOptions bounds a neighborhood walk. The fanout cap and score
// threshold keep high-degree hub tickets from pulling in the whole graph at
// hop one.
type ExpandOptions struct {
	Hops      int
	Threshold float64
	MaxFanout int
}

// Expansion is the bounded neighborhood reachable from a seed set: the full
// discovered node set, the similarity edges traversed, and every discovered
// ticket's attached sections. Community ids ride on the node tickets and may
// be nil when detection has not run.
type Expansion struct {
	Nodes    []Node                      `json:"nodes"`
	Edges    []ticket.SimilarityEdge     `json:"edges"`
	Sections map[string][]ticket.Section `json:"sections"`
	Hops     int                         `json:"hops"`
}

// Member is one ticket inside a community, with the data the summary builder
// needs: its similarity degree and attached section text.
type Member struct {
	Ticket   ticket.Ticket
	Degree   int
	Sections []ticket.Section
}

// Stats summarizes store contents for the health surface.
type Stats struct {
	Tickets  int `json:"tickets"`
	Sections int `json:"sections"`
	Edges    int `json:"edges"`
}

// Store is the labeled graph backend: tickets, attached sections, weighted
// similarity edges and a precomputed community id per ticket. Writes happen
// only during ingestion and batch jobs; the query path is read-only.
//
// Expand must traverse similarity edges in both directions: edges are stored
// directed but are symmetric in meaning, and one-directional traversal
// silently drops context. Unknown seed ids are skipped, not errors.
type Store interface {
	UpsertTickets(ctx context.Context, tickets []ticket.Ticket) error
	UpsertSections(ctx context.Context, sections []ticket.Section) error
	MergeSimilarityEdges(ctx context.Context, edges []ticket.SimilarityEdge) error
	SetCommunities(ctx context.Context, assignment map[string]int64) error

	Expand(ctx context.Context, seedIDs []string, opts ExpandOptions) (*Expansion, error)
	Communities(ctx context.Context) (map[int64][]Member, error)
	Subgraph(ctx context.Context, limit int) (*Expansion, error)
	Stats(ctx context.Context) (Stats, error)

	Close(ctx context.Context) error
}
