// File path: internal/context/types.go
package context

import (
	"github.com/graphdesk/graphdesk/internal/community"
	"github.com/graphdesk/graphdesk/internal/ticket"
)

// BundleSection is one ranked text fragment in the bundle, with enough
// metadata to cite it.
type BundleSection struct {
	Text       string  `json:"text"`
	TicketID   string  `json:"ticket_id"`
	SectionID  string  `json:"section_id"`
	SectionKey string  `json:"section_key"`
	Score      float32 `json:"score"`
}

// NodeRank pairs a ticket id with its similarity degree for the top-node
// listing.
type NodeRank struct {
	ID     string `json:"id"`
	Degree int    `json:"degree"`
}

// GraphSummary describes the expanded neighborhood: counts, the hop depth
// used, the highest-degree tickets, and which tickets were vector-search
// seeds versus reached only through similarity edges.
type GraphSummary struct {
	NodeCount   int                     `json:"node_count"`
	EdgeCount   int                     `json:"edge_count"`
	Hops        int                     `json:"hops"`
	TopNodes    []NodeRank              `json:"top_nodes"`
	SeedIDs     []string                `json:"seed_ids"`
	ExpandedIDs []string                `json:"expanded_ids"`
	Edges       []ticket.SimilarityEdge `json:"edges,omitempty"`
}

// Provenance lists everything that contributed to the bundle, deduplicated,
// so a consumer can render "N tickets, M sections, K clusters used".
type Provenance struct {
	TicketIDs      []string `json:"ticket_ids"`
	SectionIDs     []string `json:"section_ids"`
	CommunityIDs   []int64  `json:"community_ids"`
	TicketCount    int      `json:"ticket_count"`
	SectionCount   int      `json:"section_count"`
	CommunityCount int      `json:"community_count"`
}

// ContextBundle is the assembled output. Empty marks the "no relevant data"
// outcome: the query matched nothing, the graph was never consulted, and
// every list is empty. An empty bundle is a normal result, not an error.
type ContextBundle struct {
	Query       string              `json:"query"`
	Empty       bool                `json:"empty"`
	Sections    []BundleSection     `json:"sections"`
	Graph       GraphSummary        `json:"graph"`
	Communities []community.Summary `json:"communities"`
	Provenance  Provenance          `json:"provenance"`
}

// Options bounds one assembly. Zero values mean "use the default"; values
// outside the allowed range fail with InvalidOptionsError.
type Options struct {
	TopKSections int     `json:"top_k_sections"`
	Hops         int     `json:"num_hops"`
	Threshold    float64 `json:"similarity_threshold"`
	MaxFanout    int     `json:"max_fanout"`

	thresholdSet bool
}

const (
	defaultTopKSections = 10
	defaultHops         = 1
	defaultThreshold    = 0.7
	defaultMaxFanout    = 10
)

// WithThreshold marks the threshold as explicitly chosen, allowing 0.0,
// which the zero-value convention would otherwise read as "use default".
func (o Options) WithThreshold(threshold float64) Options {
	o.Threshold = threshold
	o.thresholdSet = true
	return o
}

func (o Options) normalize() (Options, error) {
	if o.TopKSections == 0 {
		o.TopKSections = defaultTopKSections
	}
	if o.Hops == 0 {
		o.Hops = defaultHops
	}
	if o.Threshold == 0 && !o.thresholdSet {
		o.Threshold = defaultThreshold
	}
	if o.MaxFanout == 0 {
		o.MaxFanout = defaultMaxFanout
	}
	if o.TopKSections < 1 || o.TopKSections > 50 {
		return o, InvalidOptionsError{Field: "top_k_sections", Value: o.TopKSections, Reason: "must be in [1, 50]"}
	}
	if o.Hops < 1 || o.Hops > 3 {
		return o, InvalidOptionsError{Field: "num_hops", Value: o.Hops, Reason: "must be in [1, 3]"}
	}
	if o.Threshold < 0 || o.Threshold > 1 {
		return o, InvalidOptionsError{Field: "similarity_threshold", Value: o.Threshold, Reason: "must be in [0, 1]"}
	}
	if o.MaxFanout < 1 || o.MaxFanout > 50 {
		return o, InvalidOptionsError{Field: "max_fanout", Value: o.MaxFanout, Reason: "must be in [1, 50]"}
	}
	return o, nil
}
