// File path: internal/ticket/types.go
package ticket

import "strings"

// Ticket represents one support issue tracked by the system. Attrs carries
// ingestion-defined fields (reporter, assignee, timestamps) that core logic
// never depends on; the typed fields are the ones ranking and provenance use.
type Ticket struct {
	ID          string            `json:"id"`
	Project     string            `json:"project,omitempty"`
	Status      string            `json:"status,omitempty"`
	Priority    string            `json:"priority,omitempty"`
	IssueType   string            `json:"issue_type,omitempty"`
	Summary     string            `json:"summary,omitempty"`
	CommunityID *int64            `json:"community_id,omitempty"`
	Attrs       map[string]string `json:"attrs,omitempty"`
}

// Section is a labeled text fragment belonging to exactly one ticket. The key
// set is open: ingestion decides which keys exist (summary, description,
// resolution, comment_3, ...). Text is immutable after ingestion and is
// embedded exactly once at that point.
type Section struct {
	ID       string `json:"id"`
	TicketID string `json:"ticket_id"`
	Key      string `json:"key"`
	Text     string `json:"text"`
}

// SimilarityEdge links two tickets with a cosine similarity score in [0,1].
// Edges are stored directed but consumers must treat them as symmetric:
// traversal that only follows one direction silently drops context.
type SimilarityEdge struct {
	From   string  `json:"from"`
	To     string  `json:"to"`
	Score  float64 `json:"score"`
	Method string  `json:"method,omitempty"`
}

// VectorMeta is the metadata stored alongside each section vector in the
// index. One record per section.
type VectorMeta struct {
	TicketID   string `json:"ticket_id"`
	SectionID  string `json:"section_id"`
	SectionKey string `json:"section_key"`
}

// NormalizeID canonicalizes ticket and section identifiers for map keys and
// comparisons.
func NormalizeID(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}
