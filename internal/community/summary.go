// File path: internal/community/summary.go
package community

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/graphdesk/graphdesk/internal/graph"
)

const (
	topTicketCount   = 3
	frequentTermsMax = 8
	reasonTermsMax   = 5
)

// TicketRank is one representative ticket of a community, ranked by its
// similarity degree.
type TicketRank struct {
	ID      string `json:"id"`
	Summary string `json:"summary,omitempty"`
	Project string `json:"project,omitempty"`
	Degree  int    `json:"degree"`
}

// Summary describes one detected community: its size, representative tickets
// and the frequent terms that explain why its members cluster together.
type Summary struct {
	CommunityID   int64        `json:"community_id"`
	Size          int          `json:"size"`
	TopTickets    []TicketRank `json:"top_tickets"`
	FrequentTerms []string     `json:"frequent_terms"`
	Reason        string       `json:"reason"`
}

var wordPattern = regexp.MustCompile(`\b[a-z]{3,}\b`)

var stopWords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "are": {}, "but": {}, "not": {},
	"you": {}, "all": {}, "can": {}, "was": {}, "this": {}, "that": {},
	"with": {}, "have": {}, "from": {}, "they": {}, "will": {}, "been": {},
	"has": {}, "had": {}, "were": {}, "said": {}, "their": {}, "what": {},
	"than": {}, "when": {}, "where": {}, "who": {}, "which": {}, "these": {},
	"those": {}, "then": {}, "into": {},
}

// Build derives a summary per community from its members. Output is sorted
// by community id so batch runs are reproducible.
func Build(members map[int64][]graph.Member) []Summary {
	ids := make([]int64, 0, len(members))
	for id := range members {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	summaries := make([]Summary, 0, len(ids))
	for _, id := range ids {
		summaries = append(summaries, buildOne(id, members[id]))
	}
	return summaries
}

func buildOne(id int64, members []graph.Member) Summary {
	ranked := make([]graph.Member, len(members))
	copy(ranked, members)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Degree != ranked[j].Degree {
			return ranked[i].Degree > ranked[j].Degree
		}
		return ranked[i].Ticket.ID < ranked[j].Ticket.ID
	})

	top := make([]TicketRank, 0, topTicketCount)
	for _, member := range ranked {
		if len(top) == topTicketCount {
			break
		}
		top = append(top, TicketRank{
			ID:      member.Ticket.ID,
			Summary: member.Ticket.Summary,
			Project: member.Ticket.Project,
			Degree:  member.Degree,
		})
	}

	terms := frequentTerms(members, frequentTermsMax)
	reason := "Similar tickets"
	if len(terms) > 0 {
		cut := terms
		if len(cut) > reasonTermsMax {
			cut = cut[:reasonTermsMax]
		}
		reason = fmt.Sprintf("Common themes: %s", strings.Join(cut, ", "))
	}

	return Summary{
		CommunityID:   id,
		Size:          len(members),
		TopTickets:    top,
		FrequentTerms: terms,
		Reason:        reason,
	}
}

// frequentTerms counts raw term frequency over all member section text.
// Tokens are lowercase runs of at least three letters; the stopword list
// filters glue words. Ties keep first-seen order so results are stable.
func frequentTerms(members []graph.Member, limit int) []string {
	counts := make(map[string]int)
	firstSeen := make(map[string]int)
	position := 0
	for _, member := range members {
		for _, section := range member.Sections {
			for _, word := range wordPattern.FindAllString(strings.ToLower(section.Text), -1) {
				if _, stop := stopWords[word]; stop {
					continue
				}
				if _, ok := counts[word]; !ok {
					firstSeen[word] = position
					position++
				}
				counts[word]++
			}
		}
	}

	terms := make([]string, 0, len(counts))
	for word := range counts {
		terms = append(terms, word)
	}
	sort.SliceStable(terms, func(i, j int) bool {
		if counts[terms[i]] != counts[terms[j]] {
			return counts[terms[i]] > counts[terms[j]]
		}
		return firstSeen[terms[i]] < firstSeen[terms[j]]
	})
	if len(terms) > limit {
		terms = terms[:limit]
	}
	return terms
}
