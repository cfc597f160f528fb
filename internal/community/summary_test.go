// File path: internal/community/summary_test.go
package community

import (
	"context"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/graphdesk/graphdesk/internal/graph"
	"github.com/graphdesk/graphdesk/internal/ticket"
)

func member(id string, degree int, texts ...string) graph.Member {
	sections := make([]ticket.Section, 0, len(texts))
	for i, text := range texts {
		sections = append(sections, ticket.Section{
			ID:       id + "_s" + string(rune('a'+i)),
			TicketID: id,
			Key:      "description",
			Text:     text,
		})
	}
	return graph.Member{
		Ticket:   ticket.Ticket{ID: id, Summary: "summary " + id, Project: "OPS"},
		Degree:   degree,
		Sections: sections,
	}
}

func TestBuildRanksTopTicketsByDegree(t *testing.T) {
	members := map[int64][]graph.Member{
		1: {
			member("T1", 2),
			member("T2", 5),
			member("T3", 5),
			member("T4", 1),
		},
	}
	summaries := Build(members)
	if len(summaries) != 1 {
		t.Fatalf("expected 1 summary, got %d", len(summaries))
	}
	s := summaries[0]
	if s.Size != 4 {
		t.Fatalf("size should count all members, got %d", s.Size)
	}
	got := []string{s.TopTickets[0].ID, s.TopTickets[1].ID, s.TopTickets[2].ID}
	if !reflect.DeepEqual(got, []string{"T2", "T3", "T1"}) {
		t.Fatalf("degree ranking wrong: %v", got)
	}
}

func TestBuildFrequentTermsAndReason(t *testing.T) {
	members := map[int64][]graph.Member{
		3: {
			member("T1", 1, "Payment gateway timeout during checkout"),
			member("T2", 1, "payment gateway returns timeout error"),
		},
	}
	s := Build(members)[0]
	if len(s.FrequentTerms) == 0 {
		t.Fatalf("expected frequent terms")
	}
	if s.FrequentTerms[0] != "payment" || s.FrequentTerms[1] != "gateway" || s.FrequentTerms[2] != "timeout" {
		t.Fatalf("term frequency ranking wrong: %v", s.FrequentTerms)
	}
	if !strings.HasPrefix(s.Reason, "Common themes: payment, gateway, timeout") {
		t.Fatalf("unexpected reason: %q", s.Reason)
	}
	for _, term := range s.FrequentTerms {
		if term == "the" || term == "and" || len(term) < 3 {
			t.Fatalf("stopword or short token leaked: %q", term)
		}
	}
}

func TestBuildNoSectionTextFallsBackReason(t *testing.T) {
	members := map[int64][]graph.Member{
		7: {member("T1", 0)},
	}
	s := Build(members)[0]
	if s.Reason != "Similar tickets" {
		t.Fatalf("expected fallback reason, got %q", s.Reason)
	}
	if len(s.FrequentTerms) != 0 {
		t.Fatalf("expected no terms, got %v", s.FrequentTerms)
	}
}

func TestBuildTermTiesKeepFirstSeenOrder(t *testing.T) {
	members := map[int64][]graph.Member{
		1: {member("T1", 1, "zebra apple zebra apple banana")},
	}
	s := Build(members)[0]
	if !reflect.DeepEqual(s.FrequentTerms, []string{"zebra", "apple", "banana"}) {
		t.Fatalf("tie order should be first-seen, got %v", s.FrequentTerms)
	}
}

func TestIndexLookupMissReturnsNil(t *testing.T) {
	ix := NewIndex()
	ix.Replace([]Summary{{CommunityID: 1, Size: 2, Reason: "Similar tickets"}})
	if got := ix.Lookup(1); got == nil || got.Size != 2 {
		t.Fatalf("expected hit for community 1, got %+v", got)
	}
	if got := ix.Lookup(99); got != nil {
		t.Fatalf("miss must return nil, got %+v", got)
	}
}

func TestIndexReplaceSwapsSnapshot(t *testing.T) {
	ix := NewIndex()
	ix.Replace([]Summary{{CommunityID: 1}})
	ix.Replace([]Summary{{CommunityID: 2}, {CommunityID: 3}})
	if ix.Lookup(1) != nil {
		t.Fatalf("old snapshot entries must disappear after replace")
	}
	if ix.Len() != 2 {
		t.Fatalf("expected 2 summaries, got %d", ix.Len())
	}
	all := ix.All()
	if all[0].CommunityID != 2 || all[1].CommunityID != 3 {
		t.Fatalf("All should order by community id, got %+v", all)
	}
}

func TestStoreSaveLoadRoundTrip(t *testing.T) {
	store, err := OpenStore(filepath.Join(t.TempDir(), "communities.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	in := []Summary{
		{
			CommunityID:   1,
			Size:          3,
			TopTickets:    []TicketRank{{ID: "T1", Summary: "login fails", Project: "OPS", Degree: 4}},
			FrequentTerms: []string{"login", "session"},
			Reason:        "Common themes: login, session",
		},
		{CommunityID: 2, Size: 1, Reason: "Similar tickets"},
	}
	ctx := context.Background()
	if err := store.SaveAll(ctx, in); err != nil {
		t.Fatalf("save: %v", err)
	}
	out, err := store.LoadAll(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 summaries, got %d", len(out))
	}
	if out[0].TopTickets[0].ID != "T1" || out[0].FrequentTerms[1] != "session" {
		t.Fatalf("round trip lost data: %+v", out[0])
	}

	// A second save replaces, not appends.
	if err := store.SaveAll(ctx, in[:1]); err != nil {
		t.Fatalf("second save: %v", err)
	}
	out, err = store.LoadAll(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("save should replace the table, got %d rows", len(out))
	}
}
