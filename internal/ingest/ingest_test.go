// File path: internal/ingest/ingest_test.go
package ingest

import (
	"context"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/graphdesk/graphdesk/internal/embedding"
	"github.com/graphdesk/graphdesk/internal/graph"
	"github.com/graphdesk/graphdesk/internal/graph/memory"
	"github.com/graphdesk/graphdesk/internal/vector"
)

func TestCleanText(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"  hello   world  ", "hello world"},
		{"<p>payment <b>failed</b></p>", "payment failed"},
		{"nan", ""},
		{"null", ""},
		{"None", ""},
		{"line\none\n\ttwo", "line one two"},
	}
	for _, tc := range cases {
		if got := CleanText(tc.in); got != tc.want {
			t.Fatalf("CleanText(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestLoadCSV(t *testing.T) {
	data := `key,project,status,priority,Summary,description,resolution
OPS-1,OPS,Closed,High,Payment gateway timeout,Gateway times out during checkout payments,Increased the gateway timeout window
OPS-2,OPS,Open,Low,Login page slow,,
`
	parsed, errCount, err := LoadCSV(strings.NewReader(data), 0)
	if err != nil {
		t.Fatalf("load csv: %v", err)
	}
	if errCount != 0 {
		t.Fatalf("expected no row errors, got %d", errCount)
	}
	if len(parsed) != 2 {
		t.Fatalf("expected 2 tickets, got %d", len(parsed))
	}
	first := parsed[0]
	if first.Ticket.ID != "OPS-1" || first.Ticket.Priority != "High" {
		t.Fatalf("unexpected ticket: %+v", first.Ticket)
	}
	keys := map[string]string{}
	for _, section := range first.Sections {
		keys[section.Key] = section.ID
	}
	if keys["issue_summary"] != "OPS-1_issue_summary" {
		t.Fatalf("summary section missing: %v", keys)
	}
	if _, ok := keys["issue_description"]; !ok {
		t.Fatalf("description section missing: %v", keys)
	}
	if _, ok := keys["resolution"]; !ok {
		t.Fatalf("resolution section missing: %v", keys)
	}
	// OPS-2 has only a summary above the length floor.
	for _, section := range parsed[1].Sections {
		if section.Key == "issue_description" {
			t.Fatalf("empty description should not produce a section")
		}
	}
}

func TestLoadCSVSyntheticID(t *testing.T) {
	data := "Summary,description\nSome issue title here,A description that is long enough\n"
	parsed, _, err := LoadCSV(strings.NewReader(data), 0)
	if err != nil {
		t.Fatalf("load csv: %v", err)
	}
	if parsed[0].Ticket.ID != "CSV-0" {
		t.Fatalf("expected synthetic id, got %s", parsed[0].Ticket.ID)
	}
}

func TestLoadJSONL(t *testing.T) {
	data := `{"issue_key":"ops-3","project":"OPS","summary":"Search index stale","description":"Search results lag behind ingestion by hours","comments":["First comment with enough text","Second comment with enough text"]}
not json
{"id":"OPS-4","summary":"Export fails","text":"Full export text that is definitely longer than twenty characters"}
`
	parsed, errCount, err := LoadJSONL(strings.NewReader(data), 0)
	if err != nil {
		t.Fatalf("load jsonl: %v", err)
	}
	if errCount != 1 {
		t.Fatalf("expected 1 malformed line, got %d", errCount)
	}
	if len(parsed) != 2 {
		t.Fatalf("expected 2 tickets, got %d", len(parsed))
	}
	if parsed[0].Ticket.ID != "OPS-3" {
		t.Fatalf("ids should normalize to upper case, got %s", parsed[0].Ticket.ID)
	}
	commentSections := 0
	for _, section := range parsed[0].Sections {
		if strings.HasPrefix(section.Key, "comments_") {
			commentSections++
		}
	}
	if commentSections != 2 {
		t.Fatalf("expected one section per comment, got %d", commentSections)
	}
	var hasMain bool
	for _, section := range parsed[1].Sections {
		if section.ID == "OPS-4_main_text" {
			hasMain = true
		}
	}
	if !hasMain {
		t.Fatalf("text field should become the main section: %+v", parsed[1].Sections)
	}
}

func TestPipelineRunCommitsGraphThenIndex(t *testing.T) {
	provider := embedding.NewLocalProvider(embedding.Config{Dimension: 32})
	index := vector.New(vector.Config{Path: filepath.Join(t.TempDir(), "index.gob"), Dimension: 32})
	store := memory.NewService()
	pipeline := NewPipeline(provider, index, store)

	data := `key,Summary,description
OPS-1,Payment gateway timeout,Gateway times out during checkout payments
OPS-2,Checkout payment fails,Payment fails at the final checkout step
`
	parsed, _, err := LoadCSV(strings.NewReader(data), 0)
	if err != nil {
		t.Fatalf("load csv: %v", err)
	}
	stats, err := pipeline.Run(context.Background(), parsed)
	if err != nil {
		t.Fatalf("pipeline run: %v", err)
	}
	if stats.Tickets != 2 || stats.Sections == 0 || stats.Vectors != stats.Sections {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if stats.RunID == "" {
		t.Fatalf("run id should be set")
	}

	graphStats, err := store.Stats(context.Background())
	if err != nil {
		t.Fatalf("graph stats: %v", err)
	}
	if graphStats.Tickets != 2 {
		t.Fatalf("graph should hold both tickets: %+v", graphStats)
	}
	if index.Len() != stats.Vectors {
		t.Fatalf("index should hold %d vectors, has %d", stats.Vectors, index.Len())
	}

	// Every stored vector must be unit length.
	for id, vectors := range index.VectorsByTicket() {
		for _, vec := range vectors {
			var sum float64
			for _, v := range vec {
				sum += float64(v) * float64(v)
			}
			if math.Abs(math.Sqrt(sum)-1.0) > 1e-4 {
				t.Fatalf("vector for %s not normalized: %f", id, math.Sqrt(sum))
			}
		}
	}
}

func TestLinkSimilarCreatesSymmetricNeighborhood(t *testing.T) {
	provider := embedding.NewLocalProvider(embedding.Config{Dimension: 32})
	index := vector.New(vector.Config{Path: filepath.Join(t.TempDir(), "index.gob"), Dimension: 32})
	store := memory.NewService()
	pipeline := NewPipeline(provider, index, store)

	data := `key,Summary,description
OPS-1,Payment gateway timeout,Gateway times out during checkout payment flow
OPS-2,Payment gateway timeout,Gateway times out during checkout payment flow
OPS-3,Totally unrelated printer jam,The office printer jams on recycled paper stock
`
	parsed, _, err := LoadCSV(strings.NewReader(data), 0)
	if err != nil {
		t.Fatalf("load csv: %v", err)
	}
	if _, err := pipeline.Run(context.Background(), parsed); err != nil {
		t.Fatalf("pipeline run: %v", err)
	}

	count, err := LinkSimilar(context.Background(), index, store, 0.95, 10)
	if err != nil {
		t.Fatalf("link: %v", err)
	}
	if count == 0 {
		t.Fatalf("identical tickets should link")
	}

	exp, err := store.Expand(context.Background(), []string{"OPS-1"}, graph.ExpandOptions{Hops: 1, Threshold: 0.9, MaxFanout: 10})
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	found := map[string]bool{}
	for _, node := range exp.Nodes {
		found[node.Ticket.ID] = true
	}
	if !found["OPS-2"] {
		t.Fatalf("OPS-2 should be in OPS-1's neighborhood: %v", found)
	}
	if found["OPS-3"] {
		t.Fatalf("unrelated ticket should not link at 0.95: %v", found)
	}
}
