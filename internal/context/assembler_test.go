// File path: internal/context/assembler_test.go
package context

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/graphdesk/graphdesk/internal/community"
	"github.com/graphdesk/graphdesk/internal/embedding"
	"github.com/graphdesk/graphdesk/internal/graph"
	"github.com/graphdesk/graphdesk/internal/graph/memory"
	"github.com/graphdesk/graphdesk/internal/ticket"
	"github.com/graphdesk/graphdesk/internal/vector"
)

type failingEmbedder struct{ err error }

func (f failingEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return nil, f.err
}
func (f failingEmbedder) Name() string { return "failing" }

type failingExpander struct{ err error }

func (f failingExpander) Expand(ctx context.Context, seedIDs []string, opts graph.ExpandOptions) (*graph.Expansion, error) {
	return nil, f.err
}

type recordingExpander struct {
	inner  Expander
	called bool
}

func (r *recordingExpander) Expand(ctx context.Context, seedIDs []string, opts graph.ExpandOptions) (*graph.Expansion, error) {
	r.called = true
	return r.inner.Expand(ctx, seedIDs, opts)
}

// fixture wires a local embedding provider, a flat index, an in-memory graph
// and an empty community index around two linked tickets:
// T1 carries three sections, T2 carries two, SIMILAR_TO score 0.8.
type fixture struct {
	provider  *embedding.LocalProvider
	index     *vector.Index
	store     *memory.Service
	summaries *community.Index
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		provider:  embedding.NewLocalProvider(embedding.Config{Dimension: 64}),
		index:     vector.New(vector.Config{Path: t.TempDir() + "/index.gob", Dimension: 64}),
		store:     memory.NewService(),
		summaries: community.NewIndex(),
	}
	ctx := context.Background()
	if err := f.store.UpsertTickets(ctx, []ticket.Ticket{
		{ID: "T1", Summary: "payment gateway timeout"},
		{ID: "T2", Summary: "checkout payment fails"},
	}); err != nil {
		t.Fatalf("upsert tickets: %v", err)
	}

	sections := []ticket.Section{
		{ID: "T1_summary", TicketID: "T1", Key: "summary", Text: "payment gateway timeout"},
		{ID: "T1_description", TicketID: "T1", Key: "description", Text: "gateway times out during checkout payment"},
		{ID: "T1_resolution", TicketID: "T1", Key: "resolution", Text: "increased gateway timeout to 30s"},
		{ID: "T2_summary", TicketID: "T2", Key: "summary", Text: "checkout payment fails"},
		{ID: "T2_description", TicketID: "T2", Key: "description", Text: "payment fails at final checkout step"},
	}
	if err := f.store.UpsertSections(ctx, sections); err != nil {
		t.Fatalf("upsert sections: %v", err)
	}
	if err := f.store.MergeSimilarityEdges(ctx, []ticket.SimilarityEdge{
		{From: "T1", To: "T2", Score: 0.8, Method: "cosine"},
	}); err != nil {
		t.Fatalf("merge edges: %v", err)
	}

	texts := make([]string, 0, len(sections))
	metas := make([]ticket.VectorMeta, 0, len(sections))
	for _, section := range sections {
		texts = append(texts, section.Text)
		metas = append(metas, ticket.VectorMeta{
			TicketID: section.TicketID, SectionID: section.ID, SectionKey: section.Key,
		})
	}
	vectors, err := f.provider.EmbedDocuments(ctx, texts)
	if err != nil {
		t.Fatalf("embed sections: %v", err)
	}
	if err := f.index.Add(texts, vectors, metas); err != nil {
		t.Fatalf("index add: %v", err)
	}
	return f
}

func (f *fixture) assembler() *Assembler {
	return NewAssembler(f.provider, f.index, f.store, f.summaries, 0)
}

func TestAssembleScenarioASeedAndExpansion(t *testing.T) {
	f := newFixture(t)
	bundle, err := f.assembler().Assemble(context.Background(), "payment gateway timeout",
		Options{TopKSections: 5, Hops: 1, Threshold: 0.7, MaxFanout: 10})
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	if bundle.Empty {
		t.Fatalf("expected non-empty bundle")
	}
	tickets := map[string]bool{}
	for _, id := range bundle.Provenance.TicketIDs {
		tickets[id] = true
	}
	if !tickets["T1"] || !tickets["T2"] {
		t.Fatalf("provenance should contain T1 and T2, got %v", bundle.Provenance.TicketIDs)
	}
	var t2Expanded bool
	for _, id := range bundle.Graph.ExpandedIDs {
		if id == "T2" {
			t2Expanded = true
		}
	}
	seedT1 := false
	for _, id := range bundle.Graph.SeedIDs {
		if id == "T1" {
			seedT1 = true
		}
	}
	if !seedT1 {
		t.Fatalf("T1 should be a seed, seeds=%v", bundle.Graph.SeedIDs)
	}
	if len(bundle.Graph.SeedIDs) < 2 && !t2Expanded {
		t.Fatalf("T2 should be reachable via the 0.8 edge, expanded=%v", bundle.Graph.ExpandedIDs)
	}
}

func TestAssembleScenarioBThresholdExcludesEdge(t *testing.T) {
	f := newFixture(t)
	// Only T1 sections in the index, so T2 can arrive solely via expansion.
	f.index = vector.New(vector.Config{Path: t.TempDir() + "/index.gob", Dimension: 64})
	ctx := context.Background()
	texts := []string{"payment gateway timeout"}
	vectors, err := f.provider.EmbedDocuments(ctx, texts)
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if err := f.index.Add(texts, vectors, []ticket.VectorMeta{
		{TicketID: "T1", SectionID: "T1_summary", SectionKey: "summary"},
	}); err != nil {
		t.Fatalf("add: %v", err)
	}

	bundle, err := f.assembler().Assemble(ctx, "payment gateway timeout",
		Options{TopKSections: 5, Hops: 1, Threshold: 0.9, MaxFanout: 10})
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	if !reflect.DeepEqual(bundle.Provenance.TicketIDs, []string{"T1"}) {
		t.Fatalf("threshold 0.9 should exclude T2, got %v", bundle.Provenance.TicketIDs)
	}
}

func TestAssembleScenarioCEmptyBundle(t *testing.T) {
	f := newFixture(t)
	f.index = vector.New(vector.Config{Path: t.TempDir() + "/index.gob", Dimension: 64})
	expander := &recordingExpander{inner: f.store}
	assembler := NewAssembler(f.provider, f.index, expander, f.summaries, 0)

	bundle, err := assembler.Assemble(context.Background(), "anything", Options{})
	if err != nil {
		t.Fatalf("empty index must not error: %v", err)
	}
	if !bundle.Empty {
		t.Fatalf("expected flagged empty bundle")
	}
	if len(bundle.Sections) != 0 || bundle.Provenance.TicketCount != 0 {
		t.Fatalf("empty bundle must carry no content: %+v", bundle)
	}
	if expander.called {
		t.Fatalf("expand must not run when the seed set is empty")
	}
}

func TestAssembleScenarioDMissingSummariesSkipped(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if err := f.store.SetCommunities(ctx, map[string]int64{"T1": 5, "T2": 5}); err != nil {
		t.Fatalf("set communities: %v", err)
	}
	// Summary table never built: lookups miss.
	bundle, err := f.assembler().Assemble(ctx, "payment gateway timeout",
		Options{TopKSections: 5, Hops: 1, Threshold: 0.7, MaxFanout: 10})
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	if len(bundle.Communities) != 0 {
		t.Fatalf("no summaries exist, communities must be empty: %+v", bundle.Communities)
	}
	if bundle.Provenance.TicketCount == 0 {
		t.Fatalf("tickets must still appear in provenance")
	}
	if !reflect.DeepEqual(bundle.Provenance.CommunityIDs, []int64{5}) {
		t.Fatalf("discovered community ids still belong in provenance, got %v", bundle.Provenance.CommunityIDs)
	}
}

func TestAssembleDeterminism(t *testing.T) {
	f := newFixture(t)
	assembler := f.assembler()
	opts := Options{TopKSections: 5, Hops: 1, Threshold: 0.7, MaxFanout: 10}

	first, err := assembler.Assemble(context.Background(), "payment gateway timeout", opts)
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	second, err := assembler.Assemble(context.Background(), "payment gateway timeout", opts)
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	a, _ := json.Marshal(first)
	b, _ := json.Marshal(second)
	if string(a) != string(b) {
		t.Fatalf("bundles differ across identical calls:\n%s\n%s", a, b)
	}
}

func TestAssembleProvenanceCompleteness(t *testing.T) {
	f := newFixture(t)
	bundle, err := f.assembler().Assemble(context.Background(), "checkout payment fails",
		Options{TopKSections: 5, Hops: 1, Threshold: 0.7, MaxFanout: 10})
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	inNodes := map[string]bool{}
	for _, id := range append(append([]string{}, bundle.Graph.SeedIDs...), bundle.Graph.ExpandedIDs...) {
		inNodes[id] = true
	}
	inSections := map[string]bool{}
	sectionIDs := map[string]bool{}
	for _, section := range bundle.Sections {
		inSections[section.TicketID] = true
		sectionIDs[section.SectionID] = true
	}
	for _, id := range bundle.Provenance.TicketIDs {
		if !inNodes[id] && !inSections[id] {
			t.Fatalf("provenance ticket %s contributed nothing inspectable", id)
		}
	}
	for _, id := range bundle.Provenance.SectionIDs {
		if !sectionIDs[id] {
			t.Fatalf("provenance section %s missing from sections", id)
		}
	}
}

func TestAssembleSectionsDedupedAndRanked(t *testing.T) {
	f := newFixture(t)
	// Duplicate record for an existing section id: first occurrence must win.
	ctx := context.Background()
	vectors, err := f.provider.EmbedDocuments(ctx, []string{"payment gateway timeout"})
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if err := f.index.Add([]string{"payment gateway timeout"}, vectors, []ticket.VectorMeta{
		{TicketID: "T1", SectionID: "T1_summary", SectionKey: "summary"},
	}); err != nil {
		t.Fatalf("add: %v", err)
	}

	bundle, err := f.assembler().Assemble(ctx, "payment gateway timeout",
		Options{TopKSections: 10, Hops: 1, Threshold: 0.7, MaxFanout: 10})
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	seen := map[string]int{}
	for i, section := range bundle.Sections {
		seen[section.SectionID]++
		if i > 0 && bundle.Sections[i-1].Score < section.Score {
			t.Fatalf("sections not ranked descending at %d", i)
		}
	}
	if seen["T1_SUMMARY"] != 1 {
		t.Fatalf("duplicate section ids must collapse to one entry, got %d", seen["T1_SUMMARY"])
	}
}

func TestAssembleEmbeddingErrorPropagates(t *testing.T) {
	f := newFixture(t)
	assembler := NewAssembler(failingEmbedder{err: fmt.Errorf("provider down")}, f.index, f.store, f.summaries, 0)
	_, err := assembler.Assemble(context.Background(), "q", Options{})
	var embErr EmbeddingError
	if !errors.As(err, &embErr) {
		t.Fatalf("expected EmbeddingError, got %v", err)
	}
}

func TestAssembleGraphFailureReturnsNoPartialBundle(t *testing.T) {
	f := newFixture(t)
	assembler := NewAssembler(f.provider, f.index, failingExpander{err: fmt.Errorf("connection refused")}, f.summaries, 0)
	bundle, err := assembler.Assemble(context.Background(), "payment gateway timeout", Options{})
	var storageErr StorageError
	if !errors.As(err, &storageErr) {
		t.Fatalf("expected StorageError, got %v", err)
	}
	if storageErr.Store != "graph" {
		t.Fatalf("expected graph store failure, got %s", storageErr.Store)
	}
	if bundle != nil {
		t.Fatalf("no partial bundle on store failure")
	}
}

func TestAssembleDimensionErrorPropagatesUnchanged(t *testing.T) {
	f := newFixture(t)
	narrow := embedding.NewLocalProvider(embedding.Config{Dimension: 8})
	assembler := NewAssembler(narrow, f.index, f.store, f.summaries, 0)
	_, err := assembler.Assemble(context.Background(), "q", Options{})
	var dimErr vector.DimensionError
	if !errors.As(err, &dimErr) {
		t.Fatalf("expected DimensionError, got %v", err)
	}
}

func TestAssembleOptionValidation(t *testing.T) {
	f := newFixture(t)
	assembler := f.assembler()
	cases := []Options{
		{TopKSections: 51},
		{TopKSections: -1},
		{Hops: 4},
		{MaxFanout: 51},
		{Threshold: 1.5},
	}
	for _, opts := range cases {
		if _, err := assembler.Assemble(context.Background(), "q", opts); err == nil {
			t.Fatalf("expected validation error for %+v", opts)
		}
	}
	// Explicit zero threshold is legal.
	if _, err := assembler.Assemble(context.Background(), "payment", Options{}.WithThreshold(0)); err != nil {
		t.Fatalf("threshold 0 should be accepted: %v", err)
	}
}
