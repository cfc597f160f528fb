// File path: internal/api/server_test.go
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/graphdesk/graphdesk/internal/community"
	ctxassembly "github.com/graphdesk/graphdesk/internal/context"
	"github.com/graphdesk/graphdesk/internal/embedding"
	"github.com/graphdesk/graphdesk/internal/graph/memory"
	"github.com/graphdesk/graphdesk/internal/ticket"
	"github.com/graphdesk/graphdesk/internal/vector"
)

func newTestServer(t *testing.T) (*Server, *memory.Service) {
	t.Helper()
	provider := embedding.NewLocalProvider(embedding.Config{Dimension: 32})
	index := vector.New(vector.Config{Path: filepath.Join(t.TempDir(), "index.gob"), Dimension: 32})
	store := memory.NewService()
	summaries := community.NewIndex()
	assembler := ctxassembly.NewAssembler(provider, index, store, summaries, 5*time.Second)
	return NewServer(assembler, provider, index, store, summaries, nil), store
}

func seedServer(t *testing.T, s *Server, store *memory.Service) {
	t.Helper()
	ctx := context.Background()
	if err := store.UpsertTickets(ctx, []ticket.Ticket{
		{ID: "T1", Summary: "payment gateway timeout"},
		{ID: "T2", Summary: "checkout payment fails"},
	}); err != nil {
		t.Fatalf("upsert tickets: %v", err)
	}
	sections := []ticket.Section{
		{ID: "T1_summary", TicketID: "T1", Key: "summary", Text: "payment gateway timeout"},
		{ID: "T2_summary", TicketID: "T2", Key: "summary", Text: "checkout payment fails"},
	}
	if err := store.UpsertSections(ctx, sections); err != nil {
		t.Fatalf("upsert sections: %v", err)
	}
	if err := store.MergeSimilarityEdges(ctx, []ticket.SimilarityEdge{
		{From: "T1", To: "T2", Score: 0.8, Method: "cosine"},
	}); err != nil {
		t.Fatalf("merge edges: %v", err)
	}
	texts := []string{sections[0].Text, sections[1].Text}
	vectors, err := s.provider.EmbedDocuments(ctx, texts)
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if err := s.index.Add(texts, vectors, []ticket.VectorMeta{
		{TicketID: "T1", SectionID: "T1_summary", SectionKey: "summary"},
		{TicketID: "T2", SectionID: "T2_summary", SectionKey: "summary"},
	}); err != nil {
		t.Fatalf("index add: %v", err)
	}
}

func TestContextEndpoint(t *testing.T) {
	s, store := newTestServer(t)
	seedServer(t, s, store)

	body := `{"query":"payment gateway timeout","top_k_sections":5,"num_hops":1,"similarity_threshold":0.7,"max_fanout":10}`
	req := httptest.NewRequest(http.MethodPost, "/v1/context", strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var bundle ctxassembly.ContextBundle
	if err := json.Unmarshal(rec.Body.Bytes(), &bundle); err != nil {
		t.Fatalf("decode bundle: %v", err)
	}
	if bundle.Empty {
		t.Fatalf("expected non-empty bundle")
	}
	if bundle.Provenance.TicketCount == 0 || len(bundle.Sections) == 0 {
		t.Fatalf("bundle incomplete: %+v", bundle)
	}
}

func TestContextEndpointValidation(t *testing.T) {
	s, _ := newTestServer(t)

	cases := []string{
		`{}`,
		`{"query":"   "}`,
		`{"query":"x","num_hops":9}`,
		`not json`,
	}
	for _, body := range cases {
		req := httptest.NewRequest(http.MethodPost, "/v1/context", strings.NewReader(body))
		rec := httptest.NewRecorder()
		s.Router().ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("body %q: expected 400, got %d", body, rec.Code)
		}
	}
}

func TestContextEndpointEmptyBundle(t *testing.T) {
	s, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/context", strings.NewReader(`{"query":"anything"}`))
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("empty result is not an error, got %d", rec.Code)
	}
	var bundle ctxassembly.ContextBundle
	if err := json.Unmarshal(rec.Body.Bytes(), &bundle); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !bundle.Empty {
		t.Fatalf("expected flagged empty bundle")
	}
}

func TestSearchEndpoint(t *testing.T) {
	s, store := newTestServer(t)
	seedServer(t, s, store)

	req := httptest.NewRequest(http.MethodGet, "/v1/search?q=payment+gateway+timeout&k=1", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var payload struct {
		Results []searchResult `json:"results"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(payload.Results) != 1 || payload.Results[0].TicketID != "T1" {
		t.Fatalf("unexpected results: %+v", payload.Results)
	}

	rec = httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/search", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing q should 400, got %d", rec.Code)
	}
}

func TestSubgraphEndpoint(t *testing.T) {
	s, store := newTestServer(t)
	seedServer(t, s, store)

	req := httptest.NewRequest(http.MethodGet, "/v1/graph/subgraph?limit=10", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var payload struct {
		Nodes []json.RawMessage `json:"nodes"`
		Edges []json.RawMessage `json:"edges"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(payload.Nodes) != 2 || len(payload.Edges) != 1 {
		t.Fatalf("expected 2 nodes and 1 edge, got %d/%d", len(payload.Nodes), len(payload.Edges))
	}
}

func TestIngestEndpoint(t *testing.T) {
	s, _ := newTestServer(t)

	csvPath := filepath.Join(t.TempDir(), "tickets.csv")
	data := `key,Summary,description
OPS-1,Payment gateway timeout,Gateway times out during checkout payments
OPS-2,Checkout payment fails,Payment fails at the final checkout step
`
	if err := os.WriteFile(csvPath, []byte(data), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}

	body, _ := json.Marshal(map[string]any{"csv_path": csvPath})
	req := httptest.NewRequest(http.MethodPost, "/v1/ingest", strings.NewReader(string(body)))
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp ingestResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Stats.Tickets != 2 {
		t.Fatalf("expected 2 ingested tickets: %+v", resp)
	}
	if resp.Communities == 0 {
		t.Fatalf("memory backend detection should produce communities: %+v", resp)
	}

	// Both-paths and no-path requests are rejected.
	for _, bad := range []string{`{}`, `{"csv_path":"a","jsonl_path":"b"}`} {
		rec := httptest.NewRecorder()
		s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/ingest", strings.NewReader(bad)))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("body %q: expected 400, got %d", bad, rec.Code)
		}
	}
}

func TestStatsAndHealth(t *testing.T) {
	s, store := newTestServer(t)
	seedServer(t, s, store)

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz: expected 200, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/stats", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("stats: expected 200, got %d", rec.Code)
	}
	var payload struct {
		Vector vector.Stats `json:"vector"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Vector.TotalVectors != 2 {
		t.Fatalf("unexpected vector stats: %+v", payload.Vector)
	}
}
