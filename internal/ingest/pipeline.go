// File path: internal/ingest/pipeline.go
package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tmc/langchaingo/textsplitter"
	"golang.org/x/sync/errgroup"

	"github.com/graphdesk/graphdesk/internal/common"
	"github.com/graphdesk/graphdesk/internal/common/telemetry"
	"github.com/graphdesk/graphdesk/internal/embedding"
	"github.com/graphdesk/graphdesk/internal/graph"
	"github.com/graphdesk/graphdesk/internal/ticket"
	"github.com/graphdesk/graphdesk/internal/vector"
)

const (
	embedChunkSize    = 2000
	embedChunkOverlap = 200
	embedWorkers      = 8
)

// Stats reports one ingestion run.
type Stats struct {
	RunID    string `json:"run_id"`
	Tickets  int    `json:"tickets"`
	Sections int    `json:"sections"`
	Vectors  int    `json:"vectors"`
	Errors   int    `json:"errors"`
}

// Pipeline loads parsed tickets into the graph and the vector index. Commit
// order is fixed: graph upserts, then vector adds, then snapshot persist.
// The query path runs single-process with ingestion, so it never observes a
// vector hit whose ticket is missing from the graph.
type Pipeline struct {
	provider embedding.Provider
	index    *vector.Index
	store    graph.Store
	splitter textsplitter.RecursiveCharacter
}

func NewPipeline(provider embedding.Provider, index *vector.Index, store graph.Store) *Pipeline {
	return &Pipeline{
		provider: provider,
		index:    index,
		store:    store,
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(embedChunkSize),
			textsplitter.WithChunkOverlap(embedChunkOverlap),
		),
	}
}

// Run commits one batch of parsed tickets.
func (p *Pipeline) Run(ctx context.Context, parsed []ParsedTicket) (Stats, error) {
	stats := Stats{RunID: uuid.NewString()}
	if len(parsed) == 0 {
		return stats, nil
	}
	start := time.Now()

	tickets := make([]ticket.Ticket, 0, len(parsed))
	sections := make([]ticket.Section, 0, len(parsed))
	for _, item := range parsed {
		tickets = append(tickets, item.Ticket)
		sections = append(sections, item.Sections...)
	}

	if err := p.store.UpsertTickets(ctx, tickets); err != nil {
		return stats, fmt.Errorf("upsert tickets: %w", err)
	}
	if err := p.store.UpsertSections(ctx, sections); err != nil {
		return stats, fmt.Errorf("upsert sections: %w", err)
	}
	stats.Tickets = len(tickets)
	stats.Sections = len(sections)

	vectors, err := p.embedSections(ctx, sections)
	if err != nil {
		return stats, err
	}

	texts := make([]string, len(sections))
	metas := make([]ticket.VectorMeta, len(sections))
	for i, section := range sections {
		texts[i] = section.Text
		metas[i] = ticket.VectorMeta{
			TicketID:   section.TicketID,
			SectionID:  section.ID,
			SectionKey: section.Key,
		}
	}
	if err := p.index.Add(texts, vectors, metas); err != nil {
		return stats, fmt.Errorf("index add: %w", err)
	}
	if err := p.index.Persist(); err != nil {
		return stats, fmt.Errorf("index persist: %w", err)
	}
	stats.Vectors = len(vectors)

	telemetry.RecordIngestBatch(stats.Tickets, stats.Sections)
	common.Logger().Info("ingest: batch committed",
		"run_id", stats.RunID,
		"tickets", stats.Tickets,
		"sections", stats.Sections,
		"elapsed", time.Since(start))
	return stats, nil
}

// embedSections produces one unit vector per section. Long text is split
// into overlapping chunks, embedded in document mode, then mean-pooled back
// into a single vector. Sections embed concurrently; output order matches
// input order.
func (p *Pipeline) embedSections(ctx context.Context, sections []ticket.Section) ([][]float32, error) {
	vectors := make([][]float32, len(sections))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(embedWorkers)
	for i, section := range sections {
		g.Go(func() error {
			chunks, err := p.splitter.SplitText(section.Text)
			if err != nil || len(chunks) == 0 {
				chunks = []string{section.Text}
			}
			embedded, err := p.provider.EmbedDocuments(gctx, chunks)
			if err != nil {
				return fmt.Errorf("embed section %s: %w", section.ID, err)
			}
			vectors[i] = meanPool(embedded)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}

// meanPool averages unit vectors and renormalizes the result.
func meanPool(vectors [][]float32) []float32 {
	if len(vectors) == 0 {
		return nil
	}
	if len(vectors) == 1 {
		return vectors[0]
	}
	pooled := make([]float32, len(vectors[0]))
	for _, vec := range vectors {
		for i, v := range vec {
			pooled[i] += v
		}
	}
	n := float32(len(vectors))
	for i := range pooled {
		pooled[i] /= n
	}
	return embedding.Normalize(pooled)
}
