// File path: internal/common/telemetry/telemetry.go
package telemetry

import (
	"expvar"
	"sync"
	"time"
)

var (
	initOnce sync.Once

	vectorSearchTotal     *expvar.Int
	vectorSearchLatencyMS *expvar.Int

	graphExpandTotal     *expvar.Int
	graphExpandNodes     *expvar.Int
	graphExpandLatencyMS *expvar.Int

	communityLookupTotal  *expvar.Int
	communityLookupMisses *expvar.Int

	assembleTotal     *expvar.Int
	assembleEmpty     *expvar.Int
	assembleLatencyMS *expvar.Int

	ingestBatchTotal    *expvar.Int
	ingestTicketsTotal  *expvar.Int
	ingestSectionsTotal *expvar.Int
)

func ensureInit() {
	initOnce.Do(func() {
		vectorSearchTotal = expvar.NewInt("graphdesk_vector_search_total")
		vectorSearchLatencyMS = expvar.NewInt("graphdesk_vector_search_latency_ms")

		graphExpandTotal = expvar.NewInt("graphdesk_graph_expand_total")
		graphExpandNodes = expvar.NewInt("graphdesk_graph_expand_nodes")
		graphExpandLatencyMS = expvar.NewInt("graphdesk_graph_expand_latency_ms")

		communityLookupTotal = expvar.NewInt("graphdesk_community_lookup_total")
		communityLookupMisses = expvar.NewInt("graphdesk_community_lookup_misses")

		assembleTotal = expvar.NewInt("graphdesk_assemble_total")
		assembleEmpty = expvar.NewInt("graphdesk_assemble_empty_total")
		assembleLatencyMS = expvar.NewInt("graphdesk_assemble_latency_ms")

		ingestBatchTotal = expvar.NewInt("graphdesk_ingest_batches_total")
		ingestTicketsTotal = expvar.NewInt("graphdesk_ingest_tickets_total")
		ingestSectionsTotal = expvar.NewInt("graphdesk_ingest_sections_total")
	})
}

// RecordVectorSearch accumulates search counts and latency.
func RecordVectorSearch(duration time.Duration) {
	ensureInit()
	vectorSearchTotal.Add(1)
	vectorSearchLatencyMS.Add(duration.Milliseconds())
}

// RecordGraphExpand accumulates expansion counts, discovered node totals and
// latency.
func RecordGraphExpand(nodes int, duration time.Duration) {
	ensureInit()
	graphExpandTotal.Add(1)
	graphExpandNodes.Add(int64(nodes))
	graphExpandLatencyMS.Add(duration.Milliseconds())
}

// RecordCommunityLookup counts summary lookups; a miss is a lookup for an id
// with no precomputed summary.
func RecordCommunityLookup(hit bool) {
	ensureInit()
	communityLookupTotal.Add(1)
	if !hit {
		communityLookupMisses.Add(1)
	}
}

// RecordAssemble counts context assemblies and empty-bundle outcomes.
func RecordAssemble(empty bool, duration time.Duration) {
	ensureInit()
	assembleTotal.Add(1)
	if empty {
		assembleEmpty.Add(1)
	}
	assembleLatencyMS.Add(duration.Milliseconds())
}

// RecordIngestBatch accumulates ingestion counters.
func RecordIngestBatch(tickets, sections int) {
	ensureInit()
	ingestBatchTotal.Add(1)
	ingestTicketsTotal.Add(int64(tickets))
	ingestSectionsTotal.Add(int64(sections))
}
