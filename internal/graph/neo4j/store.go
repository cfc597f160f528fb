// File path: internal/graph/neo4j/store.go
package neo4j

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/graphdesk/graphdesk/internal/common"
	"github.com/graphdesk/graphdesk/internal/graph"
	"github.com/graphdesk/graphdesk/internal/ticket"
)

// Store is the Neo4j-backed graph.Store. Tickets and sections are nodes,
// similarity edges are SIMILAR_TO relationships carrying the cosine score.
// Hop, fanout and tie-break semantics come from graph.Walk so this backend
// expands exactly like the in-memory one.
type Store struct {
	client *Client
}

func NewStore(ctx context.Context, client *Client) (*Store, error) {
	if client == nil || client.Driver == nil {
		return nil, fmt.Errorf("neo4j: client required")
	}
	s := &Store{client: client}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) session(ctx context.Context, mode neo4j.AccessMode) neo4j.SessionWithContext {
	return s.client.Driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   mode,
		DatabaseName: s.client.Database,
	})
}

// ensureSchema creates uniqueness constraints. Best effort: restricted users
// may lack schema privileges, which leaves MERGE correctness intact.
func (s *Store) ensureSchema(ctx context.Context) error {
	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)
	statements := []string{
		`CREATE CONSTRAINT ticket_id_unique IF NOT EXISTS FOR (t:Ticket) REQUIRE t.id IS UNIQUE`,
		`CREATE CONSTRAINT section_id_unique IF NOT EXISTS FOR (s:Section) REQUIRE s.id IS UNIQUE`,
	}
	for _, stmt := range statements {
		if res, err := session.Run(ctx, stmt, nil); err != nil {
			common.Logger().Warn("neo4j: schema init failed, continuing", "error", err)
		} else {
			_, _ = res.Consume(ctx)
		}
	}
	return nil
}

func (s *Store) write(ctx context.Context, query string, params map[string]any) error {
	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)
	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, err
		}
		return nil, res.Err()
	})
	return err
}

func (s *Store) UpsertTickets(ctx context.Context, tickets []ticket.Ticket) error {
	if len(tickets) == 0 {
		return nil
	}
	rows := make([]map[string]any, 0, len(tickets))
	for _, t := range tickets {
		id := ticket.NormalizeID(t.ID)
		if id == "" {
			continue
		}
		attrs := make(map[string]any, len(t.Attrs))
		for k, v := range t.Attrs {
			attrs["attr_"+k] = v
		}
		rows = append(rows, map[string]any{
			"id":         id,
			"project":    t.Project,
			"status":     t.Status,
			"priority":   t.Priority,
			"issue_type": t.IssueType,
			"summary":    t.Summary,
			"attrs":      attrs,
		})
	}
	// community_id is deliberately not touched: re-ingestion must not wipe
	// an assignment written by the detection job.
	return s.write(ctx, `
UNWIND $rows AS row
MERGE (t:Ticket {id: row.id})
SET t.project = row.project,
    t.status = row.status,
    t.priority = row.priority,
    t.issue_type = row.issue_type,
    t.summary = row.summary
SET t += row.attrs
`, map[string]any{"rows": rows})
}

func (s *Store) UpsertSections(ctx context.Context, sections []ticket.Section) error {
	if len(sections) == 0 {
		return nil
	}
	rows := make([]map[string]any, 0, len(sections))
	for _, sec := range sections {
		ticketID := ticket.NormalizeID(sec.TicketID)
		sectionID := ticket.NormalizeID(sec.ID)
		if ticketID == "" || sectionID == "" {
			continue
		}
		rows = append(rows, map[string]any{
			"id":        sectionID,
			"ticket_id": ticketID,
			"key":       sec.Key,
			"text":      sec.Text,
		})
	}
	return s.write(ctx, `
UNWIND $rows AS row
MATCH (t:Ticket {id: row.ticket_id})
MERGE (s:Section {id: row.id})
SET s.key = row.key, s.text = row.text
WITH t, s, row
OPTIONAL MATCH (old:Ticket)-[r:HAS_SECTION]->(s)
WHERE old.id <> row.ticket_id
DELETE r
MERGE (t)-[:HAS_SECTION]->(s)
`, map[string]any{"rows": rows})
}

func (s *Store) MergeSimilarityEdges(ctx context.Context, edges []ticket.SimilarityEdge) error {
	if len(edges) == 0 {
		return nil
	}
	rows := make([]map[string]any, 0, len(edges))
	for _, edge := range edges {
		from := ticket.NormalizeID(edge.From)
		to := ticket.NormalizeID(edge.To)
		if from == "" || to == "" || from == to {
			continue
		}
		rows = append(rows, map[string]any{
			"from": from, "to": to, "score": edge.Score, "method": edge.Method,
		})
	}
	return s.write(ctx, `
UNWIND $rows AS row
MATCH (a:Ticket {id: row.from})
MATCH (b:Ticket {id: row.to})
MERGE (a)-[r:SIMILAR_TO]->(b)
SET r.score = row.score, r.method = row.method
`, map[string]any{"rows": rows})
}

func (s *Store) SetCommunities(ctx context.Context, assignment map[string]int64) error {
	if len(assignment) == 0 {
		return nil
	}
	rows := make([]map[string]any, 0, len(assignment))
	for id, communityID := range assignment {
		rows = append(rows, map[string]any{
			"id": ticket.NormalizeID(id), "community_id": communityID,
		})
	}
	return s.write(ctx, `
UNWIND $rows AS row
MATCH (t:Ticket {id: row.id})
SET t.community_id = row.community_id
`, map[string]any{"rows": rows})
}

// DetectCommunities runs Louvain over the similarity relationships through the
// Graph Data Science library and writes community_id back onto tickets. The
// projection is dropped afterwards even on failure. Requires the GDS plugin;
// callers treat an error here as a degraded deployment, not a fatal one.
func (s *Store) DetectCommunities(ctx context.Context) error {
	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	const projection = "graphdesk_similarity"
	drop := func() {
		if res, err := session.Run(ctx,
			`CALL gds.graph.drop($name, false)`, map[string]any{"name": projection}); err == nil {
			_, _ = res.Consume(ctx)
		}
	}
	drop()

	res, err := session.Run(ctx, `
CALL gds.graph.project($name, 'Ticket', {SIMILAR_TO: {orientation: 'UNDIRECTED', properties: 'score'}})
`, map[string]any{"name": projection})
	if err != nil {
		return fmt.Errorf("neo4j: project similarity graph: %w", err)
	}
	if _, err := res.Consume(ctx); err != nil {
		return fmt.Errorf("neo4j: project similarity graph: %w", err)
	}
	defer drop()

	res, err = session.Run(ctx, `
CALL gds.louvain.write($name, {writeProperty: 'community_id', relationshipWeightProperty: 'score'})
YIELD communityCount
`, map[string]any{"name": projection})
	if err != nil {
		return fmt.Errorf("neo4j: louvain: %w", err)
	}
	if res.Next(ctx) {
		if count, ok := res.Record().Get("communityCount"); ok {
			common.Logger().Info("neo4j: community detection complete", "communities", count)
		}
	}
	return res.Err()
}

func (s *Store) Expand(ctx context.Context, seedIDs []string, opts graph.ExpandOptions) (*graph.Expansion, error) {
	session := s.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		known, seedSet, err := s.filterKnownSeeds(ctx, tx, seedIDs)
		if err != nil {
			return nil, err
		}

		sizes, err := s.communitySizes(ctx, tx)
		if err != nil {
			return nil, err
		}
		source := func(ctx context.Context, sourceID string, threshold float64) ([]graph.Candidate, error) {
			return s.candidates(ctx, tx, sourceID, threshold, sizes)
		}
		order, edges, err := graph.Walk(ctx, known, opts, source)
		if err != nil {
			return nil, err
		}

		expansion := &graph.Expansion{
			Edges:    edges,
			Sections: make(map[string][]ticket.Section, len(order)),
			Hops:     opts.Hops,
		}
		nodes, sections, err := s.fetchNodes(ctx, tx, order)
		if err != nil {
			return nil, err
		}
		for _, id := range order {
			node, ok := nodes[id]
			if !ok {
				continue
			}
			_, node.Seed = seedSet[id]
			expansion.Nodes = append(expansion.Nodes, node)
			if secs := sections[id]; len(secs) > 0 {
				expansion.Sections[id] = secs
			}
		}
		return expansion, nil
	})
	if err != nil {
		return nil, err
	}
	return out.(*graph.Expansion), nil
}

func (s *Store) filterKnownSeeds(ctx context.Context, tx neo4j.ManagedTransaction, seedIDs []string) ([]string, map[string]struct{}, error) {
	normalized := make([]string, 0, len(seedIDs))
	for _, id := range seedIDs {
		if n := ticket.NormalizeID(id); n != "" {
			normalized = append(normalized, n)
		}
	}
	res, err := tx.Run(ctx, `
MATCH (t:Ticket) WHERE t.id IN $ids RETURN t.id AS id
`, map[string]any{"ids": normalized})
	if err != nil {
		return nil, nil, err
	}
	existing := make(map[string]struct{})
	for res.Next(ctx) {
		if id, ok := res.Record().Get("id"); ok {
			existing[id.(string)] = struct{}{}
		}
	}
	if err := res.Err(); err != nil {
		return nil, nil, err
	}

	known := make([]string, 0, len(normalized))
	seedSet := make(map[string]struct{}, len(normalized))
	for _, id := range normalized {
		if _, ok := existing[id]; !ok {
			continue
		}
		if _, dup := seedSet[id]; dup {
			continue
		}
		seedSet[id] = struct{}{}
		known = append(known, id)
	}
	return known, seedSet, nil
}

func (s *Store) communitySizes(ctx context.Context, tx neo4j.ManagedTransaction) (map[int64]int, error) {
	res, err := tx.Run(ctx, `
MATCH (t:Ticket) WHERE t.community_id IS NOT NULL
RETURN t.community_id AS id, count(*) AS size
`, nil)
	if err != nil {
		return nil, err
	}
	sizes := make(map[int64]int)
	for res.Next(ctx) {
		record := res.Record()
		id, _ := record.Get("id")
		size, _ := record.Get("size")
		communityID, ok := id.(int64)
		if !ok {
			continue
		}
		if n, ok := size.(int64); ok {
			sizes[communityID] = int(n)
		}
	}
	return sizes, res.Err()
}

func (s *Store) candidates(ctx context.Context, tx neo4j.ManagedTransaction, sourceID string, threshold float64, sizes map[int64]int) ([]graph.Candidate, error) {
	res, err := tx.Run(ctx, `
MATCH (a:Ticket {id: $id})-[r:SIMILAR_TO]-(b:Ticket)
WHERE r.score >= $threshold
RETURN b.id AS id, max(r.score) AS score, b.community_id AS community_id,
       head(collect(r.method)) AS method
ORDER BY id
`, map[string]any{"id": sourceID, "threshold": threshold})
	if err != nil {
		return nil, err
	}
	var candidates []graph.Candidate
	for res.Next(ctx) {
		record := res.Record()
		idVal, _ := record.Get("id")
		scoreVal, _ := record.Get("score")
		communityVal, _ := record.Get("community_id")
		methodVal, _ := record.Get("method")

		id, _ := idVal.(string)
		score, _ := scoreVal.(float64)
		method, _ := methodVal.(string)
		size := 0
		if communityID, ok := communityVal.(int64); ok {
			size = sizes[communityID]
		}
		candidates = append(candidates, graph.Candidate{
			ID:            id,
			Score:         score,
			CommunitySize: size,
			Edge:          ticket.SimilarityEdge{From: sourceID, To: id, Score: score, Method: method},
		})
	}
	return candidates, res.Err()
}

func (s *Store) fetchNodes(ctx context.Context, tx neo4j.ManagedTransaction, ids []string) (map[string]graph.Node, map[string][]ticket.Section, error) {
	if len(ids) == 0 {
		return map[string]graph.Node{}, map[string][]ticket.Section{}, nil
	}
	res, err := tx.Run(ctx, `
MATCH (t:Ticket) WHERE t.id IN $ids
OPTIONAL MATCH (t)-[:SIMILAR_TO]-(n:Ticket)
WITH t, count(DISTINCT n) AS degree
OPTIONAL MATCH (t)-[:HAS_SECTION]->(s:Section)
RETURN t, degree, collect(s) AS sections
`, map[string]any{"ids": ids})
	if err != nil {
		return nil, nil, err
	}
	nodes := make(map[string]graph.Node, len(ids))
	sections := make(map[string][]ticket.Section, len(ids))
	for res.Next(ctx) {
		record := res.Record()
		nodeVal, _ := record.Get("t")
		degreeVal, _ := record.Get("degree")
		sectionsVal, _ := record.Get("sections")

		rawNode, ok := nodeVal.(neo4j.Node)
		if !ok {
			continue
		}
		t := ticketFromProps(rawNode.Props)
		degree := 0
		if d, ok := degreeVal.(int64); ok {
			degree = int(d)
		}
		nodes[t.ID] = graph.Node{Ticket: t, Degree: degree}
		if raw, ok := sectionsVal.([]any); ok {
			for _, item := range raw {
				sectionNode, ok := item.(neo4j.Node)
				if !ok {
					continue
				}
				sections[t.ID] = append(sections[t.ID], sectionFromProps(t.ID, sectionNode.Props))
			}
		}
	}
	return nodes, sections, res.Err()
}

func (s *Store) Communities(ctx context.Context) (map[int64][]graph.Member, error) {
	session := s.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
MATCH (t:Ticket) WHERE t.community_id IS NOT NULL
OPTIONAL MATCH (t)-[:SIMILAR_TO]-(n:Ticket)
WITH t, count(DISTINCT n) AS degree
OPTIONAL MATCH (t)-[:HAS_SECTION]->(s:Section)
RETURN t, degree, collect(s) AS sections
ORDER BY t.id
`, nil)
		if err != nil {
			return nil, err
		}
		communities := make(map[int64][]graph.Member)
		for res.Next(ctx) {
			record := res.Record()
			nodeVal, _ := record.Get("t")
			degreeVal, _ := record.Get("degree")
			sectionsVal, _ := record.Get("sections")

			rawNode, ok := nodeVal.(neo4j.Node)
			if !ok {
				continue
			}
			t := ticketFromProps(rawNode.Props)
			if t.CommunityID == nil {
				continue
			}
			member := graph.Member{Ticket: t}
			if d, ok := degreeVal.(int64); ok {
				member.Degree = int(d)
			}
			if raw, ok := sectionsVal.([]any); ok {
				for _, item := range raw {
					if sectionNode, ok := item.(neo4j.Node); ok {
						member.Sections = append(member.Sections, sectionFromProps(t.ID, sectionNode.Props))
					}
				}
			}
			communities[*t.CommunityID] = append(communities[*t.CommunityID], member)
		}
		return communities, res.Err()
	})
	if err != nil {
		return nil, err
	}
	return out.(map[int64][]graph.Member), nil
}

func (s *Store) Subgraph(ctx context.Context, limit int) (*graph.Expansion, error) {
	session := s.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
MATCH (t:Ticket)
WITH t ORDER BY t.id LIMIT $limit
WITH collect(t) AS tickets
UNWIND tickets AS t
OPTIONAL MATCH (t)-[r:SIMILAR_TO]->(b:Ticket)
WHERE b IN tickets
RETURN t, collect({to: b.id, score: r.score, method: r.method}) AS edges
ORDER BY t.id
`, map[string]any{"limit": limit})
		if err != nil {
			return nil, err
		}
		expansion := &graph.Expansion{Sections: make(map[string][]ticket.Section)}
		for res.Next(ctx) {
			record := res.Record()
			nodeVal, _ := record.Get("t")
			edgesVal, _ := record.Get("edges")
			rawNode, ok := nodeVal.(neo4j.Node)
			if !ok {
				continue
			}
			t := ticketFromProps(rawNode.Props)
			expansion.Nodes = append(expansion.Nodes, graph.Node{Ticket: t})
			raw, _ := edgesVal.([]any)
			for _, item := range raw {
				edgeMap, ok := item.(map[string]any)
				if !ok {
					continue
				}
				to, _ := edgeMap["to"].(string)
				if to == "" {
					continue
				}
				score, _ := edgeMap["score"].(float64)
				method, _ := edgeMap["method"].(string)
				expansion.Edges = append(expansion.Edges, ticket.SimilarityEdge{
					From: t.ID, To: to, Score: score, Method: method,
				})
			}
		}
		return expansion, res.Err()
	})
	if err != nil {
		return nil, err
	}
	return out.(*graph.Expansion), nil
}

func (s *Store) Stats(ctx context.Context) (graph.Stats, error) {
	session := s.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
MATCH (t:Ticket)
OPTIONAL MATCH (:Ticket)-[:HAS_SECTION]->(s:Section)
OPTIONAL MATCH (:Ticket)-[r:SIMILAR_TO]->(:Ticket)
RETURN count(DISTINCT t) AS tickets, count(DISTINCT s) AS sections, count(DISTINCT r) AS edges
`, nil)
		if err != nil {
			return nil, err
		}
		var stats graph.Stats
		if res.Next(ctx) {
			record := res.Record()
			if v, ok := record.Get("tickets"); ok {
				if n, ok := v.(int64); ok {
					stats.Tickets = int(n)
				}
			}
			if v, ok := record.Get("sections"); ok {
				if n, ok := v.(int64); ok {
					stats.Sections = int(n)
				}
			}
			if v, ok := record.Get("edges"); ok {
				if n, ok := v.(int64); ok {
					stats.Edges = int(n)
				}
			}
		}
		return stats, res.Err()
	})
	if err != nil {
		return graph.Stats{}, err
	}
	return out.(graph.Stats), nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Close(ctx)
}

func ticketFromProps(props map[string]any) ticket.Ticket {
	str := func(key string) string {
		v, _ := props[key].(string)
		return v
	}
	t := ticket.Ticket{
		ID:        str("id"),
		Project:   str("project"),
		Status:    str("status"),
		Priority:  str("priority"),
		IssueType: str("issue_type"),
		Summary:   str("summary"),
	}
	if v, ok := props["community_id"].(int64); ok {
		t.CommunityID = &v
	}
	for key, value := range props {
		if len(key) > 5 && key[:5] == "attr_" {
			if s, ok := value.(string); ok {
				if t.Attrs == nil {
					t.Attrs = make(map[string]string)
				}
				t.Attrs[key[5:]] = s
			}
		}
	}
	return t
}

func sectionFromProps(ticketID string, props map[string]any) ticket.Section {
	id, _ := props["id"].(string)
	key, _ := props["key"].(string)
	text, _ := props["text"].(string)
	return ticket.Section{ID: id, TicketID: ticketID, Key: key, Text: text}
}

var _ graph.Store = (*Store)(nil)
