// File path: internal/graph/memory/detect.go
package memory

import (
	"context"
	"sort"

	"github.com/graphdesk/graphdesk/internal/common"
)

// DetectCommunities assigns a community id to every ticket by connected
// components over the similarity edges. Component numbering is deterministic:
// components are ordered by their lexicographically smallest member.
// Singleton tickets get their own community.
func (s *Service) DetectCommunities(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}

	parent := make(map[string]string, len(s.tickets))
	var find func(string) string
	find = func(id string) string {
		if parent[id] != id {
			parent[id] = find(parent[id])
		}
		return parent[id]
	}
	union := func(a, b string) {
		ra, rb := find(a), find(b)
		if ra == rb {
			return
		}
		if rb < ra {
			ra, rb = rb, ra
		}
		parent[rb] = ra
	}

	for id := range s.tickets {
		parent[id] = id
	}
	for from, targets := range s.outgoing {
		for to := range targets {
			union(from, to)
		}
	}

	roots := make([]string, 0)
	seen := make(map[string]struct{})
	for id := range s.tickets {
		root := find(id)
		if _, ok := seen[root]; !ok {
			seen[root] = struct{}{}
			roots = append(roots, root)
		}
	}
	sort.Strings(roots)
	ids := make(map[string]int64, len(roots))
	for i, root := range roots {
		ids[root] = int64(i)
	}

	for id, t := range s.tickets {
		cid := ids[find(id)]
		t.CommunityID = &cid
		s.tickets[id] = t
	}
	common.Logger().Info("graph: community detection complete", "communities", len(roots), "tickets", len(s.tickets))
	return nil
}
