// File path: internal/community/rebuild.go
package community

import (
	"context"

	"github.com/graphdesk/graphdesk/internal/common"
	"github.com/graphdesk/graphdesk/internal/graph"
)

// Rebuild runs the summary batch: gather community members from the graph,
// build summaries, persist them when a store is configured, then swap the
// in-memory snapshot. The query path keeps serving the old snapshot until
// the swap.
func Rebuild(ctx context.Context, g graph.Store, store *Store, ix *Index) ([]Summary, error) {
	members, err := g.Communities(ctx)
	if err != nil {
		return nil, err
	}
	summaries := Build(members)
	if store != nil {
		if err := store.SaveAll(ctx, summaries); err != nil {
			return nil, err
		}
	}
	ix.Replace(summaries)
	common.Logger().Info("community: summaries rebuilt", "communities", len(summaries))
	return summaries, nil
}
