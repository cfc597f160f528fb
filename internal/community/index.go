// File path: internal/community/index.go
package community

import (
	"sort"
	"sync/atomic"

	"github.com/graphdesk/graphdesk/internal/common/telemetry"
)

// Index holds the community summary snapshot read by the query path. Lookups
// are O(1) against an immutable map; Replace swaps the whole snapshot
// atomically after each batch rebuild, so readers never see a half-built
// table.
type Index struct {
	snapshot atomic.Pointer[map[int64]Summary]
}

func NewIndex() *Index {
	ix := &Index{}
	empty := map[int64]Summary{}
	ix.snapshot.Store(&empty)
	return ix
}

// Replace installs a freshly built summary set.
func (ix *Index) Replace(summaries []Summary) {
	next := make(map[int64]Summary, len(summaries))
	for _, s := range summaries {
		next[s.CommunityID] = s
	}
	ix.snapshot.Store(&next)
}

// Lookup returns the summary for a community id, or nil when the id is
// unknown. A miss is a normal condition: detection may have run after the
// summary batch, leaving fresh community ids without summaries yet.
func (ix *Index) Lookup(id int64) *Summary {
	snap := *ix.snapshot.Load()
	s, ok := snap[id]
	telemetry.RecordCommunityLookup(ok)
	if !ok {
		return nil
	}
	return &s
}

// Len reports the number of summarized communities.
func (ix *Index) Len() int {
	return len(*ix.snapshot.Load())
}

// All returns the snapshot's summaries ordered by community id.
func (ix *Index) All() []Summary {
	snap := *ix.snapshot.Load()
	out := make([]Summary, 0, len(snap))
	for _, s := range snap {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CommunityID < out[j].CommunityID })
	return out
}
