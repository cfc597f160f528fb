// File path: internal/graph/detect.go
package graph

import "context"

// CommunityDetector is implemented by backends that can run the offline
// community-detection job themselves. Detection rewrites every ticket's
// community id; the query path only ever reads the precomputed assignment.
type CommunityDetector interface {
	DetectCommunities(ctx context.Context) error
}
