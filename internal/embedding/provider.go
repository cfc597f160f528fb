// File path: internal/embedding/provider.go
package embedding

import (
	"context"
	"math"
	"strings"
)

// Provider maps text to unit-normalized fixed-dimension vectors. Query mode
// and document mode share one vector space but may apply different textual
// prefixes before embedding (E5-family models are trained that way).
type Provider interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
	Name() string
}

const (
	queryPrefix   = "query: "
	passagePrefix = "passage: "
)

// prepareText applies the E5 instruction prefix when the configured model is
// an E5 variant. Other models receive the text untouched.
func prepareText(model, text string, query bool) string {
	text = strings.TrimSpace(text)
	if !strings.Contains(strings.ToLower(model), "e5") {
		return text
	}
	prefix := passagePrefix
	if query {
		prefix = queryPrefix
	}
	if strings.HasPrefix(text, prefix) {
		return text
	}
	return prefix + text
}

// Normalize scales v to unit L2 norm in place and returns it. The vector
// index depends on every inserted vector being normalized; providers call
// this on everything they return.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	norm := math.Sqrt(sum)
	if math.Abs(norm-1) < 1e-6 {
		return v
	}
	inv := float32(1 / norm)
	for i := range v {
		v[i] *= inv
	}
	return v
}
