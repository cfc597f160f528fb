// File path: internal/embedding/local.go
package embedding

import (
	"context"
	"hash/fnv"
	"strings"
	"unicode"
)

// LocalProvider is a deterministic feature-hashing embedder used when no API
// key is configured and throughout the test suites. It is not semantically
// meaningful, but it is stable across runs, respects query/document prefixes
// and always returns unit vectors, which is what the contracts need.
type LocalProvider struct {
	model string
	dim   int
}

func NewLocalProvider(cfg Config) *LocalProvider {
	dim := cfg.Dimension
	if dim <= 0 {
		dim = 768
	}
	return &LocalProvider{model: cfg.Model, dim: dim}
}

func (l *LocalProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return l.encode(prepareText(l.model, text, true)), nil
}

func (l *LocalProvider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = l.encode(prepareText(l.model, text, false))
	}
	return vectors, nil
}

func (l *LocalProvider) encode(text string) []float32 {
	vec := make([]float32, l.dim)
	for _, token := range tokenize(text) {
		h := fnv.New32a()
		h.Write([]byte(token))
		sum := h.Sum32()
		bucket := int(sum % uint32(l.dim))
		sign := float32(1)
		if sum&0x80000000 != 0 {
			sign = -1
		}
		vec[bucket] += sign
	}
	return Normalize(vec)
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func (l *LocalProvider) Dimension() int { return l.dim }

func (l *LocalProvider) Name() string { return "local" }

// NewProvider selects the OpenAI-backed provider when an API key is present
// and falls back to the deterministic local provider otherwise.
func NewProvider(cfg Config) Provider {
	if strings.TrimSpace(cfg.APIKey) != "" {
		return NewOpenAIProvider(cfg)
	}
	return NewLocalProvider(cfg)
}
