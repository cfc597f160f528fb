// File path: internal/embedding/openai.go
package embedding

import (
	"context"
	"fmt"

	openai "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"github.com/graphdesk/graphdesk/internal/common"
)

// OpenAIProvider embeds text through an OpenAI-compatible embeddings
// endpoint. A custom endpoint lets self-hosted E5/TEI deployments serve the
// same interface; the E5 prefixes are applied client-side either way.
type OpenAIProvider struct {
	client openai.Client
	cfg    Config
}

func NewOpenAIProvider(cfg Config) *OpenAIProvider {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithBaseURL(cfg.Endpoint))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}
	common.Logger().Info("embedding: openai provider configured", "model", cfg.Model, "dimension", cfg.Dimension)
	return &OpenAIProvider{client: openai.NewClient(opts...), cfg: cfg}
}

func (p *OpenAIProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := p.embed(ctx, []string{prepareText(p.cfg.Model, text, true)})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("embedding: no vector returned for query")
	}
	return vectors[0], nil
}

func (p *OpenAIProvider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	prepared := make([]string, len(texts))
	for i, text := range texts {
		prepared[i] = prepareText(p.cfg.Model, text, false)
	}
	return p.embed(ctx, prepared)
}

func (p *OpenAIProvider) embed(ctx context.Context, input []string) ([][]float32, error) {
	resp, err := p.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(p.cfg.Model),
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: input},
	})
	if err != nil {
		return nil, fmt.Errorf("embedding request: %w", err)
	}
	if len(resp.Data) != len(input) {
		return nil, fmt.Errorf("embedding request: got %d vectors for %d inputs", len(resp.Data), len(input))
	}
	vectors := make([][]float32, len(resp.Data))
	for i, data := range resp.Data {
		vec := make([]float32, len(data.Embedding))
		for j, value := range data.Embedding {
			vec[j] = float32(value)
		}
		if len(vec) != p.cfg.Dimension {
			return nil, fmt.Errorf("embedding request: vector dimension %d, expected %d", len(vec), p.cfg.Dimension)
		}
		vectors[i] = Normalize(vec)
	}
	return vectors, nil
}

func (p *OpenAIProvider) Dimension() int { return p.cfg.Dimension }

func (p *OpenAIProvider) Name() string { return "openai" }
