package vector

import (
	"context"
	"fmt"

	"ingest_server/core/port/out"
	"ingest_server/pkg/apperr"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIEmbedder implements out.Embedder with the OpenAI embeddings
// API.
type OpenAIEmbedder struct {
	client *openai.Client
	model  openai.EmbeddingModel
}

// NewOpenAIEmbedder creates an embedder for the given model.
func NewOpenAIEmbedder(apiKey, model string) *OpenAIEmbedder {
	return &OpenAIEmbedder{
		client: openai.NewClient(apiKey),
		model:  openai.EmbeddingModel(model),
	}
}

// Embed returns the embedding vector for a single text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: e.model,
	})
	if err != nil {
		return nil, apperr.External("openai embeddings", err)
	}
	if len(resp.Data) == 0 {
		return nil, apperr.External("openai embeddings", fmt.Errorf("empty response for model %s", e.model))
	}
	return resp.Data[0].Embedding, nil
}

// Ensure OpenAIEmbedder implements out.Embedder
var _ out.Embedder = (*OpenAIEmbedder)(nil)
