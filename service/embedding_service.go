package service

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"

	"github.com/docmesh/ingest-be/database"
)

// Embedder converts a batch of texts into fixed-dimension vectors, one per
// input text, order-preserving.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// OpenAIEmbeddingService implements Embedder with the OpenAI embeddings API.
type OpenAIEmbeddingService struct {
	client     *openai.Client
	model      openai.EmbeddingModel
	dimensions int
}

func NewOpenAIEmbeddingService(baseURL, apiKey, model string) *OpenAIEmbeddingService {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	embeddingModel := openai.LargeEmbedding3
	if model != "" {
		embeddingModel = openai.EmbeddingModel(model)
	}
	return &OpenAIEmbeddingService{
		client:     openai.NewClientWithConfig(config),
		model:      embeddingModel,
		dimensions: database.VectorDim,
	}
}

func (s *OpenAIEmbeddingService) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := s.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:      texts,
		Model:      s.model,
		Dimensions: s.dimensions,
	})
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data))
	}
	vectors := make([][]float32, len(resp.Data))
	for _, d := range resp.Data {
		vectors[d.Index] = d.Embedding
	}
	return vectors, nil
}
