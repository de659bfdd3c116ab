package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/bnema/openclaw-memory/internal/ports"
	goopenai "github.com/sashabaranov/go-openai"
)

const (
	DefaultModel = string(goopenai.SmallEmbedding3)
	maxBatch     = 256
)

type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

type Embedder struct {
	client *goopenai.Client
	model  string
}

var _ ports.Embedder = (*Embedder)(nil)

func NewEmbedder(cfg Config) (*Embedder, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("openai embedder requires OPENAI_API_KEY")
	}

	config := goopenai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	httpClient := &http.Client{}
	if cfg.Timeout > 0 {
		httpClient.Timeout = cfg.Timeout
	}
	config.HTTPClient = httpClient

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	return &Embedder{client: goopenai.NewClientWithConfig(config), model: model}, nil
}

func (e *Embedder) Model() string {
	return e.model
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for start := 0; start < len(texts); start += maxBatch {
		end := min(start+maxBatch, len(texts))

		response, err := e.client.CreateEmbeddings(ctx, goopenai.EmbeddingRequest{
			Input: texts[start:end],
			Model: goopenai.EmbeddingModel(e.model),
		})
		if err != nil {
			return nil, fmt.Errorf("create embeddings: %w", err)
		}
		if len(response.Data) != end-start {
			return nil, fmt.Errorf("create embeddings: got %d vectors for %d inputs", len(response.Data), end-start)
		}

		for _, item := range response.Data {
			if item.Index < 0 || item.Index >= end-start {
				return nil, fmt.Errorf("create embeddings: index %d out of range", item.Index)
			}
			vectors[start+item.Index] = item.Embedding
		}
	}

	return vectors, nil
}
