// Package embed produces fixed-length vectors for pattern templates, requests
// and trace entries. Ollama (local) and Google GenAI (cloud) are supported.
package embed

import (
	"context"
	"fmt"

	"github.com/strackan/cmdrouter/internal/config"
)

// Embedder turns text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Name() string
}

// New creates the embedder selected by cfg. An empty provider disables
// embedding and returns a nil Embedder.
func New(cfg config.EmbeddingConfig) (Embedder, error) {
	switch cfg.Provider {
	case "":
		return nil, nil
	case "ollama":
		return NewOllama(cfg.OllamaEndpoint, cfg.OllamaModel), nil
	case "genai":
		g, err := NewGenAI(context.Background(), cfg.GenAIAPIKey, cfg.GenAIModel)
		if err != nil {
			return nil, err
		}
		return g, nil
	}
	return nil, fmt.Errorf("unsupported embedding provider: %s (use 'ollama' or 'genai')", cfg.Provider)
}
