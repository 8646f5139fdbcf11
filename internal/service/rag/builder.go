package rag

import (
	"context"
	"fmt"

	"github.com/zhouzirui/campus-chat/backend/internal/config"
	"github.com/zhouzirui/campus-chat/backend/internal/logging"
)

// NewEmbedder picks the embedder named by the configuration.
func NewEmbedder(cfg config.RAGConfig) (NamedEmbedder, error) {
	switch cfg.EmbedProvider {
	case "", "hash":
		return NewHashEmbedder(cfg.HashDimensions), nil
	case "ollama":
		return NewOllamaEmbedder(cfg.OllamaEndpoint, cfg.OllamaModel), nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s (use 'hash' or 'ollama')", cfg.EmbedProvider)
	}
}

// Build loads documents from the configured JSONL file, chunks them and
// indexes the chunks.
func Build(ctx context.Context, cfg config.RAGConfig, embedder NamedEmbedder) (*Index, error) {
	docs, err := LoadJSONL(cfg.DataPath)
	if err != nil {
		return nil, err
	}
	return BuildFromDocuments(ctx, cfg, embedder, docs)
}

// BuildFromDocuments indexes already loaded documents.
func BuildFromDocuments(ctx context.Context, cfg config.RAGConfig, embedder NamedEmbedder, docs []Document) (*Index, error) {
	log := logging.Named("rag")

	var cache *Cache
	if cfg.CachePath != "" {
		c, err := OpenCache(cfg.CachePath)
		if err != nil {
			return nil, err
		}
		defer c.Close()
		cache = c
	}

	chunks := NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap).ChunkDocuments(docs)
	index := NewIndex(embedder, cfg.TopK)
	if err := index.Add(ctx, chunks, cache); err != nil {
		return nil, err
	}

	log.Infof("index ready: documents=%d chunks=%d embedder=%s", len(docs), len(chunks), embedder.Name())
	return index, nil
}
