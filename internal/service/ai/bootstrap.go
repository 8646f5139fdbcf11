package ai

import (
	"context"
	"fmt"

	"github.com/zhouzirui/campus-chat/backend/internal/config"
	"github.com/zhouzirui/campus-chat/backend/internal/logging"
	"github.com/zhouzirui/campus-chat/backend/internal/service/rag"
)

// Bootstrap builds the document index and the Ark-backed answer service.
// Without RAG_DATA_PATH the index is empty and answers carry no sources.
func Bootstrap(ctx context.Context, aiCfg config.AIConfig, ragCfg config.RAGConfig) (*Service, error) {
	if !aiCfg.Enabled() {
		return nil, fmt.Errorf("ark credentials are not configured")
	}

	embedder, err := rag.NewEmbedder(ragCfg)
	if err != nil {
		return nil, err
	}

	var index *rag.Index
	if ragCfg.DataPath != "" {
		index, err = rag.Build(ctx, ragCfg, embedder)
		if err != nil {
			return nil, fmt.Errorf("failed to build document index: %w", err)
		}
	} else {
		logging.Named("ai").Warn("RAG_DATA_PATH not set, answering without documents")
		index = rag.NewIndex(embedder, ragCfg.TopK)
	}

	chatModel, err := aiCfg.NewChatModel(ctx)
	if err != nil {
		return nil, err
	}

	return NewService(ctx, chatModel, index, Options{
		TopK:      ragCfg.TopK,
		Streaming: aiCfg.StreamResponse,
	})
}
