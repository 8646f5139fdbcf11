package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/components/retriever"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/campus-chat/backend/internal/logging"
	"github.com/zhouzirui/campus-chat/backend/internal/model/profile"
	"github.com/zhouzirui/campus-chat/backend/internal/service/rag"
)

var ErrEmptyQuery = errors.New("query is required")

// Source is a page an answer drew from.
type Source struct {
	URL   string  `json:"url"`
	Score float64 `json:"score"`
}

// Answer is the model's reply together with the retrieved sources.
type Answer struct {
	Answer  string   `json:"answer"`
	Sources []Source `json:"sources"`
}

// Options tunes the answer service.
type Options struct {
	TopK      int
	Streaming bool
}

// Service answers questions from retrieved campus documents.
type Service struct {
	retriever retriever.Retriever
	topK      int
	streaming bool
	chain     compose.Runnable[map[string]any, *schema.Message]
}

// NewService compiles the prompt and chat model chain over the given retriever.
func NewService(ctx context.Context, chatModel model.BaseChatModel, r retriever.Retriever, opts Options) (*Service, error) {
	if chatModel == nil {
		return nil, fmt.Errorf("chat model is required")
	}
	if r == nil {
		return nil, fmt.Errorf("retriever is required")
	}

	topK := opts.TopK
	if topK <= 0 {
		topK = rag.DefaultTopK
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.UserMessage(questionTemplate),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile answer chain: %w", err)
	}

	return &Service{
		retriever: r,
		topK:      topK,
		streaming: opts.Streaming,
		chain:     runnable,
	}, nil
}

// StreamingEnabled 指示是否开启流式输出。
func (s *Service) StreamingEnabled() bool {
	return s.streaming
}

// Ask retrieves supporting documents and generates an answer.
func (s *Service) Ask(ctx context.Context, p *profile.Profile, query string) (Answer, error) {
	input, sources, err := s.prepare(ctx, p, query)
	if err != nil {
		return Answer{}, err
	}

	response, err := s.chain.Invoke(ctx, input)
	if err != nil {
		return Answer{}, fmt.Errorf("failed to run answer chain: %w", err)
	}

	logging.Named("ai").Infof("answered query chars=%d sources=%d length=%d", len(query), len(sources), len(response.Content))
	return Answer{Answer: strings.TrimSpace(response.Content), Sources: sources}, nil
}

// Stream retrieves supporting documents and streams the answer. onDelta is
// called for every non-empty chunk; the full answer is returned at the end.
func (s *Service) Stream(ctx context.Context, p *profile.Profile, query string, onDelta func(string)) (Answer, error) {
	if !s.streaming {
		answer, err := s.Ask(ctx, p, query)
		if err == nil && onDelta != nil {
			onDelta(answer.Answer)
		}
		return answer, err
	}

	input, sources, err := s.prepare(ctx, p, query)
	if err != nil {
		return Answer{}, err
	}

	stream, err := s.chain.Stream(ctx, input)
	if err != nil {
		return Answer{}, fmt.Errorf("failed to stream answer chain: %w", err)
	}
	defer stream.Close()

	chunks := make([]*schema.Message, 0, 8)
	for {
		chunk, recvErr := stream.Recv()
		if errors.Is(recvErr, io.EOF) {
			break
		}
		if recvErr != nil {
			return Answer{}, recvErr
		}
		if chunk == nil {
			continue
		}
		chunks = append(chunks, chunk)
		if chunk.Content != "" && onDelta != nil {
			onDelta(chunk.Content)
		}
	}

	if len(chunks) == 0 {
		return Answer{Sources: sources}, nil
	}
	response, err := schema.ConcatMessages(chunks)
	if err != nil {
		return Answer{}, err
	}
	return Answer{Answer: strings.TrimSpace(response.Content), Sources: sources}, nil
}

func (s *Service) prepare(ctx context.Context, p *profile.Profile, query string) (map[string]any, []Source, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil, ErrEmptyQuery
	}

	docs, err := s.retriever.Retrieve(ctx, query, retriever.WithTopK(s.topK))
	if err != nil && !errors.Is(err, rag.ErrEmptyIndex) {
		return nil, nil, fmt.Errorf("failed to retrieve documents: %w", err)
	}

	return map[string]any{
		"system":  BuildSystemPrompt(p),
		"context": formatContext(docs),
		"input":   query,
	}, sourcesOf(docs), nil
}

func sourcesOf(docs []*schema.Document) []Source {
	sources := make([]Source, 0, len(docs))
	seen := make(map[string]bool, len(docs))
	for _, doc := range docs {
		url := rag.SourceURL(doc)
		if url == "" || seen[url] {
			continue
		}
		seen[url] = true
		sources = append(sources, Source{URL: url, Score: doc.Score()})
	}
	return sources
}
