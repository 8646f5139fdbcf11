package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zhouzirui/campus-chat/backend/internal/model/profile"
	"github.com/zhouzirui/campus-chat/backend/internal/service/ai"
)

const replPrompt = "Enter your query (or type 'exit' to quit): "

// Streamer answers a question, reporting partial output through onDelta.
type Streamer interface {
	Stream(ctx context.Context, p *profile.Profile, query string, onDelta func(string)) (ai.Answer, error)
}

// AskOptions holds flags for the ask command.
type AskOptions struct {
	Data    string
	Profile string
}

// NewAskCommand creates the ask command.
func NewAskCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AskOptions{}

	cmd := &cobra.Command{
		Use:   "ask [query]",
		Short: "Answer questions from scraped campus pages",
		Long: `Index the JSONL pages and answer a question with the Ark chat model.

With a query argument the answer is printed once. Without one, an interactive
loop reads queries until 'exit'.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAsk(cmd, rootOpts, opts, args)
		},
	}

	cmd.Flags().StringVar(&opts.Data, "data", "", "JSONL pages to index (default: RAG_DATA_PATH)")
	cmd.Flags().StringVar(&opts.Profile, "profile", "campus-guide", "assistant profile used for the system prompt")

	return cmd
}

func runAsk(cmd *cobra.Command, rootOpts *RootOptions, opts *AskOptions, args []string) error {
	cfg := rootOpts.Config
	if opts.Data != "" {
		cfg.RAG.DataPath = opts.Data
	}
	if cfg.RAG.DataPath == "" {
		return errors.New("no documents to index: pass --data or set RAG_DATA_PATH")
	}

	p, ok := profile.NewMemoryStore(profile.Seed()).FindByID(opts.Profile)
	if !ok {
		return fmt.Errorf("unknown profile %q", opts.Profile)
	}

	svc, err := ai.Bootstrap(cmd.Context(), cfg.AI, cfg.RAG)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(args) > 0 {
		return answer(cmd.Context(), svc, &p, strings.Join(args, " "), out)
	}
	return repl(cmd.Context(), svc, &p, cmd.InOrStdin(), out)
}

// repl keeps asking until "exit" (any case, surrounding space ignored) or EOF.
// A failed answer is reported and the loop continues.
func repl(ctx context.Context, s Streamer, p *profile.Profile, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, replPrompt)
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}

		query := strings.TrimSpace(scanner.Text())
		if strings.EqualFold(query, "exit") {
			return nil
		}
		if query == "" {
			continue
		}

		if err := answer(ctx, s, p, query, out); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			fmt.Fprintf(out, "error: %v\n", err)
		}
	}
}

func answer(ctx context.Context, s Streamer, p *profile.Profile, query string, out io.Writer) error {
	streamed := false
	result, err := s.Stream(ctx, p, query, func(delta string) {
		streamed = true
		fmt.Fprint(out, delta)
	})
	if err != nil {
		if streamed {
			fmt.Fprintln(out)
		}
		return err
	}

	if !streamed {
		fmt.Fprint(out, result.Answer)
	}
	fmt.Fprintln(out)

	if len(result.Sources) > 0 {
		fmt.Fprintln(out, "Sources:")
		for _, src := range result.Sources {
			fmt.Fprintf(out, "  - %s\n", src.URL)
		}
	}
	return nil
}
