package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/zhouzirui/campus-chat/backend/internal/logging"
	"github.com/zhouzirui/campus-chat/backend/internal/model/profile"
	"github.com/zhouzirui/campus-chat/backend/internal/service/ai"
	"github.com/zhouzirui/campus-chat/backend/internal/service/chat"
	"github.com/zhouzirui/campus-chat/backend/internal/service/conversation"
	"github.com/zhouzirui/campus-chat/backend/internal/service/feed"
	"github.com/zhouzirui/campus-chat/backend/internal/tui"
)

// ChatOptions holds flags for the chat command.
type ChatOptions struct {
	Profile string
	LogFile string
}

// NewChatCommand creates the chat command.
func NewChatCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ChatOptions{}

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with the campus assistant in the terminal",
		Long: `Open a terminal chat session. Canned campus updates appear on the feed
interval; with Ark credentials configured every message also gets an answer.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd, rootOpts, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Profile, "profile", "campus-guide", "assistant profile to chat with")
	cmd.Flags().StringVar(&opts.LogFile, "log-file", filepath.Join(os.TempDir(), "campus-chat.log"),
		"where logs go while the chat view owns the terminal (empty discards them)")

	return cmd
}

func runChat(cmd *cobra.Command, rootOpts *RootOptions, opts *ChatOptions) error {
	cfg := rootOpts.Config
	ctx := cmd.Context()
	log := logging.Named("chat")

	profiles := profile.NewMemoryStore(profile.Seed())
	chatSvc := chat.NewService()
	feedSvc := feed.NewService(chatSvc, cfg.Feed.Interval)

	var answers conversation.Answerer
	if cfg.AI.Enabled() {
		svc, err := ai.Bootstrap(ctx, cfg.AI, cfg.RAG)
		if err != nil {
			log.Warnf("continuing without answers: %v", err)
		} else {
			answers = svc
		}
	}

	conv := conversation.NewService(chatSvc, feedSvc, profiles, answers)
	defer conv.Shutdown()

	session, err := conv.Open(ctx, opts.Profile)
	if err != nil {
		return err
	}
	defer conv.Close(ctx, session.ID)

	model, unsubscribe, err := tui.New(ctx, conv, chatSvc, session.ID)
	if err != nil {
		return err
	}
	defer unsubscribe()

	// the alt screen shares the terminal with stderr
	restoreLogs, err := logging.Redirect(opts.LogFile, cfg.Log.Level)
	if err != nil {
		return fmt.Errorf("redirect logs: %w", err)
	}
	defer restoreLogs()

	_, err = tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("chat view: %w", err)
	}
	return nil
}
