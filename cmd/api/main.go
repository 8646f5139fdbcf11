package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/zhouzirui/campus-chat/backend/internal/config"
	"github.com/zhouzirui/campus-chat/backend/internal/handler"
	"github.com/zhouzirui/campus-chat/backend/internal/logging"
	"github.com/zhouzirui/campus-chat/backend/internal/model/profile"
	"github.com/zhouzirui/campus-chat/backend/internal/service/ai"
	"github.com/zhouzirui/campus-chat/backend/internal/service/chat"
	"github.com/zhouzirui/campus-chat/backend/internal/service/conversation"
	"github.com/zhouzirui/campus-chat/backend/internal/service/feed"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	flush, err := logging.Setup(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		log.Fatalf("failed to set up logging: %v", err)
	}
	defer flush()
	logger := logging.Named("api")

	profileStore := profile.NewMemoryStore(profile.Seed())
	chatService := chat.NewService()

	var feedService *feed.Service
	if cfg.Feed.Enabled {
		feedService = feed.NewService(chatService, cfg.Feed.Interval)
	}

	// Initialize AI service
	var aiService *ai.Service
	var answers conversation.Answerer
	if cfg.AI.Enabled() {
		aiService, err = ai.Bootstrap(ctx, cfg.AI, cfg.RAG)
		if err != nil {
			logger.Warnf("failed to initialize AI service: %v", err)
			logger.Warn("continuing without answers, check the ARK_* environment variables")
			aiService = nil
		} else {
			answers = aiService
			logger.Info("AI service initialized successfully")
		}
	} else {
		logger.Info("Ark credentials not configured, skipping AI initialization")
	}

	conv := conversation.NewService(chatService, feedService, profileStore, answers)
	defer conv.Shutdown()

	router := handler.NewRouter(profileStore, chatService, conv, aiService)

	if err := startServer(ctx, cfg.Server, router); err != nil {
		logger.Errorf("server error: %v", err)
	}
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) error {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	logging.Named("api").Infof("campus chat backend listening on %s", addr)
	return runServer(ctx, srv)
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
