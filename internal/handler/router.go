package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/zhouzirui/campus-chat/backend/internal/handler/ask"
	"github.com/zhouzirui/campus-chat/backend/internal/handler/chat"
	"github.com/zhouzirui/campus-chat/backend/internal/handler/profile"
	"github.com/zhouzirui/campus-chat/backend/internal/handler/socket"
	"github.com/zhouzirui/campus-chat/backend/internal/handler/stream"
	middlewarePkg "github.com/zhouzirui/campus-chat/backend/internal/middleware"
	profileModel "github.com/zhouzirui/campus-chat/backend/internal/model/profile"
	aiService "github.com/zhouzirui/campus-chat/backend/internal/service/ai"
	chatService "github.com/zhouzirui/campus-chat/backend/internal/service/chat"
	"github.com/zhouzirui/campus-chat/backend/internal/service/conversation"
)

// NewRouter wires HTTP routes to core services. aiSvc may be nil.
func NewRouter(profiles profileModel.Store, chatSvc *chatService.Service, conv *conversation.Service, aiSvc *aiService.Service) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	var answers ask.Answerer
	if aiSvc != nil {
		answers = aiSvc
	}

	r.Route("/api", func(api chi.Router) {
		profile.New(profiles).RegisterRoutes(api)
		chat.New(conv, chatSvc).RegisterRoutes(api)
		stream.New(chatSvc).RegisterRoutes(api)
		socket.New(conv, chatSvc).RegisterRoutes(api)
		ask.New(answers, profiles).RegisterRoutes(api)
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	return r
}
