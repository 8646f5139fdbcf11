package ask

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/campus-chat/backend/internal/logging"
	"github.com/zhouzirui/campus-chat/backend/internal/model/profile"
	"github.com/zhouzirui/campus-chat/backend/internal/service/ai"
	"github.com/zhouzirui/campus-chat/backend/pkg/utils"
)

// Answerer answers a single question.
type Answerer interface {
	Ask(ctx context.Context, p *profile.Profile, query string) (ai.Answer, error)
}

// Handler serves one-shot questions against the document index.
type Handler struct {
	answers  Answerer
	profiles profile.Store
}

// New creates the ask handler; answers may be nil when AI is disabled.
func New(answers Answerer, profiles profile.Store) *Handler {
	return &Handler{answers: answers, profiles: profiles}
}

// RegisterRoutes 注册问答路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/ask", h.handleAsk)
}

type askRequest struct {
	Query     string `json:"query"`
	ProfileID string `json:"profileId,omitempty"`
}

func (h *Handler) handleAsk(w http.ResponseWriter, r *http.Request) {
	if h.answers == nil {
		utils.RespondError(w, http.StatusServiceUnavailable, "answer service unavailable")
		return
	}

	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var p *profile.Profile
	if req.ProfileID != "" && h.profiles != nil {
		found, ok := h.profiles.FindByID(req.ProfileID)
		if !ok {
			utils.RespondError(w, http.StatusBadRequest, "profile not found")
			return
		}
		p = &found
	}

	answer, err := h.answers.Ask(r.Context(), p, req.Query)
	switch {
	case errors.Is(err, ai.ErrEmptyQuery):
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		logging.Named("ask").Errorf("answer failed: %v", err)
		utils.RespondError(w, http.StatusBadGateway, "failed to answer question")
		return
	}

	if answer.Sources == nil {
		answer.Sources = []ai.Source{}
	}
	utils.RespondJSON(w, http.StatusOK, answer)
}
