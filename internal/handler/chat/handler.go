package chat

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"

	"github.com/go-chi/chi/v5"

	chatService "github.com/zhouzirui/campus-chat/backend/internal/service/chat"
	"github.com/zhouzirui/campus-chat/backend/internal/service/conversation"
	"github.com/zhouzirui/campus-chat/backend/pkg/utils"
)

// Handler 聊天服务的HTTP处理器
type Handler struct {
	conv    *conversation.Service
	chatSvc *chatService.Service
}

// New 创建聊天处理器
func New(conv *conversation.Service, chatSvc *chatService.Service) *Handler {
	return &Handler{conv: conv, chatSvc: chatSvc}
}

// RegisterRoutes 注册聊天相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/session", h.handleCreateSession)
	r.Delete("/session/{sessionID}", h.handleCloseSession)
	r.Get("/session/{sessionID}/outputs", h.handleOutputs)
	r.Post("/session/{sessionID}/submit", h.handleSubmit)
}

// handleCreateSession 创建会话
func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		ProfileID string `json:"profileId"`
	}

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	session, err := h.conv.Open(r.Context(), payload.ProfileID)
	if err != nil {
		utils.RespondError(w, StatusFor(err), err.Error())
		return
	}

	utils.RespondJSON(w, http.StatusCreated, session)
}

// handleCloseSession 关闭会话并停止定时消息
func (h *Handler) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	if err := h.conv.Close(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		utils.RespondError(w, StatusFor(err), err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleOutputs 返回渲染后的消息列表
func (h *Handler) handleOutputs(w http.ResponseWriter, r *http.Request) {
	outputs, err := h.chatSvc.Outputs(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		utils.RespondError(w, StatusFor(err), err.Error())
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string][]string{"outputs": outputs})
}

// handleSubmit 接收 JSON {"text": ...} 或表单字段 text
func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	text, err := readText(r)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	appended, err := h.conv.Submit(r.Context(), chi.URLParam(r, "sessionID"), text)
	if err != nil {
		utils.RespondError(w, StatusFor(err), err.Error())
		return
	}

	utils.RespondJSON(w, http.StatusAccepted, map[string]bool{"appended": appended})
}

func readText(r *http.Request) (string, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		var payload struct {
			Text string `json:"text"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			return "", err
		}
		return payload.Text, nil
	}

	if err := r.ParseForm(); err != nil {
		return "", err
	}
	return r.PostFormValue("text"), nil
}

// StatusFor maps service errors onto HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, chatService.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, chatService.ErrProfileRequired), errors.Is(err, conversation.ErrProfileNotFound):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
