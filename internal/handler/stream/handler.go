package stream

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/campus-chat/backend/internal/logging"
	"github.com/zhouzirui/campus-chat/backend/internal/model/chat"
	chatService "github.com/zhouzirui/campus-chat/backend/internal/service/chat"
	"github.com/zhouzirui/campus-chat/backend/pkg/utils"
)

const heartbeatInterval = 15 * time.Second

// Event is one transcript line pushed to stream clients.
type Event struct {
	ID        string    `json:"id"`
	SessionID string    `json:"sessionId"`
	Sender    string    `json:"sender"`
	Content   string    `json:"content"`
	Output    string    `json:"output"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewEvent renders a message for stream clients.
func NewEvent(msg chat.Message) Event {
	return Event{
		ID:        msg.ID,
		SessionID: msg.SessionID,
		Sender:    msg.Sender,
		Content:   msg.Content,
		Output:    msg.Output(),
		CreatedAt: msg.CreatedAt,
	}
}

// Handler pushes a session's transcript to clients via Server-Sent Events
type Handler struct {
	chatSvc *chatService.Service
}

// New creates a new stream handler
func New(chatSvc *chatService.Service) *Handler {
	return &Handler{chatSvc: chatSvc}
}

// RegisterRoutes 注册SSE路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/stream/{sessionID}", h.handleStream)
}

func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	log := logging.Named("stream")

	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	ctx := r.Context()
	history, updates, cancel, err := h.chatSvc.Subscribe(ctx, sessionID)
	if err != nil {
		utils.RespondError(w, http.StatusNotFound, err.Error())
		return
	}
	defer cancel()

	utils.SetupSSEHeaders(w)
	w.WriteHeader(http.StatusOK)
	log.Infof("opening stream session=%s history=%d", sessionID, len(history))

	for _, msg := range history {
		if err := utils.SendSSEChunk(w, flusher, NewEvent(msg)); err != nil {
			return
		}
	}
	flusher.Flush()

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Infof("client left stream session=%s", sessionID)
			return
		case msg, ok := <-updates:
			if !ok {
				// session closed or subscriber dropped for lagging
				_ = utils.SendSSEEvent(w, flusher, "end", map[string]string{"sessionId": sessionID})
				log.Infof("closing stream session=%s", sessionID)
				return
			}
			if err := utils.SendSSEChunk(w, flusher, NewEvent(msg)); err != nil {
				return
			}
		case t := <-ticker.C:
			if err := utils.SendSSEEvent(w, flusher, "heartbeat", map[string]string{
				"time": t.UTC().Format(time.RFC3339),
			}); err != nil {
				return
			}
		}
	}
}
