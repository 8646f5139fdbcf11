package socket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/zhouzirui/campus-chat/backend/internal/handler/stream"
	"github.com/zhouzirui/campus-chat/backend/internal/logging"
	"github.com/zhouzirui/campus-chat/backend/internal/model/chat"
	chatService "github.com/zhouzirui/campus-chat/backend/internal/service/chat"
	"github.com/zhouzirui/campus-chat/backend/internal/service/conversation"
)

const (
	pongWait     = 60 * time.Second
	pingInterval = 54 * time.Second
	writeWait    = 10 * time.Second
)

// Handler WebSocket会话处理器
type Handler struct {
	conv     *conversation.Service
	chatSvc  *chatService.Service
	upgrader websocket.Upgrader
}

// New 创建WebSocket处理器
func New(conv *conversation.Service, chatSvc *chatService.Service) *Handler {
	return &Handler{
		conv:    conv,
		chatSvc: chatSvc,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes 注册WebSocket路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws/{sessionID}", h.handleWebSocket)
}

type inboundMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type outgoingMessage struct {
	Type      string      `json:"type"`
	SessionID string      `json:"sessionId,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// connection serialises writes; gorilla allows one concurrent writer.
type connection struct {
	conn      *websocket.Conn
	sessionID string
	mu        sync.Mutex
}

func (c *connection) send(msgType string, data interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(outgoingMessage{
		Type:      msgType,
		SessionID: c.sessionID,
		Data:      data,
		Timestamp: time.Now().Unix(),
	})
}

func (c *connection) sendError(message string) {
	if err := c.send("error", map[string]string{"message": message}); err != nil {
		logging.Named("websocket").Warnf("write error failed: %v", err)
	}
}

// handleWebSocket 处理WebSocket连接
func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	log := logging.Named("websocket")

	if _, err := h.chatSvc.GetSession(r.Context(), sessionID); err != nil {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warnf("upgrade failed: %v", err)
		return
	}
	defer ws.Close()

	ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	history, updates, unsubscribe, err := h.chatSvc.Subscribe(ctx, sessionID)
	if err != nil {
		_ = ws.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed"))
		return
	}
	defer unsubscribe()

	conn := &connection{conn: ws, sessionID: sessionID}
	log.Infof("new connection session=%s", sessionID)

	for _, msg := range history {
		if err := conn.send("output", stream.NewEvent(msg)); err != nil {
			return
		}
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		h.pushLoop(ctx, cancel, conn, updates)
	}()
	go func() {
		defer wg.Done()
		pingLoop(ctx, ws)
	}()

	// unblock the reader once the session or request ends
	stop := context.AfterFunc(ctx, func() {
		_ = ws.SetReadDeadline(time.Now())
	})
	defer stop()

	h.readLoop(ctx, conn)
	cancel()
	wg.Wait()
	log.Infof("connection closed session=%s", sessionID)
}

func (h *Handler) readLoop(ctx context.Context, conn *connection) {
	log := logging.Named("websocket")
	for {
		_, raw, err := conn.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Warnf("read error: %v", err)
			}
			return
		}
		conn.conn.SetReadDeadline(time.Now().Add(pongWait))
		if ctx.Err() != nil {
			return
		}

		var msg inboundMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			conn.sendError("invalid message")
			continue
		}
		h.handleMessage(ctx, conn, &msg)
	}
}

func (h *Handler) handleMessage(ctx context.Context, conn *connection, msg *inboundMessage) {
	switch msg.Type {
	case "submit":
		appended, err := h.conv.Submit(ctx, conn.sessionID, msg.Text)
		if err != nil {
			conn.sendError(err.Error())
			return
		}
		if err := conn.send("submitted", map[string]bool{"appended": appended}); err != nil {
			logging.Named("websocket").Warnf("write ack failed: %v", err)
		}
	default:
		conn.sendError("unsupported message type: " + msg.Type)
	}
}

// pushLoop forwards transcript updates until the session closes.
func (h *Handler) pushLoop(ctx context.Context, cancel context.CancelFunc, conn *connection, updates <-chan chat.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-updates:
			if !ok {
				_ = conn.send("closed", nil)
				_ = conn.conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed"),
					time.Now().Add(writeWait))
				cancel()
				return
			}
			if err := conn.send("output", stream.NewEvent(msg)); err != nil {
				cancel()
				return
			}
		}
	}
}

// pingLoop 定期发送ping消息
func pingLoop(ctx context.Context, ws *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
