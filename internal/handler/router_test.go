package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/zhouzirui/campus-chat/backend/internal/model/profile"
	chatService "github.com/zhouzirui/campus-chat/backend/internal/service/chat"
	"github.com/zhouzirui/campus-chat/backend/internal/service/conversation"
)

func newTestRouter() http.Handler {
	profiles := profile.NewMemoryStore(profile.Seed())
	chatSvc := chatService.NewService()
	conv := conversation.NewService(chatSvc, nil, profiles, nil)
	return NewRouter(profiles, chatSvc, conv, nil)
}

func TestRouterServesSessionLifecycle(t *testing.T) {
	r := newTestRouter()

	payload, _ := json.Marshal(map[string]string{"profileId": "quiet"})
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/session", bytes.NewReader(payload)))
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.Code)
	}

	var session struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil || session.ID == "" {
		t.Fatalf("decode session: %v %+v", err, session)
	}

	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/session/"+session.ID+"/outputs", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodDelete, "/api/session/"+session.ID, nil))
	if resp.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.Code)
	}
}

func TestRouterAskUnavailableWithoutAI(t *testing.T) {
	r := newTestRouter()

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/ask", bytes.NewBufferString(`{"query":"hi"}`)))
	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.Code)
	}
}

func TestRouterCORSPreflight(t *testing.T) {
	r := newTestRouter()

	req := httptest.NewRequest(http.MethodOptions, "/api/profiles", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.Code)
	}
}
