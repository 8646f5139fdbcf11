package tui

import (
	"context"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/campus-chat/backend/internal/model/profile"
	chatservice "github.com/zhouzirui/campus-chat/backend/internal/service/chat"
	"github.com/zhouzirui/campus-chat/backend/internal/service/conversation"
	"github.com/zhouzirui/campus-chat/backend/internal/service/feed"
)

func newModel(t *testing.T, interval time.Duration, profileID string) (Model, *chatservice.Service) {
	t.Helper()
	chatSvc := chatservice.NewService()
	var feedSvc *feed.Service
	if interval > 0 {
		feedSvc = feed.NewService(chatSvc, interval)
	}
	conv := conversation.NewService(chatSvc, feedSvc, profile.NewMemoryStore(profile.Seed()), nil)
	t.Cleanup(conv.Shutdown)

	session, err := conv.Open(context.Background(), profileID)
	require.NoError(t, err)

	m, cancel, err := New(context.Background(), conv, chatSvc, session.ID)
	require.NoError(t, err)
	t.Cleanup(cancel)
	return m, chatSvc
}

// next waits for the subscription to deliver one message.
func next(t *testing.T, m Model) tea.Msg {
	t.Helper()
	done := make(chan tea.Msg, 1)
	go func() { done <- waitForMessage(m.updates)() }()
	select {
	case msg := <-done:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for transcript message")
		return nil
	}
}

func TestModelShowsSeedTranscript(t *testing.T) {
	m, _ := newModel(t, 0, "quiet")
	assert.Equal(t, []string{"Ask me anything about campus."}, m.Outputs())
}

func TestEnterSubmitsAndBlankIsIgnored(t *testing.T) {
	m, chatSvc := newModel(t, 0, "quiet")

	m.textarea.SetValue("   ")
	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd)
	m = updated.(Model)

	m.textarea.SetValue("where is bobst")
	updated, cmd = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	m = updated.(Model)
	assert.Empty(t, m.textarea.Value())
	assert.Nil(t, cmd())

	msg := next(t, m)
	updated, _ = m.Update(msg)
	m = updated.(Model)

	assert.Equal(t, []string{"Ask me anything about campus.", "You: where is bobst"}, m.Outputs())

	session, err := chatSvc.Outputs(context.Background(), m.sessionID)
	require.NoError(t, err)
	assert.Equal(t, m.Outputs(), session)
}

func TestCannedLinesArriveOnTick(t *testing.T) {
	m, _ := newModel(t, 5*time.Millisecond, "campus-guide")
	seeds := len(profile.Seed()[0].SeedOutputs)

	updated, _ := m.Update(next(t, m))
	m = updated.(Model)

	require.Len(t, m.Outputs(), seeds+1)
	assert.Equal(t, profile.Seed()[0].CannedLines[0], m.Outputs()[seeds])
}

func TestClosedSessionQuits(t *testing.T) {
	m, _ := newModel(t, 0, "quiet")

	_, cmd := m.Update(ClosedMsg{})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())

	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())
}

func TestWindowResizeMarksReady(t *testing.T) {
	m, _ := newModel(t, 0, "quiet")

	updated, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	m = updated.(Model)

	assert.True(t, m.ready)
	assert.Equal(t, 100, m.viewport.Width)
	assert.Contains(t, m.View(), "Ask me anything about campus.")
}
