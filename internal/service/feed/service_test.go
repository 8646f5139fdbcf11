package feed

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	chatservice "github.com/zhouzirui/campus-chat/backend/internal/service/chat"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newSession(t *testing.T) (*chatservice.Service, string) {
	t.Helper()
	chatSvc := chatservice.NewService()
	session, err := chatSvc.CreateSession(context.Background(), "campus-guide", "seed")
	require.NoError(t, err)
	return chatSvc, session.ID
}

func TestFeedAppendsCannedLinesInCycle(t *testing.T) {
	chatSvc, sessionID := newSession(t)
	svc := NewService(chatSvc, 10*time.Millisecond)
	defer svc.StopAll()

	require.True(t, svc.Start(context.Background(), sessionID, []string{"a", "b"}))

	require.Eventually(t, func() bool {
		outputs, _ := chatSvc.Outputs(context.Background(), sessionID)
		return len(outputs) >= 4
	}, time.Second, 5*time.Millisecond)

	svc.Stop(sessionID)
	outputs, err := chatSvc.Outputs(context.Background(), sessionID)
	require.NoError(t, err)
	assert.Equal(t, []string{"seed", "a", "b", "a"}, outputs[:4])
}

func TestFeedStartIsIdempotentPerSession(t *testing.T) {
	chatSvc, sessionID := newSession(t)
	svc := NewService(chatSvc, time.Hour)
	defer svc.StopAll()

	assert.True(t, svc.Start(context.Background(), sessionID, []string{"a"}))
	assert.False(t, svc.Start(context.Background(), sessionID, []string{"a"}))
	assert.True(t, svc.Running(sessionID))
}

func TestFeedWithoutLinesStartsNothing(t *testing.T) {
	chatSvc, sessionID := newSession(t)
	svc := NewService(chatSvc, time.Millisecond)

	assert.False(t, svc.Start(context.Background(), sessionID, nil))
	assert.False(t, svc.Running(sessionID))
}

func TestFeedStopsOnContextCancel(t *testing.T) {
	chatSvc, sessionID := newSession(t)
	svc := NewService(chatSvc, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	require.True(t, svc.Start(ctx, sessionID, []string{"a"}))
	cancel()

	require.Eventually(t, func() bool { return !svc.Running(sessionID) }, time.Second, time.Millisecond)
}

func TestFeedStopsWhenSessionCloses(t *testing.T) {
	chatSvc, sessionID := newSession(t)
	svc := NewService(chatSvc, 5*time.Millisecond)

	require.True(t, svc.Start(context.Background(), sessionID, []string{"a"}))
	require.NoError(t, chatSvc.CloseSession(context.Background(), sessionID))

	require.Eventually(t, func() bool { return !svc.Running(sessionID) }, time.Second, time.Millisecond)
}

func TestStopUnknownSessionIsNoop(t *testing.T) {
	svc := NewService(chatservice.NewService(), 0)
	svc.Stop("missing")
	assert.Equal(t, DefaultInterval, svc.Interval())
}
