package chat_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	model "github.com/zhouzirui/campus-chat/backend/internal/model/chat"
	chat "github.com/zhouzirui/campus-chat/backend/internal/service/chat"
)

func TestServiceGetSession(t *testing.T) {
	svc := chat.NewService()
	ctx := context.Background()

	session, err := svc.CreateSession(ctx, "campus-guide")
	if err != nil {
		t.Fatalf("CreateSession err: %v", err)
	}

	got, err := svc.GetSession(ctx, session.ID)
	if err != nil {
		t.Fatalf("GetSession err: %v", err)
	}

	if got.ID != session.ID {
		t.Fatalf("unexpected session ID: got %s want %s", got.ID, session.ID)
	}
	if got.ProfileID != "campus-guide" {
		t.Fatalf("unexpected profile ID: got %s", got.ProfileID)
	}
}

func TestServiceGetSessionNotFound(t *testing.T) {
	svc := chat.NewService()

	if _, err := svc.GetSession(context.Background(), "missing"); !errors.Is(err, chat.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestCreateSessionRequiresProfile(t *testing.T) {
	svc := chat.NewService()

	_, err := svc.CreateSession(context.Background(), "")
	assert.ErrorIs(t, err, chat.ErrProfileRequired)
}

func TestCreateSessionSeedsOutputs(t *testing.T) {
	svc := chat.NewService()
	ctx := context.Background()

	session, err := svc.CreateSession(ctx, "campus-guide", "hello", "ask away")
	require.NoError(t, err)

	outputs, err := svc.Outputs(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"hello", "ask away"}, outputs)
}

func TestSubmitAppendsPrefixedEntry(t *testing.T) {
	svc := chat.NewService()
	ctx := context.Background()
	session, err := svc.CreateSession(ctx, "campus-guide", "seed")
	require.NoError(t, err)

	msg, ok, err := svc.Submit(ctx, session.ID, "  when is spring break?  ")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, model.SenderUser, msg.Sender)
	assert.Equal(t, "when is spring break?", msg.Content)
	assert.NotEmpty(t, msg.ID)

	outputs, err := svc.Outputs(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"seed", "You: when is spring break?"}, outputs)
}

func TestSubmitIgnoresBlankInput(t *testing.T) {
	svc := chat.NewService()
	ctx := context.Background()
	session, err := svc.CreateSession(ctx, "campus-guide", "seed")
	require.NoError(t, err)

	for _, input := range []string{"", "   ", "\t\n"} {
		_, ok, err := svc.Submit(ctx, session.ID, input)
		require.NoError(t, err)
		assert.False(t, ok, "input %q should be ignored", input)
	}

	outputs, err := svc.Outputs(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"seed"}, outputs)
}

func TestSubmitUnknownSession(t *testing.T) {
	svc := chat.NewService()

	_, _, err := svc.Submit(context.Background(), "missing", "hi")
	assert.ErrorIs(t, err, chat.ErrSessionNotFound)

	_, _, err = svc.Submit(context.Background(), "missing", " ")
	assert.ErrorIs(t, err, chat.ErrSessionNotFound)
}

func TestConcurrentAppendsKeepEveryEntry(t *testing.T) {
	svc := chat.NewService()
	ctx := context.Background()
	session, err := svc.CreateSession(ctx, "campus-guide")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, _ = svc.Submit(ctx, session.ID, fmt.Sprintf("msg-%d", i))
		}(i)
	}
	wg.Wait()

	transcript, err := svc.LoadTranscript(ctx, session.ID)
	require.NoError(t, err)
	assert.Len(t, transcript, 50)
}

func TestSubscribeDeliversAppendsInOrder(t *testing.T) {
	svc := chat.NewService()
	ctx := context.Background()
	session, err := svc.CreateSession(ctx, "campus-guide", "seed")
	require.NoError(t, err)

	history, ch, cancel, err := svc.Subscribe(ctx, session.ID)
	require.NoError(t, err)
	defer cancel()
	require.Len(t, history, 1)

	for _, text := range []string{"one", "two", "three"} {
		_, _, err := svc.Submit(ctx, session.ID, text)
		require.NoError(t, err)
	}

	for _, want := range []string{"one", "two", "three"} {
		select {
		case msg := <-ch:
			assert.Equal(t, want, msg.Content)
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for %q", want)
		}
	}
}

func TestSubscribeClosesWhenContextEnds(t *testing.T) {
	svc := chat.NewService()
	session, err := svc.CreateSession(context.Background(), "campus-guide")
	require.NoError(t, err)

	ctx, cancelCtx := context.WithCancel(context.Background())
	_, ch, cancel, err := svc.Subscribe(ctx, session.ID)
	require.NoError(t, err)
	defer cancel()

	cancelCtx()

	select {
	case _, open := <-ch:
		assert.False(t, open)
	case <-time.After(time.Second):
		t.Fatal("subscriber channel not closed after context cancel")
	}
}

func TestCloseSessionDropsTranscriptAndSubscribers(t *testing.T) {
	svc := chat.NewService()
	ctx := context.Background()
	session, err := svc.CreateSession(ctx, "campus-guide", "seed")
	require.NoError(t, err)

	_, ch, cancel, err := svc.Subscribe(ctx, session.ID)
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, svc.CloseSession(ctx, session.ID))

	_, open := <-ch
	assert.False(t, open)

	_, err = svc.LoadTranscript(ctx, session.ID)
	assert.ErrorIs(t, err, chat.ErrSessionNotFound)
	assert.ErrorIs(t, svc.CloseSession(ctx, session.ID), chat.ErrSessionNotFound)
}

func TestSubscribeDropsLaggingSubscriber(t *testing.T) {
	svc := chat.NewService()
	ctx := context.Background()
	session, err := svc.CreateSession(ctx, "campus-guide")
	require.NoError(t, err)

	_, ch, cancel, err := svc.Subscribe(ctx, session.ID)
	require.NoError(t, err)
	defer cancel()

	// one more than the subscriber buffer holds
	for i := 0; i < 65; i++ {
		_, ok, err := svc.Submit(ctx, session.ID, fmt.Sprintf("line %d", i))
		require.NoError(t, err)
		require.True(t, ok)
	}

	received := 0
	for msg := range ch {
		assert.Equal(t, fmt.Sprintf("line %d", received), msg.Content)
		received++
	}
	assert.Equal(t, 64, received)

	outputs, err := svc.Outputs(ctx, session.ID)
	require.NoError(t, err)
	assert.Len(t, outputs, 65, "dropping a subscriber must not drop transcript entries")
}
