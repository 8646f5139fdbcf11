package conversation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/zhouzirui/campus-chat/backend/internal/model/profile"
	"github.com/zhouzirui/campus-chat/backend/internal/service/ai"
	chatservice "github.com/zhouzirui/campus-chat/backend/internal/service/chat"
	"github.com/zhouzirui/campus-chat/backend/internal/service/feed"
)

type stubAnswerer struct {
	answer ai.Answer
	err    error
}

func (s stubAnswerer) Ask(context.Context, *profile.Profile, string) (ai.Answer, error) {
	return s.answer, s.err
}

func newService(answers Answerer, interval time.Duration) (*Service, *chatservice.Service) {
	chatSvc := chatservice.NewService()
	feedSvc := feed.NewService(chatSvc, interval)
	return NewService(chatSvc, feedSvc, profile.NewMemoryStore(profile.Seed()), answers), chatSvc
}

func TestOpenSeedsAndStartsFeed(t *testing.T) {
	defer goleak.VerifyNone(t)

	svc, chatSvc := newService(nil, 5*time.Millisecond)
	defer svc.Shutdown()

	session, err := svc.Open(context.Background(), "campus-guide")
	require.NoError(t, err)

	seeds := profile.Seed()[0].SeedOutputs
	require.Eventually(t, func() bool {
		outputs, _ := chatSvc.Outputs(context.Background(), session.ID)
		return len(outputs) > len(seeds)
	}, time.Second, 5*time.Millisecond)

	outputs, err := chatSvc.Outputs(context.Background(), session.ID)
	require.NoError(t, err)
	assert.Equal(t, seeds, outputs[:len(seeds)])
	assert.Equal(t, profile.Seed()[0].CannedLines[0], outputs[len(seeds)])
}

func TestOpenUnknownProfile(t *testing.T) {
	svc, _ := newService(nil, time.Hour)

	_, err := svc.Open(context.Background(), "nobody")
	assert.ErrorIs(t, err, ErrProfileNotFound)

	_, err = svc.Open(context.Background(), "")
	assert.ErrorIs(t, err, chatservice.ErrProfileRequired)
}

func TestCloseStopsFeedWithoutLeaks(t *testing.T) {
	defer goleak.VerifyNone(t)

	svc, chatSvc := newService(nil, time.Millisecond)
	session, err := svc.Open(context.Background(), "campus-guide")
	require.NoError(t, err)

	require.NoError(t, svc.Close(context.Background(), session.ID))

	_, err = chatSvc.LoadTranscript(context.Background(), session.ID)
	assert.ErrorIs(t, err, chatservice.ErrSessionNotFound)
	assert.ErrorIs(t, svc.Close(context.Background(), session.ID), chatservice.ErrSessionNotFound)
}

func TestSubmitAppendsReplyWithSources(t *testing.T) {
	answers := stubAnswerer{answer: ai.Answer{
		Answer:  "March 16.",
		Sources: []ai.Source{{URL: "https://calendar"}},
	}}
	svc, chatSvc := newService(answers, time.Hour)

	session, err := svc.Open(context.Background(), "quiet")
	require.NoError(t, err)

	ok, err := svc.Submit(context.Background(), session.ID, "when is spring break")
	require.NoError(t, err)
	require.True(t, ok)
	svc.Shutdown()

	outputs, err := chatSvc.Outputs(context.Background(), session.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"Ask me anything about campus.",
		"You: when is spring break",
		"Bot: March 16.\n\nSources: https://calendar",
	}, outputs)
}

func TestSubmitFallsBackWhenAnswerFails(t *testing.T) {
	svc, chatSvc := newService(stubAnswerer{err: errors.New("model down")}, time.Hour)

	session, err := svc.Open(context.Background(), "quiet")
	require.NoError(t, err)

	_, err = svc.Submit(context.Background(), session.ID, "hello")
	require.NoError(t, err)
	svc.Shutdown()

	outputs, err := chatSvc.Outputs(context.Background(), session.ID)
	require.NoError(t, err)
	assert.Equal(t, "Bot: "+fallbackReply, outputs[len(outputs)-1])
}

func TestSubmitBlankIsIgnored(t *testing.T) {
	svc, chatSvc := newService(stubAnswerer{answer: ai.Answer{Answer: "x"}}, time.Hour)

	session, err := svc.Open(context.Background(), "quiet")
	require.NoError(t, err)

	ok, err := svc.Submit(context.Background(), session.ID, "   ")
	require.NoError(t, err)
	assert.False(t, ok)
	svc.Shutdown()

	outputs, err := chatSvc.Outputs(context.Background(), session.ID)
	require.NoError(t, err)
	assert.Len(t, outputs, 1)
}
