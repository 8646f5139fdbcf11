package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/zhouzirui/campus-chat/backend/internal/logging"
	"github.com/zhouzirui/campus-chat/backend/internal/model/chat"
	"github.com/zhouzirui/campus-chat/backend/internal/model/profile"
	"github.com/zhouzirui/campus-chat/backend/internal/service/ai"
	chatservice "github.com/zhouzirui/campus-chat/backend/internal/service/chat"
	"github.com/zhouzirui/campus-chat/backend/internal/service/feed"
)

var ErrProfileNotFound = errors.New("profile not found")

const (
	replyTimeout  = 90 * time.Second
	fallbackReply = "Sorry, I could not answer that right now."
)

// Answerer produces assistant replies for submitted text.
type Answerer interface {
	Ask(ctx context.Context, p *profile.Profile, query string) (ai.Answer, error)
}

// Service ties a session's transcript to its canned feed and, when an
// answerer is configured, to assistant replies.
type Service struct {
	chat     *chatservice.Service
	feed     *feed.Service
	profiles profile.Store
	answers  Answerer

	replies sync.WaitGroup
}

// NewService wires the collaborators; feed and answers may be nil.
func NewService(chatSvc *chatservice.Service, feedSvc *feed.Service, profiles profile.Store, answers Answerer) *Service {
	return &Service{
		chat:     chatSvc,
		feed:     feedSvc,
		profiles: profiles,
		answers:  answers,
	}
}

// Answering reports whether submissions get assistant replies.
func (s *Service) Answering() bool {
	return s.answers != nil
}

// Open creates a session seeded with the profile's outputs and starts its feed.
// The feed lives until Close, not until ctx ends.
func (s *Service) Open(ctx context.Context, profileID string) (chat.Session, error) {
	if profileID == "" {
		return chat.Session{}, chatservice.ErrProfileRequired
	}
	p, ok := s.profiles.FindByID(profileID)
	if !ok {
		return chat.Session{}, fmt.Errorf("%w: %s", ErrProfileNotFound, profileID)
	}

	session, err := s.chat.CreateSession(ctx, p.ID, p.SeedOutputs...)
	if err != nil {
		return chat.Session{}, err
	}

	if s.feed != nil {
		s.feed.Start(context.WithoutCancel(ctx), session.ID, p.CannedLines)
	}

	logging.Named("conversation").Infof("opened session=%s profile=%s", session.ID, p.ID)
	return session, nil
}

// Submit appends user text; blank text is ignored. When answering is enabled
// the reply is appended asynchronously.
func (s *Service) Submit(ctx context.Context, sessionID, text string) (bool, error) {
	msg, ok, err := s.chat.Submit(ctx, sessionID, text)
	if err != nil || !ok {
		return false, err
	}

	if s.answers != nil {
		session, err := s.chat.GetSession(ctx, sessionID)
		if err != nil {
			return true, nil
		}
		p, _ := s.profiles.FindByID(session.ProfileID)

		s.replies.Add(1)
		go s.reply(context.WithoutCancel(ctx), sessionID, &p, msg.Content)
	}
	return true, nil
}

func (s *Service) reply(ctx context.Context, sessionID string, p *profile.Profile, query string) {
	defer s.replies.Done()
	log := logging.Named("conversation")

	ctx, cancel := context.WithTimeout(ctx, replyTimeout)
	defer cancel()

	content := fallbackReply
	answer, err := s.answers.Ask(ctx, p, query)
	if err != nil {
		log.Warnf("answer failed session=%s: %v", sessionID, err)
	} else if answer.Answer != "" {
		content = formatAnswer(answer)
	}

	err = s.chat.SaveMessage(ctx, chat.Message{
		SessionID: sessionID,
		Sender:    chat.SenderAssistant,
		Content:   content,
	})
	if err != nil && !errors.Is(err, chatservice.ErrSessionNotFound) {
		log.Warnf("failed to save reply session=%s: %v", sessionID, err)
	}
}

func formatAnswer(answer ai.Answer) string {
	if len(answer.Sources) == 0 {
		return answer.Answer
	}
	urls := make([]string, len(answer.Sources))
	for i, src := range answer.Sources {
		urls[i] = src.URL
	}
	return answer.Answer + "\n\nSources: " + strings.Join(urls, ", ")
}

// Close stops the session's feed and discards its transcript.
func (s *Service) Close(ctx context.Context, sessionID string) error {
	if s.feed != nil {
		s.feed.Stop(sessionID)
	}
	if err := s.chat.CloseSession(ctx, sessionID); err != nil {
		return err
	}
	logging.Named("conversation").Infof("closed session=%s", sessionID)
	return nil
}

// Shutdown stops every feed and waits for in-flight replies.
func (s *Service) Shutdown() {
	if s.feed != nil {
		s.feed.StopAll()
	}
	s.replies.Wait()
}
