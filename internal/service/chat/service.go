package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/zhouzirui/campus-chat/backend/internal/model/chat"
)

var (
	ErrProfileRequired = errors.New("profile id is required")
	ErrSessionNotFound = errors.New("session not found")
)

// subscriberBuffer bounds how far a subscriber may lag before it is dropped.
const subscriberBuffer = 64

type subscriber struct {
	ch   chan chat.Message
	once sync.Once
}

func (s *subscriber) close() {
	s.once.Do(func() { close(s.ch) })
}

// Service keeps one append-only transcript per session.
type Service struct {
	mu          sync.RWMutex
	sessions    map[string]chat.Session
	messages    map[string][]chat.Message
	subscribers map[string]map[*subscriber]struct{}
}

// NewService bootstraps the in-memory chat service.
func NewService() *Service {
	return &Service{
		sessions:    make(map[string]chat.Session),
		messages:    make(map[string][]chat.Message),
		subscribers: make(map[string]map[*subscriber]struct{}),
	}
}

// CreateSession provisions an anonymous session and seeds its transcript.
func (s *Service) CreateSession(_ context.Context, profileID string, seed ...string) (chat.Session, error) {
	if profileID == "" {
		return chat.Session{}, ErrProfileRequired
	}

	now := time.Now().UTC()
	session := chat.Session{
		ID:        uuid.NewString(),
		ProfileID: profileID,
		CreatedAt: now,
	}

	transcript := make([]chat.Message, 0, len(seed)+16)
	for _, line := range seed {
		transcript = append(transcript, chat.Message{
			ID:        uuid.NewString(),
			SessionID: session.ID,
			Sender:    chat.SenderSystem,
			Content:   line,
			CreatedAt: now,
		})
	}

	s.mu.Lock()
	s.sessions[session.ID] = session
	s.messages[session.ID] = transcript
	s.mu.Unlock()

	return session, nil
}

// Submit appends user text. Blank input is ignored and reported with ok=false.
func (s *Service) Submit(ctx context.Context, sessionID, text string) (chat.Message, bool, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		if _, err := s.GetSession(ctx, sessionID); err != nil {
			return chat.Message{}, false, err
		}
		return chat.Message{}, false, nil
	}

	msg, err := s.append(chat.Message{
		SessionID: sessionID,
		Sender:    chat.SenderUser,
		Content:   trimmed,
	})
	if err != nil {
		return chat.Message{}, false, err
	}
	return msg, true, nil
}

// SaveMessage appends a message to the session history.
func (s *Service) SaveMessage(_ context.Context, message chat.Message) error {
	_, err := s.append(message)
	return err
}

func (s *Service) append(message chat.Message) (chat.Message, error) {
	if message.SessionID == "" {
		return chat.Message{}, ErrSessionNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[message.SessionID]; !ok {
		return chat.Message{}, ErrSessionNotFound
	}

	message.ID = uuid.NewString()
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now().UTC()
	}

	s.messages[message.SessionID] = append(s.messages[message.SessionID], message)

	for sub := range s.subscribers[message.SessionID] {
		select {
		case sub.ch <- message:
		default:
			// lagging subscriber, drop it rather than block appends
			delete(s.subscribers[message.SessionID], sub)
			sub.close()
		}
	}

	return message, nil
}

// GetSession retrieves a session by identifier.
func (s *Service) GetSession(_ context.Context, sessionID string) (chat.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return chat.Session{}, ErrSessionNotFound
	}
	return session, nil
}

// LoadTranscript returns stored messages for the provided session.
func (s *Service) LoadTranscript(_ context.Context, sessionID string) ([]chat.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	messages, ok := s.messages[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}

	copied := make([]chat.Message, len(messages))
	copy(copied, messages)
	return copied, nil
}

// Outputs returns the transcript rendered as display strings.
func (s *Service) Outputs(ctx context.Context, sessionID string) ([]string, error) {
	messages, err := s.LoadTranscript(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	outputs := make([]string, len(messages))
	for i, msg := range messages {
		outputs[i] = msg.Output()
	}
	return outputs, nil
}

// Subscribe returns the transcript so far plus a channel receiving every later
// append in order. The channel closes when ctx ends, the returned cancel func
// is called, the session is closed, or the subscriber falls too far behind.
func (s *Service) Subscribe(ctx context.Context, sessionID string) ([]chat.Message, <-chan chat.Message, func(), error) {
	sub := &subscriber{ch: make(chan chat.Message, subscriberBuffer)}

	s.mu.Lock()
	messages, ok := s.messages[sessionID]
	if !ok {
		s.mu.Unlock()
		return nil, nil, nil, ErrSessionNotFound
	}
	history := make([]chat.Message, len(messages))
	copy(history, messages)

	if s.subscribers[sessionID] == nil {
		s.subscribers[sessionID] = make(map[*subscriber]struct{})
	}
	s.subscribers[sessionID][sub] = struct{}{}
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if subs, ok := s.subscribers[sessionID]; ok {
			delete(subs, sub)
		}
		s.mu.Unlock()
		sub.close()
	}

	stop := context.AfterFunc(ctx, cancel)
	return history, sub.ch, func() {
		stop()
		cancel()
	}, nil
}

// CloseSession discards the transcript and closes every subscriber.
func (s *Service) CloseSession(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sessionID]; !ok {
		return ErrSessionNotFound
	}

	for sub := range s.subscribers[sessionID] {
		sub.close()
	}
	delete(s.subscribers, sessionID)
	delete(s.messages, sessionID)
	delete(s.sessions, sessionID)
	return nil
}
