package feed

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/zhouzirui/campus-chat/backend/internal/logging"
	"github.com/zhouzirui/campus-chat/backend/internal/model/chat"
	chatservice "github.com/zhouzirui/campus-chat/backend/internal/service/chat"
)

// DefaultInterval is the cadence of canned messages.
const DefaultInterval = 2 * time.Second

// Appender is the part of the chat service the feed writes to.
type Appender interface {
	SaveMessage(ctx context.Context, message chat.Message) error
}

// Service appends canned lines to sessions on a fixed cadence.
// Each session owns at most one ticker, stopped by Stop, StopAll or ctx.
type Service struct {
	appender Appender
	interval time.Duration

	mu      sync.Mutex
	running map[string]*runner
	wg      sync.WaitGroup
}

type runner struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// NewService creates a feed. A non-positive interval falls back to DefaultInterval.
func NewService(appender Appender, interval time.Duration) *Service {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Service{
		appender: appender,
		interval: interval,
		running:  make(map[string]*runner),
	}
}

// Interval reports the configured cadence.
func (s *Service) Interval() time.Duration {
	return s.interval
}

// Start begins appending lines to the session, cycling through them.
// It returns false when nothing was started: no lines, or already running.
func (s *Service) Start(ctx context.Context, sessionID string, lines []string) bool {
	if len(lines) == 0 {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.running[sessionID]; ok {
		return false
	}

	runCtx, cancel := context.WithCancel(ctx)
	r := &runner{cancel: cancel, done: make(chan struct{})}
	s.running[sessionID] = r

	s.wg.Add(1)
	go s.run(runCtx, sessionID, append([]string(nil), lines...), r)
	return true
}

func (s *Service) run(ctx context.Context, sessionID string, lines []string, r *runner) {
	log := logging.Named("feed")
	defer s.wg.Done()
	defer close(r.done)
	defer s.forget(sessionID, r)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	log.Debugf("started session=%s interval=%s", sessionID, s.interval)

	next := 0
	for {
		select {
		case <-ctx.Done():
			log.Debugf("stopped session=%s", sessionID)
			return
		case <-ticker.C:
			err := s.appender.SaveMessage(ctx, chat.Message{
				SessionID: sessionID,
				Sender:    chat.SenderSystem,
				Content:   lines[next],
			})
			if errors.Is(err, chatservice.ErrSessionNotFound) {
				log.Debugf("session=%s gone, stopping", sessionID)
				return
			}
			if err != nil {
				log.Warnf("append failed session=%s: %v", sessionID, err)
			}
			next = (next + 1) % len(lines)
		}
	}
}

func (s *Service) forget(sessionID string, r *runner) {
	s.mu.Lock()
	if s.running[sessionID] == r {
		delete(s.running, sessionID)
	}
	s.mu.Unlock()
}

// Running reports whether the session has an active ticker.
func (s *Service) Running(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.running[sessionID]
	return ok
}

// Stop halts the session's ticker and waits for it to exit.
func (s *Service) Stop(sessionID string) {
	s.mu.Lock()
	r, ok := s.running[sessionID]
	s.mu.Unlock()
	if !ok {
		return
	}

	r.cancel()
	<-r.done
}

// StopAll halts every ticker; used on shutdown.
func (s *Service) StopAll() {
	s.mu.Lock()
	for _, r := range s.running {
		r.cancel()
	}
	s.mu.Unlock()
	s.wg.Wait()
}
