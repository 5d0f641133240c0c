package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zhouzirui/z-shelter/backend/internal/model/chat"
	"github.com/zhouzirui/z-shelter/backend/internal/model/persona"
	"github.com/zhouzirui/z-shelter/backend/internal/service/conversation"
)

var (
	ErrPersonaRequired = errors.New("persona id is required")
	ErrPersonaNotFound = errors.New("persona not found")
	ErrSessionNotFound = errors.New("session not found")
)

// ConversationFactory 为新会话创建状态机
type ConversationFactory func(ctx context.Context, p persona.Persona) *conversation.Conversation

// entry 一个会话及其串行化信号量，turn 期间独占
type entry struct {
	session chat.Session
	conv    *conversation.Conversation
	turn    chan struct{}
}

// Service 内存会话注册表，不同会话互不阻塞，同一会话的轮次串行执行。
type Service struct {
	mu       sync.RWMutex
	sessions map[string]*entry
	personas persona.Store
	factory  ConversationFactory
}

func NewService(personas persona.Store, factory ConversationFactory) *Service {
	return &Service{
		sessions: make(map[string]*entry),
		personas: personas,
		factory:  factory,
	}
}

// CreateSession provisions a session bound to a persona.
func (s *Service) CreateSession(ctx context.Context, personaID string) (chat.Session, error) {
	return s.createSession(ctx, uuid.NewString(), personaID)
}

// EnsureSession 以固定 ID 创建会话，已存在时直接返回，用于进程启动时的默认会话
func (s *Service) EnsureSession(ctx context.Context, sessionID, personaID string) (chat.Session, error) {
	if session, err := s.GetSession(ctx, sessionID); err == nil {
		return session, nil
	}
	return s.createSession(ctx, sessionID, personaID)
}

func (s *Service) createSession(ctx context.Context, sessionID, personaID string) (chat.Session, error) {
	if personaID == "" {
		return chat.Session{}, ErrPersonaRequired
	}
	p, ok := s.personas.FindByID(personaID)
	if !ok {
		return chat.Session{}, fmt.Errorf("%w: %s", ErrPersonaNotFound, personaID)
	}

	e := &entry{
		session: chat.Session{
			ID:        sessionID,
			PersonaID: personaID,
			CreatedAt: time.Now().UTC(),
		},
		conv: s.factory(ctx, p),
		turn: make(chan struct{}, 1),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.sessions[sessionID]; ok {
		return existing.session, nil
	}
	s.sessions[sessionID] = e
	return e.session, nil
}

// GetSession retrieves a session by identifier.
func (s *Service) GetSession(_ context.Context, sessionID string) (chat.Session, error) {
	e, err := s.lookup(sessionID)
	if err != nil {
		return chat.Session{}, err
	}
	return e.session, nil
}

// WithConversation 在会话的临界区内执行 fn；等待期间 ctx 取消则放弃。
func (s *Service) WithConversation(ctx context.Context, sessionID string, fn func(*conversation.Conversation) error) error {
	e, err := s.lookup(sessionID)
	if err != nil {
		return err
	}

	select {
	case e.turn <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-e.turn }()

	return fn(e.conv)
}

// LoadTranscript returns a snapshot of the session history.
func (s *Service) LoadTranscript(ctx context.Context, sessionID string) ([]chat.Message, error) {
	var history []chat.Message
	err := s.WithConversation(ctx, sessionID, func(conv *conversation.Conversation) error {
		history = conv.History()
		return nil
	})
	return history, err
}

// Count returns the number of live sessions.
func (s *Service) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *Service) lookup(sessionID string) (*entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return e, nil
}
