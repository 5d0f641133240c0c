package chat_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/zhouzirui/z-shelter/backend/internal/model/dataset"
	"github.com/zhouzirui/z-shelter/backend/internal/model/persona"
	chat "github.com/zhouzirui/z-shelter/backend/internal/service/chat"
	"github.com/zhouzirui/z-shelter/backend/internal/service/conversation"
)

type nopLoader struct{}

func (nopLoader) Load(context.Context, string) ([]dataset.Record, error) {
	return nil, &dataset.LoadError{Kind: dataset.KindNotFound, Err: errors.New("none")}
}

func newService() *chat.Service {
	return chat.NewService(persona.NewMemoryStore(persona.Seed()), func(ctx context.Context, p persona.Persona) *conversation.Conversation {
		return conversation.New(ctx, p, nopLoader{}, "")
	})
}

func TestServiceGetSession(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	session, err := svc.CreateSession(ctx, persona.DefaultID)
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
	if got.PersonaID != persona.DefaultID {
		t.Fatalf("unexpected persona ID: got %s", got.PersonaID)
	}
}

func TestServiceGetSessionNotFound(t *testing.T) {
	svc := newService()
	if _, err := svc.GetSession(context.Background(), "missing"); !errors.Is(err, chat.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestServiceCreateSessionValidatesPersona(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	if _, err := svc.CreateSession(ctx, ""); !errors.Is(err, chat.ErrPersonaRequired) {
		t.Fatalf("expected ErrPersonaRequired, got %v", err)
	}
	if _, err := svc.CreateSession(ctx, "iron-man"); !errors.Is(err, chat.ErrPersonaNotFound) {
		t.Fatalf("expected ErrPersonaNotFound, got %v", err)
	}
}

func TestServiceEnsureSessionIsIdempotent(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	first, err := svc.EnsureSession(ctx, "default", persona.DefaultID)
	if err != nil {
		t.Fatalf("EnsureSession err: %v", err)
	}
	second, err := svc.EnsureSession(ctx, "default", "shelter-guide-zh")
	if err != nil {
		t.Fatalf("EnsureSession err: %v", err)
	}
	if first != second || svc.Count() != 1 {
		t.Fatalf("expected the same session, got %+v and %+v", first, second)
	}
}

func TestServiceLoadTranscriptStartsWithSeed(t *testing.T) {
	svc := newService()
	ctx := context.Background()
	session, _ := svc.CreateSession(ctx, persona.DefaultID)

	history, err := svc.LoadTranscript(ctx, session.ID)
	if err != nil {
		t.Fatalf("LoadTranscript err: %v", err)
	}
	if len(history) != 1 || history[0].Role != "system" {
		t.Fatalf("expected a single seed message, got %+v", history)
	}
}

func TestServiceWithConversationSerializesTurns(t *testing.T) {
	svc := newService()
	ctx := context.Background()
	session, _ := svc.CreateSession(ctx, persona.DefaultID)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = svc.WithConversation(ctx, session.ID, func(conv *conversation.Conversation) error {
				conv.AppendUserTurn("hello")
				conv.AppendAssistantTurn("hi")
				return nil
			})
		}()
	}
	wg.Wait()

	history, _ := svc.LoadTranscript(ctx, session.ID)
	if len(history) != 41 {
		t.Fatalf("expected 41 messages, got %d", len(history))
	}
	for i := 1; i < len(history); i += 2 {
		if history[i].Role != "user" || history[i+1].Role != "assistant" {
			t.Fatalf("turns interleaved at %d: %+v", i, history[i:i+2])
		}
	}
}

func TestServiceWithConversationHonorsContext(t *testing.T) {
	svc := newService()
	session, _ := svc.CreateSession(context.Background(), persona.DefaultID)

	release := make(chan struct{})
	go func() {
		_ = svc.WithConversation(context.Background(), session.ID, func(*conversation.Conversation) error {
			<-release
			return nil
		})
	}()
	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := svc.WithConversation(ctx, session.ID, func(*conversation.Conversation) error { return nil })
	close(release)

	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded while the session is busy, got %v", err)
	}
}
