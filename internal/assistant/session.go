package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/starford/thinkink/internal/apperr"
	"github.com/starford/thinkink/internal/llm"
	"github.com/starford/thinkink/internal/models"
)

// Canned replies.
const (
	IntroMessage = "Hi! I've analyzed your note. What would you like to know? " +
		"I can summarize it, explain difficult concepts, or create a quiz for you."
	ErrorReply = "Sorry, I encountered an error while processing your request. " +
		"Please check your API key connection."
	EmptyReply = "I couldn't generate a response."

	introID     = "intro"
	temperature = 0.7

	// DefaultSessionIdleTTL is how long an unused session is kept.
	DefaultSessionIdleTTL = 30 * time.Minute
)

const systemTemplate = `You are ThinkInk AI, an intelligent research assistant integrated into a note-taking app.

Your Context:
The user is viewing a handwritten note that has been converted to text via OCR.
The text content of the current note is provided below.

Instructions:
1. Answer questions based primarily on the provided note context.
2. If the OCR text contains errors (typos, nonsense characters), try to infer the intended meaning or politely mention the ambiguity.
3. Provide concise summaries, explanations, or study quizzes when asked.
4. Format your responses using Markdown (bold, lists, code blocks) for readability.

Note Content:
"""
%s
"""`

var suggestions = []string{"Summarize this", "Explain key points", "Create a quiz"}

// Suggestions returns the canned prompts offered to start a conversation.
func Suggestions() []string {
	return append([]string(nil), suggestions...)
}

// Session is a snapshot of one conversation.
type Session struct {
	ID       string               `json:"id"`
	NoteID   string               `json:"noteId,omitempty"`
	Messages []models.ChatMessage `json:"messages"`
}

type session struct {
	noteID   string
	system   string
	messages []models.ChatMessage
	// lastUsed is guarded by Service.mu.
	lastUsed time.Time
	// mu serializes turns so history stays in request/reply order.
	mu sync.Mutex
}

// Service keeps in-memory chat sessions grounded in a note's text.
type Service struct {
	completer llm.Completer
	logger    *slog.Logger
	now       func() time.Time
	idleTTL   time.Duration

	mu       sync.Mutex
	sessions map[string]*session
}

// Option configures a Service.
type Option func(*Service)

// WithSessionIdleTTL sets how long a session may sit unused before it is
// discarded. Zero keeps sessions until they are closed.
func WithSessionIdleTTL(d time.Duration) Option {
	return func(s *Service) {
		s.idleTTL = d
	}
}

// NewService creates a Service. A nil logger uses slog.Default.
func NewService(c llm.Completer, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		completer: c,
		logger:    logger,
		now:       time.Now,
		idleTTL:   DefaultSessionIdleTTL,
		sessions:  make(map[string]*session),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateSession starts a conversation about contextText, seeded with the
// intro message.
func (s *Service) CreateSession(noteID, contextText string) Session {
	now := s.now()
	sess := &session{
		noteID: noteID,
		system: fmt.Sprintf(systemTemplate, contextText),
		messages: []models.ChatMessage{{
			ID:        introID,
			Role:      models.RoleModel,
			Text:      IntroMessage,
			Timestamp: now.UnixMilli(),
		}},
		lastUsed: now,
	}
	id := uuid.NewString()

	s.mu.Lock()
	s.sweepLocked(now)
	s.sessions[id] = sess
	s.mu.Unlock()

	return Session{ID: id, NoteID: noteID, Messages: append([]models.ChatMessage(nil), sess.messages...)}
}

// SendMessage appends a user message, asks the model and returns its reply.
// Provider failures never surface as errors: the reply carries ErrorReply
// instead. Unknown sessions return apperr.ErrNotFound and blank text
// apperr.ErrInvalidInput.
func (s *Service) SendMessage(ctx context.Context, sessionID, text string) (models.ChatMessage, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return models.ChatMessage{}, fmt.Errorf("assistant: %w: empty message", apperr.ErrInvalidInput)
	}
	sess, err := s.get(sessionID)
	if err != nil {
		return models.ChatMessage{}, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	sess.messages = append(sess.messages, models.ChatMessage{
		ID:        uuid.NewString(),
		Role:      models.RoleUser,
		Text:      text,
		Timestamp: s.now().UnixMilli(),
	})

	replyText := s.complete(ctx, sess)
	reply := models.ChatMessage{
		ID:        uuid.NewString(),
		Role:      models.RoleModel,
		Text:      replyText,
		Timestamp: s.now().UnixMilli(),
	}
	sess.messages = append(sess.messages, reply)
	return reply, nil
}

// Messages returns the conversation history.
func (s *Service) Messages(sessionID string) ([]models.ChatMessage, error) {
	sess, err := s.get(sessionID)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return append([]models.ChatMessage(nil), sess.messages...), nil
}

// CloseSession discards a conversation. Unknown ids are a no-op.
func (s *Service) CloseSession(sessionID string) {
	s.mu.Lock()
	delete(s.sessions, sessionID)
	s.mu.Unlock()
}

func (s *Service) get(id string) (*session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	sess, ok := s.sessions[id]
	if ok && s.expired(sess, now) {
		delete(s.sessions, id)
		ok = false
	}
	if !ok {
		return nil, fmt.Errorf("assistant: session %s: %w", id, apperr.ErrNotFound)
	}
	sess.lastUsed = now
	return sess, nil
}

func (s *Service) expired(sess *session, now time.Time) bool {
	return s.idleTTL > 0 && now.Sub(sess.lastUsed) > s.idleTTL
}

// sweepLocked drops idle sessions. s.mu must be held.
func (s *Service) sweepLocked(now time.Time) {
	for id, sess := range s.sessions {
		if s.expired(sess, now) {
			delete(s.sessions, id)
			s.logger.Debug("assistant: session expired",
				slog.String("session_id", id), slog.String("note_id", sess.noteID))
		}
	}
}

// complete must be called with sess.mu held.
func (s *Service) complete(ctx context.Context, sess *session) string {
	if s.completer == nil {
		s.logger.Warn("assistant: no language model configured")
		return ErrorReply
	}
	history := make([]llm.Message, 0, len(sess.messages))
	for _, m := range sess.messages {
		if m.ID == introID {
			continue
		}
		role := llm.RoleUser
		if m.Role == models.RoleModel {
			role = llm.RoleAssistant
		}
		history = append(history, llm.Message{Role: role, Content: m.Text})
	}

	out, err := s.completer.Complete(ctx, llm.Request{
		System:      sess.system,
		Messages:    history,
		Temperature: temperature,
	})
	if errors.Is(err, llm.ErrEmptyResponse) {
		return EmptyReply
	}
	if err != nil {
		s.logger.Warn("assistant: completion failed",
			slog.String("note_id", sess.noteID), slog.String("error", err.Error()))
		return ErrorReply
	}
	if strings.TrimSpace(out) == "" {
		return EmptyReply
	}
	return out
}
