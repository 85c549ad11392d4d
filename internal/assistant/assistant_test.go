package assistant

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/starford/thinkink/internal/apperr"
	"github.com/starford/thinkink/internal/llm"
	"github.com/starford/thinkink/internal/models"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

type recordingCompleter struct {
	mu    sync.Mutex
	reqs  []llm.Request
	reply string
	err   error
}

func (c *recordingCompleter) Complete(_ context.Context, req llm.Request) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reqs = append(c.reqs, req)
	return c.reply, c.err
}

func TestLLMTitler_TruncatesAndCleans(t *testing.T) {
	c := &recordingCompleter{reply: "  \"Greeting Note\"\n"}
	title, err := NewLLMTitler(c).GenerateTitle(context.Background(), strings.Repeat("é", 800))
	if err != nil {
		t.Fatalf("GenerateTitle: %v", err)
	}
	if title != "Greeting Note" {
		t.Errorf("title = %q", title)
	}
	prompt := c.reqs[0].Messages[0].Content
	if !strings.HasPrefix(prompt, titlePrompt) {
		t.Errorf("prompt = %q", prompt)
	}
	if n := len([]rune(strings.TrimPrefix(prompt, titlePrompt))); n != titleSourceLimit {
		t.Errorf("sent %d runes, want %d", n, titleSourceLimit)
	}
}

func TestLLMTitler_Failures(t *testing.T) {
	for name, c := range map[string]*recordingCompleter{
		"provider error": {err: errors.New("rate limited")},
		"blank answer":   {reply: "  \"\"  "},
	} {
		if _, err := NewLLMTitler(c).GenerateTitle(context.Background(), "text"); !errors.Is(err, apperr.ErrTitleGeneration) {
			t.Errorf("%s: err = %v, want ErrTitleGeneration", name, err)
		}
	}
}

func TestHeuristicTitler(t *testing.T) {
	title, err := HeuristicTitler{}.GenerateTitle(context.Background(), "\n# Lecture 4: Thermodynamics and entropy basics\nmore")
	if err != nil {
		t.Fatalf("GenerateTitle: %v", err)
	}
	if title != "Lecture 4 Thermodynamics and entropy" {
		t.Errorf("title = %q", title)
	}
	if _, err := (HeuristicTitler{}).GenerateTitle(context.Background(), "  ...  "); !errors.Is(err, apperr.ErrTitleGeneration) {
		t.Errorf("err = %v, want ErrTitleGeneration", err)
	}
}

func TestSession_Conversation(t *testing.T) {
	c := &recordingCompleter{reply: "It is about optics."}
	svc := NewService(c, quietLogger())

	sess := svc.CreateSession("n1", "refraction notes")
	if len(sess.Messages) != 1 || sess.Messages[0].Text != IntroMessage || sess.Messages[0].Role != models.RoleModel {
		t.Fatalf("intro = %+v", sess.Messages)
	}

	reply, err := svc.SendMessage(context.Background(), sess.ID, "Summarize this")
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if reply.Text != "It is about optics." || reply.Role != models.RoleModel {
		t.Errorf("reply = %+v", reply)
	}

	req := c.reqs[0]
	if !strings.Contains(req.System, "refraction notes") || !strings.Contains(req.System, "ThinkInk AI") {
		t.Errorf("system = %q", req.System)
	}
	if req.Temperature != 0.7 {
		t.Errorf("temperature = %v", req.Temperature)
	}
	if len(req.Messages) != 1 || req.Messages[0].Content != "Summarize this" {
		t.Errorf("history sent = %+v, intro must be excluded", req.Messages)
	}

	_, _ = svc.SendMessage(context.Background(), sess.ID, "More?")
	if got := c.reqs[1].Messages; len(got) != 3 || got[1].Role != llm.RoleAssistant {
		t.Errorf("second turn history = %+v", got)
	}

	msgs, err := svc.Messages(sess.ID)
	if err != nil {
		t.Fatalf("Messages: %v", err)
	}
	if len(msgs) != 5 {
		t.Errorf("messages = %d, want intro + 2 turns", len(msgs))
	}
}

func TestSession_Fallbacks(t *testing.T) {
	c := &recordingCompleter{err: errors.New("network down")}
	svc := NewService(c, quietLogger())
	sess := svc.CreateSession("n1", "x")

	reply, err := svc.SendMessage(context.Background(), sess.ID, "hi")
	if err != nil {
		t.Fatalf("SendMessage returned error: %v", err)
	}
	if reply.Text != ErrorReply {
		t.Errorf("reply = %q, want error fallback", reply.Text)
	}

	c.err = llm.ErrEmptyResponse
	reply, _ = svc.SendMessage(context.Background(), sess.ID, "hi again")
	if reply.Text != EmptyReply {
		t.Errorf("reply = %q, want empty fallback", reply.Text)
	}

	c.err = nil
	c.reply = "   "
	reply, _ = svc.SendMessage(context.Background(), sess.ID, "third")
	if reply.Text != EmptyReply {
		t.Errorf("reply = %q, want empty fallback", reply.Text)
	}

	noModel := NewService(nil, quietLogger())
	s2 := noModel.CreateSession("", "x")
	if reply, _ := noModel.SendMessage(context.Background(), s2.ID, "hi"); reply.Text != ErrorReply {
		t.Errorf("no model reply = %q", reply.Text)
	}
}

func TestSession_Errors(t *testing.T) {
	svc := NewService(&recordingCompleter{reply: "ok"}, quietLogger())
	if _, err := svc.SendMessage(context.Background(), "missing", "hi"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	sess := svc.CreateSession("n", "x")
	if _, err := svc.SendMessage(context.Background(), sess.ID, "   "); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Errorf("err = %v, want ErrInvalidInput", err)
	}
	svc.CloseSession(sess.ID)
	if _, err := svc.Messages(sess.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound after close", err)
	}
}

func TestSession_IdleExpiry(t *testing.T) {
	clock := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	svc := NewService(&recordingCompleter{reply: "ok"}, quietLogger(), WithSessionIdleTTL(time.Minute))
	svc.now = func() time.Time { return clock }

	active := svc.CreateSession("n1", "text")
	abandoned := svc.CreateSession("n2", "text")

	clock = clock.Add(50 * time.Second)
	if _, err := svc.SendMessage(context.Background(), active.ID, "hi"); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	clock = clock.Add(30 * time.Second)
	if _, err := svc.Messages(abandoned.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("abandoned session err = %v, want ErrNotFound", err)
	}
	if _, err := svc.Messages(active.ID); err != nil {
		t.Errorf("active session: %v", err)
	}

	clock = clock.Add(2 * time.Minute)
	svc.CreateSession("n3", "text")
	svc.mu.Lock()
	n := len(svc.sessions)
	svc.mu.Unlock()
	if n != 1 {
		t.Errorf("sessions = %d, want 1 after sweep", n)
	}
}

func TestSession_ZeroTTLKeepsSessions(t *testing.T) {
	clock := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	svc := NewService(nil, quietLogger(), WithSessionIdleTTL(0))
	svc.now = func() time.Time { return clock }
	sess := svc.CreateSession("n1", "text")
	clock = clock.Add(24 * time.Hour)
	if _, err := svc.Messages(sess.ID); err != nil {
		t.Errorf("Messages: %v", err)
	}
}

func TestSuggestionsCopy(t *testing.T) {
	s := Suggestions()
	s[0] = "changed"
	if Suggestions()[0] != "Summarize this" {
		t.Error("Suggestions leaked internal slice")
	}
}
