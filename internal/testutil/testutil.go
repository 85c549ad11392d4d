// Package testutil provides shared test helpers for wiring the note stack.
package testutil

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/thinkink/internal/appstate"
	"github.com/starford/thinkink/internal/assistant"
	"github.com/starford/thinkink/internal/index"
	"github.com/starford/thinkink/internal/ingest"
	"github.com/starford/thinkink/internal/llm"
	"github.com/starford/thinkink/internal/noteservice"
	"github.com/starford/thinkink/internal/notestore"
	"github.com/starford/thinkink/internal/ocr"
	"github.com/starford/thinkink/internal/storage"
)

// PNG is the smallest byte sequence sniffed as image/png.
var PNG = append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 24)...)

// QuietLogger discards all output.
func QuietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "thinkink-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := index.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// StaticOCR recognizes every image as text, reporting 0, 50 and 100.
func StaticOCR(text string) ocr.Recognizer {
	return ocr.RecognizerFunc(func(_ context.Context, _ ocr.Image, onProgress ocr.ProgressFunc) (string, error) {
		for _, p := range []float64{0, 50, 100} {
			if onProgress != nil {
				onProgress(p)
			}
		}
		return text, nil
	})
}

// StaticTitler always returns title.
func StaticTitler(title string) assistant.Titler {
	return assistant.TitlerFunc(func(context.Context, string) (string, error) { return title, nil })
}

// EchoCompleter replies with "echo: " and the last message.
var EchoCompleter = llm.CompleterFunc(func(_ context.Context, req llm.Request) (string, error) {
	return "echo: " + req.Messages[len(req.Messages)-1].Content, nil
})

// Stack is a fully wired, in-memory note stack.
type Stack struct {
	Store       *notestore.Store
	DB          *index.DB
	Coord       *appstate.Coordinator
	Pipeline    *ingest.Pipeline
	Attachments *storage.Attachments
	AttachDir   string
	Chat        *assistant.Service
	Service     *noteservice.Service
}

// NewStack wires a stack around rec and titler. The coordinator is
// refreshed so the service is ready. Enrichments are awaited on cleanup.
func NewStack(t *testing.T, rec ocr.Recognizer, titler assistant.Titler) *Stack {
	t.Helper()
	logger := QuietLogger()

	st := &Stack{
		Store:     notestore.New(storage.NewMemory(), "", logger),
		DB:        TestDB(t),
		AttachDir: filepath.Join(t.TempDir(), "attachments"),
	}
	st.Store.OnChange(st.DB.Hook(nil))

	att, err := storage.NewAttachments(st.AttachDir)
	if err != nil {
		t.Fatal(err)
	}
	st.Attachments = att

	st.Coord = appstate.New(st.Store, appstate.OpenGate, logger)
	if err := st.Coord.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}
	st.Pipeline = ingest.New(rec, titler, st.Store, ingest.WithLogger(logger))
	st.Pipeline.Subscribe(st.Coord.HandleIngestEvent)
	t.Cleanup(st.Pipeline.Wait)

	st.Chat = assistant.NewService(EchoCompleter, logger)
	st.Service = noteservice.NewService(st.Coord, st.Pipeline, st.DB, st.Attachments, st.Chat, logger)
	return st
}
