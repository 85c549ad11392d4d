package ingest

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/starford/thinkink/internal/apperr"
	"github.com/starford/thinkink/internal/assistant"
	"github.com/starford/thinkink/internal/models"
	"github.com/starford/thinkink/internal/notestore"
	"github.com/starford/thinkink/internal/ocr"
	"github.com/starford/thinkink/internal/storage"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func newStore() *notestore.Store {
	return notestore.New(storage.NewMemory(), "", quietLogger())
}

// scriptedOCR emits the given progress values and returns text.
func scriptedOCR(text string, steps ...float64) ocr.Recognizer {
	return ocr.RecognizerFunc(func(_ context.Context, _ ocr.Image, onProgress ocr.ProgressFunc) (string, error) {
		for _, s := range steps {
			onProgress(s)
		}
		return text, nil
	})
}

// gatedTitler blocks until release is closed.
type gatedTitler struct {
	release chan struct{}
	title   string
	err     error
}

func newGatedTitler(title string) *gatedTitler {
	return &gatedTitler{release: make(chan struct{}), title: title}
}

func (g *gatedTitler) GenerateTitle(ctx context.Context, _ string) (string, error) {
	<-g.release
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return g.title, g.err
}

type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (l *eventLog) add(ev Event) {
	l.mu.Lock()
	l.events = append(l.events, ev)
	l.mu.Unlock()
}

func (l *eventLog) stages() []Stage {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []Stage
	for _, ev := range l.events {
		if ev.Stage != StageRecognizing {
			out = append(out, ev.Stage)
		}
	}
	return out
}

func (l *eventLog) last() Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.events[len(l.events)-1]
}

func TestIngest_EndToEnd(t *testing.T) {
	store := newStore()
	titler := newGatedTitler("Greeting Note")
	p := New(scriptedOCR("Hello World", 0, 50, 100), titler, store,
		WithLogger(quietLogger()),
		WithClock(func() time.Time { return time.UnixMilli(1700000000000) }))

	var log eventLog
	p.Subscribe(log.add)

	var progress []float64
	note, err := p.Ingest(context.Background(), Request{ID: "r1", ImageURL: "/attachments/f.png"}, func(v float64) {
		progress = append(progress, v)
	})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	// Visible in the store with the placeholder before enrichment resolves.
	got, err := store.GetByID(note.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Title != "New Note" || got.ExtractedText != "Hello World" {
		t.Fatalf("persisted = %+v", got)
	}
	if got.ImageURL != "/attachments/f.png" || got.CreatedAt != 1700000000000 {
		t.Errorf("persisted = %+v", got)
	}

	for i := 1; i < len(progress); i++ {
		if progress[i] < progress[i-1] {
			t.Fatalf("progress not monotonic: %v", progress)
		}
	}
	if progress[0] != 0 || progress[len(progress)-1] != 100 {
		t.Errorf("progress = %v, want to start at 0 and end at 100", progress)
	}

	close(titler.release)
	p.Wait()

	got, _ = store.GetByID(note.ID)
	if got.Title != "Greeting Note" {
		t.Errorf("title = %q, want Greeting Note", got.Title)
	}
	if last := log.last(); last.Stage != StageEnriched || last.Note.Title != "Greeting Note" || last.RequestID != "r1" {
		t.Errorf("last event = %+v", last)
	}
	want := []Stage{StagePersisted, StageEnriched}
	if s := log.stages(); len(s) != 2 || s[0] != want[0] || s[1] != want[1] {
		t.Errorf("stages = %v, want %v", s, want)
	}
}

func TestIngest_DeleteBeforeEnrichmentIsNotResurrected(t *testing.T) {
	store := newStore()
	titler := newGatedTitler("Too Late")
	p := New(scriptedOCR("text"), titler, store, WithLogger(quietLogger()))
	var log eventLog
	p.Subscribe(log.add)

	note, err := p.Ingest(context.Background(), Request{}, nil)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if err := store.Delete(note.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	close(titler.release)
	p.Wait()

	if _, err := store.GetByID(note.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("GetByID err = %v, want ErrNotFound", err)
	}
	if len(store.GetAll()) != 0 {
		t.Errorf("store = %v, want empty", store.GetAll())
	}
	if last := log.last(); last.Stage != StageDropped {
		t.Errorf("last stage = %s, want dropped", last.Stage)
	}
}

func TestIngest_EditBeforeEnrichmentIsPreserved(t *testing.T) {
	store := newStore()
	titler := newGatedTitler("Generated")
	p := New(scriptedOCR("original"), titler, store, WithLogger(quietLogger()))

	note, _ := p.Ingest(context.Background(), Request{}, nil)
	if _, err := store.Update(note.ID, func(n *models.Note) error {
		n.ExtractedText = "X"
		return nil
	}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	close(titler.release)
	p.Wait()

	got, _ := store.GetByID(note.ID)
	if got.ExtractedText != "X" || got.Title != "Generated" {
		t.Errorf("note = %+v, want edit and title both kept", got)
	}
}

func TestIngest_TitleFailureFallsBack(t *testing.T) {
	store := newStore()
	titler := assistant.TitlerFunc(func(context.Context, string) (string, error) {
		return "", apperr.ErrTitleGeneration
	})
	p := New(scriptedOCR("text"), titler, store, WithLogger(quietLogger()))
	var log eventLog
	p.Subscribe(log.add)

	note, err := p.Ingest(context.Background(), Request{}, nil)
	if err != nil {
		t.Fatalf("Ingest must not fail on title errors: %v", err)
	}
	p.Wait()

	got, _ := store.GetByID(note.ID)
	if got.Title != models.FallbackTitle {
		t.Errorf("title = %q, want %q", got.Title, models.FallbackTitle)
	}
	if last := log.last(); last.Stage != StageEnrichFailed {
		t.Errorf("last stage = %s", last.Stage)
	}
}

func TestIngest_BlankTitleFallsBack(t *testing.T) {
	store := newStore()
	titler := assistant.TitlerFunc(func(context.Context, string) (string, error) { return "   ", nil })
	p := New(scriptedOCR("text"), titler, store, WithLogger(quietLogger()), WithTitles("Draft", "Unnamed"))

	note, _ := p.Ingest(context.Background(), Request{}, nil)
	if note.Title != "Draft" {
		t.Errorf("placeholder = %q, want Draft", note.Title)
	}
	p.Wait()
	if got, _ := store.GetByID(note.ID); got.Title != "Unnamed" {
		t.Errorf("title = %q, want Unnamed", got.Title)
	}
}

func TestIngest_OCRFailurePersistsNothing(t *testing.T) {
	for name, rerr := range map[string]error{
		"wrapped": apperr.ErrOCRFailure,
		"raw":     errors.New("engine crashed"),
	} {
		t.Run(name, func(t *testing.T) {
			store := newStore()
			rec := ocr.RecognizerFunc(func(_ context.Context, _ ocr.Image, onProgress ocr.ProgressFunc) (string, error) {
				onProgress(40)
				return "", rerr
			})
			p := New(rec, assistant.HeuristicTitler{}, store, WithLogger(quietLogger()))
			var log eventLog
			p.Subscribe(log.add)

			_, err := p.Ingest(context.Background(), Request{}, nil)
			if !errors.Is(err, apperr.ErrOCRFailure) {
				t.Fatalf("err = %v, want ErrOCRFailure", err)
			}
			p.Wait()
			if n := len(store.GetAll()); n != 0 {
				t.Errorf("store has %d notes, want 0", n)
			}
			if last := log.last(); last.Stage != StageFailed {
				t.Errorf("last stage = %s, want failed", last.Stage)
			}
		})
	}
}

type failingStore struct{ NoteStore }

func (failingStore) Save(models.Note) error {
	return errors.Join(apperr.ErrStorageWrite, errors.New("quota exceeded"))
}

func TestIngest_StorageWriteFailureSurfaces(t *testing.T) {
	called := false
	titler := assistant.TitlerFunc(func(context.Context, string) (string, error) {
		called = true
		return "t", nil
	})
	p := New(scriptedOCR("text"), titler, failingStore{newStore()}, WithLogger(quietLogger()))

	if _, err := p.Ingest(context.Background(), Request{}, nil); !errors.Is(err, apperr.ErrStorageWrite) {
		t.Fatalf("err = %v, want ErrStorageWrite", err)
	}
	p.Wait()
	if called {
		t.Error("enrichment started for an unsaved note")
	}
}

func TestIngest_ProgressClampedAndMonotonic(t *testing.T) {
	p := New(scriptedOCR("t", -5, 30, 20, 150), assistant.HeuristicTitler{}, newStore(), WithLogger(quietLogger()))
	var progress []float64
	if _, err := p.Ingest(context.Background(), Request{}, func(v float64) { progress = append(progress, v) }); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	p.Wait()

	want := []float64{0, 0, 30, 30, 100, 100}
	if len(progress) != len(want) {
		t.Fatalf("progress = %v, want %v", progress, want)
	}
	for i := range want {
		if progress[i] != want[i] {
			t.Fatalf("progress = %v, want %v", progress, want)
		}
	}
}

func TestIngest_CallerCancellationDoesNotStopEnrichment(t *testing.T) {
	store := newStore()
	titler := newGatedTitler("Survives")
	p := New(scriptedOCR("text"), titler, store, WithLogger(quietLogger()))

	ctx, cancel := context.WithCancel(context.Background())
	note, err := p.Ingest(ctx, Request{}, nil)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	cancel()
	close(titler.release)
	p.Wait()

	if got, _ := store.GetByID(note.ID); got.Title != "Survives" {
		t.Errorf("title = %q, want Survives", got.Title)
	}
}

func TestIngest_UniqueIDs(t *testing.T) {
	store := newStore()
	p := New(scriptedOCR("t"), assistant.HeuristicTitler{}, store,
		WithLogger(quietLogger()),
		WithClock(func() time.Time { return time.UnixMilli(5) }))

	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		n, err := p.Ingest(context.Background(), Request{}, nil)
		if err != nil {
			t.Fatalf("Ingest: %v", err)
		}
		if seen[n.ID] {
			t.Fatalf("duplicate id %s for identical timestamps", n.ID)
		}
		seen[n.ID] = true
	}
	p.Wait()
	if len(store.GetAll()) != 20 {
		t.Errorf("store len = %d, want 20", len(store.GetAll()))
	}
}

func TestSubscribe_Unsubscribe(t *testing.T) {
	p := New(scriptedOCR("t"), assistant.HeuristicTitler{}, newStore(), WithLogger(quietLogger()))
	var log eventLog
	unsub := p.Subscribe(log.add)
	unsub()
	_, _ = p.Ingest(context.Background(), Request{}, nil)
	p.Wait()
	if len(log.events) != 0 {
		t.Errorf("received %d events after unsubscribe", len(log.events))
	}
}
