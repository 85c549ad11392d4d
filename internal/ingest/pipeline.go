// Package ingest turns an uploaded page image into a persisted note and
// enriches its title in the background.
package ingest

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
	"github.com/starford/thinkink/internal/assistant"
	"github.com/starford/thinkink/internal/models"
	"github.com/starford/thinkink/internal/ocr"
)

const defaultTitleTimeout = 30 * time.Second

// Stage is a step of the per-request state machine.
type Stage string

// Stages, in the order a request moves through them. Failed ends a request
// whose recognition failed; Enriched, EnrichFailed and Dropped end enrichment.
const (
	StageRecognizing  Stage = "recognizing"
	StageFailed       Stage = "failed"
	StagePersisted    Stage = "persisted"
	StageEnriched     Stage = "enriched"
	StageEnrichFailed Stage = "enrich_failed"
	StageDropped      Stage = "dropped"
)

// Event reports a stage transition or progress for one request.
type Event struct {
	RequestID string      `json:"requestId"`
	Stage     Stage       `json:"stage"`
	Progress  float64     `json:"progress"`
	Note      models.Note `json:"note"`
}

// NoteStore is the subset of the note store the pipeline writes through.
type NoteStore interface {
	Save(note models.Note) error
	Update(id string, fn func(*models.Note) error) (models.Note, error)
}

// Request describes one image to ingest.
type Request struct {
	// ID correlates events; generated when empty.
	ID       string
	Image    ocr.Image
	ImageURL string
}

// Pipeline drives recognition, persistence and title enrichment.
type Pipeline struct {
	recognizer ocr.Recognizer
	titler     assistant.Titler
	store      NoteStore

	logger       *slog.Logger
	newID        func() string
	now          func() time.Time
	placeholder  string
	fallback     string
	titleTimeout time.Duration

	wg sync.WaitGroup

	subMu   sync.RWMutex
	subs    map[int]func(Event)
	nextSub int
}

// New creates a Pipeline.
func New(recognizer ocr.Recognizer, titler assistant.Titler, store NoteStore, opts ...Option) *Pipeline {
	p := &Pipeline{
		recognizer:   recognizer,
		titler:       titler,
		store:        store,
		logger:       slog.Default(),
		newID:        uuid.NewString,
		now:          time.Now,
		placeholder:  models.PlaceholderTitle,
		fallback:     models.FallbackTitle,
		titleTimeout: defaultTitleTimeout,
		subs:         make(map[int]func(Event)),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Subscribe registers fn for every event and returns a function that
// removes it. fn is called synchronously from the pipeline goroutines.
func (p *Pipeline) Subscribe(fn func(Event)) (unsubscribe func()) {
	p.subMu.Lock()
	id := p.nextSub
	p.nextSub++
	p.subs[id] = fn
	p.subMu.Unlock()

	return func() {
		p.subMu.Lock()
		delete(p.subs, id)
		p.subMu.Unlock()
	}
}

// Wait blocks until all in-flight enrichments have finished.
func (p *Pipeline) Wait() {
	p.wg.Wait()
}

// Ingest recognizes the image, persists a new note with the placeholder
// title and returns it. Title enrichment continues in the background and
// is reported through Subscribe. onProgress may be nil; it receives
// non-decreasing values in [0,100].
//
// Recognition errors wrap apperr.ErrOCRFailure and nothing is persisted.
// Cancelling ctx aborts recognition but never a started enrichment.
func (p *Pipeline) Ingest(ctx context.Context, req Request, onProgress ocr.ProgressFunc) (models.Note, error) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	var last float64
	progress := func(v float64) {
		v = min(max(v, 0), 100)
		if v < last {
			v = last
		}
		last = v
		if onProgress != nil {
			onProgress(v)
		}
		p.publish(Event{RequestID: req.ID, Stage: StageRecognizing, Progress: v})
	}

	progress(0)
	text, err := p.recognizer.Recognize(ctx, req.Image, progress)
	if err != nil {
		p.publish(Event{RequestID: req.ID, Stage: StageFailed, Progress: last})
		p.logger.Warn("ingest: recognition failed",
			slog.String("request_id", req.ID), slog.String("error", err.Error()))
		if errors.Is(err, apperr.ErrOCRFailure) {
			return models.Note{}, err
		}
		return models.Note{}, fmt.Errorf("ingest: %w: %w", apperr.ErrOCRFailure, err)
	}
	progress(100)

	note := models.Note{
		ID:            p.newID(),
		Title:         p.placeholder,
		ImageURL:      req.ImageURL,
		ExtractedText: text,
		CreatedAt:     p.now().UnixMilli(),
	}
	if err := p.store.Save(note); err != nil {
		p.publish(Event{RequestID: req.ID, Stage: StageFailed, Progress: 100})
		return models.Note{}, fmt.Errorf("ingest: save note: %w", err)
	}
	p.logger.Info("ingest: note persisted",
		slog.String("request_id", req.ID), slog.String("note_id", note.ID), slog.Int("text_len", len(text)))
	p.publish(Event{RequestID: req.ID, Stage: StagePersisted, Progress: 100, Note: note})

	p.wg.Add(1)
	go p.enrich(context.WithoutCancel(ctx), req.ID, note)

	return note, nil
}

func (p *Pipeline) enrich(ctx context.Context, requestID string, note models.Note) {
	defer p.wg.Done()

	ctx, cancel := context.WithTimeout(ctx, p.titleTimeout)
	defer cancel()

	stage := StageEnriched
	title, err := p.titler.GenerateTitle(ctx, note.ExtractedText)
	title = strings.TrimSpace(title)
	if err != nil || title == "" {
		attrs := []any{slog.String("note_id", note.ID)}
		if err != nil {
			attrs = append(attrs, slog.String("error", err.Error()))
		}
		p.logger.Warn("ingest: title generation failed, using fallback", attrs...)
		title = p.fallback
		stage = StageEnrichFailed
	}

	// Re-read under the store lock so a concurrent delete drops the title
	// and a concurrent text edit survives.
	updated, err := p.store.Update(note.ID, func(n *models.Note) error {
		n.Title = title
		return nil
	})
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		p.logger.Debug("ingest: note deleted before enrichment", slog.String("note_id", note.ID))
		p.publish(Event{RequestID: requestID, Stage: StageDropped, Progress: 100, Note: note})
		return
	case err != nil:
		p.logger.Error("ingest: persist title failed",
			slog.String("note_id", note.ID), slog.String("error", err.Error()))
		p.publish(Event{RequestID: requestID, Stage: StageDropped, Progress: 100, Note: note})
		return
	}

	p.logger.Info("ingest: note enriched",
		slog.String("note_id", note.ID), slog.String("title", title), slog.String("stage", string(stage)))
	p.publish(Event{RequestID: requestID, Stage: stage, Progress: 100, Note: updated})
}

func (p *Pipeline) publish(ev Event) {
	p.subMu.RLock()
	defer p.subMu.RUnlock()
	for _, fn := range p.subs {
		fn(ev)
	}
}
