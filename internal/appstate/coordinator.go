// Package appstate holds the cached note list and the current selection
// and keeps them consistent with the note store after every mutation.
package appstate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/starford/thinkink/internal/apperr"
	"github.com/starford/thinkink/internal/checksum"
	"github.com/starford/thinkink/internal/ingest"
	"github.com/starford/thinkink/internal/models"
)

// Store is the subset of the note store the coordinator uses.
type Store interface {
	GetAll() []models.Note
	GetByID(id string) (models.Note, error)
	Update(id string, fn func(*models.Note) error) (models.Note, error)
	Delete(id string) error
}

// Gate reports whether the application is authorized to load notes.
type Gate interface {
	Authorized(ctx context.Context) bool
}

// GateFunc adapts a function to the Gate interface.
type GateFunc func(ctx context.Context) bool

// Authorized calls f.
func (f GateFunc) Authorized(ctx context.Context) bool { return f(ctx) }

// OpenGate is always authorized.
var OpenGate Gate = GateFunc(func(context.Context) bool { return true })

// EnvKeyGate is authorized when any of the named environment variables is
// set to a non-empty value.
func EnvKeyGate(names ...string) Gate {
	return GateFunc(func(context.Context) bool {
		for _, n := range names {
			if os.Getenv(n) != "" {
				return true
			}
		}
		return false
	})
}

// Coordinator is the application state. Create it with New and share it.
type Coordinator struct {
	store  Store
	gate   Gate
	logger *slog.Logger

	mu         sync.RWMutex
	notes      []models.Note
	selectedID string
	ready      bool
}

// New creates a Coordinator. A nil gate is treated as OpenGate.
func New(store Store, gate Gate, logger *slog.Logger) *Coordinator {
	if gate == nil {
		gate = OpenGate
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{store: store, gate: gate, logger: logger}
}

// Refresh reloads the cached notes from the store. It returns
// apperr.ErrUnauthorized and leaves the cache untouched when the gate is
// closed.
func (c *Coordinator) Refresh(ctx context.Context) error {
	if !c.gate.Authorized(ctx) {
		c.mu.Lock()
		c.ready = false
		c.mu.Unlock()
		return fmt.Errorf("appstate: refresh: %w", apperr.ErrUnauthorized)
	}
	notes := c.store.GetAll()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.notes = notes
	c.ready = true
	if c.selectedID != "" && indexOf(c.notes, c.selectedID) < 0 {
		c.selectedID = ""
	}
	c.logger.Debug("appstate: refreshed", slog.Int("count", len(notes)))
	return nil
}

// Ready reports whether the last Refresh passed the gate.
func (c *Coordinator) Ready() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ready
}

// Notes returns a copy of the cached notes, newest first.
func (c *Coordinator) Notes() []models.Note {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]models.Note(nil), c.notes...)
}

// Note returns the cached note with the given id.
func (c *Coordinator) Note(id string) (models.Note, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if i := indexOf(c.notes, id); i >= 0 {
		return c.notes[i], nil
	}
	return models.Note{}, apperr.ErrNotFound
}

// StoredNote reads a note straight from the store, bypassing the cache.
func (c *Coordinator) StoredNote(id string) (models.Note, error) {
	n, err := c.store.GetByID(id)
	if err != nil {
		return models.Note{}, fmt.Errorf("appstate: load %s: %w", id, err)
	}
	return n, nil
}

// Selected returns the selected note id; "" means the upload screen.
func (c *Coordinator) Selected() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.selectedID
}

// SelectNote selects a note, or none when id is "".
func (c *Coordinator) SelectNote(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if id != "" && indexOf(c.notes, id) < 0 {
		return fmt.Errorf("appstate: select %s: %w", id, apperr.ErrNotFound)
	}
	c.selectedID = id
	return nil
}

// ApplyIngestResult puts a freshly ingested note at the front and selects it.
// The cached copy is read from the store while the cache lock is held, so an
// enrichment that finished before this call is not overwritten by the
// caller's placeholder. A note that is no longer stored is not cached.
func (c *Coordinator) ApplyIngestResult(note models.Note) {
	c.mu.Lock()
	defer c.mu.Unlock()
	stored, err := c.store.GetByID(note.ID)
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return
	case err != nil:
		c.logger.Warn("appstate: reload ingested note failed",
			slog.String("note_id", note.ID), slog.String("error", err.Error()))
	default:
		note = stored
	}
	if i := indexOf(c.notes, note.ID); i >= 0 {
		c.notes[i] = note
	} else {
		c.notes = append([]models.Note{note}, c.notes...)
	}
	c.selectedID = note.ID
}

// ApplyEnrichment replaces the cached note with the same id in place.
// It does nothing when the note is not cached.
func (c *Coordinator) ApplyEnrichment(note models.Note) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i := indexOf(c.notes, note.ID); i >= 0 {
		c.notes[i] = note
	}
}

// UpdateText replaces a note's extracted text and persists it.
func (c *Coordinator) UpdateText(id, text string) (models.Note, error) {
	return c.UpdateTextIfMatch(id, text, "")
}

// UpdateTextIfMatch is UpdateText guarded by the note's version tag. An
// empty etag skips the check; a stale one returns apperr.ErrConflict.
func (c *Coordinator) UpdateTextIfMatch(id, text, etag string) (models.Note, error) {
	updated, err := c.store.Update(id, func(n *models.Note) error {
		if etag != "" && checksum.Note(*n) != etag {
			return apperr.ErrConflict
		}
		n.ExtractedText = text
		return nil
	})
	if err != nil {
		return models.Note{}, fmt.Errorf("appstate: update %s: %w", id, err)
	}
	c.replace(updated)
	return updated, nil
}

// DeleteNote removes a note from the store and the cache and clears the
// selection if it pointed at it.
func (c *Coordinator) DeleteNote(id string) error {
	if err := c.store.Delete(id); err != nil {
		return fmt.Errorf("appstate: delete %s: %w", id, err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if i := indexOf(c.notes, id); i >= 0 {
		c.notes = append(c.notes[:i], c.notes[i+1:]...)
	}
	if c.selectedID == id {
		c.selectedID = ""
	}
	return nil
}

// HandleIngestEvent bridges late enrichment results into the cache. The
// note is re-read from the store so an edit that landed after the title
// write is not rolled back.
func (c *Coordinator) HandleIngestEvent(ev ingest.Event) {
	switch ev.Stage {
	case ingest.StageEnriched, ingest.StageEnrichFailed:
	default:
		return
	}
	note, err := c.store.GetByID(ev.Note.ID)
	if errors.Is(err, apperr.ErrNotFound) {
		return
	}
	if err != nil {
		c.logger.Warn("appstate: reload enriched note failed",
			slog.String("note_id", ev.Note.ID), slog.String("error", err.Error()))
		note = ev.Note
	}
	c.ApplyEnrichment(note)
}

func (c *Coordinator) replace(note models.Note) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i := indexOf(c.notes, note.ID); i >= 0 {
		c.notes[i] = note
	}
}

func indexOf(notes []models.Note, id string) int {
	for i, n := range notes {
		if n.ID == id {
			return i
		}
	}
	return -1
}
