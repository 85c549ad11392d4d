// Package notestore keeps the durable, ordered collection of notes.
//
// The whole collection is serialized as one JSON array under a single key of
// a storage.Provider, newest note first. Writes are serialized by a mutex so
// read-modify-write cycles from concurrent callers never lose updates.
package notestore

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/starford/thinkink/internal/apperr"
	"github.com/starford/thinkink/internal/models"
	"github.com/starford/thinkink/internal/storage"
)

// DefaultKey is the well-known key holding the serialized collection.
const DefaultKey = "thinkink_notes"

// Change kinds passed to hooks.
const (
	KindCreated = "created"
	KindUpdated = "updated"
	KindDeleted = "deleted"
)

// Change describes a successful mutation.
type Change struct {
	Kind string
	Note models.Note
}

// Hook observes store mutations. Hooks run while the store lock is held and
// must not call back into the Store.
type Hook func(Change)

// Store is the persistent note store.
type Store struct {
	medium storage.Provider
	key    string
	logger *slog.Logger

	mu    sync.Mutex
	hooks []Hook
}

// New creates a Store persisting under key (DefaultKey when empty).
func New(medium storage.Provider, key string, logger *slog.Logger) *Store {
	if key == "" {
		key = DefaultKey
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{medium: medium, key: key, logger: logger}
}

// OnChange registers a hook called after every successful write.
func (s *Store) OnChange(h Hook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, h)
}

// GetAll returns the full ordered collection as currently durable.
// Missing or malformed data reads as an empty collection.
func (s *Store) GetAll() []models.Note {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// GetByID returns the note with the given id or apperr.ErrNotFound.
func (s *Store) GetByID(id string) (models.Note, error) {
	for _, n := range s.GetAll() {
		if n.ID == id {
			return n, nil
		}
	}
	return models.Note{}, apperr.ErrNotFound
}

// Save replaces the note with the same id in place, or inserts it at the front.
func (s *Store) Save(note models.Note) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	notes := s.load()
	kind := KindCreated
	if i := indexOf(notes, note.ID); i >= 0 {
		notes[i] = note
		kind = KindUpdated
	} else {
		notes = append([]models.Note{note}, notes...)
	}
	if err := s.write(notes); err != nil {
		return err
	}
	s.notify(Change{Kind: kind, Note: note})
	return nil
}

// Update re-reads the note with the given id, applies fn to a copy and writes
// the result, all under the store lock. It returns apperr.ErrNotFound when the
// note does not exist; an error from fn aborts the write and is returned as is.
func (s *Store) Update(id string, fn func(*models.Note) error) (models.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	notes := s.load()
	i := indexOf(notes, id)
	if i < 0 {
		return models.Note{}, apperr.ErrNotFound
	}
	updated := notes[i]
	if err := fn(&updated); err != nil {
		return models.Note{}, err
	}
	updated.ID = id
	notes[i] = updated
	if err := s.write(notes); err != nil {
		return models.Note{}, err
	}
	s.notify(Change{Kind: KindUpdated, Note: updated})
	return updated, nil
}

// Delete removes the note with the given id. Absent ids are a no-op.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	notes := s.load()
	i := indexOf(notes, id)
	if i < 0 {
		return nil
	}
	removed := notes[i]
	notes = append(notes[:i], notes[i+1:]...)
	if err := s.write(notes); err != nil {
		return err
	}
	s.notify(Change{Kind: KindDeleted, Note: removed})
	return nil
}

// load must be called with mu held.
func (s *Store) load() []models.Note {
	data, err := s.medium.Get(s.key)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("notestore: read failed, using empty collection",
				slog.String("key", s.key), slog.String("error", err.Error()))
		}
		return []models.Note{}
	}
	var notes []models.Note
	if err := json.Unmarshal(data, &notes); err != nil {
		s.logger.Warn("notestore: malformed data, using empty collection",
			slog.String("key", s.key), slog.String("error", err.Error()))
		return []models.Note{}
	}
	if notes == nil {
		notes = []models.Note{}
	}
	return notes
}

// write must be called with mu held.
func (s *Store) write(notes []models.Note) error {
	data, err := json.Marshal(notes)
	if err != nil {
		return fmt.Errorf("notestore: encode: %w: %w", apperr.ErrStorageWrite, err)
	}
	if err := s.medium.Set(s.key, data); err != nil {
		return fmt.Errorf("notestore: %w: %w", apperr.ErrStorageWrite, err)
	}
	return nil
}

func (s *Store) notify(c Change) {
	for _, h := range s.hooks {
		h(c)
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
