// Package noteservice is the use-case layer shared by the HTTP API and the
// MCP server. It ties the coordinator, ingest pipeline, search index,
// attachments and assistant together.
package noteservice

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/starford/thinkink/internal/apperr"
	"github.com/starford/thinkink/internal/appstate"
	"github.com/starford/thinkink/internal/assistant"
	"github.com/starford/thinkink/internal/checksum"
	"github.com/starford/thinkink/internal/index"
	"github.com/starford/thinkink/internal/ingest"
	"github.com/starford/thinkink/internal/models"
	"github.com/starford/thinkink/internal/ocr"
	"github.com/starford/thinkink/internal/parser"
	"github.com/starford/thinkink/internal/storage"
)

// AttachmentURLPrefix is the public path attachments are served under.
const AttachmentURLPrefix = "/attachments/"

// NoteDetail is a note with its version tag and parsed tags.
type NoteDetail struct {
	models.Note
	Checksum string   `json:"checksum"`
	Tags     []string `json:"tags"`
}

// Searcher finds notes by text.
type Searcher interface {
	Search(query string, limit int) ([]index.SearchResult, error)
}

// Service coordinates state, ingest, search and chat.
type Service struct {
	coord       *appstate.Coordinator
	pipeline    *ingest.Pipeline
	search      Searcher
	attachments *storage.Attachments
	chat        *assistant.Service
	logger      *slog.Logger
}

// NewService creates a new note service.
func NewService(coord *appstate.Coordinator, pipeline *ingest.Pipeline, search Searcher,
	attachments *storage.Attachments, chat *assistant.Service, logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		coord:       coord,
		pipeline:    pipeline,
		search:      search,
		attachments: attachments,
		chat:        chat,
		logger:      logger,
	}
}

// Ready reports whether notes have been loaded past the authorization gate.
func (s *Service) Ready() bool {
	return s.coord.Ready()
}

// ListNotes returns all notes, newest first.
func (s *Service) ListNotes(_ context.Context) ([]NoteDetail, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	notes := s.coord.Notes()
	out := make([]NoteDetail, len(notes))
	for i, n := range notes {
		out[i] = detail(n)
	}
	return out, nil
}

// GetNote returns a single note.
func (s *Service) GetNote(_ context.Context, id string) (*NoteDetail, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	n, err := s.coord.Note(id)
	if err != nil {
		return nil, err
	}
	d := detail(n)
	return &d, nil
}

// UpdateText replaces a note's text. A non-empty ifMatch must equal the
// note's current checksum.
func (s *Service) UpdateText(_ context.Context, id, text, ifMatch string) (*NoteDetail, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	n, err := s.coord.UpdateTextIfMatch(id, text, ifMatch)
	if err != nil {
		return nil, err
	}
	d := detail(n)
	return &d, nil
}

// DeleteNote removes a note and its attachment. Unknown ids are a no-op.
func (s *Service) DeleteNote(_ context.Context, id string) error {
	if err := s.ready(); err != nil {
		return err
	}
	n, lookupErr := s.coord.StoredNote(id)
	if err := s.coord.DeleteNote(id); err != nil {
		return err
	}
	if lookupErr == nil {
		s.removeAttachment(n.ImageURL)
	}
	return nil
}

// Select changes the selected note; "" selects none.
func (s *Service) Select(_ context.Context, id string) error {
	if err := s.ready(); err != nil {
		return err
	}
	return s.coord.SelectNote(id)
}

// Selected returns the selected note id.
func (s *Service) Selected() string {
	return s.coord.Selected()
}

// Search runs a text search over notes.
func (s *Service) Search(_ context.Context, query string, limit int) ([]index.SearchResult, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("noteservice: %w: query is required", apperr.ErrInvalidInput)
	}
	results, err := s.search.Search(query, limit)
	if err != nil {
		return nil, err
	}
	if results == nil {
		results = []index.SearchResult{}
	}
	return results, nil
}

// Ingest stores the uploaded image, recognizes it and creates a note which
// becomes the selected one. The attachment is removed again when
// recognition fails.
func (s *Service) Ingest(ctx context.Context, requestID, filename string, data []byte, onProgress ocr.ProgressFunc) (*NoteDetail, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	img, err := ocr.NewImage(filename, data)
	if err != nil {
		return nil, err
	}
	name, err := s.attachments.Save(img.Ext(), img.Data)
	if err != nil {
		return nil, err
	}

	note, err := s.pipeline.Ingest(ctx, ingest.Request{
		ID:       requestID,
		Image:    img,
		ImageURL: AttachmentURLPrefix + name,
	}, onProgress)
	if err != nil {
		s.removeAttachment(AttachmentURLPrefix + name)
		return nil, err
	}
	s.coord.ApplyIngestResult(note)

	d := detail(note)
	return &d, nil
}

// StartChat opens an assistant session grounded in the note's text.
func (s *Service) StartChat(_ context.Context, noteID string) (assistant.Session, error) {
	if err := s.ready(); err != nil {
		return assistant.Session{}, err
	}
	n, err := s.coord.Note(noteID)
	if err != nil {
		return assistant.Session{}, err
	}
	return s.chat.CreateSession(n.ID, n.ExtractedText), nil
}

// SendChat sends a user message and returns the reply.
func (s *Service) SendChat(ctx context.Context, sessionID, text string) (models.ChatMessage, error) {
	return s.chat.SendMessage(ctx, sessionID, text)
}

// ChatMessages returns a session's history.
func (s *Service) ChatMessages(_ context.Context, sessionID string) ([]models.ChatMessage, error) {
	return s.chat.Messages(sessionID)
}

// CloseChat ends a session.
func (s *Service) CloseChat(_ context.Context, sessionID string) {
	s.chat.CloseSession(sessionID)
}

// Ask runs a one-shot question against a note.
func (s *Service) Ask(ctx context.Context, noteID, question string) (models.ChatMessage, error) {
	sess, err := s.StartChat(ctx, noteID)
	if err != nil {
		return models.ChatMessage{}, err
	}
	defer s.chat.CloseSession(sess.ID)
	return s.chat.SendMessage(ctx, sess.ID, question)
}

func (s *Service) ready() error {
	if !s.coord.Ready() {
		return fmt.Errorf("noteservice: %w", apperr.ErrUnauthorized)
	}
	return nil
}

func (s *Service) removeAttachment(imageURL string) {
	if !strings.HasPrefix(imageURL, AttachmentURLPrefix) {
		return
	}
	name := path.Base(imageURL)
	if err := s.attachments.Remove(name); err != nil {
		s.logger.Warn("noteservice: remove attachment failed",
			slog.String("name", name), slog.String("error", err.Error()))
	}
}

func detail(n models.Note) NoteDetail {
	tags := parser.Parse(n.ExtractedText).Tags
	if tags == nil {
		tags = []string{}
	}
	return NoteDetail{Note: n, Checksum: checksum.Note(n), Tags: tags}
}
