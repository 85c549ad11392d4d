package api

import (
	"github.com/starford/thinkink/internal/assistant"
	"github.com/starford/thinkink/internal/noteservice"
)

// NoteDetail is the full note response type (aliased from the domain layer).
type NoteDetail = noteservice.NoteDetail

// NoteListResponse wraps note listings.
type NoteListResponse struct {
	Notes []NoteDetail `json:"notes" validate:"required"`
	Total int          `json:"total" example:"42" validate:"required"`
}

// UpdateNoteRequest is the request body for editing a note's text.
type UpdateNoteRequest struct {
	ExtractedText *string `json:"extractedText" example:"Hello World" validate:"required"`
}

// SelectionRequest selects a note; an empty id returns to the upload screen.
type SelectionRequest struct {
	ID string `json:"id" example:"3f1c..."`
}

// SelectionResponse reports the selected note id.
type SelectionResponse struct {
	ID string `json:"id"`
}

// IngestResponse is returned after a page image became a note.
type IngestResponse struct {
	RequestID string     `json:"requestId" validate:"required"`
	Note      NoteDetail `json:"note" validate:"required"`
}

// SearchResult is a single search hit in the API response.
type SearchResult struct {
	ID      string `json:"id" validate:"required"`
	Title   string `json:"title" example:"Lecture notes" validate:"required"`
	Snippet string `json:"snippet" example:"...matched text..." validate:"required"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []SearchResult `json:"results" validate:"required"`
}

// CreateSessionRequest opens an assistant session for a note.
type CreateSessionRequest struct {
	NoteID string `json:"noteId" validate:"required"`
}

// Session is an assistant session (aliased from the domain layer).
type Session = assistant.Session

// SendMessageRequest is a user chat message.
type SendMessageRequest struct {
	Text string `json:"text" example:"Summarize this" validate:"required"`
}

// SuggestionsResponse lists canned prompts.
type SuggestionsResponse struct {
	Suggestions []string `json:"suggestions"`
}
