// Package models defines the domain types for thinkink.
package models

// Placeholder titles assigned by the ingest pipeline.
const (
	PlaceholderTitle = "New Note"
	FallbackTitle    = "Untitled Note"
)

// Note is a page of handwriting converted to text.
// CreatedAt is an epoch-millisecond timestamp.
type Note struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	ImageURL      string `json:"imageUrl"`
	ExtractedText string `json:"extractedText"`
	CreatedAt     int64  `json:"createdAt"`
}

// Chat roles.
const (
	RoleUser  = "user"
	RoleModel = "model"
)

// ChatMessage is one turn of an assistant conversation. It is never persisted.
type ChatMessage struct {
	ID        string `json:"id"`
	Role      string `json:"role"` // "user" or "model"
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
}
