package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/thinkink/internal/noteservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
// maxUpload bounds the multipart body of POST /ingest.
func NewRouter(svc *noteservice.Service, authEnabled bool, token string, sseHandler http.Handler, maxUpload int64) chi.Router {
	h := NewHandler(svc, maxUpload)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Notes.
	r.Get("/notes", h.ListNotes)
	r.Get("/notes/{id}", h.GetNote)
	r.Put("/notes/{id}", h.UpdateNote)
	r.Delete("/notes/{id}", h.DeleteNote)

	// Selection.
	r.Get("/selection", h.GetSelection)
	r.Put("/selection", h.PutSelection)

	// Ingest (multipart upload, field "file").
	r.Post("/ingest", h.Ingest)

	// Search.
	r.Get("/search", h.Search)

	// Assistant.
	r.Get("/assistant/suggestions", h.Suggestions)
	r.Post("/assistant/sessions", h.CreateSession)
	r.Get("/assistant/sessions/{sid}/messages", h.ListMessages)
	r.Post("/assistant/sessions/{sid}/messages", h.SendMessage)
	r.Delete("/assistant/sessions/{sid}", h.CloseSession)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
