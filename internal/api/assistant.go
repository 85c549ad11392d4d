package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/thinkink/internal/assistant"
)

// Suggestions handles GET /api/assistant/suggestions.
func (h *Handler) Suggestions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, SuggestionsResponse{Suggestions: assistant.Suggestions()})
}

// CreateSession handles POST /api/assistant/sessions.
//
//	@Summary		Start a conversation about a note
//	@Tags			assistant
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateSessionRequest	true	"Note to discuss"
//	@Success		201		{object}	Session
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/assistant/sessions [post]
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	var req CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.NoteID == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("noteId is required"))
		return
	}
	sess, err := h.svc.StartChat(r.Context(), req.NoteID)
	if err != nil {
		writeError(w, "create session", err)
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

// ListMessages handles GET /api/assistant/sessions/{sid}/messages.
func (h *Handler) ListMessages(w http.ResponseWriter, r *http.Request) {
	msgs, err := h.svc.ChatMessages(r.Context(), chi.URLParam(r, "sid"))
	if err != nil {
		writeError(w, "list messages", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": msgs})
}

// SendMessage handles POST /api/assistant/sessions/{sid}/messages. Model
// failures come back as a normal reply carrying an apology.
//
//	@Summary		Send a message and receive the reply
//	@Tags			assistant
//	@Accept			json
//	@Produce		json
//	@Param			sid		path		string				true	"Session id"
//	@Param			body	body		SendMessageRequest	true	"User message"
//	@Success		200		{object}	models.ChatMessage
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/assistant/sessions/{sid}/messages [post]
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	reply, err := h.svc.SendChat(r.Context(), chi.URLParam(r, "sid"), req.Text)
	if err != nil {
		writeError(w, "send message", err)
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

// CloseSession handles DELETE /api/assistant/sessions/{sid}.
func (h *Handler) CloseSession(w http.ResponseWriter, r *http.Request) {
	h.svc.CloseChat(r.Context(), chi.URLParam(r, "sid"))
	w.WriteHeader(http.StatusNoContent)
}
