package api

import (
	"errors"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"

	"github.com/starford/thinkink/internal/storage"
)

// AttachmentHandler serves uploaded page images.
type AttachmentHandler struct {
	files *storage.Attachments
}

// NewAttachmentHandler creates a handler over the attachments store.
func NewAttachmentHandler(files *storage.Attachments) *AttachmentHandler {
	return &AttachmentHandler{files: files}
}

// ServeFile handles GET /attachments/{filename}.
func (h *AttachmentHandler) ServeFile(w http.ResponseWriter, r *http.Request) {
	abs, err := h.files.Path(chi.URLParam(r, "filename"))
	if err != nil {
		http.Error(w, "invalid filename", http.StatusBadRequest)
		return
	}
	if _, statErr := os.Stat(abs); errors.Is(statErr, os.ErrNotExist) {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("X-Content-Type-Options", "nosniff")
	http.ServeFile(w, r, abs)
}
