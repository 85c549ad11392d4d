package api

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

// Ingest handles POST /api/ingest (multipart/form-data, field "file").
// Progress and the late title arrive over the event stream, correlated by
// requestId.
//
//	@Summary		Turn a page image into a note
//	@Tags			ingest
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			file	formData	file	true	"PNG or JPEG image"
//	@Success		201		{object}	IngestResponse
//	@Failure		400		{object}	errResponse
//	@Failure		422		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/ingest [post]
func (h *Handler) Ingest(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+1<<20)

	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("file too large or invalid multipart"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("missing 'file' field in multipart form"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, h.maxUpload+1))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read file"))
		return
	}
	if int64(len(data)) > h.maxUpload {
		writeJSON(w, http.StatusRequestEntityTooLarge, errorBody("file too large"))
		return
	}

	requestID := middleware.GetReqID(r.Context())
	if requestID == "" {
		requestID = uuid.NewString()
	}

	note, err := h.svc.Ingest(r.Context(), requestID, header.Filename, data, nil)
	if err != nil {
		writeError(w, "ingest", err)
		return
	}
	writeJSON(w, http.StatusCreated, IngestResponse{RequestID: requestID, Note: *note})
}
