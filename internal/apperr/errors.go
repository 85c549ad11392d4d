package apperr

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidInput = errors.New("invalid input")
	ErrUnauthorized = errors.New("not authorized")

	// ErrOCRFailure means the recognizer failed or produced unusable output.
	// No note is persisted when it is returned from an ingest.
	ErrOCRFailure = errors.New("failed to extract text from image")
	// ErrTitleGeneration never leaves the ingest pipeline; it is replaced by a fallback title.
	ErrTitleGeneration = errors.New("title generation failed")
	// ErrAssistant is turned into a reply-shaped fallback message.
	ErrAssistant = errors.New("assistant failed")
	// ErrStorageWrite is fatal for the operation that triggered it.
	ErrStorageWrite = errors.New("storage write failed")
)
