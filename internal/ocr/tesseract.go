package ocr

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/starford/thinkink/internal/apperr"
)

// Tesseract runs the tesseract command-line engine, piping the image through
// stdin and reading plain text from stdout.
type Tesseract struct {
	Binary   string
	Language string
	Timeout  time.Duration
}

// NewTesseract returns a Tesseract recognizer with defaults applied.
func NewTesseract(binary, language string, timeout time.Duration) *Tesseract {
	if binary == "" {
		binary = "tesseract"
	}
	if language == "" {
		language = "eng"
	}
	return &Tesseract{Binary: binary, Language: language, Timeout: timeout}
}

// Recognize implements Recognizer.
func (t *Tesseract) Recognize(ctx context.Context, img Image, onProgress ProgressFunc) (string, error) {
	report(onProgress, 0)

	if t.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.Timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, t.Binary, "stdin", "stdout", "-l", t.Language)
	cmd.Stdin = bytes.NewReader(img.Data)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return "", fmt.Errorf("ocr: tesseract: %w: %s: %w", apperr.ErrOCRFailure, msg, err)
		}
		return "", fmt.Errorf("ocr: tesseract: %w: %w", apperr.ErrOCRFailure, err)
	}

	report(onProgress, 100)
	return stdout.String(), nil
}
