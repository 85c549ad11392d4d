package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Attachments keeps uploaded page images as flat files in one directory.
type Attachments struct {
	dir string // absolute path
}

// NewAttachments creates the directory if needed.
func NewAttachments(dir string) (*Attachments, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve attachments dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create attachments dir: %w", err)
	}
	return &Attachments{dir: abs}, nil
}

// Save writes data under a fresh random name with the given extension
// (".png") and returns the name.
func (a *Attachments) Save(ext string, data []byte) (string, error) {
	name := uuid.NewString() + ext
	if _, err := a.Path(name); err != nil {
		return "", err
	}
	if err := os.WriteFile(filepath.Join(a.dir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("storage: write attachment: %w", err)
	}
	return name, nil
}

// Remove deletes an attachment. Missing files are not an error.
func (a *Attachments) Remove(name string) error {
	p, err := a.Path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("storage: remove attachment: %w", err)
	}
	return nil
}

// Path validates that name is a plain file name and returns its absolute
// path under the attachments directory.
func (a *Attachments) Path(name string) (string, error) {
	cleaned := filepath.Clean(name)
	if name == "" || cleaned != filepath.Base(cleaned) || strings.Contains(cleaned, "..") || strings.HasPrefix(cleaned, ".") {
		return "", fmt.Errorf("storage: invalid attachment name %q", name)
	}
	return filepath.Join(a.dir, cleaned), nil
}
