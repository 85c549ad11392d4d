// Package ocr turns images of handwritten pages into text through a
// pluggable Recognizer.
package ocr

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/starford/thinkink/internal/apperr"
)

// Image is an uploaded page image.
type Image struct {
	Name        string
	ContentType string
	Data        []byte
}

var extByType = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
}

// NewImage sniffs data and returns an Image, or an error wrapping
// apperr.ErrInvalidInput when the content is not PNG or JPEG.
func NewImage(name string, data []byte) (Image, error) {
	if len(data) == 0 {
		return Image{}, fmt.Errorf("ocr: %w: empty image", apperr.ErrInvalidInput)
	}
	ct := strings.Split(http.DetectContentType(data), ";")[0]
	if _, ok := extByType[ct]; !ok {
		return Image{}, fmt.Errorf("ocr: %w: unsupported image type %s (allowed: png, jpeg)", apperr.ErrInvalidInput, ct)
	}
	return Image{Name: name, ContentType: ct, Data: data}, nil
}

// Ext returns the canonical file extension for the image type.
func (i Image) Ext() string {
	return extByType[i.ContentType]
}
