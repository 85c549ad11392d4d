package ocr

import "context"

// ProgressFunc receives recognition progress in [0,100].
type ProgressFunc func(progress float64)

// Recognizer extracts text from an image. Implementations report progress
// through onProgress, which may be nil.
type Recognizer interface {
	Recognize(ctx context.Context, img Image, onProgress ProgressFunc) (string, error)
}

// RecognizerFunc adapts a function to the Recognizer interface.
type RecognizerFunc func(ctx context.Context, img Image, onProgress ProgressFunc) (string, error)

// Recognize calls f.
func (f RecognizerFunc) Recognize(ctx context.Context, img Image, onProgress ProgressFunc) (string, error) {
	return f(ctx, img, onProgress)
}

func report(fn ProgressFunc, p float64) {
	if fn != nil {
		fn(p)
	}
}
