// Package assistant layers title generation and note-grounded chat over an
// llm.Completer.
package assistant

import (
	"context"
	"fmt"
	"strings"

	"github.com/starford/thinkink/internal/apperr"
	"github.com/starford/thinkink/internal/llm"
	"github.com/starford/thinkink/internal/parser"
)

const (
	titleSourceLimit = 500
	titlePrompt      = "Generate a short, concise title (max 5 words) for the following text. Do not use quotes. \n\nText: "
)

// Titler produces a short title for a note's text.
type Titler interface {
	GenerateTitle(ctx context.Context, text string) (string, error)
}

// TitlerFunc adapts a function to the Titler interface.
type TitlerFunc func(ctx context.Context, text string) (string, error)

// GenerateTitle calls f.
func (f TitlerFunc) GenerateTitle(ctx context.Context, text string) (string, error) {
	return f(ctx, text)
}

// LLMTitler asks a language model for a title.
type LLMTitler struct {
	completer llm.Completer
}

// NewLLMTitler creates an LLMTitler.
func NewLLMTitler(c llm.Completer) *LLMTitler {
	return &LLMTitler{completer: c}
}

// GenerateTitle sends at most the first 500 characters of text and returns
// the cleaned answer. Provider errors and empty answers wrap
// apperr.ErrTitleGeneration.
func (t *LLMTitler) GenerateTitle(ctx context.Context, text string) (string, error) {
	out, err := t.completer.Complete(ctx, llm.Request{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: titlePrompt + truncateRunes(text, titleSourceLimit)}},
	})
	if err != nil {
		return "", fmt.Errorf("assistant: %w: %w", apperr.ErrTitleGeneration, err)
	}
	title := cleanTitle(out)
	if title == "" {
		return "", fmt.Errorf("assistant: %w: empty title", apperr.ErrTitleGeneration)
	}
	return title, nil
}

// HeuristicTitler derives a title from the first meaningful line of text.
// It is used when no language model is configured.
type HeuristicTitler struct{}

// GenerateTitle implements Titler.
func (HeuristicTitler) GenerateTitle(_ context.Context, text string) (string, error) {
	title := parser.Parse(truncateRunes(text, titleSourceLimit)).Title
	if title == "" {
		return "", fmt.Errorf("assistant: %w: no words in text", apperr.ErrTitleGeneration)
	}
	return title, nil
}

func truncateRunes(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

func cleanTitle(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	s = strings.Trim(s, "\"'`“”‘’*# ")
	return strings.TrimSpace(s)
}
