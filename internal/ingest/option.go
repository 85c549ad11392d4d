package ingest

import (
	"log/slog"
	"time"
)

// Option is a functional option for configuring a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the pipeline logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = l
	}
}

// WithIDGenerator replaces the note id generator.
func WithIDGenerator(fn func() string) Option {
	return func(p *Pipeline) {
		p.newID = fn
	}
}

// WithClock replaces the clock used for createdAt.
func WithClock(fn func() time.Time) Option {
	return func(p *Pipeline) {
		p.now = fn
	}
}

// WithTitles overrides the placeholder and fallback titles. Empty values
// keep the defaults.
func WithTitles(placeholder, fallback string) Option {
	return func(p *Pipeline) {
		if placeholder != "" {
			p.placeholder = placeholder
		}
		if fallback != "" {
			p.fallback = fallback
		}
	}
}

// WithTitleTimeout bounds a single title generation call.
func WithTitleTimeout(d time.Duration) Option {
	return func(p *Pipeline) {
		if d > 0 {
			p.titleTimeout = d
		}
	}
}
