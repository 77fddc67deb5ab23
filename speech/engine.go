// Package speech drives a text-to-speech engine from a sentence cursor.
package speech

import (
	"context"
)

// Engine speaks text aloud.
type Engine interface {
	// Name identifies the engine in logs and the UI.
	Name() string

	// Available reports whether the engine can be used on this system.
	Available() bool

	// Speak utters text and blocks until it has been spoken or ctx is
	// cancelled. A cancelled utterance returns ctx.Err().
	Speak(ctx context.Context, text string) error

	// Close releases the engine's resources.
	Close() error
}

// PageSource provides the text of a document's pages.
type PageSource interface {
	PageCount() int
	PageText(i int) (string, bool)
}

// Prefetcher is implemented by engines that can prepare upcoming sentences
// while the current one is spoken.
type Prefetcher interface {
	Prefetch(texts []string)
}
