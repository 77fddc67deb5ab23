// Package sentence splits page text into sentences for speech playback.
package sentence

import (
	"strings"
	"unicode/utf8"

	"github.com/rivo/uniseg"
)

// DefaultTerminators are the characters that end a sentence: the ideographic
// full stop, the fullwidth and ASCII exclamation and question marks, and the
// newline.
var DefaultTerminators = []rune{'。', '！', '!', '？', '?', '\n'}

// Splitter turns raw text into an ordered list of trimmed sentences.
type Splitter struct {
	terminators map[rune]struct{}
}

// Option configures a Splitter.
type Option func(*Splitter)

// WithTerminators replaces the terminator set.
func WithTerminators(runes ...rune) Option {
	return func(s *Splitter) {
		s.terminators = make(map[rune]struct{}, len(runes))
		for _, r := range runes {
			s.terminators[r] = struct{}{}
		}
	}
}

// NewSplitter creates a splitter using DefaultTerminators unless overridden.
func NewSplitter(opts ...Option) *Splitter {
	s := &Splitter{}
	WithTerminators(DefaultTerminators...)(s)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var defaultSplitter = NewSplitter()

// Split splits text using the default terminator set.
func Split(text string) []string {
	return defaultSplitter.Split(text)
}

// IsTerminator reports whether r ends a sentence in the default set.
func IsTerminator(r rune) bool {
	return defaultSplitter.isTerminator(r)
}

// Split scans text one grapheme cluster at a time. A cluster whose last rune
// is a terminator closes the sentence it was appended to, so the terminator
// stays at the end of that sentence. Sentences that are empty after trimming
// are dropped. Empty input yields nil.
func (s *Splitter) Split(text string) []string {
	var (
		sentences []string
		buf       strings.Builder
	)

	flush := func() {
		if trimmed := strings.TrimSpace(buf.String()); trimmed != "" {
			sentences = append(sentences, trimmed)
		}
		buf.Reset()
	}

	g := uniseg.NewGraphemes(text)
	for g.Next() {
		cluster := g.Str()
		buf.WriteString(cluster)

		// A cluster ends a sentence when its last rune is a terminator, so
		// "\r\n" (one cluster) cuts like "\n". Comparing the whole cluster
		// against the set would leave CRLF text unsplit.
		last, _ := utf8.DecodeLastRuneInString(cluster)
		if s.isTerminator(last) {
			flush()
		}
	}

	// trailing text without a terminator
	if buf.Len() > 0 {
		flush()
	}

	return sentences
}

func (s *Splitter) isTerminator(r rune) bool {
	_, ok := s.terminators[r]
	return ok
}
