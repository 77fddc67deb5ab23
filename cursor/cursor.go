// Package cursor tracks the playback position within a document's pages.
//
// A Cursor holds the sentences of every page that has been loaded so far and a
// pointer into the current page's sentences. It is a passive state holder: a
// playback driver calls Next whenever the speech engine finishes the previous
// sentence and decides on its own when to stop, pause or change page.
//
// A Cursor is not safe for concurrent use. All calls are expected to come from
// the goroutine that owns the UI.
package cursor

import (
	"github.com/charmbracelet/log"

	"github.com/voiceverse/voiceverse/sentence"
)

// notStarted is the sentence index of a page whose playback hasn't begun.
const notStarted = -1

// Listener is called with each sentence that becomes current.
type Listener func(sentence string)

// Cursor is the per-page sentence table and playback position.
type Cursor struct {
	pages   map[int][]string
	current []string

	pageIndex     int
	sentenceIndex int
	sentenceText  string
	isLast        bool
	hasText       bool

	listener Listener
	split    func(string) []string
	logger   *log.Logger
}

// Option configures a Cursor.
type Option func(*Cursor)

// WithLogger sets the logger used for debug output.
func WithLogger(l *log.Logger) Option {
	return func(c *Cursor) {
		c.logger = l
	}
}

// WithSplitter replaces the function used to split page text.
func WithSplitter(s *sentence.Splitter) Option {
	return func(c *Cursor) {
		c.split = s.Split
	}
}

// New creates an empty cursor positioned on page 0.
func New(opts ...Option) *Cursor {
	c := &Cursor{
		pages:         make(map[int][]string),
		sentenceIndex: notStarted,
		split:         sentence.Split,
		logger:        log.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// OnSentence registers the listener. Only one listener is kept; a later call
// replaces the earlier one and nil removes it.
func (c *Cursor) OnSentence(fn Listener) {
	c.listener = fn
}

// SetText splits text and stores it as the sentences of page, replacing any
// earlier entry. The cursor moves to that page and restarts at "not started",
// even when page is already the current page.
func (c *Cursor) SetText(text string, page int) {
	sentences := c.split(text)
	c.pages[page] = sentences

	if page != c.pageIndex {
		c.SwitchToPage(page)
	} else {
		c.loadPage(page)
		c.Reset()
	}

	c.hasText = len(c.pages) > 0
	c.logger.Debug("Page text set", "page", page, "runes", len([]rune(text)), "sentences", len(sentences))
}

// SwitchToPage makes page current and resets the position. Pages that were
// never set behave as empty.
func (c *Cursor) SwitchToPage(page int) {
	c.pageIndex = page
	c.loadPage(page)
	c.Reset()
}

// Reset returns to "not started" on the current page. The sentence table is
// left untouched.
func (c *Cursor) Reset() {
	c.sentenceIndex = notStarted
	c.sentenceText = ""
	c.isLast = false
	c.hasText = len(c.pages) > 0
	c.logger.Debug("Cursor reset", "page", c.pageIndex)
}

// Next advances to the following sentence and returns it. It returns false
// when the page has no sentences or the last sentence was already returned;
// in the latter case the cursor stays on the last sentence.
func (c *Cursor) Next() (string, bool) {
	if len(c.current) == 0 {
		return "", false
	}

	if c.sentenceIndex == notStarted {
		c.sentenceIndex = 0
		c.sentenceText = c.current[0]
		c.isLast = len(c.current) == 1
		c.logger.Debug("First sentence", "number", c.SentenceNumber(), "total", len(c.current), "page", c.pageIndex)
		c.notify()
		return c.sentenceText, true
	}

	c.sentenceIndex++
	if c.sentenceIndex >= len(c.current) {
		// exhausted: clamp, keep the last sentence text
		c.sentenceIndex = len(c.current) - 1
		c.isLast = true
		return "", false
	}

	c.sentenceText = c.current[c.sentenceIndex]
	c.isLast = c.sentenceIndex == len(c.current)-1
	c.logger.Debug("Next sentence", "number", c.SentenceNumber(), "total", len(c.current), "page", c.pageIndex)
	c.notify()
	return c.sentenceText, true
}

// CurrentSentence returns the current sentence, or "" before the first Next.
func (c *Cursor) CurrentSentence() string {
	return c.sentenceText
}

// SentenceCount returns the number of sentences on the current page.
func (c *Cursor) SentenceCount() int {
	return len(c.current)
}

// SentenceNumber returns the 1-based number of the current sentence, 0 when
// playback of the page hasn't started.
func (c *Cursor) SentenceNumber() int {
	return c.sentenceIndex + 1
}

// SentenceIndex returns the 0-based sentence index, -1 when not started.
func (c *Cursor) SentenceIndex() int {
	return c.sentenceIndex
}

// Page returns the current page index.
func (c *Cursor) Page() int {
	return c.pageIndex
}

// IsLastSentence reports whether the current sentence is the page's last.
func (c *Cursor) IsLastSentence() bool {
	return c.isLast
}

// HasText reports whether any page has been set.
func (c *Cursor) HasText() bool {
	return c.hasText
}

// HasPage reports whether page has an entry in the sentence table.
func (c *Cursor) HasPage(page int) bool {
	_, ok := c.pages[page]
	return ok
}

// PageSentences returns a copy of the stored sentences of page, nil if the
// page was never set.
func (c *Cursor) PageSentences(page int) []string {
	s, ok := c.pages[page]
	if !ok {
		return nil
	}
	out := make([]string, len(s))
	copy(out, s)
	return out
}

func (c *Cursor) loadPage(page int) {
	c.current = c.pages[page]
	c.logger.Debug("Current page updated", "page", page, "sentences", len(c.current))
}

func (c *Cursor) notify() {
	if c.listener != nil {
		c.listener(c.sentenceText)
	}
}
