package cursor

// State is a point-in-time copy of the cursor's observable state.
type State struct {
	Page           int    // Current page index
	SentenceIndex  int    // 0-based index, -1 when not started
	Sentence       string // Current sentence text
	SentenceCount  int    // Sentences on the current page
	IsLastSentence bool
	HasText        bool
}

// Started reports whether a sentence of the current page has been returned.
func (s State) Started() bool {
	return s.SentenceIndex >= 0
}

// Progress returns how far playback is through the current page, from 0 to 1.
func (s State) Progress() float64 {
	if s.SentenceCount == 0 {
		return 0
	}
	return float64(s.SentenceIndex+1) / float64(s.SentenceCount)
}

// Snapshot returns the current observable state.
func (c *Cursor) Snapshot() State {
	return State{
		Page:           c.pageIndex,
		SentenceIndex:  c.sentenceIndex,
		Sentence:       c.sentenceText,
		SentenceCount:  len(c.current),
		IsLastSentence: c.isLast,
		HasText:        c.hasText,
	}
}
