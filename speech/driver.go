package speech

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/rs/xid"

	"github.com/voiceverse/voiceverse/cursor"
	"github.com/voiceverse/voiceverse/sentence"
)

// Utterance is one sentence handed to the engine.
type Utterance struct {
	ID       int
	Text     string
	Page     int
	Sentence int // 1-based sentence number on Page

	ctx context.Context
}

// Config controls how the driver moves through a document.
type Config struct {
	StartPage   int  // Page read when playback starts from scratch
	AutoAdvance bool // Continue on the next page when a page is exhausted
	Lookahead   int  // Sentences handed to a Prefetcher engine ahead of time
}

// DefaultConfig returns the default driver configuration.
func DefaultConfig() Config {
	return Config{
		StartPage:   0,
		AutoAdvance: true,
		Lookahead:   2,
	}
}

// Status is a snapshot of the driver for display.
type Status struct {
	State     StateType
	Cursor    cursor.State
	PageCount int
	Engine    string
	Session   string
	LastError error
}

// Driver reads a document aloud one sentence at a time.
//
// The driver never blocks: methods that start speech return an Utterance,
// which the caller passes to Speak on another goroutine. When Speak returns
// the caller hands the result to Finished, on the same goroutine that makes
// every other call, and speaks whatever Finished returns next. All cursor
// mutations therefore happen on a single goroutine.
type Driver struct {
	cursor  *cursor.Cursor
	engine  Engine
	pages   PageSource
	machine *StateMachine
	config  Config
	logger  *log.Logger

	session xid.ID
	lastErr error

	queued  string
	nextID  int
	current *Utterance
	cancel  context.CancelFunc
}

// Option configures a Driver.
type Option func(*Driver)

// WithConfig sets the driver configuration.
func WithConfig(cfg Config) Option {
	return func(d *Driver) {
		d.config = cfg
	}
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(d *Driver) {
		d.logger = l
	}
}

// NewDriver creates a driver reading pages through c. The driver registers
// itself as the cursor's listener.
func NewDriver(c *cursor.Cursor, engine Engine, pages PageSource, opts ...Option) *Driver {
	d := &Driver{
		cursor:  c,
		engine:  engine,
		pages:   pages,
		machine: NewStateMachine(),
		config:  DefaultConfig(),
		logger:  log.Default(),
		session: xid.New(),
	}
	for _, opt := range opts {
		opt(d)
	}

	c.OnSentence(func(s string) {
		d.queued = s
	})

	d.machine.OnEnter(StateFinished, func(StateType) {
		d.logger.Info("Finished reading", "session", d.session, "pages", d.pages.PageCount())
	})
	d.machine.OnEnter(StateError, func(from StateType) {
		d.logger.Error("Playback stopped", "session", d.session, "from", from, "error", d.lastErr)
	})

	// show and save the start page before anything is read
	if !c.HasText() && d.config.StartPage >= 0 && d.config.StartPage < pages.PageCount() {
		_ = d.load(d.config.StartPage)
	}

	return d
}

// Status returns the current driver state.
func (d *Driver) Status() Status {
	return Status{
		State:     d.machine.Current(),
		Cursor:    d.cursor.Snapshot(),
		PageCount: d.pages.PageCount(),
		Engine:    d.engine.Name(),
		Session:   d.session.String(),
		LastError: d.lastErr,
	}
}

// State returns the playback state.
func (d *Driver) State() StateType {
	return d.machine.Current()
}

// Speak runs the engine for u. It blocks and may be called from any
// goroutine.
func (d *Driver) Speak(u *Utterance) error {
	if u == nil {
		return nil
	}
	return d.engine.Speak(u.ctx, u.Text)
}

// Start reads from the beginning of the configured start page, or of the
// current page when text has already been loaded.
func (d *Driver) Start() (*Utterance, error) {
	page := d.config.StartPage
	if d.cursor.HasText() {
		page = d.cursor.Page()
	}
	if d.pages.PageCount() == 0 {
		return nil, ErrNothingToRead
	}
	d.interrupt()
	if err := d.load(page); err != nil {
		return nil, err
	}
	if !d.transition(StateSpeaking) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrStateTransition, d.machine.Current(), StateSpeaking)
	}
	d.logger.Info("Reading started", "session", d.session, "page", page, "engine", d.engine.Name())
	return d.advance(), nil
}

// Toggle is the play/pause button: it pauses while speaking, resumes a
// sentence that was interrupted, and otherwise starts reading. After the end
// of the document it starts over from the configured start page.
func (d *Driver) Toggle() (*Utterance, error) {
	switch d.machine.Current() {
	case StateSpeaking:
		d.Pause()
		return nil, nil
	case StateFinished:
		d.Stop()
		d.cursor.SwitchToPage(d.config.StartPage)
		return d.Start()
	}
	if d.cursor.CurrentSentence() != "" {
		return d.Resume(), nil
	}
	return d.Start()
}

// Pause interrupts the sentence being spoken. The cursor stays on it.
func (d *Driver) Pause() {
	if !d.transition(StatePaused) {
		return
	}
	d.interrupt()
	d.logger.Debug("Paused", "page", d.cursor.Page(), "sentence", d.cursor.SentenceNumber())
}

// Resume speaks the current sentence again from its start.
func (d *Driver) Resume() *Utterance {
	text := d.cursor.CurrentSentence()
	if text == "" || !d.transition(StateSpeaking) {
		return nil
	}
	d.logger.Debug("Resumed", "page", d.cursor.Page(), "sentence", d.cursor.SentenceNumber())
	return d.utter(text)
}

// Stop interrupts speech and rewinds the current page.
func (d *Driver) Stop() {
	d.interrupt()
	d.transition(StateIdle)
	d.cursor.Reset()
}

// Skip moves to the next sentence, continuing on later pages like normal
// reading does. While speaking, the current sentence is cut short and the
// returned utterance should be spoken; otherwise the state is kept and a
// paused driver resumes on the new sentence. At the end of the document a
// driver that is not speaking stays where it is.
func (d *Driver) Skip() *Utterance {
	if d.machine.Current() != StateSpeaking {
		d.nextSentence()
		return nil
	}
	d.interrupt()
	return d.advance()
}

// GotoPage loads page and, while speaking, continues with its first sentence.
func (d *Driver) GotoPage(page int) (*Utterance, error) {
	if page < 0 || page >= d.pages.PageCount() {
		return nil, fmt.Errorf("%w: %d", ErrPageOutOfRange, page)
	}
	d.interrupt()
	if err := d.load(page); err != nil {
		return nil, err
	}
	if d.machine.Current() == StateSpeaking {
		return d.advance(), nil
	}
	if d.machine.Current() != StateIdle {
		d.transition(StateIdle)
	}
	return nil, nil
}

// NextPage moves to the following page.
func (d *Driver) NextPage() (*Utterance, error) {
	return d.GotoPage(d.cursor.Page() + 1)
}

// PrevPage moves to the preceding page.
func (d *Driver) PrevPage() (*Utterance, error) {
	return d.GotoPage(d.cursor.Page() - 1)
}

// Reload replaces the page source, for example after the file changed on
// disk. The current page is split again, which restarts it.
func (d *Driver) Reload(pages PageSource) (*Utterance, error) {
	d.pages = pages
	page := d.cursor.Page()
	if page >= pages.PageCount() {
		page = pages.PageCount() - 1
	}
	if page < 0 {
		d.Stop()
		return nil, ErrNothingToRead
	}
	d.logger.Info("Document reloaded", "session", d.session, "page", page, "pages", pages.PageCount())
	return d.GotoPage(page)
}

// Finished reports the outcome of speaking u and returns the next utterance,
// or nil when nothing more should be spoken.
func (d *Driver) Finished(u *Utterance, err error) *Utterance {
	if u == nil || d.current == nil || u.ID != d.current.ID {
		// superseded by a pause, stop or page change
		return nil
	}
	d.interrupt()

	if err != nil {
		if IsCanceled(err) {
			// the engine gave up on its own; keep the sentence for Resume
			d.transition(StatePaused)
			return nil
		}
		d.lastErr = NewSpeechError(err, d.engine.Name(), "speak").WithPage(u.Page)
		d.transition(StateError)
		return nil
	}

	if d.machine.Current() != StateSpeaking {
		return nil
	}
	return d.advance()
}

// advance speaks the next sentence, or finishes when there is none.
func (d *Driver) advance() *Utterance {
	if next := d.nextSentence(); next != "" {
		return d.utter(next)
	}
	d.transition(StateFinished)
	return nil
}

// nextSentence asks the cursor for the next sentence, moving to later pages
// when the current one is exhausted and auto-advance is on. It returns ""
// at the end of the document. Pages without text are passed over, but the
// cursor only leaves the current page when a later one has a sentence.
func (d *Driver) nextSentence() string {
	if next := d.next(); next != "" {
		return next
	}
	if !d.config.AutoAdvance {
		return ""
	}

	for page := d.cursor.Page() + 1; page < d.pages.PageCount(); page++ {
		text, ok := d.pages.PageText(page)
		if !ok {
			break
		}
		if len(sentence.Split(text)) == 0 {
			d.logger.Debug("Skipping page without text", "page", page)
			continue
		}
		if err := d.load(page); err != nil {
			break
		}
		if next := d.next(); next != "" {
			return next
		}
	}
	return ""
}

// next advances the cursor and returns the sentence its listener queued.
func (d *Driver) next() string {
	d.queued = ""
	if _, ok := d.cursor.Next(); !ok {
		return ""
	}
	return d.queued
}

func (d *Driver) load(page int) error {
	text, ok := d.pages.PageText(page)
	if !ok {
		return fmt.Errorf("%w: %d", ErrPageOutOfRange, page)
	}
	d.cursor.SetText(text, page)
	return nil
}

func (d *Driver) utter(text string) *Utterance {
	ctx, cancel := context.WithCancel(context.Background())
	d.nextID++
	d.cancel = cancel
	d.current = &Utterance{
		ID:       d.nextID,
		Text:     text,
		Page:     d.cursor.Page(),
		Sentence: d.cursor.SentenceNumber(),
		ctx:      ctx,
	}
	d.prefetch()
	return d.current
}

// prefetch hands the sentences following the current one to the engine.
func (d *Driver) prefetch() {
	p, ok := d.engine.(Prefetcher)
	if !ok || d.config.Lookahead <= 0 {
		return
	}
	sentences := d.cursor.PageSentences(d.cursor.Page())
	start := d.cursor.SentenceIndex() + 1
	if start >= len(sentences) {
		return
	}
	end := min(start+d.config.Lookahead, len(sentences))
	p.Prefetch(sentences[start:end])
}

func (d *Driver) interrupt() {
	if d.cancel != nil {
		d.cancel()
	}
	d.cancel = nil
	d.current = nil
}

func (d *Driver) transition(to StateType) bool {
	if d.machine.Current() == to {
		return true
	}
	if to == StateSpeaking {
		d.lastErr = nil
	}
	return d.machine.Transition(to)
}
