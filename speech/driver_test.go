package speech

import (
	"context"
	"errors"
	"io"
	"reflect"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/voiceverse/voiceverse/cursor"
	"github.com/voiceverse/voiceverse/speech/engines/mock"
)

type pages []string

func (p pages) PageCount() int { return len(p) }

func (p pages) PageText(i int) (string, bool) {
	if i < 0 || i >= len(p) {
		return "", false
	}
	return p[i], true
}

func newTestDriver(src PageSource, cfg Config) (*Driver, *mock.Engine, *cursor.Cursor) {
	logger := log.New(io.Discard)
	c := cursor.New(cursor.WithLogger(logger))
	engine := mock.New()
	d := NewDriver(c, engine, src, WithConfig(cfg), WithLogger(logger))
	return d, engine, c
}

// run speaks utterances until the driver has nothing more to say.
func run(d *Driver, u *Utterance) {
	for u != nil {
		err := d.Speak(u)
		u = d.Finished(u, err)
	}
}

func TestDriverReadsWholeDocument(t *testing.T) {
	d, engine, _ := newTestDriver(pages{"一。二。", "", "三。\n四", "   "}, DefaultConfig())

	u, err := d.Start()
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	run(d, u)

	want := []string{"一。", "二。", "三。", "四"}
	if got := engine.Spoken(); !reflect.DeepEqual(got, want) {
		t.Errorf("spoken = %q, want %q", got, want)
	}
	if d.State() != StateFinished {
		t.Errorf("State() = %s, want finished", d.State())
	}

	st := d.Status()
	// the trailing blank page is never entered
	if st.Cursor.Page != 2 || st.Cursor.Sentence != "四" {
		t.Errorf("cursor = page %d %q, want last sentence of page 2", st.Cursor.Page, st.Cursor.Sentence)
	}
	if st.PageCount != 4 || st.Engine != "mock" || st.Session == "" {
		t.Errorf("unexpected status %+v", st)
	}
}

func TestDriverWithoutAutoAdvance(t *testing.T) {
	d, engine, c := newTestDriver(pages{"a。b。", "c。"}, Config{AutoAdvance: false})

	u, _ := d.Start()
	run(d, u)

	if got := engine.Spoken(); !reflect.DeepEqual(got, []string{"a。", "b。"}) {
		t.Errorf("spoken = %q", got)
	}
	if d.State() != StateFinished {
		t.Errorf("State() = %s, want finished", d.State())
	}
	if c.CurrentSentence() != "b。" || !c.IsLastSentence() {
		t.Errorf("cursor = %+v, want clamped on last sentence", c.Snapshot())
	}
}

func TestDriverStartPage(t *testing.T) {
	d, engine, _ := newTestDriver(pages{"zero。", "one。", "two。"}, Config{StartPage: 1, AutoAdvance: true})

	u, _ := d.Start()
	run(d, u)

	if got := engine.Spoken(); !reflect.DeepEqual(got, []string{"one。", "two。"}) {
		t.Errorf("spoken = %q", got)
	}
}

func TestDriverShowsStartPageBeforeReading(t *testing.T) {
	d, engine, c := newTestDriver(pages{"zero。", "one。two。", "three。"}, Config{StartPage: 1, AutoAdvance: true})

	st := d.Status()
	if st.State != StateIdle || st.Cursor.Page != 1 || st.Cursor.SentenceCount != 2 {
		t.Errorf("status before Start = %+v, want idle on page 1 with 2 sentences", st)
	}
	if !c.HasText() || c.SentenceIndex() != -1 {
		t.Errorf("cursor = %+v, want loaded and not started", c.Snapshot())
	}
	if len(engine.Spoken()) != 0 {
		t.Error("nothing should be spoken before Start")
	}

	// out of range start pages are left to Start to report
	d, _, c = newTestDriver(pages{"zero。"}, Config{StartPage: 5})
	if c.HasText() || d.Status().Cursor.Page != 0 {
		t.Errorf("cursor = %+v, want untouched", c.Snapshot())
	}
}

func TestDriverEmptyDocument(t *testing.T) {
	d, _, _ := newTestDriver(pages{}, DefaultConfig())

	if _, err := d.Start(); !errors.Is(err, ErrNothingToRead) {
		t.Errorf("Start() error = %v, want ErrNothingToRead", err)
	}
	if d.State() != StateIdle {
		t.Errorf("State() = %s, want idle", d.State())
	}
}

func TestDriverPauseResume(t *testing.T) {
	d, engine, c := newTestDriver(pages{"一。二。三。"}, DefaultConfig())

	u, _ := d.Start()
	if u == nil || u.Text != "一。" || u.Sentence != 1 {
		t.Fatalf("Start() utterance = %+v", u)
	}

	// pressing pause while the first sentence is in flight
	if next, _ := d.Toggle(); next != nil {
		t.Fatalf("Toggle() while speaking returned %+v", next)
	}
	if d.State() != StatePaused {
		t.Fatalf("State() = %s, want paused", d.State())
	}
	if err := d.Speak(u); !IsCanceled(err) {
		t.Fatalf("Speak() of paused utterance error = %v, want canceled", err)
	}
	if next := d.Finished(u, nil); next != nil {
		t.Fatal("Finished() of a superseded utterance returned a follow-up")
	}
	if c.CurrentSentence() != "一。" {
		t.Errorf("CurrentSentence() = %q after pause", c.CurrentSentence())
	}

	resumed, err := d.Toggle()
	if err != nil {
		t.Fatalf("Toggle() error = %v", err)
	}
	if resumed == nil || resumed.Text != "一。" {
		t.Fatalf("resumed utterance = %+v, want first sentence again", resumed)
	}
	run(d, resumed)

	want := []string{"一。", "二。", "三。"}
	if got := engine.Spoken(); !reflect.DeepEqual(got, want) {
		t.Errorf("spoken = %q, want %q", got, want)
	}
}

func TestDriverStop(t *testing.T) {
	d, _, c := newTestDriver(pages{"一。二。"}, DefaultConfig())

	u, _ := d.Start()
	d.Stop()

	if d.State() != StateIdle {
		t.Errorf("State() = %s, want idle", d.State())
	}
	if c.SentenceIndex() != -1 || c.CurrentSentence() != "" {
		t.Errorf("cursor not reset: %+v", c.Snapshot())
	}
	if next := d.Finished(u, nil); next != nil {
		t.Error("Finished() after Stop returned a follow-up")
	}

	// play starts the page over
	again, err := d.Toggle()
	if err != nil || again == nil || again.Text != "一。" {
		t.Errorf("Toggle() after stop = (%+v, %v)", again, err)
	}
}

func TestDriverToggleAfterFinish(t *testing.T) {
	d, engine, _ := newTestDriver(pages{"a。", "b。"}, Config{StartPage: 0, AutoAdvance: true})

	u, _ := d.Start()
	run(d, u)
	if d.State() != StateFinished {
		t.Fatalf("State() = %s", d.State())
	}

	u, err := d.Toggle()
	if err != nil {
		t.Fatalf("Toggle() error = %v", err)
	}
	run(d, u)

	want := []string{"a。", "b。", "a。", "b。"}
	if got := engine.Spoken(); !reflect.DeepEqual(got, want) {
		t.Errorf("spoken = %q, want %q", got, want)
	}
}

func TestDriverSkip(t *testing.T) {
	d, engine, c := newTestDriver(pages{"一。二。三。"}, DefaultConfig())

	u, _ := d.Start()
	skipped := d.Skip()
	if skipped == nil || skipped.Text != "二。" {
		t.Fatalf("Skip() = %+v, want second sentence", skipped)
	}
	if next := d.Finished(u, nil); next != nil {
		t.Fatal("Finished() of skipped utterance returned a follow-up")
	}
	run(d, skipped)

	if got := engine.Spoken(); !reflect.DeepEqual(got, []string{"二。", "三。"}) {
		t.Errorf("spoken = %q", got)
	}

	// skipping while idle only moves the cursor
	d.Stop()
	if d.Skip() != nil {
		t.Error("Skip() while idle returned an utterance")
	}
	if c.CurrentSentence() != "一。" {
		t.Errorf("CurrentSentence() = %q after idle skip", c.CurrentSentence())
	}
}

func TestDriverSkipAcrossPages(t *testing.T) {
	d, engine, c := newTestDriver(pages{"a。b。", "", "c。"}, DefaultConfig())

	u, _ := d.Start()
	if next := d.Finished(u, d.Speak(u)); next == nil || next.Text != "b。" {
		t.Fatalf("Finished() = %+v, want b。", next)
	}
	d.Pause()

	// paused on the last sentence of a page, skip moves to the next page
	// with text, like reading on would
	if d.Skip() != nil {
		t.Fatal("Skip() while paused returned an utterance")
	}
	if c.Page() != 2 || c.CurrentSentence() != "c。" {
		t.Fatalf("cursor = %+v, want c。 on page 2", c.Snapshot())
	}
	if d.State() != StatePaused {
		t.Errorf("State() = %s, want paused", d.State())
	}

	u, err := d.Toggle()
	if err != nil || u == nil || u.Text != "c。" {
		t.Fatalf("Toggle() = (%+v, %v), want c。", u, err)
	}
	run(d, u)

	// at the end of the document a skip leaves the cursor alone
	d.Stop()
	d.Skip()
	d.Skip()
	if c.Page() != 2 || c.CurrentSentence() != "c。" || !c.IsLastSentence() {
		t.Errorf("cursor = %+v, want kept on the last sentence", c.Snapshot())
	}
	if d.State() != StateIdle {
		t.Errorf("State() = %s, want idle", d.State())
	}

	if got := engine.Spoken(); !reflect.DeepEqual(got, []string{"a。", "c。"}) {
		t.Errorf("spoken = %q", got)
	}
}

func TestDriverEngineCanceled(t *testing.T) {
	d, engine, c := newTestDriver(pages{"一。二。"}, DefaultConfig())
	engine.SetFailure(context.Canceled)

	u, _ := d.Start()
	if next := d.Finished(u, d.Speak(u)); next != nil {
		t.Fatalf("Finished() = %+v, want nothing after a cancellation", next)
	}
	if d.State() != StatePaused {
		t.Errorf("State() = %s, want paused", d.State())
	}
	if d.Status().LastError != nil {
		t.Errorf("LastError = %v, a cancellation is not a failure", d.Status().LastError)
	}
	if c.CurrentSentence() != "一。" {
		t.Errorf("CurrentSentence() = %q, want 一。", c.CurrentSentence())
	}

	engine.ClearFailure()
	u, err := d.Toggle()
	if err != nil || u == nil || u.Text != "一。" {
		t.Fatalf("Toggle() = (%+v, %v), want the interrupted sentence", u, err)
	}
	run(d, u)
	if got := engine.Spoken(); !reflect.DeepEqual(got, []string{"一。", "二。"}) {
		t.Errorf("spoken = %q", got)
	}
}

func TestDriverPageNavigation(t *testing.T) {
	d, engine, c := newTestDriver(pages{"p0。", "p1a。p1b。", "p2。"}, DefaultConfig())

	// while idle, changing page only loads it
	if u, err := d.NextPage(); err != nil || u != nil {
		t.Fatalf("NextPage() = (%+v, %v)", u, err)
	}
	if c.Page() != 1 || c.SentenceCount() != 2 {
		t.Errorf("cursor = %+v after NextPage", c.Snapshot())
	}

	u, _ := d.Start()
	if u.Text != "p1a。" {
		t.Fatalf("Start() after NextPage = %q", u.Text)
	}

	// while speaking, the new page is read from its start
	u2, err := d.PrevPage()
	if err != nil || u2 == nil || u2.Text != "p0。" {
		t.Fatalf("PrevPage() = (%+v, %v)", u2, err)
	}
	if d.Finished(u, nil) != nil {
		t.Error("superseded utterance produced a follow-up")
	}
	run(d, u2)

	want := []string{"p0。", "p1a。", "p1b。", "p2。"}
	if got := engine.Spoken(); !reflect.DeepEqual(got, want) {
		t.Errorf("spoken = %q, want %q", got, want)
	}

	if _, err := d.GotoPage(3); !errors.Is(err, ErrPageOutOfRange) {
		t.Errorf("GotoPage(3) error = %v, want ErrPageOutOfRange", err)
	}
	if _, err := d.GotoPage(-1); !errors.Is(err, ErrPageOutOfRange) {
		t.Errorf("GotoPage(-1) error = %v, want ErrPageOutOfRange", err)
	}
}

func TestDriverEngineFailure(t *testing.T) {
	d, engine, _ := newTestDriver(pages{"一。二。"}, DefaultConfig())
	engine.SetFailure(errors.New("device busy"))

	u, _ := d.Start()
	run(d, u)

	if d.State() != StateError {
		t.Fatalf("State() = %s, want error", d.State())
	}
	var se *SpeechError
	if !errors.As(d.Status().LastError, &se) {
		t.Fatalf("LastError = %v, want *SpeechError", d.Status().LastError)
	}
	if se.Component != "mock" || se.Page != 0 {
		t.Errorf("SpeechError = %+v", se)
	}

	// play retries the failed sentence
	engine.ClearFailure()
	u, err := d.Toggle()
	if err != nil || u == nil || u.Text != "一。" {
		t.Fatalf("Toggle() after error = (%+v, %v)", u, err)
	}
	run(d, u)
	if d.Status().LastError != nil {
		t.Errorf("LastError = %v after recovery", d.Status().LastError)
	}
	if got := engine.Spoken(); !reflect.DeepEqual(got, []string{"一。", "二。"}) {
		t.Errorf("spoken = %q", got)
	}
}

func TestDriverReload(t *testing.T) {
	d, engine, c := newTestDriver(pages{"old0。", "old1a。old1b。"}, DefaultConfig())

	if _, err := d.GotoPage(1); err != nil {
		t.Fatal(err)
	}
	u, _ := d.Start()
	if u.Text != "old1a。" {
		t.Fatalf("Start() = %q", u.Text)
	}

	u2, err := d.Reload(pages{"new0。", "new1。"})
	if err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	if u2 == nil || u2.Text != "new1。" {
		t.Fatalf("Reload() utterance = %+v", u2)
	}
	if c.SentenceCount() != 1 {
		t.Errorf("SentenceCount() = %d after reload", c.SentenceCount())
	}
	run(d, u2)
	if got := engine.Spoken(); !reflect.DeepEqual(got, []string{"new1。"}) {
		t.Errorf("spoken = %q", got)
	}

	// a shorter document clamps the page
	if _, err := d.Reload(pages{"only。"}); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	if c.Page() != 0 {
		t.Errorf("Page() = %d after shrinking reload", c.Page())
	}

	if _, err := d.Reload(pages{}); !errors.Is(err, ErrNothingToRead) {
		t.Errorf("Reload(empty) error = %v", err)
	}
}

func TestStateMachine(t *testing.T) {
	sm := NewStateMachine()
	if sm.Current() != StateIdle {
		t.Fatalf("initial state = %s", sm.Current())
	}

	var entered []StateType
	sm.OnEnter(StatePaused, func(from StateType) { entered = append(entered, from) })

	if sm.Transition(StatePaused) {
		t.Error("idle -> paused allowed")
	}
	if !sm.Transition(StateSpeaking) || !sm.Transition(StatePaused) {
		t.Fatal("idle -> speaking -> paused rejected")
	}
	if !reflect.DeepEqual(entered, []StateType{StateSpeaking}) {
		t.Errorf("OnEnter from = %v", entered)
	}
	if sm.Transition(StateFinished) {
		t.Error("paused -> finished allowed")
	}
}

func TestStateTypeString(t *testing.T) {
	tests := []struct {
		state    StateType
		expected string
	}{
		{StateIdle, "idle"},
		{StateSpeaking, "speaking"},
		{StatePaused, "paused"},
		{StateFinished, "finished"},
		{StateError, "error"},
		{StateType(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.expected {
			t.Errorf("StateType(%d).String() = %q, want %q", tt.state, got, tt.expected)
		}
	}
}

func TestSpeechError(t *testing.T) {
	err := NewSpeechError(ErrEngineNotAvailable, "piper", "speak").WithPage(3)

	if !errors.Is(err, ErrEngineNotAvailable) {
		t.Error("errors.Is failed through SpeechError")
	}
	if err.IsRecoverable() {
		t.Error("unavailable engine reported as recoverable")
	}
	if got := err.Error(); got != "piper: speak: speech engine is not available" {
		t.Errorf("Error() = %q", got)
	}
	if !IsRecoverableError(nil) || !IsRecoverableError(ErrSynthesisFailed) {
		t.Error("IsRecoverableError misclassified recoverable errors")
	}
}

type prefetchEngine struct {
	*mock.Engine
	batches [][]string
}

func (e *prefetchEngine) Prefetch(texts []string) {
	e.batches = append(e.batches, texts)
}

func TestDriverPrefetch(t *testing.T) {
	engine := &prefetchEngine{Engine: mock.New()}
	logger := log.New(io.Discard)
	d := NewDriver(cursor.New(cursor.WithLogger(logger)), engine, pages{"a。b。c。d。"},
		WithConfig(Config{AutoAdvance: true, Lookahead: 2}), WithLogger(logger))

	u, err := d.Start()
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	run(d, u)

	want := [][]string{
		{"b。", "c。"},
		{"c。", "d。"},
		{"d。"},
	}
	if !reflect.DeepEqual(engine.batches, want) {
		t.Errorf("prefetched %q, want %q", engine.batches, want)
	}
}

func TestDriverPrefetchDisabled(t *testing.T) {
	engine := &prefetchEngine{Engine: mock.New()}
	logger := log.New(io.Discard)
	d := NewDriver(cursor.New(cursor.WithLogger(logger)), engine, pages{"a。b。"},
		WithConfig(Config{Lookahead: 0}), WithLogger(logger))

	u, _ := d.Start()
	run(d, u)
	if len(engine.batches) != 0 {
		t.Errorf("prefetched %q with lookahead disabled", engine.batches)
	}
}
