// Package ui provides the terminal reader for voiceverse.
package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	runewidth "github.com/mattn/go-runewidth"
	"github.com/muesli/reflow/wordwrap"

	"github.com/voiceverse/voiceverse/document"
	"github.com/voiceverse/voiceverse/speech"
)

// Options carries the collaborators of the reader.
type Options struct {
	Driver    *speech.Driver
	Document  *document.Document
	Positions *document.Positions      // optional
	Updates   <-chan *document.Document // optional, from a document.Watcher
}

type model struct {
	cfg       Config
	driver    *speech.Driver
	doc       *document.Document
	positions *document.Positions
	updates   <-chan *document.Document

	keys     keyMap
	help     help.Model
	progress progress.Model

	width  int
	height int

	statusMessage      string
	statusMessageTimer *time.Timer

	savedPage int
}

// NewProgram returns a new Tea program reading the document in opts.
func NewProgram(cfg Config, opts Options) *tea.Program {
	log.Debug("Starting reader", "title", cfg.Title, "autoplay", cfg.Autoplay)

	var programOpts []tea.ProgramOption
	if cfg.AltScreen {
		programOpts = append(programOpts, tea.WithAltScreen())
	}
	if cfg.EnableMouse {
		programOpts = append(programOpts, tea.WithMouseCellMotion())
	}
	return tea.NewProgram(newModel(cfg, opts), programOpts...)
}

func newModel(cfg Config, opts Options) model {
	if cfg.Title == "" && opts.Document != nil {
		cfg.Title = opts.Document.Title
	}
	return model{
		cfg:       cfg,
		driver:    opts.Driver,
		doc:       opts.Document,
		positions: opts.Positions,
		updates:   opts.Updates,
		keys:      newKeyMap(),
		help:      help.New(),
		progress:  progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage()),
		savedPage: -1,
	}
}

type autoplayMsg struct{}

func (m model) Init() tea.Cmd {
	cmds := []tea.Cmd{waitForReload(m.updates)}
	if m.cfg.Autoplay {
		cmds = append(cmds, func() tea.Msg { return autoplayMsg{} })
	}
	return tea.Batch(cmds...)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.progress.Width = max(10, min(msg.Width-4, m.wrapWidth()))

	case tea.KeyMsg:
		cmd, quit := m.handleKey(msg)
		if quit {
			m.driver.Stop()
			m.savePosition()
			return m, tea.Quit
		}
		cmds = append(cmds, cmd)

	case autoplayMsg:
		u, err := m.driver.Start()
		cmds = append(cmds, m.speakOrReport(u, err))

	case spokenMsg:
		next := m.driver.Finished(msg.utterance, msg.err)
		if st := m.driver.Status(); st.State == speech.StateError {
			log.Error("Speech failed", "error", st.LastError)
		}
		cmds = append(cmds, speak(m.driver, next))

	case reloadMsg:
		m.doc = msg.doc
		u, err := m.driver.Reload(msg.doc)
		cmds = append(cmds,
			m.speakOrReport(u, err),
			m.showStatusMessage("Reloaded"),
			waitForReload(m.updates),
		)

	case watchClosedMsg:
		m.updates = nil

	case statusMessageTimeoutMsg:
		m.statusMessage = ""
	}

	m.savePosition()
	return m, tea.Batch(cmds...)
}

func (m *model) handleKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return nil, true

	case key.Matches(msg, m.keys.Toggle):
		u, err := m.driver.Toggle()
		return m.speakOrReport(u, err), false

	case key.Matches(msg, m.keys.Stop):
		m.driver.Stop()

	case key.Matches(msg, m.keys.Restart):
		u, err := m.driver.GotoPage(m.driver.Status().Cursor.Page)
		return m.speakOrReport(u, err), false

	case key.Matches(msg, m.keys.Skip):
		return speak(m.driver, m.driver.Skip()), false

	case key.Matches(msg, m.keys.NextPage):
		u, err := m.driver.NextPage()
		return m.speakOrReport(u, err), false

	case key.Matches(msg, m.keys.PrevPage):
		u, err := m.driver.PrevPage()
		return m.speakOrReport(u, err), false

	case key.Matches(msg, m.keys.Copy):
		sentence := m.driver.Status().Cursor.Sentence
		if sentence == "" {
			return m.showStatusMessage("Nothing to copy"), false
		}
		if err := clipboard.WriteAll(sentence); err != nil {
			log.Error("error copying to clipboard", "error", err)
			return m.showStatusMessage("Copy failed"), false
		}
		return m.showStatusMessage("Copied sentence"), false

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	}
	return nil, false
}

func (m *model) speakOrReport(u *speech.Utterance, err error) tea.Cmd {
	if err != nil {
		log.Debug("Driver refused", "error", err)
		return m.showStatusMessage(err.Error())
	}
	if u == nil {
		return nil
	}
	return speak(m.driver, u)
}

func (m *model) showStatusMessage(s string) tea.Cmd {
	m.statusMessage = s
	if m.statusMessageTimer != nil {
		m.statusMessageTimer.Stop()
	}
	m.statusMessageTimer = time.NewTimer(statusMessageTimeout)
	return waitForStatusMessageTimeout(m.statusMessageTimer)
}

// savePosition records the current page when it changed.
func (m *model) savePosition() {
	if m.positions == nil || m.doc == nil {
		return
	}
	page := m.driver.Status().Cursor.Page
	if page == m.savedPage {
		return
	}
	if err := m.positions.Set(m.doc, page); err != nil {
		log.Error("error saving reading position", "error", err)
		return
	}
	m.savedPage = page
}

func (m model) wrapWidth() int {
	w := m.width - 4
	if m.cfg.MaxWidth > 0 && (w <= 0 || w > m.cfg.MaxWidth) {
		w = m.cfg.MaxWidth
	}
	return w
}

func (m model) View() string {
	st := m.driver.Status()
	var b strings.Builder

	fmt.Fprintf(&b, "%s  %s\n", titleStyle.Render(m.cfg.Title), compactStatus(st))

	sentence := st.Cursor.Sentence
	if sentence == "" || st.State == speech.StateFinished {
		sentence = subtleStyle.Render(placeholder(st))
	} else if w := m.wrapWidth(); w > 0 && runewidth.StringWidth(sentence) > w {
		sentence = wordwrap.String(sentence, w)
	}
	b.WriteString(sentenceStyle.Render(sentence))
	b.WriteString("\n")

	b.WriteString("  " + m.progress.ViewAs(st.Cursor.Progress()) + "\n\n")

	if st.State == speech.StateError && st.LastError != nil {
		b.WriteString(errorTitleStyle.Render("ERROR") + " " + subtleStyle.Render(st.LastError.Error()) + "\n\n")
	}

	if m.width > 0 {
		b.WriteString(statusBar(st, m.cfg.Title, m.statusMessage, m.width) + "\n")
	} else if m.statusMessage != "" {
		b.WriteString(m.statusMessage + "\n")
	}
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func placeholder(st speech.Status) string {
	switch st.State {
	case speech.StateFinished:
		return "The end. Press space to read again."
	case speech.StateError:
		return "Speech failed. Press space to retry."
	}
	if st.PageCount == 0 {
		return "This document has no text."
	}
	return "Press space to start reading."
}
