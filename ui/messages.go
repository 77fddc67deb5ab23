package ui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/voiceverse/voiceverse/document"
	"github.com/voiceverse/voiceverse/speech"
)

const statusMessageTimeout = 3 * time.Second

type (
	// spokenMsg reports that the engine finished an utterance.
	spokenMsg struct {
		utterance *speech.Utterance
		err       error
	}

	// reloadMsg carries a document reloaded from disk.
	reloadMsg struct {
		doc *document.Document
	}

	// watchClosedMsg is sent when the watcher stops delivering updates.
	watchClosedMsg struct{}

	statusMessageTimeoutMsg struct{}
)

// speak runs the engine for u off the Update goroutine.
func speak(d *speech.Driver, u *speech.Utterance) tea.Cmd {
	if u == nil {
		return nil
	}
	return func() tea.Msg {
		return spokenMsg{utterance: u, err: d.Speak(u)}
	}
}

func waitForReload(updates <-chan *document.Document) tea.Cmd {
	if updates == nil {
		return nil
	}
	return func() tea.Msg {
		doc, ok := <-updates
		if !ok {
			return watchClosedMsg{}
		}
		return reloadMsg{doc: doc}
	}
}

func waitForStatusMessageTimeout(t *time.Timer) tea.Cmd {
	return func() tea.Msg {
		<-t.C
		return statusMessageTimeoutMsg{}
	}
}
