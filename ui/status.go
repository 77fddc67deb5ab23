package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/truncate"

	"github.com/voiceverse/voiceverse/speech"
)

const ellipsis = "…"

// stateIcon returns an icon for a playback state.
func stateIcon(s speech.StateType) string {
	switch s {
	case speech.StateSpeaking:
		return "▶"
	case speech.StatePaused:
		return "⏸"
	case speech.StateFinished:
		return "✓"
	case speech.StateError:
		return "✗"
	default:
		return "■"
	}
}

// stateColor returns the color used for a playback state.
func stateColor(s speech.StateType) lipgloss.TerminalColor {
	switch s {
	case speech.StateSpeaking:
		return green
	case speech.StatePaused:
		return yellow
	case speech.StateError:
		return red
	case speech.StateFinished:
		return fuchsia
	default:
		return gray
	}
}

// pageLabel renders "page k/n", 1-based.
func pageLabel(st speech.Status) string {
	if st.PageCount == 0 {
		return "no pages"
	}
	return fmt.Sprintf("page %d/%d", st.Cursor.Page+1, st.PageCount)
}

// sentenceLabel renders "sentence n/total" once the page has started.
func sentenceLabel(st speech.Status) string {
	if !st.Cursor.Started() || st.Cursor.SentenceCount == 0 {
		return fmt.Sprintf("%d sentences", st.Cursor.SentenceCount)
	}
	return fmt.Sprintf("sentence %d/%d", st.Cursor.SentenceIndex+1, st.Cursor.SentenceCount)
}

// compactStatus renders the one-line status: icon, state, page and sentence
// counters, and the engine name.
func compactStatus(st speech.Status) string {
	icon := lipgloss.NewStyle().
		Foreground(stateColor(st.State)).
		Render(fmt.Sprintf("%s %s", stateIcon(st.State), st.State))

	parts := []string{icon, pageLabel(st), sentenceLabel(st), st.Engine}
	return strings.Join(parts, subtleStyle.Render(" • "))
}

// statusBar renders the bottom bar, padded to width. A status message
// replaces the note when present.
func statusBar(st speech.Status, title, message string, width int) string {
	logo := logoStyle.Render("voiceverse")

	style := statusBarNoteStyle
	note := title
	switch {
	case message != "":
		style = statusBarMessageStyle
		note = message
	case st.LastError != nil:
		note = "error: " + st.LastError.Error()
	}

	avail := max(0, width-lipgloss.Width(logo))
	note = truncate.StringWithTail(" "+note+" ", uint(avail), ellipsis) //nolint:gosec
	padding := strings.Repeat(" ", max(0, avail-lipgloss.Width(note)))

	return logo + style.Render(note+padding)
}
