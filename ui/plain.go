package ui

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/log"
	"github.com/muesli/termenv"

	"github.com/voiceverse/voiceverse/speech"
)

// RunPlain reads the document without a TUI, printing each sentence as it
// is spoken. It returns when the document is finished, speech fails, or ctx
// is cancelled.
func RunPlain(ctx context.Context, d *speech.Driver, w io.Writer) error {
	out := termenv.NewOutput(w)

	u, err := d.Start()
	if err != nil {
		return err
	}

	page := -1
	for u != nil {
		if u.Page != page {
			page = u.Page
			fmt.Fprintln(out, out.String(fmt.Sprintf("-- page %d/%d --", page+1, d.Status().PageCount)).Faint())
		}
		fmt.Fprintln(out, u.Text)

		done := make(chan error, 1)
		go func(u *speech.Utterance) {
			done <- d.Speak(u)
		}(u)

		select {
		case err = <-done:
		case <-ctx.Done():
			d.Stop()
			<-done
			return ctx.Err()
		}

		u = d.Finished(u, err)
	}

	st := d.Status()
	if st.State == speech.StateError {
		return st.LastError
	}
	log.Debug("Plain reader finished", "session", st.Session)
	return nil
}
