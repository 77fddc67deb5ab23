package document

import (
	"context"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
	"golang.org/x/time/rate"
)

// reloadInterval throttles reloads; editors often write a file in bursts.
const reloadInterval = 250 * time.Millisecond

// Watcher reloads a document whenever its file changes on disk.
type Watcher struct {
	path    string
	watcher *fsnotify.Watcher
	limiter *rate.Limiter
	updates chan *Document
}

// NewWatcher watches the directory containing path. Watching the directory
// rather than the file survives editors that replace the file on save.
func NewWatcher(path string) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		_ = fw.Close()
		return nil, err
	}
	log.Info("fsnotify watching dir", "dir", filepath.Dir(abs))

	return &Watcher{
		path:    abs,
		watcher: fw,
		limiter: rate.NewLimiter(rate.Every(reloadInterval), 1),
		updates: make(chan *Document, 1),
	}, nil
}

// Updates delivers reloaded documents.
func (w *Watcher) Updates() <-chan *Document {
	return w.updates
}

// Run processes file events until ctx is done. It closes Updates on return.
func (w *Watcher) Run(ctx context.Context) {
	defer close(w.updates)

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Name != w.path || (!event.Has(fsnotify.Write) && !event.Has(fsnotify.Create)) {
				continue
			}
			log.Debug("fsnotify event", "file", event.Name, "event", event.Op)

			if err := w.limiter.Wait(ctx); err != nil {
				return
			}
			w.drain()

			doc, err := Open(w.path)
			if err != nil {
				log.Error("Unable to reload document", "path", w.path, "error", err)
				continue
			}
			select {
			case w.updates <- doc:
			case <-ctx.Done():
				return
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Debug("fsnotify error", "path", w.path, "error", err)
		}
	}
}

// drain drops events queued while waiting on the limiter; the reload that
// follows reads the latest content anyway.
func (w *Watcher) drain() {
	for {
		select {
		case _, ok := <-w.watcher.Events:
			if !ok {
				return
			}
		default:
			return
		}
	}
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
