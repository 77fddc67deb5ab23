package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// ErrQueueClosed is returned when items are set on a closed queue.
var ErrQueueClosed = errors.New("queue is closed")

// Func prepares one item. It should return promptly once ctx is cancelled.
type Func func(ctx context.Context, item string) error

// Stats tracks lookahead work.
type Stats struct {
	Processed   int64
	Failed      int64
	Replaced    int64 // items dropped because a newer list arrived first
	LastProcess time.Time
}

// Lookahead runs Func over a list of upcoming items with a single worker.
// Setting a new list replaces whatever has not been started yet, so the
// worker always follows the reader's current position.
type Lookahead struct {
	fn Func

	mu      sync.Mutex
	pending []string
	closed  bool
	stats   Stats

	wake   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewLookahead starts a worker calling fn.
func NewLookahead(fn Func) *Lookahead {
	ctx, cancel := context.WithCancel(context.Background())
	l := &Lookahead{
		fn:     fn,
		wake:   make(chan struct{}, 1),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go l.run()
	return l
}

// Set replaces the pending items.
func (l *Lookahead) Set(items []string) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrQueueClosed
	}
	l.stats.Replaced += int64(len(l.pending))
	l.pending = append([]string(nil), items...)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return nil
}

// Pending returns the items not yet started.
func (l *Lookahead) Pending() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.pending...)
}

// Stats returns the worker counters.
func (l *Lookahead) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stats
}

// Close cancels the item in progress and stops the worker.
func (l *Lookahead) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	l.pending = nil
	l.mu.Unlock()

	l.cancel()
	<-l.done
	return nil
}

func (l *Lookahead) run() {
	defer close(l.done)
	for {
		select {
		case <-l.ctx.Done():
			return
		case <-l.wake:
		}

		for {
			item, ok := l.pop()
			if !ok {
				break
			}
			err := l.fn(l.ctx, item)

			l.mu.Lock()
			if err != nil {
				l.stats.Failed++
			} else {
				l.stats.Processed++
				l.stats.LastProcess = time.Now()
			}
			l.mu.Unlock()

			if err != nil {
				if l.ctx.Err() != nil {
					return
				}
				log.Debug("Lookahead failed", "error", err)
			}
		}
	}
}

func (l *Lookahead) pop() (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.pending) == 0 {
		return "", false
	}
	item := l.pending[0]
	l.pending = l.pending[1:]
	return item, true
}
