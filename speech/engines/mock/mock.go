// Package mock provides a speech engine for tests that speaks nothing.
package mock

import (
	"context"
	"sync"
	"time"
)

// Engine records the sentences it is asked to speak.
type Engine struct {
	mu sync.Mutex

	delay        time.Duration // Simulated utterance length
	shouldFail   bool
	failureError error
	available    bool
	closed       bool

	spoken    []string
	callCount int
}

// New creates a mock engine that finishes utterances immediately.
func New() *Engine {
	return &Engine{available: true}
}

// Name returns "mock".
func (e *Engine) Name() string { return "mock" }

// Available returns the configured availability.
func (e *Engine) Available() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.available && !e.closed
}

// Speak records text after the configured delay.
func (e *Engine) Speak(ctx context.Context, text string) error {
	e.mu.Lock()
	e.callCount++
	delay, fail, failErr := e.delay, e.shouldFail, e.failureError
	e.mu.Unlock()

	if fail {
		return failErr
	}

	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	} else if err := ctx.Err(); err != nil {
		return err
	}

	e.mu.Lock()
	e.spoken = append(e.spoken, text)
	e.mu.Unlock()
	return nil
}

// Close marks the engine unavailable.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}

// Test control methods

// SetDelay sets how long each utterance takes.
func (e *Engine) SetDelay(delay time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.delay = delay
}

// SetAvailable sets the value returned by Available.
func (e *Engine) SetAvailable(available bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.available = available
}

// SetFailure makes every Speak call fail with err.
func (e *Engine) SetFailure(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.shouldFail = true
	e.failureError = err
}

// ClearFailure restores normal operation.
func (e *Engine) ClearFailure() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.shouldFail = false
	e.failureError = nil
}

// Spoken returns the sentences spoken so far.
func (e *Engine) Spoken() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.spoken...)
}

// CallCount returns the number of Speak calls, including failed ones.
func (e *Engine) CallCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.callCount
}
