package speech

import (
	"context"
	"errors"
	"sync"

	"github.com/charmbracelet/log"
)

// FallbackEngine speaks with a primary engine and switches to a fallback
// engine for the rest of the session once the primary has failed
// maxFailures times in a row.
type FallbackEngine struct {
	primary       Engine
	fallback      Engine
	failures      int
	maxFailures   int
	usingFallback bool
	mu            sync.Mutex
}

// NewFallbackEngine creates a fallback engine. An unavailable primary is
// skipped right away.
func NewFallbackEngine(primary, fallback Engine, maxFailures int) *FallbackEngine {
	if maxFailures < 1 {
		maxFailures = 1
	}
	f := &FallbackEngine{
		primary:     primary,
		fallback:    fallback,
		maxFailures: maxFailures,
	}
	if !primary.Available() {
		log.Warn("Primary speech engine unavailable, using fallback", "primary", primary.Name(), "fallback", fallback.Name())
		f.usingFallback = true
	}
	return f
}

// Name returns the name of the engine currently in use.
func (f *FallbackEngine) Name() string {
	return f.active().Name()
}

// Available reports whether either engine can be used.
func (f *FallbackEngine) Available() bool {
	return f.primary.Available() || f.fallback.Available()
}

// Speak speaks text with the active engine. When the primary fails for the
// last allowed time, the same text is spoken by the fallback.
func (f *FallbackEngine) Speak(ctx context.Context, text string) error {
	f.mu.Lock()
	if f.usingFallback {
		f.mu.Unlock()
		return f.fallback.Speak(ctx, text)
	}
	f.mu.Unlock()

	err := f.primary.Speak(ctx, text)
	if err == nil || errors.Is(err, context.Canceled) {
		f.mu.Lock()
		if err == nil && f.failures > 0 {
			log.Info("Primary speech engine recovered", "failures", f.failures)
			f.failures = 0
		}
		f.mu.Unlock()
		return err
	}

	f.mu.Lock()
	f.failures++
	log.Warn("Primary speech engine failed", "engine", f.primary.Name(), "failures", f.failures, "error", err)
	if f.failures < f.maxFailures {
		f.mu.Unlock()
		return err
	}
	f.usingFallback = true
	f.mu.Unlock()

	log.Warn("Switching to fallback speech engine", "engine", f.fallback.Name())
	return f.fallback.Speak(ctx, text)
}

// Prefetch forwards to the active engine when it supports prefetching.
func (f *FallbackEngine) Prefetch(texts []string) {
	if p, ok := f.active().(Prefetcher); ok {
		p.Prefetch(texts)
	}
}

// IsUsingFallback reports whether the fallback engine is active.
func (f *FallbackEngine) IsUsingFallback() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.usingFallback
}

// Close closes both engines.
func (f *FallbackEngine) Close() error {
	return errors.Join(f.primary.Close(), f.fallback.Close())
}

func (f *FallbackEngine) active() Engine {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.usingFallback {
		return f.fallback
	}
	return f.primary
}
