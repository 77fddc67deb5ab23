// Package say speaks through the macOS say command.
package say

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strconv"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/voiceverse/voiceverse/internal/proc"
	"github.com/voiceverse/voiceverse/speech"
)

// DefaultRate is the speaking rate in words per minute.
const DefaultRate = 200

// Config holds say options.
type Config struct {
	Voice string // Empty uses the system voice
	Rate  int    // Words per minute
}

// Engine runs one say process per sentence.
type Engine struct {
	config Config
	binary string

	mu     sync.Mutex
	closed bool
}

// New creates a say engine.
func New(cfg Config) *Engine {
	if cfg.Rate <= 0 {
		cfg.Rate = DefaultRate
	}
	return &Engine{config: cfg, binary: "say"}
}

// Name returns "say".
func (e *Engine) Name() string { return "say" }

// Available reports whether say exists, which only happens on macOS.
func (e *Engine) Available() bool {
	if runtime.GOOS != "darwin" {
		return false
	}
	_, err := exec.LookPath(e.binary)
	return err == nil
}

// Speak runs say for text. Cancelling ctx interrupts the process.
func (e *Engine) Speak(ctx context.Context, text string) error {
	e.mu.Lock()
	closed := e.closed
	e.mu.Unlock()
	if closed {
		return speech.ErrEngineClosed
	}

	log.Debug("Running say", "voice", e.config.Voice, "rate", e.config.Rate)
	if _, err := proc.Run(ctx, proc.DefaultConfig(), nil, e.binary, e.args(text)...); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %w", speech.ErrSynthesisFailed, err)
	}
	return nil
}

// Close stops further use of the engine.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}

func (e *Engine) args(text string) []string {
	var args []string
	if e.config.Voice != "" {
		args = append(args, "-v", e.config.Voice)
	}
	args = append(args, "-r", strconv.Itoa(e.config.Rate))
	// "--" keeps sentences starting with a dash from being read as flags.
	return append(args, "--", text)
}
