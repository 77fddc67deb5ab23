// Package piper synthesizes speech with the piper command line tool and plays
// the resulting PCM through an audio player.
package piper

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mitchellh/go-homedir"

	"github.com/voiceverse/voiceverse/internal/cache"
	"github.com/voiceverse/voiceverse/internal/proc"
	"github.com/voiceverse/voiceverse/internal/queue"
	"github.com/voiceverse/voiceverse/speech"
)

// Player plays raw PCM, blocking until done or ctx is cancelled.
type Player interface {
	Play(ctx context.Context, pcm []byte) error
	Close() error
}

// Cache stores synthesized audio by key.
type Cache interface {
	Get(key string) ([]byte, bool)
	Put(key string, value []byte) error
}

// Config holds piper options.
type Config struct {
	Binary string  // Path or name of the piper executable
	Model  string  // Path to the .onnx voice model
	Speed  float64 // 1.0 is the model's natural speed

	// Maximum time to synthesize one sentence, 0 for none
	Timeout time.Duration
}

// DefaultConfig returns the default piper configuration without a model.
func DefaultConfig() Config {
	return Config{
		Binary:  "piper",
		Speed:   1.0,
		Timeout: 30 * time.Second,
	}
}

// Engine runs piper once per sentence.
type Engine struct {
	config Config
	player Player
	cache  Cache // may be nil

	lookahead *queue.Lookahead // nil without a cache

	mu     sync.Mutex
	closed bool
}

// New creates a piper engine. A nil cache disables caching.
func New(cfg Config, player Player, c Cache) (*Engine, error) {
	if cfg.Binary == "" {
		cfg.Binary = "piper"
	}
	if cfg.Speed <= 0 {
		cfg.Speed = 1.0
	}
	if cfg.Model == "" {
		return nil, errors.New("piper: no voice model configured")
	}
	model, err := homedir.Expand(cfg.Model)
	if err != nil {
		return nil, fmt.Errorf("piper: expanding model path: %w", err)
	}
	cfg.Model = model
	binary, err := homedir.Expand(cfg.Binary)
	if err != nil {
		return nil, fmt.Errorf("piper: expanding binary path: %w", err)
	}
	cfg.Binary = binary

	e := &Engine{config: cfg, player: player, cache: c}
	if c != nil {
		e.lookahead = queue.NewLookahead(func(ctx context.Context, text string) error {
			_, err := e.synthesize(ctx, text)
			return err
		})
	}
	return e, nil
}

// Name returns "piper".
func (e *Engine) Name() string { return "piper" }

// Available reports whether the piper binary and the model can be found.
func (e *Engine) Available() bool {
	if _, err := exec.LookPath(e.config.Binary); err != nil {
		return false
	}
	_, err := os.Stat(e.config.Model)
	return err == nil
}

// Speak synthesizes text, or takes it from the cache, and plays it.
func (e *Engine) Speak(ctx context.Context, text string) error {
	e.mu.Lock()
	closed := e.closed
	e.mu.Unlock()
	if closed {
		return speech.ErrEngineClosed
	}

	pcm, err := e.synthesize(ctx, text)
	if err != nil {
		return err
	}
	return e.player.Play(ctx, pcm)
}

// Prefetch synthesizes upcoming sentences into the cache in the background.
// Sentences from an earlier call that have not been started are dropped.
func (e *Engine) Prefetch(texts []string) {
	if e.lookahead == nil {
		return
	}
	if err := e.lookahead.Set(texts); err != nil {
		log.Debug("Prefetch ignored", "error", err)
	}
}

// Close stops prefetching and closes the player.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.mu.Unlock()

	if e.lookahead != nil {
		_ = e.lookahead.Close()
	}
	return e.player.Close()
}

func (e *Engine) synthesize(ctx context.Context, text string) ([]byte, error) {
	key := cache.Key(text, e.config.Model, e.config.Speed)
	if e.cache != nil {
		if pcm, ok := e.cache.Get(key); ok {
			log.Debug("Audio cache hit", "key", key[:12])
			return pcm, nil
		}
	}

	cfg := proc.DefaultConfig()
	cfg.Timeout = e.config.Timeout
	pcm, err := proc.Run(ctx, cfg, []byte(text+"\n"), e.config.Binary, e.args()...)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %w", speech.ErrSynthesisFailed, err)
	}
	if len(pcm) == 0 {
		return nil, fmt.Errorf("%w: piper produced no audio", speech.ErrSynthesisFailed)
	}
	log.Debug("Synthesized audio", "bytes", len(pcm))

	if e.cache != nil {
		if err := e.cache.Put(key, pcm); err != nil {
			log.Warn("Failed to cache audio", "error", err)
		}
	}
	return pcm, nil
}

func (e *Engine) args() []string {
	return []string{
		"--model", e.config.Model,
		"--output-raw",
		"--length_scale", strconv.FormatFloat(1/e.config.Speed, 'f', 3, 64),
	}
}
