// Package gtts speaks through Google Translate's voices, using gtts-cli to
// fetch MP3 audio and ffmpeg to turn it into PCM for the audio player.
package gtts

import (
	"context"
	"errors"
	"fmt"
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

// ffmpeg's atempo filter only accepts factors in this range.
const (
	minTempo = 0.5
	maxTempo = 2.0
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

// Config holds gtts options.
type Config struct {
	Binary     string  // gtts-cli executable
	FFmpeg     string  // ffmpeg executable
	Lang       string  // Language tag understood by gtts-cli, e.g. zh-CN
	Speed      float64 // Tempo applied by ffmpeg, 1.0 leaves it alone
	SampleRate int     // Must match the audio player

	// Maximum time for each of the two commands, 0 for none
	Timeout time.Duration
}

// DefaultConfig returns settings for Mandarin at normal speed.
func DefaultConfig() Config {
	return Config{
		Binary:     "gtts-cli",
		FFmpeg:     "ffmpeg",
		Lang:       "zh-CN",
		Speed:      1.0,
		SampleRate: 22050,
		Timeout:    10 * time.Second,
	}
}

// Engine fetches and converts audio for every sentence.
type Engine struct {
	config Config
	player Player
	cache  Cache // may be nil

	lookahead *queue.Lookahead // nil without a cache

	mu     sync.Mutex
	closed bool
}

// New creates a gtts engine. A nil cache disables caching.
func New(cfg Config, player Player, c Cache) (*Engine, error) {
	def := DefaultConfig()
	if cfg.Binary == "" {
		cfg.Binary = def.Binary
	}
	if cfg.FFmpeg == "" {
		cfg.FFmpeg = def.FFmpeg
	}
	if cfg.Lang == "" {
		cfg.Lang = def.Lang
	}
	if cfg.Speed <= 0 {
		cfg.Speed = def.Speed
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = def.SampleRate
	}
	if cfg.Speed < minTempo || cfg.Speed > maxTempo {
		return nil, fmt.Errorf("gtts: speed must be between %.1f and %.1f, got %.2f", minTempo, maxTempo, cfg.Speed)
	}

	var err error
	if cfg.Binary, err = homedir.Expand(cfg.Binary); err != nil {
		return nil, fmt.Errorf("gtts: expanding binary path: %w", err)
	}
	if cfg.FFmpeg, err = homedir.Expand(cfg.FFmpeg); err != nil {
		return nil, fmt.Errorf("gtts: expanding ffmpeg path: %w", err)
	}

	e := &Engine{config: cfg, player: player, cache: c}
	if c != nil {
		e.lookahead = queue.NewLookahead(func(ctx context.Context, text string) error {
			_, err := e.synthesize(ctx, text)
			return err
		})
	}
	return e, nil
}

// Name returns "gtts".
func (e *Engine) Name() string { return "gtts" }

// Available reports whether gtts-cli and ffmpeg can be found. It does not
// check the network.
func (e *Engine) Available() bool {
	for _, bin := range []string{e.config.Binary, e.config.FFmpeg} {
		if _, err := exec.LookPath(bin); err != nil {
			return false
		}
	}
	return true
}

// Speak fetches text, or takes it from the cache, and plays it.
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

// Prefetch fetches upcoming sentences into the cache in the background.
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
	key := cache.Key(text, "gtts:"+e.config.Lang, e.config.Speed)
	if e.cache != nil {
		if pcm, ok := e.cache.Get(key); ok {
			log.Debug("Audio cache hit", "key", key[:12])
			return pcm, nil
		}
	}

	cfg := proc.DefaultConfig()
	cfg.Timeout = e.config.Timeout

	mp3, err := proc.Run(ctx, cfg, nil, e.config.Binary, e.gttsArgs(text)...)
	if err != nil {
		return nil, e.failed(ctx, err)
	}
	if len(mp3) == 0 {
		return nil, fmt.Errorf("%w: gtts-cli produced no audio", speech.ErrSynthesisFailed)
	}

	pcm, err := proc.Run(ctx, cfg, mp3, e.config.FFmpeg, e.ffmpegArgs()...)
	if err != nil {
		return nil, e.failed(ctx, err)
	}
	if len(pcm) == 0 {
		return nil, fmt.Errorf("%w: ffmpeg produced no audio", speech.ErrSynthesisFailed)
	}
	log.Debug("Synthesized audio", "mp3", len(mp3), "pcm", len(pcm))

	if e.cache != nil {
		if err := e.cache.Put(key, pcm); err != nil {
			log.Warn("Failed to cache audio", "error", err)
		}
	}
	return pcm, nil
}

func (e *Engine) failed(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(err, proc.ErrTimeout) {
		log.Warn("gtts timed out, is the network up?")
	}
	return fmt.Errorf("%w: %w", speech.ErrSynthesisFailed, err)
}

func (e *Engine) gttsArgs(text string) []string {
	// "--" keeps sentences starting with a dash from being read as flags.
	return []string{"--lang", e.config.Lang, "--output", "-", "--", text}
}

func (e *Engine) ffmpegArgs() []string {
	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-i", "pipe:0",
		"-f", "s16le",
		"-ar", strconv.Itoa(e.config.SampleRate),
		"-ac", "1",
	}
	if e.config.Speed != 1.0 {
		args = append(args, "-filter:a", "atempo="+strconv.FormatFloat(e.config.Speed, 'f', 2, 64))
	}
	return append(args, "pipe:1")
}
