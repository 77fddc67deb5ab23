package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/ebitengine/oto/v3"
)

// ErrPlayerClosed is returned by Play after Close.
var ErrPlayerClosed = errors.New("player is closed")

// pollInterval is how often Play checks whether playback drained.
const pollInterval = 10 * time.Millisecond

// oto allows a single context per process.
var (
	otoOnce    sync.Once
	otoContext *oto.Context
	otoErr     error
	otoFormat  Config
)

// Config describes the PCM stream handed to Play.
type Config struct {
	SampleRate int // Hz
	Channels   int // 1 = mono, 2 = stereo
}

// DefaultConfig matches the raw output of most piper voices.
func DefaultConfig() Config {
	return Config{
		SampleRate: 22050,
		Channels:   1,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.SampleRate < 8000 || c.SampleRate > 192000 {
		return fmt.Errorf("sample rate out of range: %d", c.SampleRate)
	}
	if c.Channels != 1 && c.Channels != 2 {
		return fmt.Errorf("channels must be 1 (mono) or 2 (stereo), got %d", c.Channels)
	}
	return nil
}

// Duration returns how long n bytes of PCM take to play.
func (c Config) Duration(n int) time.Duration {
	bytesPerSecond := c.SampleRate * c.Channels * 2
	if bytesPerSecond == 0 {
		return 0
	}
	return time.Duration(n) * time.Second / time.Duration(bytesPerSecond)
}

// Player plays one PCM buffer at a time.
type Player struct {
	config  Config
	context *oto.Context

	mu     sync.Mutex
	closed bool
}

// NewPlayer opens the audio device for cfg. Because the device can only be
// opened once, every player in a process must use the same format.
func NewPlayer(cfg Config) (*Player, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	otoOnce.Do(func() {
		ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
			SampleRate:   cfg.SampleRate,
			ChannelCount: cfg.Channels,
			Format:       oto.FormatSignedInt16LE,
		})
		if err != nil {
			otoErr = fmt.Errorf("failed to create oto context: %w", err)
			return
		}
		<-ready
		otoContext = ctx
		otoFormat = cfg
	})
	if otoErr != nil {
		return nil, otoErr
	}
	if otoFormat != cfg {
		return nil, fmt.Errorf("audio device already opened at %d Hz, %d channels", otoFormat.SampleRate, otoFormat.Channels)
	}

	return &Player{config: cfg, context: otoContext}, nil
}

// Config returns the player's stream format.
func (p *Player) Config() Config {
	return p.config
}

// Play blocks until pcm has been played or ctx is cancelled. Cancelling stops
// playback immediately and returns ctx.Err().
func (p *Player) Play(ctx context.Context, pcm []byte) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrPlayerClosed
	}
	p.mu.Unlock()

	if len(pcm) == 0 {
		return nil
	}

	player := p.context.NewPlayer(bytes.NewReader(pcm))
	defer player.Close()

	log.Debug("Playing audio", "bytes", len(pcm), "duration", p.config.Duration(len(pcm)))
	player.Play()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			player.Pause()
			return ctx.Err()
		case <-ticker.C:
			if !player.IsPlaying() {
				return player.Err()
			}
		}
	}
}

// Close marks the player closed. The shared device stays open.
func (p *Player) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}
