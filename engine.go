package main

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/charmbracelet/log"
	gap "github.com/muesli/go-app-paths"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"

	"github.com/voiceverse/voiceverse/internal/audio"
	"github.com/voiceverse/voiceverse/internal/cache"
	"github.com/voiceverse/voiceverse/speech"
	"github.com/voiceverse/voiceverse/speech/engines/gtts"
	"github.com/voiceverse/voiceverse/speech/engines/mock"
	"github.com/voiceverse/voiceverse/speech/engines/piper"
	"github.com/voiceverse/voiceverse/speech/engines/say"
)

// piper failures tolerated before switching to say
const maxPiperFailures = 3

var engineNames = []string{"auto", "piper", "gtts", "say", "mock"}

// validateEngineConfig checks the configuration of the selected engine.
func validateEngineConfig(name string) error {
	switch name {
	case "auto", "mock":
	case "say":
		if rate := viper.GetInt("say.rate"); rate < 50 || rate > 700 {
			return fmt.Errorf("say rate must be between 50 and 700 words per minute, got %d", rate)
		}
	case "piper":
		if viper.GetString("piper.model") == "" {
			return errors.New("piper needs a voice model: set piper.model in the config file")
		}
		if speed := viper.GetFloat64("piper.speed"); speed < 0.1 || speed > 3.0 {
			return fmt.Errorf("piper speed must be between 0.1 and 3.0, got %.2f", speed)
		}
		if mb := viper.GetInt("cache.memory_mb"); mb < 1 || mb > 4096 {
			return fmt.Errorf("cache memory_mb must be between 1 and 4096, got %d", mb)
		}
	case "gtts":
		if viper.GetString("gtts.lang") == "" {
			return errors.New("gtts needs a language: set gtts.lang in the config file")
		}
		if speed := viper.GetFloat64("gtts.speed"); speed < 0.5 || speed > 2.0 {
			return fmt.Errorf("gtts speed must be between 0.5 and 2.0, got %.2f", speed)
		}
		if mb := viper.GetInt("cache.memory_mb"); mb < 1 || mb > 4096 {
			return fmt.Errorf("cache memory_mb must be between 1 and 4096, got %d", mb)
		}
	default:
		return fmt.Errorf("unknown engine %q: use one of %v", name, engineNames)
	}
	return nil
}

// newEngine builds the named engine and returns a function releasing it.
// "auto" prefers piper, then say, then the silent mock engine.
func newEngine(name string) (speech.Engine, func() error, error) {
	switch name {
	case "mock":
		return newMockEngine(), func() error { return nil }, nil

	case "say":
		e := newSayEngine()
		if !e.Available() {
			return nil, nil, fmt.Errorf("%w: say only exists on macOS", speech.ErrEngineNotAvailable)
		}
		return e, e.Close, nil

	case "piper":
		e, closer, err := newPiperEngine()
		if err != nil {
			return nil, nil, err
		}
		if !e.Available() {
			_ = closer()
			return nil, nil, fmt.Errorf("%w: piper binary or model not found", speech.ErrEngineNotAvailable)
		}
		return e, closer, nil

	case "gtts":
		e, closer, err := newGTTSEngine()
		if err != nil {
			return nil, nil, err
		}
		if !e.Available() {
			_ = closer()
			return nil, nil, fmt.Errorf("%w: gtts-cli or ffmpeg not found", speech.ErrEngineNotAvailable)
		}
		return e, closer, nil
	}

	sayEngine := newSayEngine()
	if viper.GetString("piper.model") != "" {
		e, closer, err := newPiperEngine()
		if err == nil && e.Available() {
			if sayEngine.Available() {
				log.Info("Using piper with say fallback")
				return speech.NewFallbackEngine(e, sayEngine, maxPiperFailures), closer, nil
			}
			log.Info("Using piper")
			return e, closer, nil
		}
		if err == nil {
			_ = closer()
		}
		log.Warn("piper unavailable", "error", err)
	}
	if sayEngine.Available() {
		log.Info("Using say")
		return sayEngine, sayEngine.Close, nil
	}
	log.Warn("No speech engine available, reading silently")
	return newMockEngine(), func() error { return nil }, nil
}

func newMockEngine() *mock.Engine {
	e := mock.New()
	e.SetDelay(viper.GetDuration("mock.delay"))
	return e
}

func newSayEngine() *say.Engine {
	return say.New(say.Config{
		Voice: viper.GetString("say.voice"),
		Rate:  viper.GetInt("say.rate"),
	})
}

func newPiperEngine() (*piper.Engine, func() error, error) {
	audioCache, player, err := newAudioOutput(viper.GetInt("piper.sample_rate"))
	if err != nil {
		return nil, nil, err
	}

	e, err := piper.New(piper.Config{
		Binary:  viper.GetString("piper.binary"),
		Model:   viper.GetString("piper.model"),
		Speed:   viper.GetFloat64("piper.speed"),
		Timeout: viper.GetDuration("piper.timeout"),
	}, player, audioCache)
	if err != nil {
		_ = audioCache.Close()
		return nil, nil, err
	}

	closer := func() error {
		log.Debug("Audio cache", "stats", audioCache.Summary())
		return errors.Join(e.Close(), audioCache.Close())
	}
	return e, closer, nil
}

func newGTTSEngine() (*gtts.Engine, func() error, error) {
	sampleRate := viper.GetInt("gtts.sample_rate")
	audioCache, player, err := newAudioOutput(sampleRate)
	if err != nil {
		return nil, nil, err
	}

	e, err := gtts.New(gtts.Config{
		Binary:     viper.GetString("gtts.binary"),
		FFmpeg:     viper.GetString("gtts.ffmpeg"),
		Lang:       viper.GetString("gtts.lang"),
		Speed:      viper.GetFloat64("gtts.speed"),
		SampleRate: sampleRate,
		Timeout:    viper.GetDuration("gtts.timeout"),
	}, player, audioCache)
	if err != nil {
		_ = player.Close()
		_ = audioCache.Close()
		return nil, nil, err
	}

	closer := func() error {
		log.Debug("Audio cache", "stats", audioCache.Summary())
		return errors.Join(e.Close(), audioCache.Close())
	}
	return e, closer, nil
}

// newAudioOutput opens the audio cache and a player for mono PCM.
func newAudioOutput(sampleRate int) (*cache.Manager, *audio.Player, error) {
	audioCache, err := newAudioCache()
	if err != nil {
		return nil, nil, err
	}
	player, err := audio.NewPlayer(audio.Config{
		SampleRate: sampleRate,
		Channels:   1,
	})
	if err != nil {
		_ = audioCache.Close()
		return nil, nil, err
	}
	return audioCache, player, nil
}

func newAudioCache() (*cache.Manager, error) {
	dir := viper.GetString("cache.dir")
	if dir == "" {
		cacheDir, err := gap.NewScope(gap.User, "voiceverse").CacheDir()
		if err != nil {
			return nil, fmt.Errorf("unable to find cache directory: %w", err)
		}
		dir = filepath.Join(cacheDir, "audio")
	}
	dir, err := homedir.Expand(dir)
	if err != nil {
		return nil, fmt.Errorf("unable to expand cache directory: %w", err)
	}

	const mb = 1024 * 1024
	return cache.NewManager(cache.Config{
		MemoryCapacity:   int64(viper.GetInt("cache.memory_mb")) * mb,
		DiskCapacity:     int64(viper.GetInt("cache.disk_mb")) * mb,
		DiskPath:         dir,
		CompressionLevel: viper.GetInt("cache.compression_level"),
	})
}
