package piper

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/voiceverse/voiceverse/internal/cache"
	"github.com/voiceverse/voiceverse/internal/proc"
	"github.com/voiceverse/voiceverse/speech"
)

type fakePlayer struct {
	mu     sync.Mutex
	played [][]byte
	closed bool
}

func (p *fakePlayer) Play(ctx context.Context, pcm []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.played = append(p.played, pcm)
	return ctx.Err()
}

func (p *fakePlayer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

// fakePiper writes a script that echoes its stdin back as "audio".
func fakePiper(t *testing.T, script string) (binary, model string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("needs a POSIX shell")
	}
	dir := t.TempDir()
	binary = filepath.Join(dir, "piper")
	if err := os.WriteFile(binary, []byte("#!/bin/sh\n"+script+"\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	model = filepath.Join(dir, "voice.onnx")
	if err := os.WriteFile(model, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	return binary, model
}

func TestNewRequiresModel(t *testing.T) {
	if _, err := New(DefaultConfig(), &fakePlayer{}, nil); err == nil {
		t.Error("New() should fail without a model")
	}
}

func TestArgs(t *testing.T) {
	e, err := New(Config{Binary: "piper", Model: "/voices/zh.onnx", Speed: 2}, &fakePlayer{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"--model", "/voices/zh.onnx", "--output-raw", "--length_scale", "0.500"}
	if got := e.args(); !reflect.DeepEqual(got, want) {
		t.Errorf("args() = %q, want %q", got, want)
	}
}

func TestAvailable(t *testing.T) {
	binary, model := fakePiper(t, "cat")

	e, _ := New(Config{Binary: binary, Model: model}, &fakePlayer{}, nil)
	if !e.Available() {
		t.Error("engine with binary and model should be available")
	}

	e, _ = New(Config{Binary: binary, Model: model + ".missing"}, &fakePlayer{}, nil)
	if e.Available() {
		t.Error("engine without model should be unavailable")
	}
}

func TestSpeakPlaysSynthesizedAudio(t *testing.T) {
	binary, model := fakePiper(t, "cat")
	player := &fakePlayer{}
	e, err := New(Config{Binary: binary, Model: model}, player, nil)
	if err != nil {
		t.Fatal(err)
	}

	if err := e.Speak(context.Background(), "你好。"); err != nil {
		t.Fatalf("Speak() error = %v", err)
	}
	if len(player.played) != 1 || string(player.played[0]) != "你好。\n" {
		t.Errorf("played = %q", player.played)
	}
}

func TestSpeakUsesCache(t *testing.T) {
	binary, model := fakePiper(t, "cat")
	counter := filepath.Join(filepath.Dir(binary), "calls")
	os.WriteFile(binary, []byte("#!/bin/sh\necho x >> "+counter+"\ncat\n"), 0o755)

	c, err := cache.NewManager(cache.Config{MemoryCapacity: 1024})
	if err != nil {
		t.Fatal(err)
	}
	player := &fakePlayer{}
	e, _ := New(Config{Binary: binary, Model: model}, player, c)

	for i := 0; i < 3; i++ {
		if err := e.Speak(context.Background(), "一。"); err != nil {
			t.Fatalf("Speak() error = %v", err)
		}
	}

	calls, _ := os.ReadFile(counter)
	if string(calls) != "x\n" {
		t.Errorf("piper ran %q times, want once", calls)
	}
	if len(player.played) != 3 {
		t.Errorf("played %d times, want 3", len(player.played))
	}
}

func TestSpeakFailure(t *testing.T) {
	tests := []struct {
		name   string
		script string
	}{
		{"non-zero exit", "echo 'model not found' >&2; exit 1"},
		{"no output", "cat > /dev/null"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			binary, model := fakePiper(t, tt.script)
			player := &fakePlayer{}
			e, _ := New(Config{Binary: binary, Model: model}, player, nil)

			err := e.Speak(context.Background(), "一。")
			if !errors.Is(err, speech.ErrSynthesisFailed) {
				t.Errorf("Speak() error = %v, want ErrSynthesisFailed", err)
			}
			if len(player.played) != 0 {
				t.Error("nothing should be played on failure")
			}
		})
	}
}

func TestSpeakTimeout(t *testing.T) {
	binary, model := fakePiper(t, "sleep 5")
	player := &fakePlayer{}
	e, _ := New(Config{Binary: binary, Model: model, Timeout: 50 * time.Millisecond}, player, nil)

	err := e.Speak(context.Background(), "一。")
	if !errors.Is(err, speech.ErrSynthesisFailed) || !errors.Is(err, proc.ErrTimeout) {
		t.Errorf("Speak() error = %v, want a synthesis timeout", err)
	}
}

func TestClose(t *testing.T) {
	player := &fakePlayer{}
	e, _ := New(Config{Model: "voice.onnx"}, player, nil)

	if err := e.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !player.closed {
		t.Error("Close should close the player")
	}
	if err := e.Speak(context.Background(), "一。"); !errors.Is(err, speech.ErrEngineClosed) {
		t.Errorf("Speak() after Close error = %v", err)
	}
}

func TestPrefetchFillsCache(t *testing.T) {
	binary, model := fakePiper(t, "cat")
	c, err := cache.NewManager(cache.Config{MemoryCapacity: 1024})
	if err != nil {
		t.Fatal(err)
	}
	e, _ := New(Config{Binary: binary, Model: model}, &fakePlayer{}, c)
	defer e.Close()

	e.Prefetch([]string{"二。", "三。"})

	deadline := time.Now().Add(5 * time.Second)
	for {
		_, ok2 := c.Get(cache.Key("二。", model, 1.0))
		_, ok3 := c.Get(cache.Key("三。", model, 1.0))
		if ok2 && ok3 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("prefetched sentences should be cached")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestPrefetchWithoutCache(t *testing.T) {
	e, _ := New(Config{Model: "voice.onnx"}, &fakePlayer{}, nil)
	// no cache means nothing to prefetch into
	e.Prefetch([]string{"一。"})
	if e.lookahead != nil {
		t.Error("lookahead should be disabled without a cache")
	}
}
