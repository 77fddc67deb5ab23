package say

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"testing"

	"github.com/voiceverse/voiceverse/speech"
)

func TestArgs(t *testing.T) {
	tests := []struct {
		name   string
		config Config
		text   string
		want   []string
	}{
		{
			name:   "default voice",
			config: Config{},
			text:   "你好。",
			want:   []string{"-r", "200", "--", "你好。"},
		},
		{
			name:   "voice and rate",
			config: Config{Voice: "Tingting", Rate: 160},
			text:   "再见！",
			want:   []string{"-v", "Tingting", "-r", "160", "--", "再见！"},
		},
		{
			name:   "leading dash",
			config: Config{Rate: 180},
			text:   "-1 度。",
			want:   []string{"-r", "180", "--", "-1 度。"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := New(tt.config).args(tt.text); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("args() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAvailableOffDarwin(t *testing.T) {
	if runtime.GOOS == "darwin" {
		t.Skip("say may be installed")
	}
	if New(Config{}).Available() {
		t.Error("say should be unavailable off macOS")
	}
}

func fakeSay(t *testing.T, script string) *Engine {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("needs a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "say")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script+"\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	e := New(Config{})
	e.binary = path
	return e
}

func TestSpeak(t *testing.T) {
	e := fakeSay(t, "exit 0")
	if err := e.Speak(context.Background(), "一。"); err != nil {
		t.Errorf("Speak() error = %v", err)
	}
}

func TestSpeakFailure(t *testing.T) {
	e := fakeSay(t, "exit 3")
	err := e.Speak(context.Background(), "一。")
	if !errors.Is(err, speech.ErrSynthesisFailed) {
		t.Errorf("Speak() error = %v, want ErrSynthesisFailed", err)
	}
}

func TestSpeakCanceled(t *testing.T) {
	e := fakeSay(t, "sleep 5")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := e.Speak(ctx, "一。"); !errors.Is(err, context.Canceled) {
		t.Errorf("Speak() error = %v, want context.Canceled", err)
	}
}

func TestSpeakAfterClose(t *testing.T) {
	e := New(Config{})
	e.Close()
	if err := e.Speak(context.Background(), "一。"); !errors.Is(err, speech.ErrEngineClosed) {
		t.Errorf("Speak() error = %v, want ErrEngineClosed", err)
	}
}
