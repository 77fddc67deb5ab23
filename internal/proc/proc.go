// Package proc runs the external programs that speech engines rely on.
package proc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// ErrTimeout is returned when a command runs longer than its timeout.
var ErrTimeout = errors.New("command timed out")

// Config controls how a command is run.
type Config struct {
	// Maximum run time, 0 for none
	Timeout time.Duration

	// Time to wait after an interrupt before the process is killed
	GracePeriod time.Duration
}

// DefaultConfig returns the default settings: no timeout and a short grace
// period.
func DefaultConfig() Config {
	return Config{
		GracePeriod: 500 * time.Millisecond,
	}
}

// Run executes name with args, feeding input on stdin when there is any,
// and returns stdout. When ctx is cancelled or the timeout expires the
// process is interrupted, then killed after the grace period.
func Run(ctx context.Context, cfg Config, input []byte, name string, args ...string) ([]byte, error) {
	runCtx := ctx
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, name, args...)
	cmd.Cancel = func() error {
		return cmd.Process.Signal(os.Interrupt)
	}
	cmd.WaitDelay = cfg.GracePeriod

	// stdin is attached before start
	if len(input) > 0 {
		cmd.Stdin = bytes.NewReader(input)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	log.Debug("Subprocess finished", "command", name, "duration", time.Since(start), "error", err)

	switch {
	case err == nil:
		return stdout.Bytes(), nil
	case ctx.Err() != nil:
		return nil, ctx.Err()
	case runCtx.Err() != nil:
		return nil, fmt.Errorf("%s: %w after %v", name, ErrTimeout, cfg.Timeout)
	}

	if msg := strings.TrimSpace(stderr.String()); msg != "" {
		return nil, fmt.Errorf("%s: %w: %s", name, err, msg)
	}
	return nil, fmt.Errorf("%s: %w", name, err)
}
