package dmrgps

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

const DEFAULT_ACTION_TIMEOUT = 30 * time.Second

// ActionRunner carries out a command table entry.
type ActionRunner interface {
	Run(ctx context.Context, action string) error
}

// ShellRunner runs actions as shell command lines.
type ShellRunner struct {
	Timeout time.Duration
	Logger  *log.Logger
}

func (r *ShellRunner) Run(ctx context.Context, action string) error {
	var timeout = r.Timeout
	if timeout <= 0 {
		timeout = DEFAULT_ACTION_TIMEOUT
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var cmd = exec.CommandContext(ctx, "sh", "-c", action)
	var out, err = cmd.CombinedOutput()

	var output = strings.TrimSpace(string(out))

	if err != nil {
		r.Logger.Error("Action failed", "action", action, "output", output, "err", err)
		return fmt.Errorf("%w: %q: %w", ErrCommand, action, err)
	}

	r.Logger.Info("Action done", "action", action, "output", output)

	return nil
}
