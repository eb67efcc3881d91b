package local

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/otto-ai/otto/internal/tools"
)

// Shell executes a command with a timeout and a capped output size.
type Shell struct {
	Workspace string
	Timeout   time.Duration
	MaxOutput int
}

func (t *Shell) Name() string        { return "shell" }
func (t *Shell) Description() string { return "Execute a shell command" }

func (t *Shell) Execute(ctx context.Context, input map[string]any) (*tools.Result, error) {
	start := time.Now()

	command, ok := input["command"].(string)
	if !ok || command == "" {
		return tools.NewErrorResult(fmt.Errorf("command parameter required")), nil
	}

	if t.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.Timeout)
		defer cancel()
	}

	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "windows":
		cmd = exec.CommandContext(ctx, "cmd", "/c", command)
	default:
		cmd = exec.CommandContext(ctx, "sh", "-c", command)
	}
	if t.Workspace != "" {
		cmd.Dir = t.Workspace
	}

	output, err := cmd.CombinedOutput()
	text := truncate(strings.TrimRight(string(output), "\n"), t.MaxOutput)

	if ctx.Err() == context.DeadlineExceeded {
		return tools.TimedResult(tools.NewErrorResult(fmt.Errorf("command timed out after %s", t.Timeout)), start), nil
	}
	if err != nil {
		// Exit status and output both matter to the planner.
		msg := err.Error()
		if text != "" {
			msg += ": " + text
		}
		return tools.TimedResult(tools.NewErrorResult(fmt.Errorf("%s", msg)), start), nil
	}

	if text == "" {
		text = "(command produced no output)"
	}
	return tools.TimedResult(tools.NewSuccessResult(text), start), nil
}
