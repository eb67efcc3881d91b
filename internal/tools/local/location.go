package local

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/otto-ai/otto/internal/tools"
)

// Location reports the current working directory.
type Location struct {
	// Workspace overrides the process working directory when set.
	Workspace string
}

func (t *Location) Name() string        { return "location" }
func (t *Location) Description() string { return "Report the current working directory" }

func (t *Location) Execute(ctx context.Context, input map[string]any) (*tools.Result, error) {
	start := time.Now()

	dir := t.Workspace
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return tools.NewErrorResult(err), nil
		}
		dir = wd
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return tools.NewErrorResult(err), nil
	}

	return tools.TimedResult(tools.NewSuccessResult("Current working directory: "+abs), start), nil
}
