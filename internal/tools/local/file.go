package local

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/otto-ai/otto/internal/tools"
)

// FileSearch finds files under the workspace by name pattern or
// extension.
type FileSearch struct {
	Workspace  string
	MaxResults int
}

func (t *FileSearch) Name() string        { return "file_search" }
func (t *FileSearch) Description() string { return "Find files by name pattern or extension" }

func (t *FileSearch) Execute(ctx context.Context, input map[string]any) (*tools.Result, error) {
	start := time.Now()

	pattern, _ := input["pattern"].(string)
	extension, _ := input["extension"].(string)
	if pattern == "" && extension == "" {
		return tools.NewErrorResult(fmt.Errorf("either pattern or extension is required")), nil
	}
	if extension != "" && !strings.HasPrefix(extension, ".") {
		extension = "." + extension
	}

	searchPath, _ := input["path"].(string)
	root, err := resolveWithin(t.Workspace, searchPath)
	if err != nil {
		return tools.NewErrorResult(err), nil
	}

	recursive := true
	if r, ok := input["recursive"].(bool); ok {
		recursive = r
	}

	limit := t.MaxResults
	if limit <= 0 {
		limit = 100
	}

	var matches []string
	truncated := false
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if skipDir(d.Name()) {
				return filepath.SkipDir
			}
			if !recursive && path != root {
				return filepath.SkipDir
			}
			return nil
		}

		name := d.Name()
		if extension != "" && !strings.EqualFold(filepath.Ext(name), extension) {
			return nil
		}
		if pattern != "" && !matchesPattern(name, pattern) {
			return nil
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			rel = path
		}
		matches = append(matches, rel)
		if len(matches) >= limit {
			truncated = true
			return filepath.SkipAll
		}
		return nil
	})
	if err != nil {
		return tools.NewErrorResult(err), nil
	}

	if len(matches) == 0 {
		return tools.TimedResult(tools.NewSuccessResult(fmt.Sprintf("No files found in %s matching the criteria.", root)), start), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d file(s) in %s:\n", len(matches), root)
	for _, m := range matches {
		sb.WriteString("  ")
		sb.WriteString(m)
		sb.WriteString("\n")
	}
	if truncated {
		sb.WriteString("  ... (more matches not shown)\n")
	}

	return tools.TimedResult(tools.NewSuccessResult(strings.TrimRight(sb.String(), "\n")), start), nil
}

// matchesPattern tries the pattern as a glob first, then falls back to
// a case-insensitive substring match.
func matchesPattern(name, pattern string) bool {
	if ok, err := filepath.Match(pattern, name); err == nil && ok {
		return true
	}
	return strings.Contains(strings.ToLower(name), strings.ToLower(pattern))
}

// FileRead reads a file's contents, capped at MaxBytes.
type FileRead struct {
	Workspace string
	MaxBytes  int64
}

func (t *FileRead) Name() string        { return "file_read" }
func (t *FileRead) Description() string { return "Read a file's contents" }

func (t *FileRead) Execute(ctx context.Context, input map[string]any) (*tools.Result, error) {
	start := time.Now()

	path, ok := input["path"].(string)
	if !ok || path == "" {
		return tools.NewErrorResult(fmt.Errorf("path parameter required")), nil
	}

	abs, err := resolveWithin(t.Workspace, path)
	if err != nil {
		return tools.NewErrorResult(err), nil
	}

	info, err := os.Stat(abs)
	if err != nil {
		return tools.NewErrorResult(err), nil
	}
	if info.IsDir() {
		return tools.NewErrorResult(fmt.Errorf("%s is a directory", abs)), nil
	}

	content, err := os.ReadFile(abs)
	if err != nil {
		return tools.NewErrorResult(err), nil
	}

	text := string(content)
	capped := false
	if t.MaxBytes > 0 && int64(len(content)) > t.MaxBytes {
		text = string(content[:t.MaxBytes])
		capped = true
	}

	if capped {
		text += fmt.Sprintf("\n... (file truncated at %d bytes, full size %d)", t.MaxBytes, info.Size())
	}

	return tools.TimedResult(tools.NewSuccessResult(text), start), nil
}
