// Package local provides the built-in tools that run inside the process:
// working-directory reporting, bounded file search and read, shell
// execution with a timeout, and CSV analysis. These back the Local
// execution mode, so their outputs are plain text suitable for replies.
package local

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/otto-ai/otto/internal/config"
	"github.com/otto-ai/otto/internal/tools"
)

// Register wires all built-in tools into the registry.
func Register(reg *tools.Registry, cfg config.ToolsConfig) {
	reg.Register(&Location{Workspace: cfg.WorkspaceDir},
		tools.NewSchema("location", "Report the current working directory").
			Build())

	reg.Register(&FileSearch{Workspace: cfg.WorkspaceDir, MaxResults: 100},
		tools.NewSchema("file_search", "Find files by name pattern or extension").
			AddParam("pattern", "string", "Substring or glob matched against file names", false).
			AddParam("extension", "string", "File extension filter, e.g. .py", false).
			AddParam("path", "string", "Directory to search, relative to the workspace", false).
			AddParam("recursive", "boolean", "Search subdirectories (default true)", false).
			Build())

	reg.Register(&FileRead{Workspace: cfg.WorkspaceDir, MaxBytes: cfg.MaxFileBytes},
		tools.NewSchema("file_read", "Read a file's contents").
			AddParam("path", "string", "File path, relative to the workspace", true).
			Build())

	reg.Register(&Shell{Workspace: cfg.WorkspaceDir, Timeout: cfg.ShellTimeout(), MaxOutput: cfg.MaxOutputChars},
		tools.NewSchema("shell", "Execute a shell command").
			AddParam("command", "string", "Command to execute", true).
			Build())

	reg.Register(&AnalyzeCSV{Workspace: cfg.WorkspaceDir, MaxBytes: cfg.MaxFileBytes},
		tools.NewSchema("analyze_csv", "Summarize a CSV file: rows, columns, numeric ranges").
			AddParam("path", "string", "CSV file path, relative to the workspace", true).
			Build())
}

// resolveWithin joins path against the workspace root and rejects
// escapes. An empty path resolves to the root itself.
func resolveWithin(workspace, path string) (string, error) {
	root, err := filepath.Abs(workspace)
	if err != nil {
		return "", err
	}
	if path == "" {
		return root, nil
	}

	target := path
	if !filepath.IsAbs(target) {
		target = filepath.Join(root, target)
	}
	target = filepath.Clean(target)

	rel, err := filepath.Rel(root, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q is outside the workspace", path)
	}
	return target, nil
}

// truncate caps s at max characters, marking the cut.
func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max] + "\n... (output truncated)"
}

// skipDir names directories never descended into during searches.
func skipDir(name string) bool {
	switch name {
	case ".git", "node_modules", "vendor", ".idea":
		return true
	}
	return false
}
