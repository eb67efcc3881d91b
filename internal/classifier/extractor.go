package classifier

import (
	"regexp"
	"strings"
)

// extractVariables pulls tool arguments out of the request text for
// categories that execute locally. Remote and conversational intents
// carry no variables.
func extractVariables(message string, category Category) map[string]string {
	switch category {
	case CategoryFileSearch:
		return extractSearchVariables(message)
	case CategoryFileRead:
		return extractReadVariables(message)
	case CategoryShellExecution:
		return extractShellVariables(message)
	case CategoryDataAnalysis:
		return extractAnalysisVariables(message)
	}
	return nil
}

var (
	quotedRegex   = regexp.MustCompile(`["']([^"']+)["']`)
	backtickRegex = regexp.MustCompile("`([^`]+)`")

	// Bare extensions like ".py" or "*.go", not the ".go" inside "main.go".
	dotExtRegex = regexp.MustCompile(`(?:^|[\s*(])\.([A-Za-z0-9]{1,8})\b`)
	globRegex   = regexp.MustCompile(`\*[\w.*\-]+`)

	// "python files", "go files" and friends.
	languageFilesRegex = regexp.MustCompile(`(?i)\b(javascript|typescript|golang|python|markdown|shell|text|java|ruby|rust|json|yaml|html|css|csv|go|c)\s+files?\b`)

	filePathRegex = regexp.MustCompile(`\b[\w\-./]*\w\.[A-Za-z0-9]{1,8}\b`)
	csvPathRegex  = regexp.MustCompile(`(?i)\b[\w\-./]+\.csv\b`)

	dirRegex     = regexp.MustCompile(`(?i)\b(?:in|under|inside|within)\s+(?:the\s+)?((?:\.{1,2}/)?[\w\-./]+)`)
	runVerbRegex = regexp.MustCompile(`(?i)\b(?:run|execute|exec|launch)\b\s+(?:the\s+command\s+|the\s+)?(.+)$`)
)

var languageExts = map[string]string{
	"javascript": "js",
	"typescript": "ts",
	"golang":     "go",
	"python":     "py",
	"markdown":   "md",
	"shell":      "sh",
	"text":       "txt",
	"java":       "java",
	"ruby":       "rb",
	"rust":       "rs",
	"json":       "json",
	"yaml":       "yaml",
	"html":       "html",
	"css":        "css",
	"csv":        "csv",
	"go":         "go",
	"c":          "c",
}

// Words dirRegex captures that are not paths.
var notPathWords = map[string]bool{
	"current": true, "working": true, "this": true, "that": true,
	"my": true, "our": true, "a": true, "here": true,
}

func extractSearchVariables(message string) map[string]string {
	vars := make(map[string]string)
	if ext := extractExtension(message); ext != "" {
		vars["extension"] = ext
	}
	if pat := extractPattern(message); pat != "" {
		vars["pattern"] = pat
	}
	if dir := extractDirectory(message); dir != "" {
		vars["path"] = dir
	}
	return vars
}

func extractReadVariables(message string) map[string]string {
	vars := make(map[string]string)
	if path := extractFilePath(message); path != "" {
		vars["path"] = path
	}
	return vars
}

func extractShellVariables(message string) map[string]string {
	vars := make(map[string]string)
	if cmd := extractCommand(message); cmd != "" {
		vars["command"] = cmd
	}
	return vars
}

func extractAnalysisVariables(message string) map[string]string {
	vars := make(map[string]string)
	if path := csvPathRegex.FindString(message); path != "" {
		vars["path"] = path
	} else if path := extractFilePath(message); path != "" {
		vars["path"] = path
	}
	return vars
}

func extractExtension(message string) string {
	if m := dotExtRegex.FindStringSubmatch(message); len(m) > 1 {
		return strings.ToLower(m[1])
	}
	if m := languageFilesRegex.FindStringSubmatch(message); len(m) > 1 {
		if ext, ok := languageExts[strings.ToLower(m[1])]; ok {
			return ext
		}
	}
	return ""
}

func extractPattern(message string) string {
	if m := quotedRegex.FindStringSubmatch(message); len(m) > 1 {
		return strings.TrimSpace(m[1])
	}
	if glob := globRegex.FindString(message); glob != "" {
		// "*.py" is already covered by the extension variable.
		if trimmed, ok := strings.CutPrefix(glob, "*."); !ok || strings.ContainsAny(trimmed, "*?") {
			return glob
		}
	}
	return ""
}

func extractDirectory(message string) string {
	if m := dirRegex.FindStringSubmatch(message); len(m) > 1 {
		candidate := m[1]
		if notPathWords[strings.ToLower(candidate)] {
			return ""
		}
		return candidate
	}
	return ""
}

func extractFilePath(message string) string {
	if m := quotedRegex.FindStringSubmatch(message); len(m) > 1 && filePathRegex.MatchString(m[1]) {
		return strings.TrimSpace(m[1])
	}
	return filePathRegex.FindString(message)
}

func extractCommand(message string) string {
	if m := backtickRegex.FindStringSubmatch(message); len(m) > 1 {
		return strings.TrimSpace(m[1])
	}
	if m := quotedRegex.FindStringSubmatch(message); len(m) > 1 {
		return strings.TrimSpace(m[1])
	}
	if m := runVerbRegex.FindStringSubmatch(message); len(m) > 1 {
		return strings.Trim(strings.TrimSpace(m[1]), ".!?")
	}
	return ""
}
