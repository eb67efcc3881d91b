package local

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/otto-ai/otto/internal/tools"
)

// AnalyzeCSV summarizes a CSV file: dimensions, headers, and numeric
// column ranges.
type AnalyzeCSV struct {
	Workspace string
	MaxBytes  int64
}

func (t *AnalyzeCSV) Name() string        { return "analyze_csv" }
func (t *AnalyzeCSV) Description() string { return "Summarize a CSV file" }

func (t *AnalyzeCSV) Execute(ctx context.Context, input map[string]any) (*tools.Result, error) {
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
	if t.MaxBytes > 0 && info.Size() > t.MaxBytes {
		return tools.NewErrorResult(fmt.Errorf("file %s is %d bytes, limit is %d", abs, info.Size(), t.MaxBytes)), nil
	}

	f, err := os.Open(abs)
	if err != nil {
		return tools.NewErrorResult(err), nil
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return tools.NewErrorResult(fmt.Errorf("parse %s: %w", abs, err)), nil
	}
	if len(records) == 0 {
		return tools.TimedResult(tools.NewSuccessResult(fmt.Sprintf("%s is empty.", abs)), start), nil
	}

	header := records[0]
	rows := records[1:]

	var sb strings.Builder
	fmt.Fprintf(&sb, "CSV summary for %s:\n", abs)
	fmt.Fprintf(&sb, "  %d data row(s), %d column(s)\n", len(rows), len(header))
	fmt.Fprintf(&sb, "  Columns: %s\n", strings.Join(header, ", "))

	for col, name := range header {
		stats, ok := columnStats(rows, col)
		if !ok {
			continue
		}
		fmt.Fprintf(&sb, "  %s: numeric, min=%s max=%s mean=%s\n",
			name, formatNumber(stats.min), formatNumber(stats.max), formatNumber(stats.mean))
	}

	return tools.TimedResult(tools.NewSuccessResult(strings.TrimRight(sb.String(), "\n")), start), nil
}

type numericStats struct {
	min, max, mean float64
}

// columnStats computes numeric stats for a column. A column counts as
// numeric when every non-empty cell parses as a float and at least one
// cell is non-empty.
func columnStats(rows [][]string, col int) (numericStats, bool) {
	var stats numericStats
	count := 0
	sum := 0.0

	for _, row := range rows {
		if col >= len(row) {
			continue
		}
		cell := strings.TrimSpace(row[col])
		if cell == "" {
			continue
		}
		v, err := strconv.ParseFloat(strings.ReplaceAll(cell, ",", ""), 64)
		if err != nil {
			return numericStats{}, false
		}
		if count == 0 || v < stats.min {
			stats.min = v
		}
		if count == 0 || v > stats.max {
			stats.max = v
		}
		sum += v
		count++
	}

	if count == 0 {
		return numericStats{}, false
	}
	stats.mean = sum / float64(count)
	return stats, true
}

func formatNumber(v float64) string {
	if v == float64(int64(v)) {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}
