package output

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"
	"github.com/sonemaro/linecounter/pkg/worker"
)

// table is a block of aligned text columns
type table struct {
	header  []string
	numeric []bool
	rows    [][]string
}

func (t *table) add(row ...string) {
	t.rows = append(t.rows, row)
}

func (t *table) widths() []int {
	widths := make([]int, len(t.header))
	for i, h := range t.header {
		widths[i] = runewidth.StringWidth(h)
	}
	for _, row := range t.rows {
		for i, cell := range row {
			if w := runewidth.StringWidth(cell); w > widths[i] {
				widths[i] = w
			}
		}
	}
	return widths
}

func (t *table) cell(i int, s string, width int) string {
	if t.numeric[i] {
		return runewidth.FillLeft(s, width)
	}
	return runewidth.FillRight(s, width)
}

func (t *table) render(sb *strings.Builder, withColors bool) {
	widths := t.widths()
	headerColor := color.New(color.FgCyan, color.Bold)

	cells := make([]string, len(t.header))
	for i, h := range t.header {
		cells[i] = t.cell(i, h, widths[i])
		if withColors {
			cells[i] = headerColor.Sprint(cells[i])
		}
	}
	sb.WriteString(strings.TrimRight(strings.Join(cells, "  "), " "))
	sb.WriteByte('\n')

	for i, w := range widths {
		cells[i] = strings.Repeat("-", w)
	}
	sb.WriteString(strings.Join(cells, "  "))
	sb.WriteByte('\n')

	for _, row := range t.rows {
		for i, c := range row {
			cells[i] = t.cell(i, c, widths[i])
		}
		sb.WriteString(strings.TrimRight(strings.Join(cells, "  "), " "))
		sb.WriteByte('\n')
	}
}

func comma(n int) string {
	return humanize.Comma(int64(n))
}

func (f *formatter) formatTable(report worker.Report) (string, error) {
	f.log.Debug("Formatting table output")

	var sb strings.Builder
	title := func(s string) {
		if f.config.WithColors {
			s = color.New(color.Bold).Sprint(s)
		}
		sb.WriteString(s)
		sb.WriteByte('\n')
	}

	files := &table{
		header:  []string{"Path", "Type", "Size", "Total Lines", "Blank Lines", "Counted Lines", "Source Lines"},
		numeric: []bool{false, false, true, true, true, true, true},
	}
	for _, rec := range report.Files {
		files.add(
			rec.Path,
			rec.TypeKey(),
			humanize.Bytes(uint64(rec.Size)),
			comma(rec.TotalLines),
			comma(rec.BlankLines),
			comma(rec.CountedLines),
			comma(rec.SourceLines),
		)
	}

	title("Files")
	files.render(&sb, f.config.WithColors)

	summary := &table{
		header:  summaryColumns,
		numeric: []bool{false, false, true},
	}
	for _, row := range summaryRows(report.Summary) {
		summary.add(row.Type, row.Metric, comma(row.Total))
	}

	sb.WriteByte('\n')
	title("Summary")
	summary.render(&sb, f.config.WithColors)

	if len(report.Errors) > 0 {
		sb.WriteByte('\n')
		title("Errors")
		for _, path := range sortedErrors(report.Errors) {
			line := fmt.Sprintf("  %s: %s", path, report.Errors[path])
			if f.config.WithColors {
				line = color.New(color.FgRed).Sprint(line)
			}
			sb.WriteString(line)
			sb.WriteByte('\n')
		}
	}

	if f.config.WithStats {
		f.log.Debug("Adding statistics to output")
		s := f.calculateStats(report)
		sb.WriteString("\nStatistics:\n")
		sb.WriteString(fmt.Sprintf("  State: %s\n", s.State))
		sb.WriteString(fmt.Sprintf("  Files Counted: %s\n", comma(s.Files)))
		sb.WriteString(fmt.Sprintf("  Files Processed: %s\n", comma(s.Processed)))
		sb.WriteString(fmt.Sprintf("  Errors: %s\n", comma(s.Errors)))
		sb.WriteString(fmt.Sprintf("  Total Size: %s\n", humanize.Bytes(uint64(s.TotalSize))))
		sb.WriteString(fmt.Sprintf("  Elapsed: %s\n", s.Elapsed))
	}

	return sb.String(), nil
}
