package output

import (
	"strconv"
	"strings"

	"github.com/sonemaro/linecounter/pkg/linecount"
	"github.com/sonemaro/linecounter/pkg/worker"
)

// GrandTotal labels the rows of the summary that span every file type.
const GrandTotal = "Grand Total"

var (
	fileColumns    = []string{"Path", "Type", linecount.MetricTotal, linecount.MetricBlank, linecount.MetricCounted, linecount.MetricSource}
	summaryColumns = []string{"File Type", "Counter", "Total"}
)

// summaryRows returns the per-type rows followed by the grand totals.
func summaryRows(summary *linecount.Summary) []linecount.SummaryRow {
	rows := summary.Rows()
	t := summary.Totals()
	return append(rows,
		linecount.SummaryRow{Type: GrandTotal, Metric: linecount.MetricBlank, Total: t.BlankLines},
		linecount.SummaryRow{Type: GrandTotal, Metric: linecount.MetricCounted, Total: t.CountedLines},
		linecount.SummaryRow{Type: GrandTotal, Metric: linecount.MetricSource, Total: t.SourceLines},
		linecount.SummaryRow{Type: GrandTotal, Metric: linecount.MetricTotal, Total: t.TotalLines},
	)
}

func fileRow(rec *linecount.FileRecord) []string {
	return []string{
		rec.Path,
		rec.TypeKey(),
		strconv.Itoa(rec.TotalLines),
		strconv.Itoa(rec.BlankLines),
		strconv.Itoa(rec.CountedLines),
		strconv.Itoa(rec.SourceLines),
	}
}

// formatCSV writes the legacy layout: the files table, a blank line, then the
// summary table. Fields are joined with commas and never quoted.
func (f *formatter) formatCSV(report worker.Report) (string, error) {
	f.log.Debug("Formatting CSV output")

	var sb strings.Builder
	writeRow := func(fields []string) {
		sb.WriteString(strings.Join(fields, ","))
		sb.WriteByte('\n')
	}

	writeRow(fileColumns)
	for _, rec := range report.Files {
		writeRow(fileRow(rec))
	}

	sb.WriteByte('\n')

	writeRow(summaryColumns)
	for _, row := range summaryRows(report.Summary) {
		writeRow([]string{row.Type, row.Metric, strconv.Itoa(row.Total)})
	}

	return sb.String(), nil
}
