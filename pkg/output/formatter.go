/*
Package output renders the report of a counting run as an aligned table,
JSON, YAML or the legacy comma separated layout.

Basic usage:

	formatter := output.NewFormatter(output.Config{
		Format:     output.FormatTable,
		WithStats:  true,
		WithColors: true,
	}, log)

	text, err := formatter.Format(report)
*/
package output

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/sonemaro/linecounter/pkg/linecount"
	"github.com/sonemaro/linecounter/pkg/logger"
	"github.com/sonemaro/linecounter/pkg/worker"
)

// Format represents the output format type
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
	FormatCSV   Format = "csv"
)

// ErrUnsupportedFormat is returned for unknown output formats.
var ErrUnsupportedFormat = errors.New("unsupported format")

// Formats lists every supported format.
func Formats() []Format {
	return []Format{FormatTable, FormatJSON, FormatYAML, FormatCSV}
}

// Config holds formatter configuration
type Config struct {
	Format     Format
	WithStats  bool
	WithColors bool
}

// Formatter defines the interface for output formatting
type Formatter interface {
	Format(worker.Report) (string, error)
}

// formatter implements the Formatter interface
type formatter struct {
	config Config
	log    logger.Logger
	now    func() time.Time
}

// NewFormatter creates a new formatter instance
func NewFormatter(config Config, log logger.Logger) Formatter {
	return &formatter{
		config: config,
		log:    log,
		now:    time.Now,
	}
}

// Format renders report according to the configured format
func (f *formatter) Format(report worker.Report) (string, error) {
	f.log.WithFields(logger.Fields{
		"format":     f.config.Format,
		"files":      len(report.Files),
		"withStats":  f.config.WithStats,
		"withColors": f.config.WithColors,
	}).Debug("Starting format operation")

	if report.Summary == nil {
		report.Summary = linecount.NewSummary()
	}
	report.Files = sortedFiles(report.Files)

	switch f.config.Format {
	case FormatTable:
		return f.formatTable(report)
	case FormatJSON:
		return f.formatJSON(report)
	case FormatYAML:
		return f.formatYAML(report)
	case FormatCSV:
		return f.formatCSV(report)
	default:
		f.log.WithFields(logger.Fields{
			"format": f.config.Format,
		}).Error("Unsupported output format")
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, f.config.Format)
	}
}

// sortedFiles returns a path ordered copy of files
func sortedFiles(files []*linecount.FileRecord) []*linecount.FileRecord {
	out := make([]*linecount.FileRecord, len(files))
	copy(out, files)
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// sortedErrors returns the paths of failed files in order
func sortedErrors(errs map[string]string) []string {
	paths := make([]string, 0, len(errs))
	for p := range errs {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}
