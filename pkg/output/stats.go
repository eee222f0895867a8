package output

import (
	"github.com/sonemaro/linecounter/pkg/logger"
	"github.com/sonemaro/linecounter/pkg/worker"
)

// stats holds statistics about the counting run
type stats struct {
	State     string `json:"state" yaml:"state"`
	Files     int    `json:"totalFiles" yaml:"totalFiles"`
	Processed int    `json:"processedFiles" yaml:"processedFiles"`
	Errors    int    `json:"errorCount" yaml:"errorCount"`
	TotalSize int64  `json:"totalSize" yaml:"totalSize"`
	Elapsed   string `json:"elapsed" yaml:"elapsed"`
}

func (f *formatter) calculateStats(report worker.Report) *stats {
	s := &stats{
		State:     string(report.State),
		Files:     len(report.Files),
		Processed: report.Processed,
		Errors:    len(report.Errors),
		Elapsed:   report.Elapsed.String(),
	}
	for _, rec := range report.Files {
		s.TotalSize += rec.Size
	}

	f.log.WithFields(logger.Fields{
		"files":     s.Files,
		"processed": s.Processed,
		"errors":    s.Errors,
		"size":      s.TotalSize,
	}).Debug("Statistics calculated")

	return s
}
