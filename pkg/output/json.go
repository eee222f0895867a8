package output

import (
	"encoding/json"
	"time"

	"github.com/sonemaro/linecounter/pkg/linecount"
	"github.com/sonemaro/linecounter/pkg/logger"
	"github.com/sonemaro/linecounter/pkg/worker"
)

// reportOutput is the document written by the JSON and YAML formats
type reportOutput struct {
	Files      []*linecount.FileRecord `json:"files" yaml:"files"`
	Summary    []linecount.SummaryRow  `json:"summary" yaml:"summary"`
	Totals     linecount.Totals        `json:"totals" yaml:"totals"`
	Errors     map[string]string       `json:"errors,omitempty" yaml:"errors,omitempty"`
	Statistics *stats                  `json:"statistics,omitempty" yaml:"statistics,omitempty"`
	Generated  time.Time               `json:"generated" yaml:"generated"`
}

func (f *formatter) buildOutput(report worker.Report) *reportOutput {
	out := &reportOutput{
		Files:     report.Files,
		Summary:   report.Summary.Rows(),
		Totals:    report.Summary.Totals(),
		Generated: f.now(),
	}
	if out.Files == nil {
		out.Files = []*linecount.FileRecord{}
	}
	if out.Summary == nil {
		out.Summary = []linecount.SummaryRow{}
	}
	if len(report.Errors) > 0 {
		out.Errors = report.Errors
	}

	if f.config.WithStats {
		f.log.Debug("Adding statistics to output")
		out.Statistics = f.calculateStats(report)
	}
	return out
}

func (f *formatter) formatJSON(report worker.Report) (string, error) {
	f.log.Debug("Formatting JSON output")

	bytes, err := json.MarshalIndent(f.buildOutput(report), "", "  ")
	if err != nil {
		f.log.WithFields(logger.Fields{
			"error": err,
		}).Error("Failed to marshal JSON")
		return "", err
	}

	return string(bytes) + "\n", nil
}
