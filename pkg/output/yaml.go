package output

import (
	"github.com/sonemaro/linecounter/pkg/logger"
	"github.com/sonemaro/linecounter/pkg/worker"
	"gopkg.in/yaml.v3"
)

func (f *formatter) formatYAML(report worker.Report) (string, error) {
	f.log.Debug("Formatting YAML output")

	bytes, err := yaml.Marshal(f.buildOutput(report))
	if err != nil {
		f.log.WithFields(logger.Fields{
			"error": err,
		}).Error("Failed to marshal YAML")
		return "", err
	}

	return string(bytes), nil
}
