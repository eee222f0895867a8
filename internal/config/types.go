package config

// OutputFormat represents the supported output formats
type OutputFormat string

const (
	// OutputFormatTable is the aligned plain text report
	OutputFormatTable OutputFormat = "table"

	// OutputFormatJSON represents the JSON output format
	OutputFormatJSON OutputFormat = "json"

	// OutputFormatYAML represents the YAML output format
	OutputFormatYAML OutputFormat = "yaml"

	// OutputFormatCSV is the comma separated layout of the legacy export
	OutputFormatCSV OutputFormat = "csv"
)

// LogFormat selects the log encoding
type LogFormat string

const (
	LogFormatJSON    LogFormat = "json"
	LogFormatConsole LogFormat = "console"
)

// Constants for configuration limits and defaults
const (
	// EnvPrefix prefixes every environment variable read by Load
	EnvPrefix = "LINECOUNTER"

	// DefaultBatchSize is the number of results a worker buffers before a flush
	DefaultBatchSize = 20

	// UnlimitedDepth represents unlimited directory depth
	UnlimitedDepth = -1
)
