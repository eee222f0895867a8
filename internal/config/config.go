/*
Package config provides configuration management for linecounter. Settings
come from, in increasing order of precedence, built-in defaults, an optional
config file (YAML, TOML or JSON), LINECOUNTER_ environment variables and
command line flags bound to the same viper instance.

Usage:

	cfg, err := config.Load()
	if err != nil {
	    log.Fatal(err)
	}

Environment Variables:

	LINECOUNTER_WORKERS            Number of concurrent workers
	LINECOUNTER_BATCH_SIZE         Results buffered per worker before a flush
	LINECOUNTER_RATE_LIMIT         Files counted per second (0 for unlimited)
	LINECOUNTER_CHARSET            Character set used to decode files
	LINECOUNTER_COUNT_BLANK_LINES  Count blank lines separately (true/false)
	LINECOUNTER_UNKNOWN_TYPE       File type assigned to unrecognised files
	LINECOUNTER_DEFINITIONS        File type definitions file
	LINECOUNTER_MAX_DEPTH          Maximum directory depth
	LINECOUNTER_IGNORE             Comma-separated ignore patterns
	LINECOUNTER_FILES_FROM         File holding the paths to count
	LINECOUNTER_OUTPUT             Output format: table|json|yaml|csv
	LINECOUNTER_OUTPUT_FILE        Output file path
	LINECOUNTER_NO_PROGRESS        Disable progress reporting
	LINECOUNTER_NO_COLOR           Disable colored output
	LINECOUNTER_VERBOSE            Verbosity level (a number or a run of 'v's)
	LINECOUNTER_LOG_FORMAT         Log encoding: json|console

Default Values:

	Workers:          Number of CPU cores
	BatchSize:        20
	Charset:          UTF-8
	CountBlankLines:  true
	MaxDepth:         -1 (unlimited)
	Output:           "table"
	RateLimit:        0 (unlimited)
*/
package config

import (
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"strings"

	"github.com/sonemaro/linecounter/pkg/linecount"
	"github.com/spf13/viper"
	"go.uber.org/multierr"
)

// Config holds all configuration parameters for the application
type Config struct {
	// Workers is the number of concurrent counting workers
	Workers int

	// BatchSize is the number of results a worker buffers before flushing
	BatchSize int

	// RateLimit is the maximum number of files counted per second (0 for unlimited)
	RateLimit int

	// Charset names the encoding file contents are decoded with
	Charset string

	// CountBlankLines reports blank lines separately from source lines
	CountBlankLines bool

	// UnknownType is the file type assigned to unrecognised files. When
	// empty such files are skipped.
	UnknownType string

	// Definitions is the file type definitions file; empty selects the
	// built-in definitions
	Definitions string

	// MaxDepth is the maximum directory depth to scan (-1 for unlimited)
	MaxDepth int

	// IgnorePatterns is a list of patterns to ignore during scanning
	IgnorePatterns []string

	// FilesFrom names a file listing the paths to count, one per line
	FilesFrom string

	// Output specifies the output format
	Output string

	// OutputFile is the path to write the output (empty for stdout)
	OutputFile string

	// NoProgress disables progress reporting
	NoProgress bool

	// NoColor disables colored output
	NoColor bool

	// Verbose sets the verbosity level
	Verbose int

	// LogFormat selects the log encoding
	LogFormat string
}

var validOutputFormats = map[string]bool{
	string(OutputFormatTable): true,
	string(OutputFormatJSON):  true,
	string(OutputFormatYAML):  true,
	string(OutputFormatCSV):   true,
}

var validLogFormats = map[string]bool{
	string(LogFormatJSON):    true,
	string(LogFormatConsole): true,
}

// keys lists every setting read from viper
var keys = []string{
	"workers",
	"batch_size",
	"rate_limit",
	"charset",
	"count_blank_lines",
	"unknown_type",
	"definitions",
	"max_depth",
	"ignore",
	"files_from",
	"output",
	"output_file",
	"no_progress",
	"no_color",
	"verbose",
	"log_format",
}

// NewViper returns a viper instance carrying the defaults and the
// environment bindings. Callers may bind flags to it before calling LoadFrom.
func NewViper() *viper.Viper {
	v := viper.New()

	v.SetDefault("workers", runtime.NumCPU())
	v.SetDefault("batch_size", DefaultBatchSize)
	v.SetDefault("rate_limit", 0)
	v.SetDefault("charset", linecount.DefaultCharset)
	v.SetDefault("count_blank_lines", true)
	v.SetDefault("max_depth", UnlimitedDepth)
	v.SetDefault("output", string(OutputFormatTable))
	v.SetDefault("no_progress", false)
	v.SetDefault("no_color", false)
	v.SetDefault("verbose", 0)
	v.SetDefault("log_format", string(LogFormatJSON))

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	for _, key := range keys {
		_ = v.BindEnv(key)
	}

	return v
}

// Load reads configuration from environment variables and validates it
func Load() (Config, error) {
	return LoadFrom(NewViper(), "")
}

// LoadFrom reads configFile, when given, into v and builds a validated
// Config from everything v knows.
func LoadFrom(v *viper.Viper, configFile string) (Config, error) {
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	}

	verbose, err := parseVerbosity(v.GetString("verbose"))
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Workers:         v.GetInt("workers"),
		BatchSize:       v.GetInt("batch_size"),
		RateLimit:       v.GetInt("rate_limit"),
		Charset:         v.GetString("charset"),
		CountBlankLines: v.GetBool("count_blank_lines"),
		UnknownType:     strings.TrimSpace(v.GetString("unknown_type")),
		Definitions:     v.GetString("definitions"),
		MaxDepth:        v.GetInt("max_depth"),
		IgnorePatterns:  splitPatterns(v.Get("ignore")),
		FilesFrom:       v.GetString("files_from"),
		Output:          strings.ToLower(v.GetString("output")),
		OutputFile:      v.GetString("output_file"),
		NoProgress:      v.GetBool("no_progress"),
		NoColor:         v.GetBool("no_color"),
		Verbose:         verbose,
		LogFormat:       strings.ToLower(v.GetString("log_format")),
	}

	if cfg.Workers == 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = DefaultBatchSize
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// parseVerbosity accepts a count ("2") or a run of v's ("vv")
func parseVerbosity(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	if strings.Trim(s, "v") == "" {
		return len(s), nil
	}
	return 0, fmt.Errorf("invalid verbosity %q: must be a number or a run of 'v'", s)
}

// splitPatterns flattens comma separated entries and drops blanks. Values
// come as a string from the environment, a []string from flags and a
// []interface{} from config files.
func splitPatterns(raw interface{}) []string {
	var values []string
	switch val := raw.(type) {
	case nil:
	case string:
		values = []string{val}
	case []string:
		values = val
	case []interface{}:
		for _, item := range val {
			values = append(values, fmt.Sprint(item))
		}
	default:
		values = []string{fmt.Sprint(val)}
	}

	patterns := make([]string, 0, len(values))
	for _, value := range values {
		for _, p := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				patterns = append(patterns, trimmed)
			}
		}
	}
	return patterns
}

// Validate checks if the configuration is valid
func (c Config) Validate() error {
	var err error

	if c.Workers < 1 {
		err = multierr.Append(err, errors.New("workers count must be positive"))
	}
	if c.BatchSize < 0 {
		err = multierr.Append(err, errors.New("batch size must be non-negative"))
	}
	if c.RateLimit < 0 {
		err = multierr.Append(err, errors.New("rate limit must be non-negative"))
	}
	if c.MaxDepth < UnlimitedDepth {
		err = multierr.Append(err, errors.New("max depth must be -1 (unlimited) or positive"))
	}
	if !validOutputFormats[c.Output] {
		err = multierr.Append(err, fmt.Errorf("invalid output format %q: must be one of [table json yaml csv]", c.Output))
	}
	if c.LogFormat != "" && !validLogFormats[c.LogFormat] {
		err = multierr.Append(err, fmt.Errorf("invalid log format %q: must be one of [json console]", c.LogFormat))
	}
	if _, charsetErr := linecount.ResolveCharset(c.Charset); charsetErr != nil {
		err = multierr.Append(err, fmt.Errorf("invalid charset: %w", charsetErr))
	}

	return err
}

// String returns a string representation of the configuration
func (c Config) String() string {
	return fmt.Sprintf(
		"Config{Workers: %d, BatchSize: %d, RateLimit: %d, Charset: %s, "+
			"CountBlankLines: %v, UnknownType: %q, Definitions: %q, MaxDepth: %d, "+
			"IgnorePatterns: %v, FilesFrom: %q, Output: %s, OutputFile: %q, "+
			"NoProgress: %v, NoColor: %v, Verbose: %d, LogFormat: %s}",
		c.Workers, c.BatchSize, c.RateLimit, c.Charset,
		c.CountBlankLines, c.UnknownType, c.Definitions, c.MaxDepth,
		c.IgnorePatterns, c.FilesFrom, c.Output, c.OutputFile,
		c.NoProgress, c.NoColor, c.Verbose, c.LogFormat,
	)
}
