package worker

import (
	"errors"
	"time"

	"github.com/sonemaro/linecounter/pkg/filetype"
	"github.com/sonemaro/linecounter/pkg/linecount"
	"github.com/spf13/afero"
)

// DefaultBatchSize is the number of results a worker buffers before flushing.
const DefaultBatchSize = 20

var (
	// ErrRunActive is returned by Start while a previous run is still going.
	ErrRunActive = errors.New("a counting run is already active")

	// ErrNotStarted is returned by Wait before any run was started.
	ErrNotStarted = errors.New("no counting run was started")
)

// Status represents the lifecycle state of the pool
type Status string

const (
	// StatusIdle indicates no run has been started yet
	StatusIdle Status = "idle"

	// StatusRunning indicates workers are counting files
	StatusRunning Status = "running"

	// StatusCompleted indicates every file was claimed and processed
	StatusCompleted Status = "completed"

	// StatusCancelled indicates the run stopped early; partial results are kept
	StatusCancelled Status = "cancelled"

	// StatusFailed indicates the run could not be started
	StatusFailed Status = "failed"
)

// Job describes one counting run.
type Job struct {
	// Files are claimed by workers in order, each exactly once.
	Files []*linecount.FileRecord

	// Total is the expected number of files for progress reporting.
	// Defaults to len(Files).
	Total int

	// Registry classifies files and supplies their counters.
	Registry *filetype.Registry

	// CountBlankLines enables blank line detection.
	CountBlankLines bool

	// Charset is the IANA name used to decode files. Empty means UTF-8.
	Charset string

	// UnknownType names the file type used for files no pattern matches.
	// Empty leaves them unclassified.
	UnknownType string

	// Fs is where files are read from. Defaults to the OS filesystem.
	Fs afero.Fs

	// Sink receives every flushed batch of successfully counted files.
	Sink ResultSink

	// OnProgress is called after every flush. Calls from different workers
	// may overlap.
	OnProgress func(Progress)
}

// ResultSink receives batches of counted files. Batches are delivered one at
// a time, never concurrently. AddResults must not call back into the pool
// other than through Cancel.
type ResultSink interface {
	AddResults(batch []*linecount.FileRecord)
}

// SinkFunc adapts a function to ResultSink.
type SinkFunc func(batch []*linecount.FileRecord)

// AddResults calls f(batch).
func (f SinkFunc) AddResults(batch []*linecount.FileRecord) { f(batch) }

// Progress is a snapshot taken at the last flush.
type Progress struct {
	Processed int
	Total     int
	Elapsed   time.Duration
	ETA       time.Duration
}

// Report is the outcome of a finished run.
type Report struct {
	// State is StatusCompleted, StatusCancelled or StatusFailed.
	State Status

	// Files holds every successfully counted file, in flush order.
	Files []*linecount.FileRecord

	// Summary is the additive merge of every worker's summary.
	Summary *linecount.Summary

	// Errors maps the path of every failed file to its message.
	Errors map[string]string

	// Claimed is the number of files taken from the input.
	Claimed int

	// Processed counts counted and failed files.
	Processed int

	ErrorCount int
	Elapsed    time.Duration
}

// Stats provides runtime statistics about the pool
type Stats struct {
	// ActiveWorkers is the number of workers currently counting a file
	ActiveWorkers int

	// QueuedFiles is the number of files not yet claimed
	QueuedFiles int

	// ProcessedFiles is the number of files flushed so far
	ProcessedFiles int

	// FailedFiles is the number of files that could not be counted
	FailedFiles int

	// Status is the current state of the pool
	Status Status

	// Uptime is how long the current run has been going
	Uptime time.Duration
}
