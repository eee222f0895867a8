package progress

import (
	"io"
	"time"
)

// Style represents the type of progress visualization
type Style string

const (
	// StyleBar shows a progress bar with percentage
	StyleBar Style = "bar"

	// StyleSpinner shows a spinning indicator
	StyleSpinner Style = "spinner"

	// StyleSimple shows basic text progress
	StyleSimple Style = "simple"
)

// Config holds the configuration for progress visualization
type Config struct {
	// Style defines how progress should be displayed
	Style Style

	// Width is the maximum line width (0 = auto-detect)
	Width int

	// ShowStats appends line totals, speed and ETA
	ShowStats bool

	// NoColor disables colored output
	NoColor bool

	// RefreshRate defines how often the display updates
	RefreshRate time.Duration

	// HideAfterComplete removes the progress line after completion
	HideAfterComplete bool

	// Writer receives the rendered lines. Defaults to os.Stderr.
	Writer io.Writer
}

// Status is a snapshot of a counting run
type Status struct {
	// Processed is the number of files counted or failed so far
	Processed int

	// Total is the number of files in the run
	Total int

	// Errors is the number of files that could not be counted
	Errors int

	// Lines is the running total of lines counted
	Lines int64

	// CurrentItem is shown after the bar when there is room
	CurrentItem string

	// Elapsed and ETA come from the run. A zero ETA is estimated from the
	// processing rate.
	Elapsed time.Duration
	ETA     time.Duration
}

// Statistics is derived from a Status when rendering
type Statistics struct {
	ElapsedTime        time.Duration
	RemainingTime      time.Duration
	ProgressPercentage float64
	FilesPerSecond     float64
}

// Progress defines the interface for progress visualization
type Progress interface {
	// Start begins progress visualization with initial message
	Start(message string)

	// Update updates the progress status
	Update(status Status)

	// Complete marks the run as finished
	Complete(message string)

	// Error marks the run as failed
	Error(message string)

	// Stop stops progress visualization
	Stop()

	// SetStyle changes the progress style during operation
	SetStyle(style Style)

	// IsSupportedTerminal checks if the writer is an interactive terminal
	IsSupportedTerminal() bool
}
