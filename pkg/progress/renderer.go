package progress

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"
)

type renderer interface {
	render(status Status, message string, stats Statistics, ph phase) string
}

// lineBuilder tracks the display width of a line separately from its bytes,
// so colored segments do not count against the terminal width.
type lineBuilder struct {
	sb      strings.Builder
	width   int
	noColor bool
}

func (b *lineBuilder) plain(s string) {
	b.sb.WriteString(s)
	b.width += runewidth.StringWidth(s)
}

func (b *lineBuilder) colored(attr color.Attribute, s string) {
	b.width += runewidth.StringWidth(s)
	if b.noColor || s == "" {
		b.sb.WriteString(s)
		return
	}
	c := color.New(attr)
	c.EnableColor()
	b.sb.WriteString(c.Sprint(s))
}

// item appends s truncated to what is left of limit.
func (b *lineBuilder) item(s string, limit int) {
	room := limit - b.width - 1
	if s == "" || room < 4 {
		return
	}
	b.plain(" " + runewidth.Truncate(s, room, "..."))
}

func (b *lineBuilder) String() string { return b.sb.String() }

func messageColor(ph phase) color.Attribute {
	switch ph {
	case phaseDone:
		return color.FgGreen
	case phaseFailed:
		return color.FgRed
	default:
		return color.FgCyan
	}
}

func counts(status Status) string {
	return fmt.Sprintf("%s/%s files", humanize.Comma(int64(status.Processed)), humanize.Comma(int64(status.Total)))
}

func statsText(status Status, stats Statistics) string {
	parts := []string{
		humanize.Comma(status.Lines) + " lines",
		fmt.Sprintf("%.1f files/s", stats.FilesPerSecond),
	}
	if stats.RemainingTime > 0 {
		parts = append(parts, "ETA "+formatDuration(stats.RemainingTime))
	}
	if status.Errors > 0 {
		parts = append(parts, humanize.Comma(int64(status.Errors))+" errors")
	}
	return strings.Join(parts, " | ")
}

type barRenderer struct {
	width     int
	noColor   bool
	showStats bool
}

func (r *barRenderer) render(status Status, message string, stats Statistics, ph phase) string {
	b := &lineBuilder{noColor: r.noColor}

	if message != "" {
		b.colored(messageColor(ph), message)
		b.plain(" ")
	}

	tail := fmt.Sprintf(" %3.0f%% %s", stats.ProgressPercentage, counts(status))
	if r.showStats {
		tail += " | " + statsText(status, stats)
	}

	// Reserve space for the brackets and the tail
	barWidth := r.width - b.width - runewidth.StringWidth(tail) - 2
	if barWidth < 10 {
		barWidth = 10
	}
	if barWidth > 40 {
		barWidth = 40
	}

	filled := int(float64(barWidth) * stats.ProgressPercentage / 100)
	if filled > barWidth {
		filled = barWidth
	}

	b.plain("[")
	b.colored(color.FgGreen, strings.Repeat("=", filled))
	if filled < barWidth {
		b.plain(">" + strings.Repeat(" ", barWidth-filled-1))
	}
	b.plain("]")
	b.plain(tail)

	if ph == phaseRunning {
		b.item(status.CurrentItem, r.width)
	}

	return b.String()
}

type spinnerRenderer struct {
	width     int
	noColor   bool
	showStats bool
	frame     int
}

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

func (r *spinnerRenderer) render(status Status, message string, stats Statistics, ph phase) string {
	b := &lineBuilder{noColor: r.noColor}

	switch ph {
	case phaseDone:
		b.colored(color.FgGreen, "✓")
	case phaseFailed:
		b.colored(color.FgRed, "✗")
	default:
		r.frame = (r.frame + 1) % len(spinnerFrames)
		b.colored(color.FgCyan, spinnerFrames[r.frame])
	}

	if message != "" {
		b.plain(" " + message)
	}
	b.plain(fmt.Sprintf(" (%.1f%%, %s)", stats.ProgressPercentage, counts(status)))

	if r.showStats {
		b.plain(" " + statsText(status, stats))
	}
	if ph == phaseRunning {
		b.item(status.CurrentItem, r.width)
	}

	return b.String()
}

type simpleRenderer struct {
	width     int
	noColor   bool
	showStats bool
}

func (r *simpleRenderer) render(status Status, message string, stats Statistics, ph phase) string {
	b := &lineBuilder{noColor: r.noColor}

	if ph == phaseRunning {
		b.plain(message)
	} else {
		b.colored(messageColor(ph), message)
	}
	b.plain(fmt.Sprintf(" (%.0f%%) %s", stats.ProgressPercentage, counts(status)))

	if r.showStats {
		b.plain(" | " + statsText(status, stats))
	}

	return b.String()
}

// Helper functions

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "0s"
	}
	return d.Round(time.Second).String()
}
