/*
Package progress draws a single, continuously refreshed status line for a
counting run.

Basic usage:

	p := progress.New(progress.Config{
		Style:     progress.StyleBar,
		ShowStats: true,
	}, log)

	p.Start("Counting")
	p.Update(progress.Status{Processed: 10, Total: 100})
	p.Complete("Done")
	p.Stop()
*/
package progress

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/sonemaro/linecounter/pkg/logger"
	"golang.org/x/term"
)

type phase int

const (
	phaseRunning phase = iota
	phaseDone
	phaseFailed
)

type progress struct {
	config Config
	log    logger.Logger
	writer io.Writer

	// State
	status    Status
	startTime time.Time
	message   string
	phase     phase
	running   bool
	rendered  bool

	// Rendering
	renderer renderer
	width    int

	// Synchronization
	mu       sync.Mutex
	stopChan chan struct{}
	doneChan chan struct{}
}

// New creates a new progress visualization instance
func New(config Config, log logger.Logger) Progress {
	if config.RefreshRate == 0 {
		config.RefreshRate = 100 * time.Millisecond
	}
	if config.Style == "" {
		config.Style = StyleBar
	}

	p := &progress{
		config: config,
		log:    log,
		writer: config.Writer,
	}
	if p.writer == nil {
		p.writer = os.Stderr
	}

	// Auto-detect terminal width if not specified
	if p.config.Width == 0 {
		p.width = p.getTerminalWidth()
	} else {
		p.width = p.config.Width
	}

	p.renderer = p.createRenderer()

	p.log.WithFields(logger.Fields{
		"style":     p.config.Style,
		"width":     p.width,
		"showStats": p.config.ShowStats,
		"noColor":   p.config.NoColor,
		"refresh":   p.config.RefreshRate,
	}).Debug("Created new progress instance")

	return p
}

func (p *progress) Start(message string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return
	}

	p.log.WithFields(logger.Fields{
		"message": message,
	}).Debug("Starting progress")

	p.message = message
	p.startTime = time.Now()
	p.phase = phaseRunning
	p.running = true
	p.stopChan = make(chan struct{})
	p.doneChan = make(chan struct{})

	go p.renderLoop(p.stopChan, p.doneChan)
}

func (p *progress) Update(status Status) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.log.WithFields(logger.Fields{
		"processed": status.Processed,
		"total":     status.Total,
	}).Trace("Updating progress")

	p.status = status
	if p.running {
		p.render()
	}
}

func (p *progress) Complete(message string) {
	p.stopLoop()

	p.mu.Lock()
	defer p.mu.Unlock()

	p.log.WithFields(logger.Fields{
		"message": message,
	}).Debug("Completing progress")

	p.message = message
	p.phase = phaseDone
	if p.status.Processed < p.status.Total {
		p.status.Processed = p.status.Total
	}
	p.status.ETA = 0
	p.render()

	if p.config.HideAfterComplete {
		p.clearLine()
		p.rendered = false
	}
}

func (p *progress) Error(message string) {
	p.stopLoop()

	p.mu.Lock()
	defer p.mu.Unlock()

	p.log.WithFields(logger.Fields{
		"message": message,
	}).Debug("Error in progress")

	p.message = message
	p.phase = phaseFailed
	p.render()
}

// Stop ends the refresh loop and moves the cursor past the last line.
func (p *progress) Stop() {
	p.stopLoop()

	p.mu.Lock()
	defer p.mu.Unlock()

	p.log.Debug("Stopping progress")

	if p.rendered {
		fmt.Fprintln(p.writer)
		p.rendered = false
	}
}

func (p *progress) SetStyle(style Style) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.log.WithFields(logger.Fields{
		"style": style,
	}).Debug("Setting progress style")

	p.config.Style = style
	p.renderer = p.createRenderer()
}

func (p *progress) IsSupportedTerminal() bool {
	if f, ok := p.writer.(*os.File); ok {
		return term.IsTerminal(int(f.Fd()))
	}
	return false
}

// Internal methods

// stopLoop stops the refresh goroutine and waits for it to exit. It must be
// called without p.mu held.
func (p *progress) stopLoop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	close(p.stopChan)
	done := p.doneChan
	p.mu.Unlock()

	<-done
}

func (p *progress) renderLoop(stop <-chan struct{}, done chan<- struct{}) {
	ticker := time.NewTicker(p.config.RefreshRate)
	defer ticker.Stop()
	defer close(done)

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			p.mu.Lock()
			if p.running {
				p.render()
			}
			p.mu.Unlock()
		}
	}
}

func (p *progress) render() {
	line := p.renderer.render(p.status, p.message, p.calculateStats(), p.phase)
	p.clearLine()
	fmt.Fprint(p.writer, line)
	p.rendered = true
}

func (p *progress) clearLine() {
	if p.IsSupportedTerminal() {
		fmt.Fprint(p.writer, "\r\033[K")
	} else {
		fmt.Fprint(p.writer, "\r")
	}
}

func (p *progress) getTerminalWidth() int {
	if f, ok := p.writer.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		if w, _, err := term.GetSize(int(f.Fd())); err == nil && w > 0 {
			return w
		}
	}

	return 80 // Default width
}

func (p *progress) calculateStats() Statistics {
	var stats Statistics

	stats.ElapsedTime = p.status.Elapsed
	if stats.ElapsedTime == 0 && !p.startTime.IsZero() {
		stats.ElapsedTime = time.Since(p.startTime)
	}

	if p.status.Total > 0 {
		stats.ProgressPercentage = float64(p.status.Processed) / float64(p.status.Total) * 100
		if stats.ProgressPercentage > 100 {
			stats.ProgressPercentage = 100
		}
	}

	if secs := stats.ElapsedTime.Seconds(); secs > 0 {
		stats.FilesPerSecond = float64(p.status.Processed) / secs
	}

	stats.RemainingTime = p.status.ETA
	if stats.RemainingTime == 0 && p.status.Processed > 0 && p.status.Processed < p.status.Total {
		remaining := p.status.Total - p.status.Processed
		stats.RemainingTime = time.Duration(float64(stats.ElapsedTime) * float64(remaining) / float64(p.status.Processed))
	}

	return stats
}

func (p *progress) createRenderer() renderer {
	switch p.config.Style {
	case StyleBar:
		return &barRenderer{
			width:     p.width,
			noColor:   p.config.NoColor,
			showStats: p.config.ShowStats,
		}
	case StyleSpinner:
		return &spinnerRenderer{
			width:     p.width,
			noColor:   p.config.NoColor,
			showStats: p.config.ShowStats,
		}
	default:
		return &simpleRenderer{
			width:     p.width,
			noColor:   p.config.NoColor,
			showStats: p.config.ShowStats,
		}
	}
}
