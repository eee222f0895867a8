package app

import (
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/sonemaro/linecounter/pkg/logger"
)

// ExitInterrupted is the exit status after a forced shutdown
const ExitInterrupted = 130

// signalState tracks the state of signal handling
type signalState struct {
	shutdownInitiated atomic.Bool
}

// HandleSignals cancels the active run on the first SIGINT or SIGTERM and
// exits on the second. Shutdown releases the handler.
func (a *App) HandleSignals() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.signals != nil {
		return
	}

	a.log.Debug("Initializing signal handlers")

	a.signals = make(chan os.Signal, 1)
	signal.Notify(a.signals, syscall.SIGINT, syscall.SIGTERM)

	go a.handleSignals(a.signals, &signalState{})
}

// handleSignals processes incoming system signals until sigChan is closed
func (a *App) handleSignals(sigChan <-chan os.Signal, state *signalState) {
	for sig := range sigChan {
		a.log.WithFields(logger.Fields{
			"signal": sig.String(),
		}).Debug("Received system signal")

		if !state.shutdownInitiated.CompareAndSwap(false, true) {
			a.handleForcedShutdown()
			return
		}

		a.log.Warn("Interrupt received, cancelling counting run (interrupt again to force exit)")
		a.Cancel()
	}
}

// handleForcedShutdown performs an immediate shutdown
func (a *App) handleForcedShutdown() {
	a.log.Warn("Forced shutdown initiated")

	a.cancel()
	if a.progress != nil {
		a.progress.Stop()
	}

	a.exit(ExitInterrupted)
}

// stopSignals must be called with a.mu held
func (a *App) stopSignals() {
	if a.signals == nil {
		return
	}
	signal.Stop(a.signals)
	close(a.signals)
	a.signals = nil
}
