/*
Package logger provides structured logging for linecounter. It wraps
uber-go/zap behind a small interface so every component can take a Logger and
tests can substitute a recording mock.

Basic Usage:

	log := logger.NewLogger(logger.Config{
	    Verbosity: 0,  // Default level (INFO)
	})

	log.Info("Counting run started")
	log.Debug("Resolved counters") // Only shown with verbosity >= 1
	log.Trace("Claimed file")      // Only shown with verbosity >= 2

Verbosity Levels:

	-1: Warn, Error
	 0: Info, Warn, Error (default)
	 1: Debug + Level 0
	 2: Trace + Level 1

Structured Logging:

	log.WithFields(logger.Fields{
	    "workerID": 2,
	    "path":     "/src/Main.java",
	    "lines":    42,
	}).Debug("File counted")

Output Example (JSON):

	{
	    "level": "debug",
	    "ts": "2024-01-20T15:04:05.000Z",
	    "message": "File counted",
	    "workerID": 2,
	    "path": "/src/Main.java",
	    "lines": 42
	}

Set Config.Encoding to EncodingConsole for tab separated, human readable
lines instead of JSON.

The logger is safe for concurrent use by multiple goroutines.
*/
package logger
