/*
Package app provides the application container behind the linecounter
commands. It builds the components from a validated configuration, runs
counting jobs end to end and handles interrupts.

The container wires together:
- the file type registry loaded from the definitions file
- the scanner collecting input files
- the worker pool counting them
- progress reporting on stderr
- output formatting

Usage:

	a, err := app.New(cfg)
	if err != nil {
	    return err
	}
	defer a.Shutdown()

	report, err := a.Count(app.CountOptions{Roots: args})
*/
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/sonemaro/linecounter/internal/config"
	"github.com/sonemaro/linecounter/pkg/filetype"
	"github.com/sonemaro/linecounter/pkg/linecount"
	"github.com/sonemaro/linecounter/pkg/logger"
	"github.com/sonemaro/linecounter/pkg/output"
	"github.com/sonemaro/linecounter/pkg/progress"
	"github.com/sonemaro/linecounter/pkg/scanner"
	"github.com/sonemaro/linecounter/pkg/worker"
	"github.com/spf13/afero"
)

var (
	// ErrCancelled is returned by Count when the run was interrupted. The
	// partial report has been written by then.
	ErrCancelled = errors.New("counting run cancelled")

	// ErrNoInput is returned when neither paths nor a file list were given.
	ErrNoInput = errors.New("no input paths given")
)

// CountOptions defines the options for a counting run
type CountOptions struct {
	// Roots are the files and directories to count
	Roots []string

	// SaveList, when set, receives the selected file paths before counting
	SaveList string

	// WithStats appends run statistics to the output
	WithStats bool
}

// App represents the main application container
type App struct {
	config *config.Config
	log    logger.Logger
	fs     afero.Fs

	out         io.Writer
	progressOut io.Writer

	definitions *filetype.Definitions
	registry    *filetype.Registry
	scanner     scanner.Scanner
	pool        worker.Pool
	progress    progress.Progress

	ctx     context.Context
	cancel  context.CancelFunc
	signals chan os.Signal
	exit    func(int)
	mu      sync.Mutex
}

// Option customises an App
type Option func(*App)

// WithLogger replaces the logger built from the configuration
func WithLogger(log logger.Logger) Option {
	return func(a *App) { a.log = log }
}

// WithFs sets the filesystem inputs, definitions and output files live on
func WithFs(fs afero.Fs) Option {
	return func(a *App) { a.fs = fs }
}

// WithOutput sets where reports go when no output file is configured
func WithOutput(w io.Writer) Option {
	return func(a *App) { a.out = w }
}

// WithProgressOutput sets where the progress line is drawn
func WithProgressOutput(w io.Writer) Option {
	return func(a *App) { a.progressOut = w }
}

// New creates a new application instance
func New(cfg *config.Config, opts ...Option) (*App, error) {
	ctx, cancel := context.WithCancel(context.Background())

	a := &App{
		config:      cfg,
		fs:          afero.NewOsFs(),
		out:         os.Stdout,
		progressOut: os.Stderr,
		ctx:         ctx,
		cancel:      cancel,
		exit:        os.Exit,
	}
	for _, opt := range opts {
		opt(a)
	}

	if a.log == nil {
		a.log = logger.NewLogger(logger.Config{
			Verbosity: cfg.Verbose,
			Encoding:  logger.Encoding(cfg.LogFormat),
		})
	}

	if err := a.initComponents(); err != nil {
		cancel()
		return nil, err
	}

	a.log.WithFields(logger.Fields{
		"workers":   cfg.Workers,
		"charset":   cfg.Charset,
		"fileTypes": a.registry.Len(),
	}).Debug("Application initialized")

	return a, nil
}

// initComponents initializes all application components
func (a *App) initComponents() error {
	a.log.Debug("Initializing application components")

	if err := a.loadDefinitions(); err != nil {
		return err
	}

	if a.config.UnknownType != "" && a.registry.FileTypeByName(a.config.UnknownType) == nil {
		return fmt.Errorf("unknown file type %q for unrecognised files", a.config.UnknownType)
	}

	scannerConfig := scanner.Config{
		MaxDepth:       a.config.MaxDepth,
		IgnorePatterns: a.config.IgnorePatterns,
	}
	if a.config.UnknownType == "" {
		scannerConfig.Accept = a.registry.IsKnownRecord
	}

	s, err := scanner.NewScanner(scannerConfig, a.fs, a.log)
	if err != nil {
		return fmt.Errorf("invalid ignore pattern: %w", err)
	}
	a.scanner = s

	pool, err := worker.NewPool(worker.Config{
		Workers:   a.config.Workers,
		BatchSize: a.config.BatchSize,
		RateLimit: a.config.RateLimit,
	}, a.log)
	if err != nil {
		return fmt.Errorf("failed to create worker pool: %w", err)
	}
	a.pool = pool

	if !a.config.NoProgress {
		a.progress = progress.New(progress.Config{
			Style:     progress.StyleBar,
			ShowStats: true,
			NoColor:   a.config.NoColor,
			Writer:    a.progressOut,
		}, a.log)
		if !a.progress.IsSupportedTerminal() {
			a.progress.SetStyle(progress.StyleSimple)
		}
	}

	a.log.Debug("Components initialized successfully")
	return nil
}

// loadDefinitions reads the configured definitions, or the built-in ones,
// and builds the registry from them
func (a *App) loadDefinitions() error {
	var (
		d   *filetype.Definitions
		err error
	)
	if a.config.Definitions == "" {
		d, err = filetype.DefaultDefinitions()
	} else {
		d, err = filetype.LoadDefinitions(a.fs, a.config.Definitions)
	}
	if err != nil {
		return fmt.Errorf("failed to load file type definitions: %w", err)
	}

	types, err := d.Build()
	if err != nil {
		return fmt.Errorf("invalid file type definitions: %w", err)
	}

	registry, err := filetype.NewRegistry(types...)
	if err != nil {
		return fmt.Errorf("invalid file type definitions: %w", err)
	}

	a.definitions = d
	a.registry = registry
	return nil
}

// Count collects the input files, counts them and writes the report. A
// cancelled run still writes the partial report and returns ErrCancelled.
func (a *App) Count(opts CountOptions) (report worker.Report, err error) {
	defer func() {
		if r := recover(); r != nil {
			a.log.WithFields(logger.Fields{
				"panic": r,
				"stack": string(debug.Stack()),
			}).Error("Recovered from panic")
			err = fmt.Errorf("internal error: %v", r)
		}
	}()

	roots, err := a.inputs(opts.Roots)
	if err != nil {
		return worker.Report{}, err
	}

	a.log.WithFields(logger.Fields{
		"roots":  len(roots),
		"format": a.config.Output,
	}).Info("Starting counting run")

	collected, err := a.scanner.Collect(a.ctx, roots)
	if err != nil {
		if a.ctx.Err() != nil {
			a.failProgress("Cancelled")
			return worker.Report{State: worker.StatusCancelled}, ErrCancelled
		}
		a.failProgress("Collecting files failed")
		return worker.Report{}, fmt.Errorf("failed to collect input files: %w", err)
	}
	for path, scanErr := range collected.Errors {
		a.log.WithFields(logger.Fields{
			"path":  path,
			"error": scanErr,
		}).Warn("Skipping unreadable input")
	}

	if opts.SaveList != "" {
		if err := scanner.WriteFileList(a.fs, opts.SaveList, collected.Files); err != nil {
			a.failProgress("Saving file list failed")
			return worker.Report{}, err
		}
	}

	report, err = a.run(collected.Files)
	if err != nil {
		a.failProgress("Counting failed")
		return report, err
	}

	for path, scanErr := range collected.Errors {
		report.Errors[path] = scanErr.Error()
	}
	report.ErrorCount = len(report.Errors)

	if report.State == worker.StatusCancelled {
		a.failProgress(fmt.Sprintf("Cancelled after %d of %d files", report.Processed, len(collected.Files)))
	} else {
		a.completeProgress(fmt.Sprintf("Counted %d files", len(report.Files)))
	}

	formatter := output.NewFormatter(output.Config{
		Format:     output.Format(a.config.Output),
		WithStats:  opts.WithStats,
		WithColors: !a.config.NoColor && a.config.OutputFile == "",
	}, a.log)

	text, err := formatter.Format(report)
	if err != nil {
		return report, fmt.Errorf("output formatting failed: %w", err)
	}
	if err := a.writeOutput(text, a.config.OutputFile); err != nil {
		return report, fmt.Errorf("failed to write output: %w", err)
	}

	a.log.WithFields(logger.Fields{
		"state":    report.State,
		"files":    len(report.Files),
		"errors":   report.ErrorCount,
		"lines":    report.Summary.Totals().TotalLines,
		"elapsed":  report.Elapsed,
		"outputTo": a.config.OutputFile,
	}).Info("Counting run completed")

	if report.State == worker.StatusCancelled {
		return report, ErrCancelled
	}
	return report, nil
}

// inputs merges the command line roots with the configured file list
func (a *App) inputs(roots []string) ([]string, error) {
	all := append([]string(nil), roots...)
	if a.config.FilesFrom != "" {
		listed, err := scanner.ReadFileList(a.fs, a.config.FilesFrom)
		if err != nil {
			return nil, err
		}
		all = append(all, listed...)
	}
	if len(all) == 0 {
		return nil, ErrNoInput
	}
	return all, nil
}

// run counts files on the pool, feeding the progress display
func (a *App) run(files []*linecount.FileRecord) (worker.Report, error) {
	var (
		lines   atomic.Int64
		current atomic.Value
	)
	current.Store("")

	job := worker.Job{
		Files:           files,
		Registry:        a.registry,
		CountBlankLines: a.config.CountBlankLines,
		Charset:         a.config.Charset,
		UnknownType:     a.config.UnknownType,
		Fs:              a.fs,
		Sink: worker.SinkFunc(func(batch []*linecount.FileRecord) {
			for _, rec := range batch {
				lines.Add(int64(rec.TotalLines))
			}
			current.Store(batch[len(batch)-1].Path)
		}),
		OnProgress: func(p worker.Progress) {
			if a.progress == nil {
				return
			}
			a.progress.Update(progress.Status{
				Processed:   p.Processed,
				Total:       p.Total,
				Errors:      a.pool.GetStats().FailedFiles,
				Lines:       lines.Load(),
				CurrentItem: current.Load().(string),
				Elapsed:     p.Elapsed,
				ETA:         p.ETA,
			})
		},
	}

	a.startProgress("Counting lines")
	if err := a.pool.Start(a.ctx, job); err != nil {
		return worker.Report{State: worker.StatusFailed}, fmt.Errorf("failed to start counting: %w", err)
	}
	return a.pool.Wait()
}

// Cancel stops the active run. Results gathered so far are kept.
func (a *App) Cancel() {
	a.pool.Cancel()
	a.cancel()
}

// ListTypes writes the known file types with their patterns and counters
func (a *App) ListTypes() error {
	text := output.TypesTable(a.registry.Types(), !a.config.NoColor)
	_, err := io.WriteString(a.out, text)
	return err
}

// ExportDefinitions writes the active definitions to path, or to the output
// writer when path is empty. Inline expands shared counters into every file
// type that references them.
func (a *App) ExportDefinitions(path string, format filetype.Format, inline bool) error {
	d := a.definitions
	if inline {
		d = filetype.DefinitionsFrom(a.registry.Types()...)
	}

	if path != "" {
		if err := a.ensureDir(path); err != nil {
			return err
		}
		if err := filetype.SaveDefinitions(a.fs, path, d); err != nil {
			return err
		}
		a.log.WithFields(logger.Fields{
			"path":      path,
			"fileTypes": len(d.FileTypes),
		}).Info("Definitions exported")
		return nil
	}

	if format == "" {
		format = filetype.FormatYAML
	}
	data, err := d.Marshal(format)
	if err != nil {
		return err
	}
	_, err = a.out.Write(data)
	return err
}

// Shutdown releases the signal handler, stops progress drawing and cancels
// anything still running
func (a *App) Shutdown() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.stopSignals()
	if a.progress != nil {
		a.progress.Stop()
	}
	a.cancel()
	a.log.Debug("Shutdown complete")
}

// writeOutput writes the formatted output to the specified destination
func (a *App) writeOutput(content string, outputPath string) error {
	a.log.WithFields(logger.Fields{
		"path": outputPath,
	}).Debug("Writing output")

	if outputPath == "" {
		_, err := io.WriteString(a.out, content)
		if err != nil {
			a.log.WithFields(logger.Fields{
				"error": err,
			}).Error("Failed to write to stdout")
		}
		return err
	}

	if err := a.ensureDir(outputPath); err != nil {
		return err
	}
	if err := afero.WriteFile(a.fs, outputPath, []byte(content), 0644); err != nil {
		a.log.WithFields(logger.Fields{
			"error": err,
			"path":  outputPath,
		}).Error("Failed to write output file")
		return fmt.Errorf("failed to write output file: %w", err)
	}

	a.log.WithFields(logger.Fields{
		"path": outputPath,
	}).Info("Output written successfully")
	return nil
}

// ensureDir creates the parent directory of path
func (a *App) ensureDir(path string) error {
	dir := filepath.Dir(path)
	if err := a.fs.MkdirAll(dir, 0755); err != nil {
		a.log.WithFields(logger.Fields{
			"error": err,
			"path":  dir,
		}).Error("Failed to create output directory")
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	return nil
}

func (a *App) startProgress(msg string) {
	if a.progress != nil {
		a.progress.Start(msg)
	}
}

func (a *App) completeProgress(msg string) {
	if a.progress != nil {
		a.progress.Complete(msg)
		a.progress.Stop()
	}
}

func (a *App) failProgress(msg string) {
	if a.progress != nil {
		a.progress.Error(msg)
		a.progress.Stop()
	}
}
