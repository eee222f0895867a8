/*
Package worker runs a counting job across a fixed number of goroutines.

Workers claim files one at a time from a shared iterator, count them with a
private linecount.LineCounter and buffer the results locally. Every
BatchSize results a worker flushes its buffer to the job's sink and refreshes
the run's progress. When the last worker exits the per-worker summaries are
merged into the run report.

Basic usage:

	pool, err := worker.NewPool(worker.Config{
		Workers:   4,
		BatchSize: 20,
		RateLimit: 0, // unlimited
	}, log)

	err = pool.Start(ctx, worker.Job{
		Files:           records,
		Registry:        registry,
		CountBlankLines: true,
		Charset:         "UTF-8",
	})

	// Cancel may be called at any time; results flushed so far are kept.
	report, err := pool.Wait()
*/
package worker

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sonemaro/linecounter/pkg/filetype"
	"github.com/sonemaro/linecounter/pkg/linecount"
	"github.com/sonemaro/linecounter/pkg/logger"
	"github.com/spf13/afero"
	"golang.org/x/time/rate"
)

// Config holds the configuration for the worker pool
type Config struct {
	// Workers is the number of concurrent workers
	Workers int

	// BatchSize is the number of results buffered per worker before a flush.
	// Zero means DefaultBatchSize.
	BatchSize int

	// RateLimit is the maximum number of files per second (0 for unlimited)
	RateLimit int
}

// Pool defines the interface for a counting pool
type Pool interface {
	// Start launches the workers for job and returns immediately
	Start(context.Context, Job) error

	// Cancel asks the workers to stop after their current file
	Cancel()

	// Wait blocks until the run ends and returns its report
	Wait() (Report, error)

	// Progress returns the snapshot taken at the last flush
	Progress() Progress

	// GetStats returns current statistics about the pool
	GetStats() Stats

	// Status returns the current status of the pool
	Status() Status
}

type fileError struct {
	path string
	msg  string
}

// pool implements the Pool interface
type pool struct {
	config  Config
	log     logger.Logger
	limiter *rate.Limiter

	// mu guards the run lifecycle
	mu        sync.Mutex
	status    Status
	runErr    error
	cancel    context.CancelFunc
	done      chan struct{}
	report    Report
	job       Job
	startTime time.Time
	summaries []*linecount.Summary
	wg        sync.WaitGroup
	cancelled atomic.Bool

	// iterMu guards the shared file iterator
	iterMu sync.Mutex
	next   int

	// resultMu guards everything a flush touches
	resultMu  sync.Mutex
	results   []*linecount.FileRecord
	errors    map[string]string
	processed int
	progress  Progress

	counters      sync.Map // file type name -> []linecount.Pattern
	activeWorkers atomic.Int32
}

// NewPool creates a new counting pool with the given configuration
func NewPool(config Config, log logger.Logger) (Pool, error) {
	if err := validateConfig(config); err != nil {
		return nil, err
	}
	if config.BatchSize == 0 {
		config.BatchSize = DefaultBatchSize
	}

	var limiter *rate.Limiter
	if config.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(config.RateLimit), 1)
	}

	return &pool{
		config:  config,
		log:     log,
		limiter: limiter,
		status:  StatusIdle,
	}, nil
}

// validateConfig checks if the pool configuration is valid
func validateConfig(config Config) error {
	if config.Workers <= 0 {
		return fmt.Errorf("number of workers must be positive")
	}
	if config.BatchSize < 0 {
		return fmt.Errorf("batch size must be non-negative")
	}
	if config.RateLimit < 0 {
		return fmt.Errorf("rate limit must be non-negative")
	}
	return nil
}

// Start launches exactly config.Workers goroutines for job. It returns
// ErrRunActive while a previous run has not finished, and fails the run
// when the charset is unknown.
func (p *pool) Start(ctx context.Context, job Job) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.status == StatusRunning {
		return ErrRunActive
	}

	if job.Fs == nil {
		job.Fs = afero.NewOsFs()
	}
	if job.Total < len(job.Files) {
		job.Total = len(job.Files)
	}

	charset, err := linecount.ResolveCharset(job.Charset)
	if err != nil {
		p.status = StatusFailed
		p.runErr = err
		p.done = nil
		p.log.WithFields(logger.Fields{
			"charset": job.Charset,
			"error":   err,
		}).Error("Failed to start counting run")
		return fmt.Errorf("failed to start counting run: %w", err)
	}

	p.job = job
	p.runErr = nil
	p.report = Report{}
	p.startTime = time.Now()
	p.cancelled.Store(false)
	p.counters.Clear()
	p.activeWorkers.Store(0)

	p.iterMu.Lock()
	p.next = 0
	p.iterMu.Unlock()

	p.resultMu.Lock()
	p.results = make([]*linecount.FileRecord, 0, len(job.Files))
	p.errors = make(map[string]string)
	p.processed = 0
	p.progress = Progress{Total: job.Total}
	p.resultMu.Unlock()

	counters := make([]*linecount.LineCounter, p.config.Workers)
	for i := range counters {
		counters[i], err = linecount.NewCounter(linecount.Options{
			Charset:         charset,
			CountBlankLines: job.CountBlankLines,
		})
		if err != nil {
			p.status = StatusFailed
			p.runErr = err
			p.done = nil
			return fmt.Errorf("failed to create line counter: %w", err)
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.status = StatusRunning
	p.summaries = make([]*linecount.Summary, p.config.Workers)

	p.log.WithFields(logger.Fields{
		"files":      len(job.Files),
		"workers":    p.config.Workers,
		"batchSize":  p.config.BatchSize,
		"charset":    charset,
		"countBlank": job.CountBlankLines,
	}).Info("Starting counting run")

	for i, counter := range counters {
		p.summaries[i] = linecount.NewSummary()
		p.wg.Add(1)
		go p.worker(runCtx, i, counter, p.summaries[i])
	}

	go p.finish(runCtx, p.done)

	return nil
}

// Cancel asks every worker to stop after the file it is counting.
// Results flushed before and during cancellation are kept.
func (p *pool) Cancel() {
	p.cancelled.Store(true)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		p.cancel()
	}
}

// Wait blocks until the run ends and returns its report.
func (p *pool) Wait() (Report, error) {
	p.mu.Lock()
	done, status, runErr := p.done, p.status, p.runErr
	p.mu.Unlock()

	if done == nil {
		if status == StatusFailed {
			return Report{State: StatusFailed}, runErr
		}
		return Report{}, ErrNotStarted
	}

	<-done

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.report, p.runErr
}

// Progress returns the snapshot taken at the last flush.
func (p *pool) Progress() Progress {
	p.resultMu.Lock()
	defer p.resultMu.Unlock()
	return p.progress
}

func (p *pool) GetStats() Stats {
	p.mu.Lock()
	status, started, total := p.status, p.startTime, len(p.job.Files)
	p.mu.Unlock()

	p.iterMu.Lock()
	claimed := p.next
	p.iterMu.Unlock()

	p.resultMu.Lock()
	processed, failed := p.processed, len(p.errors)
	p.resultMu.Unlock()

	var uptime time.Duration
	if !started.IsZero() {
		uptime = time.Since(started)
	}

	return Stats{
		ActiveWorkers:  int(p.activeWorkers.Load()),
		QueuedFiles:    total - claimed,
		ProcessedFiles: processed,
		FailedFiles:    failed,
		Status:         status,
		Uptime:         uptime,
	}
}

// Status returns the current state of the pool
func (p *pool) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// claim hands out the next unclaimed file.
func (p *pool) claim() (*linecount.FileRecord, bool) {
	p.iterMu.Lock()
	defer p.iterMu.Unlock()

	if p.next >= len(p.job.Files) {
		return nil, false
	}
	rec := p.job.Files[p.next]
	p.next++
	return rec, true
}

// worker counts claimed files until the input is exhausted or the run is
// cancelled, then flushes whatever it still buffers.
func (p *pool) worker(ctx context.Context, id int, counter *linecount.LineCounter, summary *linecount.Summary) {
	defer p.wg.Done()

	log := p.log.WithFields(logger.Fields{"workerID": id})
	log.Debug("Worker started")

	batch := make([]*linecount.FileRecord, 0, p.config.BatchSize)
	var failed []fileError

	for !p.cancelled.Load() && ctx.Err() == nil {
		if p.limiter != nil {
			if err := p.limiter.Wait(ctx); err != nil {
				break
			}
		}

		rec, ok := p.claim()
		if !ok {
			break
		}

		p.activeWorkers.Add(1)
		err := p.countFile(counter, rec, summary, log)
		p.activeWorkers.Add(-1)

		if err != nil {
			log.WithFields(logger.Fields{
				"path":  rec.Path,
				"error": err,
			}).Warn("Failed to count file")
			failed = append(failed, fileError{path: rec.Path, msg: err.Error()})
		} else {
			batch = append(batch, rec)
		}

		if len(batch)+len(failed) >= p.config.BatchSize {
			p.flush(batch, failed)
			batch = make([]*linecount.FileRecord, 0, p.config.BatchSize)
			failed = nil
		}
	}

	p.flush(batch, failed)
	log.Debug("Worker stopped")
}

// countFile classifies rec and counts it. A panic while counting is turned
// into an error for that file only.
func (p *pool) countFile(counter *linecount.LineCounter, rec *linecount.FileRecord, summary *linecount.Summary, log logger.Logger) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.WithFields(logger.Fields{
				"path":  rec.Path,
				"panic": r,
				"stack": string(debug.Stack()),
			}).Error("Recovered from panic while counting file")
			err = fmt.Errorf("panic while counting: %v", r)
		}
	}()

	ft := p.job.Registry.ClassifyRecord(rec, p.job.UnknownType)
	if ft != nil {
		rec.Type = ft.Name
	}

	log.WithFields(logger.Fields{
		"path": rec.Path,
		"type": rec.Type,
	}).Trace("Counting file")

	return counter.CountFile(p.job.Fs, rec, p.patternsFor(ft), summary)
}

// patternsFor returns the selected counters of ft, computed once per run.
func (p *pool) patternsFor(ft *filetype.FileType) []linecount.Pattern {
	if ft == nil {
		return nil
	}
	if cached, ok := p.counters.Load(ft.Name); ok {
		return cached.([]linecount.Pattern)
	}

	selected := p.job.Registry.SelectedCounters(ft)
	patterns := make([]linecount.Pattern, len(selected))
	for i, c := range selected {
		patterns[i] = c
	}

	actual, _ := p.counters.LoadOrStore(ft.Name, patterns)
	return actual.([]linecount.Pattern)
}

// flush publishes a worker's buffered results. The sink runs one flush at a
// time.
func (p *pool) flush(batch []*linecount.FileRecord, failed []fileError) {
	if len(batch) == 0 && len(failed) == 0 {
		return
	}

	p.resultMu.Lock()
	p.results = append(p.results, batch...)
	for _, f := range failed {
		p.errors[f.path] = f.msg
	}
	p.processed += len(batch) + len(failed)
	p.progress = p.computeProgress()
	progress := p.progress

	if p.job.Sink != nil && len(batch) > 0 {
		p.job.Sink.AddResults(batch)
	}
	p.resultMu.Unlock()

	if p.job.OnProgress != nil {
		p.job.OnProgress(progress)
	}
}

// computeProgress must be called with resultMu held.
func (p *pool) computeProgress() Progress {
	elapsed := time.Since(p.startTime)
	prog := Progress{
		Processed: p.processed,
		Total:     p.job.Total,
		Elapsed:   elapsed,
	}

	if remaining := p.job.Total - p.processed; p.processed > 0 && remaining > 0 {
		prog.ETA = time.Duration(float64(elapsed) * float64(remaining) / float64(p.processed))
	}
	return prog
}

// finish waits for the workers, merges their summaries and publishes the
// report.
func (p *pool) finish(ctx context.Context, done chan struct{}) {
	p.wg.Wait()

	merged := linecount.NewSummary()
	for _, s := range p.summaries {
		merged.Merge(s)
	}

	p.iterMu.Lock()
	claimed := p.next
	p.iterMu.Unlock()

	state := StatusCompleted
	if claimed < len(p.job.Files) && (p.cancelled.Load() || ctx.Err() != nil) {
		state = StatusCancelled
	}

	p.resultMu.Lock()
	report := Report{
		State:      state,
		Files:      p.results,
		Summary:    merged,
		Errors:     p.errors,
		Claimed:    claimed,
		Processed:  p.processed,
		ErrorCount: len(p.errors),
		Elapsed:    time.Since(p.startTime),
	}
	p.resultMu.Unlock()

	p.mu.Lock()
	p.report = report
	p.status = state
	p.cancel()
	close(done)
	p.mu.Unlock()

	p.log.WithFields(logger.Fields{
		"state":     state,
		"processed": report.Processed,
		"errors":    report.ErrorCount,
		"elapsed":   report.Elapsed.String(),
	}).Info("Counting run finished")
}
