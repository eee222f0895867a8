/*
Package scanner turns the paths given on the command line into the file
records a counting run works on.

Directories are walked recursively up to a maximum depth. Entries matching an
ignore pattern are skipped, as are version control directories. Explicitly
named files are always collected.

Basic usage:

	config := scanner.Config{
		MaxDepth:       -1,
		IgnorePatterns: []string{"node_modules/", "*.min.js"},
	}

	s, err := scanner.NewScanner(config, fs, log)
	result, err := s.Collect(ctx, []string{"/path/to/project"})
*/
package scanner

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/sonemaro/linecounter/pkg/linecount"
	"github.com/sonemaro/linecounter/pkg/logger"
	"github.com/spf13/afero"
)

// DefaultIgnorePatterns are always applied in addition to the configured ones.
var DefaultIgnorePatterns = []string{".git/", ".svn/", ".hg/", ".bzr/", "CVS/"}

// Scanner defines the interface for input collection
type Scanner interface {
	// Collect gathers the files under roots
	Collect(ctx context.Context, roots []string) (Result, error)

	// Progress returns the current scanning progress
	Progress() Progress
}

type ignorePattern struct {
	glob    string
	dirOnly bool
}

// scanner implements the Scanner interface
type scanner struct {
	config    Config
	fs        afero.Fs
	log       logger.Logger
	ignore    []ignorePattern
	stats     *ScannerStats
	startTime time.Time
}

// NewScanner creates a scanner reading from fs. It fails on ignore patterns
// that are not valid globs.
func NewScanner(config Config, fs afero.Fs, log logger.Logger) (Scanner, error) {
	s := &scanner{
		config: config,
		fs:     fs,
		log:    log,
		stats:  NewScannerStats(),
	}

	patterns := append(append([]string(nil), DefaultIgnorePatterns...), config.IgnorePatterns...)
	for _, p := range patterns {
		p = filepath.ToSlash(strings.TrimSpace(p))
		if p == "" {
			continue
		}

		ip := ignorePattern{glob: strings.TrimSuffix(p, "/"), dirOnly: strings.HasSuffix(p, "/")}
		if ip.glob == "" || !doublestar.ValidatePattern(ip.glob) {
			return nil, &PatternError{Pattern: p}
		}
		s.ignore = append(s.ignore, ip)
	}

	return s, nil
}

// Collect walks every root and returns the accepted regular files sorted by
// path. Unreadable paths are reported in Result.Errors; the error return is
// reserved for cancellation and for the case where no root could be read.
func (s *scanner) Collect(ctx context.Context, roots []string) (Result, error) {
	s.startTime = time.Now()
	s.stats.reset()

	s.log.WithFields(logger.Fields{
		"roots":    roots,
		"maxDepth": s.config.MaxDepth,
		"ignore":   len(s.ignore),
	}).Info("Starting scan operation")

	result := Result{
		Errors: make(map[string]error),
		Stats: ScanStats{
			StartTime: s.startTime,
		},
	}
	seen := make(map[string]bool)

	failed := 0
	for _, root := range roots {
		if err := ctx.Err(); err != nil {
			return s.finish(result), err
		}

		root = filepath.Clean(root)
		info, err := s.fs.Stat(root)
		if err != nil {
			s.log.WithFields(logger.Fields{
				"error": err,
				"path":  root,
			}).Warn("Failed to stat input path")
			result.Errors[root] = err
			failed++
			continue
		}

		if !info.IsDir() {
			s.addFile(root, info, &result, seen)
			continue
		}

		if err := s.walk(ctx, root, root, 0, &result, seen); err != nil {
			s.log.WithFields(logger.Fields{
				"error": err,
				"path":  root,
			}).Warn("Scan interrupted")
			return s.finish(result), err
		}
	}

	result = s.finish(result)

	if len(roots) > 0 && failed == len(roots) {
		return result, ErrNoInput
	}
	return result, nil
}

// finish sorts the files and fills in the final statistics
func (s *scanner) finish(result Result) Result {
	sort.Slice(result.Files, func(i, j int) bool {
		return result.Files[i].Path < result.Files[j].Path
	})

	result.Stats.EndTime = time.Now()
	result.Stats.Duration = result.Stats.EndTime.Sub(result.Stats.StartTime)
	result.Stats.TotalFiles = s.stats.GetFilesFound()
	result.Stats.TotalDirs = s.stats.GetDirectoriesScanned()
	result.Stats.TotalSize = s.stats.GetBytesFound()
	result.Stats.SkippedFiles = s.stats.GetFilesSkipped()
	result.Stats.ErrorCount = len(result.Errors)

	s.log.WithFields(logger.Fields{
		"duration":     result.Stats.Duration,
		"totalFiles":   result.Stats.TotalFiles,
		"totalDirs":    result.Stats.TotalDirs,
		"totalSize":    result.Stats.TotalSize,
		"errorCount":   result.Stats.ErrorCount,
		"skippedFiles": result.Stats.SkippedFiles,
	}).Info("Scan operation completed")

	return result
}

// walk collects the entries of dir, which sits depth levels below root
func (s *scanner) walk(ctx context.Context, root, dir string, depth int, result *Result, seen map[string]bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.stats.SetCurrentDepth(int32(depth))
	s.stats.AddDirectoriesScanned(1)

	s.log.WithFields(logger.Fields{
		"path":  dir,
		"depth": depth,
	}).Debug("Scanning directory")

	entries, err := afero.ReadDir(s.fs, dir)
	if err != nil {
		s.log.WithFields(logger.Fields{
			"error": err,
			"path":  dir,
		}).Warn("Failed to read directory")
		result.Errors[dir] = err
		return nil
	}

	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		rel, err := filepath.Rel(root, path)
		if err != nil {
			rel = entry.Name()
		}

		if s.shouldIgnore(filepath.ToSlash(rel), entry.Name(), entry.IsDir()) {
			s.log.WithFields(logger.Fields{
				"path": path,
			}).Debug("Ignoring path")
			s.stats.AddFilesSkipped(1)
			continue
		}

		if entry.IsDir() {
			if s.config.MaxDepth >= 0 && depth >= s.config.MaxDepth {
				s.log.WithFields(logger.Fields{
					"path":  path,
					"depth": depth + 1,
				}).Debug("Max depth reached")
				continue
			}
			if err := s.walk(ctx, root, path, depth+1, result, seen); err != nil {
				return err
			}
			continue
		}

		if !entry.Mode().IsRegular() {
			s.log.WithFields(logger.Fields{
				"path": path,
				"mode": entry.Mode().String(),
			}).Debug("Skipping non-regular file")
			s.stats.AddFilesSkipped(1)
			continue
		}

		if entry.Mode().Perm()&0444 == 0 {
			s.log.WithFields(logger.Fields{
				"path": path,
				"mode": entry.Mode().String(),
			}).Warn("File not readable")
			result.Errors[path] = &PermissionError{Path: path}
			continue
		}

		s.addFile(path, entry, result, seen)
	}

	return nil
}

func (s *scanner) addFile(path string, info os.FileInfo, result *Result, seen map[string]bool) {
	if seen[path] {
		return
	}
	seen[path] = true

	rec := linecount.NewFileRecord(path, info)
	if s.config.Accept != nil && !s.config.Accept(rec) {
		s.log.WithFields(logger.Fields{
			"path": path,
		}).Trace("File not accepted")
		s.stats.AddFilesSkipped(1)
		return
	}

	result.Files = append(result.Files, rec)
	s.stats.AddFilesFound(1)
	s.stats.AddBytesFound(rec.Size)
}

// shouldIgnore reports whether any ignore pattern matches the base name or
// the path relative to the root
func (s *scanner) shouldIgnore(rel, base string, isDir bool) bool {
	for _, p := range s.ignore {
		if p.dirOnly && !isDir {
			continue
		}

		if ok, _ := doublestar.Match(p.glob, base); ok {
			return true
		}
		if ok, _ := doublestar.Match(p.glob, rel); ok {
			return true
		}
	}
	return false
}

// Progress returns the current scanning progress
func (s *scanner) Progress() Progress {
	return Progress{
		FilesFound:   s.stats.GetFilesFound(),
		DirsScanned:  s.stats.GetDirectoriesScanned(),
		BytesFound:   s.stats.GetBytesFound(),
		CurrentDepth: int(s.stats.GetCurrentDepth()),
		StartTime:    s.startTime,
	}
}
