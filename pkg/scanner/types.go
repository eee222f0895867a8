package scanner

import (
	"sync/atomic"
	"time"

	"github.com/sonemaro/linecounter/pkg/linecount"
)

// Config contains scanner configuration options
type Config struct {
	// MaxDepth is how many directory levels below a root are entered.
	// 0 collects only the files directly inside each root, -1 is unlimited.
	MaxDepth int

	// IgnorePatterns are doublestar globs matched against both the base name
	// and the slash separated path relative to the root. A trailing slash
	// restricts a pattern to directories.
	IgnorePatterns []string

	// Accept decides whether a regular file becomes part of the result.
	// Nil accepts every file.
	Accept func(*linecount.FileRecord) bool
}

// Result contains the complete scan results
type Result struct {
	// Files are sorted by path and unique.
	Files  []*linecount.FileRecord
	Errors map[string]error
	Stats  ScanStats
}

// ScanStats contains statistics about the scanning operation
type ScanStats struct {
	StartTime    time.Time
	EndTime      time.Time
	Duration     time.Duration
	TotalFiles   int64
	TotalDirs    int64
	TotalSize    int64
	ErrorCount   int
	SkippedFiles int64
}

// Progress represents the current progress of the scanning operation
type Progress struct {
	FilesFound   int64
	DirsScanned  int64
	BytesFound   int64
	CurrentDepth int
	StartTime    time.Time
}

// ScannerStats holds the atomic counters for scanner statistics
type ScannerStats struct {
	filesFound         atomic.Int64
	filesSkipped       atomic.Int64
	directoriesScanned atomic.Int64
	bytesFound         atomic.Int64
	currentDepth       atomic.Int32
}
