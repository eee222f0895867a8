/*
Package linecount holds the per-file line counting algorithm and the data it
produces: file records, their four line metrics and the per-type summary that
workers accumulate while a run is in progress.

Basic usage:

	counter, err := linecount.NewCounter(linecount.Options{
		Charset:         "UTF-8",
		CountBlankLines: true,
	})

	summary := linecount.NewSummary()
	err = counter.Count(rec, data, patterns, summary)
*/
package linecount

import (
	"io/fs"
	"path/filepath"
	"strings"
	"time"
)

// FileRecord describes one input file and, once processed, its line counts.
// A record is identified by its path.
type FileRecord struct {
	Path      string    `json:"path" yaml:"path"`
	Name      string    `json:"name" yaml:"name"`
	Extension string    `json:"extension,omitempty" yaml:"extension,omitempty"`
	Size      int64     `json:"size" yaml:"size"`
	ModTime   time.Time `json:"modTime" yaml:"modTime"`

	// Type is the name of the file type the record was classified as.
	// Empty until the record is processed, or when it is unclassified.
	Type string `json:"type,omitempty" yaml:"type,omitempty"`

	TotalLines   int `json:"totalLines" yaml:"totalLines"`
	BlankLines   int `json:"blankLines" yaml:"blankLines"`
	CountedLines int `json:"countedLines" yaml:"countedLines"`
	SourceLines  int `json:"sourceLines" yaml:"sourceLines"`
}

// NewFileRecord builds a record from filesystem metadata.
func NewFileRecord(path string, info fs.FileInfo) *FileRecord {
	rec := &FileRecord{
		Path:      path,
		Name:      filepath.Base(path),
		Extension: Extension(filepath.Base(path)),
	}
	if info != nil {
		rec.Size = info.Size()
		rec.ModTime = info.ModTime()
	}
	return rec
}

// Extension returns the lowercased text after the last dot of name. It is
// empty when name has no dot or ends with one.
func Extension(name string) string {
	dot := strings.LastIndexByte(name, '.')
	if dot < 0 || dot == len(name)-1 {
		return ""
	}
	return strings.ToLower(name[dot+1:])
}

// TypeKey is the key a record is cached and summarised under: its extension,
// or its lowercased name when it has none.
func (r *FileRecord) TypeKey() string {
	if r.Extension != "" {
		return r.Extension
	}
	return strings.ToLower(r.Name)
}

// Equal reports whether both records describe the same path.
func (r *FileRecord) Equal(other *FileRecord) bool {
	if r == nil || other == nil {
		return r == other
	}
	return r.Path == other.Path
}

func (r *FileRecord) resetCounts() {
	r.TotalLines = 0
	r.BlankLines = 0
	r.CountedLines = 0
	r.SourceLines = 0
}
