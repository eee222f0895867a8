/*
Package filetype classifies files and owns the counters applied to them.

A FileType has a unique name, a list of case-insensitive file patterns
(extensions such as "java" or exact file names such as "makefile") and an
ordered list of counters. A Registry indexes every pattern of a set of file
types and answers classification lookups during a run.

Basic usage:

	java := filetype.NewFileType("Java", "java")
	java.AddCounter(filetype.MustCounter("Line Comment", `//.*$`, filetype.Flags{}, true))

	registry, err := filetype.NewRegistry(java)
	ft := registry.Classify("Main.java", "java", "")
	counters := registry.SelectedCounters(ft)
*/
package filetype

import (
	"errors"
	"fmt"
	"strings"
)

// ErrDuplicateCounter is returned when a file type already has a counter with
// the same name.
var ErrDuplicateCounter = errors.New("duplicate counter")

// FileType is a named classification owning file patterns and counters.
type FileType struct {
	Name string

	patterns []string
	counters []*Counter
}

// NewFileType creates a file type with the given patterns.
func NewFileType(name string, patterns ...string) *FileType {
	ft := &FileType{Name: name}
	for _, p := range patterns {
		ft.AddPattern(p)
	}
	return ft
}

// AddPattern adds a lowercased pattern. Empty and duplicate patterns are
// ignored and reported as false.
func (ft *FileType) AddPattern(pattern string) bool {
	p := strings.ToLower(strings.TrimSpace(pattern))
	if p == "" || ft.HasPattern(p) {
		return false
	}
	ft.patterns = append(ft.patterns, p)
	return true
}

// HasPattern reports whether the type owns pattern, ignoring case.
func (ft *FileType) HasPattern(pattern string) bool {
	p := strings.ToLower(pattern)
	for _, existing := range ft.patterns {
		if existing == p {
			return true
		}
	}
	return false
}

// Patterns returns a copy of the patterns in definition order.
func (ft *FileType) Patterns() []string {
	return append([]string(nil), ft.patterns...)
}

// AddCounter appends c and makes ft its owner. A counter owned by another
// type is cloned first.
func (ft *FileType) AddCounter(c *Counter) error {
	if c == nil {
		return fmt.Errorf("file type %q: nil counter", ft.Name)
	}
	if ft.Counter(c.Name) != nil {
		return fmt.Errorf("file type %q: %w: %q", ft.Name, ErrDuplicateCounter, c.Name)
	}

	if c.owner != nil && c.owner != ft {
		c = c.Clone()
	}
	c.owner = ft
	ft.counters = append(ft.counters, c)
	return nil
}

// RemoveCounter removes the named counter and reports whether it existed.
func (ft *FileType) RemoveCounter(name string) bool {
	for i, c := range ft.counters {
		if c.Name == name {
			c.owner = nil
			ft.counters = append(ft.counters[:i], ft.counters[i+1:]...)
			return true
		}
	}
	return false
}

// Counter returns the named counter or nil.
func (ft *FileType) Counter(name string) *Counter {
	for _, c := range ft.counters {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// Counters returns the counters in definition order.
func (ft *FileType) Counters() []*Counter {
	return append([]*Counter(nil), ft.counters...)
}

// SelectedCounters returns the selected counters in definition order.
func (ft *FileType) SelectedCounters() []*Counter {
	selected := make([]*Counter, 0, len(ft.counters))
	for _, c := range ft.counters {
		if c.Selected {
			selected = append(selected, c)
		}
	}
	return selected
}

func (ft *FileType) String() string {
	return ft.Name
}
