package scanner

import (
	"errors"
	"fmt"
)

// ErrNoInput is returned when none of the requested roots could be read.
var ErrNoInput = errors.New("no readable input paths")

// PermissionError represents a permission-related error during scanning
type PermissionError struct {
	Path string
	Err  error
}

func (e *PermissionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("permission denied: %s", e.Path)
	}
	return fmt.Sprintf("permission denied: %s: %v", e.Path, e.Err)
}

func (e *PermissionError) Unwrap() error { return e.Err }

// PatternError reports an ignore pattern doublestar cannot parse
type PatternError struct {
	Pattern string
}

func (e *PatternError) Error() string {
	return fmt.Sprintf("invalid ignore pattern %q", e.Pattern)
}
