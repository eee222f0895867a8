package filetype

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// ErrEmptyPattern is returned when a counter is given an empty expression.
var ErrEmptyPattern = errors.New("pattern must not be empty")

// Flags are the match options of a counter. Multiline matching is always on.
//
// UnicodeCase and UnixLines are kept for round-tripping definitions: RE2 folds
// case over all of Unicode and only treats '\n' as a line terminator, so both
// are always in effect.
type Flags struct {
	CaseInsensitive bool `json:"case_insensitive,omitempty" yaml:"case_insensitive,omitempty" toml:"case_insensitive,omitempty"`
	UnicodeCase     bool `json:"unicode_case,omitempty" yaml:"unicode_case,omitempty" toml:"unicode_case,omitempty"`
	Literal         bool `json:"literal,omitempty" yaml:"literal,omitempty" toml:"literal,omitempty"`
	Comments        bool `json:"comments,omitempty" yaml:"comments,omitempty" toml:"comments,omitempty"`
	UnixLines       bool `json:"unix_lines,omitempty" yaml:"unix_lines,omitempty" toml:"unix_lines,omitempty"`
	DotAll          bool `json:"dot_all,omitempty" yaml:"dot_all,omitempty" toml:"dot_all,omitempty"`
	CanonEq         bool `json:"canon_eq,omitempty" yaml:"canon_eq,omitempty" toml:"canon_eq,omitempty"`
}

// Counter is a named regular expression whose matches are counted as lines.
// Only selected counters are applied during a run.
type Counter struct {
	Name     string
	Selected bool

	source string
	flags  Flags
	re     *regexp.Regexp
	owner  *FileType
}

// NewCounter compiles pattern with flags. An invalid pattern is rejected with
// a descriptive error.
func NewCounter(name, pattern string, flags Flags, selected bool) (*Counter, error) {
	re, err := compile(pattern, flags)
	if err != nil {
		return nil, fmt.Errorf("counter %q: %w", name, err)
	}

	return &Counter{
		Name:     name,
		Selected: selected,
		source:   pattern,
		flags:    flags,
		re:       re,
	}, nil
}

// MustCounter is like NewCounter but panics on an invalid pattern.
func MustCounter(name, pattern string, flags Flags, selected bool) *Counter {
	c, err := NewCounter(name, pattern, flags, selected)
	if err != nil {
		panic(err)
	}
	return c
}

// SetPattern replaces the expression and flags. On error the previous valid
// pattern stays in place.
func (c *Counter) SetPattern(pattern string, flags Flags) error {
	re, err := compile(pattern, flags)
	if err != nil {
		return fmt.Errorf("counter %q: %w", c.Name, err)
	}

	c.source = pattern
	c.flags = flags
	c.re = re
	return nil
}

// Pattern returns the expression as written.
func (c *Counter) Pattern() string { return c.source }

// Flags returns the match options.
func (c *Counter) Flags() Flags { return c.flags }

// Regexp returns the compiled expression.
func (c *Counter) Regexp() *regexp.Regexp { return c.re }

// Owner returns the file type the counter belongs to, nil if unowned.
func (c *Counter) Owner() *FileType { return c.owner }

// FindAllIndex returns the byte spans of every match in text.
func (c *Counter) FindAllIndex(text string) [][]int {
	return c.re.FindAllStringIndex(text, -1)
}

// NeedsCanonical reports whether text must be NFC-normalised before matching.
func (c *Counter) NeedsCanonical() bool { return c.flags.CanonEq }

// Clone returns an unowned copy sharing the compiled expression.
func (c *Counter) Clone() *Counter {
	return &Counter{
		Name:     c.Name,
		Selected: c.Selected,
		source:   c.source,
		flags:    c.flags,
		re:       c.re,
	}
}

func (c *Counter) String() string {
	return fmt.Sprintf("%s (%s)", c.Name, c.source)
}

func compile(pattern string, flags Flags) (*regexp.Regexp, error) {
	if pattern == "" {
		return nil, ErrEmptyPattern
	}

	expr := pattern
	if flags.CanonEq {
		expr = norm.NFC.String(expr)
	}

	switch {
	case flags.Literal:
		expr = regexp.QuoteMeta(expr)
	case flags.Comments:
		expr = stripComments(expr)
	}

	prefix := "(?m"
	if flags.CaseInsensitive {
		prefix += "i"
	}
	if flags.DotAll {
		prefix += "s"
	}

	re, err := regexp.Compile(prefix + ")" + expr)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}
	return re, nil
}

// stripComments removes unescaped whitespace and '#' comments that sit
// outside character classes.
func stripComments(expr string) string {
	var b strings.Builder
	b.Grow(len(expr))

	inClass := false
	for i := 0; i < len(expr); i++ {
		c := expr[i]
		switch {
		case c == '\\' && i+1 < len(expr):
			b.WriteByte(c)
			b.WriteByte(expr[i+1])
			i++
		case inClass:
			if c == '[' && i+1 < len(expr) && expr[i+1] == ':' {
				end := strings.Index(expr[i:], ":]")
				if end > 0 {
					b.WriteString(expr[i : i+end+2])
					i += end + 1
					continue
				}
			}
			if c == ']' {
				inClass = false
			}
			b.WriteByte(c)
		case c == '[':
			inClass = true
			b.WriteByte(c)
			if i+1 < len(expr) && expr[i+1] == '^' {
				b.WriteByte('^')
				i++
			}
			if i+1 < len(expr) && expr[i+1] == ']' {
				b.WriteByte(']')
				i++
			}
		case c == '#':
			for i+1 < len(expr) && expr[i+1] != '\n' {
				i++
			}
		case c == ' ', c == '\t', c == '\n', c == '\r', c == '\f', c == '\v':
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
