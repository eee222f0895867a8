package linecount

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/afero"
	"golang.org/x/text/unicode/norm"
)

// Pattern is a compiled counter that can be run over decoded text.
type Pattern interface {
	// FindAllIndex returns the [start, end) byte offsets of every match.
	FindAllIndex(text string) [][]int

	// NeedsCanonical reports whether text must be NFC-normalised before
	// matching.
	NeedsCanonical() bool
}

// Span is a half-open [Start, End) byte range of decoded text.
type Span struct {
	Start int
	End   int
}

// Options configures a LineCounter.
type Options struct {
	// Charset is the IANA name used to decode file contents. Empty means UTF-8.
	Charset string

	// CountBlankLines enables blank line detection. Blank lines then share the
	// span space with counter matches.
	CountBlankLines bool
}

// LineCounter computes the line metrics of single files. It reuses internal
// buffers between files and must not be shared between goroutines.
type LineCounter struct {
	dec        *decoder
	countBlank bool
	spans      []Span
}

// NewCounter creates a LineCounter. It fails when the charset is unknown.
func NewCounter(opts Options) (*LineCounter, error) {
	dec, err := newDecoder(opts.Charset)
	if err != nil {
		return nil, err
	}

	return &LineCounter{
		dec:        dec,
		countBlank: opts.CountBlankLines,
	}, nil
}

// Charset returns the canonical name of the charset in use.
func (lc *LineCounter) Charset() string {
	return lc.dec.name
}

// CountFile reads rec.Path from fsys and counts it. See Count.
func (lc *LineCounter) CountFile(fsys afero.Fs, rec *FileRecord, patterns []Pattern, summary *Summary) error {
	data, err := afero.ReadFile(fsys, rec.Path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", rec.Path, err)
	}
	return lc.Count(rec, data, patterns, summary)
}

// Count decodes data, fills in the four line metrics of rec and records them
// in summary when it is not nil. On error rec is left with zero counts and
// nothing is recorded.
func (lc *LineCounter) Count(rec *FileRecord, data []byte, patterns []Pattern, summary *Summary) error {
	rec.resetCounts()

	text, err := lc.dec.decode(data)
	if err != nil {
		return err
	}

	for _, p := range patterns {
		if p.NeedsCanonical() {
			text = norm.NFC.String(text)
			break
		}
	}

	lc.CountText(rec, text, patterns)

	if summary != nil {
		summary.Record(rec)
	}
	return nil
}

// CountText fills in the line metrics of rec from already decoded text.
func (lc *LineCounter) CountText(rec *FileRecord, text string, patterns []Pattern) {
	rec.resetCounts()
	rec.TotalLines = CountLines(text)

	spans := lc.spans[:0]

	if lc.countBlank && text != "" {
		start := 0
		for {
			end := strings.IndexByte(text[start:], '\n')
			lineEnd := len(text)
			if end >= 0 {
				lineEnd = start + end
			}

			if isBlank(text[start:lineEnd]) {
				rec.BlankLines++
				spans = append(spans, Span{Start: start, End: lineEnd})
			}

			if end < 0 {
				break
			}
			start = lineEnd + 1
		}
	}

	for _, p := range patterns {
		for _, loc := range p.FindAllIndex(text) {
			spans = append(spans, Span{Start: loc[0], End: loc[1]})
		}
	}

	rec.CountedLines = coveredLines(text, MergeSpans(spans))

	if lc.countBlank {
		rec.SourceLines = rec.TotalLines - rec.CountedLines
	} else {
		rec.SourceLines = rec.TotalLines - (rec.BlankLines + rec.CountedLines)
	}

	lc.spans = spans[:0]
}

// CountLines returns the number of lines in text: newlines plus one, or zero
// for empty text. A final unterminated line counts.
func CountLines(text string) int {
	if text == "" {
		return 0
	}
	return strings.Count(text, "\n") + 1
}

// coveredLines returns the number of distinct lines touched by spans, which
// must be sorted and merged. A line holding several separate spans counts once.
func coveredLines(text string, spans []Span) int {
	covered := 0
	line, pos := 0, 0
	last := -1
	for _, s := range spans {
		line += strings.Count(text[pos:s.Start], "\n")
		first := line
		line += strings.Count(text[s.Start:s.End], "\n")
		pos = s.End

		if first <= last {
			first = last + 1
		}
		if line >= first {
			covered += line - first + 1
		}
		last = line
	}
	return covered
}

// MergeSpans sorts spans by start and merges every span that overlaps or
// touches the previous one, or starts one byte after it. The input slice is
// reordered and reused for the result.
func MergeSpans(spans []Span) []Span {
	if len(spans) < 2 {
		return spans
	}

	sort.Slice(spans, func(i, j int) bool {
		if spans[i].Start != spans[j].Start {
			return spans[i].Start < spans[j].Start
		}
		return spans[i].End < spans[j].End
	})

	merged := spans[:1]
	for _, s := range spans[1:] {
		last := &merged[len(merged)-1]
		if s.Start <= last.End+1 {
			if s.End > last.End {
				last.End = s.End
			}
			continue
		}
		merged = append(merged, s)
	}
	return merged
}

func isBlank(line string) bool {
	return strings.TrimLeft(line, " \t\v\f\r") == ""
}
