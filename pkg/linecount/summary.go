package linecount

import (
	"sort"
	"sync"
)

// Metric names recorded for every counted file.
const (
	MetricTotal   = "Total Lines"
	MetricBlank   = "Blank Lines"
	MetricCounted = "Counted Lines"
	MetricSource  = "Source Lines"
)

// Totals holds the four grand totals of a run.
type Totals struct {
	TotalLines   int `json:"totalLines" yaml:"totalLines"`
	BlankLines   int `json:"blankLines" yaml:"blankLines"`
	CountedLines int `json:"countedLines" yaml:"countedLines"`
	SourceLines  int `json:"sourceLines" yaml:"sourceLines"`
}

// SummaryRow is one (type, metric, total) entry of a summary.
type SummaryRow struct {
	Type   string `json:"type" yaml:"type"`
	Metric string `json:"metric" yaml:"metric"`
	Total  int    `json:"total" yaml:"total"`
}

// Summary accumulates per-type metric totals and grand totals. It is safe for
// concurrent use.
type Summary struct {
	mu     sync.RWMutex
	counts map[string]map[string]int
	totals Totals
}

// NewSummary returns an empty summary.
func NewSummary() *Summary {
	return &Summary{
		counts: make(map[string]map[string]int),
	}
}

// Add increments the total for (typeKey, metric). Zero increments are ignored
// so types only appear once they have something to report.
func (s *Summary) Add(typeKey, metric string, n int) {
	if n == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.addLocked(typeKey, metric, n)
}

func (s *Summary) addLocked(typeKey, metric string, n int) {
	metrics, ok := s.counts[typeKey]
	if !ok {
		metrics = make(map[string]int)
		s.counts[typeKey] = metrics
	}
	metrics[metric] += n
}

// AddTotals increments the grand totals.
func (s *Summary) AddTotals(t Totals) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.totals.TotalLines += t.TotalLines
	s.totals.BlankLines += t.BlankLines
	s.totals.CountedLines += t.CountedLines
	s.totals.SourceLines += t.SourceLines
}

// Record adds the four metrics of a processed record under its type key.
func (s *Summary) Record(rec *FileRecord) {
	key := rec.TypeKey()

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, m := range []struct {
		name string
		n    int
	}{
		{MetricTotal, rec.TotalLines},
		{MetricBlank, rec.BlankLines},
		{MetricCounted, rec.CountedLines},
		{MetricSource, rec.SourceLines},
	} {
		if m.n != 0 {
			s.addLocked(key, m.name, m.n)
		}
	}

	s.totals.TotalLines += rec.TotalLines
	s.totals.BlankLines += rec.BlankLines
	s.totals.CountedLines += rec.CountedLines
	s.totals.SourceLines += rec.SourceLines
}

// Merge adds every (type, metric) total and the grand totals of other into s.
// Keys present in both are summed. Other is copied before s is locked, so the
// two locks are never held together.
func (s *Summary) Merge(other *Summary) {
	if other == nil || other == s {
		return
	}

	counts, totals := other.snapshot()

	s.mu.Lock()
	defer s.mu.Unlock()

	for typeKey, metrics := range counts {
		for metric, n := range metrics {
			s.addLocked(typeKey, metric, n)
		}
	}

	s.totals.TotalLines += totals.TotalLines
	s.totals.BlankLines += totals.BlankLines
	s.totals.CountedLines += totals.CountedLines
	s.totals.SourceLines += totals.SourceLines
}

// snapshot copies the per-type totals and the grand totals under one lock.
func (s *Summary) snapshot() (map[string]map[string]int, Totals) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[string]map[string]int, len(s.counts))
	for typeKey, metrics := range s.counts {
		m := make(map[string]int, len(metrics))
		for metric, n := range metrics {
			m[metric] = n
		}
		counts[typeKey] = m
	}
	return counts, s.totals
}

// Count returns the total for (typeKey, metric), zero when absent.
func (s *Summary) Count(typeKey, metric string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.counts[typeKey][metric]
}

// Totals returns a copy of the grand totals.
func (s *Summary) Totals() Totals {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.totals
}

// Types returns the sorted type keys that have at least one total.
func (s *Summary) Types() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	types := make([]string, 0, len(s.counts))
	for typeKey := range s.counts {
		types = append(types, typeKey)
	}
	sort.Strings(types)
	return types
}

// Rows flattens the summary, sorted by type and then by metric in the order
// total, blank, counted, source.
func (s *Summary) Rows() []SummaryRow {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := make([]SummaryRow, 0, len(s.counts)*4)
	for typeKey, metrics := range s.counts {
		for metric, n := range metrics {
			rows = append(rows, SummaryRow{Type: typeKey, Metric: metric, Total: n})
		}
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Type != rows[j].Type {
			return rows[i].Type < rows[j].Type
		}
		oi, oj := metricOrder(rows[i].Metric), metricOrder(rows[j].Metric)
		if oi != oj {
			return oi < oj
		}
		return rows[i].Metric < rows[j].Metric
	})
	return rows
}

func metricOrder(metric string) int {
	switch metric {
	case MetricTotal:
		return 0
	case MetricBlank:
		return 1
	case MetricCounted:
		return 2
	case MetricSource:
		return 3
	}
	return 4
}
