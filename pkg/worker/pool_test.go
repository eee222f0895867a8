package worker

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/sonemaro/linecounter/pkg/filetype"
	"github.com/sonemaro/linecounter/pkg/linecount"
	"github.com/sonemaro/linecounter/pkg/logger"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockLogger is safe for use by concurrent workers.
type mockLogger struct {
	mu   *sync.Mutex
	logs *[]string
}

func newMockLogger() *mockLogger {
	return &mockLogger{mu: &sync.Mutex{}, logs: &[]string{}}
}

func (m *mockLogger) add(level, msg string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	*m.logs = append(*m.logs, level+": "+msg)
}

func (m *mockLogger) Info(msg string)                               { m.add("INFO", msg) }
func (m *mockLogger) Debug(msg string)                              { m.add("DEBUG", msg) }
func (m *mockLogger) Error(msg string)                              { m.add("ERROR", msg) }
func (m *mockLogger) Warn(msg string)                               { m.add("WARN", msg) }
func (m *mockLogger) Trace(msg string)                              { m.add("TRACE", msg) }
func (m *mockLogger) WithFields(fields logger.Fields) logger.Logger { return m }

var sources = []struct {
	ext  string
	body string
}{
	{"java", "/** doc */\npackage a;\n\n// line\nclass A {\n  /* block\n  */\n}\n"},
	{"go", "package a\n\n// comment\nfunc f() {}\n"},
	{"py", "# hash\n\"\"\"doc\nstring\"\"\"\nx = 1\n\n"},
	{"txt", "plain\n\ntext"},
	{"xyz", "unknown\nkind\n"},
}

// setupTestFS writes n files spread over several types and returns their paths.
func setupTestFS(t *testing.T, n int) (afero.Fs, []string) {
	t.Helper()

	fs := afero.NewMemMapFs()
	paths := make([]string, 0, n)
	for i := 0; i < n; i++ {
		src := sources[i%len(sources)]
		path := fmt.Sprintf("/src/f%03d.%s", i, src.ext)
		require.NoError(t, afero.WriteFile(fs, path, []byte(src.body), 0644))
		paths = append(paths, path)
	}
	return fs, paths
}

func records(paths []string) []*linecount.FileRecord {
	recs := make([]*linecount.FileRecord, len(paths))
	for i, p := range paths {
		recs[i] = linecount.NewFileRecord(p, nil)
	}
	return recs
}

func defaultRegistry(t *testing.T) *filetype.Registry {
	t.Helper()
	r, err := filetype.LoadRegistry(afero.NewMemMapFs(), "")
	require.NoError(t, err)
	return r
}

func run(t *testing.T, cfg Config, job Job) Report {
	t.Helper()

	p, err := NewPool(cfg, newMockLogger())
	require.NoError(t, err)
	require.NoError(t, p.Start(context.Background(), job))

	report, err := p.Wait()
	require.NoError(t, err)
	return report
}

func TestPoolConfig(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr string
	}{
		{
			name:   "valid config",
			config: Config{Workers: 4, BatchSize: 10, RateLimit: 10},
		},
		{
			name:   "default batch size",
			config: Config{Workers: 1},
		},
		{
			name:    "zero workers",
			config:  Config{Workers: 0},
			wantErr: "number of workers must be positive",
		},
		{
			name:    "negative batch size",
			config:  Config{Workers: 1, BatchSize: -1},
			wantErr: "batch size must be non-negative",
		},
		{
			name:    "negative rate limit",
			config:  Config{Workers: 1, RateLimit: -1},
			wantErr: "rate limit must be non-negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewPool(tt.config, newMockLogger())
			if tt.wantErr != "" {
				assert.EqualError(t, err, tt.wantErr)
				assert.Nil(t, p)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, StatusIdle, p.Status())
		})
	}

	p, err := NewPool(Config{Workers: 1}, newMockLogger())
	require.NoError(t, err)
	assert.Equal(t, DefaultBatchSize, p.(*pool).config.BatchSize)
}

func TestPoolWorkerCountsAgree(t *testing.T) {
	fs, paths := setupTestFS(t, 75)
	registry := defaultRegistry(t)

	countWith := func(workers int, shuffle bool) Report {
		input := append([]string(nil), paths...)
		if shuffle {
			rng := rand.New(rand.NewSource(int64(workers)))
			rng.Shuffle(len(input), func(i, j int) { input[i], input[j] = input[j], input[i] })
		}
		return run(t, Config{Workers: workers, BatchSize: 7}, Job{
			Files:           records(input),
			Registry:        registry,
			CountBlankLines: true,
			Fs:              fs,
		})
	}

	byPath := func(r Report) map[string]linecount.FileRecord {
		m := make(map[string]linecount.FileRecord, len(r.Files))
		for _, rec := range r.Files {
			m[rec.Path] = *rec
		}
		return m
	}

	baseline := countWith(1, false)
	require.Equal(t, StatusCompleted, baseline.State)
	require.Len(t, baseline.Files, len(paths))
	assert.Greater(t, baseline.Summary.Totals().CountedLines, 0)

	for _, workers := range []int{1, 2, 4, 8} {
		for _, shuffle := range []bool{false, true} {
			t.Run(fmt.Sprintf("workers=%d shuffle=%v", workers, shuffle), func(t *testing.T) {
				got := countWith(workers, shuffle)

				assert.Equal(t, StatusCompleted, got.State)
				assert.Equal(t, len(paths), got.Processed)
				assert.Equal(t, len(paths), got.Claimed)
				assert.Empty(t, got.Errors)
				assert.Equal(t, byPath(baseline), byPath(got))
				assert.Equal(t, baseline.Summary.Rows(), got.Summary.Rows())
				assert.Equal(t, baseline.Summary.Totals(), got.Summary.Totals())
			})
		}
	}
}

func TestPoolEveryFileOnce(t *testing.T) {
	fs, paths := setupTestFS(t, 40)
	require.NoError(t, afero.WriteFile(fs, "/src/bad.java", []byte{0xff, 0xfe, 0xfd}, 0644))
	paths = append(paths, "/src/bad.java", "/src/missing.go")

	var mu sync.Mutex
	seen := make(map[string]int)
	sink := SinkFunc(func(batch []*linecount.FileRecord) {
		mu.Lock()
		defer mu.Unlock()
		for _, rec := range batch {
			seen[rec.Path]++
		}
	})

	report := run(t, Config{Workers: 4, BatchSize: 3}, Job{
		Files:    records(paths),
		Registry: defaultRegistry(t),
		Fs:       fs,
		Sink:     sink,
	})

	assert.Equal(t, StatusCompleted, report.State)
	assert.Equal(t, len(paths), report.Processed)
	assert.Equal(t, 2, report.ErrorCount)
	assert.Len(t, report.Files, len(paths)-2)
	assert.Contains(t, report.Errors["/src/bad.java"], "decode failed")
	assert.Contains(t, report.Errors["/src/missing.go"], "failed to read")

	for _, p := range paths[:len(paths)-2] {
		assert.Equal(t, 1, seen[p], p)
	}
	assert.NotContains(t, seen, "/src/bad.java")
}

func TestPoolClassification(t *testing.T) {
	fs, paths := setupTestFS(t, len(sources))

	tests := []struct {
		name        string
		unknownType string
		wantUnknown string
	}{
		{name: "unknown files stay unclassified", wantUnknown: ""},
		{name: "unknown files use the override", unknownType: "Text", wantUnknown: "Text"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := run(t, Config{Workers: 2}, Job{
				Files:       records(paths),
				Registry:    defaultRegistry(t),
				UnknownType: tt.unknownType,
				Fs:          fs,
			})

			types := make(map[string]string)
			for _, rec := range report.Files {
				types[rec.Extension] = rec.Type
			}
			assert.Equal(t, "Java", types["java"])
			assert.Equal(t, "Go", types["go"])
			assert.Equal(t, "Python", types["py"])
			assert.Equal(t, "Text", types["txt"])
			assert.Equal(t, tt.wantUnknown, types["xyz"])
		})
	}
}

func TestPoolCancel(t *testing.T) {
	fs, paths := setupTestFS(t, 60)

	p, err := NewPool(Config{Workers: 1, BatchSize: 1}, newMockLogger())
	require.NoError(t, err)

	var batches int
	err = p.Start(context.Background(), Job{
		Files:    records(paths),
		Registry: defaultRegistry(t),
		Fs:       fs,
		Sink: SinkFunc(func(batch []*linecount.FileRecord) {
			batches++
			p.Cancel()
		}),
	})
	require.NoError(t, err)

	report, err := p.Wait()
	require.NoError(t, err)

	assert.Equal(t, StatusCancelled, report.State)
	assert.Equal(t, StatusCancelled, p.Status())
	assert.Equal(t, 1, batches)
	assert.Len(t, report.Files, 1)
	assert.Equal(t, 1, report.Processed)
	assert.LessOrEqual(t, report.Processed, len(paths))
	assert.Equal(t, report.Summary.Totals().TotalLines, report.Files[0].TotalLines)
}

func TestPoolCancelManyWorkers(t *testing.T) {
	fs, paths := setupTestFS(t, 400)
	for i := 0; i < len(paths); i += 25 {
		paths[i] = fmt.Sprintf("/src/missing%03d.go", i)
	}

	for _, cfg := range []Config{
		{Workers: 4, BatchSize: 1},
		{Workers: 8, BatchSize: 3},
		{Workers: 16, BatchSize: 20},
	} {
		t.Run(fmt.Sprintf("%d workers batch %d", cfg.Workers, cfg.BatchSize), func(t *testing.T) {
			p, err := NewPool(cfg, newMockLogger())
			require.NoError(t, err)

			var (
				mu   sync.Mutex
				sunk []string
			)
			err = p.Start(context.Background(), Job{
				Files:    records(paths),
				Registry: defaultRegistry(t),
				Fs:       fs,
				Sink: SinkFunc(func(batch []*linecount.FileRecord) {
					mu.Lock()
					for _, rec := range batch {
						sunk = append(sunk, rec.Path)
					}
					mu.Unlock()
					p.Cancel()
				}),
			})
			require.NoError(t, err)

			report, err := p.Wait()
			require.NoError(t, err)

			input := make(map[string]bool, len(paths))
			for _, path := range paths {
				input[path] = true
			}

			seen := make(map[string]int)
			for _, rec := range report.Files {
				seen[rec.Path]++
			}
			for path := range report.Errors {
				seen[path]++
			}
			for path, n := range seen {
				assert.Equal(t, 1, n, path)
				assert.True(t, input[path], path)
			}

			assert.Equal(t, report.Processed, len(report.Files)+len(report.Errors))
			assert.Equal(t, report.Claimed, report.Processed)
			assert.LessOrEqual(t, report.Processed, len(paths))
			assert.Equal(t, len(report.Errors), report.ErrorCount)
			if report.Claimed < len(paths) {
				assert.Equal(t, StatusCancelled, report.State)
			} else {
				assert.Equal(t, StatusCompleted, report.State)
			}

			mu.Lock()
			assert.Len(t, sunk, len(report.Files))
			mu.Unlock()

			var lines int
			for _, rec := range report.Files {
				lines += rec.TotalLines
			}
			assert.Equal(t, lines, report.Summary.Totals().TotalLines)
		})
	}
}

func TestPoolCancelledContext(t *testing.T) {
	fs, paths := setupTestFS(t, 10)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p, err := NewPool(Config{Workers: 3}, newMockLogger())
	require.NoError(t, err)
	require.NoError(t, p.Start(ctx, Job{Files: records(paths), Registry: defaultRegistry(t), Fs: fs}))

	report, err := p.Wait()
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, report.State)
	assert.Equal(t, 0, report.Processed)
	assert.Empty(t, report.Files)
}

func TestPoolRunActive(t *testing.T) {
	fs, paths := setupTestFS(t, 5)

	p, err := NewPool(Config{Workers: 1, BatchSize: 1}, newMockLogger())
	require.NoError(t, err)

	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once

	job := Job{
		Files:    records(paths),
		Registry: defaultRegistry(t),
		Fs:       fs,
		Sink: SinkFunc(func([]*linecount.FileRecord) {
			once.Do(func() {
				close(entered)
				<-release
			})
		}),
	}
	require.NoError(t, p.Start(context.Background(), job))

	<-entered
	assert.ErrorIs(t, p.Start(context.Background(), job), ErrRunActive)
	assert.Equal(t, StatusRunning, p.Status())
	close(release)

	report, err := p.Wait()
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, report.State)

	// A finished pool accepts a new run.
	require.NoError(t, p.Start(context.Background(), Job{Files: records(paths), Registry: job.Registry, Fs: fs}))
	report, err = p.Wait()
	require.NoError(t, err)
	assert.Len(t, report.Files, len(paths))
}

func TestPoolUnknownCharset(t *testing.T) {
	fs, paths := setupTestFS(t, 3)

	p, err := NewPool(Config{Workers: 2}, newMockLogger())
	require.NoError(t, err)

	err = p.Start(context.Background(), Job{Files: records(paths), Fs: fs, Charset: "no-such-charset"})
	assert.ErrorIs(t, err, linecount.ErrUnknownCharset)
	assert.Equal(t, StatusFailed, p.Status())

	report, err := p.Wait()
	assert.ErrorIs(t, err, linecount.ErrUnknownCharset)
	assert.Equal(t, StatusFailed, report.State)
}

func TestPoolWaitBeforeStart(t *testing.T) {
	p, err := NewPool(Config{Workers: 1}, newMockLogger())
	require.NoError(t, err)

	_, err = p.Wait()
	assert.ErrorIs(t, err, ErrNotStarted)
}

// panicFs panics when one particular file is opened.
type panicFs struct {
	afero.Fs
	path string
}

func (f panicFs) Open(name string) (afero.File, error) {
	if name == f.path {
		panic("disk on fire")
	}
	return f.Fs.Open(name)
}

func (f panicFs) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	if name == f.path {
		panic("disk on fire")
	}
	return f.Fs.OpenFile(name, flag, perm)
}

func TestPoolRecoversFromPanics(t *testing.T) {
	fs, paths := setupTestFS(t, 12)

	report := run(t, Config{Workers: 3}, Job{
		Files:    records(paths),
		Registry: defaultRegistry(t),
		Fs:       panicFs{Fs: fs, path: paths[4]},
	})

	assert.Equal(t, StatusCompleted, report.State)
	assert.Equal(t, len(paths), report.Processed)
	assert.Len(t, report.Files, len(paths)-1)
	assert.Contains(t, report.Errors[paths[4]], "disk on fire")
}

func TestPoolProgress(t *testing.T) {
	fs, paths := setupTestFS(t, 25)

	var mu sync.Mutex
	var seen []Progress

	p, err := NewPool(Config{Workers: 1, BatchSize: 4}, newMockLogger())
	require.NoError(t, err)

	require.NoError(t, p.Start(context.Background(), Job{
		Files:    records(paths),
		Total:    25,
		Registry: defaultRegistry(t),
		Fs:       fs,
		OnProgress: func(pr Progress) {
			mu.Lock()
			seen = append(seen, pr)
			mu.Unlock()
		},
	}))

	_, err = p.Wait()
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()

	// 25 files in batches of 4 flush seven times.
	require.Len(t, seen, 7)
	for i := 1; i < len(seen); i++ {
		assert.Greater(t, seen[i].Processed, seen[i-1].Processed)
		assert.Equal(t, 25, seen[i].Total)
	}
	assert.Equal(t, 4, seen[0].Processed)

	final := p.Progress()
	assert.Equal(t, 25, final.Processed)
	assert.Equal(t, time.Duration(0), final.ETA)

	stats := p.GetStats()
	assert.Equal(t, StatusCompleted, stats.Status)
	assert.Equal(t, 0, stats.QueuedFiles)
	assert.Equal(t, 25, stats.ProcessedFiles)
	assert.Equal(t, 0, stats.ActiveWorkers)
}

func TestPoolEmptyInput(t *testing.T) {
	report := run(t, Config{Workers: 4}, Job{Registry: defaultRegistry(t), Fs: afero.NewMemMapFs()})

	assert.Equal(t, StatusCompleted, report.State)
	assert.Equal(t, 0, report.Processed)
	assert.Empty(t, report.Files)
	assert.Empty(t, report.Summary.Rows())
}

func TestPoolRateLimit(t *testing.T) {
	fs, paths := setupTestFS(t, 5)

	start := time.Now()
	report := run(t, Config{Workers: 2, RateLimit: 50}, Job{
		Files:    records(paths),
		Registry: defaultRegistry(t),
		Fs:       fs,
	})

	assert.Equal(t, StatusCompleted, report.State)
	assert.Len(t, report.Files, len(paths))
	// The burst allows one file immediately, the remaining four wait 20ms each.
	assert.GreaterOrEqual(t, time.Since(start), 60*time.Millisecond)
}
