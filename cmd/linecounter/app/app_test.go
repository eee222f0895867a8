package app

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/sonemaro/linecounter/internal/config"
	"github.com/sonemaro/linecounter/pkg/filetype"
	"github.com/sonemaro/linecounter/pkg/logger"
	"github.com/sonemaro/linecounter/pkg/worker"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const expectedCSV = `Path,Type,Total Lines,Blank Lines,Counted Lines,Source Lines
/proj/README.md,md,2,0,0,2
/proj/main.go,go,5,2,3,2

File Type,Counter,Total
go,Total Lines,5
go,Blank Lines,2
go,Counted Lines,3
go,Source Lines,2
md,Total Lines,2
md,Source Lines,2
Grand Total,Blank Lines,2
Grand Total,Counted Lines,3
Grand Total,Source Lines,4
Grand Total,Total Lines,7
`

func testConfig() *config.Config {
	return &config.Config{
		Workers:         2,
		BatchSize:       1,
		Charset:         "UTF-8",
		CountBlankLines: true,
		MaxDepth:        config.UnlimitedDepth,
		Output:          string(config.OutputFormatCSV),
		NoProgress:      true,
		NoColor:         true,
		LogFormat:       string(config.LogFormatJSON),
	}
}

func setupFs(t *testing.T) afero.Fs {
	t.Helper()

	fs := afero.NewMemMapFs()
	files := map[string]string{
		"/proj/main.go":   "package main\n\n// entry\nfunc main() {}\n",
		"/proj/README.md": "# Title\nbody",
		"/proj/data.bin":  "\x00\x01\x02",
	}
	for path, content := range files {
		require.NoError(t, fs.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, afero.WriteFile(fs, path, []byte(content), 0644))
	}
	return fs
}

func newTestApp(t *testing.T, cfg *config.Config, fs afero.Fs) (*App, *bytes.Buffer) {
	t.Helper()

	var out bytes.Buffer
	a, err := New(cfg,
		WithLogger(logger.Nop()),
		WithFs(fs),
		WithOutput(&out),
		WithProgressOutput(&bytes.Buffer{}),
	)
	require.NoError(t, err)
	t.Cleanup(a.Shutdown)

	return a, &out
}

func TestCount(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*config.Config)
		opts   CountOptions
		setup  func(*testing.T, afero.Fs)
		verify func(*testing.T, afero.Fs, worker.Report, string)
	}{
		{
			name: "csv report skips unknown files",
			opts: CountOptions{Roots: []string{"/proj"}},
			verify: func(t *testing.T, fs afero.Fs, report worker.Report, out string) {
				assert.Equal(t, expectedCSV, out)
				assert.Equal(t, worker.StatusCompleted, report.State)
				assert.Len(t, report.Files, 2)
				assert.Empty(t, report.Errors)
			},
		},
		{
			name: "unknown files counted as text",
			modify: func(cfg *config.Config) {
				cfg.UnknownType = "Text"
			},
			opts: CountOptions{Roots: []string{"/proj"}},
			verify: func(t *testing.T, fs afero.Fs, report worker.Report, out string) {
				assert.Len(t, report.Files, 3)
				assert.Contains(t, out, "/proj/data.bin,bin,1,0,0,1\n")
			},
		},
		{
			name: "scan errors are reported",
			opts: CountOptions{Roots: []string{"/proj/main.go", "/missing"}},
			verify: func(t *testing.T, fs afero.Fs, report worker.Report, out string) {
				assert.Len(t, report.Files, 1)
				assert.Contains(t, report.Errors, "/missing")
				assert.Equal(t, 1, report.ErrorCount)
			},
		},
		{
			name: "file list round trip",
			modify: func(cfg *config.Config) {
				cfg.FilesFrom = "/lists/in.txt"
			},
			opts: CountOptions{SaveList: "/lists/out.txt"},
			setup: func(t *testing.T, fs afero.Fs) {
				require.NoError(t, afero.WriteFile(fs, "/lists/in.txt", []byte("# inputs\n/proj\n"), 0644))
			},
			verify: func(t *testing.T, fs afero.Fs, report worker.Report, out string) {
				saved, err := afero.ReadFile(fs, "/lists/out.txt")
				require.NoError(t, err)
				assert.Equal(t, "/proj/README.md\n/proj/main.go\n", string(saved))
				assert.Equal(t, expectedCSV, out)
			},
		},
		{
			name: "output file",
			modify: func(cfg *config.Config) {
				cfg.OutputFile = "/reports/lines.csv"
			},
			opts: CountOptions{Roots: []string{"/proj"}},
			verify: func(t *testing.T, fs afero.Fs, report worker.Report, out string) {
				assert.Empty(t, out)
				written, err := afero.ReadFile(fs, "/reports/lines.csv")
				require.NoError(t, err)
				assert.Equal(t, expectedCSV, string(written))
			},
		},
		{
			name: "table with statistics",
			modify: func(cfg *config.Config) {
				cfg.Output = string(config.OutputFormatTable)
			},
			opts: CountOptions{Roots: []string{"/proj"}, WithStats: true},
			verify: func(t *testing.T, fs afero.Fs, report worker.Report, out string) {
				assert.True(t, strings.HasPrefix(out, "Files\n"))
				assert.Contains(t, out, "Statistics:\n")
				assert.Contains(t, out, "  Files Counted: 2\n")
				assert.NotContains(t, out, "\x1b[")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := setupFs(t)
			if tt.setup != nil {
				tt.setup(t, fs)
			}

			cfg := testConfig()
			if tt.modify != nil {
				tt.modify(cfg)
			}

			a, out := newTestApp(t, cfg, fs)
			report, err := a.Count(tt.opts)
			require.NoError(t, err)
			tt.verify(t, fs, report, out.String())
		})
	}
}

func TestCountErrors(t *testing.T) {
	t.Run("no input", func(t *testing.T) {
		a, _ := newTestApp(t, testConfig(), setupFs(t))
		_, err := a.Count(CountOptions{})
		assert.ErrorIs(t, err, ErrNoInput)
	})

	t.Run("no readable root", func(t *testing.T) {
		a, _ := newTestApp(t, testConfig(), setupFs(t))
		_, err := a.Count(CountOptions{Roots: []string{"/missing"}})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to collect input files")
	})

	t.Run("missing file list", func(t *testing.T) {
		cfg := testConfig()
		cfg.FilesFrom = "/lists/none.txt"
		a, _ := newTestApp(t, cfg, setupFs(t))
		_, err := a.Count(CountOptions{})
		assert.Error(t, err)
	})

	t.Run("cancelled before counting", func(t *testing.T) {
		a, out := newTestApp(t, testConfig(), setupFs(t))
		a.Cancel()
		report, err := a.Count(CountOptions{Roots: []string{"/proj"}})
		assert.ErrorIs(t, err, ErrCancelled)
		assert.Equal(t, worker.StatusCancelled, report.State)
		assert.Empty(t, out.String())
	})
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*config.Config)
		setup   func(*testing.T, afero.Fs)
		wantErr string
	}{
		{
			name: "unknown type must exist",
			modify: func(cfg *config.Config) {
				cfg.UnknownType = "Cobol"
			},
			wantErr: `unknown file type "Cobol"`,
		},
		{
			name: "invalid ignore pattern",
			modify: func(cfg *config.Config) {
				cfg.IgnorePatterns = []string{"[oops"}
			},
			wantErr: "invalid ignore pattern",
		},
		{
			name: "missing definitions file",
			modify: func(cfg *config.Config) {
				cfg.Definitions = "/defs/types.yaml"
			},
			wantErr: "failed to load file type definitions",
		},
		{
			name: "custom definitions",
			modify: func(cfg *config.Config) {
				cfg.Definitions = "/defs/types.yaml"
				cfg.UnknownType = "Go"
			},
			setup: func(t *testing.T, fs afero.Fs) {
				goType := filetype.NewFileType("Go", "go")
				require.NoError(t, goType.AddCounter(filetype.MustCounter("Line Comment", `^\s*//.*$`, filetype.Flags{}, true)))
				require.NoError(t, filetype.SaveDefinitions(fs, "/defs/types.yaml", filetype.DefinitionsFrom(goType)))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := setupFs(t)
			if tt.setup != nil {
				tt.setup(t, fs)
			}
			cfg := testConfig()
			tt.modify(cfg)

			a, err := New(cfg, WithLogger(logger.Nop()), WithFs(fs))
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			defer a.Shutdown()
			assert.Equal(t, 1, a.registry.Len())
		})
	}
}

func TestListTypes(t *testing.T) {
	a, out := newTestApp(t, testConfig(), setupFs(t))
	require.NoError(t, a.ListTypes())

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Greater(t, len(lines), 2)
	assert.True(t, strings.HasPrefix(lines[0], "File Type"))
	assert.Equal(t, a.registry.Len(), len(lines)-2)
	assert.Contains(t, out.String(), "Line Comment")
}

func TestExportDefinitions(t *testing.T) {
	fs := setupFs(t)
	a, out := newTestApp(t, testConfig(), fs)

	require.NoError(t, a.ExportDefinitions("", "", false))
	assert.Contains(t, out.String(), "shared_counters:")

	for _, path := range []string{"/export/types.json", "/export/types.toml", "/export/inline.yaml"} {
		require.NoError(t, a.ExportDefinitions(path, "", strings.Contains(path, "inline")))

		d, err := filetype.LoadDefinitions(fs, path)
		require.NoError(t, err, path)
		types, err := d.Build()
		require.NoError(t, err, path)
		assert.Len(t, types, a.registry.Len(), path)
	}

	inline, err := afero.ReadFile(fs, "/export/inline.yaml")
	require.NoError(t, err)
	assert.NotContains(t, string(inline), "ref:")
}

func TestHandleSignals(t *testing.T) {
	a, _ := newTestApp(t, testConfig(), setupFs(t))

	exited := make(chan int, 1)
	a.exit = func(code int) { exited <- code }

	sigChan := make(chan os.Signal, 2)
	done := make(chan struct{})
	go func() {
		a.handleSignals(sigChan, &signalState{})
		close(done)
	}()

	sigChan <- syscall.SIGINT
	require.Eventually(t, func() bool { return a.ctx.Err() != nil }, time.Second, 10*time.Millisecond)

	select {
	case <-exited:
		t.Fatal("first signal must not exit")
	default:
	}

	sigChan <- syscall.SIGTERM
	select {
	case code := <-exited:
		assert.Equal(t, ExitInterrupted, code)
	case <-time.After(time.Second):
		t.Fatal("second signal did not force exit")
	}
	<-done
}

func TestHandleSignalsShutdown(t *testing.T) {
	a, _ := newTestApp(t, testConfig(), setupFs(t))

	a.HandleSignals()
	a.HandleSignals()
	a.Shutdown()
	assert.Nil(t, a.signals)

	// repeated shutdown is harmless
	a.Shutdown()
}
