package commands

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sonemaro/linecounter/cmd/linecounter/app"
	"github.com/sonemaro/linecounter/internal/version"
	"github.com/sonemaro/linecounter/pkg/filetype"
	"github.com/sonemaro/linecounter/pkg/logger"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupFs(t *testing.T) afero.Fs {
	t.Helper()

	fs := afero.NewMemMapFs()
	files := map[string]string{
		"/proj/main.go":        "package main\n\nfunc main() {}\n",
		"/proj/vendor/lib.go":  "package lib\n",
		"/proj/scripts/run.sh": "#!/bin/sh\necho hi\n",
	}
	for path, content := range files {
		require.NoError(t, fs.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, afero.WriteFile(fs, path, []byte(content), 0644))
	}
	return fs
}

func execute(t *testing.T, fs afero.Fs, args ...string) (string, error) {
	t.Helper()

	cmd := NewRootCommand(app.WithFs(fs), app.WithLogger(logger.Nop()))
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return out.String(), err
}

func TestCountCommand(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
		verify  func(*testing.T, afero.Fs, string)
	}{
		{
			name: "csv to stdout",
			args: []string{"count", "--no-progress", "-o", "csv", "-i", "vendor/", "/proj"},
			verify: func(t *testing.T, fs afero.Fs, out string) {
				lines := strings.Split(out, "\n")
				assert.Equal(t, "Path,Type,Total Lines,Blank Lines,Counted Lines,Source Lines", lines[0])
				assert.Equal(t, "/proj/main.go,go,4,2,2,2", lines[1])
				assert.Equal(t, "/proj/scripts/run.sh,sh,3,1,2,1", lines[2])
				assert.NotContains(t, out, "vendor")
			},
		},
		{
			name: "blank lines as source",
			args: []string{"count", "--no-progress", "-o", "csv", "--count-blank-lines=false", "/proj/main.go"},
			verify: func(t *testing.T, fs afero.Fs, out string) {
				assert.Contains(t, out, "/proj/main.go,go,4,0,0,4\n")
			},
		},
		{
			name: "json to file with depth limit",
			args: []string{"count", "--no-progress", "-o", "JSON", "-d", "0", "-f", "/out/report.json", "--stats", "/proj"},
			verify: func(t *testing.T, fs afero.Fs, out string) {
				assert.Empty(t, out)
				data, err := afero.ReadFile(fs, "/out/report.json")
				require.NoError(t, err)
				assert.True(t, json.Valid(data))
				assert.Contains(t, string(data), "/proj/main.go")
				assert.NotContains(t, string(data), "run.sh")
			},
		},
		{
			name: "files from list",
			args: []string{"count", "--no-progress", "--no-color", "-L", "/list.txt", "--save-list", "/saved.txt"},
			verify: func(t *testing.T, fs afero.Fs, out string) {
				assert.True(t, strings.HasPrefix(out, "Files\n"))
				saved, err := afero.ReadFile(fs, "/saved.txt")
				require.NoError(t, err)
				assert.Equal(t, "/proj/scripts/run.sh\n", string(saved))
			},
		},
		{
			name:    "invalid output format",
			args:    []string{"count", "-o", "xml", "/proj"},
			wantErr: `invalid output format "xml"`,
		},
		{
			name:    "invalid charset",
			args:    []string{"count", "-c", "no-such-charset", "/proj"},
			wantErr: "invalid charset",
		},
		{
			name:    "unknown type",
			args:    []string{"count", "--no-progress", "-u", "Cobol", "/proj"},
			wantErr: `unknown file type "Cobol"`,
		},
		{
			name:    "no input",
			args:    []string{"count", "--no-progress"},
			wantErr: app.ErrNoInput.Error(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := setupFs(t)
			require.NoError(t, afero.WriteFile(fs, "/list.txt", []byte("/proj/scripts\n"), 0644))

			out, err := execute(t, fs, tt.args...)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			tt.verify(t, fs, out)
		})
	}
}

func TestCountCommandEnv(t *testing.T) {
	t.Setenv("LINECOUNTER_OUTPUT", "yaml")
	t.Setenv("LINECOUNTER_NO_PROGRESS", "true")

	out, err := execute(t, setupFs(t), "count", "/proj/main.go")
	require.NoError(t, err)
	assert.Contains(t, out, "path: /proj/main.go")

	out, err = execute(t, setupFs(t), "count", "-o", "csv", "/proj/main.go")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "Path,Type,"))
}

func TestConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "linecounter.yaml")
	require.NoError(t, afero.WriteFile(afero.NewOsFs(), path, []byte("output: csv\nno_progress: true\nignore: [scripts/]\n"), 0644))

	out, err := execute(t, setupFs(t), "--config", path, "count", "/proj")
	require.NoError(t, err)
	assert.Contains(t, out, "/proj/main.go,go,")
	assert.NotContains(t, out, "run.sh")

	_, err = execute(t, setupFs(t), "--config", filepath.Join(dir, "missing.yaml"), "count", "/proj")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestTypesCommand(t *testing.T) {
	out, err := execute(t, setupFs(t), "types", "--no-color")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "File Type"))
	assert.Contains(t, out, "\nGo ")
	assert.Contains(t, out, "\nShell ")

	_, err = execute(t, setupFs(t), "types", "extra")
	assert.Error(t, err)
}

func TestExportCommand(t *testing.T) {
	fs := setupFs(t)

	out, err := execute(t, fs, "export", "--format", "json")
	require.NoError(t, err)
	assert.True(t, json.Valid([]byte(out)))

	_, err = execute(t, fs, "export", "--format", "xml")
	assert.ErrorIs(t, err, filetype.ErrUnsupportedFormat)

	out, err = execute(t, fs, "export", "--inline", "/defs/types.toml")
	require.NoError(t, err)
	assert.Empty(t, out)

	// the exported file is usable as definitions
	out, err = execute(t, fs, "-t", "/defs/types.toml", "count", "--no-progress", "-o", "csv", "/proj/main.go")
	require.NoError(t, err)
	assert.Contains(t, out, "/proj/main.go,go,4,2,2,2\n")
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, setupFs(t), "version")
	require.NoError(t, err)
	assert.Equal(t, version.Short()+"\n", out)

	out, err = execute(t, setupFs(t), "version", "--full")
	require.NoError(t, err)
	assert.Equal(t, version.FullVersion(), out)

	out, err = execute(t, setupFs(t), "version", "--json")
	require.NoError(t, err)
	var info version.BuildInfo
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, version.Version, info.Version)

	// an invalid configuration does not prevent printing the version
	out, err = execute(t, setupFs(t), "--log-format", "xml", "version")
	require.NoError(t, err)
	assert.NotEmpty(t, out)

	out, err = execute(t, setupFs(t), "--version")
	require.NoError(t, err)
	assert.Equal(t, version.Short()+"\n", out)
}
