package scanner

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/sonemaro/linecounter/pkg/linecount"
	"github.com/spf13/afero"
)

// ReadFileList reads a saved file selection: one path per line. Blank lines
// and lines starting with '#' are skipped.
func ReadFileList(fs afero.Fs, path string) ([]string, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file list: %w", err)
	}
	defer f.Close()

	var paths []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		paths = append(paths, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read file list %s: %w", path, err)
	}
	return paths, nil
}

// WriteFileList saves the paths of files, one per line, in a form
// ReadFileList accepts.
func WriteFileList(fs afero.Fs, path string, files []*linecount.FileRecord) error {
	var sb strings.Builder
	for _, rec := range files {
		sb.WriteString(rec.Path)
		sb.WriteByte('\n')
	}

	if err := afero.WriteFile(fs, path, []byte(sb.String()), 0644); err != nil {
		return fmt.Errorf("failed to write file list: %w", err)
	}
	return nil
}
