package filetype

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sonemaro/linecounter/pkg/linecount"
	"go.uber.org/multierr"
)

// BackupSuffix marks editor backup files such as "main.go~".
const BackupSuffix = "~"

// Registry maps lowercased file patterns to file types. It is built once and
// not modified afterwards, so it is safe for concurrent lookups.
type Registry struct {
	byName    map[string]*FileType
	byPattern map[string]*FileType
	names     []string
}

// NewRegistry indexes types by name and pattern. Duplicate type names and
// patterns claimed by more than one type are reported together.
func NewRegistry(types ...*FileType) (*Registry, error) {
	r := &Registry{
		byName:    make(map[string]*FileType, len(types)),
		byPattern: make(map[string]*FileType),
	}

	var errs error
	for _, ft := range types {
		if ft == nil {
			continue
		}
		if _, ok := r.byName[ft.Name]; ok {
			errs = multierr.Append(errs, fmt.Errorf("duplicate file type %q", ft.Name))
			continue
		}
		r.byName[ft.Name] = ft
		r.names = append(r.names, ft.Name)

		for _, p := range ft.patterns {
			if owner, ok := r.byPattern[p]; ok {
				errs = multierr.Append(errs, fmt.Errorf("pattern %q of %q already belongs to %q", p, ft.Name, owner.Name))
				continue
			}
			r.byPattern[p] = ft
		}
	}
	sort.Strings(r.names)

	if errs != nil {
		return nil, errs
	}
	return r, nil
}

// Classify resolves a file to its type: by extension first, then by the
// lowercased file name, then by the override type name. It returns nil when
// nothing matches.
func (r *Registry) Classify(name, ext, override string) *FileType {
	if r == nil {
		return nil
	}

	if ext != "" {
		if ft, ok := r.byPattern[strings.ToLower(ext)]; ok {
			return ft
		}
	}
	if ft, ok := r.byPattern[strings.ToLower(name)]; ok {
		return ft
	}
	if override != "" {
		return r.byName[override]
	}
	return nil
}

// ClassifyRecord is Classify for a file record.
func (r *Registry) ClassifyRecord(rec *linecount.FileRecord, override string) *FileType {
	if rec == nil {
		return nil
	}
	return r.Classify(rec.Name, rec.Extension, override)
}

// SelectedCounters returns the selected counters of ft, empty for nil.
func (r *Registry) SelectedCounters(ft *FileType) []*Counter {
	if ft == nil {
		return nil
	}
	return ft.SelectedCounters()
}

// IsKnownType reports whether an extension or file name is registered. Case
// is ignored and a trailing backup marker is stripped first.
func (r *Registry) IsKnownType(pattern string) bool {
	if r == nil {
		return false
	}
	p := strings.ToLower(strings.TrimSuffix(pattern, BackupSuffix))
	_, ok := r.byPattern[p]
	return ok
}

// IsKnownRecord reports whether a record would classify without an override.
func (r *Registry) IsKnownRecord(rec *linecount.FileRecord) bool {
	return r.IsKnownType(rec.TypeKey()) || r.Classify(rec.Name, rec.Extension, "") != nil
}

// FileType returns the type owning pattern, nil if none.
func (r *Registry) FileType(pattern string) *FileType {
	if r == nil {
		return nil
	}
	return r.byPattern[strings.ToLower(pattern)]
}

// FileTypeByName returns the named type, nil if none.
func (r *Registry) FileTypeByName(name string) *FileType {
	if r == nil {
		return nil
	}
	return r.byName[name]
}

// Names returns the sorted type names.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	return append([]string(nil), r.names...)
}

// Types returns the registered types sorted by name.
func (r *Registry) Types() []*FileType {
	if r == nil {
		return nil
	}
	types := make([]*FileType, 0, len(r.names))
	for _, name := range r.names {
		types = append(types, r.byName[name])
	}
	return types
}

// Len returns the number of registered types.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.byName)
}
