package filetype

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/afero"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

// DefinitionsVersion is the only schema version understood by this package.
const DefinitionsVersion = 1

//go:embed defaults.yaml
var defaultDefinitions []byte

// Format is a serialisation format for definitions.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
	FormatTOML Format = "toml"
)

// ErrUnsupportedFormat is returned for unknown definition file formats.
var ErrUnsupportedFormat = errors.New("unsupported definitions format")

// Definitions is the serialisable form of a set of file types.
type Definitions struct {
	Version        int            `json:"version" yaml:"version" toml:"version"`
	SharedCounters []CounterSpec  `json:"shared_counters,omitempty" yaml:"shared_counters,omitempty" toml:"shared_counters,omitempty"`
	FileTypes      []FileTypeSpec `json:"file_types" yaml:"file_types" toml:"file_types"`
}

// FileTypeSpec describes one file type.
type FileTypeSpec struct {
	Name     string        `json:"name" yaml:"name" toml:"name"`
	Patterns []string      `json:"patterns" yaml:"patterns" toml:"patterns"`
	Counters []CounterSpec `json:"counters,omitempty" yaml:"counters,omitempty" toml:"counters,omitempty"`
}

// CounterSpec describes a counter. Shared counters carry an ID; a counter
// with a Ref is a copy of the shared counter with that ID, taking only its
// selection state (and optionally its name) from the referencing entry.
type CounterSpec struct {
	ID       string `json:"id,omitempty" yaml:"id,omitempty" toml:"id,omitempty"`
	Ref      string `json:"ref,omitempty" yaml:"ref,omitempty" toml:"ref,omitempty"`
	Name     string `json:"name,omitempty" yaml:"name,omitempty" toml:"name,omitempty"`
	Pattern  string `json:"pattern,omitempty" yaml:"pattern,omitempty" toml:"pattern,omitempty"`
	Selected bool   `json:"selected" yaml:"selected" toml:"selected"`
	Flags    `yaml:",inline"`
}

// FormatFromPath picks a format from a file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	case ".toml":
		return FormatTOML, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
}

// DefaultDefinitions returns the built-in definitions.
func DefaultDefinitions() (*Definitions, error) {
	return ParseDefinitions(defaultDefinitions, FormatYAML)
}

// ParseDefinitions decodes data. Unknown keys are rejected.
func ParseDefinitions(data []byte, format Format) (*Definitions, error) {
	var d Definitions

	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&d); err != nil {
			if errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("empty definitions")
			}
			return nil, fmt.Errorf("failed to parse yaml definitions: %w", err)
		}
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&d); err != nil {
			return nil, fmt.Errorf("failed to parse json definitions: %w", err)
		}
	case FormatTOML:
		md, err := toml.Decode(string(data), &d)
		if err != nil {
			return nil, fmt.Errorf("failed to parse toml definitions: %w", err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, 0, len(undecoded))
			for _, k := range undecoded {
				keys = append(keys, k.String())
			}
			return nil, fmt.Errorf("failed to parse toml definitions: unknown keys %s", strings.Join(keys, ", "))
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}

	if d.Version == 0 {
		d.Version = DefinitionsVersion
	}
	if d.Version != DefinitionsVersion {
		return nil, fmt.Errorf("unsupported definitions version %d", d.Version)
	}
	return &d, nil
}

// LoadDefinitions reads and decodes a definitions file, choosing the format
// from its extension.
func LoadDefinitions(fsys afero.Fs, path string) (*Definitions, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}

	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read definitions: %w", err)
	}

	d, err := ParseDefinitions(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return d, nil
}

// SaveDefinitions encodes d into path, choosing the format from its extension.
func SaveDefinitions(fsys afero.Fs, path string, d *Definitions) error {
	format, err := FormatFromPath(path)
	if err != nil {
		return err
	}

	data, err := d.Marshal(format)
	if err != nil {
		return err
	}

	if err := afero.WriteFile(fsys, path, data, 0644); err != nil {
		return fmt.Errorf("failed to write definitions: %w", err)
	}
	return nil
}

// LoadRegistry builds a registry from a definitions file, or from the
// built-in definitions when path is empty.
func LoadRegistry(fsys afero.Fs, path string) (*Registry, error) {
	var (
		d   *Definitions
		err error
	)
	if path == "" {
		d, err = DefaultDefinitions()
	} else {
		d, err = LoadDefinitions(fsys, path)
	}
	if err != nil {
		return nil, err
	}

	types, err := d.Build()
	if err != nil {
		return nil, err
	}
	return NewRegistry(types...)
}

// Marshal encodes the definitions.
func (d *Definitions) Marshal(format Format) ([]byte, error) {
	switch format {
	case FormatYAML:
		data, err := yaml.Marshal(d)
		if err != nil {
			return nil, fmt.Errorf("failed to encode yaml definitions: %w", err)
		}
		return data, nil
	case FormatJSON:
		data, err := json.MarshalIndent(d, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to encode json definitions: %w", err)
		}
		return append(data, '\n'), nil
	case FormatTOML:
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(d); err != nil {
			return nil, fmt.Errorf("failed to encode toml definitions: %w", err)
		}
		return buf.Bytes(), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
}

// Build compiles the definitions into file types. Every problem found is
// reported; any problem fails the whole load.
func (d *Definitions) Build() ([]*FileType, error) {
	var errs error

	shared := make(map[string]*Counter, len(d.SharedCounters))
	for i, spec := range d.SharedCounters {
		if spec.ID == "" {
			errs = multierr.Append(errs, fmt.Errorf("shared counter %d: missing id", i))
			continue
		}
		if _, ok := shared[spec.ID]; ok {
			errs = multierr.Append(errs, fmt.Errorf("shared counter %q: duplicate id", spec.ID))
			continue
		}
		if spec.Name == "" {
			errs = multierr.Append(errs, fmt.Errorf("shared counter %q: missing name", spec.ID))
			continue
		}

		c, err := NewCounter(spec.Name, spec.Pattern, spec.Flags, spec.Selected)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("shared counter %q: %w", spec.ID, err))
			continue
		}
		shared[spec.ID] = c
	}

	types := make([]*FileType, 0, len(d.FileTypes))
	for i, spec := range d.FileTypes {
		if spec.Name == "" {
			errs = multierr.Append(errs, fmt.Errorf("file type %d: missing name", i))
			continue
		}

		ft := NewFileType(spec.Name, spec.Patterns...)
		if len(ft.patterns) == 0 {
			errs = multierr.Append(errs, fmt.Errorf("file type %q: no patterns", spec.Name))
		}

		for j, cs := range spec.Counters {
			c, err := buildCounter(cs, shared)
			if err != nil {
				errs = multierr.Append(errs, fmt.Errorf("file type %q counter %d: %w", spec.Name, j, err))
				continue
			}
			if err := ft.AddCounter(c); err != nil {
				errs = multierr.Append(errs, err)
			}
		}
		types = append(types, ft)
	}

	if errs == nil {
		_, errs = NewRegistry(types...)
	}
	if errs != nil {
		return nil, errs
	}
	return types, nil
}

func buildCounter(spec CounterSpec, shared map[string]*Counter) (*Counter, error) {
	if spec.Ref != "" {
		base, ok := shared[spec.Ref]
		if !ok {
			return nil, fmt.Errorf("unknown shared counter %q", spec.Ref)
		}
		c := base.Clone()
		c.Selected = spec.Selected
		if spec.Name != "" {
			c.Name = spec.Name
		}
		return c, nil
	}

	if spec.Name == "" {
		return nil, fmt.Errorf("missing name")
	}
	return NewCounter(spec.Name, spec.Pattern, spec.Flags, spec.Selected)
}

// DefinitionsFrom serialises file types. Every counter is written inline.
func DefinitionsFrom(types ...*FileType) *Definitions {
	sorted := append([]*FileType(nil), types...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	d := &Definitions{Version: DefinitionsVersion}
	for _, ft := range sorted {
		spec := FileTypeSpec{
			Name:     ft.Name,
			Patterns: ft.Patterns(),
		}
		for _, c := range ft.counters {
			spec.Counters = append(spec.Counters, CounterSpec{
				Name:     c.Name,
				Pattern:  c.source,
				Selected: c.Selected,
				Flags:    c.flags,
			})
		}
		d.FileTypes = append(d.FileTypes, spec)
	}
	return d
}
